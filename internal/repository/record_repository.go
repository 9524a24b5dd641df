package repository

import (
	"fmt"

	"stu-insight-go/internal/model"

	"gorm.io/gorm"
)

// RecordRepository 定义了对 achievement_records 表的数据操作接口。
// 查询方法接收的都是已经过白名单校验的列名。
type RecordRepository interface {
	// ReplaceAll 在一个事务内用快照内容全量替换记录表。
	ReplaceAll(records []*model.AchievementRecord) error
	// FindByField 按单列精确匹配查询记录。
	FindByField(column, value string) ([]*model.AchievementRecord, error)
	// FindByFilters 按多列合取条件查询记录。
	FindByFilters(filters map[string]string) ([]*model.AchievementRecord, error)
	// CountByGroup 按一列分组计数，可附加过滤；distinctStudents 时按学生去重。
	CountByGroup(column string, filters map[string]string, distinctStudents bool) ([]model.GroupCount, error)
}

type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建一个新的 RecordRepository 实例。
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// ReplaceAll 先清空再批量写入，整体在一个事务内，读者不会看到半新半旧的表。
func (r *recordRepository) ReplaceAll(records []*model.AchievementRecord) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.AchievementRecord{}).Error; err != nil {
			return fmt.Errorf("清空记录表失败: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 100).Error; err != nil {
			return fmt.Errorf("批量写入记录失败: %w", err)
		}
		return nil
	})
}

func (r *recordRepository) FindByField(column, value string) ([]*model.AchievementRecord, error) {
	var records []*model.AchievementRecord
	err := r.db.Where(fmt.Sprintf("%s = ?", column), value).Find(&records).Error
	return records, err
}

func (r *recordRepository) FindByFilters(filters map[string]string) ([]*model.AchievementRecord, error) {
	q := r.db.Model(&model.AchievementRecord{})
	for column, value := range filters {
		q = q.Where(fmt.Sprintf("%s = ?", column), value)
	}
	var records []*model.AchievementRecord
	err := q.Find(&records).Error
	return records, err
}

func (r *recordRepository) CountByGroup(column string, filters map[string]string, distinctStudents bool) ([]model.GroupCount, error) {
	countExpr := "COUNT(*)"
	if distinctStudents {
		countExpr = "COUNT(DISTINCT student_id)"
	}

	q := r.db.Model(&model.AchievementRecord{}).
		Select(fmt.Sprintf("%s AS `group`, %s AS `count`", column, countExpr)).
		Group(column).
		Order(column)
	for col, value := range filters {
		q = q.Where(fmt.Sprintf("%s = ?", col), value)
	}

	var counts []model.GroupCount
	err := q.Scan(&counts).Error
	return counts, err
}
