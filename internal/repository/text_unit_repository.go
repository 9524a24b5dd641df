package repository

import (
	"fmt"

	"stu-insight-go/internal/model"

	"gorm.io/gorm"
)

// TextUnitRepository 定义了对 text_units 侧表的数据操作接口。
type TextUnitRepository interface {
	// ReplaceAll 在一个事务内用本次摄取的文本单元全量替换侧表。
	ReplaceAll(units []*model.TextUnit) error
}

type textUnitRepository struct {
	db *gorm.DB
}

// NewTextUnitRepository 创建一个新的 TextUnitRepository 实例。
func NewTextUnitRepository(db *gorm.DB) TextUnitRepository {
	return &textUnitRepository{db: db}
}

func (r *textUnitRepository) ReplaceAll(units []*model.TextUnit) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.TextUnit{}).Error; err != nil {
			return fmt.Errorf("清空文本单元侧表失败: %w", err)
		}
		if len(units) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(units, 100).Error; err != nil {
			return fmt.Errorf("批量写入文本单元失败: %w", err)
		}
		return nil
	})
}
