package service

import (
	"fmt"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/model"
	"stu-insight-go/internal/repository"
	"stu-insight-go/pkg/log"
)

// DataQueryService 是确定性的结构化查询后端：精确匹配、分组计数、合取过滤。
// 所有字段名先过白名单再落到 SQL，未知字段返回 apperr.ErrUnknownField。
type DataQueryService interface {
	// Lookup 按单字段精确匹配；无匹配返回 apperr.ErrNoMatch。
	Lookup(field, value string) ([]model.RecordDTO, error)
	// CountByGroup 按分类字段分组计数；计数为零的分组是合法结果，不是错误。
	CountByGroup(groupField string, filters map[string]string, distinctStudents bool) ([]model.GroupCount, error)
	// Filter 按多字段合取过滤；无匹配返回 apperr.ErrNoMatch。
	Filter(filters map[string]string) ([]model.RecordDTO, error)
}

type dataQueryService struct {
	recordRepo repository.RecordRepository
}

// NewDataQueryService 创建一个新的 DataQueryService 实例。
func NewDataQueryService(recordRepo repository.RecordRepository) DataQueryService {
	return &dataQueryService{recordRepo: recordRepo}
}

func (s *dataQueryService) Lookup(field, value string) ([]model.RecordDTO, error) {
	column, ok := model.LookupFields[field]
	if !ok {
		return nil, fmt.Errorf("字段 '%s' 不可查询: %w", field, apperr.ErrUnknownField)
	}

	records, err := s.recordRepo.FindByField(column, value)
	if err != nil {
		return nil, fmt.Errorf("按字段查询记录失败: %w", err)
	}
	if len(records) == 0 {
		return nil, apperr.ErrNoMatch
	}
	log.Infof("[DataQueryService] 精确查询 %s=%s 命中 %d 条记录", field, value, len(records))
	return toDTOs(records), nil
}

func (s *dataQueryService) CountByGroup(groupField string, filters map[string]string, distinctStudents bool) ([]model.GroupCount, error) {
	if _, ok := model.GroupableFields[groupField]; !ok {
		return nil, fmt.Errorf("字段 '%s' 不可分组: %w", groupField, apperr.ErrUnknownField)
	}
	filterColumns, err := resolveFilterColumns(filters)
	if err != nil {
		return nil, err
	}

	counts, err := s.recordRepo.CountByGroup(model.LookupFields[groupField], filterColumns, distinctStudents)
	if err != nil {
		return nil, fmt.Errorf("分组计数失败: %w", err)
	}
	if counts == nil {
		counts = []model.GroupCount{}
	}
	log.Infof("[DataQueryService] 按 %s 分组计数, 分组数: %d, 去重: %v", groupField, len(counts), distinctStudents)
	return counts, nil
}

func (s *dataQueryService) Filter(filters map[string]string) ([]model.RecordDTO, error) {
	filterColumns, err := resolveFilterColumns(filters)
	if err != nil {
		return nil, err
	}

	records, err := s.recordRepo.FindByFilters(filterColumns)
	if err != nil {
		return nil, fmt.Errorf("合取过滤查询失败: %w", err)
	}
	if len(records) == 0 {
		return nil, apperr.ErrNoMatch
	}
	log.Infof("[DataQueryService] 合取过滤命中 %d 条记录, 条件数: %d", len(records), len(filters))
	return toDTOs(records), nil
}

// resolveFilterColumns 把过滤字段名映射为数据库列名，任何未知字段直接拒绝。
func resolveFilterColumns(filters map[string]string) (map[string]string, error) {
	columns := make(map[string]string, len(filters))
	for field, value := range filters {
		column, ok := model.LookupFields[field]
		if !ok {
			return nil, fmt.Errorf("字段 '%s' 不可过滤: %w", field, apperr.ErrUnknownField)
		}
		columns[column] = value
	}
	return columns, nil
}

func toDTOs(records []*model.AchievementRecord) []model.RecordDTO {
	dtos := make([]model.RecordDTO, 0, len(records))
	for _, r := range records {
		dtos = append(dtos, r.ToDTO())
	}
	return dtos
}
