// Package pipeline 定义了摄取的核心流程：记录归一化与索引构建。
package pipeline

import (
	"fmt"
	"strings"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/model"
	"stu-insight-go/pkg/log"
)

// unitSourceFields 记录每个文本单元由哪些记录字段拼接而来（溯源元数据）。
const unitSourceFields = "name,student_id,email,dob,department,type,title,description,date,status,approved_by,credit_awarded"

// NormalizeStudents 把快照中的学生记录归一化为扁平记录与可检索文本单元。
// 每条成就生成一段带字段标签的自描述文本，超长时按 rune 切块。
// 缺少必填字段的记录被跳过并记日志，不中断整批；返回值 skipped 是跳过条数。
func NormalizeStudents(students []model.StudentRecord, chunkSize, chunkOverlap int) (records []*model.AchievementRecord, units []*model.TextUnit, skipped int) {
	for _, student := range students {
		for _, ach := range student.Achievements {
			if err := validateRecord(&student, &ach); err != nil {
				log.Warnf("[Normalizer] 跳过无效记录: %v", err)
				skipped++
				continue
			}

			records = append(records, &model.AchievementRecord{
				AchievementID: ach.AchievementID,
				StudentID:     student.StudentID,
				Name:          student.Name,
				Email:         student.Email,
				DOB:           student.DOB,
				Department:    student.Department,
				Type:          ach.Type,
				Title:         ach.Title,
				Description:   ach.Description,
				Date:          ach.Date,
				Status:        ach.Status,
				ApprovedBy:    ach.ApprovedBy,
				CreditAwarded: ach.CreditAwarded,
			})

			text := buildUnitText(&student, &ach)
			for chunkID, chunk := range splitText(text, chunkSize, chunkOverlap) {
				units = append(units, &model.TextUnit{
					OwnerEmail:    student.Email,
					StudentID:     student.StudentID,
					AchievementID: ach.AchievementID,
					ChunkID:       chunkID,
					TextContent:   chunk,
					SourceFields:  unitSourceFields,
				})
			}
		}
	}
	return records, units, skipped
}

// validateRecord 校验必填字段（学生标识、owner 引用、成就标识）。
func validateRecord(student *model.StudentRecord, ach *model.AchievementEntry) error {
	var reason string
	switch {
	case strings.TrimSpace(student.StudentID) == "":
		reason = "missing student identifier"
	case strings.TrimSpace(student.Email) == "":
		reason = "missing owner reference (email)"
	case strings.TrimSpace(ach.AchievementID) == "":
		reason = "missing achievement identifier"
	default:
		return nil
	}
	return &apperr.MalformedRecordError{
		StudentID:     student.StudentID,
		AchievementID: ach.AchievementID,
		Reason:        reason,
	}
}

// buildUnitText 生成带内联字段标签的文本，检索结果脱离原始记录也能自描述。
func buildUnitText(student *model.StudentRecord, ach *model.AchievementEntry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Student Name: %s. ", student.Name))
	b.WriteString(fmt.Sprintf("Student ID: %s. ", student.StudentID))
	b.WriteString(fmt.Sprintf("Email: %s. ", student.Email))
	b.WriteString(fmt.Sprintf("Date of Birth: %s. ", student.DOB))
	b.WriteString(fmt.Sprintf("Department: %s. ", student.Department))
	b.WriteString(fmt.Sprintf("Achievement: %s - %s: %s. ", ach.Type, ach.Title, ach.Description))
	b.WriteString(fmt.Sprintf("Date: %s. ", ach.Date))
	b.WriteString(fmt.Sprintf("Status: %s. ", ach.Status))
	b.WriteString(fmt.Sprintf("Approved By: %s. ", ach.ApprovedBy))
	b.WriteString(fmt.Sprintf("Credits Awarded: %g.", ach.CreditAwarded))
	return b.String()
}

// splitText 将长文本按指定大小和重叠进行切分。
func splitText(text string, chunkSize int, chunkOverlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if chunkSize <= chunkOverlap {
		chunkOverlap = 0
	}

	var chunks []string
	step := chunkSize - chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
