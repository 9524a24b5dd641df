// Package model 定义了与数据库表对应的 Go 结构体以及查询侧的数据传输对象。
package model

// AchievementRecord 对应数据库中的 achievement_records 表。
// 每行是一条扁平化的学生成就记录（学生字段冗余到每条成就上），
// 整表在每次摄取时从同一份快照全量替换。
type AchievementRecord struct {
	ID            uint    `gorm:"primaryKey;autoIncrement;column:id"`
	AchievementID string  `gorm:"type:varchar(32);not null;index;column:achievement_id"`
	StudentID     string  `gorm:"type:varchar(32);not null;index;column:student_id"`
	Name          string  `gorm:"type:varchar(100);column:name"`
	Email         string  `gorm:"type:varchar(100);not null;index;column:email"`
	DOB           string  `gorm:"type:varchar(20);column:dob"`
	Department    string  `gorm:"type:varchar(50);index;column:department"`
	Type          string  `gorm:"type:varchar(50);column:type"`
	Title         string  `gorm:"type:varchar(200);column:title"`
	Description   string  `gorm:"type:text;column:description"`
	Date          string  `gorm:"type:varchar(20);column:date"`
	Status        string  `gorm:"type:varchar(20);column:status"`
	ApprovedBy    string  `gorm:"type:varchar(100);column:approved_by"`
	CreditAwarded float64 `gorm:"column:credit_awarded"`
}

func (AchievementRecord) TableName() string {
	return "achievement_records"
}

// RecordDTO 是返回给前端的记录视图，裁掉了内部主键等字段。
type RecordDTO struct {
	StudentID     string  `json:"studentId"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Department    string  `json:"department"`
	AchievementID string  `json:"achievementId"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	CreditAwarded float64 `json:"creditAwarded"`
}

// ToDTO 把数据库记录转换为对外 DTO。
func (r *AchievementRecord) ToDTO() RecordDTO {
	return RecordDTO{
		StudentID:     r.StudentID,
		Name:          r.Name,
		Email:         r.Email,
		Department:    r.Department,
		AchievementID: r.AchievementID,
		Type:          r.Type,
		Title:         r.Title,
		Date:          r.Date,
		Status:        r.Status,
		CreditAwarded: r.CreditAwarded,
	}
}

// GroupCount 是分组统计的单行结果。
type GroupCount struct {
	Group string `json:"group"`
	Count int64  `json:"count"`
}
