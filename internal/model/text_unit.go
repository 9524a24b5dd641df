package model

// TextUnit 对应数据库中的 text_units 表，是向量索引的元数据侧表。
// 一个文本单元只属于一个学生，可追溯到生成它的那条成就记录。
type TextUnit struct {
	UnitID        uint   `gorm:"primaryKey;autoIncrement;column:unit_id"`
	OwnerEmail    string `gorm:"type:varchar(100);not null;index;column:owner_email"`
	StudentID     string `gorm:"type:varchar(32);not null;index;column:student_id"`
	AchievementID string `gorm:"type:varchar(32);not null;column:achievement_id"`
	ChunkID       int    `gorm:"not null;column:chunk_id"`
	TextContent   string `gorm:"type:text;column:text_content"`
	SourceFields  string `gorm:"type:varchar(255);column:source_fields"`
}

func (TextUnit) TableName() string {
	return "text_units"
}

// VectorDoc 代表存储在 Elasticsearch 中的向量条目，与 TextUnit 一一对应。
type VectorDoc struct {
	VectorID      string    `json:"vector_id"`
	OwnerEmail    string    `json:"owner_email"`
	StudentID     string    `json:"student_id"`
	AchievementID string    `json:"achievement_id"`
	ChunkID       int       `json:"chunk_id"`
	TextContent   string    `json:"text_content"`
	Vector        []float32 `json:"vector"`
	ModelVersion  string    `json:"model_version"`
	SourceFields  string    `json:"source_fields"`
}

// RetrievedUnit 是检索返回的 (文本单元, 相关性得分) 对。
type RetrievedUnit struct {
	Doc   VectorDoc `json:"doc"`
	Score float64   `json:"score"`
}
