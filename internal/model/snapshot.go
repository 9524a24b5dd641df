package model

// StudentRecord 对应摄取快照 JSON 中的一个学生条目（含其全部成就）。
type StudentRecord struct {
	Name         string             `json:"name"`
	StudentID    string             `json:"student_id"`
	Email        string             `json:"email"`
	DOB          string             `json:"dob"`
	Department   string             `json:"department"`
	Achievements []AchievementEntry `json:"achievements"`
}

// AchievementEntry 对应快照 JSON 中的单条成就。
type AchievementEntry struct {
	AchievementID string  `json:"achievement_id"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	ApprovedBy    string  `json:"approved_by"`
	CreditAwarded float64 `json:"credit_awarded"`
}
