package pipeline

import (
	"strings"
	"testing"

	"stu-insight-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStudent() model.StudentRecord {
	return model.StudentRecord{
		Name:       "Aisha Khan",
		StudentID:  "STU1001",
		Email:      "aisha.khan@example.edu",
		DOB:        "2003-04-12",
		Department: "Computer Science",
		Achievements: []model.AchievementEntry{
			{
				AchievementID: "ACH2001",
				Type:          "certification",
				Title:         "Cloud Fundamentals",
				Description:   "Completed the cloud fundamentals certification track",
				Date:          "2024-11-02",
				Status:        "approved",
				ApprovedBy:    "Dr. Mehta",
				CreditAwarded: 2,
			},
		},
	}
}

// 每条成就应生成一条扁平记录与至少一个带字段标签的文本单元。
func TestNormalizeStudents(t *testing.T) {
	records, units, skipped := NormalizeStudents([]model.StudentRecord{sampleStudent()}, 500, 50)

	require.Len(t, records, 1)
	require.NotEmpty(t, units)
	assert.Equal(t, 0, skipped)

	rec := records[0]
	assert.Equal(t, "STU1001", rec.StudentID)
	assert.Equal(t, "Computer Science", rec.Department)
	assert.Equal(t, "certification", rec.Type)
	assert.Equal(t, 2.0, rec.CreditAwarded)

	unit := units[0]
	assert.Equal(t, "aisha.khan@example.edu", unit.OwnerEmail)
	assert.Equal(t, "STU1001", unit.StudentID)
	assert.Equal(t, "ACH2001", unit.AchievementID)
	assert.Equal(t, 0, unit.ChunkID)
	// 文本脱离原始记录也应自描述：字段名内联在文本里
	assert.Contains(t, unit.TextContent, "Student Name: Aisha Khan.")
	assert.Contains(t, unit.TextContent, "Student ID: STU1001.")
	assert.Contains(t, unit.TextContent, "Achievement: certification - Cloud Fundamentals:")
	assert.Contains(t, unit.TextContent, "Credits Awarded: 2.")
	assert.Equal(t, unitSourceFields, unit.SourceFields)
}

// 缺少必填字段的记录应跳过并计数，不影响同批其他记录。
func TestNormalizeStudentsSkipsMalformed(t *testing.T) {
	bad := sampleStudent()
	bad.StudentID = ""
	good := sampleStudent()
	good.StudentID = "STU1002"
	good.Email = "b@example.edu"

	records, units, skipped := NormalizeStudents([]model.StudentRecord{bad, good}, 500, 50)

	assert.Equal(t, 1, skipped)
	require.Len(t, records, 1)
	assert.Equal(t, "STU1002", records[0].StudentID)
	require.Len(t, units, 1)
	assert.Equal(t, "STU1002", units[0].StudentID)
}

func TestNormalizeStudentsSkipsMissingAchievementID(t *testing.T) {
	s := sampleStudent()
	s.Achievements[0].AchievementID = "  "

	records, units, skipped := NormalizeStudents([]model.StudentRecord{s}, 500, 50)
	assert.Empty(t, records)
	assert.Empty(t, units)
	assert.Equal(t, 1, skipped)
}

// 长描述应切块且块序号连续、相邻块有重叠。
func TestNormalizeStudentsChunksLongText(t *testing.T) {
	s := sampleStudent()
	s.Achievements[0].Description = strings.Repeat("a very long description ", 60)

	_, units, _ := NormalizeStudents([]model.StudentRecord{s}, 200, 20)
	require.Greater(t, len(units), 1)
	for i, unit := range units {
		assert.Equal(t, i, unit.ChunkID)
		assert.Equal(t, "ACH2001", unit.AchievementID)
	}
}

func TestSplitText(t *testing.T) {
	chunks := splitText(strings.Repeat("x", 250), 100, 10)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	// 最后一块是剩余部分：250 - 2*90 = 70
	assert.Len(t, chunks[2], 70)

	assert.Nil(t, splitText("", 100, 10))

	// overlap >= chunkSize 时降级为不重叠切分
	chunks = splitText(strings.Repeat("y", 30), 10, 10)
	require.Len(t, chunks, 3)
}
