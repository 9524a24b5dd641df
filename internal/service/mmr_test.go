package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// 维度不一致或零向量不应 panic，返回 0
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}

// λ=1 应退化为纯相关性排序。
func TestMMRSelectPureRelevance(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},           // 正交，相关性 0
		{1, 0},           // 相关性 1
		{0.7071, 0.7071}, // 相关性 ~0.71
	}

	picked := mmrSelect(query, candidates, 3, 1.0)
	require.Equal(t, []int{1, 2, 0}, picked)
}

// λ<1 时应惩罚与已选项几乎相同的候选，优先挑多样的。
func TestMMRSelectPenalizesRedundancy(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0.9, 0.436},    // 相关性最高
		{0.9, 0.436},    // 与第一个完全重复
		{0.85, -0.527},  // 相关性略低但方向不同
	}

	picked := mmrSelect(query, candidates, 2, 0.5)
	require.Len(t, picked, 2)
	assert.Equal(t, 0, picked[0])
	// 第二个位置应跳过近重复项，选择多样的候选
	assert.Equal(t, 2, picked[1])
}

func TestMMRSelectBounds(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{{1, 0}, {0, 1}}

	// k 超过候选数时全量返回
	assert.Len(t, mmrSelect(query, candidates, 10, 0.7), 2)
	assert.Nil(t, mmrSelect(query, candidates, 0, 0.7))
	assert.Nil(t, mmrSelect(query, nil, 3, 0.7))
}

// 相同输入必须产生相同的挑选结果。
func TestMMRSelectDeterministic(t *testing.T) {
	query := []float32{0.3, 0.9, 0.1}
	candidates := [][]float32{
		{0.3, 0.9, 0.1},
		{0.9, 0.1, 0.2},
		{0.31, 0.88, 0.1},
		{0.1, 0.2, 0.95},
	}

	first := mmrSelect(query, candidates, 3, 0.7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, mmrSelect(query, candidates, 3, 0.7))
	}
}
