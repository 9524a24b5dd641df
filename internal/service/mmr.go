package service

import "math"

// cosineSimilarity 计算两个向量的余弦相似度，维度不一致或零向量时返回 0。
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// mmrScored 是 MMR 挑选过程中的候选项，relevance 对查询向量预先算好。
type mmrScored struct {
	index     int
	relevance float64
}

// mmrSelect 按最大边际相关性从候选集中挑出至多 k 个互不重复的下标。
// 每轮选出使 λ·rel(c,q) − (1−λ)·max_sim(c,已选) 最大的候选；
// λ=1 退化为纯相关性排序。给定相同候选集与 λ，结果是确定的。
func mmrSelect(queryVector []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	remaining := make([]mmrScored, 0, len(candidates))
	for i, v := range candidates {
		remaining = append(remaining, mmrScored{index: i, relevance: cosineSimilarity(queryVector, v)})
	}

	selected := make([]int, 0, k)
	for len(selected) < k {
		bestPos := -1
		bestScore := math.Inf(-1)
		for pos, cand := range remaining {
			// 与已选集合的最大相似度（冗余惩罚项）
			maxSim := 0.0
			for _, sel := range selected {
				if sim := cosineSimilarity(candidates[cand.index], candidates[sel]); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*cand.relevance - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		selected = append(selected, remaining[bestPos].index)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return selected
}
