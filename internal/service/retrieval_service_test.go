package service

import (
	"context"
	"testing"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"
	"stu-insight-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder 返回固定向量。
type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

// fakeIndexer 是确定性的 es.Indexer 假实现，只实现检索侧需要的方法。
type fakeIndexer struct {
	aliasIndex string
	aliasErr   error
	candidates []model.RetrievedUnit
	lastField  string
	lastValue  string
	lastFetchK int
}

func (f *fakeIndexer) CreateGeneration(_ context.Context) (string, error) { return "", nil }
func (f *fakeIndexer) BulkIndex(_ context.Context, _ string, _ []model.VectorDoc) error {
	return nil
}
func (f *fakeIndexer) SwapAlias(_ context.Context, _ string) (string, error) { return "", nil }
func (f *fakeIndexer) ResolveAlias(_ context.Context) (string, error) {
	return f.aliasIndex, f.aliasErr
}
func (f *fakeIndexer) DeleteIndex(_ context.Context, _ string) error        { return nil }
func (f *fakeIndexer) PruneGenerations(_ context.Context, _ ...string) error { return nil }
func (f *fakeIndexer) SearchOwnerUnits(_ context.Context, _ string, ownerField, ownerValue string, _ []float32, fetchK int) ([]model.RetrievedUnit, error) {
	f.lastField = ownerField
	f.lastValue = ownerValue
	f.lastFetchK = fetchK
	return f.candidates, nil
}

func retrievalCfg() config.RetrievalConfig {
	return config.RetrievalConfig{TopK: 2, FetchK: 10, MMRLambda: 0.7}
}

func candidateUnits() []model.RetrievedUnit {
	return []model.RetrievedUnit{
		{Doc: model.VectorDoc{VectorID: "u1", Vector: []float32{1, 0}, TextContent: "hackathon win"}},
		{Doc: model.VectorDoc{VectorID: "u2", Vector: []float32{0.9, 0.436}, TextContent: "certification"}},
		{Doc: model.VectorDoc{VectorID: "u3", Vector: []float32{0, 1}, TextContent: "volunteering"}},
	}
}

func TestRetrieveSelectsTopKWithScores(t *testing.T) {
	indexer := &fakeIndexer{aliasIndex: "achievement-units-1", candidates: candidateUnits()}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1, 0}}, indexer, retrievalCfg())

	units, err := svc.Retrieve(context.Background(), "what has this student done", "STU1001", 0)
	require.NoError(t, err)
	require.Len(t, units, 2)

	// 最相关的候选排在首位，得分是对查询向量的余弦相似度
	assert.Equal(t, "u1", units[0].Doc.VectorID)
	assert.InDelta(t, 1.0, units[0].Score, 1e-6)
	assert.Equal(t, 10, indexer.lastFetchK)
}

// owner 引用决定过滤字段：含 @ 走邮箱，否则走学号。
func TestRetrieveOwnerFieldSelection(t *testing.T) {
	indexer := &fakeIndexer{aliasIndex: "achievement-units-1", candidates: candidateUnits()}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1, 0}}, indexer, retrievalCfg())

	_, err := svc.Retrieve(context.Background(), "q", "aisha.khan@example.edu", 2)
	require.NoError(t, err)
	assert.Equal(t, "owner_email", indexer.lastField)
	assert.Equal(t, "aisha.khan@example.edu", indexer.lastValue)

	_, err = svc.Retrieve(context.Background(), "q", "STU1001", 2)
	require.NoError(t, err)
	assert.Equal(t, "student_id", indexer.lastField)
}

// 索引未建必须原样透传 ErrIndexNotBuilt。
func TestRetrieveIndexNotBuilt(t *testing.T) {
	indexer := &fakeIndexer{aliasErr: apperr.ErrIndexNotBuilt}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1, 0}}, indexer, retrievalCfg())

	_, err := svc.Retrieve(context.Background(), "q", "STU1001", 2)
	assert.ErrorIs(t, err, apperr.ErrIndexNotBuilt)
}

// 学生没有文本单元是合法的空结果，不是错误。
func TestRetrieveEmptyCandidates(t *testing.T) {
	indexer := &fakeIndexer{aliasIndex: "achievement-units-1"}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{1, 0}}, indexer, retrievalCfg())

	units, err := svc.Retrieve(context.Background(), "q", "STU9999", 2)
	require.NoError(t, err)
	assert.NotNil(t, units)
	assert.Empty(t, units)
}

func TestRetrieveEmbeddingFailure(t *testing.T) {
	indexer := &fakeIndexer{aliasIndex: "achievement-units-1", candidates: candidateUnits()}
	svc := NewRetrievalService(&fakeEmbedder{err: apperr.NewServiceError("embedding", assert.AnError)}, indexer, retrievalCfg())

	_, err := svc.Retrieve(context.Background(), "q", "STU1001", 2)
	var svcErr *apperr.ServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "embedding", svcErr.Service)
}
