package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEmbedding(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{
		APIKey:         "test-key",
		BaseURL:        srv.URL,
		Model:          "text-embedding-3-small",
		Dimensions:     3,
		TimeoutSeconds: 5,
	})

	vector, err := client.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	assert.Equal(t, "/embeddings", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "text-embedding-3-small", gotReq["model"])
}

// 非 200 与空向量都应包成 embedding 的 ServiceError。
func TestCreateEmbeddingFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(config.EmbeddingConfig{BaseURL: srv.URL, TimeoutSeconds: 5})
	_, err := client.CreateEmbedding(context.Background(), "hello")
	var svcErr *apperr.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "embedding", svcErr.Service)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	}))
	defer empty.Close()

	client = NewClient(config.EmbeddingConfig{BaseURL: empty.URL, TimeoutSeconds: 5})
	_, err = client.CreateEmbedding(context.Background(), "hello")
	require.ErrorAs(t, err, &svcErr)
}
