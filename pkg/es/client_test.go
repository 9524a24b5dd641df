package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"stu-insight-go/internal/apperr"
	"stu-insight-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestIndexer 把 Indexer 指到一个模拟 Elasticsearch 的 httptest 服务上。
// 响应必须带 X-Elastic-Product 头，否则 v8 客户端会拒绝连接。
func newTestIndexer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (Indexer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	indexer, err := NewIndexer(config.ElasticsearchConfig{
		Addresses:  srv.URL,
		IndexAlias: "achievement-units",
	}, 3)
	require.NoError(t, err)
	return indexer, srv
}

type aliasActions struct {
	Actions []map[string]struct {
		Index string `json:"index"`
		Alias string `json:"alias"`
	} `json:"actions"`
}

// 别名上挂着多个索引（例如上次切换在 add 与 remove 之间崩溃）时，
// SwapAlias 必须把所有旧成员一起摘掉，切换后别名只指向新索引。
func TestSwapAliasRemovesAllMembers(t *testing.T) {
	var captured []byte
	indexer, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/_alias/achievement-units":
			io.WriteString(w, `{
				"achievement-units-1": {"aliases": {"achievement-units": {}}},
				"achievement-units-2": {"aliases": {"achievement-units": {}}}
			}`)
		case r.Method == http.MethodPost && r.URL.Path == "/_aliases":
			captured, _ = io.ReadAll(r.Body)
			io.WriteString(w, `{"acknowledged": true}`)
		default:
			t.Errorf("意外请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	oldIndex, err := indexer.SwapAlias(context.Background(), "achievement-units-3")
	require.NoError(t, err)
	assert.Equal(t, "achievement-units-2", oldIndex)

	var req aliasActions
	require.NoError(t, json.Unmarshal(captured, &req))

	var removed []string
	var added []string
	for _, action := range req.Actions {
		if rm, ok := action["remove"]; ok {
			assert.Equal(t, "achievement-units", rm.Alias)
			removed = append(removed, rm.Index)
		}
		if add, ok := action["add"]; ok {
			assert.Equal(t, "achievement-units", add.Alias)
			added = append(added, add.Index)
		}
	}
	assert.ElementsMatch(t, []string{"achievement-units-1", "achievement-units-2"}, removed)
	assert.Equal(t, []string{"achievement-units-3"}, added)
}

// 首次构建时别名还不存在：切换只做 add，返回的旧索引名为空。
func TestSwapAliasFirstBuild(t *testing.T) {
	var captured []byte
	indexer, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/_alias/achievement-units":
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error": "alias missing", "status": 404}`)
		case r.Method == http.MethodPost && r.URL.Path == "/_aliases":
			captured, _ = io.ReadAll(r.Body)
			io.WriteString(w, `{"acknowledged": true}`)
		default:
			t.Errorf("意外请求: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	oldIndex, err := indexer.SwapAlias(context.Background(), "achievement-units-1")
	require.NoError(t, err)
	assert.Empty(t, oldIndex)

	var req aliasActions
	require.NoError(t, json.Unmarshal(captured, &req))
	require.Len(t, req.Actions, 1)
	assert.Equal(t, "achievement-units-1", req.Actions[0]["add"].Index)
}

func TestResolveAliasMissingIndex(t *testing.T) {
	indexer, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error": "alias missing", "status": 404}`)
	})

	_, err := indexer.ResolveAlias(context.Background())
	assert.ErrorIs(t, err, apperr.ErrIndexNotBuilt)
}

// 同一别名下多代并存时解析到最新的一代。
func TestResolveAliasPicksLatestGeneration(t *testing.T) {
	indexer, _ := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"achievement-units-2": {"aliases": {"achievement-units": {}}},
			"achievement-units-1": {"aliases": {"achievement-units": {}}}
		}`)
	})

	name, err := indexer.ResolveAlias(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "achievement-units-2", name)
}
