package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "nomic-embed-text", req.Model)
		require.Equal(t, []string{"alpha", "beta"}, req.Input)

		resp := embedResponse{Embeddings: [][]float64{
			{0.1, 0.2, 0.3},
			{0.4, 0.5, 0.6},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	worker := NewWorker(Config{BaseURL: server.URL})

	vectors, err := worker.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, float32(0.2), vectors[0][1], 1e-6)
	assert.InDelta(t, float32(0.6), vectors[1][2], 1e-6)
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	worker := NewWorker(Config{BaseURL: "http://127.0.0.1:1"})

	vectors, err := worker.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedBatch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	worker := NewWorker(Config{BaseURL: server.URL})

	_, err := worker.EmbedBatch(context.Background(), []string{"alpha"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	worker := NewWorker(Config{BaseURL: server.URL})
	assert.NoError(t, worker.Ping(context.Background()))
}

func TestPing_Unreachable(t *testing.T) {
	worker := NewWorker(Config{BaseURL: "http://127.0.0.1:1"})
	assert.Error(t, worker.Ping(context.Background()))
}

func TestRuntimeInfo(t *testing.T) {
	worker := NewWorker(Config{})

	info := worker.RuntimeInfo()
	assert.Equal(t, driven.BackendAccelerated, info.SelectedBackend)
	assert.Equal(t, DefaultModel, info.Model)
	assert.Equal(t, DefaultDimensions, info.Dimensions)
}
