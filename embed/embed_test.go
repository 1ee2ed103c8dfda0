package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smartopenai "github.com/tanishra/smartinfo/model/openai"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, Cosine([]float32{1}, []float32{1, 0}))
}

func TestHashEmbedder(t *testing.T) {
	h := NewHashEmbedder(0)
	assert.Equal(t, DefaultHashDimensions, h.Dimensions())

	vecs, err := h.Embed(context.Background(), []string{
		"Revenue grew in the third quarter",
		"revenue GREW in the third quarter!",
		"The cat sat on the mat",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	for _, v := range vecs {
		assert.Len(t, v, DefaultHashDimensions)
	}

	assert.Equal(t, vecs[0], vecs[1], "case and punctuation are ignored")
	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[0]), 1e-6)
}

func TestHashEmbedderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashEmbedder(8).Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{float64(len(req.Prompt)), 0.5, 0.25},
		})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(func(o *OllamaOptions) { o.Host = srv.URL })
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 0.5, 0.25}, {4, 0.5, 0.25}}, vecs)
	assert.Equal(t, 3, e.Dimensions())
}

func TestOpenAIEmbedder(t *testing.T) {
	var batches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		batches++

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		data := make([]map[string]any, len(req.Input))
		// Reverse order to check index-based placement.
		for i := range req.Input {
			j := len(req.Input) - 1 - i
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     j,
				"embedding": []float64{float64(len(req.Input[j]))},
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(func(o *OpenAIOptions) {
		o.BatchSize = 2
		o.Client = smartopenai.Options{APIKey: "test", BaseURL: srv.URL}
	})

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vecs)
	assert.Equal(t, 2, batches)
}
