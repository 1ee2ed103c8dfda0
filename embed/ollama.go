package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaHost is used when no host is configured.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaOptions configure an OllamaEmbedder.
type OllamaOptions struct {
	Host       string
	Model      string
	HTTPClient *http.Client
}

// OllamaEmbedder requests embeddings from a local Ollama server.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	dims   int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an OllamaEmbedder.
func NewOllamaEmbedder(optFns ...func(o *OllamaOptions)) (*OllamaEmbedder, error) {
	opts := OllamaOptions{Host: DefaultOllamaHost, Model: "nomic-embed-text"}
	for _, fn := range optFns {
		fn(&opts)
	}

	base, err := url.Parse(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", opts.Host, err)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}

	return &OllamaEmbedder{client: api.NewClient(base, hc), model: opts.Model}, nil
}

// Dimensions implements Embedder; it is known after the first call.
func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// Embed implements Embedder with one request per text.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for i, t := range texts {
		resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{Model: e.model, Prompt: t})
		if err != nil {
			return nil, fmt.Errorf("ollama embeddings: %w", err)
		}
		if e.dims != 0 && len(resp.Embedding) != e.dims {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(resp.Embedding), e.dims)
		}
		e.dims = len(resp.Embedding)
		out[i] = toFloat32(resp.Embedding)
	}

	return out, nil
}
