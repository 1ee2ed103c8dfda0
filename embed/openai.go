package embed

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	smartopenai "github.com/tanishra/smartinfo/model/openai"
)

// OpenAIOptions configure an OpenAIEmbedder.
type OpenAIOptions struct {
	// Model is the embedding model, or the deployment name on Azure.
	Model string
	// Dimensions requests shortened vectors when supported; zero keeps the
	// model default.
	Dimensions int
	// Client carries credentials and the Azure endpoint, shared with the
	// chat adapter.
	Client smartopenai.Options
	// BatchSize bounds inputs per request.
	BatchSize int
}

// OpenAIEmbedder calls the OpenAI (or Azure OpenAI) embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	opts   OpenAIOptions
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAIEmbedder.
func NewOpenAIEmbedder(optFns ...func(o *OpenAIOptions)) *OpenAIEmbedder {
	opts := OpenAIOptions{
		Model:     string(openai.EmbeddingModelTextEmbedding3Small),
		BatchSize: 64,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}

	client := openai.NewClient(smartopenai.ClientOptions(opts.Client)...)

	return &OpenAIEmbedder{client: &client, opts: opts}
}

// Dimensions implements Embedder.
func (e *OpenAIEmbedder) Dimensions() int { return e.opts.Dimensions }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		batch := texts[start:end]

		params := openai.EmbeddingNewParams{
			Model: openai.EmbeddingModel(e.opts.Model),
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		}
		if e.opts.Dimensions > 0 {
			params.Dimensions = openai.Int(int64(e.opts.Dimensions))
		}

		resp, err := e.client.Embeddings.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrDimensionMismatch, len(resp.Data), len(batch))
		}

		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || int(d.Index) >= len(batch) {
				return nil, fmt.Errorf("%w: index %d out of range", ErrDimensionMismatch, d.Index)
			}
			vecs[d.Index] = toFloat32(d.Embedding)
		}
		out = append(out, vecs...)
	}

	return out, nil
}
