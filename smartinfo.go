// Package smartinfo wires the configuration into a ready-to-use App: tool
// registry, session-scoped memory, document ingestion, retrieval and the
// orchestrator. Front ends such as the CLI talk to the App only.
//
// Every capability can be overridden through Options, which is how tests
// substitute a scripted oracle or an in-memory vector store.
package smartinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/tanishra/smartinfo/chunk"
	"github.com/tanishra/smartinfo/config"
	"github.com/tanishra/smartinfo/embed"
	"github.com/tanishra/smartinfo/ingest"
	"github.com/tanishra/smartinfo/logging"
	"github.com/tanishra/smartinfo/memory"
	"github.com/tanishra/smartinfo/model"
	"github.com/tanishra/smartinfo/model/anthropic"
	"github.com/tanishra/smartinfo/model/openai"
	"github.com/tanishra/smartinfo/orchestrator"
	"github.com/tanishra/smartinfo/retrieval"
	"github.com/tanishra/smartinfo/session"
	"github.com/tanishra/smartinfo/tool"
	"github.com/tanishra/smartinfo/tools"
	"github.com/tanishra/smartinfo/vectorstore"
)

// ErrOracleUnavailable is returned by Ask when no reasoning oracle could be
// configured, usually because no API key is set.
var ErrOracleUnavailable = fmt.Errorf("%w: no reasoning oracle configured (set OPENAI_API_KEY, AZURE_OPENAI_KEY or ANTHROPIC_API_KEY)", config.ErrInvalid)

// Options override capabilities that would otherwise be built from the
// configuration.
type Options struct {
	Oracle      model.Model
	Embedder    embed.Embedder
	VectorStore vectorstore.Store
	Persister   memory.Persister
	OCR         ingest.OCR
	Rasterizer  ingest.Rasterizer
	// Tools replaces the default upstream tool set when non-nil.
	Tools  []tool.Tool
	Logger *logging.StructuredLogger
}

// App is the assembled application.
type App struct {
	Config       config.Config
	Registry     *tool.Registry
	Sessions     *session.Manager
	Indexer      *retrieval.Indexer
	Pipeline     *retrieval.Pipeline
	Orchestrator *orchestrator.Orchestrator

	logger  *logging.StructuredLogger
	closers []func() error
}

// New validates cfg and builds an App. Configuration problems are returned
// wrapped in config.ErrInvalid.
func New(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*App, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewStructuredLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)
	}

	app := &App{Config: cfg, logger: logger}

	if err := app.buildTools(opts); err != nil {
		return nil, err
	}
	if err := app.buildSessions(ctx, opts); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.buildRetrieval(ctx, opts); err != nil {
		_ = app.Close()
		return nil, err
	}

	oracle := opts.Oracle
	if oracle == nil {
		oracle = buildOracle(cfg)
	}
	if oracle != nil {
		app.Orchestrator = orchestrator.New(oracle, app.Registry, func(o *orchestrator.Options) {
			o.MaxIterations = cfg.Agent.MaxIterations
			o.HistoryTurns = cfg.Agent.HistoryTurns
			o.TopK = cfg.Agent.TopK
			o.QueryTimeout = cfg.Agent.QueryTimeout.Duration
			o.OracleTimeout = cfg.Oracle.Timeout.Duration
			o.AutoRetrieve = cfg.Agent.AutoRetrieve
			o.Retriever = app.Indexer
			o.Logger = logger.WithComponent("orchestrator")
		})
	} else {
		logger.Debug("oracle.unavailable", "provider", cfg.Oracle.Provider)
	}

	return app, nil
}

func (a *App) buildTools(opts Options) error {
	cfg := a.Config
	a.Registry = tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Timeout = cfg.Tools.Timeout.Duration
		o.Logger = a.logger.WithComponent("tool")
	})

	if opts.Tools != nil {
		for _, t := range opts.Tools {
			if err := a.Registry.Register(t); err != nil {
				return err
			}
		}
		return nil
	}

	creds := tools.Credentials{
		WeatherstackKey:     cfg.Secrets.WeatherstackKey,
		CoinMarketCapKey:    cfg.Secrets.CoinMarketCapKey,
		NumVerifyKey:        cfg.Secrets.NumVerifyKey,
		AmadeusClientID:     cfg.Secrets.AmadeusClientID,
		AmadeusClientSecret: cfg.Secrets.AmadeusClientSecret,
	}
	names, err := tools.Register(a.Registry, creds, func(o *tools.Options) {
		o.RatePerSecond = cfg.Tools.RatePerSecond
		o.Burst = cfg.Tools.Burst
		o.Logger = a.logger.WithComponent("tools")
	})
	if err != nil {
		return err
	}

	a.logger.Debug("tools.registered", "tools", names)
	return nil
}

func (a *App) buildSessions(ctx context.Context, opts Options) error {
	cfg := a.Config
	persister := opts.Persister

	if persister == nil && cfg.Memory.Backend == config.ProviderSQLite {
		if err := ensureDir(cfg.Memory.Path); err != nil {
			return err
		}
		p := memory.NewSQLitePersister(cfg.Memory.Path)
		if err := p.Init(ctx); err != nil {
			return fmt.Errorf("open memory database: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		persister = p
	}

	a.Sessions = session.NewManager(func(o *session.Options) {
		o.MemoryCapacity = cfg.Agent.MemoryCapacity
		o.Persister = persister
		o.Logger = a.logger.WithComponent("session")
	})
	return nil
}

func (a *App) buildRetrieval(ctx context.Context, opts Options) error {
	cfg := a.Config

	embedder := opts.Embedder
	if embedder == nil {
		e, err := buildEmbedder(cfg)
		if err != nil {
			return err
		}
		embedder = e
	}

	store := opts.VectorStore
	if store == nil {
		s, err := buildVectorStore(ctx, cfg, embedder)
		if err != nil {
			return err
		}
		store = s
	}
	a.closers = append(a.closers, store.Close)

	a.Indexer = retrieval.NewIndexer(embedder, store, func(o *retrieval.IndexerOptions) {
		o.Logger = a.logger.WithComponent("retrieval")
	})

	chunker, err := chunk.New(cfg.Ingest.ChunkSize, cfg.Ingest.Overlap)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	parser := ingest.NewParser(func(o *ingest.Options) {
		if opts.OCR != nil {
			o.OCR = opts.OCR
		} else {
			o.OCR = ingest.NewTesseract(cfg.Ingest.TesseractPath, cfg.Ingest.DPI)
		}
		if opts.Rasterizer != nil {
			o.Rasterizer = opts.Rasterizer
		} else {
			o.Rasterizer = ingest.NewPdftoppm(cfg.Ingest.PdftoppmPath, cfg.Ingest.DPI)
		}
		o.Workers = cfg.Ingest.OCRWorkers
		o.OCRTimeout = cfg.Ingest.OCRTimeout.Duration
		o.MinOCRChars = cfg.Ingest.MinPageChars
		o.MaxOCRPages = cfg.Ingest.MaxOCRPages
		o.MaxImagePixels = cfg.Ingest.MaxImagePixels
		o.Logger = a.logger.WithComponent("ingest")
	})

	a.Pipeline = retrieval.NewPipeline(parser, chunker, a.Indexer, func(o *retrieval.PipelineOptions) {
		o.Logger = a.logger.WithComponent("ingest")
	})
	return nil
}

func buildOracle(cfg config.Config) model.Model {
	key := cfg.OracleAPIKey()
	if key == "" {
		return nil
	}

	switch cfg.Oracle.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Oracle.Model)
			o.Temperature = cfg.Oracle.Temperature
			o.MaxTokens = int64(cfg.Oracle.MaxTokens)
			o.APIKey = key
		})
	default:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Oracle.Model
			o.Temperature = cfg.Oracle.Temperature
			o.MaxCompletionTokens = int64(cfg.Oracle.MaxTokens)
			o.APIKey = key
			o.BaseURL = cfg.Oracle.BaseURL
			if cfg.Oracle.Provider == config.ProviderAzure {
				o.AzureEndpoint = cfg.Oracle.AzureEndpoint
				o.AzureAPIVersion = cfg.Oracle.AzureAPIVersion
			}
		})
	}
}

func buildEmbedder(cfg config.Config) (embed.Embedder, error) {
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI, config.ProviderAzure:
		client := openai.Options{APIKey: cfg.Secrets.OpenAIAPIKey, BaseURL: cfg.Oracle.BaseURL}
		if cfg.Embedding.Provider == config.ProviderAzure {
			client = openai.Options{
				APIKey:          cfg.Secrets.AzureOpenAIKey,
				AzureEndpoint:   cfg.Oracle.AzureEndpoint,
				AzureAPIVersion: cfg.Oracle.AzureAPIVersion,
			}
		}
		if client.APIKey == "" {
			return nil, fmt.Errorf("%w: embedding provider %q needs an API key", config.ErrInvalid, cfg.Embedding.Provider)
		}
		return embed.NewOpenAIEmbedder(func(o *embed.OpenAIOptions) {
			o.Model = cfg.Embedding.Model
			o.Dimensions = cfg.Embedding.Dimensions
			o.Client = client
		}), nil
	case config.ProviderOllama:
		e, err := embed.NewOllamaEmbedder(func(o *embed.OllamaOptions) {
			if cfg.Embedding.OllamaHost != "" {
				o.Host = cfg.Embedding.OllamaHost
			}
			if cfg.Embedding.Model != "" {
				o.Model = cfg.Embedding.Model
			}
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return embed.NewHashEmbedder(cfg.Embedding.Dimensions), nil
	}
}

func buildVectorStore(ctx context.Context, cfg config.Config, embedder embed.Embedder) (vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case config.ProviderMemory:
		return vectorstore.NewMemoryStore(), nil
	case config.ProviderQdrant:
		dims := cfg.Embedding.Dimensions
		if dims == 0 {
			dims = embedder.Dimensions()
		}
		if dims == 0 {
			return nil, fmt.Errorf("%w: embedding.dimensions is required for the qdrant vector store", config.ErrInvalid)
		}
		s, err := vectorstore.NewQdrantStore(ctx, func(o *vectorstore.QdrantOptions) {
			o.Host = cfg.VectorStore.Host
			o.Port = cfg.VectorStore.Port
			o.Collection = cfg.VectorStore.Collection
			o.Dimensions = dims
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant: %w", err)
		}
		return s, nil
	default:
		if err := ensureDir(cfg.VectorStore.Path); err != nil {
			return nil, err
		}
		s := vectorstore.NewSQLiteStore(cfg.VectorStore.Path)
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("open index database: %w", err)
		}
		return s, nil
	}
}

func ensureDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Ask answers query in the session sessionID.
func (a *App) Ask(ctx context.Context, sessionID, query string, documents bool) (orchestrator.Result, error) {
	if a.Orchestrator == nil {
		return orchestrator.Result{}, ErrOracleUnavailable
	}

	sess, err := a.Sessions.Open(ctx, sessionID)
	if err != nil {
		return orchestrator.Result{}, err
	}

	return a.Orchestrator.Ask(ctx, sess.Memory, query, func(o *orchestrator.AskOptions) {
		o.Documents = documents
	}), nil
}

// History renders the conversation log of sessionID.
func (a *App) History(ctx context.Context, sessionID string) (string, error) {
	sess, err := a.Sessions.Open(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.Memory.History(), nil
}

// Clear empties the conversation log of sessionID.
func (a *App) Clear(ctx context.Context, sessionID string) error {
	sess, err := a.Sessions.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Memory.Clear()
	return nil
}

// Ingest indexes the given files.
func (a *App) Ingest(ctx context.Context, paths ...string) ([]retrieval.Report, error) {
	return a.Pipeline.IngestFiles(ctx, paths...)
}

// Close releases databases and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
