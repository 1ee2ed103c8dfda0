package smartinfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanishra/smartinfo/config"
	"github.com/tanishra/smartinfo/memory"
	"github.com/tanishra/smartinfo/model"
	"github.com/tanishra/smartinfo/session"
	"github.com/tanishra/smartinfo/tool"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.VectorStore.Path = filepath.Join(dir, "index.db")
	cfg.Memory.Path = filepath.Join(dir, "memory.db")
	cfg.Log.Level = "error"
	return cfg
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.Overlap = cfg.Ingest.ChunkSize

	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, config.ErrInvalid)
}

func TestAsk_WithoutOracle(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Backend = config.ProviderMemory
	cfg.VectorStore.Provider = config.ProviderMemory

	app, err := New(context.Background(), cfg, func(o *Options) { o.Tools = []tool.Tool{} })
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Ask(context.Background(), session.DefaultSessionID, "hello", false)
	require.ErrorIs(t, err, ErrOracleUnavailable)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestAsk_RecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Backend = config.ProviderMemory
	cfg.VectorStore.Provider = config.ProviderMemory

	oracle := model.NewScriptedModel(model.TextStep("Hello there."))
	app, err := New(context.Background(), cfg, func(o *Options) {
		o.Oracle = oracle
		o.Tools = []tool.Tool{}
	})
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	res, err := app.Ask(ctx, "s1", "hi", false)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", res.Answer)
	assert.NoError(t, res.Err)

	history, err := app.History(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, history, "User: hi")
	assert.Contains(t, history, "Assistant: Hello there.")

	other, err := app.History(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, memory.EmptyHistory, other)

	require.NoError(t, app.Clear(ctx, "s1"))
	history, err = app.History(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, memory.EmptyHistory, history)
}

func TestAsk_DocumentsFromIngest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.Backend = config.ProviderMemory
	cfg.VectorStore.Provider = config.ProviderMemory

	oracle := model.NewScriptedModel(model.TextStep("The launch is in March."))
	app, err := New(context.Background(), cfg, func(o *Options) {
		o.Oracle = oracle
		o.Tools = []tool.Tool{}
	})
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	path := writeFile(t, "plan.txt", "The product launch is scheduled for March in Berlin.")
	reports, err := app.Ingest(ctx, path)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Chunks)

	res, err := app.Ask(ctx, session.DefaultSessionID, "when is the product launch", true)
	require.NoError(t, err)
	require.NotEmpty(t, res.Context)
	assert.Equal(t, "plan.txt", res.Context[0].Source)

	reqs := oracle.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "scheduled for March in Berlin")
}

func TestApp_SQLitePersistsAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	path := writeFile(t, "notes.txt", "Quarterly revenue grew by twelve percent.")

	first, err := New(ctx, cfg, func(o *Options) {
		o.Oracle = model.NewScriptedModel(model.TextStep("Noted."))
		o.Tools = []tool.Tool{}
	})
	require.NoError(t, err)

	_, err = first.Ingest(ctx, path)
	require.NoError(t, err)
	_, err = first.Ask(ctx, session.DefaultSessionID, "remember this", false)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := New(ctx, cfg, func(o *Options) { o.Tools = []tool.Tool{} })
	require.NoError(t, err)
	defer second.Close()

	n, err := second.Indexer.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	history, err := second.History(ctx, session.DefaultSessionID)
	require.NoError(t, err)
	assert.Contains(t, history, "User: remember this")
}
