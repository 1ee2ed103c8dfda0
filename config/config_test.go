package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SMARTINFO_HOME", "SMARTINFO_MAX_ITERATIONS", "SMARTINFO_ORACLE_PROVIDER", "SMARTINFO_MODEL",
	"SMARTINFO_CHUNK_SIZE", "SMARTINFO_EMBEDDING_PROVIDER", "SMARTINFO_VECTOR_STORE", "SMARTINFO_OCR_TIMEOUT",
	"AZURE_OPENAI_ENDPOINT", "AZURE_DEPLOYMENT_NAME", "AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME",
	"AZURE_OPENAI_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "WEATHERSTACK_API",
	"OLLAMA_HOST", "QDRANT_HOST", "QDRANT_PORT",
}

// isolate runs the test in an empty directory with a clean environment.
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv("SMARTINFO_HOME", dir)
	t.Chdir(dir)

	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDefaultIsValid(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.Overlap)
	assert.Equal(t, 8*time.Second, cfg.Ingest.OCRTimeout.Duration)
	assert.Equal(t, ProviderOpenAI, cfg.Oracle.Provider)
	assert.Equal(t, ProviderHash, cfg.Embedding.Provider, "no credentials falls back to offline embeddings")
	assert.Equal(t, ProviderSQLite, cfg.VectorStore.Provider)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[agent]
max_iterations = 3
query_timeout = "45s"

[ingest]
chunk_size = 500
overlap = 50
ocr_timeout = "3s"

[vector_store]
provider = "memory"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Agent.MaxIterations)
	assert.Equal(t, 45*time.Second, cfg.Agent.QueryTimeout.Duration)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.Overlap)
	assert.Equal(t, 3*time.Second, cfg.Ingest.OCRTimeout.Duration)
	assert.Equal(t, ProviderMemory, cfg.VectorStore.Provider)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Agent.HistoryTurns)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[agent\nmax_iterations = ")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[agent]\nmax_iterations = 3\n")
	t.Setenv("SMARTINFO_MAX_ITERATIONS", "7")
	t.Setenv("SMARTINFO_OCR_TIMEOUT", "12s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Agent.MaxIterations)
	assert.Equal(t, 12*time.Second, cfg.Ingest.OCRTimeout.Duration)
}

func TestDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, ".env"), "WEATHERSTACK_API=from_dotenv\nOPENAI_API_KEY=dotenv-key\n")
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Secrets.WeatherstackKey)
	assert.Equal(t, "env-key", cfg.Secrets.OpenAIAPIKey)
	assert.Equal(t, ProviderOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
}

func TestAzureResolution(t *testing.T) {
	isolate(t)
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_KEY", "azure-key")
	t.Setenv("AZURE_DEPLOYMENT_NAME", "gpt4o-deploy")
	t.Setenv("AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME", "embed-deploy")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderAzure, cfg.Oracle.Provider)
	assert.Equal(t, "gpt4o-deploy", cfg.Oracle.Model)
	assert.Equal(t, "azure-key", cfg.OracleAPIKey())
	assert.Equal(t, ProviderAzure, cfg.Embedding.Provider)
	assert.Equal(t, "embed-deploy", cfg.Embedding.Model)
}

func TestAnthropicResolution(t *testing.T) {
	isolate(t)
	t.Setenv("ANTHROPIC_API_KEY", "ak")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Oracle.Provider)
	assert.Equal(t, "ak", cfg.OracleAPIKey())
	assert.NotEqual(t, Default().Oracle.Model, cfg.Oracle.Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"overlap equals size", func(c *Config) { c.Ingest.Overlap = c.Ingest.ChunkSize }, "ingest.overlap"},
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, "agent.max_iterations"},
		{"unknown oracle", func(c *Config) { c.Oracle.Provider = "llama" }, "oracle.provider"},
		{"unknown store", func(c *Config) { c.VectorStore.Provider = "redis" }, "vector_store.provider"},
		{"azure without endpoint", func(c *Config) { c.Oracle.Provider = ProviderAzure }, "oracle.azure_endpoint"},
		{"zero workers", func(c *Config) { c.Ingest.OCRWorkers = 0 }, "ingest.ocr_workers"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.toml")

	cfg := Default()
	cfg.Agent.MaxIterations = 4
	cfg.Ingest.OCRTimeout = Duration{5 * time.Second}
	cfg.Secrets.OpenAIAPIKey = "must-not-be-written"

	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "must-not-be-written")
	assert.Contains(t, string(raw), `ocr_timeout = "5s"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Agent.MaxIterations)
	assert.Equal(t, 5*time.Second, loaded.Ingest.OCRTimeout.Duration)
	assert.Empty(t, loaded.Secrets.OpenAIAPIKey)
}
