package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid classifies configuration errors.
var ErrInvalid = errors.New("invalid configuration")

// Validate reports every problem in c as one error wrapping ErrInvalid.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Agent.MaxIterations < 1 {
		add("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.QueryTimeout.Duration < 0 {
		add("agent.query_timeout must not be negative")
	}
	if c.Agent.HistoryTurns < 0 {
		add("agent.history_turns must not be negative")
	}
	if c.Agent.MemoryCapacity < 1 {
		add("agent.memory_capacity must be positive, got %d", c.Agent.MemoryCapacity)
	}
	if c.Agent.TopK < 1 {
		add("agent.top_k must be positive, got %d", c.Agent.TopK)
	}

	oneOf(add, "oracle.provider", c.Oracle.Provider, ProviderAuto, ProviderOpenAI, ProviderAzure, ProviderAnthropic)
	if c.Oracle.MaxTokens < 1 {
		add("oracle.max_tokens must be positive, got %d", c.Oracle.MaxTokens)
	}
	if c.Oracle.Provider == ProviderAzure && c.Oracle.AzureEndpoint == "" {
		add("oracle.azure_endpoint is required for the azure provider")
	}

	if c.Tools.Timeout.Duration <= 0 {
		add("tools.timeout must be positive")
	}

	if c.Ingest.ChunkSize < 1 {
		add("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	}
	if c.Ingest.Overlap < 0 || c.Ingest.Overlap >= c.Ingest.ChunkSize {
		add("ingest.overlap must be in [0, chunk_size), got %d with chunk_size %d", c.Ingest.Overlap, c.Ingest.ChunkSize)
	}
	if c.Ingest.OCRWorkers < 1 {
		add("ingest.ocr_workers must be positive, got %d", c.Ingest.OCRWorkers)
	}
	if c.Ingest.OCRTimeout.Duration <= 0 {
		add("ingest.ocr_timeout must be positive")
	}
	if c.Ingest.MaxOCRPages < 0 {
		add("ingest.max_ocr_pages must not be negative")
	}

	oneOf(add, "embedding.provider", c.Embedding.Provider, ProviderAuto, ProviderOpenAI, ProviderAzure, ProviderOllama, ProviderHash)
	if c.Embedding.Provider == ProviderAzure && c.Embedding.Model == "" {
		add("embedding.model (deployment name) is required for the azure provider")
	}

	oneOf(add, "vector_store.provider", c.VectorStore.Provider, ProviderMemory, ProviderSQLite, ProviderQdrant)
	if c.VectorStore.Provider == ProviderSQLite && c.VectorStore.Path == "" {
		add("vector_store.path is required for the sqlite provider")
	}

	oneOf(add, "memory.backend", c.Memory.Backend, ProviderMemory, ProviderSQLite)
	if c.Memory.Backend == ProviderSQLite && c.Memory.Path == "" {
		add("memory.path is required for the sqlite backend")
	}

	oneOf(add, "log.level", strings.ToLower(c.Log.Level), "debug", "info", "warn", "warning", "error")
	oneOf(add, "log.format", strings.ToLower(c.Log.Format), "text", "json")

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func oneOf(add func(string, ...any), key, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	add("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}
