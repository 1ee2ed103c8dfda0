package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnvPrecedence loads .env and .env.local without overriding
// variables that are already set.
func loadDotEnvPrecedence() error {
	for _, name := range []string{".env", ".env.local"} {
		values, err := godotenv.Read(name)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, exists := os.LookupEnv(k); !exists {
				if err := os.Setenv(k, v); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func env(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func envString(target *string, keys ...string) {
	for _, k := range keys {
		if v, ok := env(k); ok {
			*target = v
			return
		}
	}
}

func envInt(target *int, key string) {
	if v, ok := env(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envFloat(target *float64, key string) {
	if v, ok := env(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func envBool(target *bool, key string) {
	if v, ok := env(key); ok {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

func envDuration(target *Duration, key string) {
	if v, ok := env(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			target.Duration = d
		}
	}
}

func mergeEnv(cfg *Config) {
	envInt(&cfg.Agent.MaxIterations, "SMARTINFO_MAX_ITERATIONS")
	envDuration(&cfg.Agent.QueryTimeout, "SMARTINFO_QUERY_TIMEOUT")
	envInt(&cfg.Agent.HistoryTurns, "SMARTINFO_HISTORY_TURNS")
	envInt(&cfg.Agent.TopK, "SMARTINFO_TOP_K")
	envBool(&cfg.Agent.AutoRetrieve, "SMARTINFO_AUTO_RETRIEVE")

	envString(&cfg.Oracle.Provider, "SMARTINFO_ORACLE_PROVIDER")
	envString(&cfg.Oracle.AzureEndpoint, "AZURE_OPENAI_ENDPOINT")
	envString(&cfg.Oracle.AzureAPIVersion, "OPENAI_API_VERSION")
	envString(&cfg.Oracle.BaseURL, "OPENAI_BASE_URL")
	envFloat(&cfg.Oracle.Temperature, "SMARTINFO_TEMPERATURE")
	if cfg.Oracle.AzureEndpoint != "" {
		envString(&cfg.Oracle.Model, "AZURE_DEPLOYMENT_NAME")
		envString(&cfg.Embedding.Model, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT_NAME")
	}
	envString(&cfg.Oracle.Model, "SMARTINFO_MODEL")

	envDuration(&cfg.Tools.Timeout, "SMARTINFO_TOOL_TIMEOUT")

	envInt(&cfg.Ingest.ChunkSize, "SMARTINFO_CHUNK_SIZE")
	envInt(&cfg.Ingest.Overlap, "SMARTINFO_CHUNK_OVERLAP")
	envInt(&cfg.Ingest.OCRWorkers, "SMARTINFO_OCR_WORKERS")
	envDuration(&cfg.Ingest.OCRTimeout, "SMARTINFO_OCR_TIMEOUT")
	envString(&cfg.Ingest.TesseractPath, "TESSERACT_PATH")

	envString(&cfg.Embedding.Provider, "SMARTINFO_EMBEDDING_PROVIDER")
	envString(&cfg.Embedding.Model, "SMARTINFO_EMBEDDING_MODEL")
	envString(&cfg.Embedding.OllamaHost, "OLLAMA_HOST")

	envString(&cfg.VectorStore.Provider, "SMARTINFO_VECTOR_STORE")
	envString(&cfg.VectorStore.Host, "QDRANT_HOST")
	envInt(&cfg.VectorStore.Port, "QDRANT_PORT")

	envString(&cfg.Memory.Backend, "SMARTINFO_MEMORY_BACKEND")

	envString(&cfg.Log.Level, "SMARTINFO_LOG_LEVEL")
	envString(&cfg.Log.Format, "SMARTINFO_LOG_FORMAT")

	envString(&cfg.Secrets.OpenAIAPIKey, "OPENAI_API_KEY")
	envString(&cfg.Secrets.AzureOpenAIKey, "AZURE_OPENAI_KEY", "AZURE_OPENAI_API_KEY")
	envString(&cfg.Secrets.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envString(&cfg.Secrets.WeatherstackKey, "WEATHERSTACK_API")
	envString(&cfg.Secrets.CoinMarketCapKey, "COINMARKETCAP_API")
	envString(&cfg.Secrets.NumVerifyKey, "NUMVERIFY_API")
	envString(&cfg.Secrets.AmadeusClientID, "AMADEUS_CLIENT_ID")
	envString(&cfg.Secrets.AmadeusClientSecret, "AMADEUS_CLIENT_SECRET")
}
