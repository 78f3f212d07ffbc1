package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// FileConfig defines the structure loaded from the YAML configuration file.
// Every field can also be set via the corresponding NLBRIDGE_* environment
// variable, which takes precedence.
type FileConfig struct {
	Provider   string `yaml:"provider"`
	SpecURL    string `yaml:"spec_url"`
	APIBaseURL string `yaml:"api_base_url"`

	GeminiAPIKey   string `yaml:"gemini_api_key"`
	GeminiModel    string `yaml:"gemini_model"`
	VertexProject  string `yaml:"vertex_project"`
	VertexLocation string `yaml:"vertex_location"`

	OllamaBaseURL string `yaml:"ollama_base_url"`
	OllamaModel   string `yaml:"ollama_model"`

	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	OpenAIModel   string `yaml:"openai_model"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "NLBRIDGE_", potentially overriding file settings.
type Config struct {
	// Config File Path (Loaded first from env)
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// Active provider strategy: gemini, gemini-rest, ollama or openai.
	Provider string `envconfig:"PROVIDER" default:"ollama"`

	// Where to fetch the OpenAPI description from. Defaults to this very
	// service, which is why strategy initialization is deferred until the
	// listener is accepting connections.
	SpecURL string `envconfig:"SPEC_URL" default:"http://localhost:8080/v3/api-docs"`

	// Base address the orchestrator issues REST calls against.
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8080"`

	ListenAddr               string        `envconfig:"LISTEN_ADDR" default:":8080"`
	HTTPClientTimeout        time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`
	ModelClientTimeout       time.Duration `envconfig:"MODEL_CLIENT_TIMEOUT" default:"120s"`
	ShutdownTimeout          time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	ServerReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"150s"`
	ServerIdleTimeout        time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	OtelExporterOtlpEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	LogLevel                 string        `envconfig:"LOG_LEVEL" default:"info"`

	// Gemini via the official SDK. Setting VertexProject switches the
	// client to the Vertex AI backend, otherwise GeminiAPIKey is used
	// against the Gemini API backend.
	GeminiAPIKey   string `envconfig:"GEMINI_API_KEY"`
	GeminiModel    string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	VertexProject  string `envconfig:"VERTEX_PROJECT"`
	VertexLocation string `envconfig:"VERTEX_LOCATION" default:"us-central1"`

	OllamaBaseURL string `envconfig:"OLLAMA_BASE_URL" default:"http://localhost:11434"`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3.1"`

	// OpenAI or any endpoint speaking the same chat-completions contract.
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration first from environment variables (to get file path),
// then from the specified YAML file, and finally merges/overrides with environment variables again.
func Load() (*Config, error) {
	// 1. Load initial config from Env (primarily to get ConfigFilePath)
	var initialCfg Config
	if err := envconfig.Process("nlbridge", &initialCfg); err != nil {
		return nil, fmt.Errorf("failed to process initial environment variables: %w", err)
	}

	finalCfg := initialCfg

	// 2. Load config from YAML file if a path is specified
	if initialCfg.ConfigFilePath != "" {
		yamlFile, err := os.ReadFile(initialCfg.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		var fileCfg FileConfig
		if err := yaml.Unmarshal(yamlFile, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", initialCfg.ConfigFilePath, err)
		}
		slog.Info("Loaded configuration from file.", "path", initialCfg.ConfigFilePath)
		applyFileConfig(&finalCfg, fileCfg)

		// 3. Process environment variables AGAIN to allow overrides over file settings.
		if err := envconfig.Process("nlbridge", &finalCfg); err != nil {
			return nil, fmt.Errorf("failed to process overriding environment variables: %w", err)
		}
	}

	return &finalCfg, nil
}

func applyFileConfig(cfg *Config, file FileConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Provider, file.Provider)
	set(&cfg.SpecURL, file.SpecURL)
	set(&cfg.APIBaseURL, file.APIBaseURL)
	set(&cfg.GeminiAPIKey, file.GeminiAPIKey)
	set(&cfg.GeminiModel, file.GeminiModel)
	set(&cfg.VertexProject, file.VertexProject)
	set(&cfg.VertexLocation, file.VertexLocation)
	set(&cfg.OllamaBaseURL, file.OllamaBaseURL)
	set(&cfg.OllamaModel, file.OllamaModel)
	set(&cfg.OpenAIAPIKey, file.OpenAIAPIKey)
	set(&cfg.OpenAIBaseURL, file.OpenAIBaseURL)
	set(&cfg.OpenAIModel, file.OpenAIModel)
}
