package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the coursechat service
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Vector  VectorConfig  `mapstructure:"vector"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Session SessionConfig `mapstructure:"session"`
	Search  SearchConfig  `mapstructure:"search"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the chat model and embedding function behind the
// OpenAI-compatible API surface.
type LLMConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	Model               string        `mapstructure:"model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if l.Model == "" {
		return fmt.Errorf("llm.model must be set")
	}
	if l.EmbeddingModel == "" {
		return fmt.Errorf("llm.embedding_model must be set")
	}
	return nil
}

// VectorConfig configures the vector index backend.
type VectorConfig struct {
	Backend           string  `mapstructure:"backend"` // qdrant or memory
	Host              string  `mapstructure:"host"`
	Port              int     `mapstructure:"port"`
	CatalogCollection string  `mapstructure:"catalog_collection"`
	ContentCollection string  `mapstructure:"content_collection"`
	SimilarityFloor   float64 `mapstructure:"similarity_floor"`
}

func (v VectorConfig) Validate() error {
	switch v.Backend {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("vector.backend must be qdrant or memory, got %q", v.Backend)
	}
	if v.SimilarityFloor < 0 || v.SimilarityFloor > 1 {
		return fmt.Errorf("vector.similarity_floor must be within [0,1]")
	}
	return nil
}

// IngestConfig controls document chunking and the startup corpus path.
type IngestConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	DocsPath     string `mapstructure:"docs_path"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be within [0, chunk_size)")
	}
	return nil
}

// SessionConfig bounds per-conversation history.
type SessionConfig struct {
	MaxExchanges int `mapstructure:"max_exchanges"`
}

// SearchConfig bounds search result counts.
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// LoadConfig reads configuration from the given file, falling back to the
// usual lookup paths and COURSECHAT_* environment variables when path is
// empty. Invalid configuration is fatal.
func LoadConfig(path string) *Config {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.embedding_dimensions", 1536)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 800)
	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("vector.backend", "qdrant")
	viper.SetDefault("vector.host", "localhost")
	viper.SetDefault("vector.port", 6334)
	viper.SetDefault("vector.catalog_collection", "course_catalog")
	viper.SetDefault("vector.content_collection", "course_content")
	viper.SetDefault("vector.similarity_floor", 0.5)
	viper.SetDefault("ingest.chunk_size", 800)
	viper.SetDefault("ingest.chunk_overlap", 100)
	viper.SetDefault("ingest.docs_path", "./docs")
	viper.SetDefault("session.max_exchanges", 2)
	viper.SetDefault("search.max_results", 5)

	if path == "" {
		viper.SetConfigName("config")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("COURSECHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Running purely off defaults and env is fine; a broken file is not.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Vector.Validate(); err != nil {
		panic(err)
	}
	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	return &config
}
