package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	CORSOrigins []string         `json:"cors_origins"`
	FileStore   FileStoreConfig  `json:"file_store"`
	ADE         ADEConfig        `json:"ade"`
	Pipeline    PipelineConfig   `json:"pipeline"`
	Render      RenderConfig     `json:"render"`
	Grounding   GroundingConfig  `json:"grounding"`
	Embedder    EmbedderConfig   `json:"embedder"`
	Index       IndexConfig      `json:"index"`
	Jobs        JobsConfig       `json:"jobs"`
}

// FileStoreConfig selects a store backend; Data holds the backend-specific
// payload decoded by the store factory.
type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ADEConfig struct {
	Endpoint       string  `json:"endpoint"`
	APIKey         string  `json:"api_key"`
	Model          string  `json:"model"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RPS            float64 `json:"rps"`
}

type PipelineConfig struct {
	InputPrefix    string `json:"input_prefix"`
	OutputPrefix   string `json:"output_prefix"`
	DefaultDomain  string `json:"default_domain"`
	ForceReprocess bool   `json:"force_reprocess"`
	FetchAttempts  int    `json:"fetch_attempts"`
	WriteWorkers   int    `json:"write_workers"`
}

type RenderConfig struct {
	DPI         int    `json:"dpi"`
	PdftoppmBin string `json:"pdftoppm_bin"`
}

type GroundingConfig struct {
	CacheSize       int    `json:"cache_size"`
	CacheTTLMinutes int    `json:"cache_ttl_minutes"`
	BorderWidth     int    `json:"border_width"`
	DefaultColor    string `json:"default_color"`
}

type EmbedderConfig struct {
	Provider        string      `json:"provider"`
	Model           string      `json:"model"`
	Data            interface{} `json:"data"`
	CacheSize       int         `json:"cache_size"`
	CacheTTLMinutes int         `json:"cache_ttl_minutes"`
}

type IndexConfig struct {
	Provider  string      `json:"provider"`
	Dimension int         `json:"dimension"`
	Data      interface{} `json:"data"`
}

type JobsConfig struct {
	SweepSpec     string `json:"sweep_spec"`
	IndexSyncSpec string `json:"index_sync_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		return nil, fmt.Errorf("file_store.type is required")
	}
	if cfg.ADE.APIKey == "" {
		return nil, fmt.Errorf("ade.api_key is required")
	}
	if cfg.Pipeline.InputPrefix == "" {
		cfg.Pipeline.InputPrefix = "input/"
	}
	if cfg.Pipeline.OutputPrefix == "" {
		cfg.Pipeline.OutputPrefix = "output"
	}
	if cfg.Embedder.Provider == "" || cfg.Embedder.Model == "" {
		return nil, fmt.Errorf("embedder.provider and embedder.model are required")
	}
	if cfg.Index.Provider == "" {
		return nil, fmt.Errorf("index.provider is required")
	}
	if cfg.Index.Dimension <= 0 {
		return nil, fmt.Errorf("index.dimension is required")
	}
	return &cfg, nil
}
