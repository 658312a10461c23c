package server

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/emotrack/pkg/kibi"
)

type Config struct {
	DB                dbh.DBConfig  `json:"db"`
	Storage           StorageConfig `json:"storage"`           // Where artifacts are written
	Model             ModelConfig   `json:"model"`             // Emotion classifier
	TempDir           string        `json:"tempDir"`           // Uploads are written here while they are analyzed (default os.TempDir())
	Listen            string        `json:"listen"`            // eg ":8080"
	AnalyzePerMinute  int           `json:"analyzePerMinute"`  // Maximum analyze requests per minute, per IP (default 10)
	MaxUpload         string        `json:"maxUpload"`         // Maximum size of an uploaded video, eg "500 MB" (default "1 GB")
	DefaultSampleRate int           `json:"defaultSampleRate"` // Frames per second, if the request doesn't specify (default 10)
}

// One of the storage options must be configured (i.e. either 'filesystem' or 'gcs')
type StorageConfig struct {
	Filesystem *StorageConfigFS  `json:"filesystem"`
	GCS        *StorageConfigGCS `json:"gcs"`
}

type StorageConfigFS struct {
	Root string `json:"root"` // Path to the root of the filesystem
}

type StorageConfigGCS struct {
	Bucket string `json:"bucket"` // Name of the GCS bucket
	Prefix string `json:"prefix"` // Object name prefix, eg "emotrack/results"
}

type ModelConfig struct {
	Dir         string `json:"dir"`         // Model directory
	Name        string `json:"name"`        // eg "ferplus"
	RemoteURL   string `json:"remoteURL"`   // If set, use a remote emotion service instead of a local model
	DownloadURL string `json:"downloadURL"` // If set, missing model files are downloaded from here
}

const (
	DefaultListen            = ":8080"
	DefaultAnalyzePerMinute  = 10
	DefaultMaxUpload         = "1 GB"
	DefaultSampleRatePerSec  = 10
	DefaultListRunsLimit     = 100
	maxMultipartMemoryBytes  = 32 * 1024 * 1024
	progressClientQueueDepth = 64
)

func LoadConfig(configFile string) (*Config, error) {
	cfg := Config{}
	if cfgB, err := os.ReadFile(configFile); err != nil {
		return nil, err
	} else {
		if err := json.Unmarshal(cfgB, &cfg); err != nil {
			return nil, fmt.Errorf("Error parsing config file %v: %w", configFile, err)
		}
	}
	cfg.applyEnv()
	cfg.setDefaults()
	if _, err := kibi.ParseBytes(cfg.MaxUpload); err != nil {
		return nil, fmt.Errorf("Invalid maxUpload '%v' in %v", cfg.MaxUpload, configFile)
	}
	return &cfg, nil
}

// Environment variables override the config file
func (c *Config) applyEnv() {
	c.Listen = getEnv("EMOTRACK_LISTEN", c.Listen)
	c.TempDir = getEnv("EMOTRACK_TEMP_DIR", c.TempDir)
	c.Model.RemoteURL = getEnv("EMOTRACK_REMOTE_URL", c.Model.RemoteURL)
	c.MaxUpload = getEnv("EMOTRACK_MAX_UPLOAD", c.MaxUpload)
	c.AnalyzePerMinute = getEnvAsInt("EMOTRACK_ANALYZE_PER_MINUTE", c.AnalyzePerMinute)
	c.DB.Password = getEnv("EMOTRACK_DB_PASSWORD", c.DB.Password)
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.AnalyzePerMinute <= 0 {
		c.AnalyzePerMinute = DefaultAnalyzePerMinute
	}
	if c.MaxUpload == "" {
		c.MaxUpload = DefaultMaxUpload
	}
	if c.DefaultSampleRate <= 0 {
		c.DefaultSampleRate = DefaultSampleRatePerSec
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
