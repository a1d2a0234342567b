// Package config provides configuration loading and validation for the
// search coordinator and worker binaries.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// JobTiming carries the worker-visible timing knobs the coordinator
// reports through GET /configuration/job.
type JobTiming struct {
	TargetDurationSeconds int64 `json:"targetDurationSeconds"`
	UpdateIntervalSeconds int64 `json:"updateIntervalSeconds"`
	TimeoutSeconds        int64 `json:"timeoutSeconds"`
}

// SearchConfig holds the coordinator's checkpoint location and job timing.
type SearchConfig struct {
	FilePath string    `json:"filePath"`
	Job      JobTiming `json:"job"`
}

// LoggerConfig holds the logging knobs shared by both binaries, matching
// the five-level taxonomy of _examples/original_source/Client/Logger.py.
type LoggerConfig struct {
	FilePath string `json:"filePath"`
	Debug    bool   `json:"debug"`
	Info     bool   `json:"info"`
	Success  bool   `json:"success"`
	Warning  bool   `json:"warning"`
	Error    bool   `json:"error"`
}

// CoordinatorConfig is the root configuration for the search-coordinator
// binary, loaded from a JSON file per spec.md §6.
type CoordinatorConfig struct {
	Host   string       `json:"host"`
	Port   int          `json:"port"`
	APIKey string       `json:"apiKey"`
	Search SearchConfig `json:"search"`
	Logger LoggerConfig `json:"logger"`
}

// LoadCoordinator reads, defaults and validates a CoordinatorConfig from
// the JSON file at path.
func LoadCoordinator(path string) (*CoordinatorConfig, error) {
	var cfg CoordinatorConfig
	if err := decodeStrict(path, &cfg); err != nil {
		return nil, err
	}
	applyCoordinatorDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyCoordinatorDefaults(cfg *CoordinatorConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Search.FilePath == "" {
		cfg.Search.FilePath = "./search.json"
	}
	if cfg.Search.Job.TargetDurationSeconds == 0 {
		cfg.Search.Job.TargetDurationSeconds = 600
	}
	if cfg.Search.Job.UpdateIntervalSeconds == 0 {
		cfg.Search.Job.UpdateIntervalSeconds = 60
	}
	if cfg.Search.Job.TimeoutSeconds == 0 {
		cfg.Search.Job.TimeoutSeconds = 120
	}
}

func (c *CoordinatorConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: apiKey is required")
	}
	if c.Search.Job.TargetDurationSeconds <= 0 {
		return fmt.Errorf("config: search.job.targetDurationSeconds must be > 0")
	}
	if c.Search.Job.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("config: search.job.updateIntervalSeconds must be > 0")
	}
	if c.Search.Job.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: search.job.timeoutSeconds must be > 0")
	}
	return nil
}

// RequestConfig holds HTTP client pacing/timeout knobs.
type RequestConfig struct {
	DelaySeconds   float64 `json:"delaySeconds"`
	TimeoutSeconds float64 `json:"timeoutSeconds"`
}

// ServerConnConfig describes how a worker reaches the coordinator.
type ServerConnConfig struct {
	Protocol string        `json:"protocol"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	APIKey   string        `json:"apiKey"`
	Request  RequestConfig `json:"request"`
}

// WorkerSearchConfig holds the worker's subprocess and local output settings.
type WorkerSearchConfig struct {
	IdleCores  int    `json:"idleCores"`
	BinaryPath string `json:"binaryPath"`
	FilePath   string `json:"filePath"`
}

// WorkerConfig is the root configuration for the search-worker binary.
type WorkerConfig struct {
	Server ServerConnConfig   `json:"server"`
	Search WorkerSearchConfig `json:"search"`
	Logger LoggerConfig       `json:"logger"`
}

// LoadWorker reads, defaults and validates a WorkerConfig from the JSON
// file at path.
func LoadWorker(path string) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := decodeStrict(path, &cfg); err != nil {
		return nil, err
	}
	applyWorkerDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyWorkerDefaults(cfg *WorkerConfig) {
	if cfg.Server.Protocol == "" {
		cfg.Server.Protocol = "http"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Request.DelaySeconds == 0 {
		cfg.Server.Request.DelaySeconds = 1
	}
	if cfg.Server.Request.TimeoutSeconds == 0 {
		cfg.Server.Request.TimeoutSeconds = 30
	}
	if cfg.Search.FilePath == "" {
		cfg.Search.FilePath = "./results.json"
	}
}

func (c *WorkerConfig) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("config: server.apiKey is required")
	}
	if c.Search.BinaryPath == "" {
		return fmt.Errorf("config: search.binaryPath is required")
	}
	if c.Search.IdleCores < 0 {
		return fmt.Errorf("config: search.idleCores must be >= 0")
	}
	if c.Server.Request.DelaySeconds < 0 {
		return fmt.Errorf("config: server.request.delaySeconds must be >= 0")
	}
	if c.Server.Request.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: server.request.timeoutSeconds must be > 0")
	}
	return nil
}

// decodeStrict decodes the JSON file at path into v, rejecting unknown
// fields — the same dec.DisallowUnknownFields() idiom the teacher uses
// when decoding lease request bodies in internal/server/jobs.go.
func decodeStrict(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}
