// Package config loads daemon configuration from an optional JSON file
// with environment variable overrides on top.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Gameaday/ia-helper-sub003/common"
	"github.com/Gameaday/ia-helper-sub003/pkg/ialib"
)

// Config holds everything the daemon needs to start.
type Config struct {
	// Port is the HTTP listen port for /rpc and /ws.
	Port int `json:"port"`
	// Secret is the RPC auth token. Empty disables the token check.
	Secret string `json:"secret"`
	// DownloadDir is where finished and partial files are written.
	DownloadDir string `json:"download_dir"`
	// DataDir holds the task database.
	DataDir string `json:"data_dir"`
	// MaxConcurrent bounds simultaneous downloads.
	MaxConcurrent int `json:"max_concurrent"`
	// MaxRetries bounds automatic retries per run.
	MaxRetries int `json:"max_retries"`
	// ProxyURL routes transfers through an http, https or socks5 proxy.
	ProxyURL string `json:"proxy_url"`
	// UserAgent overrides the transfer User-Agent header.
	UserAgent string `json:"user_agent"`
	// ProgressIntervalMS is the progress snapshot cadence.
	ProgressIntervalMS int `json:"progress_interval_ms"`
	// Debug enables verbose logging.
	Debug bool `json:"debug"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Port:               common.DefaultPort,
		DownloadDir:        filepath.Join(home, "Downloads", "ia-helper"),
		DataDir:            filepath.Join(home, ".ia-helper"),
		MaxConcurrent:      ialib.DefMaxConcurrent,
		MaxRetries:         ialib.DefMaxRetries,
		UserAgent:          ialib.DefUserAgent,
		ProgressIntervalMS: int(ialib.DefProgressInterval / time.Millisecond),
	}
}

// Load builds the configuration: defaults, then the JSON file at path
// if it exists, then environment overrides. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// Defaults apply.
		default:
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(common.PortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Port = port
		}
	}
	if v := os.Getenv(common.SecretEnv); v != "" {
		c.Secret = v
	}
	if v := os.Getenv(common.DownloadDirEnv); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv(common.DataDirEnv); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(common.DebugEnv); v != "" {
		c.Debug = v != "0" && v != "false"
	}
}

// ProgressInterval returns the snapshot cadence as a duration.
func (c *Config) ProgressInterval() time.Duration {
	if c.ProgressIntervalMS <= 0 {
		return ialib.DefProgressInterval
	}
	return time.Duration(c.ProgressIntervalMS) * time.Millisecond
}
