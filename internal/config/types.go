// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from defaults, a YAML file and the environment.
package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Log          LogConfig          `yaml:"log"`
	Server       ServerConfig       `yaml:"server"`
	Media        MediaConfig        `yaml:"media"`
	Analysis     AnalysisConfig     `yaml:"analysis"`
	RecordStore  RecordStoreConfig  `yaml:"recordstore"`
	Credentials  CredentialsConfig  `yaml:"credentials"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	RunStore     RunStoreConfig     `yaml:"runstore"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// VerifyToken is compared with the X-Trigger-Token header of trigger requests.
	VerifyToken       string        `yaml:"verify_token"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// RateLimit is the number of trigger requests allowed per client IP and minute; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

type MediaConfig struct {
	Dir          string        `yaml:"dir"`
	FFmpegPath   string        `yaml:"ffmpeg_path"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	KillGrace    time.Duration `yaml:"kill_grace"`
}

type AnalysisConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Model           string        `yaml:"model"`
	InstructionPath string        `yaml:"instruction_path"`
	Timeout         time.Duration `yaml:"timeout"`
	InlineLimitMB   int           `yaml:"inline_limit_mb"`
}

type RecordStoreConfig struct {
	BaseURL      string        `yaml:"base_url"`
	AppID        string        `yaml:"app_id"`
	AppSecret    string        `yaml:"app_secret"`
	AppToken     string        `yaml:"app_token"`
	TableID      string        `yaml:"table_id"`
	ReportField  string        `yaml:"report_field"`
	ErrorField   string        `yaml:"error_field"`
	ElapsedField string        `yaml:"elapsed_field"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Complete reports whether results can be written back.
func (c RecordStoreConfig) Complete() bool {
	return c.AppID != "" && c.AppSecret != "" && c.AppToken != "" && c.TableID != ""
}

type CredentialsConfig struct {
	// Backend is "memory" or "redis".
	Backend      string        `yaml:"backend"`
	SafetyMargin time.Duration `yaml:"safety_margin"`
	Redis        RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type OrchestratorConfig struct {
	MaxConcurrent   int           `yaml:"max_concurrent"`
	MaxPending      int           `yaml:"max_pending"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

type RunStoreConfig struct {
	// Path of the SQLite ledger. Empty disables the ledger and the run status endpoint.
	Path string `yaml:"path"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}
