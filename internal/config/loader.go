// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable the loader reads.
const EnvPrefix = "VIDLENS_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // every env key the loader looked at
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)

	if cfg.Media.Dir != "" {
		if abs, err := filepath.Abs(cfg.Media.Dir); err == nil {
			cfg.Media.Dir = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing.
// Keys absent from the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("LOG_SERVICE", cfg.Log.Service)

	cfg.Server.ListenAddr = l.envString("LISTEN", cfg.Server.ListenAddr)
	cfg.Server.VerifyToken = l.envString("VERIFY_TOKEN", cfg.Server.VerifyToken)
	cfg.Server.ReadHeaderTimeout = l.envDuration("READ_HEADER_TIMEOUT", cfg.Server.ReadHeaderTimeout)
	cfg.Server.ReadTimeout = l.envDuration("READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration("WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration("IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.RateLimit = l.envInt("RATE_LIMIT", cfg.Server.RateLimit)

	cfg.Media.Dir = l.envString("MEDIA_DIR", cfg.Media.Dir)
	cfg.Media.FFmpegPath = l.envString("FFMPEG_PATH", cfg.Media.FFmpegPath)
	cfg.Media.ProbeTimeout = l.envDuration("FFMPEG_PROBE_TIMEOUT", cfg.Media.ProbeTimeout)
	cfg.Media.KillGrace = l.envDuration("FFMPEG_KILL_GRACE", cfg.Media.KillGrace)

	cfg.Analysis.BaseURL = l.envString("ANALYSIS_BASE_URL", cfg.Analysis.BaseURL)
	cfg.Analysis.APIKey = l.envString("ANALYSIS_API_KEY", cfg.Analysis.APIKey)
	cfg.Analysis.Model = l.envString("ANALYSIS_MODEL", cfg.Analysis.Model)
	cfg.Analysis.InstructionPath = l.envString("ANALYSIS_INSTRUCTION_PATH", cfg.Analysis.InstructionPath)
	cfg.Analysis.Timeout = l.envDuration("ANALYSIS_TIMEOUT", cfg.Analysis.Timeout)
	cfg.Analysis.InlineLimitMB = l.envInt("ANALYSIS_INLINE_LIMIT_MB", cfg.Analysis.InlineLimitMB)

	cfg.RecordStore.BaseURL = l.envString("RECORDSTORE_BASE_URL", cfg.RecordStore.BaseURL)
	cfg.RecordStore.AppID = l.envString("RECORDSTORE_APP_ID", cfg.RecordStore.AppID)
	cfg.RecordStore.AppSecret = l.envString("RECORDSTORE_APP_SECRET", cfg.RecordStore.AppSecret)
	cfg.RecordStore.AppToken = l.envString("RECORDSTORE_APP_TOKEN", cfg.RecordStore.AppToken)
	cfg.RecordStore.TableID = l.envString("RECORDSTORE_TABLE_ID", cfg.RecordStore.TableID)
	cfg.RecordStore.ReportField = l.envString("RECORDSTORE_REPORT_FIELD", cfg.RecordStore.ReportField)
	cfg.RecordStore.ErrorField = l.envString("RECORDSTORE_ERROR_FIELD", cfg.RecordStore.ErrorField)
	cfg.RecordStore.ElapsedField = l.envString("RECORDSTORE_ELAPSED_FIELD", cfg.RecordStore.ElapsedField)
	cfg.RecordStore.Timeout = l.envDuration("RECORDSTORE_TIMEOUT", cfg.RecordStore.Timeout)

	cfg.Credentials.Backend = l.envString("CREDENTIALS_BACKEND", cfg.Credentials.Backend)
	cfg.Credentials.SafetyMargin = l.envDuration("CREDENTIALS_SAFETY_MARGIN", cfg.Credentials.SafetyMargin)
	cfg.Credentials.Redis.Addr = l.envString("REDIS_ADDR", cfg.Credentials.Redis.Addr)
	cfg.Credentials.Redis.Password = l.envString("REDIS_PASSWORD", cfg.Credentials.Redis.Password)
	cfg.Credentials.Redis.DB = l.envInt("REDIS_DB", cfg.Credentials.Redis.DB)
	cfg.Credentials.Redis.KeyPrefix = l.envString("REDIS_KEY_PREFIX", cfg.Credentials.Redis.KeyPrefix)

	cfg.Orchestrator.MaxConcurrent = l.envInt("MAX_CONCURRENT", cfg.Orchestrator.MaxConcurrent)
	cfg.Orchestrator.MaxPending = l.envInt("MAX_PENDING", cfg.Orchestrator.MaxPending)
	cfg.Orchestrator.DeliveryTimeout = l.envDuration("DELIVERY_TIMEOUT", cfg.Orchestrator.DeliveryTimeout)

	cfg.RunStore.Path = l.envString("RUNSTORE_PATH", cfg.RunStore.Path)

	cfg.Telemetry.Enabled = l.envBool("TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("TELEMETRY_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = l.envString("TELEMETRY_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

// UnknownEnvKeys lists VIDLENS_* variables in environ that Load did not consume.
// Call it after Load.
func (l *Loader) UnknownEnvKeys(environ []string) []string {
	var unknown []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
