// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strings"

	"github.com/ManuGH/vidlens/internal/validate"
)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("server.listen_addr", cfg.Server.ListenAddr)
	v.NotEmpty("server.verify_token", cfg.Server.VerifyToken)
	v.PositiveDuration("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	if cfg.Server.RateLimit < 0 {
		v.AddError("server.rate_limit", "must not be negative", cfg.Server.RateLimit)
	}

	v.Directory("media.dir", cfg.Media.Dir, true)
	v.NotEmpty("media.ffmpeg_path", cfg.Media.FFmpegPath)
	v.PositiveDuration("media.probe_timeout", cfg.Media.ProbeTimeout)

	v.URL("analysis.base_url", cfg.Analysis.BaseURL, []string{"http", "https"})
	v.NotEmpty("analysis.api_key", cfg.Analysis.APIKey)
	v.NotEmpty("analysis.model", cfg.Analysis.Model)
	v.File("analysis.instruction_path", cfg.Analysis.InstructionPath)
	v.PositiveDuration("analysis.timeout", cfg.Analysis.Timeout)
	v.Range("analysis.inline_limit_mb", cfg.Analysis.InlineLimitMB, 0, 512)

	v.URL("recordstore.base_url", cfg.RecordStore.BaseURL, []string{"http", "https"})
	v.NotEmpty("recordstore.report_field", cfg.RecordStore.ReportField)
	v.PositiveDuration("recordstore.timeout", cfg.RecordStore.Timeout)
	// Either all write-back settings or none of them.
	rs := cfg.RecordStore
	if !rs.Complete() && strings.Join([]string{rs.AppID, rs.AppSecret, rs.AppToken, rs.TableID}, "") != "" {
		v.AddError("recordstore", "app_id, app_secret, app_token and table_id must be set together", nil)
	}

	v.OneOf("credentials.backend", cfg.Credentials.Backend, []string{"memory", "redis"})
	if cfg.Credentials.SafetyMargin < 0 {
		v.AddError("credentials.safety_margin", "must not be negative", cfg.Credentials.SafetyMargin)
	}
	if cfg.Credentials.Backend == "redis" {
		v.NotEmpty("credentials.redis.addr", cfg.Credentials.Redis.Addr)
		v.Range("credentials.redis.db", cfg.Credentials.Redis.DB, 0, 15)
	}

	v.Range("orchestrator.max_concurrent", cfg.Orchestrator.MaxConcurrent, 1, 64)
	v.Positive("orchestrator.max_pending", cfg.Orchestrator.MaxPending)
	v.PositiveDuration("orchestrator.delivery_timeout", cfg.Orchestrator.DeliveryTimeout)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("telemetry.sampling_rate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.Err()
}
