// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the configuration used when neither file nor environment set a value.
func Defaults() AppConfig {
	return AppConfig{
		Log: LogConfig{Level: "info", Service: "vidlens"},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RateLimit:         60,
		},
		Media: MediaConfig{
			FFmpegPath:   "ffmpeg",
			ProbeTimeout: 10 * time.Second,
			KillGrace:    5 * time.Second,
		},
		Analysis: AnalysisConfig{
			BaseURL:       "https://dashscope.aliyuncs.com/compatible-mode/v1",
			Model:         "qwen-vl-max",
			Timeout:       10 * time.Minute,
			InlineLimitMB: 20,
		},
		RecordStore: RecordStoreConfig{
			BaseURL:     "https://open.feishu.cn/open-apis",
			ReportField: "分析报告",
			Timeout:     30 * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend:      "memory",
			SafetyMargin: 300 * time.Second,
			Redis:        RedisConfig{Addr: "localhost:6379", KeyPrefix: "vidlens:token:"},
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrent:   2,
			MaxPending:      64,
			DeliveryTimeout: 30 * time.Second,
		},
		RunStore: RunStoreConfig{Path: "data/runs.sqlite"},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}
