// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/analyzer"
	"github.com/ManuGH/vidlens/internal/api"
	"github.com/ManuGH/vidlens/internal/compress"
	"github.com/ManuGH/vidlens/internal/config"
	"github.com/ManuGH/vidlens/internal/credentials"
	vlog "github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/orchestrator"
	"github.com/ManuGH/vidlens/internal/platform/httpx"
	"github.com/ManuGH/vidlens/internal/procexec"
	"github.com/ManuGH/vidlens/internal/recordstore"
	"github.com/ManuGH/vidlens/internal/runstore"
	"github.com/ManuGH/vidlens/internal/telemetry"
)

const tokenStoreCleanup = time.Minute

// components holds everything run needs to serve and shut down.
type components struct {
	orch    *orchestrator.Orchestrator
	server  *api.Server
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildComponents(ctx context.Context, cfg config.AppConfig) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	runner := procexec.NewRunner()
	if cfg.Media.KillGrace > 0 {
		runner.KillGrace = cfg.Media.KillGrace
	}
	if cfg.Media.ProbeTimeout > 0 {
		runner.ProbeTimeout = cfg.Media.ProbeTimeout
	}
	executor := compress.NewExecutor(cfg.Media.Dir, cfg.Media.FFmpegPath, runner)

	analysis := analyzer.New(analyzer.Config{
		APIKey:          cfg.Analysis.APIKey,
		BaseURL:         cfg.Analysis.BaseURL,
		HTTPClient:      httpx.NewClient(cfg.Analysis.Timeout),
		InlineThreshold: int64(cfg.Analysis.InlineLimitMB) * compress.MiB,
		Timeout:         cfg.Analysis.Timeout,
	})

	var checks []api.Option
	store, err := buildTokenStore(ctx, cfg.Credentials, c, &checks)
	if err != nil {
		return nil, err
	}

	rsClient := recordstore.NewClient(cfg.RecordStore.BaseURL, httpx.NewClient(cfg.RecordStore.Timeout))
	tokens := credentials.NewCache(rsClient, store, credentials.WithSafetyMargin(cfg.Credentials.SafetyMargin))
	sink := recordstore.NewSink(rsClient, tokens, recordstore.SinkConfig{
		Identity:     credentials.Identity{AppID: cfg.RecordStore.AppID, Secret: cfg.RecordStore.AppSecret},
		AppToken:     cfg.RecordStore.AppToken,
		TableID:      cfg.RecordStore.TableID,
		ReportField:  cfg.RecordStore.ReportField,
		ErrorField:   cfg.RecordStore.ErrorField,
		ElapsedField: cfg.RecordStore.ElapsedField,
	})

	deps := orchestrator.Deps{
		Compressor: executor,
		Analyzer:   analysis,
		Sink:       sink,
		Tracer:     telemetry.Tracer("github.com/ManuGH/vidlens/internal/orchestrator"),
	}

	var apiOpts []api.Option
	if cfg.RunStore.Path != "" {
		ledger, err := runstore.Open(ctx, cfg.RunStore.Path)
		if err != nil {
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		c.closers = append(c.closers, ledger.Close)
		issues, err := ledger.Verify(ctx)
		if err != nil {
			return nil, fmt.Errorf("verify run ledger: %w", err)
		}
		if len(issues) > 0 {
			return nil, fmt.Errorf("run ledger %s is corrupt: %s", cfg.RunStore.Path, strings.Join(issues, "; "))
		}
		deps.Ledger = ledger
		apiOpts = append(apiOpts, api.WithRuns(ledger), api.WithHealthCheck("runstore", ledger.Ping))
	}
	apiOpts = append(apiOpts, checks...)

	c.orch = orchestrator.New(orchestrator.Config{
		InstructionPath: cfg.Analysis.InstructionPath,
		Model:           cfg.Analysis.Model,
		MaxConcurrent:   cfg.Orchestrator.MaxConcurrent,
		MaxPending:      cfg.Orchestrator.MaxPending,
		DeliveryTimeout: cfg.Orchestrator.DeliveryTimeout,
	}, deps)

	serviceName := ""
	if cfg.Telemetry.Enabled {
		serviceName = cfg.Log.Service
	}
	c.server = api.New(api.Config{
		VerifyToken: cfg.Server.VerifyToken,
		RateLimit:   cfg.Server.RateLimit,
		ServiceName: serviceName,
	}, c.orch, apiOpts...)

	if !cfg.RecordStore.Complete() {
		logger := vlog.WithComponent("daemon")
		logger.Warn().Msg("record store write-back not configured; results are only logged")
	}
	return c, nil
}

func buildTokenStore(ctx context.Context, cfg config.CredentialsConfig, c *components, checks *[]api.Option) (credentials.Store, error) {
	if cfg.Backend == "redis" {
		rs, err := credentials.NewRedisStore(ctx, credentials.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, vlog.WithComponent("credentials"))
		if err != nil {
			return nil, fmt.Errorf("connect token store: %w", err)
		}
		c.closers = append(c.closers, rs.Close)
		*checks = append(*checks, api.WithHealthCheck("redis", rs.HealthCheck))
		return rs, nil
	}
	ms := credentials.NewMemoryStore(tokenStoreCleanup)
	c.closers = append(c.closers, ms.Close)
	return ms, nil
}
