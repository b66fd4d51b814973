// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator accepts analysis requests and runs each one in the background:
// compress, analyse, deliver.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/vidlens/internal/analyzer"
	"github.com/ManuGH/vidlens/internal/compress"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/ManuGH/vidlens/internal/recordstore"
	"github.com/ManuGH/vidlens/internal/runstore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// AcceptedMessage is returned to the caller once a request is admitted.
const AcceptedMessage = "请求已接收，正在处理中..."

var (
	// ErrClosed is returned by Submit after Shutdown started.
	ErrClosed = errors.New("orchestrator is shutting down")
	// ErrQueueFull is returned when MaxPending runs are already admitted.
	ErrQueueFull = errors.New("too many pending analysis runs")
	// ErrNameRequired fails a run whose request carries a blank video name.
	ErrNameRequired = errors.New("video name is required")
)

const (
	defaultMaxConcurrent   = 2
	defaultMaxPending      = 64
	defaultDeliveryTimeout = 30 * time.Second
	shutdownDrainGrace     = 10 * time.Second
)

// Request identifies the video to analyse and the record that receives the result.
type Request struct {
	VideoName string `json:"videoName"`
	RecordID  string `json:"recordId"`
}

// Ack is the immediate answer to Submit.
type Ack struct {
	RunID   string `json:"runId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Compressor brings a named video within the analysis size limit.
type Compressor interface {
	Run(ctx context.Context, name string) compress.Outcome
}

// Analyzer produces a report for a video file.
type Analyzer interface {
	Analyze(ctx context.Context, path, instructionPath, model string) analyzer.Outcome
}

// Sink delivers the terminal result of a run.
type Sink interface {
	DeliverSuccess(ctx context.Context, recordID, report string, elapsed time.Duration) recordstore.Receipt
	DeliverFailure(ctx context.Context, recordID, reason string) recordstore.Receipt
}

// Ledger records run progress. It is optional.
type Ledger interface {
	Create(ctx context.Context, id, videoName, recordID string) error
	SetStage(ctx context.Context, id, stage string) error
	Finish(ctx context.Context, id string, res runstore.Result) error
}

// Config tunes the orchestrator.
type Config struct {
	InstructionPath string
	Model           string
	// MaxConcurrent bounds runs executing at once; the rest wait for a slot.
	MaxConcurrent int
	// MaxPending bounds admitted but unfinished runs.
	MaxPending      int
	DeliveryTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Compressor Compressor
	Analyzer   Analyzer
	Sink       Sink
	Ledger     Ledger
	Tracer     trace.Tracer
}

// Orchestrator runs analysis requests in the background.
type Orchestrator struct {
	cfg  Config
	deps Deps

	slots   *semaphore.Weighted
	pending *semaphore.Weighted

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	newID  func() string
	logger zerolog.Logger
}

// New returns an Orchestrator ready to accept requests.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	if cfg.MaxPending < cfg.MaxConcurrent {
		cfg.MaxPending = cfg.MaxConcurrent
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.Model == "" {
		cfg.Model = analyzer.DefaultModel
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/ManuGH/vidlens/internal/orchestrator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:     cfg,
		deps:    deps,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		pending: semaphore.NewWeighted(int64(cfg.MaxPending)),
		baseCtx: ctx,
		cancel:  cancel,
		newID:   uuid.NewString,
		logger:  log.WithComponent("orchestrator"),
	}
}

// Submit admits req and returns before any processing starts. The run continues
// in the background and reports its outcome only through the Sink and the Ledger.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (Ack, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		metrics.IncRunRejected("closed")
		return Ack{}, ErrClosed
	}
	if !o.pending.TryAcquire(1) {
		metrics.IncRunRejected("queue_full")
		return Ack{}, ErrQueueFull
	}

	id := o.newID()
	logger := log.WithContext(ctx, o.logger).With().
		Str(log.FieldRunID, id).
		Str(log.FieldVideoName, req.VideoName).
		Str(log.FieldRecordID, req.RecordID).
		Logger()

	if o.deps.Ledger != nil {
		if err := o.deps.Ledger.Create(ctx, id, req.VideoName, req.RecordID); err != nil {
			logger.Warn().Err(err).Msg("run ledger create failed")
		}
	}

	// Carry the request id into the background run for log correlation.
	runCtx := o.baseCtx
	if rid := log.RequestIDFromContext(ctx); rid != "" {
		runCtx = log.ContextWithRequestID(runCtx, rid)
	}
	runCtx = log.ContextWithRunID(runCtx, id)

	o.wg.Add(1)
	go o.execute(runCtx, id, req)

	logger.Info().Msg("analysis run accepted")
	return Ack{RunID: id, Status: "accepted", Message: AcceptedMessage}, nil
}

// Shutdown stops admitting requests and waits for admitted runs. When ctx expires
// first, the remaining runs are cancelled (their child processes are terminated)
// and still get their failure delivery attempt.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
	}

	o.logger.Warn().Msg("shutdown deadline reached, cancelling in-flight runs")
	o.cancel()
	select {
	case <-done:
	case <-time.After(shutdownDrainGrace):
		o.logger.Error().Msg("in-flight runs did not stop after cancellation")
	}
	return ctx.Err()
}
