// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/analyzer"
	"github.com/ManuGH/vidlens/internal/compress"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/ManuGH/vidlens/internal/recordstore"
	"github.com/ManuGH/vidlens/internal/runstore"
	"github.com/ManuGH/vidlens/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stageValidate = "validate"
	stageWait     = "queued"
	stageCompress = "compress"
	stageAnalyze  = "analyze"
	stageDeliver  = "deliver"
)

// run is the state of one background execution. terminal guards the single delivery.
type run struct {
	o      *Orchestrator
	id     string
	req    Request
	start  time.Time
	span   trace.Span
	logger zerolog.Logger

	stage      string
	terminal   bool
	mediaPath  string
	reportPath string
}

func (o *Orchestrator) execute(ctx context.Context, id string, req Request) {
	defer o.wg.Done()
	defer o.pending.Release(1)

	ctx, span := o.deps.Tracer.Start(ctx, "analysis.run", trace.WithAttributes(
		telemetry.RunAttributes(id, req.VideoName, strings.TrimSpace(req.RecordID) != "")...,
	))
	defer span.End()

	r := &run{
		o:     o,
		id:    id,
		req:   req,
		start: time.Now(),
		span:  span,
		logger: log.WithContext(ctx, o.logger).With().
			Str(log.FieldVideoName, req.VideoName).
			Str(log.FieldRecordID, req.RecordID).
			Logger(),
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str(log.FieldStage, r.stage).
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("analysis run panicked")
			r.fail(ctx, fmt.Errorf("internal error during %s: %v", r.stage, p))
		}
	}()

	r.enter(ctx, stageWait)
	if err := o.slots.Acquire(ctx, 1); err != nil {
		r.fail(ctx, fmt.Errorf("run cancelled before start: %w", err))
		return
	}
	defer o.slots.Release(1)

	stopGauge := metrics.RunStarted()
	defer stopGauge()

	r.pipeline(ctx)
}

func (r *run) pipeline(ctx context.Context) {
	r.enter(ctx, stageValidate)
	if strings.TrimSpace(r.req.VideoName) == "" {
		r.fail(ctx, ErrNameRequired)
		return
	}

	r.enter(ctx, stageCompress)
	stageStart := time.Now()
	cout := r.o.deps.Compressor.Run(ctx, r.req.VideoName)
	metrics.ObserveStage(stageCompress, time.Since(stageStart))
	if f, ok := cout.(compress.Failed); ok {
		r.fail(ctx, failure(f.Err, f.Reason()))
		return
	}
	r.mediaPath = compress.MediaPath(cout)
	if c, ok := cout.(compress.Compressed); ok {
		r.span.SetAttributes(telemetry.CompressionAttributes(c.OriginalSize, c.OutputSize, c.Plan.Resolution(), c.OverCeiling)...)
	}

	r.enter(ctx, stageAnalyze)
	model := r.o.cfg.Model
	if model == "" {
		model = analyzer.DefaultModel
	}
	r.span.SetAttributes(telemetry.AnalysisAttributes(model)...)
	stageStart = time.Now()
	aout := r.o.deps.Analyzer.Analyze(ctx, r.mediaPath, r.o.cfg.InstructionPath, model)
	metrics.ObserveStage(stageAnalyze, time.Since(stageStart))
	switch v := aout.(type) {
	case analyzer.Succeeded:
		r.reportPath = v.ReportPath
		r.succeed(ctx, v.Report)
	case analyzer.Failed:
		r.fail(ctx, failure(v.Err, v.Reason()))
	default:
		r.fail(ctx, fmt.Errorf("unexpected analysis outcome %T", aout))
	}
}

func (r *run) enter(ctx context.Context, stage string) {
	r.stage = stage
	r.span.AddEvent("stage", trace.WithAttributes(telemetry.StageAttributes(stage)...))
	if r.o.deps.Ledger == nil {
		return
	}
	if err := r.o.deps.Ledger.SetStage(ctx, r.id, stage); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldStage, stage).Msg("run ledger stage update failed")
	}
}

func (r *run) succeed(ctx context.Context, report string) {
	if r.terminal {
		return
	}
	r.terminal = true

	elapsed := time.Since(r.start)
	dctx, cancel := r.deliveryContext(ctx)
	defer cancel()

	r.stage = stageDeliver
	receipt := r.o.deps.Sink.DeliverSuccess(dctx, r.req.RecordID, report, elapsed)
	r.finish(dctx, runstore.StatusSucceeded, "", receipt, elapsed)
}

func (r *run) fail(ctx context.Context, cause error) {
	if r.terminal {
		return
	}
	r.terminal = true

	elapsed := time.Since(r.start)
	failedStage := r.stage
	reason := cause.Error()
	r.span.RecordError(cause)
	r.span.SetAttributes(telemetry.ErrorAttributes(cause)...)
	r.span.SetStatus(codes.Error, reason)
	r.logger.Error().Str(log.FieldStage, failedStage).Str("reason", reason).Msg("analysis run failed")

	dctx, cancel := r.deliveryContext(ctx)
	defer cancel()

	r.stage = stageDeliver
	receipt := r.o.deps.Sink.DeliverFailure(dctx, r.req.RecordID, reason)
	r.finish(dctx, runstore.StatusFailed, reason, receipt, elapsed)
}

// failure returns err, or an error carrying reason when a stage reported none.
func failure(err error, reason string) error {
	if err != nil {
		return err
	}
	return errors.New(reason)
}

// deliveryContext survives orchestrator cancellation so a cancelled run still reports.
func (r *run) deliveryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.o.cfg.DeliveryTimeout)
}

func (r *run) finish(ctx context.Context, status runstore.Status, reason string, receipt recordstore.Receipt, elapsed time.Duration) {
	metrics.IncRun(string(status), elapsed)

	ev := r.logger.Info()
	if receipt.Status == recordstore.StatusFailed {
		ev = r.logger.Warn().Err(receipt.Err)
	}
	ev.Str("status", string(status)).
		Str("delivery", string(receipt.Status)).
		Bool("delivered", receipt.OK()).
		Float64(log.FieldDurationSec, elapsed.Seconds()).
		Msg("analysis run finished")

	r.span.SetAttributes(telemetry.OutcomeAttributes(string(status), string(receipt.Status))...)
	if status == runstore.StatusSucceeded {
		r.span.SetStatus(codes.Ok, "")
	}

	if r.o.deps.Ledger == nil {
		return
	}
	res := runstore.Result{
		Status:     status,
		Error:      reason,
		MediaPath:  r.mediaPath,
		ReportPath: r.reportPath,
		Delivery:   string(receipt.Status),
	}
	if err := r.o.deps.Ledger.Finish(ctx, r.id, res); err != nil {
		r.logger.Warn().Err(err).Msg("run ledger finish failed")
	}
}
