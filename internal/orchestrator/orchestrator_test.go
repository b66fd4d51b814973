// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/vidlens/internal/analyzer"
	"github.com/ManuGH/vidlens/internal/compress"
	"github.com/ManuGH/vidlens/internal/procexec"
	"github.com/ManuGH/vidlens/internal/recordstore"
	"github.com/ManuGH/vidlens/internal/runstore"
	"github.com/ManuGH/vidlens/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type delivery struct {
	kind     string
	recordID string
	text     string
}

type fakeSink struct {
	ch chan delivery
}

func newFakeSink() *fakeSink { return &fakeSink{ch: make(chan delivery, 16)} }

func (s *fakeSink) DeliverSuccess(_ context.Context, recordID, report string, _ time.Duration) recordstore.Receipt {
	s.ch <- delivery{kind: "success", recordID: recordID, text: report}
	return recordstore.Receipt{Status: recordstore.StatusDelivered}
}

func (s *fakeSink) DeliverFailure(_ context.Context, recordID, reason string) recordstore.Receipt {
	s.ch <- delivery{kind: "failure", recordID: recordID, text: reason}
	return recordstore.Receipt{Status: recordstore.StatusDelivered}
}

func (s *fakeSink) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-s.ch:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery within 5s")
		return delivery{}
	}
}

func (s *fakeSink) none(t *testing.T) {
	t.Helper()
	select {
	case d := <-s.ch:
		t.Fatalf("unexpected extra delivery %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	paths []string
	out   analyzer.Outcome
	panic bool
}

func (a *fakeAnalyzer) Analyze(_ context.Context, path, _, _ string) analyzer.Outcome {
	a.mu.Lock()
	a.paths = append(a.paths, path)
	a.mu.Unlock()
	if a.panic {
		panic("model client exploded")
	}
	if a.out != nil {
		return a.out
	}
	return analyzer.Succeeded{Report: "report for " + filepath.Base(path), ReportPath: analyzer.ReportPath(path)}
}

func (a *fakeAnalyzer) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.paths...)
}

// fakeRunner stands in for the transcoder process.
type fakeRunner struct {
	mu      sync.Mutex
	args    [][]string
	timeout []time.Duration
	err     error
}

func (r *fakeRunner) Run(_ context.Context, _ string, args []string, timeout time.Duration) (procexec.Result, error) {
	r.mu.Lock()
	r.args = append(r.args, args)
	r.timeout = append(r.timeout, timeout)
	r.mu.Unlock()
	if r.err != nil {
		return procexec.Result{ExitCode: -1}, r.err
	}
	if err := sparse(args[len(args)-1], 60*compress.MiB); err != nil {
		return procexec.Result{}, err
	}
	return procexec.Result{}, nil
}

func (r *fakeRunner) Available(context.Context, string) bool { return true }

func sparse(path string, size int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type harness struct {
	dir      string
	runner   *fakeRunner
	analyzer *fakeAnalyzer
	sink     *fakeSink
	orch     *Orchestrator
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		dir:      t.TempDir(),
		runner:   &fakeRunner{},
		analyzer: &fakeAnalyzer{},
		sink:     newFakeSink(),
	}
	exec := compress.NewExecutor(h.dir, "ffmpeg", h.runner)
	exec.Logger = zerolog.New(io.Discard)
	h.orch = New(cfg, Deps{Compressor: exec, Analyzer: h.analyzer, Sink: h.sink})
	h.orch.logger = zerolog.New(io.Discard)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.orch.Shutdown(ctx)
	})
	return h
}

func TestRun_SmallSourceSkipsCompression(t *testing.T) {
	h := newHarness(t, Config{})
	src := filepath.Join(h.dir, "clip.mp4")
	require.NoError(t, sparse(src, 50*compress.MiB))

	ack, err := h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)
	assert.Equal(t, "accepted", ack.Status)
	assert.NotEmpty(t, ack.RunID)

	d := h.sink.next(t)
	assert.Equal(t, delivery{kind: "success", recordID: "rec1", text: "report for clip.mp4"}, d)
	assert.Equal(t, []string{src}, h.analyzer.calls())
	assert.Empty(t, h.runner.args)
	h.sink.none(t)
}

func TestRun_LargeSourceIsCompressedBeforeAnalysis(t *testing.T) {
	h := newHarness(t, Config{})
	src := filepath.Join(h.dir, "clip.mov")
	require.NoError(t, sparse(src, 500*compress.MiB))

	_, err := h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "success", d.kind)

	plan := compress.PlanFor(500 * compress.MiB)
	assert.Equal(t, 1280, plan.Width)
	assert.Equal(t, 24, plan.FrameRate)
	assert.Equal(t, 25, plan.Quality)
	assert.Equal(t, 2400*time.Second, plan.Timeout)

	out := filepath.Join(h.dir, "clip_compressed_1280x720_24fps-release.mp4")
	h.runner.mu.Lock()
	require.Len(t, h.runner.args, 1)
	assert.Equal(t, compress.BuildArgs(src, out, plan), h.runner.args[0])
	assert.Equal(t, plan.Timeout, h.runner.timeout[0])
	h.runner.mu.Unlock()

	assert.Equal(t, []string{out}, h.analyzer.calls())
}

func TestRun_MissingFileDeliversFailureWithoutAnalysis(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.Submit(context.Background(), Request{VideoName: "ghost", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Contains(t, d.text, "no matching file")
	assert.Empty(t, h.analyzer.calls())
	h.sink.none(t)
}

func TestRun_TranscodeTimeoutDeliversFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.runner.err = fmt.Errorf("%w after 2400s", procexec.ErrTimedOut)
	require.NoError(t, sparse(filepath.Join(h.dir, "clip.mp4"), 300*compress.MiB))

	_, err := h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Contains(t, d.text, "compression timed out")
	assert.Empty(t, h.analyzer.calls())
}

func TestBlankNameDeliversFailure(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.orch.Submit(context.Background(), Request{VideoName: " ", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Equal(t, ErrNameRequired.Error(), d.text)
}

func TestRun_FailureIsRecordedOnSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	exec := compress.NewExecutor(t.TempDir(), "ffmpeg", &fakeRunner{})
	exec.Logger = zerolog.New(io.Discard)
	sink := newFakeSink()
	o := New(Config{}, Deps{Compressor: exec, Analyzer: &fakeAnalyzer{}, Sink: sink, Tracer: tp.Tracer("test")})
	o.logger = zerolog.New(io.Discard)

	ack, err := o.Submit(context.Background(), Request{VideoName: "ghost", RecordID: "rec1"})
	require.NoError(t, err)
	d := sink.next(t)
	require.NoError(t, o.Shutdown(context.Background()))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "analysis.run", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String(telemetry.RunIDKey, ack.RunID))
	assert.Contains(t, span.Attributes(), attribute.Bool(telemetry.ErrorKey, true))
	assert.Contains(t, span.Attributes(), attribute.String(telemetry.ErrorTypeKey, d.text))
	assert.Contains(t, span.Attributes(), attribute.String(telemetry.RunStatusKey, string(runstore.StatusFailed)))
}

func TestAnalysisFailureDeliversReason(t *testing.T) {
	h := newHarness(t, Config{})
	h.analyzer.out = analyzer.Failed{Err: analyzer.ErrEmptyResponse}
	require.NoError(t, sparse(filepath.Join(h.dir, "clip.mp4"), compress.MiB))

	_, err := h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Equal(t, analyzer.ErrEmptyResponse.Error(), d.text)
	h.sink.none(t)
}

func TestPanicIsRecoveredAndDeliveredOnce(t *testing.T) {
	h := newHarness(t, Config{})
	h.analyzer.panic = true
	require.NoError(t, sparse(filepath.Join(h.dir, "clip.mp4"), compress.MiB))

	_, err := h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)

	d := h.sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Contains(t, d.text, "internal error during analyze")
	assert.Contains(t, d.text, "model client exploded")
	h.sink.none(t)

	// The process survived and still accepts work.
	_, err = h.orch.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec2"})
	require.NoError(t, err)
	assert.Equal(t, "failure", h.sink.next(t).kind)
}

// blockingCompressor parks every run until released or cancelled.
type blockingCompressor struct {
	active  atomic.Int32
	peak    atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCompressor) Run(ctx context.Context, _ string) compress.Outcome {
	n := b.active.Add(1)
	defer b.active.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return compress.Skipped{Path: "/dev/null"}
	case <-ctx.Done():
		return compress.Failed{Err: ctx.Err()}
	}
}

func TestConcurrencyAndAdmissionLimits(t *testing.T) {
	bc := &blockingCompressor{entered: make(chan struct{}, 8), release: make(chan struct{})}
	sink := newFakeSink()
	o := New(Config{MaxConcurrent: 1, MaxPending: 2}, Deps{Compressor: bc, Analyzer: &fakeAnalyzer{}, Sink: sink})

	_, err := o.Submit(context.Background(), Request{VideoName: "a"})
	require.NoError(t, err)
	_, err = o.Submit(context.Background(), Request{VideoName: "b"})
	require.NoError(t, err)
	_, err = o.Submit(context.Background(), Request{VideoName: "c"})
	assert.ErrorIs(t, err, ErrQueueFull)

	<-bc.entered
	close(bc.release)
	<-bc.entered
	sink.next(t)
	sink.next(t)
	assert.EqualValues(t, 1, bc.peak.Load())

	require.NoError(t, o.Shutdown(context.Background()))
	_, err = o.Submit(context.Background(), Request{VideoName: "d"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestShutdownDeadlineCancelsRunsAndStillDelivers(t *testing.T) {
	bc := &blockingCompressor{entered: make(chan struct{}, 1), release: make(chan struct{})}
	sink := newFakeSink()
	o := New(Config{}, Deps{Compressor: bc, Analyzer: &fakeAnalyzer{}, Sink: sink})

	_, err := o.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)
	<-bc.entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = o.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	d := sink.next(t)
	assert.Equal(t, "failure", d.kind)
	assert.Contains(t, d.text, "context canceled")
}

func TestLedgerTracksRun(t *testing.T) {
	store, err := runstore.Open(context.Background(), filepath.Join(t.TempDir(), "runs.sqlite"))
	require.NoError(t, err)
	defer store.Close()

	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	require.NoError(t, sparse(src, compress.MiB))
	exec := compress.NewExecutor(dir, "ffmpeg", &fakeRunner{})
	sink := newFakeSink()
	o := New(Config{}, Deps{Compressor: exec, Analyzer: &fakeAnalyzer{}, Sink: sink, Ledger: store})

	ack, err := o.Submit(context.Background(), Request{VideoName: "clip", RecordID: "rec1"})
	require.NoError(t, err)
	sink.next(t)
	require.NoError(t, o.Shutdown(context.Background()))

	r, err := store.Get(context.Background(), ack.RunID)
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSucceeded, r.Status)
	assert.Equal(t, src, r.MediaPath)
	assert.Equal(t, filepath.Join(dir, "clip.md"), r.ReportPath)
	assert.Equal(t, string(recordstore.StatusDelivered), r.Delivery)
	assert.NotNil(t, r.FinishedAt)
}
