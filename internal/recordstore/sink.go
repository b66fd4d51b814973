// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recordstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/credentials"
	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultReportField is the record field receiving the report text.
const DefaultReportField = "分析报告"

const failurePrefix = "Analysis failed: "

// TokenSource hands out bearer tokens for an identity.
type TokenSource interface {
	Token(ctx context.Context, id credentials.Identity) (string, error)
	Invalidate(ctx context.Context, id credentials.Identity)
}

type recordUpdater interface {
	UpdateRecord(ctx context.Context, bearer string, ref RecordRef, fields *FieldUpdate) error
}

// SinkConfig names the target table and the fields results are written to.
type SinkConfig struct {
	Identity credentials.Identity
	AppToken string
	TableID  string

	ReportField string
	// ErrorField receives the failure reason. When empty, failures are written
	// into ReportField with a prefix.
	ErrorField string
	// ElapsedField, when set, receives the run duration in seconds as a number.
	ElapsedField string
}

// Complete reports whether every value needed to address a record is present.
func (c SinkConfig) Complete() bool {
	for _, v := range []string{c.Identity.AppID, c.Identity.Secret, c.AppToken, c.TableID} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Status is the result class of a delivery.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Receipt describes one delivery attempt. Err is set for StatusFailed and holds
// the skip reason for StatusSkipped.
type Receipt struct {
	Status Status
	Err    error
}

func (r Receipt) OK() bool { return r.Status == StatusDelivered }

var (
	errNoRecord         = errors.New("no record id")
	errIncompleteConfig = errors.New("record store configuration incomplete")
)

// Sink delivers analysis results to the record store. It makes one attempt per call.
type Sink struct {
	updater recordUpdater
	tokens  TokenSource
	cfg     SinkConfig
	logger  zerolog.Logger
}

// NewSink returns a Sink writing through client with tokens from tokens.
func NewSink(client *Client, tokens TokenSource, cfg SinkConfig) *Sink {
	return newSink(client, tokens, cfg)
}

func newSink(updater recordUpdater, tokens TokenSource, cfg SinkConfig) *Sink {
	if cfg.ReportField == "" {
		cfg.ReportField = DefaultReportField
	}
	return &Sink{
		updater: updater,
		tokens:  tokens,
		cfg:     cfg,
		logger:  log.WithComponent("sink"),
	}
}

// DeliverSuccess writes report (and elapsed, if configured) into the record.
func (s *Sink) DeliverSuccess(ctx context.Context, recordID, report string, elapsed time.Duration) Receipt {
	fields := NewFieldUpdate().SetValue(s.cfg.ReportField, report)
	if s.cfg.ElapsedField != "" {
		fields.SetValue(s.cfg.ElapsedField, int64(elapsed.Round(time.Second)/time.Second))
	}
	return s.deliver(ctx, "success", recordID, fields)
}

// DeliverFailure writes reason into the error field, or into the report field when
// no error field is configured.
func (s *Sink) DeliverFailure(ctx context.Context, recordID, reason string) Receipt {
	fields := NewFieldUpdate()
	if s.cfg.ErrorField != "" {
		fields.SetValue(s.cfg.ErrorField, reason)
	} else {
		fields.SetValue(s.cfg.ReportField, failurePrefix+reason)
	}
	return s.deliver(ctx, "failure", recordID, fields)
}

func (s *Sink) deliver(ctx context.Context, kind, recordID string, fields *FieldUpdate) Receipt {
	logger := log.WithContext(ctx, s.logger).With().Str(log.FieldRecordID, recordID).Str("kind", kind).Logger()

	if strings.TrimSpace(recordID) == "" {
		metrics.IncDelivery(kind, string(StatusSkipped))
		logger.Info().Msg("no record id, skipping delivery")
		return Receipt{Status: StatusSkipped, Err: errNoRecord}
	}
	if !s.cfg.Complete() {
		metrics.IncDelivery(kind, string(StatusSkipped))
		logger.Warn().Msg("record store configuration incomplete, skipping delivery")
		return Receipt{Status: StatusSkipped, Err: errIncompleteConfig}
	}

	token, err := s.tokens.Token(ctx, s.cfg.Identity)
	if err != nil {
		return s.fail(logger, kind, err)
	}

	ref := RecordRef{AppToken: s.cfg.AppToken, TableID: s.cfg.TableID, RecordID: recordID}
	if err := s.updater.UpdateRecord(ctx, token, ref, fields); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.TokenRejected() {
			// The next delivery reissues; this one is not retried.
			s.tokens.Invalidate(ctx, s.cfg.Identity)
		}
		return s.fail(logger, kind, err)
	}

	metrics.IncDelivery(kind, string(StatusDelivered))
	logger.Info().Strs("fields", fields.Names()).Msg("record updated")
	return Receipt{Status: StatusDelivered}
}

func (s *Sink) fail(logger zerolog.Logger, kind string, err error) Receipt {
	metrics.IncDelivery(kind, string(StatusFailed))
	logger.Error().Err(err).Msg("record delivery failed")
	return Receipt{Status: StatusFailed, Err: err}
}
