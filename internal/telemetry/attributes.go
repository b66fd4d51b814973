// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for vidlens.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Run attributes
	RunIDKey         = "run.id"
	RunStatusKey     = "run.status"
	RunStageKey      = "stage"
	VideoNameKey     = "video.name"
	RecordPresentKey = "record.present"

	// Compression attributes
	CompressOriginalBytesKey = "compress.original_bytes"
	CompressOutputBytesKey   = "compress.output_bytes"
	CompressResolutionKey    = "compress.resolution"
	CompressOverCeilingKey   = "compress.over_ceiling"

	// Analysis attributes
	AnalysisModelKey = "analysis.model"

	DeliveryStatusKey = "delivery.status"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RunAttributes creates the attributes attached to a run span at start.
// The record id itself is not recorded.
func RunAttributes(runID, videoName string, hasRecord bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if runID != "" {
		attrs = append(attrs, attribute.String(RunIDKey, runID))
	}
	if videoName != "" {
		attrs = append(attrs, attribute.String(VideoNameKey, videoName))
	}
	return append(attrs, attribute.Bool(RecordPresentKey, hasRecord))
}

// StageAttributes names the pipeline stage of a stage event.
func StageAttributes(stage string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(RunStageKey, stage)}
}

// CompressionAttributes describes a completed transcode.
func CompressionAttributes(originalBytes, outputBytes int64, resolution string, overCeiling bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(CompressOriginalBytesKey, originalBytes),
		attribute.Int64(CompressOutputBytesKey, outputBytes),
		attribute.String(CompressResolutionKey, resolution),
		attribute.Bool(CompressOverCeilingKey, overCeiling),
	}
}

// AnalysisAttributes names the model a run is analysed with.
func AnalysisAttributes(model string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AnalysisModelKey, model)}
}

// OutcomeAttributes records the terminal status of a run and its delivery.
func OutcomeAttributes(status, delivery string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RunStatusKey, status),
		attribute.String(DeliveryStatusKey, delivery),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, err.Error()),
	}
}
