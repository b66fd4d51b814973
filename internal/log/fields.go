// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldEvent     = "event"

	// Identity fields
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldRecordID  = "record_id"
	FieldVideoName = "video_name"
	FieldAppID     = "app_id"

	// Process fields
	FieldPID      = "pid"
	FieldBinary   = "binary"
	FieldExitCode = "exit_code"

	// Media fields
	FieldPath        = "path"
	FieldOutputPath  = "output_path"
	FieldSizeBytes   = "size_bytes"
	FieldResolution  = "resolution"
	FieldFPS         = "fps"
	FieldQuality     = "crf"
	FieldModel       = "model"
	FieldStage       = "stage"
	FieldDurationSec = "duration_s"
)
