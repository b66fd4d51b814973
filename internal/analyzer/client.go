// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package analyzer sends a video to an OpenAI-compatible multimodal model and
// stores the returned report next to the source file.
package analyzer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/vidlens/internal/log"
	"github.com/ManuGH/vidlens/internal/media"
	"github.com/ManuGH/vidlens/internal/metrics"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel   = "qwen-vl-max"

	// DefaultInlineThreshold is the largest video embedded into the request body.
	DefaultInlineThreshold int64 = 20 * 1024 * 1024

	reportExt = ".md"
)

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config configures a Client.
type Config struct {
	APIKey  string
	BaseURL string
	// HTTPClient defaults to http.DefaultClient inside go-openai.
	HTTPClient      *http.Client
	InlineThreshold int64
	Timeout         time.Duration
}

// Client is the model endpoint client.
type Client struct {
	api             chatCompleter
	inlineThreshold int64
	timeout         time.Duration
	logger          zerolog.Logger
}

// New builds a Client for an OpenAI-compatible chat-completions endpoint.
func New(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	threshold := cfg.InlineThreshold
	if threshold <= 0 {
		threshold = DefaultInlineThreshold
	}
	return &Client{
		api:             openai.NewClientWithConfig(oc),
		inlineThreshold: threshold,
		timeout:         cfg.Timeout,
		logger:          log.WithComponent("analyzer"),
	}
}

// ReportPath is where the report for the video at src is written: same directory, same basename.
func ReportPath(src string) string {
	return filepath.Join(filepath.Dir(src), media.StripExt(filepath.Base(src))+reportExt)
}

// Analyze sends the video at path to model with the instruction document as system
// message, persists the report and returns it. It does not retry.
func (c *Client) Analyze(ctx context.Context, path, instructionPath, model string) Outcome {
	logger := log.WithContext(ctx, c.logger).With().Str(log.FieldPath, path).Str(log.FieldModel, model).Logger()

	out := c.analyze(ctx, path, instructionPath, model, logger)
	switch v := out.(type) {
	case Succeeded:
		metrics.IncAnalysis("succeeded")
	case Failed:
		metrics.IncAnalysis(failureLabel(v.Err))
		logger.Error().Err(v.Err).Msg("analysis failed")
	}
	return out
}

func (c *Client) analyze(ctx context.Context, path, instructionPath, model string, logger zerolog.Logger) Outcome {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Failed{Err: fmt.Errorf("%w: video %s", ErrFileMissing, path)}
	}
	instruction, err := os.ReadFile(instructionPath)
	if err != nil {
		return Failed{Err: fmt.Errorf("%w: instruction document %s: %v", ErrFileMissing, instructionPath, err)}
	}

	userMsg, err := c.userMessage(path, info.Size(), logger)
	if err != nil {
		return Failed{Err: err}
	}

	if model == "" {
		model = DefaultModel
	}
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: string(instruction)},
			{Role: openai.ChatMessageRoleUser, Content: userMsg},
		},
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logger.Info().Int64(log.FieldSizeBytes, info.Size()).Msg("requesting analysis")
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(callCtx, req)
	if err != nil {
		return Failed{Err: classify(err)}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Failed{Err: ErrEmptyResponse}
	}
	report := resp.Choices[0].Message.Content

	dst := ReportPath(path)
	if err := renameio.WriteFile(dst, []byte(report), 0o644); err != nil {
		return Failed{Err: fmt.Errorf("%w: %s: %v", ErrReportWrite, dst, err)}
	}
	logger.Info().Str(log.FieldOutputPath, dst).Dur("elapsed", time.Since(start)).Int("report_chars", len(report)).Msg("analysis report saved")
	return Succeeded{Report: report, ReportPath: dst}
}

func (c *Client) userMessage(path string, size int64, logger zerolog.Logger) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	var b strings.Builder
	b.WriteString("Video file information:\n")
	fmt.Fprintf(&b, "- path: %s\n", abs)
	fmt.Fprintf(&b, "- size: %.2f MB\n\n", float64(size)/1024/1024)

	if size < c.inlineThreshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: video %s: %v", ErrFileMissing, path, err)
		}
		fmt.Fprintf(&b, "Video content:\ndata:%s;base64,%s\n\n", mimeType(path), base64.StdEncoding.EncodeToString(data))
		logger.Debug().Msg("video embedded inline")
	} else {
		logger.Warn().Int64(log.FieldSizeBytes, size).Msg("video too large to embed, sending reference only")
	}

	b.WriteString("Analyse this video following the instructions.")
	return b.String(), nil
}

func mimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".flv":
		return "video/x-flv"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".m4v":
		return "video/x-m4v"
	default:
		return "video/mp4"
	}
}

// classify wraps a go-openai error into a RemoteError.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		re := &RemoteError{HTTPStatus: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
		if apiErr.Code != nil {
			re.Code = fmt.Sprint(apiErr.Code)
		}
		return re
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &RemoteError{HTTPStatus: reqErr.HTTPStatusCode, Err: err}
	}
	return &RemoteError{Err: err}
}

func failureLabel(err error) string {
	switch {
	case errors.Is(err, ErrFileMissing):
		return "file_missing"
	case errors.Is(err, ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, ErrRemote):
		return "remote_error"
	default:
		return "failed"
	}
}
