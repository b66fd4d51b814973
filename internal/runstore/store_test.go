// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "runs.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Lifecycle(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Create(ctx, "run-1", "clip", "rec1"))
	r, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, r.Status)
	assert.Equal(t, "clip", r.VideoName)
	assert.Equal(t, "rec1", r.RecordID)
	assert.Nil(t, r.FinishedAt)

	clock = clock.Add(time.Second)
	require.NoError(t, s.SetStage(ctx, "run-1", "compress"))
	r, err = s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, r.Status)
	assert.Equal(t, "compress", r.Stage)

	clock = clock.Add(time.Second)
	require.NoError(t, s.Finish(ctx, "run-1", Result{Status: StatusSucceeded, MediaPath: "/v/clip.mp4", ReportPath: "/v/clip.md", Delivery: "delivered"}))
	r, err = s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, r.Status)
	assert.Equal(t, "done", r.Stage)
	assert.Equal(t, "/v/clip.md", r.ReportPath)
	require.NotNil(t, r.FinishedAt)
	assert.True(t, r.FinishedAt.Equal(clock))
}

func TestStore_FinishedRunIsImmutable(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "run-1", "clip", ""))
	require.NoError(t, s.Finish(ctx, "run-1", Result{Status: StatusFailed, Error: "no matching file"}))

	assert.ErrorIs(t, s.Finish(ctx, "run-1", Result{Status: StatusSucceeded}), ErrNotFound)
	assert.ErrorIs(t, s.SetStage(ctx, "run-1", "analyze"), ErrNotFound)

	r, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "no matching file", r.Error)
}

func TestStore_UnknownRun(t *testing.T) {
	s := openTest(t)

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetStage(context.Background(), "nope", "x"), ErrNotFound)
}

func TestStore_DuplicateCreateFails(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, "run-1", "clip", ""))
	assert.Error(t, s.Create(ctx, "run-1", "clip", ""))
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, "run-1", "clip", ""))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "run-1")
	require.NoError(t, err)

	issues, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Nil(t, issues)
}
