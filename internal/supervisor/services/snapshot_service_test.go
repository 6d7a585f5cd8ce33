// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// countingSaver records save calls and can be made to fail.
type countingSaver struct {
	saves atomic.Int32
	err   error
	dirs  chan string
}

func (c *countingSaver) SaveSnapshots(dir string) error {
	c.saves.Add(1)
	if c.dirs != nil {
		select {
		case c.dirs <- dir:
		default:
		}
	}
	return c.err
}

func TestSnapshotServicePeriodicSave(t *testing.T) {
	saver := &countingSaver{dirs: make(chan string, 1)}
	var notified atomic.Int32
	svc := NewSnapshotService(saver, "/tmp/snapshots", 20*time.Millisecond,
		func() { notified.Add(1) }, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	select {
	case dir := <-saver.dirs:
		if dir != "/tmp/snapshots" {
			t.Errorf("save dir = %q, want /tmp/snapshots", dir)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no periodic save observed")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	// At least one periodic save plus the shutdown save.
	if got := saver.saves.Load(); got < 2 {
		t.Errorf("save calls = %d, want >= 2", got)
	}
	if notified.Load() < 2 {
		t.Errorf("onSaved calls = %d, want >= 2", notified.Load())
	}
}

func TestSnapshotServiceDisabledIntervalSavesOnShutdown(t *testing.T) {
	saver := &countingSaver{}
	svc := NewSnapshotService(saver, t.TempDir(), 0, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if got := saver.saves.Load(); got != 0 {
		t.Errorf("save calls before shutdown = %d, want 0", got)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	if got := saver.saves.Load(); got != 1 {
		t.Errorf("save calls = %d, want exactly the shutdown save", got)
	}
}

func TestSnapshotServiceSurvivesSaveFailure(t *testing.T) {
	saver := &countingSaver{err: errors.New("disk full"), dirs: make(chan string, 1)}
	svc := NewSnapshotService(saver, t.TempDir(), 20*time.Millisecond, nil, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// A failing save must not end Serve before the context does.
	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() error = %v, want context.DeadlineExceeded", err)
	}
	if saver.saves.Load() < 1 {
		t.Error("no save attempts recorded")
	}
}

func TestSnapshotServiceString(t *testing.T) {
	svc := NewSnapshotService(&countingSaver{}, ".", time.Minute, nil, zerolog.Nop())
	if svc.String() != "snapshot-service" {
		t.Errorf("String() = %q, want snapshot-service", svc.String())
	}
}
