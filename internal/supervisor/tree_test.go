// Pulse - Workplace Presence Analytics
// Copyright 2026 OfficePulse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/officepulse/pulse

package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingService struct {
	serves atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	c.serves.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (c *countingService) String() string { return "counting-service" }

func newTestTree(t *testing.T) *SupervisorTree {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree, err := NewSupervisorTree(logger, DefaultTreeConfig())
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}
	return tree
}

func TestTreeRunsServicesInAllLayers(t *testing.T) {
	tree := newTestTree(t)

	ingestSvc := &countingService{}
	analyticsSvc := &countingService{}
	apiSvc := &countingService{}
	tree.AddIngestService(ingestSvc)
	tree.AddAnalyticsService(analyticsSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ingestSvc.serves.Load() > 0 && analyticsSvc.serves.Load() > 0 && apiSvc.serves.Load() > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if ingestSvc.serves.Load() == 0 {
		t.Error("Ingest service never served")
	}
	if analyticsSvc.serves.Load() == 0 {
		t.Error("Analytics service never served")
	}
	if apiSvc.serves.Load() == 0 {
		t.Error("API service never served")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Tree did not stop after cancel")
	}
}

func TestTreeConfigDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tree, err := NewSupervisorTree(logger, TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %f, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", tree.config.ShutdownTimeout)
	}
}
