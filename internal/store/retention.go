// QR-Verify - Product Authentication and Scan Fraud Detection
// Copyright 2026 Dan P. (Danproc)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Danproc/QR-Verify-sub002

package store

import (
	"context"
	"time"

	"github.com/Danproc/QR-Verify-sub002/internal/config"
	"github.com/Danproc/QR-Verify-sub002/internal/logging"
	"github.com/Danproc/QR-Verify-sub002/internal/metrics"
)

// RetentionSweeper periodically deletes scan events past the retention
// horizon. Alerts are exempt; they are the audit trail. Implements
// suture.Service.
type RetentionSweeper struct {
	store *Store
	cfg   config.RetentionConfig
}

// NewRetentionSweeper builds the sweeper. A zero MaxEventAge disables
// sweeping; Serve then just blocks until shutdown.
func NewRetentionSweeper(store *Store, cfg config.RetentionConfig) *RetentionSweeper {
	return &RetentionSweeper{store: store, cfg: cfg}
}

func (r *RetentionSweeper) String() string {
	return "retention-sweeper"
}

// Serve runs the sweep loop until the context is canceled. One sweep
// runs immediately on startup so a long-stopped instance catches up.
func (r *RetentionSweeper) Serve(ctx context.Context) error {
	if r.cfg.MaxEventAge <= 0 {
		logging.Info().Msg("Scan event retention disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	interval := r.cfg.SweepInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	r.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *RetentionSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.MaxEventAge)

	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	deleted, err := r.store.DeleteEventsBefore(sweepCtx, cutoff)
	if err != nil {
		logging.Error().Err(err).Time("cutoff", cutoff).Msg("Retention sweep failed")
		return
	}

	metrics.RetentionEventsDeleted.Add(float64(deleted))
	if deleted > 0 {
		logging.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Retention sweep completed")
	}
}
