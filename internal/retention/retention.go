// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package retention runs the periodic registry sweep that drops
// metrics no longer referenced by any active collector, grounded on
// the teacher's own taskManager package: a single gocron.Scheduler
// shared by every registered job, one DurationJob per concern.
package retention

import (
	"context"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/go-co-op/gocron/v2"

	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

// Lookup reports whether id is still referenced by an active
// collector descriptor; the caller (cmd/agent-core) supplies this,
// since the registry itself doesn't know which descriptors are live.
type Lookup func(id ringstore.MetricId) bool

// Worker periodically walks a MetricRegistry and retires metrics
// Lookup no longer recognizes.
type Worker struct {
	scheduler gocron.Scheduler
	registry  *ringstore.MetricRegistry
	isLive    Lookup
	timeout   time.Duration
}

// New builds a Worker that sweeps registry every interval, bounding
// each pass with a context timeout so a slow sweep can't overlap with
// the next scheduled run.
func New(registry *ringstore.MetricRegistry, isLive Lookup, interval time.Duration) (*Worker, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	w := &Worker{scheduler: s, registry: registry, isLive: isLive, timeout: interval}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.sweep),
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Start begins running the scheduled sweep in the background.
func (w *Worker) Start() {
	w.scheduler.Start()
}

// Shutdown stops the scheduler, waiting for an in-flight sweep to
// finish.
func (w *Worker) Shutdown() error {
	return w.scheduler.Shutdown()
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	removed := 0
	for _, entry := range w.registry.List() {
		select {
		case <-ctx.Done():
			cclog.Warnf("[RETENTION]> sweep timed out after removing %d metrics", removed)
			return
		default:
		}

		if w.isLive(entry.ID) {
			continue
		}
		w.registry.RetentionDelete(entry.ID)
		removed++
	}

	if removed > 0 {
		cclog.Infof("[RETENTION]> swept %d retired metrics, %d remain", removed, w.registry.Len())
	}
}
