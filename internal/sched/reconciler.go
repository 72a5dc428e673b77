// Package sched implements the Scheduler/Reconciler (spec.md §4.G):
// reap -> enumerate -> cancel-orphans -> converge, at a fixed cadence,
// grounded on original_source/scraper/loop.py's run_loop/run_task for
// the control flow and on the teacher's internal/scheduler/scheduler.go
// for the Go-idiomatic wrapping (a struct holding *zap.Logger, config,
// and a mutex-guarded map) — translated from asyncio tasks +
// asyncio.CancelledError to goroutines + context.CancelFunc + a
// sync.WaitGroup, per spec.md §9's explicit translation note.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/metrics"
	"github.com/slinet/gallerysync/internal/store"
	gsync "github.com/slinet/gallerysync/internal/sync"
)

// runnerHandle tracks one in-flight per-task goroutine.
type runnerHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Reconciler polls sync_tasks and starts/cancels per-task goroutines to
// match desired_status.
type Reconciler struct {
	store   *store.Gateway
	full    *gsync.FullRunner
	incr    *gsync.IncrementalRunner
	log     *zap.Logger
	metrics *metrics.Metrics

	pollInterval time.Duration
	warmupDelay  time.Duration

	mu      sync.Mutex
	runners map[int64]*runnerHandle
	wg      sync.WaitGroup
}

// NewReconciler constructs a Reconciler from its collaborators.
func NewReconciler(st *store.Gateway, full *gsync.FullRunner, incr *gsync.IncrementalRunner, log *zap.Logger, m *metrics.Metrics, pollInterval, warmupDelay time.Duration) *Reconciler {
	return &Reconciler{
		store: st, full: full, incr: incr, log: log, metrics: m,
		pollInterval: pollInterval, warmupDelay: warmupDelay,
		runners: make(map[int64]*runnerHandle),
	}
}

// Run blocks until ctx is cancelled, performing the warm-up delay then
// looping at pollInterval (spec.md §4.G).
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info("reconciler warming up", zap.Duration("delay", r.warmupDelay))
	select {
	case <-time.After(r.warmupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		r.tick(ctx)
		select {
		case <-ctx.Done():
			r.cancelAll()
			r.wg.Wait()
			return
		case <-ticker.C:
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	r.reap()

	tasks, err := r.store.ListSyncTasks(ctx)
	if err != nil {
		r.log.Error("list sync tasks failed", zap.Error(err))
		return
	}

	r.cancelOrphans(tasks)
	r.converge(ctx, tasks)
}

// reap removes handles for goroutines that have already exited.
func (r *Reconciler) reap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.runners {
		select {
		case <-h.done:
			delete(r.runners, id)
		default:
		}
	}
}

// cancelOrphans cancels any in-memory runner whose task row no longer exists.
func (r *Reconciler) cancelOrphans(tasks []store.SyncTask) {
	present := make(map[int64]bool, len(tasks))
	for _, t := range tasks {
		present[t.ID] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, h := range r.runners {
		if !present[id] {
			h.cancel()
		}
	}
}

// converge spawns a runner for each desired=running task with none
// in-flight, and cancels any whose desired status flipped to stopped.
func (r *Reconciler) converge(ctx context.Context, tasks []store.SyncTask) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		_, running := r.runners[t.ID]
		switch {
		case t.DesiredStatus == store.DesiredRunning && !running:
			r.spawn(ctx, t.ID)
		case t.DesiredStatus != store.DesiredRunning && running:
			r.runners[t.ID].cancel()
		}
	}
}

func (r *Reconciler) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.runners {
		h.cancel()
	}
}

// spawn starts runTask(id) as a goroutine. Caller must hold r.mu.
func (r *Reconciler) spawn(parent context.Context, id int64) {
	taskCtx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	r.runners[id] = &runnerHandle{cancel: cancel, done: done}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		r.runTask(taskCtx, id)
	}()
}

// runTask is the per-task coroutine (spec.md §4.G): re-reads the
// runtime row each tick, delegates to the full or incremental runner,
// exits on finished or on noticing desired_status != running, and on
// cancellation best-effort sets status=stopped unless already terminal.
func (r *Reconciler) runTask(ctx context.Context, id int64) {
	for {
		select {
		case <-ctx.Done():
			r.onCancelled(id)
			return
		default:
		}

		rt, err := r.store.GetTaskRuntime(ctx, id)
		if err != nil {
			r.log.Warn("runtime read failed, stopping task goroutine", zap.Int64("task_id", id), zap.Error(err))
			return
		}
		if rt.DesiredStatus != store.DesiredRunning {
			r.setStopped(ctx, id, rt.Status)
			return
		}

		isStopping := func() bool {
			cur, err := r.store.GetTaskRuntime(ctx, id)
			return err == nil && cur.DesiredStatus != store.DesiredRunning
		}

		var finished bool
		start := time.Now()
		switch rt.Type {
		case store.TaskTypeFull:
			finished, err = r.full.Tick(ctx, *rt)
		case store.TaskTypeIncremental:
			finished, err = r.incr.Tick(ctx, *rt, isStopping)
		default:
			r.log.Error("unknown task type", zap.Int64("task_id", id), zap.String("type", string(rt.Type)))
			return
		}
		r.metrics.TaskTicksTotal.WithLabelValues(string(rt.Type)).Inc()
		r.metrics.TaskTickDuration.WithLabelValues(string(rt.Type)).Observe(time.Since(start).Seconds())
		if err != nil {
			r.log.Error("task tick failed, reconciler will reap as crashed", zap.Int64("task_id", id), zap.Error(err))
			msg := err.Error()
			status := store.StatusError
			_ = r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{Status: &status, ErrorMessage: &msg})
			_ = r.store.SetTaskDesiredStatus(ctx, id, store.DesiredStopped)
			return
		}
		if finished {
			return
		}

		select {
		case <-ctx.Done():
			r.onCancelled(id)
			return
		case <-time.After(0):
		}
	}
}

func (r *Reconciler) onCancelled(id int64) {
	rt, err := r.store.GetTaskRuntime(context.Background(), id)
	if err != nil {
		return
	}
	r.setStopped(context.Background(), id, rt.Status)
}

func (r *Reconciler) setStopped(ctx context.Context, id int64, currentStatus string) {
	if currentStatus == store.StatusCompleted || currentStatus == store.StatusError {
		return
	}
	status := store.StatusStopped
	_ = r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{Status: &status})
}
