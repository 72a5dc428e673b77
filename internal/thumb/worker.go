// Package thumb implements the Thumbnail Worker (spec.md §4.H): a
// single consumer loop claiming queue rows under row lock, downloading,
// and marking done/failed. Grounded on
// original_source/scraper/loop.py's run_thumb_worker, adapted to
// atomic-replace file writes (tmp + os.Rename via github.com/google/uuid,
// pulled from jorgemgr94-go-learning's cmd/db-connection/main.go usage)
// instead of the Python original's direct non-atomic write_bytes —
// spec.md §6 explicitly recommends atomic replace.
package thumb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/fetch"
	"github.com/slinet/gallerysync/internal/metrics"
	"github.com/slinet/gallerysync/internal/ratelimit"
	"github.com/slinet/gallerysync/internal/store"
)

// Worker drains the thumb_queue at a fixed rate (single consumer, to
// respect a single CDN rate budget, per spec.md §4.H).
type Worker struct {
	store      *store.Gateway
	client     *fetch.Client
	limiter    *ratelimit.Limiter
	thumbDir   string
	refererURL string
	idleSleep  time.Duration
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewWorker constructs a thumbnail Worker.
func NewWorker(st *store.Gateway, client *fetch.Client, limiter *ratelimit.Limiter, thumbDir, refererURL string, idleSleep time.Duration, log *zap.Logger, m *metrics.Metrics) *Worker {
	return &Worker{
		store: st, client: client, limiter: limiter, thumbDir: thumbDir,
		refererURL: refererURL, idleSleep: idleSleep, log: log, metrics: m,
	}
}

// Run loops until ctx is cancelled: claim one item, download it,
// mark done/failed; on an empty queue, sleep idleSleep.
func (w *Worker) Run(ctx context.Context) {
	if err := os.MkdirAll(w.thumbDir, 0o755); err != nil {
		w.log.Error("failed to create thumb dir", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := w.store.ClaimNextThumbQueueItem(ctx)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				w.refreshQueueDepth(ctx)
				select {
				case <-ctx.Done():
					return
				case <-time.After(w.idleSleep):
				}
				continue
			}
			w.log.Error("claim thumb queue item failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.idleSleep):
			}
			continue
		}

		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item *store.ThumbQueueItem) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	body, err := w.client.GetWithReferer(ctx, item.ThumbURL, w.refererURL)
	if err != nil {
		w.fail(ctx, item)
		return
	}

	if err := w.writeAtomic(item.Gid, body); err != nil {
		w.log.Error("thumb write failed", zap.Int64("gid", item.Gid), zap.Error(err))
		w.fail(ctx, item)
		return
	}

	if err := w.store.MarkThumbQueueDone(ctx, item.ID); err != nil {
		w.log.Error("mark thumb done failed", zap.Int64("gid", item.Gid), zap.Error(err))
	}
}

func (w *Worker) fail(ctx context.Context, item *store.ThumbQueueItem) {
	retryCount, nextRetryAt, err := w.store.MarkThumbQueueFailed(ctx, item.ID)
	if err != nil {
		w.log.Error("mark thumb failed failed", zap.Int64("gid", item.Gid), zap.Error(err))
		return
	}
	w.metrics.ThumbRetryTotal.Inc()
	w.log.Warn("thumb download failed, scheduled retry",
		zap.Int64("gid", item.Gid), zap.Int("retry_count", retryCount), zap.Time("next_retry_at", nextRetryAt))
}

// refreshQueueDepth samples the backlog size on an empty-queue poll,
// when the extra query doesn't compete with claim throughput.
func (w *Worker) refreshQueueDepth(ctx context.Context) {
	stats, err := w.store.ThumbQueueStats(ctx)
	if err != nil {
		return
	}
	w.metrics.ThumbQueueDepth.Set(float64(stats.Pending + stats.Waiting))
}

// writeAtomic writes body to THUMB_DIR/<gid> via a temp file + rename,
// so the read API never observes a partially written thumbnail.
func (w *Worker) writeAtomic(gid int64, body []byte) error {
	final := filepath.Join(w.thumbDir, fmt.Sprintf("%d", gid))
	tmp := filepath.Join(w.thumbDir, fmt.Sprintf(".tmp-%s", uuid.NewString()))

	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
