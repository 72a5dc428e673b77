// Package sync implements the Full-backfill Runner (spec.md §4.E) and
// the Incremental Runner (spec.md §4.F) as per-task tick functions,
// grounded in control-flow shape on
// original_source/scraper/loop.py's run_full_once/run_incremental_once,
// adapted to the spec's progress formulas (DB-count-based for full,
// scan_window-based for incremental) rather than the Python original's
// cursor-distance estimators — see DESIGN.md for the rationale.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/fetch"
	"github.com/slinet/gallerysync/internal/store"
)

// FullRunner executes one tick of a full-backfill task.
type FullRunner struct {
	store   *store.Gateway
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// NewFullRunner constructs a FullRunner from its collaborators.
func NewFullRunner(st *store.Gateway, f *fetch.Fetcher, logger *zap.Logger) *FullRunner {
	return &FullRunner{store: st, fetcher: f, logger: logger}
}

// Tick advances one full-backfill task by one page, per spec.md §4.E's
// numbered steps. Returns finished=true once the category has been
// fully walked.
func (r *FullRunner) Tick(ctx context.Context, task store.TaskRuntime) (finished bool, err error) {
	var cfg store.FullConfig
	if err := json.Unmarshal(task.Config, &cfg); err != nil {
		return false, r.fail(ctx, task.ID, fmt.Sprintf("invalid config: %v", err))
	}
	cfg = store.NormalizeFullConfig(cfg)
	if err := store.ValidateFullConfig(cfg); err != nil {
		return false, r.fail(ctx, task.ID, err.Error())
	}
	var st store.FullState
	if len(task.State) > 0 {
		if err := json.Unmarshal(task.State, &st); err != nil {
			return false, r.fail(ctx, task.ID, fmt.Sprintf("invalid state: %v", err))
		}
	}

	// Step 1: re-arm on operator start after completion (spec.md §9 Open
	// Question: "yes, reset state on re-arm").
	if st.Done && task.Status == store.StatusCompleted {
		st = store.InitFullState(cfg)
	}

	if !fetch.ValidCategory(task.Category) {
		return false, r.fail(ctx, task.ID, fmt.Sprintf("invalid category %q", task.Category))
	}
	mask := fetch.CategoryMask([]string{task.Category})

	// Step 2: fetch one list page at next_gid.
	items, nextCursor, totalCount, ferr := r.fetcher.FetchList(ctx, mask, st.NextGid)
	if ferr != nil {
		return false, r.handleFetchError(ctx, task.ID, ferr, st)
	}

	// Step 5: record anchor on first page of a round; monotonic total.
	if st.AnchorGid == nil && len(items) > 0 {
		max := items[0].Gid
		for _, it := range items {
			if it.Gid > max {
				max = it.Gid
			}
		}
		st.AnchorGid = &max
	}
	if totalCount != nil {
		if st.TotalCount == nil || *totalCount > *st.TotalCount {
			st.TotalCount = totalCount
		}
	}

	// Step 6: fetch detail for each item in list order; a Banned mid-page
	// aborts the tick preserving current state.
	var upserts []store.GalleryUpsert
	for _, it := range items {
		detail, derr := r.fetcher.FetchDetail(ctx, it.Gid, it.Token)
		if derr != nil {
			if errors.Is(derr, fetch.ErrBanned) {
				return false, r.persistBanned(ctx, task.ID, st)
			}
			return false, r.handleFetchError(ctx, task.ID, derr, st)
		}
		upserts = append(upserts, detailToUpsert(task.Category, detail))
	}

	if len(upserts) > 0 {
		if err := r.store.UpsertGalleriesBulk(ctx, upserts); err != nil {
			return false, err
		}
	}

	// Step 7: terminal conditions.
	if len(items) == 0 || nextCursor == nil {
		st.Done = true
		st.Round++
		stateJSON, _ := json.Marshal(st)
		raw := json.RawMessage(stateJSON)
		status := store.StatusCompleted
		progress := 100.0
		if err := r.store.UpdateTaskRuntime(ctx, task.ID, store.TaskRuntimeUpdate{
			State: &raw, Status: &status, ProgressPct: &progress, TouchRunTime: true,
		}); err != nil {
			return false, err
		}
		if err := r.store.SetTaskDesiredStatus(ctx, task.ID, store.DesiredStopped); err != nil {
			return false, err
		}
		r.logger.Info("full task completed", zap.Int64("task_id", task.ID), zap.String("category", task.Category))
		return true, nil
	}

	// Step 8: persist cursor and progress.
	st.NextGid = nextCursor
	progress := 0.0
	if st.TotalCount != nil && *st.TotalCount > 0 {
		count, cerr := r.store.CountGalleriesByCategory(ctx, task.Category)
		if cerr != nil {
			return false, cerr
		}
		progress = clamp(float64(count)/float64(*st.TotalCount)*100, 0, 100)
	}

	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	status := store.StatusRunning
	if err := r.store.UpdateTaskRuntime(ctx, task.ID, store.TaskRuntimeUpdate{
		State: &raw, Status: &status, ProgressPct: &progress, TouchRunTime: true,
	}); err != nil {
		return false, err
	}
	return false, nil
}

func (r *FullRunner) fail(ctx context.Context, id int64, msg string) error {
	status := store.StatusError
	if err := r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{Status: &status, ErrorMessage: &msg}); err != nil {
		return err
	}
	return errors.New(msg)
}

// handleFetchError applies spec.md §7's policy table: transport/HTTP
// errors persist state unchanged and stay running; AccessDenied/
// LoginRequired during runtime are treated the same as transport.
func (r *FullRunner) handleFetchError(ctx context.Context, id int64, err error, st store.FullState) error {
	if errors.Is(err, fetch.ErrBanned) {
		return r.persistBanned(ctx, id, st)
	}
	msg := err.Error()
	status := store.StatusRunning
	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	return r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{
		State: &raw, Status: &status, ErrorMessage: &msg,
	})
}

// persistBanned records the ban without bumping last_run_at, per
// spec.md §4.E step 4 / §7's Banned policy row.
func (r *FullRunner) persistBanned(ctx context.Context, id int64, st store.FullState) error {
	msg := "banned"
	status := store.StatusRunning
	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	return r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{
		State: &raw, Status: &status, ErrorMessage: &msg,
	})
}

func detailToUpsert(category string, d *fetch.DetailRecord) store.GalleryUpsert {
	return store.GalleryUpsert{
		Gid: d.Gid, Token: d.Token, Category: category, Title: d.Title,
		TitleJpn: d.TitleJpn, Uploader: d.Uploader, PostedAt: d.PostedAt,
		Language: d.Language, Pages: d.Pages, Rating: d.Rating,
		FavCount: d.FavCount, CommentCount: d.CommentCount, Thumb: d.Thumb, Tags: d.Tags,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
