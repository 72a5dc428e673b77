package sync

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/detect"
	"github.com/slinet/gallerysync/internal/fetch"
	"github.com/slinet/gallerysync/internal/store"
)

// exitReason is the internal signal for why a page loop stopped,
// mirroring original_source/scraper/loop.py's run_incremental_once END/
// WINDOW/BANNED/ERROR branches.
type exitReason int

const (
	exitNone exitReason = iota
	exitEnd
	exitWindow
	exitBanned
	exitError
)

// IncrementalRunner executes one tick (a full detail-quota-bounded
// pass, spec.md §4.F) of an incremental task.
type IncrementalRunner struct {
	store   *store.Gateway
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// NewIncrementalRunner constructs an IncrementalRunner.
func NewIncrementalRunner(st *store.Gateway, f *fetch.Fetcher, logger *zap.Logger) *IncrementalRunner {
	return &IncrementalRunner{store: st, fetcher: f, logger: logger}
}

// Tick runs pages until an exit condition fires, persisting
// intermediate state after each page (spec.md §4.F).
func (r *IncrementalRunner) Tick(ctx context.Context, task store.TaskRuntime, isStopping func() bool) (finished bool, err error) {
	var cfg store.IncrementalConfig
	if err := json.Unmarshal(task.Config, &cfg); err != nil {
		return false, r.fail(ctx, task.ID, "invalid config: "+err.Error())
	}
	cfg = store.NormalizeIncrementalConfig(cfg)
	if err := store.ValidateIncrementalConfig(cfg); err != nil {
		return false, r.fail(ctx, task.ID, err.Error())
	}
	var st store.IncrementalState
	if len(task.State) > 0 {
		if err := json.Unmarshal(task.State, &st); err != nil {
			return false, r.fail(ctx, task.ID, "invalid state: "+err.Error())
		}
	}

	if task.Category != "Mixed" || len(cfg.Categories) == 0 {
		return false, r.fail(ctx, task.ID, "incremental task requires category=Mixed and a non-empty categories subset")
	}
	for _, c := range cfg.Categories {
		if !fetch.ValidCategory(c) {
			return false, r.fail(ctx, task.ID, "invalid category in config: "+c)
		}
	}
	mask := fetch.CategoryMask(cfg.Categories)

	reason := exitNone
	for reason == exitNone {
		if isStopping() {
			return false, r.persistStopped(ctx, task.ID, st)
		}

		items, nextCursor, _, ferr := r.fetcher.FetchList(ctx, mask, st.NextGid)
		if ferr != nil {
			if errors.Is(ferr, fetch.ErrBanned) {
				return false, r.persistErrorKeepState(ctx, task.ID, st, "banned")
			}
			return false, r.persistErrorKeepState(ctx, task.ID, st, ferr.Error())
		}

		if st.LatestGid == nil && len(items) > 0 {
			max := items[0].Gid
			for _, it := range items {
				if it.Gid > max {
					max = it.Gid
				}
			}
			st.LatestGid = &max
		}

		var upserts []store.GalleryUpsert
		for _, it := range items {
			refresh, _, derr := r.shouldRefresh(ctx, it, cfg.RatingDiffThreshold)
			if derr != nil {
				return false, r.persistErrorKeepState(ctx, task.ID, st, derr.Error())
			}
			st.ScannedCount++

			if !refresh {
				continue
			}
			detail, ferr := r.fetcher.FetchDetail(ctx, it.Gid, it.Token)
			if ferr != nil {
				if errors.Is(ferr, fetch.ErrBanned) {
					return false, r.persistErrorKeepState(ctx, task.ID, st, "banned")
				}
				return false, r.persistErrorKeepState(ctx, task.ID, st, ferr.Error())
			}
			upserts = append(upserts, detailToUpsert(detailCategory(detail, cfg.Categories), detail))
		}

		if len(upserts) > 0 {
			if err := r.store.UpsertGalleriesBulk(ctx, upserts); err != nil {
				return false, err
			}
		}

		if len(items) == 0 || nextCursor == nil {
			reason = exitEnd
		} else if st.ScannedCount >= cfg.ScanWindow {
			reason = exitWindow
		} else {
			st.NextGid = nextCursor
			progress := clamp(float64(st.ScannedCount)/float64(cfg.ScanWindow)*100, 0, 100)
			if err := r.persistRunning(ctx, task.ID, st, &progress); err != nil {
				return false, err
			}
		}
	}

	switch reason {
	case exitEnd, exitWindow:
		st = store.IncrementalState{Round: st.Round + 1}
		progress := 0.0
		status := store.StatusRunning
		stateJSON, _ := json.Marshal(st)
		raw := json.RawMessage(stateJSON)
		if err := r.store.UpdateTaskRuntime(ctx, task.ID, store.TaskRuntimeUpdate{
			State: &raw, Status: &status, ProgressPct: &progress, TouchRunTime: true,
		}); err != nil {
			return false, err
		}
	}

	return false, nil
}

// shouldRefresh consults the store for an existing gallery's rating/
// tags and asks the Change Detector; an absent row is unconditional
// refresh (spec.md §4.D).
func (r *IncrementalRunner) shouldRefresh(ctx context.Context, item fetch.ListItem, threshold float64) (bool, string, error) {
	rating, tags, err := r.store.GetGalleryTagsAndRating(ctx, item.Gid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, "new", nil
		}
		return false, "", err
	}

	existing := &detect.Existing{Rating: rating, DetailTags: tags}
	listItem := detect.ListItem{RatingEst: item.RatingEst, VisibleTags: item.VisibleTags}
	refresh, reason := detect.Decide(existing, listItem, threshold)
	return refresh, reason, nil
}

func (r *IncrementalRunner) fail(ctx context.Context, id int64, msg string) error {
	status := store.StatusError
	if err := r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{Status: &status, ErrorMessage: &msg}); err != nil {
		return err
	}
	return errors.New(msg)
}

// persistStopped records the between-pages break spec.md §4.F
// describes: a desired_status=stopped noticed mid-cycle sets
// status=stopped directly, rather than leaving it running for the
// reconciler to correct on its next pass.
func (r *IncrementalRunner) persistStopped(ctx context.Context, id int64, st store.IncrementalState) error {
	status := store.StatusStopped
	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	return r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{State: &raw, Status: &status})
}

func (r *IncrementalRunner) persistRunning(ctx context.Context, id int64, st store.IncrementalState, progress *float64) error {
	status := store.StatusRunning
	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	upd := store.TaskRuntimeUpdate{State: &raw, Status: &status, TouchRunTime: true}
	upd.ProgressPct = progress
	return r.store.UpdateTaskRuntime(ctx, id, upd)
}

// persistErrorKeepState records a BANNED/ERROR exit, keeping
// cursor/latest/scanned intact so the next tick resumes from there
// (spec.md §4.F's end-of-cycle policy).
func (r *IncrementalRunner) persistErrorKeepState(ctx context.Context, id int64, st store.IncrementalState, msg string) error {
	status := store.StatusRunning
	stateJSON, _ := json.Marshal(st)
	raw := json.RawMessage(stateJSON)
	return r.store.UpdateTaskRuntime(ctx, id, store.TaskRuntimeUpdate{
		State: &raw, Status: &status, ErrorMessage: &msg,
	})
}

// detailCategory picks the best matching configured category for a
// refreshed record (the detail page itself carries the authoritative
// category, but incremental tasks only know their configured subset
// until the detail fetch resolves it).
func detailCategory(d *fetch.DetailRecord, configured []string) string {
	if d.Category != "" {
		return d.Category
	}
	if len(configured) > 0 {
		return configured[0]
	}
	return ""
}
