// Package store is the typed Store Gateway: every operation a runner or
// the thumbnail worker needs, grounded on the teacher's
// internal/database/db.go (pool lifecycle, zap logging) and
// internal/crawler/importer.go (bulk upsert transaction shape), adapted
// from the teacher's e-hentai schema (torrents, root_gid, expunged) to
// this engine's gallery shape (namespaced tags, no torrents).
package store

import (
	"encoding/json"
	"time"
)

// TaskType enumerates the two sync task kinds.
type TaskType string

const (
	TaskTypeFull        TaskType = "full"
	TaskTypeIncremental TaskType = "incremental"
)

// Status values the engine writes to reflect observed runner state.
const (
	StatusStopped   = "stopped"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// DesiredStatus values the operator writes to express intent.
const (
	DesiredRunning = "running"
	DesiredStopped = "stopped"
)

// SyncTask is the persistent scheduling unit (spec.md §3).
type SyncTask struct {
	ID             int64
	Name           string
	Type           TaskType
	Category       string
	Config         json.RawMessage
	State          json.RawMessage
	Status         string
	DesiredStatus  string
	ProgressPct    float64
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastRunAt      *time.Time
}

// TaskRuntime is the subset of a SyncTask a runner needs for one tick.
type TaskRuntime struct {
	ID            int64
	Name          string
	Type          TaskType
	Category      string
	DesiredStatus string
	Status        string
	Config        json.RawMessage
	State         json.RawMessage
	ProgressPct   float64
}

// TaskRuntimeUpdate is a partial update; nil fields are left untouched.
// Mirrors the teacher's importer.go dynamic-SET-clause construction.
type TaskRuntimeUpdate struct {
	State        *json.RawMessage
	ProgressPct  *float64
	Status       *string
	ErrorMessage *string
	TouchRunTime bool
}

// FullConfig is the normalized config shape for a full task (spec.md §6).
type FullConfig struct {
	InlineSet string `json:"inline_set"`
	StartGid  *int64 `json:"start_gid"`
}

// FullState is the normalized state shape for a full task (spec.md §3).
type FullState struct {
	NextGid    *int64 `json:"next_gid"`
	Round      int    `json:"round"`
	Done       bool   `json:"done"`
	AnchorGid  *int64 `json:"anchor_gid"`
	TotalCount *int64 `json:"total_count"`
}

// IncrementalConfig is the normalized config shape for an incremental task.
type IncrementalConfig struct {
	InlineSet           string   `json:"inline_set"`
	Categories          []string `json:"categories"`
	ScanWindow          int      `json:"scan_window"`
	RatingDiffThreshold float64  `json:"rating_diff_threshold"`
}

// IncrementalState is the normalized state shape for an incremental task.
type IncrementalState struct {
	NextGid      *int64 `json:"next_gid"`
	Round        int    `json:"round"`
	LatestGid    *int64 `json:"latest_gid"`
	ScannedCount int    `json:"scanned_count"`
}

// Gallery is the mirrored record (spec.md §3). Tags is a namespace →
// ordered, unique-valued tag list, matching the site's own grouping —
// unlike the teacher's flat []string tag list.
type Gallery struct {
	Gid           int64
	Token         string
	Category      string
	Title         string
	TitleJpn      string
	Uploader      string
	PostedAt      time.Time
	Language      string
	Pages         int
	Rating        *float64
	FavCount      int
	CommentCount  int
	Thumb         string
	Tags          map[string][]string
	LastSyncedAt  time.Time
	IsActive      bool
}

// GalleryUpsert is one row to merge into eh_galleries, as produced by a
// runner tick after fetching detail records.
type GalleryUpsert struct {
	Gid          int64
	Token        string
	Category     string
	Title        string
	TitleJpn     string
	Uploader     string
	PostedAt     time.Time
	Language     string
	Pages        int
	Rating       *float64
	FavCount     int
	CommentCount int
	Thumb        string
	Tags         map[string][]string
}

// ThumbQueueStatus enumerates the thumb_queue lifecycle.
const (
	ThumbPending    = "pending"
	ThumbProcessing = "processing"
	ThumbDone       = "done"
	ThumbFailed     = "failed"
)

// ThumbQueueItem is one pending/claimed thumbnail download (spec.md §3).
type ThumbQueueItem struct {
	ID          int64
	Gid         int64
	ThumbURL    string
	Status      string
	RetryCount  int
	NextRetryAt *time.Time
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ThumbQueueStats is the supplemented aggregate, grounded on
// original_source/api/routers/admin.py's thumb_queue_stats endpoint,
// surfaced read-only via the engine's own read API rather than an
// admin surface this module does not implement.
type ThumbQueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Done       int64 `json:"done"`
	Waiting    int64 `json:"waiting"`
}

// NormalizeFullConfig applies the server-forced inline_set the way
// original_source/api/routers/admin.py's _normalize_config does —
// inline_set is never honored from caller input.
func NormalizeFullConfig(raw FullConfig) FullConfig {
	raw.InlineSet = "dm_e"
	return raw
}

// NormalizeIncrementalConfig applies the server-forced inline_set and
// defaults matching spec.md §6.
func NormalizeIncrementalConfig(raw IncrementalConfig) IncrementalConfig {
	raw.InlineSet = "dm_e"
	if raw.ScanWindow <= 0 {
		raw.ScanWindow = 50
	}
	if raw.RatingDiffThreshold <= 0 {
		raw.RatingDiffThreshold = 0.5
	}
	return raw
}

// InitFullState builds the initial state for a (re-)armed full task,
// per spec.md §9's Open Question resolution: a re-arm resets state.
func InitFullState(cfg FullConfig) FullState {
	return FullState{
		NextGid: cfg.StartGid,
		Round:   0,
		Done:    false,
	}
}

// InitIncrementalState builds the initial state for a fresh incremental cycle.
func InitIncrementalState() IncrementalState {
	return IncrementalState{}
}
