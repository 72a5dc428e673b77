package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/slinet/gallerysync/internal/config"
	"github.com/slinet/gallerysync/pkg/utils"
)

// ErrNotFound is returned when a task/gallery/queue row does not exist.
var ErrNotFound = errors.New("store: not found")

// Gateway is the typed Store Gateway (spec.md §4.A), wrapping a pooled
// connection the way the teacher's internal/database/db.go does, minus
// the package-level singleton — callers hold the *Gateway explicitly.
type Gateway struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewGateway dials the pool and pings it, mirroring the teacher's
// database.Init pool configuration (MaxConns/MinConns/lifetimes).
func NewGateway(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Gateway, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("database connection pool initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
	)

	return &Gateway{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool.
func (g *Gateway) Close() {
	g.pool.Close()
}

// ListSyncTasks returns all task rows ordered by id (spec.md §4.A).
func (g *Gateway) ListSyncTasks(ctx context.Context) ([]SyncTask, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, name, type, category, config, state, status, desired_status,
		       progress_pct, error_message, created_at, updated_at, last_run_at
		FROM sync_tasks ORDER BY id ASC`)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var tasks []SyncTask
	for rows.Next() {
		var t SyncTask
		if err := rows.Scan(&t.ID, &t.Name, &t.Type, &t.Category, &t.Config, &t.State,
			&t.Status, &t.DesiredStatus, &t.ProgressPct, &t.ErrorMessage,
			&t.CreatedAt, &t.UpdatedAt, &t.LastRunAt); err != nil {
			return nil, classifyErr(err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return tasks, nil
}

// GetTaskRuntime loads the execution subset of one task row.
func (g *Gateway) GetTaskRuntime(ctx context.Context, id int64) (*TaskRuntime, error) {
	var rt TaskRuntime
	err := g.pool.QueryRow(ctx, `
		SELECT id, name, type, category, desired_status, status, config, state, progress_pct
		FROM sync_tasks WHERE id = $1`, id).
		Scan(&rt.ID, &rt.Name, &rt.Type, &rt.Category, &rt.DesiredStatus, &rt.Status,
			&rt.Config, &rt.State, &rt.ProgressPct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyErr(err)
	}
	return &rt, nil
}

// UpdateTaskRuntime performs a partial update, building a dynamic SET
// clause the way the teacher's importer.go builds its positional args.
func (g *Gateway) UpdateTaskRuntime(ctx context.Context, id int64, upd TaskRuntimeUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{}
	argN := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}

	if upd.State != nil {
		add("state", []byte(*upd.State))
	}
	if upd.ProgressPct != nil {
		add("progress_pct", *upd.ProgressPct)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.ErrorMessage != nil {
		add("error_message", *upd.ErrorMessage)
	}
	if upd.TouchRunTime {
		sets = append(sets, "last_run_at = NOW()")
	}

	query := fmt.Sprintf("UPDATE sync_tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), argN)
	args = append(args, id)

	tag, err := g.pool.Exec(ctx, query, args...)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTaskDesiredStatus flips operator intent.
func (g *Gateway) SetTaskDesiredStatus(ctx context.Context, id int64, value string) error {
	tag, err := g.pool.Exec(ctx,
		`UPDATE sync_tasks SET desired_status = $1, updated_at = NOW() WHERE id = $2`, value, id)
	if err != nil {
		return classifyErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertGalleriesBulk merges N gallery rows and conditionally enqueues
// thumbnail jobs, all in one transaction (spec.md §4.A / §5 atomicity).
func (g *Gateway) UpsertGalleriesBulk(ctx context.Context, rows []GalleryUpsert) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return classifyErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range rows {
		tagsJSON, err := json.Marshal(r.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO eh_galleries
				(gid, token, category, title, title_jpn, uploader, posted_at, language,
				 pages, rating, fav_count, comment_count, thumb, tags, last_synced_at, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14::jsonb, NOW(), TRUE)
			ON CONFLICT (gid) DO UPDATE SET
				token = EXCLUDED.token,
				category = EXCLUDED.category,
				title = EXCLUDED.title,
				title_jpn = EXCLUDED.title_jpn,
				uploader = EXCLUDED.uploader,
				posted_at = EXCLUDED.posted_at,
				language = EXCLUDED.language,
				pages = EXCLUDED.pages,
				rating = EXCLUDED.rating,
				fav_count = EXCLUDED.fav_count,
				comment_count = EXCLUDED.comment_count,
				thumb = EXCLUDED.thumb,
				tags = EXCLUDED.tags,
				last_synced_at = NOW(),
				is_active = TRUE
			`,
			r.Gid, r.Token, r.Category, r.Title, r.TitleJpn, r.Uploader, r.PostedAt,
			r.Language, r.Pages, r.Rating, r.FavCount, r.CommentCount, r.Thumb, tagsJSON,
		)
		if err != nil {
			return classifyErr(err)
		}

		if r.Thumb == "" {
			continue
		}

		// Only re-queue when the thumb_url changed or the prior state was
		// failed — protects in-flight/already-done downloads (spec.md §4.A,
		// §9's third Open Question resolution).
		_, err = tx.Exec(ctx, `
			INSERT INTO thumb_queue (gid, thumb_url, status, retry_count, next_retry_at, created_at)
			VALUES ($1, $2, 'pending', 0, NULL, NOW())
			ON CONFLICT (gid) DO UPDATE SET
				thumb_url = EXCLUDED.thumb_url,
				status = 'pending',
				retry_count = 0,
				next_retry_at = NULL,
				processed_at = NULL
			WHERE thumb_queue.thumb_url IS DISTINCT FROM EXCLUDED.thumb_url
			   OR thumb_queue.status = 'failed'
			`, r.Gid, r.Thumb)
		if err != nil {
			return classifyErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyErr(err)
	}
	return nil
}

// ClaimNextThumbQueueItem atomically claims one pending, due row under
// FOR UPDATE SKIP LOCKED, ordered by created_at ascending.
func (g *Gateway) ClaimNextThumbQueueItem(ctx context.Context) (*ThumbQueueItem, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var item ThumbQueueItem
	err = tx.QueryRow(ctx, `
		SELECT id, gid, thumb_url, status, retry_count, next_retry_at, created_at, processed_at
		FROM thumb_queue
		WHERE status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
		`).Scan(&item.ID, &item.Gid, &item.ThumbURL, &item.Status, &item.RetryCount,
		&item.NextRetryAt, &item.CreatedAt, &item.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyErr(err)
	}

	if _, err := tx.Exec(ctx, `UPDATE thumb_queue SET status = 'processing' WHERE id = $1`, item.ID); err != nil {
		return nil, classifyErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classifyErr(err)
	}

	item.Status = ThumbProcessing
	return &item, nil
}

// MarkThumbQueueDone marks a claimed item complete.
func (g *Gateway) MarkThumbQueueDone(ctx context.Context, id int64) error {
	_, err := g.pool.Exec(ctx,
		`UPDATE thumb_queue SET status = 'done', processed_at = NOW() WHERE id = $1`, id)
	return classifyErr(err)
}

// thumbBackoffMinutes is the capped exponential series 2,4,8,8,... from
// spec.md §8/§4.A: min(2^(retry_count+1), 8).
func thumbBackoffMinutes(retryCount int) int {
	m := 1 << uint(retryCount+1)
	if m > 8 {
		m = 8
	}
	return m
}

// MarkThumbQueueFailed increments retry_count and schedules the next
// retry at the capped exponential backoff.
func (g *Gateway) MarkThumbQueueFailed(ctx context.Context, id int64) (int, time.Time, error) {
	var retryCount int
	err := g.pool.QueryRow(ctx, `SELECT retry_count FROM thumb_queue WHERE id = $1`, id).Scan(&retryCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, time.Time{}, ErrNotFound
		}
		return 0, time.Time{}, classifyErr(err)
	}

	newCount := retryCount + 1
	nextRetryAt := time.Now().Add(time.Duration(thumbBackoffMinutes(retryCount)) * time.Minute)

	_, err = g.pool.Exec(ctx, `
		UPDATE thumb_queue SET status = 'pending', retry_count = $1, next_retry_at = $2
		WHERE id = $3`, newCount, nextRetryAt, id)
	if err != nil {
		return 0, time.Time{}, classifyErr(err)
	}

	return newCount, nextRetryAt, nil
}

// CountGalleriesByCategory does a case-insensitive count, used for
// full-task progress (spec.md §4.E step 8).
func (g *Gateway) CountGalleriesByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	err := g.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM eh_galleries WHERE lower(category) = lower($1)`, category).Scan(&count)
	if err != nil {
		return 0, classifyErr(err)
	}
	return count, nil
}

// GetGalleryTagsAndRating loads the comparison fields the Change
// Detector needs for one existing gallery; returns ErrNotFound if the
// gid is not yet mirrored (treated as unconditional refresh-as-new by
// the caller per spec.md §4.D).
func (g *Gateway) GetGalleryTagsAndRating(ctx context.Context, gid int64) (rating *float64, tags map[string][]string, err error) {
	var tagsJSON []byte
	err = g.pool.QueryRow(ctx, `SELECT rating, tags FROM eh_galleries WHERE gid = $1`, gid).
		Scan(&rating, &tagsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, classifyErr(err)
	}
	if len(tagsJSON) > 0 {
		if jerr := json.Unmarshal(tagsJSON, &tags); jerr != nil {
			return nil, nil, fmt.Errorf("unmarshal tags: %w", jerr)
		}
	}
	return rating, tags, nil
}

// ThumbQueueStats is the supplemented read-only aggregate (spec.md
// expansion §3), grounded on original_source's thumb_queue_stats query.
func (g *Gateway) ThumbQueueStats(ctx context.Context) (ThumbQueueStats, error) {
	var s ThumbQueueStats
	err := g.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' AND (next_retry_at IS NULL OR next_retry_at <= NOW()) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' AND next_retry_at > NOW() THEN 1 ELSE 0 END), 0)
		FROM thumb_queue
	`).Scan(&s.Pending, &s.Processing, &s.Done, &s.Waiting)
	if err != nil {
		return ThumbQueueStats{}, classifyErr(err)
	}
	return s, nil
}

// GetGalleryByGidToken and ListGalleriesPage back the read API; kept in the
// gateway rather than the handler package per the teacher's layering
// (internal/handler calls internal/database, never raw SQL itself).

// GetGalleryByGidToken fetches one gallery by its (gid, token) pair.
func (g *Gateway) GetGalleryByGidToken(ctx context.Context, gid int64, token string) (*Gallery, error) {
	var gal Gallery
	var tagsJSON []byte
	err := g.pool.QueryRow(ctx, `
		SELECT gid, token, category, title, title_jpn, uploader, posted_at, language,
		       pages, rating, fav_count, comment_count, thumb, tags, last_synced_at, is_active
		FROM eh_galleries WHERE gid = $1 AND token = $2`, gid, token).
		Scan(&gal.Gid, &gal.Token, &gal.Category, &gal.Title, &gal.TitleJpn, &gal.Uploader,
			&gal.PostedAt, &gal.Language, &gal.Pages, &gal.Rating, &gal.FavCount,
			&gal.CommentCount, &gal.Thumb, &tagsJSON, &gal.LastSyncedAt, &gal.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, classifyErr(err)
	}
	if len(tagsJSON) > 0 {
		if jerr := json.Unmarshal(tagsJSON, &gal.Tags); jerr != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", jerr)
		}
	}
	return &gal, nil
}

// ListGalleriesPage is a cursor-paginated listing, ordered newest-first
// by (posted_at, gid), matching the teacher's list.go composite cursor.
func (g *Gateway) ListGalleriesPage(ctx context.Context, category string, cursorPostedAt *time.Time, cursorGid *int64, limit int) ([]Gallery, error) {
	var rows pgx.Rows
	var err error

	baseQuery := `
		SELECT gid, token, category, title, title_jpn, uploader, posted_at, language,
		       pages, rating, fav_count, comment_count, thumb, tags, last_synced_at, is_active
		FROM eh_galleries WHERE is_active = TRUE`

	args := []any{}
	argN := 1
	if category != "" {
		baseQuery += fmt.Sprintf(" AND lower(category) = lower($%d)", argN)
		args = append(args, category)
		argN++
	}
	if cursorPostedAt != nil && cursorGid != nil {
		baseQuery += fmt.Sprintf(" AND (posted_at < $%d OR (posted_at = $%d AND gid < $%d))", argN, argN, argN+1)
		args = append(args, *cursorPostedAt, *cursorGid)
		argN += 2
	}
	baseQuery += fmt.Sprintf(" ORDER BY posted_at DESC, gid DESC LIMIT $%d", argN)
	args = append(args, limit)

	rows, err = g.pool.Query(ctx, baseQuery, args...)
	if err != nil {
		g.logger.Debug("gallery page query failed", zap.String("sql", utils.FormatSQL(baseQuery, args...)))
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []Gallery
	for rows.Next() {
		var gal Gallery
		var tagsJSON []byte
		if err := rows.Scan(&gal.Gid, &gal.Token, &gal.Category, &gal.Title, &gal.TitleJpn,
			&gal.Uploader, &gal.PostedAt, &gal.Language, &gal.Pages, &gal.Rating,
			&gal.FavCount, &gal.CommentCount, &gal.Thumb, &tagsJSON, &gal.LastSyncedAt,
			&gal.IsActive); err != nil {
			return nil, classifyErr(err)
		}
		if len(tagsJSON) > 0 {
			if jerr := json.Unmarshal(tagsJSON, &gal.Tags); jerr != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", jerr)
			}
		}
		out = append(out, gal)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	return out, nil
}

// classifyErr distinguishes pg constraint violations from other
// failures, mirroring jorgemgr94-go-learning/internal/db/db.go's
// convertPgErrorToDbError.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("store: unique violation: %w", err)
		}
		return fmt.Errorf("store: pg error (%s): %w", pgErr.Code, err)
	}
	return err
}
