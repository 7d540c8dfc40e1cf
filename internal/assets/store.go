package assets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"photosync/internal/config"
)

// Store manages asset persistence backed by SQLite.
type Store struct {
	db         *sql.DB
	path       string
	maxRetries int
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the asset database. Any asset left in
// uploading longer than the configured stale threshold is swept back to
// pending, so a crash mid-upload never strands items.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "assets.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, maxRetries: cfg.Queue.MaxRetries}
	ctx := context.Background()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	staleAfter := time.Duration(cfg.Queue.StaleUploadingMinutes) * time.Minute
	if _, err := store.ReclaimStaleUploading(ctx, time.Now().Add(-staleAfter)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sweep stale uploading: %w", err)
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the asset database.
func (s *Store) Path() string {
	return s.path
}

// New inserts a freshly captured asset in pending state with a generated
// client idempotency key.
func (s *Store) New(ctx context.Context, params NewAssetParams) (*Asset, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	capturedAt := params.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO assets (
            client_key, filename, mime_type, captured_at, latitude, longitude,
            uri, size_bytes, category, user_id, username,
            status, retries, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		uuid.NewString(),
		params.Filename,
		params.MimeType,
		capturedAt.UTC().Format(time.RFC3339Nano),
		nullableFloat(params.Latitude),
		nullableFloat(params.Longitude),
		nullableString(params.URI),
		params.SizeBytes,
		nullableString(params.Category),
		nullableInt(params.UserID),
		nullableString(params.Username),
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches an asset by identifier. Returns nil when the row is gone.
func (s *Store) GetByID(ctx context.Context, id int64) (*Asset, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// List returns assets filtered by status set (or all assets when no status is
// provided), ordered by ascending identifier.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Asset, error) {
	ctx = ensureContext(ctx)
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + assetColumns + ` FROM assets`
	orderClause := ` ORDER BY id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var items []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, asset)
	}
	return items, rows.Err()
}

// ReserveBatch atomically selects up to limit assets eligible for upload
// (oldest first) and flips them to uploading in the same statement, so two
// concurrent reservations can never pick the same rows. Failed assets whose
// retry budget is spent are excluded; they need an explicit reset before
// they re-enter the pool.
func (s *Store) ReserveBatch(ctx context.Context, limit int) ([]*Asset, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE assets
        SET status = ?, last_attempt_at = ?, updated_at = ?
        WHERE id IN (
            SELECT id FROM assets
            WHERE status = ? OR (status = ? AND retries < ?)
            ORDER BY id ASC LIMIT ?
        )
        RETURNING ` + assetColumns

	var reserved []*Asset
	err := retryOnBusy(ctx, func() error {
		rows, queryErr := s.db.QueryContext(ctx, query,
			StatusUploading, now, now,
			StatusPending, StatusFailed, s.maxRetries,
			limit,
		)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		reserved = reserved[:0]
		for rows.Next() {
			asset, scanErr := scanAsset(rows)
			if scanErr != nil {
				return scanErr
			}
			reserved = append(reserved, asset)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("reserve batch: %w", err)
	}

	// RETURNING does not promise row order; restore FIFO by id.
	sort.Slice(reserved, func(i, j int) bool { return reserved[i].ID < reserved[j].ID })
	return reserved, nil
}

// MarkUploaded transitions an asset into uploaded with its server-assigned
// identifier. A missing row (deleted mid-upload) affects nothing and is not
// an error.
func (s *Store) MarkUploaded(ctx context.Context, id int64, serverID string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, server_id = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		StatusUploaded,
		serverID,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	return nil
}

// MarkFailed transitions an asset into the terminal failed state.
func (s *Store) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// SetPending returns an asset to the eligible pool, keeping its retry count.
func (s *Store) SetPending(ctx context.Context, id int64) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set pending: %w", err)
	}
	return nil
}

// IncrementRetryCapped bumps the retry counter without exceeding max and
// returns the new count. Already at the cap it is a no-op returning the
// current value. Returns ErrNotFound when the asset no longer exists.
func (s *Store) IncrementRetryCapped(ctx context.Context, id int64, max int) (int, error) {
	ctx = ensureContext(ctx)

	var retries int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(
			ctx,
			`UPDATE assets SET retries = retries + 1, updated_at = ?
             WHERE id = ? AND retries < ?
             RETURNING retries`,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			max,
		).Scan(&retries)
	})
	if err == nil {
		return retries, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment retry: %w", err)
	}

	// Nothing updated: either the cap is reached or the row is gone.
	err = s.db.QueryRowContext(ctx, `SELECT retries FROM assets WHERE id = ?`, id).Scan(&retries)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read retries: %w", err)
	}
	return retries, nil
}

// ResetStuckUploading returns every uploading asset to pending. This is the
// on-demand recovery used by retry-all; the timed sweep at startup uses
// ReclaimStaleUploading instead.
func (s *Store) ResetStuckUploading(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusUploading,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck uploading: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStaleUploading returns uploading assets whose last attempt started
// before cutoff (or was never recorded) back to pending.
func (s *Store) ReclaimStaleUploading(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, updated_at = ?
         WHERE status = ? AND (last_attempt_at IS NULL OR last_attempt_at < ?)`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusUploading,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale uploading: %w", err)
	}
	return res.RowsAffected()
}

// ResetAsset returns a single non-uploaded asset to pending with its retry
// count cleared.
func (s *Store) ResetAsset(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, retries = 0, error_message = NULL, updated_at = ?
         WHERE id = ? AND status != ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusUploaded,
	)
	if err != nil {
		return fmt.Errorf("reset asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetFailed moves all failed assets back to pending with retries cleared.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE assets SET status = ?, retries = 0, error_message = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("reset failed assets: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes an asset. Deletion is not coordinated with the engine; an
// upload completing against a deleted row resolves as a no-op.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearUploaded removes uploaded assets from the local store.
func (s *Store) ClearUploaded(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE status = ?`, StatusUploaded)
	if err != nil {
		return 0, fmt.Errorf("clear uploaded: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of assets grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM assets GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("asset stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates asset state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusUploading:
			health.Uploading += count
		case StatusUploaded:
			health.Uploaded += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// CountEligible returns how many assets currently compete for reservation.
func (s *Store) CountEligible(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM assets WHERE status = ? OR (status = ? AND retries < ?)`,
		StatusPending, StatusFailed, s.maxRetries,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count eligible: %w", err)
	}
	return count, nil
}

const assetColumns = "id, client_key, filename, mime_type, captured_at, latitude, longitude, uri, size_bytes, category, user_id, username, status, retries, server_id, last_attempt_at, error_message, created_at, updated_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id             int64
		clientKey      string
		filename       string
		mimeType       string
		capturedRaw    string
		latitude       sql.NullFloat64
		longitude      sql.NullFloat64
		uri            sql.NullString
		sizeBytes      sql.NullInt64
		category       sql.NullString
		userID         sql.NullInt64
		username       sql.NullString
		statusStr      string
		retries        int
		serverID       sql.NullString
		lastAttemptRaw sql.NullString
		errorMessage   sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&clientKey,
		&filename,
		&mimeType,
		&capturedRaw,
		&latitude,
		&longitude,
		&uri,
		&sizeBytes,
		&category,
		&userID,
		&username,
		&statusStr,
		&retries,
		&serverID,
		&lastAttemptRaw,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:           id,
		ClientKey:    clientKey,
		Filename:     filename,
		MimeType:     mimeType,
		URI:          uri.String,
		SizeBytes:    sizeBytes.Int64,
		Category:     category.String,
		Username:     username.String,
		Status:       Status(statusStr),
		Retries:      retries,
		ServerID:     serverID.String,
		ErrorMessage: errorMessage.String,
	}
	if latitude.Valid {
		v := latitude.Float64
		asset.Latitude = &v
	}
	if longitude.Valid {
		v := longitude.Float64
		asset.Longitude = &v
	}
	if userID.Valid {
		v := userID.Int64
		asset.UserID = &v
	}

	if captured, err := parseTimeString(capturedRaw); err == nil {
		asset.CapturedAt = captured
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		asset.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		asset.UpdatedAt = updated
	}
	if lastAttemptRaw.Valid {
		if attempt, err := parseTimeString(lastAttemptRaw.String); err == nil {
			asset.LastAttemptAt = &attempt
		}
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
