package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or connects to the ledger database at path and applies migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
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

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a run row. ID and StartedAt are filled when empty.
func (s *Store) StartRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is empty")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	return s.execRetry(ctx,
		`INSERT INTO runs (id, started_at, doc_root, img_root) VALUES (?, ?, ?, ?)`,
		run.ID,
		formatTime(run.StartedAt),
		run.DocRoot,
		run.ImgRoot,
	)
}

// FinishRun stores the final counters and stamps finished_at.
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	run.FinishedAt = &finished
	return s.execRetry(ctx,
		`UPDATE runs SET finished_at = ?, documents = ?, changed = ?, fetched = ?, skipped = ?,
            failed = ?, transcoded = ?, bytes_saved = ?, interrupted = ? WHERE id = ?`,
		formatTime(finished),
		run.Documents,
		run.Changed,
		run.Fetched,
		run.Skipped,
		run.Failed,
		run.Transcoded,
		run.BytesSaved,
		boolToInt(run.Interrupted),
		run.ID,
	)
}

// RecordAsset appends one reference outcome to a run.
func (s *Store) RecordAsset(ctx context.Context, asset Asset) error {
	if strings.TrimSpace(asset.RunID) == "" {
		return errors.New("asset run id is empty")
	}
	if asset.RecordedAt.IsZero() {
		asset.RecordedAt = time.Now().UTC()
	}
	return s.execRetry(ctx,
		`INSERT INTO assets (run_id, document, url, local_path, status, bytes_in, bytes_out, error, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.RunID,
		asset.Document,
		asset.URL,
		nullableString(asset.LocalPath),
		string(asset.Status),
		asset.BytesIn,
		asset.BytesOut,
		nullableString(asset.Error),
		formatTime(asset.RecordedAt),
	)
}

const runColumns = "id, started_at, finished_at, doc_root, img_root, documents, changed, fetched, skipped, failed, transcoded, bytes_saved, interrupted"

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a run by ID. It returns nil when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// RunAssets returns the assets recorded for a run in insertion order.
func (s *Store) RunAssets(ctx context.Context, runID string) ([]Asset, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT run_id, document, url, local_path, status, bytes_in, bytes_out, error, recorded_at
        FROM assets WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var (
			asset     Asset
			localPath sql.NullString
			status    string
			errText   sql.NullString
			recorded  string
		)
		if err := rows.Scan(&asset.RunID, &asset.Document, &asset.URL, &localPath, &status,
			&asset.BytesIn, &asset.BytesOut, &errText, &recorded); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		asset.LocalPath = localPath.String
		asset.Status = AssetStatus(status)
		asset.Error = errText.String
		asset.RecordedAt = parseTime(recorded)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return assets, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw sql.NullString
		interrupted int64
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishedRaw,
		&run.DocRoot,
		&run.ImgRoot,
		&run.Documents,
		&run.Changed,
		&run.Fetched,
		&run.Skipped,
		&run.Failed,
		&run.Transcoded,
		&run.BytesSaved,
		&interrupted,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedRaw)
	if finishedRaw.Valid && finishedRaw.String != "" {
		finished := parseTime(finishedRaw.String)
		run.FinishedAt = &finished
	}
	run.Interrupted = interrupted != 0
	return &run, nil
}

func (s *Store) execRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
