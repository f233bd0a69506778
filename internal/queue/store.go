package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store manages work items for the current session, backed by an in-memory
// SQLite database. Nothing survives process exit; the database exists to give
// item lifecycle state a single transactional source of truth.
type Store struct {
	db *sql.DB
}

// Open creates a fresh session store. Every Store owns its own private
// in-memory database so independent instances (tests included) never see each
// other's items.
func Open() (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A shared-cache memory database lives as long as one connection does;
	// a single connection also preserves single-writer discipline.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database, discarding all session state.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewItem inserts a pending work item for a source file and assigns its ID.
func (s *Store) NewItem(ctx context.Context, sourcePath, displayName string, byteSize int64, mimeHint string) (*Item, error) {
	if sourcePath == "" {
		return nil, errors.New("source path required")
	}
	if displayName == "" {
		return nil, errors.New("display name required")
	}
	return s.insert(ctx, sourcePath, displayName, byteSize, mimeHint, 1)
}

// Resubmit mints a brand-new pending item for a previously failed one. The new
// item gets a fresh ID so every ID keeps at most one terminal outcome.
func (s *Store) Resubmit(ctx context.Context, id string) (*Item, error) {
	prior, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("work item %s not found", id)
	}
	if prior.Status != StatusFailed {
		return nil, fmt.Errorf("work item %s is %s, only failed items can be resubmitted", id, prior.Status)
	}
	return s.insert(ctx, prior.SourcePath, prior.DisplayName, prior.ByteSize, prior.MimeHint, prior.Attempt+1)
}

func (s *Store) insert(ctx context.Context, sourcePath, displayName string, byteSize int64, mimeHint string, attempt int) (*Item, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO work_items (
            id, source_path, display_name, byte_size, mime_hint, status,
            progress_percent, attempt, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		sourcePath,
		displayName,
		byteSize,
		nullableString(mimeHint),
		StatusPending,
		0.0,
		attempt,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a work item by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// Update persists changes to an existing work item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items
         SET source_path = ?, display_name = ?, byte_size = ?, mime_hint = ?,
             status = ?, failure_reason = ?, progress_percent = ?,
             progress_message = ?, attempt = ?, updated_at = ?
         WHERE id = ?`,
		item.SourcePath,
		item.DisplayName,
		item.ByteSize,
		nullableString(item.MimeHint),
		item.Status,
		nullableString(item.FailureReason),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.Attempt,
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("work item %s not found", item.ID)
	}
	return nil
}

// List returns items filtered by status set (or all items when no status is
// provided), in submission order.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + itemColumns + ` FROM work_items`
	// rowid reflects insertion order exactly; created_at strings do not
	// (RFC3339Nano trims trailing zeros).
	orderClause := ` ORDER BY rowid`

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
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM work_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("work item stats: %w", err)
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

// Clear removes all work items from the session.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM work_items`)
	if err != nil {
		return 0, fmt.Errorf("clear work items: %w", err)
	}
	return res.RowsAffected()
}

const itemColumns = "id, source_path, display_name, byte_size, mime_hint, status, failure_reason, progress_percent, progress_message, attempt, created_at, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              string
		sourcePath      string
		displayName     string
		byteSize        int64
		mimeHint        sql.NullString
		statusStr       string
		failureReason   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		attempt         int
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&sourcePath,
		&displayName,
		&byteSize,
		&mimeHint,
		&statusStr,
		&failureReason,
		&progressPercent,
		&progressMessage,
		&attempt,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourcePath:      sourcePath,
		DisplayName:     displayName,
		ByteSize:        byteSize,
		MimeHint:        mimeHint.String,
		Status:          Status(statusStr),
		FailureReason:   failureReason.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		Attempt:         attempt,
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
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
