package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
)

const createIdempotencyTable = `
CREATE TABLE IF NOT EXISTS idempotency_keys (
	idempotency_key TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	shipment_id TEXT NOT NULL DEFAULT '',
	response_body TEXT NOT NULL DEFAULT '',
	response_status INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	note TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore keeps idempotency records in the same database as shipments.
type SQLiteStore struct {
	db        *sql.DB
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewSQLiteStore returns a store whose records live for ttlWindow.
func NewSQLiteStore(db *sql.DB, ttlWindow time.Duration) *SQLiteStore {
	return &SQLiteStore{
		db:        db,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// EnsureSchema creates the idempotency_keys table if absent.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) (err error) {
	defer obs.Time(ctx, "idempotency.EnsureSchema")(&err)

	if s.db == nil {
		return errors.New("idempotency schema: DB is nil")
	}
	if _, err := s.db.ExecContext(ctx, createIdempotencyTable); err != nil {
		return fmt.Errorf("idempotency schema: create table: %w", err)
	}
	return nil
}

// CreateIfNotExists purges an expired record for key, then inserts IN_PROGRESS
// unless a live record remains.
func (s *SQLiteStore) CreateIfNotExists(ctx context.Context, key string) (bool, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("create idempotency record: acquire conn: %w", err)
	}
	defer conn.Close()

	now := s.nowFunc()
	if _, err := conn.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE idempotency_key = ? AND expires_at <= ?;`,
		key, now.Unix(),
	); err != nil {
		return false, fmt.Errorf("create idempotency record: purge expired: %w", err)
	}

	ts := now.UTC().Format(time.RFC3339Nano)
	res, err := conn.ExecContext(ctx, `
	INSERT INTO idempotency_keys (
		idempotency_key,
		status,
		created_at,
		updated_at,
		expires_at
	)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (idempotency_key) DO NOTHING;
	`, key, StatusInProgress, ts, ts, now.Add(s.ttlWindow).Unix())
	if err != nil {
		return false, fmt.Errorf("create idempotency record: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create idempotency record: rows affected: %w", err)
	}
	return n == 1, nil
}

// Get returns the live record for key, or (nil, nil).
func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: acquire conn: %w", err)
	}
	defer conn.Close()

	var rec Record
	var createdAt, updatedAt string
	err = conn.QueryRowContext(ctx, `
	SELECT
		idempotency_key,
		status,
		shipment_id,
		response_body,
		response_status,
		created_at,
		updated_at,
		expires_at,
		note
	FROM idempotency_keys
	WHERE idempotency_key = ?;
	`, key).Scan(
		&rec.IdempotencyKey, &rec.Status, &rec.ShipmentID, &rec.ResponseBody, &rec.ResponseStatus,
		&createdAt, &updatedAt, &rec.ExpiresAt, &rec.Note,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}

	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("get idempotency record: parse created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("get idempotency record: parse updated_at: %w", err)
	}
	if rec.Expired(s.nowFunc()) {
		return nil, nil
	}
	return &rec, nil
}

// MarkDone sets status to DONE and stores the response to replay.
func (s *SQLiteStore) MarkDone(ctx context.Context, key, shipmentID, responseBody string, responseStatus int) error {
	return s.update(ctx, "mark done", `
	UPDATE idempotency_keys
	SET status = ?, shipment_id = ?, response_body = ?, response_status = ?, updated_at = ?
	WHERE idempotency_key = ?;
	`, StatusDone, shipmentID, responseBody, responseStatus, s.nowFunc().UTC().Format(time.RFC3339Nano), key)
}

// MarkFailed marks the record FAILED with a note.
func (s *SQLiteStore) MarkFailed(ctx context.Context, key, note string) error {
	return s.update(ctx, "mark failed", `
	UPDATE idempotency_keys
	SET status = ?, note = ?, updated_at = ?
	WHERE idempotency_key = ?;
	`, StatusFailed, note, s.nowFunc().UTC().Format(time.RFC3339Nano), key)
}

// Rearm flips FAILED -> IN_PROGRESS and extends the expiry.
func (s *SQLiteStore) Rearm(ctx context.Context, key string) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("rearm idempotency record: acquire conn: %w", err)
	}
	defer conn.Close()

	now := s.nowFunc()
	res, err := conn.ExecContext(ctx, `
	UPDATE idempotency_keys
	SET status = ?, updated_at = ?, expires_at = ?
	WHERE idempotency_key = ? AND status = ?;
	`, StatusInProgress, now.UTC().Format(time.RFC3339Nano), now.Add(s.ttlWindow).Unix(), key, StatusFailed)
	if err != nil {
		return fmt.Errorf("rearm idempotency record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rearm idempotency record: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFailed
	}
	return nil
}

func (s *SQLiteStore) update(ctx context.Context, op, query string, args ...any) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%s: acquire conn: %w", op, err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
