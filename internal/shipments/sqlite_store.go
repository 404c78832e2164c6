package shipments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-shipment-tracker/internal/obs"
)

const createShipmentTable = `
CREATE TABLE IF NOT EXISTS shipment (
	id TEXT PRIMARY KEY,
	trackingId TEXT NOT NULL,
	destination TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	createdAt TEXT NOT NULL
);
`

const insertShipment = `
INSERT INTO shipment (
	id,
	trackingId,
	destination,
	priority,
	status,
	createdAt
)
VALUES (?, ?, ?, ?, ?, ?);
`

// execer is satisfied by *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStore persists shipments in a single SQLite table.
// Every operation checks a connection out of the pool and returns it before exiting.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
	newID   func() string
}

// NewSQLiteStore returns a store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// EnsureSchema creates the shipment table if absent and seeds it when empty.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) (err error) {
	defer obs.Time(ctx, "shipments.EnsureSchema")(&err)

	if s.db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, createShipmentTable); err != nil {
		return fmt.Errorf("init schema: create shipment table: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipment;`).Scan(&count); err != nil {
		return fmt.Errorf("init schema: count shipments: %w", err)
	}
	if count == 0 {
		log.Println("Inserting initial demo data...")
		if err := s.insertSeeds(ctx, tx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}
	return nil
}

// List returns every shipment in table order.
func (s *SQLiteStore) List(ctx context.Context) (_ []Shipment, err error) {
	defer obs.Time(ctx, "shipments.List")(&err)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipments: acquire conn: %w", err)
	}
	defer conn.Close()

	query := `
	SELECT
		id,
		trackingId,
		destination,
		priority,
		status,
		createdAt
	FROM shipment;
	`
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list shipments: query shipment table: %w", err)
	}
	defer rows.Close()

	out := make([]Shipment, 0, 16)
	for rows.Next() {
		var sh Shipment
		var createdAt string
		if err := rows.Scan(&sh.ID, &sh.TrackingID, &sh.Destination, &sh.Priority, &sh.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("list shipments: scan row: %w", err)
		}
		sh.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("list shipments: id=%s: %w", sh.ID, err)
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shipments: row iteration: %w", err)
	}

	return out, nil
}

// Create inserts a shipment with a generated id and the current time.
func (s *SQLiteStore) Create(ctx context.Context, in NewShipment) (_ string, err error) {
	defer obs.Time(ctx, "shipments.Create")(&err)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return "", fmt.Errorf("create shipment: acquire conn: %w", err)
	}
	defer conn.Close()

	sh := newShipment(s.newID(), in, s.nowFunc())
	if err := insert(ctx, conn, sh); err != nil {
		return "", fmt.Errorf("create shipment: %w", err)
	}
	return sh.ID, nil
}

// UpdateStatus sets status and refreshes createdAt for id.
// An unknown id is not an error; it yields false.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, id, status string) (_ bool, err error) {
	defer obs.Time(ctx, "shipments.UpdateStatus")(&err)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("update shipment status: acquire conn: %w", err)
	}
	defer conn.Close()

	res, err := conn.ExecContext(ctx,
		`UPDATE shipment SET status = ?, createdAt = ? WHERE id = ?;`,
		status, s.nowFunc().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return false, fmt.Errorf("update shipment status id=%s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update shipment status id=%s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

// Reset deletes every shipment and inserts the seed set in one transaction.
func (s *SQLiteStore) Reset(ctx context.Context) (err error) {
	defer obs.Time(ctx, "shipments.Reset")(&err)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("reset shipments: acquire conn: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reset shipments: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shipment;`); err != nil {
		return fmt.Errorf("reset shipments: delete rows: %w", err)
	}
	if err := s.insertSeeds(ctx, tx); err != nil {
		return fmt.Errorf("reset shipments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reset shipments: commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) insertSeeds(ctx context.Context, ex execer) error {
	now := s.nowFunc()
	for _, seed := range SeedShipments {
		sh := newShipment(s.newID(), seed, now)
		if err := insert(ctx, ex, sh); err != nil {
			return fmt.Errorf("seed %s: %w", seed.TrackingID, err)
		}
	}
	return nil
}

func insert(ctx context.Context, ex execer, sh Shipment) error {
	_, err := ex.ExecContext(ctx, insertShipment,
		sh.ID, sh.TrackingID, sh.Destination, sh.Priority, sh.Status, sh.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert id=%s: %w", sh.ID, err)
	}
	return nil
}

// legacyLayout matches naive local timestamps written by older deployments.
const legacyLayout = "2006-01-02T15:04:05.999999999"

func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse createdAt %q: %w", v, err)
	}
	return t, nil
}
