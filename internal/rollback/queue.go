package rollback

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// RequestRollback records req and returns as soon as it is stored.
func (q *Queue) RequestRollback(ctx context.Context, req Request) error {
	_, err := q.Enqueue(ctx, req)
	return err
}

// Enqueue stores req and returns its id. A request whose Delivery was
// already stored returns the existing id instead of a new row.
func (q *Queue) Enqueue(ctx context.Context, req Request) (string, error) {
	if req.Project == "" {
		return "", fmt.Errorf("%w: project is empty", ErrInvalidRequest)
	}
	if req.UserID == "" {
		return "", fmt.Errorf("%w: user_id is empty", ErrInvalidRequest)
	}
	if req.ChannelID == "" {
		return "", fmt.Errorf("%w: channel_id is empty", ErrInvalidRequest)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(timeFormat)

	var dedupeKey any
	if req.Delivery != "" {
		dedupeKey = DedupeKey(req.Delivery)
	}

	res, err := q.db.ExecContext(ctx, `
INSERT INTO rollback_requests(id, project, user_id, channel_id, status, dedupe_key, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(dedupe_key) DO NOTHING;
`, id, req.Project, req.UserID, req.ChannelID, StatusRequested, dedupeKey, now)
	if err != nil {
		return "", fmt.Errorf("enqueue rollback request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("enqueue rollback request: %w", err)
	}
	if n > 0 {
		return id, nil
	}

	var existing string
	err = q.db.QueryRowContext(ctx, `SELECT id FROM rollback_requests WHERE dedupe_key = ?;`, dedupeKey).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("lookup duplicate rollback request: %w", err)
	}
	return existing, nil
}

// Get returns one stored request.
func (q *Queue) Get(ctx context.Context, id string) (*Record, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, project, user_id, channel_id, status, created_at
FROM rollback_requests
WHERE id = ?;
`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rollback request: %w", err)
	}
	return rec, nil
}

// List returns the most recent requests, newest first.
func (q *Queue) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.db.QueryContext(ctx, `
SELECT id, project, user_id, channel_id, status, created_at
FROM rollback_requests
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list rollback requests: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rollback request: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rollback requests: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec        Record
		statusS    string
		createdAtS string
	)
	if err := s.Scan(&rec.ID, &rec.Project, &rec.UserID, &rec.ChannelID, &statusS, &createdAtS); err != nil {
		return nil, err
	}
	rec.Status = Status(statusS)
	if t, err := time.Parse(timeFormat, createdAtS); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}

// DedupeKey hashes a delivery identity into the stored dedupe key.
func DedupeKey(delivery string) string {
	sum := blake3.Sum256([]byte(delivery))
	return "blake3:" + hex.EncodeToString(sum[:])
}
