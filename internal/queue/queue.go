// Package queue provides the durable pending-operation queue. Every
// not-yet-confirmed mutation lives here as a row in the sync_queue
// table until a drain confirms it against the remote service.
package queue

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/fieldsync/fieldsync/internal/errors"
	"github.com/fieldsync/fieldsync/internal/models"
	"github.com/fieldsync/fieldsync/internal/uuid"
)

// Queue manages queued operations over an open database. Each mutator
// runs as a single statement or transaction, so a concurrent reader
// never observes a half-updated queue.
type Queue struct {
	db *sql.DB
}

// New creates a Queue over an open database.
func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

// Enqueue appends a new pending operation and returns it. If the row
// cannot be durably written the caller gets an error and no operation
// ID, so the UI never confirms an intent that was not recorded.
func (q *Queue) Enqueue(action models.Action, payload json.RawMessage) (*models.QueuedOperation, error) {
	op := &models.QueuedOperation{
		ID:        models.UUID(uuid.New()),
		Action:    action,
		Payload:   payload,
		Status:    models.StatusPending,
		CreatedAt: time.Now().Unix(),
	}

	query := `
	INSERT INTO sync_queue (id, action, payload, status, created_at, last_error)
	VALUES (?, ?, ?, ?, ?, '')
	`
	res, err := q.db.Exec(query, op.ID, op.Action, string(op.Payload), op.Status, op.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(errors.ErrQueueWrite, "enqueue failed", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		op.Seq = seq
	}

	log.Printf("[Queue] Enqueued %s operation %s", op.Action, op.ID)

	return op, nil
}

// ListPending returns all pending operations in enqueue order. Done
// and failed operations are never included.
func (q *Queue) ListPending() ([]*models.QueuedOperation, error) {
	return q.list(models.StatusPending)
}

// ListFailed returns all failed operations in enqueue order, each with
// its retained last error, for the UI to surface.
func (q *Queue) ListFailed() ([]*models.QueuedOperation, error) {
	return q.list(models.StatusFailed)
}

func (q *Queue) list(status models.OperationStatus) ([]*models.QueuedOperation, error) {
	query := `
	SELECT seq, id, action, payload, status, created_at, last_error
	FROM sync_queue WHERE status = ? ORDER BY seq
	`
	rows, err := q.db.Query(query, status)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "queue list failed", err)
	}
	defer rows.Close()

	var ops []*models.QueuedOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Get returns one operation by ID.
func (q *Queue) Get(id models.UUID) (*models.QueuedOperation, error) {
	query := `
	SELECT seq, id, action, payload, status, created_at, last_error
	FROM sync_queue WHERE id = ?
	`
	row := q.db.QueryRow(query, id)
	op, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrOperationMissing, "operation not found: "+id.String())
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "queue get failed", err)
	}
	return op, nil
}

// MarkDone removes a confirmed operation. Idempotent: marking an
// already-removed operation is a no-op.
func (q *Queue) MarkDone(id models.UUID) error {
	if _, err := q.db.Exec("DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return errors.Wrap(errors.ErrQueueWrite, "mark done failed", err)
	}

	log.Printf("[Queue] Completed operation %s", id)

	return nil
}

// MarkFailed transitions a pending operation to failed and records the
// cause. The row is retained so the user can retry or discard it
// explicitly. Idempotent: only a pending row transitions.
func (q *Queue) MarkFailed(id models.UUID, reason string) error {
	query := "UPDATE sync_queue SET status = ?, last_error = ? WHERE id = ? AND status = ?"
	if _, err := q.db.Exec(query, models.StatusFailed, reason, id, models.StatusPending); err != nil {
		return errors.Wrap(errors.ErrQueueWrite, "mark failed failed", err)
	}

	log.Printf("[Queue] Operation %s failed: %s", id, reason)

	return nil
}

// Retry re-enqueues a failed operation as a new pending operation at
// the queue tail and removes the failed row. Mutating the old row back
// to pending would make its place in the FIFO ambiguous, so a retry is
// always a fresh operation with a fresh ID.
func (q *Queue) Retry(id models.UUID) (*models.QueuedOperation, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return nil, errors.Wrap(errors.ErrQueueWrite, "retry failed", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
	SELECT seq, id, action, payload, status, created_at, last_error
	FROM sync_queue WHERE id = ? AND status = ?`, id, models.StatusFailed)
	old, err := scanRow(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrOperationMissing, "no failed operation: "+id.String())
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "retry lookup failed", err)
	}

	op := &models.QueuedOperation{
		ID:        models.UUID(uuid.New()),
		Action:    old.Action,
		Payload:   old.Payload,
		Status:    models.StatusPending,
		CreatedAt: time.Now().Unix(),
	}
	res, err := tx.Exec(`
	INSERT INTO sync_queue (id, action, payload, status, created_at, last_error)
	VALUES (?, ?, ?, ?, ?, '')`, op.ID, op.Action, string(op.Payload), op.Status, op.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(errors.ErrQueueWrite, "retry enqueue failed", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		op.Seq = seq
	}

	if _, err := tx.Exec("DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return nil, errors.Wrap(errors.ErrQueueWrite, "retry cleanup failed", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(errors.ErrQueueWrite, "retry failed", err)
	}

	log.Printf("[Queue] Retried operation %s as %s", id, op.ID)

	return op, nil
}

// Discard removes a failed operation without replaying it.
func (q *Queue) Discard(id models.UUID) error {
	res, err := q.db.Exec("DELETE FROM sync_queue WHERE id = ? AND status = ?", id, models.StatusFailed)
	if err != nil {
		return errors.Wrap(errors.ErrQueueWrite, "discard failed", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New(errors.ErrOperationMissing, "no failed operation: "+id.String())
	}

	log.Printf("[Queue] Discarded operation %s", id)

	return nil
}

// Stats returns per-status counts for the UI badge.
func (q *Queue) Stats() (map[models.OperationStatus]int, error) {
	rows, err := q.db.Query("SELECT status, COUNT(*) FROM sync_queue GROUP BY status")
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "queue stats failed", err)
	}
	defer rows.Close()

	stats := map[models.OperationStatus]int{
		models.StatusPending: 0,
		models.StatusFailed:  0,
	}
	for rows.Next() {
		var status models.OperationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Wrap(errors.ErrStorage, "queue stats failed", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(s scanner) (*models.QueuedOperation, error) {
	op, err := scanRow(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrStorage, "queue scan failed", err)
	}
	return op, nil
}

func scanRow(s scanner) (*models.QueuedOperation, error) {
	var op models.QueuedOperation
	var payload string
	if err := s.Scan(&op.Seq, &op.ID, &op.Action, &payload, &op.Status, &op.CreatedAt, &op.LastError); err != nil {
		return nil, err
	}
	op.Payload = json.RawMessage(payload)
	return &op, nil
}
