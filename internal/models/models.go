// Package models provides data model definitions for the offline core.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Action names one remote effect a queued operation applies. The
// vocabulary is closed: values outside this set are a version-skew
// error, never silently ignored.
type Action string

const (
	// ActionUpsertRecord updates-or-inserts a record keyed on its stable
	// remote identifier. Replaying it twice is a remote-side no-op.
	ActionUpsertRecord Action = "upsert-record"

	// ActionCreateRecord inserts a record with no prior remote identifier.
	// The remote assigns one on success.
	ActionCreateRecord Action = "create-record"

	// ActionDeleteRecord deletes a record by remote identifier.
	ActionDeleteRecord Action = "delete-record"

	// ActionPatchConfig replaces one section of remote configuration.
	ActionPatchConfig Action = "patch-config"
)

// Known reports whether a is part of the supported vocabulary.
// Data written by a newer version may carry actions we do not know.
func (a Action) Known() bool {
	switch a {
	case ActionUpsertRecord, ActionCreateRecord, ActionDeleteRecord, ActionPatchConfig:
		return true
	}
	return false
}

// OperationStatus represents the lifecycle state of a queued operation.
type OperationStatus string

const (
	StatusPending OperationStatus = "pending"
	StatusDone    OperationStatus = "done"
	StatusFailed  OperationStatus = "failed"
)

// QueuedOperation is one durable intent to mutate remote state.
// Immutable after enqueue except for Status and LastError.
type QueuedOperation struct {
	ID        UUID            `db:"id" json:"id"`
	Seq       int64           `db:"seq" json:"-"` // monotonic enqueue order, FIFO tie-break
	Action    Action          `db:"action" json:"action"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Status    OperationStatus `db:"status" json:"status"`
	CreatedAt int64           `db:"created_at" json:"created_at"`
	LastError string          `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the table name for QueuedOperation.
func (QueuedOperation) TableName() string {
	return "sync_queue"
}

// RecordPayload is the payload shape for the record actions. RemoteID
// is empty for creates and required for upserts and deletes.
type RecordPayload struct {
	Resource string          `json:"resource"`
	RemoteID string          `json:"remote_id,omitempty"`
	Fields   json.RawMessage `json:"fields,omitempty"`
}

// ConfigPatchPayload is the payload shape for ActionPatchConfig.
type ConfigPatchPayload struct {
	Section string          `json:"section"`
	Fields  json.RawMessage `json:"fields"`
}

// DecodeRecordPayload decodes and validates a record payload.
func DecodeRecordPayload(raw json.RawMessage) (*RecordPayload, error) {
	var p RecordPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed record payload: %w", err)
	}
	if p.Resource == "" {
		return nil, fmt.Errorf("record payload missing resource")
	}
	return &p, nil
}

// DecodeConfigPatchPayload decodes and validates a config patch payload.
func DecodeConfigPatchPayload(raw json.RawMessage) (*ConfigPatchPayload, error) {
	var p ConfigPatchPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed config patch payload: %w", err)
	}
	if p.Section == "" {
		return nil, fmt.Errorf("config patch payload missing section")
	}
	return &p, nil
}

// CacheEntry is the last known snapshot of a remote read, keyed by a
// logical resource name. Entries are replaced wholesale, never merged.
type CacheEntry struct {
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedAt int64           `db:"updated_at" json:"updated_at"`
}

// OfflineSession records that a principal authenticated successfully
// while online on this device.
type OfflineSession struct {
	PrincipalID      string `json:"principal_id"`
	DisplayEmail     string `json:"display_email,omitempty"`
	LastOnlineAuthAt int64  `json:"last_online_auth_at"`
}

// Fact is one entry in a time-ordered effective-dated stream: Value
// held for SubjectID starting on EffectiveFrom. RecordedAt is when the
// fact was captured, which may differ when a user back-dates a
// correction.
type Fact struct {
	SubjectID     string `json:"subject_id"`
	Value         string `json:"value"`
	EffectiveFrom int64  `json:"effective_from"` // unix seconds, date precision
	RecordedAt    int64  `json:"recorded_at,omitempty"`
}
