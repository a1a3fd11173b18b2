// Package store provides the local durable key/value store backing
// cached snapshots and offline session records. Values survive process
// restarts; a failed write is reported to the caller, never swallowed.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fieldsync/fieldsync/internal/errors"
	"github.com/fieldsync/fieldsync/internal/models"
)

// KV is a persistent string-keyed store over the kv table. Writes are
// last-write-wins at the key level; an entry is always replaced
// wholesale so a stale sub-field can never survive a refresh.
type KV struct {
	db *sql.DB
}

// NewKV creates a KV over an open database.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Set stores value under key, replacing any existing entry.
func (s *KV) Set(key string, value []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, string(value), time.Now().Unix()); err != nil {
		return errors.Wrap(errors.ErrStorage, "kv set failed", err)
	}
	return nil
}

// Get retrieves the value for key. The second return is false when the
// key is absent, which is not an error.
func (s *KV) Get(key string) ([]byte, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrStorage, "kv get failed", err)
	}
	return []byte(value), true, nil
}

// GetEntry retrieves the full cache entry for key, including the time
// the snapshot was taken.
func (s *KV) GetEntry(key string) (*models.CacheEntry, bool, error) {
	var entry models.CacheEntry
	var value string
	err := s.db.QueryRow("SELECT key, value, updated_at FROM kv WHERE key = ?", key).
		Scan(&entry.Key, &value, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrStorage, "kv get failed", err)
	}
	entry.Value = json.RawMessage(value)
	return &entry, true, nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *KV) Delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return errors.Wrap(errors.ErrStorage, "kv delete failed", err)
	}
	return nil
}

// SetJSON marshals v and stores it under key.
func (s *KV) SetJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrInvalid, "kv value not serializable", err)
	}
	return s.Set(key, data)
}

// GetJSON retrieves key and unmarshals it into v. Returns false when
// the key is absent, leaving v untouched.
func (s *KV) GetJSON(key string, v interface{}) (bool, error) {
	data, ok, err := s.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.Wrap(errors.ErrStorage, "kv value corrupt", err)
	}
	return true, nil
}
