// Package remote defines the boundary to the remote system of record:
// one request primitive per queue action, plus reads for seeding the
// local cache. Errors are classified so the engine can tell a flaky
// network from a server that actually rejected the write.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
)

// ErrorKind classifies a remote failure.
type ErrorKind string

const (
	// KindNetwork covers unreachable hosts, timeouts and dropped
	// connections: the request may never have arrived.
	KindNetwork ErrorKind = "network"

	// KindRejected means the server received the request and said no.
	KindRejected ErrorKind = "rejected"
)

// Error is a classified remote failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNetwork reports whether err is a network-class remote failure.
func IsNetwork(err error) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == KindNetwork
}

// IsRejected reports whether err is a rejected-class remote failure.
func IsRejected(err error) bool {
	re, ok := err.(*Error)
	return ok && re.Kind == KindRejected
}

// Service is the remote system of record. The engine holds no lock on
// it and tolerates remote state changing between enqueue and replay;
// Upsert is keyed on the stable remote identifier so replaying the
// same operation twice is a remote-side no-op.
type Service interface {
	// Upsert updates-or-inserts the record with the given stable
	// identifier (conflict key = identifier).
	Upsert(ctx context.Context, resource, remoteID string, fields json.RawMessage) error

	// Create inserts a new record and returns the identifier the
	// remote assigned to it.
	Create(ctx context.Context, resource string, fields json.RawMessage) (string, error)

	// Delete removes the record with the given identifier.
	Delete(ctx context.Context, resource, remoteID string) error

	// PatchConfig replaces one section of remote configuration.
	PatchConfig(ctx context.Context, section string, fields json.RawMessage) error

	// Fetch reads a full resource snapshot for cache seeding.
	Fetch(ctx context.Context, resource string) (json.RawMessage, error)
}
