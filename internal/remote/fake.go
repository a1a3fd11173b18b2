package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Fake is an in-memory Service for tests. Failure injection is
// per-call: FailNext queues classified errors that the next calls
// return in order, and FailCall targets the n-th call from now.
type Fake struct {
	mu       sync.Mutex
	records  map[string]map[string]json.RawMessage // resource -> id -> fields
	config   map[string]json.RawMessage            // section -> fields
	nextID   int
	callN    int
	failures []*Error
	failAt   map[int]*Error
	Calls    []string
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		records: make(map[string]map[string]json.RawMessage),
		config:  make(map[string]json.RawMessage),
		failAt:  make(map[int]*Error),
	}
}

// FailNext queues an error for the next call.
func (f *Fake) FailNext(kind ErrorKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, &Error{Kind: kind, Message: message})
}

// FailCall injects an error for the n-th service call from now,
// counting every Service method, 1-based. Calls before and after n
// behave normally.
func (f *Fake) FailCall(n int, kind ErrorKind, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt[f.callN+n] = &Error{Kind: kind, Message: message}
}

func (f *Fake) takeFailure() *Error {
	f.callN++
	if e, ok := f.failAt[f.callN]; ok {
		delete(f.failAt, f.callN)
		return e
	}
	if len(f.failures) == 0 {
		return nil
	}
	e := f.failures[0]
	f.failures = f.failures[1:]
	return e
}

// Record returns the stored fields for resource/id.
func (f *Fake) Record(resource, id string) (json.RawMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.records[resource][id]
	return fields, ok
}

// SetRecord seeds a record, for Fetch-backed tests.
func (f *Fake) SetRecord(resource, id string, fields json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[resource] == nil {
		f.records[resource] = make(map[string]json.RawMessage)
	}
	f.records[resource][id] = fields
}

func (f *Fake) Upsert(ctx context.Context, resource, remoteID string, fields json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "upsert "+resource+"/"+remoteID)
	if e := f.takeFailure(); e != nil {
		return e
	}
	if f.records[resource] == nil {
		f.records[resource] = make(map[string]json.RawMessage)
	}
	f.records[resource][remoteID] = fields
	return nil
}

func (f *Fake) Create(ctx context.Context, resource string, fields json.RawMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "create "+resource)
	if e := f.takeFailure(); e != nil {
		return "", e
	}
	f.nextID++
	id := fmt.Sprintf("srv-%d", f.nextID)
	if f.records[resource] == nil {
		f.records[resource] = make(map[string]json.RawMessage)
	}
	f.records[resource][id] = fields
	return id, nil
}

func (f *Fake) Delete(ctx context.Context, resource, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "delete "+resource+"/"+remoteID)
	if e := f.takeFailure(); e != nil {
		return e
	}
	delete(f.records[resource], remoteID)
	return nil
}

func (f *Fake) PatchConfig(ctx context.Context, section string, fields json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "patch-config "+section)
	if e := f.takeFailure(); e != nil {
		return e
	}
	f.config[section] = fields
	return nil
}

func (f *Fake) Fetch(ctx context.Context, resource string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "fetch "+resource)
	if e := f.takeFailure(); e != nil {
		return nil, e
	}
	byID := f.records[resource]
	out := make(map[string]json.RawMessage, len(byID))
	for id, fields := range byID {
		out[id] = fields
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, &Error{Kind: KindRejected, Message: "marshal", Err: err}
	}
	return data, nil
}
