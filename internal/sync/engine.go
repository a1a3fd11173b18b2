// Package sync provides the reconciliation engine: on every transition
// to online it drains the pending-operation queue against the remote
// system of record, at least once per operation, and reports progress
// to the UI layer.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/fieldsync/fieldsync/internal/connectivity"
	"github.com/fieldsync/fieldsync/internal/effective"
	"github.com/fieldsync/fieldsync/internal/errors"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/models"
	"github.com/fieldsync/fieldsync/internal/queue"
	"github.com/fieldsync/fieldsync/internal/remote"
	"github.com/fieldsync/fieldsync/internal/store"
)

// CacheKeyPrefix is the kv prefix for remote resource snapshots.
const CacheKeyPrefix = "resource:"

// createdIDKeyPrefix maps a create operation's local ID to the remote
// identifier the server assigned, so write paths can target the right
// record on a later edit.
const createdIDKeyPrefix = "created_id:"

// factsKeyPrefix is the kv prefix for cached effective-dated fact
// streams, keyed by resource.
const factsKeyPrefix = "facts:"

// Engine orchestrates queue drains and seed refreshes.
type Engine struct {
	queue    *queue.Queue
	kv       *store.KV
	remote   remote.Service
	notifier *connectivity.Notifier

	// seedResources are re-pulled into the cache on each online
	// transition, independent of the drain.
	seedResources []string

	resolver *effective.Resolver

	feed statusFeed

	mu       gosync.Mutex
	draining bool
}

// NewEngine creates an Engine. seedResources may be empty; a
// non-positive lookback uses the resolver default.
func NewEngine(q *queue.Queue, kv *store.KV, svc remote.Service, notifier *connectivity.Notifier, seedResources []string, lookback time.Duration) *Engine {
	return &Engine{
		queue:         q,
		kv:            kv,
		remote:        svc,
		notifier:      notifier,
		seedResources: seedResources,
		resolver:      effective.NewResolver(lookback),
	}
}

// OnStatus registers a status listener. Listeners are invoked from the
// drain loop and must not block.
func (e *Engine) OnStatus(fn func(Status)) {
	e.feed.subscribe(fn)
}

// Status returns the most recent status event.
func (e *Engine) Status() Status {
	return e.feed.latest()
}

// Start subscribes to the connectivity signal and runs drains until
// ctx is done. If the device is already online at start, a first drain
// runs immediately; this is the app-start-while-online trigger.
func (e *Engine) Start(ctx context.Context) {
	edges := e.notifier.Subscribe()

	go func() {
		if e.notifier.Online() {
			e.syncNow(ctx)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-edges:
				e.syncNow(ctx)
			}
		}
	}()
}

// syncNow runs the seed refresh and the drain for one trigger. The
// refresh runs first and concurrently, so read paths get fresh
// fallback data even while the write drain is still going.
func (e *Engine) syncNow(ctx context.Context) {
	go e.RefreshSeeds(ctx)
	e.Drain(ctx)
}

// Submit enqueues a mutation and, when online, kicks off a drain in
// the background. This is the single entry point for write paths:
// callers never reason about connectivity or double-triggering.
func (e *Engine) Submit(ctx context.Context, action models.Action, payload json.RawMessage) (*models.QueuedOperation, error) {
	if !action.Known() {
		return nil, errors.New(errors.ErrUnsupportedAction, "unsupported action: "+string(action))
	}

	op, err := e.queue.Enqueue(action, payload)
	if err != nil {
		return nil, err
	}

	if e.notifier.Online() {
		go e.Drain(ctx)
	}

	return op, nil
}

// Drain performs one complete pass over the snapshot of pending
// operations. Safe to call concurrently with itself: a second call
// while a drain is in progress is a no-op, and items enqueued mid-
// drain wait for the next trigger. A single item's failure never
// aborts the pass.
func (e *Engine) Drain(ctx context.Context) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		logging.Debug("Drain already in progress, skipping", nil)
		return
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	pending, err := e.queue.ListPending()
	if err != nil {
		logging.ErrorWithCode("Failed to list pending operations", string(errors.ErrSyncFailed), err, nil)
		return
	}

	total := len(pending)
	if total == 0 {
		return
	}

	logging.Info("Drain started", map[string]interface{}{"total": total})
	e.feed.emit(Status{Syncing: true, Pending: total, Processed: 0, Total: total})

	// Record keys that failed during this pass. A later operation on
	// the same record must not be applied ahead of an earlier, still
	// unconfirmed one, or the record would end up reordered.
	failedKeys := make(map[string]bool)

	processed := 0
	failed := 0
	for _, op := range pending {
		key := recordKey(op)
		if key != "" && failedKeys[key] {
			reason := "blocked: earlier operation on same record failed"
			if err := e.queue.MarkFailed(op.ID, reason); err != nil {
				logging.Error("Failed to mark blocked operation", err,
					map[string]interface{}{"operation_id": op.ID.String()})
			}
			failed++
		} else if err := e.apply(ctx, op); err != nil {
			if key != "" {
				failedKeys[key] = true
			}
			logging.ErrorWithCode("Operation failed", errorCode(err), err,
				map[string]interface{}{
					"operation_id": op.ID.String(),
					"action":       string(op.Action),
				})
			if markErr := e.queue.MarkFailed(op.ID, err.Error()); markErr != nil {
				logging.Error("Failed to record operation failure", markErr,
					map[string]interface{}{"operation_id": op.ID.String()})
			}
			failed++
		} else {
			if err := e.queue.MarkDone(op.ID); err != nil {
				logging.Error("Failed to mark operation done", err,
					map[string]interface{}{"operation_id": op.ID.String()})
			}
		}

		processed++
		// Failed operations are retained, not confirmed, so they stay
		// in the pending count the UI surfaces after the drain.
		e.feed.emit(Status{
			Syncing:   processed < total,
			Pending:   total - processed + failed,
			Processed: processed,
			Total:     total,
		})
	}

	stats, err := e.queue.Stats()
	if err == nil {
		logging.Info("Drain finished", map[string]interface{}{
			"total":  total,
			"failed": stats[models.StatusFailed],
		})
	}
}

// apply dispatches one operation to the remote service. The returned
// error, if any, becomes the operation's retained last error.
func (e *Engine) apply(ctx context.Context, op *models.QueuedOperation) error {
	switch op.Action {
	case models.ActionUpsertRecord:
		p, err := models.DecodeRecordPayload(op.Payload)
		if err != nil {
			return err
		}
		if p.RemoteID == "" {
			return fmt.Errorf("upsert payload missing remote_id")
		}
		return e.remote.Upsert(ctx, p.Resource, p.RemoteID, p.Fields)

	case models.ActionCreateRecord:
		p, err := models.DecodeRecordPayload(op.Payload)
		if err != nil {
			return err
		}
		remoteID, err := e.remote.Create(ctx, p.Resource, p.Fields)
		if err != nil {
			return err
		}
		// Reconcile the assigned identifier into the local cache
		// before confirming, so a later offline edit targets the real
		// record instead of creating a duplicate.
		if err := e.backfillCreatedID(op.ID, p, remoteID); err != nil {
			return err
		}
		return nil

	case models.ActionDeleteRecord:
		p, err := models.DecodeRecordPayload(op.Payload)
		if err != nil {
			return err
		}
		if p.RemoteID == "" {
			return fmt.Errorf("delete payload missing remote_id")
		}
		return e.remote.Delete(ctx, p.Resource, p.RemoteID)

	case models.ActionPatchConfig:
		p, err := models.DecodeConfigPatchPayload(op.Payload)
		if err != nil {
			return err
		}
		return e.remote.PatchConfig(ctx, p.Section, p.Fields)

	default:
		// Version skew: data written by a newer version. Terminal,
		// never retried automatically.
		return errors.New(errors.ErrUnsupportedAction, "unsupported action: "+string(op.Action))
	}
}

// backfillCreatedID records the server-assigned identifier in the
// local cache: under the operation's ID for write-path lookups, and in
// the resource snapshot so reads see the new record.
func (e *Engine) backfillCreatedID(opID models.UUID, p *models.RecordPayload, remoteID string) error {
	if err := e.kv.Set(createdIDKeyPrefix+opID.String(), []byte(remoteID)); err != nil {
		return err
	}

	snapshot := make(map[string]json.RawMessage)
	if _, err := e.kv.GetJSON(CacheKeyPrefix+p.Resource, &snapshot); err != nil {
		return err
	}
	snapshot[remoteID] = p.Fields
	return e.kv.SetJSON(CacheKeyPrefix+p.Resource, snapshot)
}

// CreatedRemoteID returns the remote identifier assigned to a create
// operation, once its drain has confirmed it.
func (e *Engine) CreatedRemoteID(opID models.UUID) (string, bool, error) {
	data, ok, err := e.kv.Get(createdIDKeyPrefix + opID.String())
	if err != nil || !ok {
		return "", ok, err
	}
	return string(data), true, nil
}

// RefreshSeeds re-pulls reference resources from the remote service
// into the cache. Each resource is independent; one failure never
// stops the rest.
func (e *Engine) RefreshSeeds(ctx context.Context) {
	for _, resource := range e.seedResources {
		body, err := e.remote.Fetch(ctx, resource)
		if err != nil {
			logging.Warn("Seed refresh failed",
				map[string]interface{}{"resource": resource, "error": err.Error()})
			continue
		}
		if err := e.kv.Set(CacheKeyPrefix+resource, body); err != nil {
			logging.Error("Seed cache write failed", err,
				map[string]interface{}{"resource": resource})
		}
	}
}

// FetchThroughCache reads a resource remotely when possible, refreshing
// the cached snapshot, and falls back to the last known-good snapshot
// when the remote service is unreachable.
func (e *Engine) FetchThroughCache(ctx context.Context, resource string) (json.RawMessage, error) {
	if e.notifier.Online() {
		body, err := e.remote.Fetch(ctx, resource)
		if err == nil {
			if setErr := e.kv.Set(CacheKeyPrefix+resource, body); setErr != nil {
				// A dropped cache write is tolerable; the read itself
				// succeeded.
				logging.Warn("Cache refresh write failed",
					map[string]interface{}{"resource": resource, "error": setErr.Error()})
			}
			return body, nil
		}
		if !remote.IsNetwork(err) {
			return nil, err
		}
	}

	data, ok, err := e.kv.Get(CacheKeyPrefix + resource)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New(errors.ErrNotFound, "no cached snapshot for "+resource)
	}
	return json.RawMessage(data), nil
}

// PutFacts replaces the cached effective-dated fact stream for a
// resource. The ingest side writes here whenever the record history
// changes; ResolveAt reads it.
func (e *Engine) PutFacts(resource string, facts []models.Fact) error {
	return e.kv.SetJSON(factsKeyPrefix+resource, facts)
}

// ResolveAt answers "what value was in effect for subjectID on date at"
// from the cached fact stream for resource. When no cached fact
// qualifies, live is returned as the fallback, and the resolution says
// so.
func (e *Engine) ResolveAt(resource, subjectID string, at time.Time, live string) (effective.Resolution, error) {
	var facts []models.Fact
	if _, err := e.kv.GetJSON(factsKeyPrefix+resource, &facts); err != nil {
		return effective.Resolution{}, err
	}
	return e.resolver.Resolve(facts, subjectID, at, live), nil
}

// recordKey identifies the logical record an operation targets, for
// same-record ordering. Creates have no remote identity yet and are
// independent of each other.
func recordKey(op *models.QueuedOperation) string {
	switch op.Action {
	case models.ActionUpsertRecord, models.ActionDeleteRecord:
		var p models.RecordPayload
		if json.Unmarshal(op.Payload, &p) != nil || p.RemoteID == "" {
			return ""
		}
		return p.Resource + "/" + p.RemoteID
	case models.ActionPatchConfig:
		var p models.ConfigPatchPayload
		if json.Unmarshal(op.Payload, &p) != nil {
			return ""
		}
		return "config/" + p.Section
	}
	return ""
}

// errorCode picks the log code for a failed operation.
func errorCode(err error) string {
	switch {
	case remote.IsNetwork(err):
		return string(errors.ErrRemoteNetwork)
	case remote.IsRejected(err):
		return string(errors.ErrRemoteRejected)
	case errors.Is(err, errors.ErrUnsupportedAction):
		return string(errors.ErrUnsupportedAction)
	}
	return string(errors.ErrSyncFailed)
}
