// Package session provides the offline session gate: a local record
// of "this principal authenticated online on this device at least
// once", consulted at login time to decide whether offline use is
// permitted.
package session

import (
	"strings"
	"time"

	"github.com/fieldsync/fieldsync/internal/errors"
	"github.com/fieldsync/fieldsync/internal/logging"
	"github.com/fieldsync/fieldsync/internal/models"
	"github.com/fieldsync/fieldsync/internal/store"
)

const sessionsKey = "offline_sessions"

// Gate decides offline access from persisted session records.
// ValidityWindow of zero means presence alone is the signal; a
// non-zero window additionally requires the last online auth to be
// recent enough.
type Gate struct {
	kv             *store.KV
	validityWindow time.Duration
	now            func() time.Time
}

// NewGate creates a Gate over the durable store.
func NewGate(kv *store.KV, validityWindow time.Duration) *Gate {
	return &Gate{
		kv:             kv,
		validityWindow: validityWindow,
		now:            time.Now,
	}
}

// SaveOfflineSession records a successful online authentication for a
// principal. Called synchronously after every online login. The online
// path treats a returned error as best-effort hardening lost, not as a
// login failure.
func (g *Gate) SaveOfflineSession(principalID, email string, authAt time.Time) error {
	if principalID == "" {
		return errors.New(errors.ErrInvalid, "principal id required")
	}

	sessions, err := g.load()
	if err != nil {
		return err
	}

	sessions[principalID] = models.OfflineSession{
		PrincipalID:      principalID,
		DisplayEmail:     email,
		LastOnlineAuthAt: authAt.Unix(),
	}

	if err := g.kv.SetJSON(sessionsKey, sessions); err != nil {
		return errors.Wrap(errors.ErrSessionWrite, "failed to persist offline session", err)
	}

	logging.Info("Offline session saved",
		map[string]interface{}{"principal_id": principalID})

	return nil
}

// CanUseOffline reports whether offline use is permitted for a login
// attempt. The hint matches a recorded principal ID or display email,
// case-insensitively for email. A fresh device with no recorded online
// login always answers false, as does any storage failure.
func (g *Gate) CanUseOffline(principalHint string) bool {
	if principalHint == "" {
		return false
	}

	rec, ok := g.lookup(principalHint)
	if !ok {
		return false
	}

	if g.validityWindow > 0 {
		cutoff := g.now().Add(-g.validityWindow).Unix()
		if rec.LastOnlineAuthAt < cutoff {
			logging.Info("Offline session expired",
				map[string]interface{}{"principal_id": rec.PrincipalID})
			return false
		}
	}

	return true
}

// Lookup returns the recorded session matching the hint, if any.
func (g *Gate) Lookup(principalHint string) (*models.OfflineSession, bool) {
	rec, ok := g.lookup(principalHint)
	if !ok {
		return nil, false
	}
	return &rec, true
}

// Forget removes a principal's session record (logout-and-forget).
func (g *Gate) Forget(principalID string) error {
	sessions, err := g.load()
	if err != nil {
		return err
	}

	if _, ok := sessions[principalID]; !ok {
		return nil
	}
	delete(sessions, principalID)

	if err := g.kv.SetJSON(sessionsKey, sessions); err != nil {
		return errors.Wrap(errors.ErrSessionWrite, "failed to forget offline session", err)
	}
	return nil
}

func (g *Gate) lookup(hint string) (models.OfflineSession, bool) {
	sessions, err := g.load()
	if err != nil {
		logging.Error("Offline session read failed", err, nil)
		return models.OfflineSession{}, false
	}

	if rec, ok := sessions[hint]; ok {
		return rec, true
	}
	for _, rec := range sessions {
		if rec.DisplayEmail != "" && strings.EqualFold(rec.DisplayEmail, hint) {
			return rec, true
		}
	}
	return models.OfflineSession{}, false
}

func (g *Gate) load() (map[string]models.OfflineSession, error) {
	sessions := make(map[string]models.OfflineSession)
	if _, err := g.kv.GetJSON(sessionsKey, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}
