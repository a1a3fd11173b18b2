// Package connectivity carries the online/offline state and fires an
// edge event on each transition to online. Consumers subscribe; nobody
// polls.
package connectivity

import (
	"sync"

	"github.com/fieldsync/fieldsync/internal/logging"
)

// Notifier holds the current reachability state. The platform shell
// feeds it from whatever network monitoring the host OS provides.
type Notifier struct {
	mu     sync.Mutex
	online bool
	subs   []chan struct{}
}

// NewNotifier creates a Notifier with the given initial state. No
// transition event fires for the initial state; callers that start
// online trigger their first drain themselves.
func NewNotifier(online bool) *Notifier {
	return &Notifier{online: online}
}

// Online reports the current state.
func (n *Notifier) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// SetOnline updates the state. An offline-to-online flip notifies
// every subscriber; sends are non-blocking on a buffered channel, so a
// subscriber that has not consumed the previous edge coalesces the two
// into one.
func (n *Notifier) SetOnline(online bool) {
	n.mu.Lock()
	wasOnline := n.online
	n.online = online
	subs := n.subs
	n.mu.Unlock()

	if wasOnline == online {
		return
	}

	logging.Info("Connectivity changed",
		map[string]interface{}{"online": online})

	if !online {
		return
	}
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe registers for online-transition events. The channel has a
// one-slot buffer: pending un-consumed edges coalesce rather than
// queueing.
func (n *Notifier) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.subs = append(n.subs, ch)
	n.mu.Unlock()
	return ch
}
