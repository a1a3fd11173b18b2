package sync

import "sync"

// Status is one progress event for a drain. The UI renders badges and
// toasts from this stream. Duplicate emission is acceptable; consumers
// can rely on always receiving a terminal event with Syncing false.
type Status struct {
	Syncing   bool `json:"syncing"`
	Pending   int  `json:"pending"`
	Processed int  `json:"processed"`
	Total     int  `json:"total"`
}

// statusFeed fans status events out to registered listeners.
type statusFeed struct {
	mu        sync.Mutex
	listeners []func(Status)
	last      Status
}

// subscribe registers a listener. Listeners are called synchronously
// from the drain loop, so they must not block.
func (f *statusFeed) subscribe(fn func(Status)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// emit publishes one event and records it as the latest.
func (f *statusFeed) emit(s Status) {
	f.mu.Lock()
	f.last = s
	listeners := f.listeners
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// latest returns the most recent event, for late-joining consumers.
func (f *statusFeed) latest() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
