// Package watchable implements a listener registry: add a listener,
// get back an opaque token, remove by token, notify every listener in
// insertion order. It is the generic broadcaster netmon builds its
// subscriber fan-out on top of.
package watchable

import (
	"log/slog"

	"github.com/google/uuid"
)

// Listener is a callback invoked with a single event value. Multi-value
// notifications are modeled by making T a struct.
type Listener[T any] func(T)

type entry[T any] struct {
	token    uuid.UUID
	listener Listener[T]
}

// Watchable is a single-threaded listener registry parameterized over
// the event type T. The zero value is not usable; construct one with
// New.
type Watchable[T any] struct {
	log       *slog.Logger
	listeners []entry[T]
	pending   map[uuid.UUID]bool // removals requested during an in-progress Notify
	notifying bool
}

// New builds a Watchable. A nil logger defaults to slog.Default.
func New[T any](logger *slog.Logger) *Watchable[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchable[T]{log: logger}
}

// Add registers listener and returns a token that can later be passed
// to Remove. A listener added while Notify is in progress does not
// fire during that pass.
func (w *Watchable[T]) Add(listener Listener[T]) uuid.UUID {
	token := uuid.New()
	w.listeners = append(w.listeners, entry[T]{token: token, listener: listener})
	return token
}

// Remove unregisters the listener identified by token. If Notify is
// currently iterating, the removal is deferred until it completes; the
// listener is skipped for the remainder of the in-progress pass
// regardless. Removing an unknown token is a no-op that logs a warning.
func (w *Watchable[T]) Remove(token uuid.UUID) {
	if w.notifying {
		if w.pending == nil {
			w.pending = make(map[uuid.UUID]bool)
		}
		w.pending[token] = true
		return
	}
	if !w.removeNow(token) {
		w.log.Warn("watchable: remove of unknown token", "token", token)
	}
}

func (w *Watchable[T]) removeNow(token uuid.UUID) bool {
	for i, e := range w.listeners {
		if e.token == token {
			w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Notify invokes every registered listener, in insertion order, with
// event. A listener that panics is caught, logged at error severity,
// and the pass continues with the next listener. Removals requested
// from within a listener during this pass are applied once Notify
// returns.
func (w *Watchable[T]) Notify(event T) {
	w.notifying = true
	for _, e := range w.listeners {
		if w.pending[e.token] {
			continue
		}
		w.callSafely(e, event)
	}
	w.notifying = false

	for token := range w.pending {
		if !w.removeNow(token) {
			w.log.Warn("watchable: remove of unknown token", "token", token)
		}
	}
	w.pending = nil
}

func (w *Watchable[T]) callSafely(e entry[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("watchable: listener panicked", "token", e.token, "panic", r)
		}
	}()
	e.listener(event)
}

// Len reports the number of currently registered listeners, ignoring
// any removal deferred by an in-progress Notify.
func (w *Watchable[T]) Len() int {
	return len(w.listeners)
}
