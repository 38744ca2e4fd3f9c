// Package state holds the session snapshot and the store every subsystem
// reads from and reacts to.
package state

import (
	"log/slog"
	"sync"
)

// #region types

// Event names a notification stream on the Store.
type Event string

// EventStateChanged fires after every Set.
const EventStateChanged Event = "state:changed"

// Listener receives the merged snapshot and the one it replaced.
type Listener func(next, prev Snapshot)

// SubscriptionID identifies a listener for Unsubscribe.
type SubscriptionID uint64

// Overlay is a partial snapshot merged once, at the first transition into
// XRActive. Built by the debug preset parser.
type Overlay struct {
	Name   string
	Update Update
	Active bool
}

type subscription struct {
	id SubscriptionID
	fn Listener
}

// #endregion types

// #region store

// Store owns the one mutable snapshot of a session. All mutation goes
// through Set; listeners are notified synchronously in subscription order.
//
// The store assumes a single logical thread of control (the frame loop and
// the callbacks it dispatches). The mutex only guards the snapshot and the
// subscriber lists; it is never held while listeners run, so a listener may
// call Set again. That nested Set finishes, notifications included, before
// returning to the outer listener loop.
type Store struct {
	mu             sync.Mutex
	current        Snapshot
	subs           map[Event][]subscription
	nextID         SubscriptionID
	overlay        Overlay
	overlayApplied bool
	logger         *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithDebugOverlay arms the one-time overlay. Inactive overlays are ignored.
func WithDebugOverlay(o Overlay) Option {
	return func(s *Store) { s.overlay = o }
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithInitial merges u over the defaults at construction, without notifying.
func WithInitial(u Update) Option {
	return func(s *Store) { s.current = s.current.With(s.coerce(u)) }
}

// New creates a store in the PlatformCheck phase with default field values.
func New(opts ...Option) *Store {
	s := &Store{
		current: NewSnapshot(Defaults()),
		subs:    make(map[Event][]subscription),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.overlay.Active {
		s.logger.Info("[STORE] debug overlay armed", "preset", s.overlay.Name, "fields", len(s.overlay.Update))
	}
	return s
}

// #endregion store

// #region get-set

// Get returns the current snapshot.
func (s *Store) Get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set merges u into the snapshot and notifies every EventStateChanged
// listener with (next, prev). Values are coerced to their schema kind; a
// value that cannot be coerced is dropped with a warning.
//
// When u moves the phase to XRActive and an armed overlay has not been
// applied yet, the overlay is merged into the same update (overlay keys
// win) so listeners see a single notification. The overlay is applied at
// most once per store.
func (s *Store) Set(u Update) {
	u = s.coerce(u)

	s.mu.Lock()
	prev := s.current
	if p, ok := u[CurrentState].(Phase); ok && p == XRActive && s.overlay.Active && !s.overlayApplied {
		s.overlayApplied = true
		u = u.Clone()
		for k, v := range s.coerce(s.overlay.Update) {
			u[k] = v
		}
		s.logger.Info("[STORE] applied debug overlay", "preset", s.overlay.Name)
	}
	next := prev.With(u)
	s.current = next
	subs := append([]subscription(nil), s.subs[EventStateChanged]...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next, prev)
	}
}

// OverlayApplied reports whether the debug overlay has been merged.
func (s *Store) OverlayApplied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlayApplied
}

func (s *Store) coerce(u Update) Update {
	out := make(Update, len(u))
	for k, v := range u {
		cv, err := Coerce(k, v)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("[STORE] dropping field", "field", k, "error", err)
			}
			continue
		}
		out[k] = cv
	}
	return out
}

// #endregion get-set

// #region subscribe

// Subscribe registers fn for ev. Listeners added during a notification
// round are first called on the next Set.
func (s *Store) Subscribe(ev Event, fn Listener) SubscriptionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.subs[ev] = append(s.subs[ev], subscription{id: s.nextID, fn: fn})
	return s.nextID
}

// Unsubscribe removes the listener. A listener removed during a
// notification round still receives that round. Returns false if id was
// not subscribed to ev.
func (s *Store) Unsubscribe(ev Event, id SubscriptionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[ev]
	for i, sub := range subs {
		if sub.id == id {
			s.subs[ev] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// #endregion subscribe
