// Package behavior tracks per-robot behavior state: which state each actor
// is in, whether a transition is allowed, and which behavior managers should
// run.
package behavior

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// #region types

// ActorID identifies one robot. IDs are assigned by the spawner.
type ActorID int

// Metadata is free-form context attached to a state (a goal position, the
// reason for a reaction, ...).
type Metadata map[string]any

type entry struct {
	state       State
	previous    State
	hasPrevious bool
	enteredAt   time.Time
	metadata    Metadata
}

// #endregion types

// #region machine

// Machine holds behavior state for every live actor. Entries are created on
// first use and removed with Remove when the actor despawns.
//
// Operations on different actors never interfere. Operations on the same
// actor must not interleave; the mutex makes each call atomic, but a
// read-then-set sequence from two goroutines on one actor is still a race
// at the caller's level.
type Machine struct {
	mu     sync.Mutex
	actors map[ActorID]*entry
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the machine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// NewMachine creates an empty machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		actors: make(map[ActorID]*entry),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// get returns the actor's entry, creating it in DefaultState. Caller holds mu.
func (m *Machine) get(id ActorID) *entry {
	e, ok := m.actors[id]
	if !ok {
		e = &entry{state: DefaultState, enteredAt: m.now()}
		m.actors[id] = e
	}
	return e
}

// #endregion machine

// #region transitions

// SetState moves the actor to s. Re-entering the current state succeeds
// and only replaces metadata (when meta is non-nil). A cross-state
// transition is allowed when the current state is interruptible or s has at
// least the current state's priority; otherwise nothing changes and false is
// returned.
func (m *Machine) SetState(id ActorID, s State, meta Metadata) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(id)

	if e.state == s {
		if meta != nil {
			e.metadata = meta
		}
		return true
	}

	cur := Configs[e.state]
	next := Configs[s]
	if !cur.Interruptible && next.Priority < cur.Priority {
		m.logger.Debug("[BEHAVIOR] transition rejected",
			"actor", int(id), "from", e.state.String(), "to", s.String(),
			"fromPriority", cur.Priority, "toPriority", next.Priority)
		return false
	}

	if next.AutoCompletes {
		e.previous, e.hasPrevious = e.state, true
	} else {
		e.previous, e.hasPrevious = 0, false
	}
	e.state = s
	e.metadata = meta
	e.enteredAt = m.now()
	return true
}

// ForceState sets s without any validation. Initialization and debug only.
func (m *Machine) ForceState(id ActorID, s State, meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(id)
	if Configs[s].AutoCompletes && e.state != s {
		e.previous, e.hasPrevious = e.state, true
	} else if !Configs[s].AutoCompletes {
		e.previous, e.hasPrevious = 0, false
	}
	e.state = s
	e.metadata = meta
	e.enteredAt = m.now()
}

// OnStateComplete ends an auto-completing state, returning the actor to the
// state it interrupted (or DefaultState). Returns false, changing nothing,
// when the current state does not auto-complete.
func (m *Machine) OnStateComplete(id ActorID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(id)

	if !Configs[e.state].AutoCompletes {
		m.logger.Debug("[BEHAVIOR] complete ignored, state does not auto-complete",
			"actor", int(id), "state", e.state.String())
		return false
	}
	target := DefaultState
	if e.hasPrevious {
		target = e.previous
	}
	e.state = target
	e.previous, e.hasPrevious = 0, false
	e.metadata = nil
	e.enteredAt = m.now()
	return true
}

// Remove forgets the actor.
func (m *Machine) Remove(id ActorID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actors, id)
}

// #endregion transitions

// #region queries

// State returns the actor's current state.
func (m *Machine) State(id ActorID) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id).state
}

// Previous returns the state an auto-completing state will return to.
func (m *Machine) Previous(id ActorID) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.get(id)
	return e.previous, e.hasPrevious
}

// Metadata returns the metadata attached to the current state.
func (m *Machine) Metadata(id ActorID) Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(id).metadata
}

// Elapsed returns how long the actor has been in its current state.
func (m *Machine) Elapsed(id ActorID) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.get(id).enteredAt)
}

// ActiveManagers returns the managers that should run for the actor.
func (m *Machine) ActiveManagers(id ActorID) []Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Manager(nil), Configs[m.get(id).state].Managers...)
}

// IsManagerActive reports whether mgr should run for the actor.
func (m *Machine) IsManagerActive(id ActorID, mgr Manager) bool {
	for _, a := range m.ActiveManagers(id) {
		if a == mgr {
			return true
		}
	}
	return false
}

// IsMovementAllowed reports whether locomotion may run for the actor.
// Actors 4 and 5 keep locomotion while panicking.
func (m *Machine) IsMovementAllowed(id ActorID) bool {
	s := m.State(id)
	if s == Panicking && panicExempt[id] {
		return true
	}
	for _, mgr := range movementManagers {
		if m.IsManagerActive(id, mgr) {
			return true
		}
	}
	return false
}

// ShouldSelectTargets reports whether the actor should pick new wander or
// goal targets. Actors 4 and 5 keep selecting while panicking.
func (m *Machine) ShouldSelectTargets(id ActorID) bool {
	s := m.State(id)
	if s == Panicking && panicExempt[id] {
		return true
	}
	return Configs[s].SelectsTargets
}

// Actors returns every tracked actor, sorted.
func (m *Machine) Actors() []ActorID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ActorID, 0, len(m.actors))
	for id := range m.actors {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// #endregion queries
