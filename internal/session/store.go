// Package session holds the per-session conversation context used to answer
// follow-up questions. Each session owns one State; turns within a session
// are serialized so a follow-up never observes a half-updated context.
package session

import "sync"

// EntityKind distinguishes what a resolved identifier refers to.
type EntityKind string

const (
	EntityPlayer     EntityKind = "player"
	EntityOpponent   EntityKind = "opponent"
	EntityTournament EntityKind = "tournament"
)

// State is the context carried between turns of one session. It is mutated
// only through Handle.Commit after a successful pipeline run.
type State struct {
	LastIntent string
	Entities   map[EntityKind]string
	Filters    map[string]string
	TurnCount  int
}

// Empty reports whether the session has no usable prior turn.
func (s State) Empty() bool {
	return s.LastIntent == ""
}

// Clone deep-copies the state so callers can merge filter deltas without
// touching the committed context.
func (s State) Clone() State {
	out := State{LastIntent: s.LastIntent, TurnCount: s.TurnCount}
	if s.Entities != nil {
		out.Entities = make(map[EntityKind]string, len(s.Entities))
		for k, v := range s.Entities {
			out.Entities[k] = v
		}
	}
	if s.Filters != nil {
		out.Filters = make(map[string]string, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

type entry struct {
	mu    sync.Mutex
	state State
}

// Store keys session state by session identifier. Distinct sessions never
// contend with each other.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

func (s *Store) entryFor(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	return e
}

// Lock serializes the caller against other turns of the same session and
// returns a handle to its state. The handle must be unlocked when the turn
// ends, committed or not.
func (s *Store) Lock(id string) *Handle {
	e := s.entryFor(id)
	e.mu.Lock()
	return &Handle{entry: e}
}

// Reset discards the session's context, as on explicit topic change or
// session end.
func (s *Store) Reset(id string) {
	e := s.entryFor(id)
	e.mu.Lock()
	e.state = State{}
	e.mu.Unlock()
}

// Handle is exclusive access to one session's state for the duration of a
// turn.
type Handle struct {
	entry *entry
	done  bool
}

// State returns a copy of the committed context.
func (h *Handle) State() State {
	return h.entry.state.Clone()
}

// Commit replaces the session context with the outcome of a successful turn
// and advances the turn counter. Turns that error simply never commit,
// leaving the prior context intact.
func (h *Handle) Commit(state State) {
	state.TurnCount = h.entry.state.TurnCount + 1
	h.entry.state = state
}

func (h *Handle) Unlock() {
	if h.done {
		return
	}
	h.done = true
	h.entry.mu.Unlock()
}
