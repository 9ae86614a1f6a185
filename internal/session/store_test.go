package session

import (
	"sync"
	"testing"
)

func TestCommitAdvancesTurnCount(t *testing.T) {
	store := NewStore()

	h := store.Lock("s1")
	state := h.State()
	if !state.Empty() {
		t.Fatal("fresh session must start empty")
	}
	state.LastIntent = "head_to_head"
	state.Entities = map[EntityKind]string{EntityPlayer: "101"}
	h.Commit(state)
	h.Unlock()

	h = store.Lock("s1")
	defer h.Unlock()
	got := h.State()
	if got.TurnCount != 1 || got.LastIntent != "head_to_head" {
		t.Fatalf("state = %+v", got)
	}
}

func TestUncommittedTurnLeavesStateUntouched(t *testing.T) {
	store := NewStore()

	h := store.Lock("s1")
	state := h.State()
	state.LastIntent = "grand_slam_wins"
	state.Filters = map[string]string{"surface": "Clay"}
	h.Commit(state)
	h.Unlock()

	// A turn that errors mutates its working copy but never commits.
	h = store.Lock("s1")
	working := h.State()
	working.LastIntent = "broken"
	working.Filters["surface"] = "Grass"
	h.Unlock()

	h = store.Lock("s1")
	defer h.Unlock()
	got := h.State()
	if got.LastIntent != "grand_slam_wins" || got.Filters["surface"] != "Clay" {
		t.Fatalf("errored turn leaked into context: %+v", got)
	}
}

func TestResetClearsContext(t *testing.T) {
	store := NewStore()

	h := store.Lock("s1")
	state := h.State()
	state.LastIntent = "head_to_head"
	h.Commit(state)
	h.Unlock()

	store.Reset("s1")

	h = store.Lock("s1")
	defer h.Unlock()
	if !h.State().Empty() {
		t.Fatal("reset must clear the session context")
	}
}

func TestSameSessionTurnsAreSerialized(t *testing.T) {
	store := NewStore()
	const turns = 50

	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := store.Lock("s1")
			defer h.Unlock()
			state := h.State()
			state.LastIntent = "head_to_head"
			h.Commit(state)
		}()
	}
	wg.Wait()

	h := store.Lock("s1")
	defer h.Unlock()
	if got := h.State().TurnCount; got != turns {
		t.Fatalf("TurnCount = %d, want %d", got, turns)
	}
}

func TestDistinctSessionsDoNotShareState(t *testing.T) {
	store := NewStore()

	h := store.Lock("a")
	state := h.State()
	state.LastIntent = "head_to_head"
	h.Commit(state)
	h.Unlock()

	h = store.Lock("b")
	defer h.Unlock()
	if !h.State().Empty() {
		t.Fatal("session b must not see session a's context")
	}
}
