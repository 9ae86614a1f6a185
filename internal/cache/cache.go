// Package cache keys validated pipeline outcomes by normalized question and
// context fingerprint, so identical (question, context) pairs skip the
// pipeline entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/baselinehq/baseline/internal/session"
)

// Entry is a validated outcome worth replaying: the guarded SQL, the
// result-column labels presentation needs, and the session state the turn
// would commit. Storing the state lets a hit advance the conversation the
// same way the original turn did.
type Entry struct {
	SQL     string
	Labels  map[string]string
	Verdict string
	Intent  string
	State   session.State
}

type Cache interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)
}

// Key derives the cache key from the normalized question text and the
// session context fingerprint. The same pair always hashes to the same key.
func Key(question, fingerprint string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimRight(strings.TrimSpace(question), "?¿!."))), " ")
	sum := sha256.Sum256([]byte(normalized + "\x00" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Get(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	return entry, ok
}

func (m *Memory) Put(key string, entry Entry) {
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
}
