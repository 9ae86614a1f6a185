package engine

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// TurnRecord is the audit trail of one ask turn, successful or not.
type TurnRecord struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	Intent    string    `json:"intent,omitempty"`
	Verdict   string    `json:"verdict,omitempty"`
	SQL       string    `json:"sql,omitempty"`
	Fixes     []string  `json:"fixes,omitempty"`
	Cached    bool      `json:"cached"`
	RowCount  int       `json:"row_count"`
	Err       string    `json:"error,omitempty"`
}

// Sink receives turn records. Implementations must not block the turn.
type Sink interface {
	Record(record TurnRecord)
}

// JSONLSink appends one JSON object per record to the writer. Encoding
// failures are dropped; the audit trail never fails a turn.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

func (s *JSONLSink) Record(record TurnRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = json.NewEncoder(s.w).Encode(record)
}
