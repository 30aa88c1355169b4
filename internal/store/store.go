// Package store persists per-message response state in a TTL'd key-value
// store keyed by message id. Two backends are provided: Redis for
// production and a GORM/SQLite store for development, staging, and tests.
//
// Records serialize as JSON. For backward compatibility a value that is not
// valid JSON is treated as a bare timestamp written by the pre-rewrite bot
// and interpreted as an implicit success record; such values are rewritten
// in the structured format on read.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hexiro/csinspect/internal/domain"
)

// Store is the narrow interface the filter and orchestrator depend on.
// TTL handling is a backend property fixed at construction.
type Store interface {
	// Get loads the response state for a message id. The bool reports
	// presence; an absent key means the message was never attempted.
	Get(ctx context.Context, id string) (domain.ResponseState, bool, error)

	// Put overwrites the response state for a message id with the
	// backend's retention TTL.
	Put(ctx context.Context, id string, st domain.ResponseState) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// record is the wire form of domain.ResponseState.
type record struct {
	Successful     bool   `json:"successful"`
	Time           string `json:"time"`
	FailedAttempts int    `json:"failed_attempts,omitempty"`
}

func encodeState(st domain.ResponseState) ([]byte, error) {
	ts := st.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return json.Marshal(record{
		Successful:     st.Successful,
		Time:           ts.UTC().Format(time.RFC3339),
		FailedAttempts: st.FailedAttempts,
	})
}

// decodeState parses a stored value. The second return reports whether the
// value was a legacy bare-timestamp record; callers should rewrite those in
// the structured format.
func decodeState(raw []byte) (domain.ResponseState, bool) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// Legacy value: a raw timestamp string stored by the original
		// one-shot bot, present only for messages it replied to.
		st := domain.ResponseState{Successful: true}
		if ts, perr := time.Parse(time.RFC3339, string(raw)); perr == nil {
			st.Time = ts
		}
		return st, true
	}

	st := domain.ResponseState{
		Successful:     rec.Successful,
		FailedAttempts: rec.FailedAttempts,
	}
	if ts, err := time.Parse(time.RFC3339, rec.Time); err == nil {
		st.Time = ts
	}
	return st, false
}
