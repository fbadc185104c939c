// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package audit records authorization decisions.

Recording is best effort: a [Sink] may fail, and callers log the failure and
carry on. Authorization correctness never depends on audit durability.

Sinks:

  - [LogSink] writes one structured log line per record.
  - [PostgresSink] appends to auth.auditlog.
  - [MultiSink] fans out to several sinks.
  - [AsyncSink] decouples callers from a slow sink with a bounded queue.
*/
package audit

import (
	"context"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Result is the outcome stored with a record.
type Result string

const (
	ResultSuccess Result = "success"
	ResultDenied  Result = "denied"
	ResultError   Result = "error"
)

// Record is one authorization decision.
type Record struct {
	ID           string    `json:"id"`
	PrincipalID  int64     `json:"principal_id"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Result       Result    `json:"result"`
	Timestamp    time.Time `json:"timestamp"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// Sink accepts audit records.
type Sink interface {
	Record(ctx context.Context, record Record) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, record Record) error

// Record implements [Sink].
func (f SinkFunc) Record(ctx context.Context, record Record) error { return f(ctx, record) }

// # Identifiers

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

/*
NewID returns a lexicographically sortable record identifier.

Ids minted for the same millisecond are strictly increasing. When at is out of
the ULID time range or the monotonic entropy overflows, the id falls back to
the current time with fresh entropy and only uniqueness holds.
*/
func NewID(at time.Time) string {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(at), entropy)
	entropyMu.Unlock()
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}
