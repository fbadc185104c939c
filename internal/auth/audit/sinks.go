// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/rewards/internal/platform/database/schema"
)

// # LogSink

// LogSink writes records to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink builds a log sink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Record implements [Sink].
func (sink *LogSink) Record(ctx context.Context, record Record) error {
	level := slog.LevelInfo
	if record.Result != ResultSuccess {
		level = slog.LevelWarn
	}

	sink.logger.LogAttrs(ctx, level, "authz_decision",
		slog.String("audit_id", record.ID),
		slog.Int64("principal_id", record.PrincipalID),
		slog.String("action", record.Action),
		slog.String("resource_type", record.ResourceType),
		slog.String("resource_id", record.ResourceID),
		slog.String("result", string(record.Result)),
		slog.String("reason", record.Reason),
		slog.String("ip", record.IPAddress),
		slog.String("user_agent", record.UserAgent),
		slog.Time("at", record.Timestamp),
	)
	return nil
}

// # PostgresSink

// Execer is the subset of pgxpool.Pool used by [PostgresSink].
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresSink appends records to auth.auditlog.
type PostgresSink struct {
	db    Execer
	query string
}

// NewPostgresSink builds a sink over a pgx pool (or anything with Exec).
func NewPostgresSink(db Execer) *PostgresSink {
	table := schema.AuthAuditLog
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		table.Table,
		table.ID, table.PrincipalID, table.Action, table.ResourceType, table.ResourceID,
		table.Result, table.Reason, table.IPAddress, table.UserAgent, table.CreatedAt,
	)
	return &PostgresSink{db: db, query: query}
}

// Record implements [Sink].
func (sink *PostgresSink) Record(ctx context.Context, record Record) error {
	_, err := sink.db.Exec(ctx, sink.query,
		record.ID, record.PrincipalID, record.Action, record.ResourceType, record.ResourceID,
		string(record.Result), record.Reason, record.IPAddress, record.UserAgent, record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("audit_postgres_insert_failed: %w", err)
	}
	return nil
}

// # MultiSink

// MultiSink forwards each record to every sink and joins their errors.
type MultiSink []Sink

// Record implements [Sink].
func (sinks MultiSink) Record(ctx context.Context, record Record) error {
	var errs []error
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// # AsyncSink

// DefaultQueueSize is the AsyncSink buffer when none is given.
const DefaultQueueSize = 1024

// ErrQueueFull is returned when AsyncSink drops a record.
var ErrQueueFull = errors.New("audit: queue full, record dropped")

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("audit: sink closed")

/*
AsyncSink hands records to a background worker through a bounded queue.

Record never blocks: when the queue is full the record is dropped, counted and
ErrQueueFull is returned. The worker writes with a detached context so a
finished request does not cancel its own audit write.
*/
type AsyncSink struct {
	next   Sink
	logger *slog.Logger
	queue  chan Record

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	dropped atomic.Int64

	// OnDrop, when set, is called for every dropped record.
	OnDrop func(Record)
}

// NewAsyncSink starts the worker. Call Close to drain and stop it.
func NewAsyncSink(next Sink, size int, logger *slog.Logger) *AsyncSink {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	sink := &AsyncSink{
		next:   next,
		logger: logger,
		queue:  make(chan Record, size),
		done:   make(chan struct{}),
	}
	go sink.run()
	return sink
}

// Record implements [Sink].
func (sink *AsyncSink) Record(_ context.Context, record Record) error {
	sink.mu.RLock()
	defer sink.mu.RUnlock()

	if sink.closed {
		return ErrClosed
	}

	select {
	case sink.queue <- record:
		return nil
	default:
		sink.dropped.Add(1)
		if sink.OnDrop != nil {
			sink.OnDrop(record)
		}
		sink.logger.Warn("audit_record_dropped",
			slog.String("audit_id", record.ID),
			slog.String("action", record.Action),
		)
		return ErrQueueFull
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (sink *AsyncSink) Dropped() int64 {
	return sink.dropped.Load()
}

// Close stops accepting records and waits until the queue drains or ctx ends.
func (sink *AsyncSink) Close(ctx context.Context) error {
	sink.mu.Lock()
	if !sink.closed {
		sink.closed = true
		close(sink.queue)
	}
	sink.mu.Unlock()

	select {
	case <-sink.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sink *AsyncSink) run() {
	defer close(sink.done)

	for record := range sink.queue {
		sink.forward(record)
	}
}

// forward writes one record, recovering from a panicking sink.
func (sink *AsyncSink) forward(record Record) {
	defer func() {
		if recovered := recover(); recovered != nil {
			sink.logger.Error("audit_sink_panic", slog.Any("panic", recovered))
		}
	}()

	if err := sink.next.Record(context.Background(), record); err != nil {
		sink.logger.Warn("audit_record_failed",
			slog.String("audit_id", record.ID),
			slog.Any("error", err),
		)
	}
}
