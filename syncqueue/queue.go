// Package syncqueue is a durable, ordered retry queue for persistence
// operations that could not reach the backend. Entries live in a local
// sqlite file so they survive process restarts; a flusher replays them in
// enqueue order once connectivity returns.
package syncqueue

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind tags what a queued payload contains.
type Kind string

const (
	KindBudget         Kind = "budget"
	KindWorkBudget     Kind = "work_budget"
	KindWorkBudgetFlag Kind = "work_budget_flag"
)

// Operation is one queued save, replayed against the backend as-is.
type Operation struct {
	ID         int64
	QuoteID    string
	Kind       Kind
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// EventType values published to subscribers.
type EventType string

const (
	EventQueued      EventType = "queued"
	EventFlushed     EventType = "flushed"
	EventFlushFailed EventType = "flush_failed"
)

// Event notifies subscribers of queue state changes; Pending is the queue
// depth after the event.
type Event struct {
	Type    EventType
	QuoteID string
	Pending int
}

// Queue is safe for concurrent use.
type Queue struct {
	db *sql.DB

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// Open opens (or creates) the queue database at path and applies its schema
// migrations.
func Open(path string) (*Queue, error) {
	if err := runMigrations(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sync queue database: %w", err)
	}
	// sqlite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sync queue database: %w", err)
	}

	return &Queue{db: db, subs: map[int]func(Event){}}, nil
}

func runMigrations(path string) error {
	migrateDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := migratesqlite.WithInstance(migrateDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run sync queue migrations: %w", err)
	}
	return nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Subscribe registers fn for queue events and returns an unsubscribe
// function. Callbacks run synchronously on the goroutine that caused the
// event and must not block.
func (q *Queue) Subscribe(fn func(Event)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.subs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

func (q *Queue) publish(ev Event) {
	q.mu.Lock()
	subs := make([]func(Event), 0, len(q.subs))
	for _, fn := range q.subs {
		subs = append(subs, fn)
	}
	q.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Enqueue appends an operation to the queue.
func (q *Queue) Enqueue(ctx context.Context, quoteID string, kind Kind, payload []byte) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pending_saves (quote_id, kind, payload, enqueued_at)
		VALUES (?, ?, ?, ?)
	`, quoteID, string(kind), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueue pending save: %w", err)
	}
	pending, _ := q.Pending(ctx)
	q.publish(Event{Type: EventQueued, QuoteID: quoteID, Pending: pending})
	return nil
}

// Pending returns the current queue depth.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_saves`).Scan(&n)
	return n, err
}

// Flush replays queued operations in enqueue order. It stops at the first
// failure so operations for a quote are never applied out of order; the
// failed entry stays queued with its attempt count and error recorded.
func (q *Queue) Flush(ctx context.Context, apply func(context.Context, Operation) error) error {
	for {
		op, ok, err := q.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := apply(ctx, op); err != nil {
			if _, markErr := q.db.ExecContext(ctx, `
				UPDATE pending_saves SET attempts = attempts + 1, last_error = ? WHERE id = ?
			`, err.Error(), op.ID); markErr != nil {
				log.Printf("❌ Failed to record flush error: %v", markErr)
			}
			pending, _ := q.Pending(ctx)
			q.publish(Event{Type: EventFlushFailed, QuoteID: op.QuoteID, Pending: pending})
			return fmt.Errorf("flush operation %d (%s): %w", op.ID, op.Kind, err)
		}

		if _, err := q.db.ExecContext(ctx, `DELETE FROM pending_saves WHERE id = ?`, op.ID); err != nil {
			return fmt.Errorf("dequeue operation %d: %w", op.ID, err)
		}
		pending, _ := q.Pending(ctx)
		q.publish(Event{Type: EventFlushed, QuoteID: op.QuoteID, Pending: pending})
	}
}

func (q *Queue) next(ctx context.Context) (Operation, bool, error) {
	var op Operation
	var kind string
	err := q.db.QueryRowContext(ctx, `
		SELECT id, quote_id, kind, payload, attempts, enqueued_at
		FROM pending_saves ORDER BY id LIMIT 1
	`).Scan(&op.ID, &op.QuoteID, &kind, &op.Payload, &op.Attempts, &op.EnqueuedAt)
	if err == sql.ErrNoRows {
		return Operation{}, false, nil
	}
	if err != nil {
		return Operation{}, false, err
	}
	op.Kind = Kind(kind)
	return op, true, nil
}

// Run flushes on a ticker until ctx is cancelled. Flush errors are logged
// and retried on the next tick.
func (q *Queue) Run(ctx context.Context, interval time.Duration, apply func(context.Context, Operation) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.Flush(ctx, apply); err != nil {
				log.Printf("⚠️ Sync queue flush: %v", err)
			}
		}
	}
}
