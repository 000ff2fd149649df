// Package engine drives the reminder escalation state machine: the periodic
// scheduler tick, reply interpretation, recurrence generation, and escape
// notifications.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lazypower/nudge/internal/llm"
	"github.com/lazypower/nudge/internal/notify"
	"github.com/lazypower/nudge/internal/store"
)

// ErrNotFound is returned when a reminder or item does not exist.
var ErrNotFound = errors.New("not found")

// Event describes a state change worth broadcasting to connected clients.
// The transport is up to the subscriber.
type Event struct {
	Action        string
	ItemID        int64
	ReminderID    int64
	NewReminderAt *time.Time
}

// Engine orchestrates escalation ticks and reply handling.
type Engine struct {
	DB     *store.DB
	LLM    llm.Client
	Notify notify.Notifier

	// LLMTimeout bounds one classifier call. The deterministic pushback
	// fallback kicks in when it expires.
	LLMTimeout time.Duration

	// Events, when set, receives complete/reschedule/escape outcomes.
	Events func(Event)

	stopCh chan struct{}

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates an Engine. client may be nil; interpretation then always takes
// the deterministic pushback path.
func New(db *store.DB, client llm.Client, notifier notify.Notifier) *Engine {
	return &Engine{
		DB:         db,
		LLM:        client,
		Notify:     notifier,
		LLMTimeout: 120 * time.Second,
		stopCh:     make(chan struct{}),
		locks:      make(map[int64]*sync.Mutex),
	}
}

// reminderLock returns the per-reminder mutex serializing interpreter runs.
// At most one in-flight mutation per reminder id within this process.
func (e *Engine) reminderLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Engine) emit(ev Event) {
	if e.Events != nil {
		e.Events(ev)
	}
}

// StartScheduler runs a Tick immediately and then on every interval until
// Stop is called.
func (e *Engine) StartScheduler(interval time.Duration) {
	runTick := func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()
		stats, err := e.Tick(ctx, time.Now().UTC())
		if err != nil {
			log.Printf("scheduler: tick error: %v", err)
			return
		}
		if stats.Processed > 0 {
			log.Printf("scheduler: %s", stats)
		}
	}

	runTick()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runTick()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
