package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/logging"
)

// EventType names an orchestrator lifecycle event.
type EventType string

const (
	EventQueryStart    EventType = "query_start"
	EventQueryComplete EventType = "query_complete"
	EventFallback      EventType = "fallback_triggered"
	EventEngineReady   EventType = "engine_ready"
)

// Event is delivered to observers.
type Event struct {
	Type      EventType
	Time      time.Time
	SessionID string
	Query     string
	// Engine is the engine concerned; for EventFallback the one that failed.
	Engine string
	// Next is the engine tried after a fallback.
	Next    string
	Outcome *Outcome
	Err     error
}

// Observer receives events. Errors and panics are logged and never reach
// other observers or the query.
type Observer func(Event) error

type observerList struct {
	mu     sync.RWMutex
	nextID int
	list   map[int]Observer
	order  []int
	log    logging.Logger
}

func newObserverList(log logging.Logger) *observerList {
	return &observerList{list: make(map[int]Observer), log: log}
}

// add registers fn and returns a function that removes it.
func (o *observerList) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.list[id] = fn
	o.order = append(o.order, id)

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.list, id)
		for i, v := range o.order {
			if v == id {
				o.order = append(o.order[:i:i], o.order[i+1:]...)
				break
			}
		}
	}
}

func (o *observerList) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	o.mu.RLock()
	fns := make([]Observer, 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.list[id])
	}
	o.mu.RUnlock()

	for _, fn := range fns {
		if err := o.call(fn, e); err != nil {
			o.log.Warn("observer failed", "event", e.Type, "error", err)
		}
	}
}

func (o *observerList) call(fn Observer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return fn(e)
}
