package learning

import (
	"sync"
	"time"

	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/storage"
)

const (
	// eventQueueSize is the buffer size for the event queue.
	// If full, events are dropped (non-blocking).
	eventQueueSize = 1000

	// batchFlushSize is the number of events that triggers an immediate flush.
	batchFlushSize = 10

	// flushInterval is how often pending events are flushed.
	flushInterval = 50 * time.Millisecond
)

// Tracker records engine outcomes in the background with non-blocking writes.
type Tracker struct {
	storage    storage.Storage
	log        logging.Logger
	eventQueue chan OutcomeEvent
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	enabled    bool
	mu         sync.RWMutex
}

// NewTracker creates an outcome tracker with background processing.
// Storage that fails to initialize leaves the tracker disabled.
func NewTracker(s storage.Storage, logger logging.Logger) *Tracker {
	t := &Tracker{
		storage:    s,
		log:        logging.OrDefault(logger).With("component", "tracker"),
		eventQueue: make(chan OutcomeEvent, eventQueueSize),
		stopChan:   make(chan struct{}),
		enabled:    s != nil,
	}

	if s != nil {
		if err := s.Init(); err != nil {
			t.log.Warn("learning storage initialization failed", "error", err)
			t.enabled = false
		}
	}

	t.wg.Add(1)
	go t.processEvents()

	return t
}

// Track records an outcome (non-blocking).
// If the queue is full, the event is dropped and a warning is logged.
func (t *Tracker) Track(event OutcomeEvent) {
	if !t.IsEnabled() {
		return
	}

	select {
	case t.eventQueue <- event:
	default:
		t.log.Warn("learning queue full, dropping outcome", "engine", event.Engine)
	}
}

// Stop gracefully shuts down the tracker, flushing queued events.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
		t.wg.Wait()
	})
}

// Disable makes Track ignore events.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = false
}

// Enable resumes tracking when storage is present.
func (t *Tracker) Enable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = t.storage != nil
}

// IsEnabled returns whether tracking is enabled.
func (t *Tracker) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// QueueLen returns the number of events waiting to be flushed.
func (t *Tracker) QueueLen() int {
	return len(t.eventQueue)
}

// processEvents runs in the background, batching and flushing events.
func (t *Tracker) processEvents() {
	defer t.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]OutcomeEvent, 0, batchFlushSize)

	for {
		select {
		case event := <-t.eventQueue:
			batch = append(batch, event)
			if len(batch) >= batchFlushSize {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				t.flush(batch)
				batch = batch[:0]
			}

		case <-t.stopChan:
			// Drain what is already queued, then exit
			for {
				select {
				case event := <-t.eventQueue:
					batch = append(batch, event)
					if len(batch) >= batchFlushSize {
						t.flush(batch)
						batch = batch[:0]
					}
				default:
					t.flush(batch)
					return
				}
			}
		}
	}
}

// flush writes a batch of events to storage.
func (t *Tracker) flush(events []OutcomeEvent) {
	for _, event := range events {
		if err := t.storage.RecordOutcome(event.ToStorage()); err != nil {
			t.log.Warn("failed to record outcome", "engine", event.Engine, "error", err)
		}
	}
}
