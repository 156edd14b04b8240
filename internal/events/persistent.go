package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/conductor/internal/db"
)

const (
	// Buffer flushes when it reaches this size.
	bufferSizeThreshold = 16
	// Buffer flushes automatically on this interval.
	flushInterval = 5 * time.Second
)

// PersistentPublisher wraps MemoryPublisher and adds event-log
// persistence. Realtime delivery always happens first; persistence is
// batched and best-effort — a write failure is logged, never surfaced
// to the publishing mutation.
type PersistentPublisher struct {
	inner       *MemoryPublisher
	log         *db.DB
	source      string
	buffer      []*db.Record
	bufferMu    sync.Mutex
	flushTicker *time.Ticker
	logger      *slog.Logger
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// NewPersistentPublisher creates a publisher that persists events to
// the given event log. The source parameter identifies where events
// originate (e.g. "server", "cli").
func NewPersistentPublisher(log *db.DB, source string, logger *slog.Logger, opts ...PublisherOption) *PersistentPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &PersistentPublisher{
		inner:  NewMemoryPublisher(opts...),
		log:    log,
		source: source,
		buffer: make([]*db.Record, 0, bufferSizeThreshold),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	p.flushTicker = time.NewTicker(flushInterval)
	p.wg.Add(1)
	go p.flushLoop()

	return p
}

// Publish broadcasts the event and queues it for persistence.
func (p *PersistentPublisher) Publish(event Event) {
	p.inner.Publish(event)

	if p.log == nil {
		return
	}

	rec := p.eventToRecord(event)

	p.bufferMu.Lock()
	p.buffer = append(p.buffer, rec)
	shouldFlush := len(p.buffer) >= bufferSizeThreshold
	p.bufferMu.Unlock()

	if shouldFlush {
		p.flush()
	}
}

// Subscribe returns a channel that receives events for the given project.
func (p *PersistentPublisher) Subscribe(projectID string) <-chan Event {
	return p.inner.Subscribe(projectID)
}

// Unsubscribe removes a subscription channel.
func (p *PersistentPublisher) Unsubscribe(projectID string, ch <-chan Event) {
	p.inner.Unsubscribe(projectID, ch)
}

// Close flushes remaining events and releases resources. Idempotent.
func (p *PersistentPublisher) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.flushTicker.Stop()
		p.wg.Wait()
		p.flush()
		p.inner.Close()
	})
}

func (p *PersistentPublisher) flushLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.flushTicker.C:
			p.flush()
		case <-p.stopCh:
			return
		}
	}
}

// flush writes buffered events to the event log in a single batch.
func (p *PersistentPublisher) flush() {
	p.bufferMu.Lock()
	if len(p.buffer) == 0 {
		p.bufferMu.Unlock()
		return
	}
	toFlush := p.buffer
	p.buffer = make([]*db.Record, 0, bufferSizeThreshold)
	p.bufferMu.Unlock()

	if err := p.log.SaveEvents(toFlush); err != nil {
		// No retry: log and move on to prevent memory buildup.
		p.logger.Error("failed to persist events", "error", err, "count", len(toFlush))
	}
}

func (p *PersistentPublisher) eventToRecord(e Event) *db.Record {
	data, err := json.Marshal(e.Data)
	if err != nil {
		p.logger.Warn("event payload not serializable", "type", e.Type, "error", err)
		data = json.RawMessage("null")
	}
	return &db.Record{
		ProjectID: e.ProjectID,
		EventType: string(e.Type),
		Data:      data,
		Source:    p.source,
		CreatedAt: e.Time,
	}
}
