package events

import (
	"sync"
)

// GlobalProjectID is the special project ID for subscribing to all
// events. Subscribers to this ID receive events for ALL projects.
const GlobalProjectID = "*"

// Publisher defines the interface for event publishing. A Publisher is
// always constructed explicitly and passed to the components that need
// it; there is no package-level singleton.
type Publisher interface {
	// Publish sends an event to all subscribers of the event's project.
	Publish(event Event)
	// Subscribe returns a channel that receives events for the given
	// project. Use GlobalProjectID ("*") to receive all events.
	Subscribe(projectID string) <-chan Event
	// Unsubscribe removes a subscription channel.
	Unsubscribe(projectID string, ch <-chan Event)
	// Close shuts down the publisher and all subscriptions.
	Close()
}

// MemoryPublisher is an in-memory implementation of Publisher.
type MemoryPublisher struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
	bufferSize  int
	closed      bool
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the channel buffer size for subscribers.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) {
		p.bufferSize = size
	}
}

// NewMemoryPublisher creates a new in-memory publisher.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		subscribers: make(map[string][]chan Event),
		bufferSize:  256,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish sends an event to all subscribers of the event's project and
// to global subscribers. Non-blocking: a subscriber with a full buffer
// is skipped rather than stalling the publishing mutation.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	for _, ch := range p.subscribers[event.ProjectID] {
		select {
		case ch <- event:
		default:
		}
	}

	if event.ProjectID != GlobalProjectID {
		for _, ch := range p.subscribers[GlobalProjectID] {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribe returns a channel that receives events for the given project.
func (p *MemoryPublisher) Subscribe(projectID string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, p.bufferSize)
	p.subscribers[projectID] = append(p.subscribers[projectID], ch)
	return ch
}

// Unsubscribe removes a subscription channel and closes it.
func (p *MemoryPublisher) Unsubscribe(projectID string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.subscribers[projectID]
	for i, sub := range subs {
		if sub == ch {
			p.subscribers[projectID] = append(subs[:i], subs[i+1:]...)
			close(sub)
			break
		}
	}

	if len(p.subscribers[projectID]) == 0 {
		delete(p.subscribers, projectID)
	}
}

// Close shuts down the publisher and closes all subscription channels.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for projectID, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, projectID)
	}
}

// SubscriberCount returns the number of subscribers for a project.
func (p *MemoryPublisher) SubscriberCount(projectID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers[projectID])
}

// NopPublisher is a no-op publisher for testing or when events are
// disabled.
type NopPublisher struct{}

// NewNopPublisher creates a no-op publisher.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

// Publish does nothing.
func (p *NopPublisher) Publish(event Event) {}

// Subscribe returns a closed channel.
func (p *NopPublisher) Subscribe(projectID string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

// Unsubscribe does nothing.
func (p *NopPublisher) Unsubscribe(projectID string, ch <-chan Event) {}

// Close does nothing.
func (p *NopPublisher) Close() {}
