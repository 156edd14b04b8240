// Package store owns the canonical entity state for conductor.
//
// Every mutation — entity CRUD, task↔session links, lifecycle
// transitions — goes through the Store under a single mutex, which
// gives the same atomicity guarantee as a single-threaded event loop:
// no two relationship mutations on the same task/session pair can
// interleave partially, so the bidirectional link invariant holds
// after every operation.
//
// State persists as one JSON file per entity kind under the state
// directory, written atomically. Persistence is best-effort by design:
// a failed write is logged and the in-memory canonical state stays
// authoritative.
package store

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	cerrors "github.com/randalmurphal/conductor/internal/errors"
	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/events"
)

// Store holds the canonical copies of all entities.
type Store struct {
	mu     sync.RWMutex
	dir    string // state directory; empty means memory-only
	pub    events.Publisher
	logger *slog.Logger
	clock  func() time.Time

	projects map[string]*entity.Project
	tasks    map[string]*entity.Task
	sessions map[string]*entity.Session
	members  map[string]*entity.TeamMember
	teams    map[string]*entity.Team
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// Open creates a Store backed by the given state directory, loading
// any existing entity files. The publisher receives one event per
// durable mutation; pass events.NewNopPublisher() to disable.
func Open(dir string, pub events.Publisher, logger *slog.Logger, opts ...Option) (*Store, error) {
	s := newStore(dir, pub, logger, opts...)
	if dir != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewInMemory creates a Store with no persistence, for tests and
// ephemeral servers.
func NewInMemory(pub events.Publisher, logger *slog.Logger, opts ...Option) *Store {
	return newStore("", pub, logger, opts...)
}

func newStore(dir string, pub events.Publisher, logger *slog.Logger, opts ...Option) *Store {
	if pub == nil {
		pub = events.NewNopPublisher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		dir:      dir,
		pub:      pub,
		logger:   logger,
		clock:    time.Now,
		projects: make(map[string]*entity.Project),
		tasks:    make(map[string]*entity.Task),
		sessions: make(map[string]*entity.Session),
		members:  make(map[string]*entity.TeamMember),
		teams:    make(map[string]*entity.Team),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// emit publishes an event. Called with the store lock held so the
// emission order matches the mutation order; the publisher never
// blocks, so holding the lock is safe.
func (s *Store) emit(eventType events.Type, projectID string, data any) {
	s.pub.Publish(events.New(eventType, projectID, data))
}

// now returns the current time from the store's clock.
func (s *Store) now() time.Time {
	return s.clock()
}

// Now exposes the store's clock so collaborators (spawn flow, API)
// stamp time consistently with the store, including under a test clock.
func (s *Store) Now() time.Time {
	return s.clock()
}

// resolveTask returns the canonical task or a NotFound error.
// Caller must hold the lock.
func (s *Store) resolveTask(id string) (*entity.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, cerrors.ErrTaskNotFound(id)
	}
	return t, nil
}

// resolveSession returns the canonical session or a NotFound error.
// Caller must hold the lock.
func (s *Store) resolveSession(id string) (*entity.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, cerrors.ErrSessionNotFound(id)
	}
	return sess, nil
}

// resolveProject returns the canonical project or a NotFound error.
// Caller must hold the lock.
func (s *Store) resolveProject(id string) (*entity.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, cerrors.ErrProjectNotFound(id)
	}
	return p, nil
}

// resolveMember returns the canonical team member or a NotFound error.
// Caller must hold the lock.
func (s *Store) resolveMember(id string) (*entity.TeamMember, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, cerrors.ErrMemberNotFound(id)
	}
	return m, nil
}

// resolveTeam returns the canonical team or a NotFound error.
// Caller must hold the lock.
func (s *Store) resolveTeam(id string) (*entity.Team, error) {
	t, ok := s.teams[id]
	if !ok {
		return nil, cerrors.ErrTeamNotFound(id)
	}
	return t, nil
}

// sortByCreatedAt orders list results oldest-first so they are stable
// across calls (map iteration order is not).
func sortByCreatedAt[T any](items []T, key func(T) int64) {
	sort.Slice(items, func(i, j int) bool { return key(items[i]) < key(items[j]) })
}
