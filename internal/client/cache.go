// Package client is the conductor client library: a REST client, a
// realtime WebSocket subscriber, and a reconciling cache that merges
// both input streams into one consistent local view.
package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/events"
)

// Cache is the client-side entity cache. REST responses and realtime
// events both land here through the same idempotent merge: every entity
// carries a server-side UpdatedAt stamp, and a merge only applies when
// the incoming stamp is not older than the cached one. Replaying an
// event, or racing a fetch against the event for the same change, is
// therefore harmless.
type Cache struct {
	mu sync.RWMutex

	projects map[string]*entity.Project
	tasks    map[string]*entity.Task
	sessions map[string]*entity.Session
	members  map[string]*entity.TeamMember
	teams    map[string]*entity.Team

	// generation increments on every visible change, so pollers (the
	// watch TUI) can skip redraws when nothing moved.
	generation uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		projects: make(map[string]*entity.Project),
		tasks:    make(map[string]*entity.Task),
		sessions: make(map[string]*entity.Session),
		members:  make(map[string]*entity.TeamMember),
		teams:    make(map[string]*entity.Team),
	}
}

// Generation returns the current change counter.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// MergeProject merges one project through the version check.
func (c *Cache) MergeProject(p *entity.Project) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.projects[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return
	}
	c.projects[p.ID] = p.Clone()
	c.generation++
}

// MergeTask merges one task through the version check.
func (c *Cache) MergeTask(t *entity.Task) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.tasks[t.ID]; ok && cur.UpdatedAt.After(t.UpdatedAt) {
		return
	}
	c.tasks[t.ID] = t.Clone()
	c.generation++
}

// MergeSession merges one session through the version check.
func (c *Cache) MergeSession(s *entity.Session) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.sessions[s.ID]; ok && cur.UpdatedAt.After(s.UpdatedAt) {
		return
	}
	c.sessions[s.ID] = s.Clone()
	c.generation++
}

// MergeMember merges one team member through the version check.
func (c *Cache) MergeMember(m *entity.TeamMember) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.members[m.ID]; ok && cur.UpdatedAt.After(m.UpdatedAt) {
		return
	}
	c.members[m.ID] = m.Clone()
	c.generation++
}

// MergeTeam merges one team through the version check.
func (c *Cache) MergeTeam(t *entity.Team) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.teams[t.ID]; ok && cur.UpdatedAt.After(t.UpdatedAt) {
		return
	}
	c.teams[t.ID] = t.Clone()
	c.generation++
}

// ReplaceAll swaps in full server state, the resync path after a
// reconnect. Entities the server no longer has disappear.
func (c *Cache) ReplaceAll(projects []*entity.Project, tasks []*entity.Task, sessions []*entity.Session, members []*entity.TeamMember, teams []*entity.Team) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.projects = make(map[string]*entity.Project, len(projects))
	for _, p := range projects {
		c.projects[p.ID] = p.Clone()
	}
	c.tasks = make(map[string]*entity.Task, len(tasks))
	for _, t := range tasks {
		c.tasks[t.ID] = t.Clone()
	}
	c.sessions = make(map[string]*entity.Session, len(sessions))
	for _, s := range sessions {
		c.sessions[s.ID] = s.Clone()
	}
	c.members = make(map[string]*entity.TeamMember, len(members))
	for _, m := range members {
		c.members[m.ID] = m.Clone()
	}
	c.teams = make(map[string]*entity.Team, len(teams))
	for _, t := range teams {
		c.teams[t.ID] = t.Clone()
	}
	c.generation++
}

// WireEvent is one event as delivered over the WebSocket.
type WireEvent struct {
	Type      string          `json:"type"`
	Event     string          `json:"event"`
	ProjectID string          `json:"project_id"`
	Data      json.RawMessage `json:"data"`
	Time      time.Time       `json:"time"`
}

// ApplyEvent merges one realtime event into the cache. Unknown event
// types are ignored; malformed payloads are dropped silently because
// the next resync repairs any gap.
func (c *Cache) ApplyEvent(e WireEvent) {
	switch events.Type(e.Event) {
	case events.ProjectCreated, events.ProjectUpdated:
		var p entity.Project
		if json.Unmarshal(e.Data, &p) == nil {
			c.MergeProject(&p)
		}
	case events.ProjectDeleted:
		c.delete(e.Data, func(id string) { delete(c.projects, id) })

	case events.TaskCreated, events.TaskUpdated:
		var t entity.Task
		if json.Unmarshal(e.Data, &t) == nil {
			c.MergeTask(&t)
		}
	case events.TaskDeleted:
		c.delete(e.Data, func(id string) { delete(c.tasks, id) })

	case events.SessionCreated, events.SessionUpdated, events.SessionSpawn:
		var s entity.Session
		if json.Unmarshal(e.Data, &s) == nil {
			c.MergeSession(&s)
		}
	case events.SessionDeleted:
		c.delete(e.Data, func(id string) { delete(c.sessions, id) })

	case events.MemberCreated, events.MemberUpdated:
		var m entity.TeamMember
		if json.Unmarshal(e.Data, &m) == nil {
			c.MergeMember(&m)
		}
	case events.MemberDeleted:
		c.delete(e.Data, func(id string) { delete(c.members, id) })

	case events.TeamCreated, events.TeamUpdated:
		var t entity.Team
		if json.Unmarshal(e.Data, &t) == nil {
			c.MergeTeam(&t)
		}
	case events.TeamDeleted:
		c.delete(e.Data, func(id string) { delete(c.teams, id) })

	case events.TaskSessionAdded, events.SessionTaskAdded:
		c.applyLink(e.Data, true)
	case events.TaskSessionRemoved, events.SessionTaskRemoved:
		c.applyLink(e.Data, false)
	}
	// subtask:* events duplicate task:* content for tree views; the
	// task:* event already updated the cache. notify:* events carry no
	// entity state.
}

func (c *Cache) delete(data json.RawMessage, rm func(id string)) {
	var payload events.Deleted
	if json.Unmarshal(data, &payload) != nil || payload.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	rm(payload.ID)
	c.generation++
}

// applyLink patches both cached sides of a task↔session link change.
// Idempotent: adding an existing link or removing a missing one is a
// no-op. Either entity may be absent from the cache; the other side is
// still patched.
func (c *Cache) applyLink(data json.RawMessage, add bool) {
	var link events.LinkChange
	if json.Unmarshal(data, &link) != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tasks[link.TaskID]; ok {
		if add {
			if !t.HasSession(link.SessionID) {
				t.SessionIDs = append(t.SessionIDs, link.SessionID)
			}
		} else {
			t.SessionIDs = without(t.SessionIDs, link.SessionID)
			delete(t.TaskSessionStatuses, link.SessionID)
		}
	}
	if s, ok := c.sessions[link.SessionID]; ok {
		if add {
			if !s.HasTask(link.TaskID) {
				s.TaskIDs = append(s.TaskIDs, link.TaskID)
			}
		} else {
			s.TaskIDs = without(s.TaskIDs, link.TaskID)
		}
	}
	c.generation++
}

func without(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// Project returns the cached project, or nil.
func (c *Cache) Project(id string) *entity.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.projects[id]; ok {
		return p.Clone()
	}
	return nil
}

// Task returns the cached task, or nil.
func (c *Cache) Task(id string) *entity.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.tasks[id]; ok {
		return t.Clone()
	}
	return nil
}

// Session returns the cached session, or nil.
func (c *Cache) Session(id string) *entity.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.sessions[id]; ok {
		return s.Clone()
	}
	return nil
}

// Tasks returns all cached tasks, optionally filtered by project.
func (c *Cache) Tasks(projectID string) []*entity.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entity.Task, 0, len(c.tasks))
	for _, t := range c.tasks {
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		out = append(out, t.Clone())
	}
	return out
}

// Sessions returns all cached sessions, optionally filtered by project.
func (c *Cache) Sessions(projectID string) []*entity.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entity.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		if projectID != "" && s.ProjectID != projectID {
			continue
		}
		out = append(out, s.Clone())
	}
	return out
}

// Projects returns all cached projects.
func (c *Cache) Projects() []*entity.Project {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*entity.Project, 0, len(c.projects))
	for _, p := range c.projects {
		out = append(out, p.Clone())
	}
	return out
}
