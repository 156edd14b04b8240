package tracker

import (
	"strings"

	"github.com/randalmurphal/conductor/internal/entity"
	"github.com/randalmurphal/conductor/internal/store"
)

// Metadata keys stamped on imported tasks.
const (
	// MetaKey is the idempotency anchor: the provider-unique issue key.
	MetaKey      = "tracker_key"
	MetaProvider = "tracker_provider"
	MetaURL      = "tracker_url"
	MetaState    = "tracker_state"
	MetaLabels   = "tracker_labels"
)

// MapperConfig controls how issue fields map to task fields.
type MapperConfig struct {
	// DefaultPriority is used when the issue carries no priority
	// signal (default: medium).
	DefaultPriority entity.Priority
	// CloseCompletes marks tasks for closed issues completed on first
	// import (default: true).
	CloseCompletes bool
}

// DefaultMapperConfig returns the default mapper configuration.
func DefaultMapperConfig() MapperConfig {
	return MapperConfig{
		DefaultPriority: entity.PriorityMedium,
		CloseCompletes:  true,
	}
}

// Mapper converts provider-neutral issues to store inputs.
type Mapper struct {
	cfg MapperConfig
}

// NewMapper creates a Mapper with the given configuration.
func NewMapper(cfg MapperConfig) *Mapper {
	if cfg.DefaultPriority == "" {
		cfg.DefaultPriority = entity.PriorityMedium
	}
	return &Mapper{cfg: cfg}
}

// NewTask maps an issue to the create input for a fresh task.
func (m *Mapper) NewTask(projectID string, issue Issue) store.NewTask {
	return store.NewTask{
		ProjectID:   projectID,
		Title:       issue.Title,
		Description: issue.Description,
		Priority:    m.MapPriority(issue),
		Metadata:    m.metadata(issue),
	}
}

// Update maps an issue to a partial update for an existing imported
// task. Only tracker-owned fields are touched; link state and local
// annotations survive.
func (m *Mapper) Update(issue Issue) store.TaskUpdate {
	title := issue.Title
	desc := issue.Description
	prio := m.MapPriority(issue)
	meta := m.metadata(issue)
	up := store.TaskUpdate{
		Title:       &title,
		Description: &desc,
		Priority:    &prio,
		Metadata:    &meta,
	}
	if status, ok := m.mapStatus(issue); ok {
		up.Status = &status
	}
	return up
}

func (m *Mapper) metadata(issue Issue) map[string]string {
	meta := map[string]string{
		MetaKey: issue.Key,
	}
	if issue.URL != "" {
		meta[MetaURL] = issue.URL
	}
	if issue.State != "" {
		meta[MetaState] = issue.State
	}
	if len(issue.Labels) > 0 {
		meta[MetaLabels] = strings.Join(issue.Labels, ",")
	}
	return meta
}

// mapStatus derives a task status change from the issue state. Only
// closed issues move the status; open issues leave it to the user.
func (m *Mapper) mapStatus(issue Issue) (entity.TaskStatus, bool) {
	if m.cfg.CloseCompletes && issue.State == "closed" {
		return entity.TaskCompleted, true
	}
	return "", false
}

// MapPriority derives a task priority from the issue. An explicit
// priority name wins; otherwise "priority:<level>" labels are
// honored; otherwise the default applies.
func (m *Mapper) MapPriority(issue Issue) entity.Priority {
	if p, ok := priorityFromName(issue.Priority); ok {
		return p
	}
	for _, label := range issue.Labels {
		name := strings.ToLower(strings.TrimSpace(label))
		name = strings.TrimPrefix(name, "priority:")
		name = strings.TrimPrefix(name, "priority/")
		if name == label {
			continue
		}
		if p, ok := priorityFromName(name); ok {
			return p
		}
	}
	return m.cfg.DefaultPriority
}

// priorityFromName normalizes provider priority names (Jira's 5-level
// scale included) onto the 3-level task priority.
func priorityFromName(name string) (entity.Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "highest", "high", "critical", "urgent":
		return entity.PriorityHigh, true
	case "medium", "normal":
		return entity.PriorityMedium, true
	case "low", "lowest", "minor", "trivial":
		return entity.PriorityLow, true
	default:
		return "", false
	}
}
