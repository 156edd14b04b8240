package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/conductor/internal/entity"
)

func TestMapPriority(t *testing.T) {
	m := NewMapper(DefaultMapperConfig())

	tests := []struct {
		name  string
		issue Issue
		want  entity.Priority
	}{
		{"explicit high", Issue{Priority: "High"}, entity.PriorityHigh},
		{"jira highest", Issue{Priority: "Highest"}, entity.PriorityHigh},
		{"jira lowest", Issue{Priority: "Lowest"}, entity.PriorityLow},
		{"priority label", Issue{Labels: []string{"bug", "priority:high"}}, entity.PriorityHigh},
		{"slash label", Issue{Labels: []string{"priority/low"}}, entity.PriorityLow},
		{"explicit wins over label", Issue{Priority: "Low", Labels: []string{"priority:high"}}, entity.PriorityLow},
		{"unrecognized falls back", Issue{Priority: "Blocker++"}, entity.PriorityMedium},
		{"no signal", Issue{}, entity.PriorityMedium},
		{"plain label is not a priority", Issue{Labels: []string{"high"}}, entity.PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.MapPriority(tt.issue))
		})
	}
}

func TestNewTaskMetadata(t *testing.T) {
	m := NewMapper(DefaultMapperConfig())
	nt := m.NewTask("p1", Issue{
		Key:    "PROJ-7",
		Title:  "fix the widget",
		State:  "open",
		Labels: []string{"bug", "widget"},
		URL:    "https://acme.atlassian.net/browse/PROJ-7",
	})

	assert.Equal(t, "p1", nt.ProjectID)
	assert.Equal(t, "fix the widget", nt.Title)
	assert.Equal(t, "PROJ-7", nt.Metadata[MetaKey])
	assert.Equal(t, "https://acme.atlassian.net/browse/PROJ-7", nt.Metadata[MetaURL])
	assert.Equal(t, "bug,widget", nt.Metadata[MetaLabels])
	assert.Equal(t, "open", nt.Metadata[MetaState])
}

func TestUpdateTouchesOnlyTrackerFields(t *testing.T) {
	m := NewMapper(DefaultMapperConfig())
	up := m.Update(Issue{Key: "o/r#1", Title: "t", State: "open"})

	require.NotNil(t, up.Title)
	require.NotNil(t, up.Description)
	require.NotNil(t, up.Priority)
	require.NotNil(t, up.Metadata)
	assert.Nil(t, up.Status, "open issues do not move task status")
	assert.Nil(t, up.SkillIDs)
	assert.Nil(t, up.TeamMemberIDs)
}

func TestUpdateClosedIssueSetsCompleted(t *testing.T) {
	m := NewMapper(DefaultMapperConfig())
	up := m.Update(Issue{Key: "o/r#1", Title: "t", State: "closed"})
	require.NotNil(t, up.Status)
	assert.Equal(t, entity.TaskCompleted, *up.Status)

	cfg := DefaultMapperConfig()
	cfg.CloseCompletes = false
	up = NewMapper(cfg).Update(Issue{Key: "o/r#1", Title: "t", State: "closed"})
	assert.Nil(t, up.Status)
}
