package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/conductor/internal/entity"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		perms   entity.CommandPermissions
		command string
		allowed bool
	}{
		{
			name:    "empty policy allows everything",
			command: "rm -rf /",
			allowed: true,
		},
		{
			name:    "allow list makes policy opt-in",
			perms:   entity.CommandPermissions{Allow: []string{"git *"}},
			command: "npm install",
			allowed: false,
		},
		{
			name:    "allow glob matches",
			perms:   entity.CommandPermissions{Allow: []string{"git *"}},
			command: "git status",
			allowed: true,
		},
		{
			name:    "deny wins over allow",
			perms:   entity.CommandPermissions{Allow: []string{"git *"}, Deny: []string{"git push*"}},
			command: "git push origin main",
			allowed: false,
		},
		{
			name:    "deny without allow list",
			perms:   entity.CommandPermissions{Deny: []string{"sudo *"}},
			command: "sudo apt install",
			allowed: false,
		},
		{
			name:    "deny misses, default allow",
			perms:   entity.CommandPermissions{Deny: []string{"sudo *"}},
			command: "ls -la",
			allowed: true,
		},
		{
			name:    "bare pattern matches command name",
			perms:   entity.CommandPermissions{Allow: []string{"git"}},
			command: "git status",
			allowed: true,
		},
		{
			name:    "bare pattern does not match prefix of a longer name",
			perms:   entity.CommandPermissions{Allow: []string{"git"}},
			command: "gitk",
			allowed: false,
		},
		{
			name:    "brace alternation",
			perms:   entity.CommandPermissions{Allow: []string{"{go,gofmt} *"}},
			command: "go test ./...",
			allowed: true,
		},
		{
			name:    "whitespace trimmed before matching",
			perms:   entity.CommandPermissions{Deny: []string{"rm *"}},
			command: "  rm -rf build  ",
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.perms).Evaluate(tt.command)
			assert.Equal(t, tt.allowed, got.Allowed)
		})
	}
}

func TestEvaluateReportsDecidingRule(t *testing.T) {
	e := New(entity.CommandPermissions{Allow: []string{"git *"}, Deny: []string{"git push*"}})

	d := e.Evaluate("git push")
	assert.False(t, d.Allowed)
	assert.Equal(t, "git push*", d.Rule)

	d = e.Evaluate("git log")
	assert.True(t, d.Allowed)
	assert.Equal(t, "git *", d.Rule)

	d = e.Evaluate("cargo build")
	assert.False(t, d.Allowed)
	assert.Empty(t, d.Rule, "default decision carries no rule")
}

func TestMalformedPatternNeverMatches(t *testing.T) {
	e := New(entity.CommandPermissions{Deny: []string{"[unclosed"}})
	assert.True(t, e.Evaluate("[unclosed").Allowed)
}
