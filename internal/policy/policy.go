// Package policy evaluates a team member's command permissions against
// the command lines an agent wants to run.
//
// Rules are glob patterns matched against the full command line. Deny
// rules always win over allow rules; with no matching rule the default
// is deny when an allow list exists and allow otherwise.
package policy

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/conductor/internal/entity"
)

// Decision is the outcome of evaluating one command.
type Decision struct {
	Allowed bool
	// Rule is the pattern that decided the outcome; empty when the
	// default applied.
	Rule string
}

// Evaluator evaluates command lines against a fixed permission set.
type Evaluator struct {
	perms entity.CommandPermissions
}

// New creates an evaluator for the given permissions.
func New(perms entity.CommandPermissions) *Evaluator {
	return &Evaluator{perms: perms}
}

// Evaluate decides whether the command may run.
func (e *Evaluator) Evaluate(command string) Decision {
	command = strings.TrimSpace(command)

	for _, pattern := range e.perms.Deny {
		if matches(pattern, command) {
			return Decision{Allowed: false, Rule: pattern}
		}
	}
	for _, pattern := range e.perms.Allow {
		if matches(pattern, command) {
			return Decision{Allowed: true, Rule: pattern}
		}
	}

	// An allow list makes the policy opt-in; without one everything not
	// denied is permitted.
	if len(e.perms.Allow) > 0 {
		return Decision{Allowed: false}
	}
	return Decision{Allowed: true}
}

// matches reports whether the glob pattern matches the command line. A
// bare pattern with no whitespace and no glob metacharacters is treated
// as a command-name prefix match, so "git" covers "git status" without
// requiring "git **".
func matches(pattern, command string) bool {
	if pattern == "" {
		return false
	}
	if !strings.ContainsAny(pattern, "*?[{ ") {
		return command == pattern || strings.HasPrefix(command, pattern+" ")
	}
	ok, err := doublestar.Match(pattern, command)
	if err != nil {
		// A malformed pattern never matches.
		return false
	}
	return ok
}
