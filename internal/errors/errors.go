// Package errors provides structured error types for conductor.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for conductor.
const (
	// Input errors
	CodeValidation Code = "VALIDATION"

	// Lookup errors
	CodeProjectNotFound Code = "PROJECT_NOT_FOUND"
	CodeTaskNotFound    Code = "TASK_NOT_FOUND"
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeMemberNotFound  Code = "MEMBER_NOT_FOUND"
	CodeTeamNotFound    Code = "TEAM_NOT_FOUND"

	// Structural invariant violations
	CodeCrossProject  Code = "CROSS_PROJECT"
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// Lifecycle errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// Conflict errors
	CodeMemberArchived   Code = "MEMBER_ARCHIVED"
	CodeBuiltinProtected Code = "BUILTIN_PROTECTED"
	CodeLeaderRequired   Code = "LEADER_REQUIRED"
	CodeArchiveRequired  Code = "ARCHIVE_REQUIRED"

	// Infrastructure errors
	CodeStorage Code = "STORAGE"
	CodeSpawn   Code = "SPAWN_FAILED"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeValidation:        CategoryBadRequest,
	CodeProjectNotFound:   CategoryNotFound,
	CodeTaskNotFound:      CategoryNotFound,
	CodeSessionNotFound:   CategoryNotFound,
	CodeMemberNotFound:    CategoryNotFound,
	CodeTeamNotFound:      CategoryNotFound,
	CodeCrossProject:      CategoryBadRequest,
	CodeCycleDetected:     CategoryBadRequest,
	CodeInvalidTransition: CategoryConflict,
	CodeMemberArchived:    CategoryConflict,
	CodeBuiltinProtected:  CategoryConflict,
	CodeLeaderRequired:    CategoryConflict,
	CodeArchiveRequired:   CategoryConflict,
	CodeStorage:           CategoryInternal,
	CodeSpawn:             CategoryInternal,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// Error is the structured error type for conductor.
type Error struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *Error) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *Error) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is an Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// --- Error constructors ---

// ErrValidation returns an error for malformed input.
func ErrValidation(reason string) *Error {
	return &Error{
		Code: CodeValidation,
		What: "invalid request",
		Why:  reason,
	}
}

// ErrProjectNotFound returns an error when a project doesn't exist.
func ErrProjectNotFound(id string) *Error {
	return &Error{
		Code: CodeProjectNotFound,
		What: fmt.Sprintf("project %s not found", id),
		Why:  "No project with this ID exists",
		Fix:  "Run 'conductor project list' to see registered projects",
	}
}

// ErrTaskNotFound returns an error when a task doesn't exist.
func ErrTaskNotFound(id string) *Error {
	return &Error{
		Code: CodeTaskNotFound,
		What: fmt.Sprintf("task %s not found", id),
		Why:  "No task with this ID exists; it may have been deleted",
		Fix:  "Re-fetch the task list with 'conductor task list'",
	}
}

// ErrSessionNotFound returns an error when a session doesn't exist.
func ErrSessionNotFound(id string) *Error {
	return &Error{
		Code: CodeSessionNotFound,
		What: fmt.Sprintf("session %s not found", id),
		Why:  "No session with this ID exists; it may have been deleted",
		Fix:  "Re-fetch the session list with 'conductor session list'",
	}
}

// ErrMemberNotFound returns an error when a team member doesn't exist.
func ErrMemberNotFound(id string) *Error {
	return &Error{
		Code: CodeMemberNotFound,
		What: fmt.Sprintf("team member %s not found", id),
		Why:  "No team member with this ID exists",
		Fix:  "Run 'conductor member list' to see available members",
	}
}

// ErrTeamNotFound returns an error when a team doesn't exist.
func ErrTeamNotFound(id string) *Error {
	return &Error{
		Code: CodeTeamNotFound,
		What: fmt.Sprintf("team %s not found", id),
		Why:  "No team with this ID exists",
	}
}

// ErrCrossProject returns an error when two entities belong to
// different projects.
func ErrCrossProject(what string) *Error {
	return &Error{
		Code: CodeCrossProject,
		What: "entities belong to different projects",
		Why:  what,
		Fix:  "Link only tasks and sessions that belong to the same project",
	}
}

// ErrCycleDetected returns an error when a parent assignment would
// create a cycle.
func ErrCycleDetected(id, parentID string) *Error {
	return &Error{
		Code: CodeCycleDetected,
		What: fmt.Sprintf("setting parent of %s to %s would create a cycle", id, parentID),
		Why:  "The proposed parent is a descendant of the entity being re-parented",
		Fix:  "Choose a parent outside the entity's own subtree",
	}
}

// ErrInvalidTransition returns an error when a lifecycle report doesn't
// match the session's current state.
func ErrInvalidTransition(sessionID, from, to string) *Error {
	return &Error{
		Code: CodeInvalidTransition,
		What: fmt.Sprintf("session %s cannot transition from %s to %s", sessionID, from, to),
		Why:  "The session is in a state that does not accept this report",
		Fix:  "Re-fetch the session to see its current status",
	}
}

// ErrMemberArchived returns an error when an archived member is used.
func ErrMemberArchived(id string) *Error {
	return &Error{
		Code: CodeMemberArchived,
		What: fmt.Sprintf("team member %s is archived", id),
		Why:  "Archived members cannot be assigned to new sessions",
		Fix:  "Unarchive the member or choose an active one",
	}
}

// ErrBuiltinProtected returns an error when a builtin member is
// archived or deleted.
func ErrBuiltinProtected(id string) *Error {
	return &Error{
		Code: CodeBuiltinProtected,
		What: fmt.Sprintf("team member %s is built in", id),
		Why:  "Built-in members cannot be archived or deleted, only edited or reset",
	}
}

// ErrLeaderRequired returns an error when a team's leader would be
// removed from its member set.
func ErrLeaderRequired(teamID, leaderID string) *Error {
	return &Error{
		Code: CodeLeaderRequired,
		What: fmt.Sprintf("cannot remove %s from team %s", leaderID, teamID),
		Why:  "The member is still the team leader",
		Fix:  "Reassign the team leader first",
	}
}

// ErrArchiveRequired returns an error when deleting an entity that must
// be archived first.
func ErrArchiveRequired(what, id string) *Error {
	return &Error{
		Code: CodeArchiveRequired,
		What: fmt.Sprintf("%s %s must be archived before deletion", what, id),
		Fix:  "Archive it first, then delete",
	}
}

// ErrStorage wraps a persistence failure.
func ErrStorage(err error) *Error {
	return &Error{
		Code:  CodeStorage,
		What:  "storage operation failed",
		Cause: err,
	}
}

// ErrSpawn wraps a session spawn failure.
func ErrSpawn(err error) *Error {
	return &Error{
		Code:  CodeSpawn,
		What:  "session spawn failed",
		Cause: err,
	}
}

// AsError attempts to convert an error to a conductor Error.
// Returns nil if it isn't one.
func AsError(err error) *Error {
	var cErr *Error
	if As(err, &cErr) {
		return cErr
	}
	return nil
}

// As is a convenience wrapper for errors.As semantics on *Error targets.
func As(err error, target any) bool {
	return asError(err, target)
}

func asError(err error, target any) bool {
	if err == nil {
		return false
	}
	if cErr, ok := err.(*Error); ok {
		if t, ok := target.(**Error); ok {
			*t = cErr
			return true
		}
	}
	if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return asError(unwrapper.Unwrap(), target)
	}
	return false
}

// Wrap wraps a generic error into an Error with unknown code.
func Wrap(err error, what string) *Error {
	return &Error{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
