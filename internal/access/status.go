package access

import (
	"fmt"
	"strings"
)

// statusTransitions is the account lifecycle: pending accounts activate
// once their credential is exchanged, active accounts may pause
// (inactive) or be suspended and come back, and every state may move to
// blocked, which is terminal. Self-transitions are not listed, so
// re-setting the current status fails like any other illegal move.
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusBlocked},
	StatusActive:    {StatusInactive, StatusSuspended, StatusBlocked},
	StatusInactive:  {StatusActive, StatusBlocked},
	StatusSuspended: {StatusActive, StatusBlocked},
	StatusBlocked:   {},
}

// KnownStatus reports whether s is a defined lifecycle state.
func KnownStatus(s Status) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(strings.ToLower(raw)))
	if !KnownStatus(s) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// ParseRoleStatus normalizes and validates a role status string.
func ParseRoleStatus(raw string) (RoleStatus, error) {
	s := RoleStatus(strings.TrimSpace(strings.ToLower(raw)))
	if s != RoleStatusActive && s != RoleStatusInactive {
		return "", fmt.Errorf("%w: unknown role status %q", ErrInvalidInput, raw)
	}
	return s, nil
}
