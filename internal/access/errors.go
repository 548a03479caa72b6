package access

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("access: invalid input")
	ErrRoleNotFound       = errors.New("access: role not found")
	ErrUserNotFound       = errors.New("access: user not found")
	ErrDuplicateName      = errors.New("access: role name already in use")
	ErrDuplicateEmail     = errors.New("access: email already in use")
	ErrEmptyPermissionSet = errors.New("access: permission set is empty")
	ErrUnknownPermission  = errors.New("access: unknown permission")
	ErrUnknownFeature     = errors.New("access: unknown feature")
	ErrRoleInactive       = errors.New("access: role is inactive")
)

// RoleInUseError rejects role deletion while users still reference the
// role. Users carries the referencing count so callers can explain the
// failure.
type RoleInUseError struct {
	RoleID string
	Users  int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("access: role %s is assigned to %d user(s)", e.RoleID, e.Users)
}

// StatusTransitionError reports an illegal lifecycle transition,
// including a transition to the current status.
type StatusTransitionError struct {
	From Status
	To   Status
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("access: invalid status transition %s -> %s", e.From, e.To)
}
