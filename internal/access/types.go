package access

import (
	"encoding/json"
	"sort"
	"time"
)

// Permission is an atomic capability identifier drawn from the catalog.
type Permission string

// Feature identifies a navigable application area gated by at most one
// permission.
type Feature string

// Reserved permissions. Both are members of every catalog.
const (
	// PermAllAccess satisfies every permission check when present in a
	// user's effective set.
	PermAllAccess Permission = "all_access"
	// PermSelfProfileRead is the single status-conditional carve-out:
	// pending and inactive users pass checks for it so they can finish
	// onboarding.
	PermSelfProfileRead Permission = "self_profile_read"
)

// Status is a user account lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusBlocked   Status = "blocked"
)

// RoleStatus marks whether a role may be assigned to new users.
type RoleStatus string

const (
	RoleStatusActive   RoleStatus = "active"
	RoleStatusInactive RoleStatus = "inactive"
)

// PermissionSet is an unordered set of permissions. It marshals as a
// sorted JSON array so persisted and served representations are stable.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions, dropping
// duplicates and empty keys.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// Contains reports set membership.
func (s PermissionSet) Contains(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Union returns a new set holding every permission of s and other.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the set's members in lexicographic order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}

// Role is a named, reusable permission bundle assigned to users by id.
type Role struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Permissions PermissionSet `json:"permissions"`
	Status      RoleStatus    `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// User is a back-office account. ExplicitPermissions are additive
// overrides on top of the assigned role's bundle; they survive role
// changes.
type User struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Email               string        `json:"email"`
	Phone               string        `json:"phone,omitempty"`
	RoleID              string        `json:"role_id"`
	Department          string        `json:"department,omitempty"`
	Position            string        `json:"position,omitempty"`
	ExplicitPermissions PermissionSet `json:"explicit_permissions"`
	Status              Status        `json:"status"`
	SecretHash          string        `json:"-"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	LastLoginAt         time.Time     `json:"last_login_at,omitzero"`
}

// Credential is the provisioning artifact for a new account. The
// plaintext InitialSecret is emitted exactly once for delivery; stores
// only ever see the bcrypt hash carried on the user record.
type Credential struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	InitialSecret        string    `json:"initial_secret"`
	MustChangeOnFirstUse bool      `json:"must_change_on_first_use"`
	IssuedAt             time.Time `json:"issued_at"`
}

// CredentialIssued is handed to the delivery collaborator after a user
// has been persisted.
type CredentialIssued struct {
	User       User
	Credential Credential
}
