package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Registry manages the role catalog: named permission bundles users are
// assigned by id.
type Registry struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
}

// RegistryOption configures Registry behavior.
type RegistryOption func(*Registry)

// WithRegistryClock overrides the time source (useful for tests).
func WithRegistryClock(fn func() time.Time) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRegistry constructs a Registry over the given store and catalog.
func NewRegistry(store Store, catalog *Catalog, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if catalog == nil {
		return nil, errors.New("access: catalog is required")
	}
	r := &Registry{store: store, catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// CreateRole registers a new active role. The permission bundle must be
// non-empty and every member must be in the catalog; names are unique
// case-insensitively.
func (r *Registry) CreateRole(ctx context.Context, name, description string, permissions []Permission) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	set := NewPermissionSet(permissions...)
	if len(set) == 0 {
		return Role{}, ErrEmptyPermissionSet
	}
	if err := r.catalog.RequireKnown(set.Sorted()); err != nil {
		return Role{}, err
	}
	now := r.now().UTC()
	role := Role{
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: set,
		Status:      RoleStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Roles().Create(ctx, &role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// UpdateRolePermissions replaces a role's bundle. Every user referencing
// the role sees the changed effective set on their next evaluation;
// nothing is cached per user. The stored bundle is untouched when
// validation fails.
func (r *Registry) UpdateRolePermissions(ctx context.Context, roleID string, permissions []Permission) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	set := NewPermissionSet(permissions...)
	if len(set) == 0 {
		return ErrEmptyPermissionSet
	}
	if err := r.catalog.RequireKnown(set.Sorted()); err != nil {
		return err
	}
	role, err := r.store.Roles().Get(ctx, roleID)
	if err != nil {
		return err
	}
	role.Permissions = set
	role.UpdatedAt = r.now().UTC()
	return r.store.Roles().Update(ctx, role)
}

// RoleUpdate is a partial patch for role metadata.
type RoleUpdate struct {
	Name        *string
	Description *string
	Status      *RoleStatus
}

// UpdateRole patches name, description or status. Deactivating a role
// stops new assignments but leaves existing users untouched.
func (r *Registry) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := r.store.Roles().Get(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
		}
		role.Name = name
	}
	if upd.Description != nil {
		role.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.Status != nil {
		if *upd.Status != RoleStatusActive && *upd.Status != RoleStatusInactive {
			return Role{}, fmt.Errorf("%w: unsupported role status %s", ErrInvalidInput, *upd.Status)
		}
		role.Status = *upd.Status
	}
	role.UpdatedAt = r.now().UTC()
	if err := r.store.Roles().Update(ctx, role); err != nil {
		return Role{}, err
	}
	return *role, nil
}

// DeleteRole removes a role nobody references. While users still hold
// the role the store reports *RoleInUseError with the count; callers
// must reassign those users first.
func (r *Registry) DeleteRole(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	return r.store.Roles().Delete(ctx, roleID)
}

// GetRole fetches a role by id.
func (r *Registry) GetRole(ctx context.Context, roleID string) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := r.store.Roles().Get(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	return *role, nil
}

// RoleFilter narrows ListRoles output.
type RoleFilter struct {
	Status       *RoleStatus
	NameContains string
}

// ListRoles returns roles matching the filter, sorted by name with an
// id tiebreak. Name matching is case-insensitive substring.
func (r *Registry) ListRoles(ctx context.Context, filter RoleFilter) ([]Role, error) {
	roles, err := r.store.Roles().List(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(filter.NameContains))
	out := make([]Role, 0, len(roles))
	for _, role := range roles {
		if filter.Status != nil && role.Status != *filter.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(role.Name), needle) {
			continue
		}
		out = append(out, *role)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
