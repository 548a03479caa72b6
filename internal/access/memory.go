package access

import (
	"context"
	"strings"
	"sync"

	"accesscore.io/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store with in-process maps. A single RWMutex
// covers both aggregates so email uniqueness, role-name uniqueness and
// the referencing-user count observed by Delete are consistent with the
// write they guard.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
	roles map[string]*Role
	// secondary indexes, keyed by lower-cased value
	emails    map[string]string
	roleNames map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		emails:    make(map[string]string),
		roleNames: make(map[string]string),
	}
}

func (s *MemoryStore) Users() UserStore { return &memoryUsers{s} }
func (s *MemoryStore) Roles() RoleStore { return &memoryRoles{s} }

func copyUser(u *User) *User {
	out := *u
	out.ExplicitPermissions = u.ExplicitPermissions.Clone()
	return &out
}

func copyRole(r *Role) *Role {
	out := *r
	out.Permissions = r.Permissions.Clone()
	return &out
}

type memoryUsers struct{ s *MemoryStore }

func (m *memoryUsers) Create(ctx context.Context, u *User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	key := strings.ToLower(u.Email)
	if _, taken := m.s.emails[key]; taken {
		return ErrDuplicateEmail
	}
	if _, ok := m.s.roles[u.RoleID]; !ok {
		return ErrRoleNotFound
	}
	m.s.users[u.ID] = copyUser(u)
	m.s.emails[key] = u.ID
	return nil
}

func (m *memoryUsers) Get(ctx context.Context, id string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(u), nil
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	id, ok := m.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(m.s.users[id]), nil
}

func (m *memoryUsers) Update(ctx context.Context, u *User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	prev, ok := m.s.users[u.ID]
	if !ok {
		return ErrUserNotFound
	}
	key := strings.ToLower(u.Email)
	if owner, taken := m.s.emails[key]; taken && owner != u.ID {
		return ErrDuplicateEmail
	}
	if _, ok := m.s.roles[u.RoleID]; !ok {
		return ErrRoleNotFound
	}
	delete(m.s.emails, strings.ToLower(prev.Email))
	m.s.users[u.ID] = copyUser(u)
	m.s.emails[key] = u.ID
	return nil
}

func (m *memoryUsers) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.s.emails, strings.ToLower(u.Email))
	delete(m.s.users, id)
	return nil
}

func (m *memoryUsers) List(ctx context.Context) ([]*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]*User, 0, len(m.s.users))
	for _, u := range m.s.users {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func (m *memoryUsers) CountByRole(ctx context.Context, roleID string) (int, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	n := 0
	for _, u := range m.s.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

type memoryRoles struct{ s *MemoryStore }

func (m *memoryRoles) Create(ctx context.Context, r *Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if r.ID == "" {
		r.ID = ids.New()
	}
	key := strings.ToLower(r.Name)
	if _, taken := m.s.roleNames[key]; taken {
		return ErrDuplicateName
	}
	m.s.roles[r.ID] = copyRole(r)
	m.s.roleNames[key] = r.ID
	return nil
}

func (m *memoryRoles) Get(ctx context.Context, id string) (*Role, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	r, ok := m.s.roles[id]
	if !ok {
		return nil, ErrRoleNotFound
	}
	return copyRole(r), nil
}

func (m *memoryRoles) Update(ctx context.Context, r *Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	prev, ok := m.s.roles[r.ID]
	if !ok {
		return ErrRoleNotFound
	}
	key := strings.ToLower(r.Name)
	if owner, taken := m.s.roleNames[key]; taken && owner != r.ID {
		return ErrDuplicateName
	}
	delete(m.s.roleNames, strings.ToLower(prev.Name))
	m.s.roles[r.ID] = copyRole(r)
	m.s.roleNames[key] = r.ID
	return nil
}

func (m *memoryRoles) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	r, ok := m.s.roles[id]
	if !ok {
		return ErrRoleNotFound
	}
	inUse := 0
	for _, u := range m.s.users {
		if u.RoleID == id {
			inUse++
		}
	}
	if inUse > 0 {
		return &RoleInUseError{RoleID: id, Users: inUse}
	}
	delete(m.s.roleNames, strings.ToLower(r.Name))
	delete(m.s.roles, id)
	return nil
}

func (m *memoryRoles) List(ctx context.Context) ([]*Role, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := make([]*Role, 0, len(m.s.roles))
	for _, r := range m.s.roles {
		out = append(out, copyRole(r))
	}
	return out, nil
}
