package access

import "context"

// Store describes the persistence boundary the services write through.
// Implementations must make uniqueness and referential-integrity checks
// atomic with the writes that depend on them: the duplicate-email check
// in UserStore.Create and the referencing-user count in RoleStore.Delete
// may not race with concurrent writes.
type Store interface {
	Users() UserStore
	Roles() RoleStore
}

// UserStore persists user records. Emails are stored lower-cased;
// services normalize before calling.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*User, error)
	CountByRole(ctx context.Context, roleID string) (int, error)
}

// RoleStore persists roles. Delete returns *RoleInUseError while any
// user references the role.
type RoleStore interface {
	Create(ctx context.Context, r *Role) error
	Get(ctx context.Context, id string) (*Role, error)
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Role, error)
}
