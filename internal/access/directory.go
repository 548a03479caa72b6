package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Directory owns user records: creation, patching, the status lifecycle
// and hard deletes.
type Directory struct {
	store   Store
	catalog *Catalog
	now     func() time.Time
}

// DirectoryOption configures Directory behavior.
type DirectoryOption func(*Directory)

// WithDirectoryClock overrides the time source (useful for tests).
func WithDirectoryClock(fn func() time.Time) DirectoryOption {
	return func(d *Directory) {
		if fn != nil {
			d.now = fn
		}
	}
}

// NewDirectory constructs a Directory over the given store and catalog.
func NewDirectory(store Store, catalog *Catalog, opts ...DirectoryOption) (*Directory, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	if catalog == nil {
		return nil, errors.New("access: catalog is required")
	}
	d := &Directory{store: store, catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewUser is the input for account creation.
type NewUser struct {
	Name       string
	Email      string
	RoleID     string
	Department string
	Position   string
	Phone      string
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}

// CreateUser provisions a pending account referencing an active role and
// issues its initial credential. The store enforces email uniqueness
// atomically with the insert; only the credential's bcrypt hash is
// persisted, the plaintext secret lives in the returned Credential.
func (d *Directory) CreateUser(ctx context.Context, in NewUser) (User, Credential, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return User{}, Credential{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, Credential{}, err
	}
	roleID := strings.TrimSpace(in.RoleID)
	if roleID == "" {
		return User{}, Credential{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	role, err := d.store.Roles().Get(ctx, roleID)
	if err != nil {
		return User{}, Credential{}, err
	}
	if role.Status != RoleStatusActive {
		return User{}, Credential{}, fmt.Errorf("%w: %s", ErrRoleInactive, role.ID)
	}

	now := d.now().UTC()
	user := User{
		Name:                name,
		Email:               email,
		Phone:               strings.TrimSpace(in.Phone),
		RoleID:              role.ID,
		Department:          strings.TrimSpace(in.Department),
		Position:            strings.TrimSpace(in.Position),
		ExplicitPermissions: NewPermissionSet(),
		Status:              StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	cred, hash, err := newCredential(now)
	if err != nil {
		return User{}, Credential{}, err
	}
	user.SecretHash = hash
	if err := d.store.Users().Create(ctx, &user); err != nil {
		return User{}, Credential{}, err
	}
	cred.UserID = user.ID
	return user, cred, nil
}

// UserUpdate is a partial patch. ExplicitPermissions replaces the whole
// override set when present; incremental edits would accumulate stale
// overrides.
type UserUpdate struct {
	Name                *string
	Email               *string
	Phone               *string
	RoleID              *string
	Department          *string
	Position            *string
	ExplicitPermissions *[]Permission
}

// UpdateUser applies a patch. A role change leaves explicit overrides
// untouched: overrides are additive grants and changing role never
// silently revokes them. Assigning an inactive role is allowed here,
// mirroring the rule that existing users keep roles that get
// deactivated.
func (d *Directory) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := d.store.Users().Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return User{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		user.Name = name
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return User{}, err
		}
		user.Email = email
	}
	if upd.Phone != nil {
		user.Phone = strings.TrimSpace(*upd.Phone)
	}
	if upd.RoleID != nil {
		roleID := strings.TrimSpace(*upd.RoleID)
		if roleID == "" {
			return User{}, fmt.Errorf("%w: role_id is required", ErrInvalidInput)
		}
		if _, err := d.store.Roles().Get(ctx, roleID); err != nil {
			return User{}, err
		}
		user.RoleID = roleID
	}
	if upd.Department != nil {
		user.Department = strings.TrimSpace(*upd.Department)
	}
	if upd.Position != nil {
		user.Position = strings.TrimSpace(*upd.Position)
	}
	if upd.ExplicitPermissions != nil {
		set := NewPermissionSet(*upd.ExplicitPermissions...)
		if err := d.catalog.RequireKnown(set.Sorted()); err != nil {
			return User{}, err
		}
		user.ExplicitPermissions = set
	}
	user.UpdatedAt = d.now().UTC()
	if err := d.store.Users().Update(ctx, user); err != nil {
		return User{}, err
	}
	return *user, nil
}

// TransitionStatus moves an account through the lifecycle. Illegal
// moves, including a transition to the current status, fail with
// *StatusTransitionError.
func (d *Directory) TransitionStatus(ctx context.Context, userID string, target Status) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if !KnownStatus(target) {
		return User{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	user, err := d.store.Users().Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if !CanTransition(user.Status, target) {
		return User{}, &StatusTransitionError{From: user.Status, To: target}
	}
	user.Status = target
	user.UpdatedAt = d.now().UTC()
	if err := d.store.Users().Update(ctx, user); err != nil {
		return User{}, err
	}
	return *user, nil
}

// DeleteUser removes the account permanently. There is no archival or
// undo; the freed email may be reused immediately.
func (d *Directory) DeleteUser(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return d.store.Users().Delete(ctx, userID)
}

// GetUser fetches an account by id.
func (d *Directory) GetUser(ctx context.Context, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := d.store.Users().Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}

// FindByEmail fetches an account by email, case-insensitively.
func (d *Directory) FindByEmail(ctx context.Context, email string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	user, err := d.store.Users().FindByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return *user, nil
}

// RecordLogin stamps last_login_at. Every other field, including
// updated_at, is left alone.
func (d *Directory) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	user, err := d.store.Users().Get(ctx, userID)
	if err != nil {
		return err
	}
	if at.IsZero() {
		at = d.now()
	}
	user.LastLoginAt = at.UTC()
	return d.store.Users().Update(ctx, user)
}

// VerifyInitialSecret checks a presented first-login secret against the
// stored hash. The credential-exchange collaborator calls this before
// activating the account.
func (d *Directory) VerifyInitialSecret(ctx context.Context, userID, secret string) error {
	user, err := d.store.Users().Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}
	return verifySecret(user.SecretHash, secret)
}
