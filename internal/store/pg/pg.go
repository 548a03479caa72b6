// Package pg implements the access store interfaces on PostgreSQL via
// database/sql and the pgx stdlib driver.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register the pgx database/sql driver

	"accesscore.io/internal/access"
	"accesscore.io/internal/ids"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Schema creates the tables and the case-insensitive uniqueness indexes
// the access services rely on. Uniqueness lives in the database so
// check-then-act races on email or role name cannot slip through
// concurrent writers.
const Schema = `
create table if not exists roles (
	id          text primary key,
	name        text not null,
	description text not null default '',
	permissions jsonb not null default '[]',
	status      text not null default 'active',
	created_at  timestamptz not null default now(),
	updated_at  timestamptz not null default now()
);
create unique index if not exists roles_name_lower_idx on roles (lower(name));

create table if not exists users (
	id                   text primary key,
	name                 text not null,
	email                text not null,
	phone                text not null default '',
	role_id              text not null references roles(id),
	department           text not null default '',
	position             text not null default '',
	explicit_permissions jsonb not null default '[]',
	status               text not null default 'pending',
	secret_hash          text not null default '',
	created_at           timestamptz not null default now(),
	updated_at           timestamptz not null default now(),
	last_login_at        timestamptz
);
create unique index if not exists users_email_lower_idx on users (lower(email));
create index if not exists users_role_id_idx on users (role_id);
`

var _ access.Store = (*Store)(nil)

// Store implements access.Store over a *sql.DB.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema applies the schema. Safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.db == nil {
		return errors.New("pg: database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *Store) Users() access.UserStore { return &userStore{db: s.db} }
func (s *Store) Roles() access.RoleStore { return &roleStore{db: s.db} }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func encodePerms(set access.PermissionSet) ([]byte, error) {
	if set == nil {
		set = access.NewPermissionSet()
	}
	return json.Marshal(set)
}

func decodePerms(raw []byte, dst *access.PermissionSet) error {
	if len(raw) == 0 {
		*dst = access.NewPermissionSet()
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

const userColumns = `id, name, email, phone, role_id, department, position, explicit_permissions, status, secret_hash, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*access.User, error) {
	var (
		u         access.User
		rawPerms  []byte
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.RoleID, &u.Department, &u.Position,
		&rawPerms, &u.Status, &u.SecretHash, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if err := decodePerms(rawPerms, &u.ExplicitPermissions); err != nil {
		return nil, fmt.Errorf("decode explicit_permissions: %w", err)
	}
	if lastLogin.Valid {
		u.LastLoginAt = lastLogin.Time
	}
	return &u, nil
}

func nullableLogin(u *access.User) any {
	if u.LastLoginAt.IsZero() {
		return nil
	}
	return u.LastLoginAt
}

func mapUserWriteError(err error) error {
	pgErr, ok := maybePgError(err)
	if !ok {
		return err
	}
	switch pgErr.Code {
	case pgErrUniqueViolation:
		return access.ErrDuplicateEmail
	case pgErrForeignKeyViolation:
		return access.ErrRoleNotFound
	}
	return err
}

func (s *userStore) Create(ctx context.Context, u *access.User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	perms, err := encodePerms(u.ExplicitPermissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, u.ID, u.Name, u.Email, u.Phone, u.RoleID, u.Department, u.Position,
		perms, u.Status, u.SecretHash, u.CreatedAt, u.UpdatedAt, nullableLogin(u))
	return mapUserWriteError(err)
}

func (s *userStore) Get(ctx context.Context, id string) (*access.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrUserNotFound
	}
	return u, err
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*access.User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrUserNotFound
	}
	return u, err
}

func (s *userStore) Update(ctx context.Context, u *access.User) error {
	perms, err := encodePerms(u.ExplicitPermissions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update users
		set name=$2, email=$3, phone=$4, role_id=$5, department=$6, position=$7,
		    explicit_permissions=$8, status=$9, secret_hash=$10, updated_at=$11, last_login_at=$12
		where id=$1
	`, u.ID, u.Name, u.Email, u.Phone, u.RoleID, u.Department, u.Position,
		perms, u.Status, u.SecretHash, u.UpdatedAt, nullableLogin(u))
	if err != nil {
		return mapUserWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return access.ErrUserNotFound
	}
	return nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return access.ErrUserNotFound
	}
	return nil
}

func (s *userStore) List(ctx context.Context) ([]*access.User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*access.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userStore) CountByRole(ctx context.Context, roleID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from users where role_id=$1`, roleID).Scan(&n)
	return n, err
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

const roleColumns = `id, name, description, permissions, status, created_at, updated_at`

func scanRole(row interface{ Scan(dest ...any) error }) (*access.Role, error) {
	var (
		r        access.Role
		rawPerms []byte
	)
	err := row.Scan(&r.ID, &r.Name, &r.Description, &rawPerms, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodePerms(rawPerms, &r.Permissions); err != nil {
		return nil, fmt.Errorf("decode permissions: %w", err)
	}
	return &r, nil
}

func mapRoleWriteError(err error) error {
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return access.ErrDuplicateName
	}
	return err
}

func (s *roleStore) Create(ctx context.Context, r *access.Role) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	perms, err := encodePerms(r.Permissions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into roles (`+roleColumns+`)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, r.Name, r.Description, perms, r.Status, r.CreatedAt, r.UpdatedAt)
	return mapRoleWriteError(err)
}

func (s *roleStore) Get(ctx context.Context, id string) (*access.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id=$1`, id)
	r, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, access.ErrRoleNotFound
	}
	return r, err
}

func (s *roleStore) Update(ctx context.Context, r *access.Role) error {
	perms, err := encodePerms(r.Permissions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		update roles
		set name=$2, description=$3, permissions=$4, status=$5, updated_at=$6
		where id=$1
	`, r.ID, r.Name, r.Description, perms, r.Status, r.UpdatedAt)
	if err != nil {
		return mapRoleWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return access.ErrRoleNotFound
	}
	return nil
}

// Delete counts referencing users and removes the role inside one
// transaction, so the RoleInUse decision and the delete observe the same
// snapshot. The FK constraint backs this up should a user sneak in
// between.
func (s *roleStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var inUse int
	if err := tx.QueryRowContext(ctx, `select count(*) from users where role_id=$1`, id).Scan(&inUse); err != nil {
		return err
	}
	if inUse > 0 {
		return &access.RoleInUseError{RoleID: id, Users: inUse}
	}
	res, err := tx.ExecContext(ctx, `delete from roles where id=$1`, id)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return &access.RoleInUseError{RoleID: id, Users: 1}
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return access.ErrRoleNotFound
	}
	return tx.Commit()
}

func (s *roleStore) List(ctx context.Context) ([]*access.Role, error) {
	rows, err := s.db.QueryContext(ctx, `select `+roleColumns+` from roles order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*access.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// normalizeDSN trims surrounding whitespace so env-provided DSNs with
// trailing newlines do not break sql.Open.
func normalizeDSN(dsn string) string {
	return strings.TrimSpace(dsn)
}

// Open opens a pgx-backed handle for the given DSN.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", normalizeDSN(dsn))
}
