package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"accesscore.io/internal/access"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	u := &access.User{Name: "a", Email: "a@corp.test", RoleID: "r1", Status: access.StatusPending}
	if err := store.Users().Create(context.Background(), u); !errors.Is(err, access.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUserMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "users_role_id_fkey"})

	u := &access.User{Name: "a", Email: "a@corp.test", RoleID: "ghost", Status: access.StatusPending}
	if err := store.Users().Create(context.Background(), u); !errors.Is(err, access.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectQuery("select .+ from users where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.Users().Get(context.Background(), "missing"); !errors.Is(err, access.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserScansPermissions(t *testing.T) {
	store, mock := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "name", "email", "phone", "role_id", "department", "position",
		"explicit_permissions", "status", "secret_hash", "created_at", "updated_at", "last_login_at",
	}).AddRow("u1", "Alice", "alice@corp.test", "", "r1", "Logistics", "",
		[]byte(`["hr_write","logistics_read"]`), "active", "", now, now, nil)
	mock.ExpectQuery("select .+ from users where id=").WithArgs("u1").WillReturnRows(rows)

	u, err := store.Users().Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !u.ExplicitPermissions.Contains("hr_write") || len(u.ExplicitPermissions) != 2 {
		t.Fatalf("permissions not decoded: %v", u.ExplicitPermissions.Sorted())
	}
	if !u.LastLoginAt.IsZero() {
		t.Fatalf("null last_login_at must stay zero")
	}
}

func TestCreateRoleMapsDuplicateName(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("insert into roles").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "roles_name_lower_idx"})

	r := &access.Role{Name: "Ops", Permissions: access.NewPermissionSet("logistics_read"), Status: access.RoleStatusActive}
	if err := store.Roles().Create(context.Background(), r); !errors.Is(err, access.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from users where role_id=`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	err := store.Roles().Delete(context.Background(), "r1")
	var inUse *access.RoleInUseError
	if !errors.As(err, &inUse) || inUse.Users != 3 {
		t.Fatalf("expected RoleInUseError with count 3, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleSuccess(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from users where role_id=`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("delete from roles where id=").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Roles().Delete(context.Background(), "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from users where role_id=`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("delete from roles where id=").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := store.Roles().Delete(context.Background(), "ghost"); !errors.Is(err, access.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestUpdateUserNotFound(t *testing.T) {
	store, mock := newMock(t)
	mock.ExpectExec("update users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	u := &access.User{ID: "ghost", Name: "a", Email: "a@corp.test", RoleID: "r1", Status: access.StatusActive}
	if err := store.Users().Update(context.Background(), u); !errors.Is(err, access.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
