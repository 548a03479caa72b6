package access

import (
	"context"
	"errors"
	"testing"
)

func newTestRegistry(t *testing.T) (*Registry, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	reg, err := NewRegistry(store, testCatalog(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg, store
}

func TestCreateRole(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	role, err := reg.CreateRole(ctx, "  Ops ", "operations crew", []Permission{"logistics_read", "shipment_update", "logistics_read"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.ID == "" || role.Name != "Ops" || role.Status != RoleStatusActive {
		t.Fatalf("unexpected role: %+v", role)
	}
	if len(role.Permissions) != 2 {
		t.Fatalf("expected deduplicated bundle, got %v", role.Permissions.Sorted())
	}

	if _, err := reg.CreateRole(ctx, "ops", "dup", []Permission{"hr_read"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName for case-insensitive duplicate, got %v", err)
	}
	if _, err := reg.CreateRole(ctx, "Empty", "", nil); !errors.Is(err, ErrEmptyPermissionSet) {
		t.Fatalf("expected ErrEmptyPermissionSet, got %v", err)
	}
	if _, err := reg.CreateRole(ctx, "Typo", "", []Permission{"hr_rad"}); !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestUpdateRolePermissions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	role, err := reg.CreateRole(ctx, "Viewer", "", []Permission{"read_only"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	if err := reg.UpdateRolePermissions(ctx, role.ID, nil); !errors.Is(err, ErrEmptyPermissionSet) {
		t.Fatalf("expected ErrEmptyPermissionSet, got %v", err)
	}
	got, err := reg.GetRole(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if !got.Permissions.Contains("read_only") || len(got.Permissions) != 1 {
		t.Fatalf("failed update must leave bundle unchanged, got %v", got.Permissions.Sorted())
	}

	if err := reg.UpdateRolePermissions(ctx, role.ID, []Permission{"hr_read", "hr_write"}); err != nil {
		t.Fatalf("UpdateRolePermissions: %v", err)
	}
	got, _ = reg.GetRole(ctx, role.ID)
	if !got.Permissions.Contains("hr_write") || got.Permissions.Contains("read_only") {
		t.Fatalf("bundle was not replaced: %v", got.Permissions.Sorted())
	}

	if err := reg.UpdateRolePermissions(ctx, "missing", []Permission{"hr_read"}); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	dir, err := NewDirectory(store, testCatalog(t))
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	ops, err := reg.CreateRole(ctx, "Ops", "", []Permission{"logistics_read"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	viewer, err := reg.CreateRole(ctx, "Viewer", "", []Permission{"read_only"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	var userIDs []string
	for _, email := range []string{"a@corp.test", "b@corp.test", "c@corp.test"} {
		u, _, err := dir.CreateUser(ctx, NewUser{Name: "n", Email: email, RoleID: ops.ID})
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		userIDs = append(userIDs, u.ID)
	}

	err = reg.DeleteRole(ctx, ops.ID)
	var inUse *RoleInUseError
	if !errors.As(err, &inUse) {
		t.Fatalf("expected RoleInUseError, got %v", err)
	}
	if inUse.Users != 3 {
		t.Fatalf("expected count 3, got %d", inUse.Users)
	}

	for _, id := range userIDs {
		if _, err := dir.UpdateUser(ctx, id, UserUpdate{RoleID: &viewer.ID}); err != nil {
			t.Fatalf("UpdateUser: %v", err)
		}
	}
	if err := reg.DeleteRole(ctx, ops.ID); err != nil {
		t.Fatalf("DeleteRole after reassignment: %v", err)
	}
	if _, err := reg.GetRole(ctx, ops.ID); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("role should be gone, got %v", err)
	}
}

func TestListRoles(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.CreateRole(ctx, "Warehouse Ops", "", []Permission{"logistics_read"}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	hr, err := reg.CreateRole(ctx, "HR Manager", "", []Permission{"hr_read", "hr_write"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	inactive := RoleStatusInactive
	if _, err := reg.UpdateRole(ctx, hr.ID, RoleUpdate{Status: &inactive}); err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}

	all, err := reg.ListRoles(ctx, RoleFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 roles, got %d (%v)", len(all), err)
	}
	if all[0].Name != "HR Manager" {
		t.Fatalf("expected name-sorted output, got %s first", all[0].Name)
	}

	active := RoleStatusActive
	roles, err := reg.ListRoles(ctx, RoleFilter{Status: &active})
	if err != nil || len(roles) != 1 || roles[0].Name != "Warehouse Ops" {
		t.Fatalf("status filter failed: %v, %v", roles, err)
	}

	roles, err = reg.ListRoles(ctx, RoleFilter{NameContains: "manager"})
	if err != nil || len(roles) != 1 || roles[0].ID != hr.ID {
		t.Fatalf("substring filter failed: %v, %v", roles, err)
	}
}
