package access

// Access evaluation is pure: these functions read the user, role and
// catalog they are handed and never touch storage.

// EffectivePermissions is the union of the role's bundle and the user's
// explicit overrides. The role may be nil, in which case only the
// overrides apply.
func EffectivePermissions(u *User, role *Role) PermissionSet {
	if u == nil {
		return NewPermissionSet()
	}
	if role == nil {
		return u.ExplicitPermissions.Clone()
	}
	return role.Permissions.Union(u.ExplicitPermissions)
}

// HasPermission decides "can this user perform perm". Status gates run
// before any permission logic: blocked and suspended users fail every
// check, and pending or inactive users pass only the self_profile_read
// carve-out, unconditionally, so a half-provisioned account can read its
// own profile and nothing else. For active users the wildcard or set
// membership decides.
func HasPermission(u *User, role *Role, perm Permission) bool {
	if u == nil {
		return false
	}
	switch u.Status {
	case StatusBlocked, StatusSuspended:
		return false
	case StatusPending, StatusInactive:
		return perm == PermSelfProfileRead
	case StatusActive:
	default:
		return false
	}
	effective := EffectivePermissions(u, role)
	if effective.Contains(PermAllAccess) {
		return true
	}
	return effective.Contains(perm)
}

// CanAccessFeature resolves the feature's gate through the catalog and
// delegates to HasPermission. A feature with no configured permission is
// open to every non-blocked, non-suspended user. Unknown features are an
// error, never a silent deny.
func CanAccessFeature(catalog *Catalog, u *User, role *Role, feature Feature) (bool, error) {
	required, err := catalog.FeatureRequiredPermission(feature)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	if required == "" {
		return u.Status != StatusBlocked && u.Status != StatusSuspended, nil
	}
	return HasPermission(u, role, required), nil
}

// PermissionSetForRoleChange is the role-change policy in one place: the
// new role contributes exactly its bundle, and explicit overrides are
// preserved because they are tracked on the user, not resolved into it.
// Changing role therefore never silently revokes a granted override.
func PermissionSetForRoleChange(newRole *Role) PermissionSet {
	if newRole == nil {
		return NewPermissionSet()
	}
	return newRole.Permissions.Clone()
}
