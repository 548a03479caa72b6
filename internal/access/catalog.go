package access

import (
	"fmt"
	"sort"
	"strings"
)

// PermissionDef declares one catalog permission.
type PermissionDef struct {
	Key         Permission
	Description string
}

// FeatureDef declares a navigable area and the permission gating it.
// Required may be empty: such features are open to every non-blocked,
// non-suspended user.
type FeatureDef struct {
	Key      Feature
	Required Permission
}

// CatalogConfig is the static configuration the catalog is built from.
type CatalogConfig struct {
	Permissions []PermissionDef
	Features    []FeatureDef
}

// Catalog is the closed set of permission and feature identifiers the
// system understands. It is built once at startup and never mutated;
// every component receives it by injection so tests can substitute a
// smaller one.
type Catalog struct {
	permissions map[Permission]string
	features    map[Feature]Permission
}

// NewCatalog validates the configuration and builds an immutable
// catalog. Unknown or duplicate identifiers are configuration bugs and
// fail here rather than surfacing later as silent denials. The reserved
// permissions all_access and self_profile_read are members of every
// catalog.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	c := &Catalog{
		permissions: map[Permission]string{
			PermAllAccess:       "wildcard satisfying every permission check",
			PermSelfProfileRead: "read own profile during onboarding",
		},
		features: make(map[Feature]Permission, len(cfg.Features)),
	}
	for _, def := range cfg.Permissions {
		key := Permission(strings.TrimSpace(string(def.Key)))
		if key == "" {
			return nil, fmt.Errorf("%w: empty permission key", ErrInvalidInput)
		}
		if _, ok := c.permissions[key]; ok && key != PermAllAccess && key != PermSelfProfileRead {
			return nil, fmt.Errorf("%w: duplicate permission %s", ErrInvalidInput, key)
		}
		c.permissions[key] = def.Description
	}
	for _, def := range cfg.Features {
		key := Feature(strings.TrimSpace(string(def.Key)))
		if key == "" {
			return nil, fmt.Errorf("%w: empty feature key", ErrInvalidInput)
		}
		if _, ok := c.features[key]; ok {
			return nil, fmt.Errorf("%w: duplicate feature %s", ErrInvalidInput, key)
		}
		if def.Required != "" {
			if _, ok := c.permissions[def.Required]; !ok {
				return nil, fmt.Errorf("%w: feature %s requires %s", ErrUnknownPermission, key, def.Required)
			}
		}
		c.features[key] = def.Required
	}
	return c, nil
}

// IsKnownPermission reports whether the identifier is in the catalog.
func (c *Catalog) IsKnownPermission(p Permission) bool {
	_, ok := c.permissions[p]
	return ok
}

// RequireKnown validates every permission in the list against the
// catalog. A typo'd identifier is rejected instead of silently granting
// or denying.
func (c *Catalog) RequireKnown(perms []Permission) error {
	for _, p := range perms {
		if !c.IsKnownPermission(p) {
			return fmt.Errorf("%w: %s", ErrUnknownPermission, p)
		}
	}
	return nil
}

// FeatureRequiredPermission resolves the permission gating a feature.
// The empty permission means the feature has no gate. Unknown features
// are caller errors, never silently open.
func (c *Catalog) FeatureRequiredPermission(f Feature) (Permission, error) {
	required, ok := c.features[f]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	return required, nil
}

// Permissions lists the catalog's permission definitions sorted by key.
func (c *Catalog) Permissions() []PermissionDef {
	out := make([]PermissionDef, 0, len(c.permissions))
	for key, desc := range c.permissions {
		out = append(out, PermissionDef{Key: key, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Features lists the catalog's feature definitions sorted by key.
func (c *Catalog) Features() []FeatureDef {
	out := make([]FeatureDef, 0, len(c.features))
	for key, required := range c.features {
		out = append(out, FeatureDef{Key: key, Required: required})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DefaultCatalog returns the production catalog covering the back-office
// areas. Panics on a malformed definition: the catalog is compiled-in
// configuration and a bad entry is a build defect, not runtime input.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(CatalogConfig{
		Permissions: []PermissionDef{
			{Key: "dashboard_view", Description: "View the landing dashboard"},
			{Key: "logistics_read", Description: "Read shipment and fleet data"},
			{Key: "shipment_update", Description: "Create and update shipments"},
			{Key: "hr_read", Description: "Read employee records"},
			{Key: "hr_write", Description: "Manage employee records"},
			{Key: "sales_read", Description: "Read sales pipeline"},
			{Key: "sales_write", Description: "Manage sales pipeline"},
			{Key: "finance_read", Description: "Read invoices and payroll"},
			{Key: "finance_write", Description: "Manage invoices and payroll"},
			{Key: "inventory_read", Description: "Read stock levels"},
			{Key: "inventory_write", Description: "Manage stock levels"},
			{Key: "settings_edit", Description: "Edit global settings"},
			{Key: "user_manage", Description: "Provision and manage accounts"},
			{Key: "role_manage", Description: "Create and edit roles"},
		},
		Features: []FeatureDef{
			{Key: "dashboard", Required: ""},
			{Key: "logistics", Required: "logistics_read"},
			{Key: "hr", Required: "hr_read"},
			{Key: "sales", Required: "sales_read"},
			{Key: "finance", Required: "finance_read"},
			{Key: "inventory", Required: "inventory_read"},
			{Key: "settings", Required: "settings_edit"},
			{Key: "users", Required: "user_manage"},
			{Key: "roles", Required: "role_manage"},
		},
	})
	if err != nil {
		panic(fmt.Sprintf("access: default catalog: %v", err))
	}
	return c
}
