package access

import (
	"errors"
	"testing"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(CatalogConfig{
		Permissions: []PermissionDef{
			{Key: "logistics_read", Description: "read shipments"},
			{Key: "shipment_update", Description: "edit shipments"},
			{Key: "hr_read"},
			{Key: "hr_write"},
			{Key: "read_only"},
		},
		Features: []FeatureDef{
			{Key: "dashboard", Required: ""},
			{Key: "logistics", Required: "logistics_read"},
			{Key: "hr", Required: "hr_read"},
		},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func TestCatalogKnownPermissions(t *testing.T) {
	c := testCatalog(t)
	if !c.IsKnownPermission("hr_read") {
		t.Fatalf("expected hr_read to be known")
	}
	if c.IsKnownPermission("hr_rad") {
		t.Fatalf("typo should not be known")
	}
	// reserved identifiers are members of every catalog
	if !c.IsKnownPermission(PermAllAccess) || !c.IsKnownPermission(PermSelfProfileRead) {
		t.Fatalf("reserved permissions missing")
	}
}

func TestCatalogRejectsUnknownFeatureGate(t *testing.T) {
	_, err := NewCatalog(CatalogConfig{
		Features: []FeatureDef{{Key: "hr", Required: "hr_read"}},
	})
	if !errors.Is(err, ErrUnknownPermission) {
		t.Fatalf("expected ErrUnknownPermission, got %v", err)
	}
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog(CatalogConfig{
		Permissions: []PermissionDef{{Key: "hr_read"}, {Key: "hr_read"}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate permission, got %v", err)
	}
	_, err = NewCatalog(CatalogConfig{
		Features: []FeatureDef{{Key: "hr"}, {Key: "hr"}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for duplicate feature, got %v", err)
	}
}

func TestFeatureRequiredPermission(t *testing.T) {
	c := testCatalog(t)
	required, err := c.FeatureRequiredPermission("logistics")
	if err != nil {
		t.Fatalf("FeatureRequiredPermission: %v", err)
	}
	if required != "logistics_read" {
		t.Fatalf("unexpected gate: %s", required)
	}
	required, err = c.FeatureRequiredPermission("dashboard")
	if err != nil || required != "" {
		t.Fatalf("dashboard should be open, got %q, %v", required, err)
	}
	if _, err := c.FeatureRequiredPermission("warehouse"); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	if len(c.Permissions()) == 0 || len(c.Features()) == 0 {
		t.Fatalf("default catalog is empty")
	}
	for _, f := range c.Features() {
		if f.Required == "" {
			continue
		}
		if !c.IsKnownPermission(f.Required) {
			t.Fatalf("feature %s gated by unknown permission %s", f.Key, f.Required)
		}
	}
}
