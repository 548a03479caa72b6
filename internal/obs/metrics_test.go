package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/users":                     "/v1/users",
		"/v1/users?sort=name":           "/v1/users",
		"/v1/users/01ABC":               "/v1/users/:id",
		"/v1/users/01ABC/status":        "/v1/users/:id/status",
		"/v1/roles/01ABC":               "/v1/roles/:id",
		"/v1/roles/01ABC/permissions":   "/v1/roles/:id/permissions",
		"/v1/roles/01ABC/too/deep/path": "/v1/roles/01ABC/too/deep/path",
		"/v1/check":                     "/v1/check",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
