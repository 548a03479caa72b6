// Package httpapi is the thin admin surface over the access core. All
// authorization decisions live in internal/access; handlers only decode,
// delegate and encode.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"accesscore.io/internal/access"
	"accesscore.io/internal/obs"
)

// ReadyProbe reports backing-store readiness (e.g. a database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux         *http.ServeMux
	registry    *access.Registry
	directory   *access.Directory
	provisioner *access.Provisioner
	catalog     *access.Catalog
	readyProbe  ReadyProbe
	version     string
}

// Config wires the core services into the API.
type Config struct {
	Registry    *access.Registry
	Directory   *access.Directory
	Provisioner *access.Provisioner
	Catalog     *access.Catalog
	ReadyProbe  ReadyProbe
	Version     string
}

func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		registry:    cfg.Registry,
		directory:   cfg.Directory,
		provisioner: cfg.Provisioner,
		catalog:     cfg.Catalog,
		readyProbe:  cfg.ReadyProbe,
		version:     cfg.Version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/v1/catalog", a.handleCatalog)

	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/check", a.handleCheck)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the server handler wrapped with metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "accesscore",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "accesscore",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	perms := a.catalog.Permissions()
	features := a.catalog.Features()
	type permOut struct {
		Key         access.Permission `json:"key"`
		Description string            `json:"description,omitempty"`
	}
	type featureOut struct {
		Key      access.Feature    `json:"key"`
		Required access.Permission `json:"required_permission,omitempty"`
	}
	out := map[string]any{
		"permissions": make([]permOut, 0, len(perms)),
		"features":    make([]featureOut, 0, len(features)),
	}
	for _, p := range perms {
		out["permissions"] = append(out["permissions"].([]permOut), permOut{Key: p.Key, Description: p.Description})
	}
	for _, f := range features {
		out["features"] = append(out["features"].([]featureOut), featureOut{Key: f.Key, Required: f.Required})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// handleAccessError maps the core's error taxonomy onto status codes.
// Typed errors surface their context (blocking count, attempted
// transition) in the body so clients can explain the failure.
func handleAccessError(w http.ResponseWriter, r *http.Request, err error) {
	var inUse *access.RoleInUseError
	if errors.As(err, &inUse) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "role is still assigned to users",
			"role_id": inUse.RoleID,
			"users":   inUse.Users,
		})
		return
	}
	var tr *access.StatusTransitionError
	if errors.As(err, &tr) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "invalid status transition",
			"from":  tr.From,
			"to":    tr.To,
		})
		return
	}
	switch {
	case errors.Is(err, access.ErrUserNotFound), errors.Is(err, access.ErrRoleNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrDuplicateEmail), errors.Is(err, access.ErrDuplicateName):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrRoleInactive):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, access.ErrInvalidInput),
		errors.Is(err, access.ErrEmptyPermissionSet),
		errors.Is(err, access.ErrUnknownPermission),
		errors.Is(err, access.ErrUnknownFeature):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
