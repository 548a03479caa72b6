package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"accesscore.io/internal/access"
	"accesscore.io/internal/obs"
)

type createRoleRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Permissions []access.Permission `json:"permissions"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type updateRolePermissionsRequest struct {
	Permissions []access.Permission `json:"permissions"`
}

type provisionUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	RoleID     string `json:"role_id"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Phone      string `json:"phone"`
}

type updateUserRequest struct {
	Name                *string              `json:"name"`
	Email               *string              `json:"email"`
	Phone               *string              `json:"phone"`
	RoleID              *string              `json:"role_id"`
	Department          *string              `json:"department"`
	Position            *string              `json:"position"`
	ExplicitPermissions *[]access.Permission `json:"explicit_permissions"`
}

type transitionStatusRequest struct {
	Status string `json:"status"`
}

type recordLoginRequest struct {
	At *time.Time `json:"at"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.registry.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		filter := access.RoleFilter{NameContains: r.URL.Query().Get("name")}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := access.ParseRoleStatus(raw)
			if err != nil {
				handleAccessError(w, r, err)
				return
			}
			filter.Status = &status
		}
		roles, err := a.registry.ListRoles(r.Context(), filter)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		role, err := a.registry.GetRole(r.Context(), roleID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		upd := access.RoleUpdate{Name: req.Name, Description: req.Description}
		if req.Status != nil {
			status, err := access.ParseRoleStatus(*req.Status)
			if err != nil {
				handleAccessError(w, r, err)
				return
			}
			upd.Status = &status
		}
		role, err := a.registry.UpdateRole(r.Context(), roleID, upd)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if err := a.registry.DeleteRole(r.Context(), roleID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	var req updateRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.registry.UpdateRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleAccessError(w, r, err)
		return
	}
	role, err := a.registry.GetRole(r.Context(), roleID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleProvision(w, r)
	case http.MethodGet:
		a.handleQueryUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleProvision runs the full provisioning workflow. The one-time
// secret appears in this response and nowhere else; delivery failures
// come back as a warning next to the created user.
func (a *API) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.provisioner.Provision(r.Context(), access.NewUser{
		Name:       req.Name,
		Email:      req.Email,
		RoleID:     req.RoleID,
		Department: req.Department,
		Position:   req.Position,
		Phone:      req.Phone,
	})
	if err != nil {
		obs.ObserveProvision("error")
		handleAccessError(w, r, err)
		return
	}
	body := map[string]any{
		"user":       res.User,
		"credential": res.Credential,
		"delivered":  res.Delivered,
	}
	if res.DeliveryErr != nil {
		obs.ObserveProvision("delivery_failed")
		body["delivery_error"] = res.DeliveryErr.Error()
	} else {
		obs.ObserveProvision("ok")
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", res.User.ID))
	writeJSON(w, http.StatusCreated, body)
}

func (a *API) handleQueryUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := access.UserFilter{
		NameContains: q.Get("name"),
		Department:   q.Get("department"),
		RoleID:       q.Get("role"),
	}
	if raw := q.Get("status"); raw != "" {
		status, err := access.ParseStatus(raw)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		filter.Status = &status
	}
	sortBy := access.UserSort{
		Field: access.SortField(q.Get("sort")),
		Order: access.SortOrder(q.Get("order")),
	}
	users, err := a.directory.QueryUsers(r.Context(), filter, sortBy)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "status":
		a.handleUserStatus(w, r, userID)
	case len(parts) == 2 && parts[1] == "login":
		a.handleUserLogin(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUser(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		user, err := a.directory.GetUser(r.Context(), userID)
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.directory.UpdateUser(r.Context(), userID, access.UserUpdate{
			Name:                req.Name,
			Email:               req.Email,
			Phone:               req.Phone,
			RoleID:              req.RoleID,
			Department:          req.Department,
			Position:            req.Position,
			ExplicitPermissions: req.ExplicitPermissions,
		})
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		if err := a.directory.DeleteUser(r.Context(), userID); err != nil {
			handleAccessError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleUserStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req transitionStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	target, err := access.ParseStatus(req.Status)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	user, err := a.directory.TransitionStatus(r.Context(), userID, target)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserLogin(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req recordLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	at := time.Time{}
	if req.At != nil {
		at = *req.At
	}
	if err := a.directory.RecordLogin(r.Context(), userID, at); err != nil {
		handleAccessError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCheck answers "can user U do P" / "can user U see feature F".
// Exactly one of permission or feature must be given.
func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	userID := q.Get("user")
	perm := q.Get("permission")
	feature := q.Get("feature")
	if userID == "" || (perm == "") == (feature == "") {
		writeError(w, r, http.StatusBadRequest, "user and exactly one of permission or feature are required")
		return
	}
	user, err := a.directory.GetUser(r.Context(), userID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}
	role, err := a.registry.GetRole(r.Context(), user.RoleID)
	if err != nil {
		handleAccessError(w, r, err)
		return
	}

	var allowed bool
	if perm != "" {
		p := access.Permission(perm)
		if !a.catalog.IsKnownPermission(p) {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown permission %q", perm))
			return
		}
		allowed = access.HasPermission(&user, &role, p)
	} else {
		allowed, err = access.CanAccessFeature(a.catalog, &user, &role, access.Feature(feature))
		if err != nil {
			handleAccessError(w, r, err)
			return
		}
	}
	obs.ObserveAccessCheck(allowed)
	writeJSON(w, http.StatusOK, map[string]any{"allowed": allowed})
}
