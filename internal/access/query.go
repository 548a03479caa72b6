package access

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SortField selects the column QueryUsers orders by.
type SortField string

const (
	SortByName      SortField = "name"
	SortByRole      SortField = "role"
	SortByStatus    SortField = "status"
	SortByCreatedAt SortField = "created_at"
)

// SortOrder is the direction of a sort.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// UserFilter narrows QueryUsers output. Text fields match
// case-insensitive substrings; Status and RoleID match exactly.
type UserFilter struct {
	NameContains string
	Department   string
	Status       *Status
	RoleID       string
}

// UserSort orders QueryUsers output. The zero value means name
// ascending.
type UserSort struct {
	Field SortField
	Order SortOrder
}

// QueryUsers lists directory entries for the back-office screens. The
// sort is stable with ties broken by id ascending, so repeated queries
// over unchanged data return identical sequences and pagination stays
// deterministic. Sorting by role orders on the role's display name,
// resolved at query time.
func (d *Directory) QueryUsers(ctx context.Context, filter UserFilter, sortBy UserSort) ([]User, error) {
	if sortBy.Field == "" {
		sortBy.Field = SortByName
	}
	if sortBy.Order == "" {
		sortBy.Order = OrderAsc
	}
	switch sortBy.Field {
	case SortByName, SortByRole, SortByStatus, SortByCreatedAt:
	default:
		return nil, fmt.Errorf("%w: unknown sort field %q", ErrInvalidInput, sortBy.Field)
	}
	if sortBy.Order != OrderAsc && sortBy.Order != OrderDesc {
		return nil, fmt.Errorf("%w: unknown sort order %q", ErrInvalidInput, sortBy.Order)
	}

	users, err := d.store.Users().List(ctx)
	if err != nil {
		return nil, err
	}

	nameNeedle := strings.ToLower(strings.TrimSpace(filter.NameContains))
	deptNeedle := strings.ToLower(strings.TrimSpace(filter.Department))
	out := make([]User, 0, len(users))
	for _, u := range users {
		if nameNeedle != "" && !strings.Contains(strings.ToLower(u.Name), nameNeedle) {
			continue
		}
		if deptNeedle != "" && !strings.Contains(strings.ToLower(u.Department), deptNeedle) {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if filter.RoleID != "" && u.RoleID != filter.RoleID {
			continue
		}
		out = append(out, *u)
	}

	var roleNames map[string]string
	if sortBy.Field == SortByRole {
		roles, err := d.store.Roles().List(ctx)
		if err != nil {
			return nil, err
		}
		roleNames = make(map[string]string, len(roles))
		for _, r := range roles {
			roleNames[r.ID] = strings.ToLower(r.Name)
		}
	}

	less := func(a, b User) bool {
		switch sortBy.Field {
		case SortByRole:
			na, nb := roleNames[a.RoleID], roleNames[b.RoleID]
			if na != nb {
				return na < nb
			}
		case SortByStatus:
			if a.Status != b.Status {
				return a.Status < b.Status
			}
		case SortByCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		default:
			na, nb := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if na != nb {
				return na < nb
			}
		}
		return false
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if less(a, b) {
			return sortBy.Order == OrderAsc
		}
		if less(b, a) {
			return sortBy.Order == OrderDesc
		}
		// equal on the sort key: id ascending regardless of direction
		return a.ID < b.ID
	})
	return out, nil
}
