package services

import (
	"context"
	"errors"
	"strings"

	"nagarseva-be/models"
	"nagarseva-be/store"
)

// AssignmentResolver maps an issue's free-text area name to an active
// AdministrativeArea and its responsible super admin. It is a pure lookup,
// invoked exactly once per issue at creation time.
type AssignmentResolver struct {
	Store store.Store
}

// Resolve matches areaName case-insensitively against active area names.
// A nil area means no match; a non-nil area with a nil admin means the area
// exists but has nobody to triage it. Neither case is an error.
func (r *AssignmentResolver) Resolve(ctx context.Context, areaName string) (*models.AdministrativeArea, *models.User, error) {
	name := strings.TrimSpace(areaName)
	if name == "" {
		return nil, nil, nil
	}

	area, err := r.Store.ActiveAreaByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if area.AreaSuperAdminID == nil {
		return area, nil, nil
	}

	admin, err := r.Store.UserByID(ctx, *area.AreaSuperAdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return area, nil, nil
		}
		return nil, nil, err
	}
	return area, admin, nil
}
