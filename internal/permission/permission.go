package permission

import (
	"context"
	"fmt"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// Permission names a capability a user can be granted.
type Permission string

const (
	Administer   Permission = "ADMINISTER"
	ProjectAdmin Permission = "PROJECT_ADMIN"
	Browse       Permission = "BROWSE"
	CreateIssue  Permission = "CREATE_ISSUE"
	EditIssue    Permission = "EDIT_ISSUE"
	LinkIssue    Permission = "LINK_ISSUE"
	MoveIssue    Permission = "MOVE_ISSUE"
)

// Checker answers permission questions for service validation steps.
type Checker interface {
	HasGlobalPermission(ctx context.Context, user model.User, p Permission) (bool, error)
	HasProjectPermission(ctx context.Context, user model.User, p Permission, projectID string) (bool, error)
}

// GrantReader is the slice of the store the checker needs.
type GrantReader interface {
	GetGrants(ctx context.Context, userName string) ([]store.Grant, error)
}

// StoreChecker resolves permissions from grants recorded in the store.
// A global ADMINISTER grant implies every permission; a global grant of
// any other permission applies to every project.
type StoreChecker struct {
	grants GrantReader
}

// NewStoreChecker creates a checker backed by grants.
func NewStoreChecker(grants GrantReader) *StoreChecker {
	return &StoreChecker{grants: grants}
}

// HasGlobalPermission reports whether user holds p globally.
func (c *StoreChecker) HasGlobalPermission(
	ctx context.Context,
	user model.User,
	p Permission,
) (bool, error) {
	return c.has(ctx, user, p, "")
}

// HasProjectPermission reports whether user holds p on projectID.
func (c *StoreChecker) HasProjectPermission(
	ctx context.Context,
	user model.User,
	p Permission,
	projectID string,
) (bool, error) {
	return c.has(ctx, user, p, projectID)
}

func (c *StoreChecker) has(
	ctx context.Context,
	user model.User,
	p Permission,
	projectID string,
) (bool, error) {
	if user.IsAnonymous() {
		return false, nil
	}
	grants, err := c.grants.GetGrants(ctx, user.Name)
	if err != nil {
		return false, fmt.Errorf("loading grants for %s: %w", user.Name, err)
	}
	for _, g := range grants {
		if g.ProjectID == "" && Permission(g.Permission) == Administer {
			return true, nil
		}
		if Permission(g.Permission) != p {
			continue
		}
		if g.ProjectID == "" || g.ProjectID == projectID {
			return true, nil
		}
	}
	return false, nil
}

// CanAdministerProject reports whether user is a global or project admin.
func CanAdministerProject(
	ctx context.Context,
	c Checker,
	user model.User,
	projectID string,
) (bool, error) {
	ok, err := c.HasGlobalPermission(ctx, user, Administer)
	if err != nil || ok {
		return ok, err
	}
	return c.HasProjectPermission(ctx, user, ProjectAdmin, projectID)
}
