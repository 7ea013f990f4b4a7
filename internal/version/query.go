package version

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// GetVersionByID returns a version the user can browse. Failures are
// returned as an *errs.Collection.
func (s *Service) GetVersionByID(ctx context.Context, user model.User, id string) (*model.Version, error) {
	r := newResult()
	v := s.loadVersion(ctx, r, "id", id)
	if v == nil {
		return nil, r.errors
	}
	if !s.canBrowse(ctx, r, user, v.ProjectID) {
		return nil, r.errors
	}
	return v, nil
}

// GetVersionByProjectAndName returns the version named name,
// case-insensitively, in a project the user can browse.
func (s *Service) GetVersionByProjectAndName(
	ctx context.Context,
	user model.User,
	projectID string,
	name string,
) (*model.Version, error) {
	versions, err := s.GetVersionsByProject(ctx, user, projectID, true)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			return &v, nil
		}
	}
	ec := errs.New()
	ec.AddErrorWithReason("name", fmt.Sprintf("No version named %q in this project.", name), errs.ReasonNotFound)
	return nil, ec
}

// GetVersionsByProject lists a project's versions in sequence order.
func (s *Service) GetVersionsByProject(
	ctx context.Context,
	user model.User,
	projectID string,
	includeArchived bool,
) ([]model.Version, error) {
	r := newResult()
	if _, err := s.store.GetProjectByID(ctx, projectID); err != nil {
		if store.IsNotFound(err) {
			r.fieldError("project", "The project specified does not exist.", ReasonBadProject, errs.ReasonNotFound)
		} else {
			s.serverError(r, "loading project", err)
		}
		return nil, r.errors
	}
	if !s.canBrowse(ctx, r, user, projectID) {
		return nil, r.errors
	}
	versions, err := s.store.GetVersionsByProject(ctx, projectID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", projectID, err)
	}
	return versions, nil
}

// GetUnreleased lists the unreleased versions of a project.
func (s *Service) GetUnreleased(
	ctx context.Context,
	user model.User,
	projectID string,
	includeArchived bool,
) ([]model.Version, error) {
	return s.filter(ctx, user, projectID, includeArchived, false)
}

// GetReleased lists the released versions of a project.
func (s *Service) GetReleased(
	ctx context.Context,
	user model.User,
	projectID string,
	includeArchived bool,
) ([]model.Version, error) {
	return s.filter(ctx, user, projectID, includeArchived, true)
}

func (s *Service) filter(
	ctx context.Context,
	user model.User,
	projectID string,
	includeArchived bool,
	released bool,
) ([]model.Version, error) {
	versions, err := s.GetVersionsByProject(ctx, user, projectID, includeArchived)
	if err != nil {
		return nil, err
	}
	var out []model.Version
	for _, v := range versions {
		if v.Released == released {
			out = append(out, v)
		}
	}
	return out, nil
}

// IssueCounts reports how many issues reference the version.
func (s *Service) IssueCounts(
	ctx context.Context,
	user model.User,
	versionID string,
) (model.VersionIssueCounts, error) {
	v, err := s.GetVersionByID(ctx, user, versionID)
	if err != nil {
		return model.VersionIssueCounts{}, err
	}
	return s.store.CountVersionIssues(ctx, v.ID)
}

func (s *Service) canBrowse(ctx context.Context, r result, user model.User, projectID string) bool {
	ok, err := s.perms.HasProjectPermission(ctx, user, permission.Browse, projectID)
	if err != nil {
		s.serverError(r, "checking permissions", err)
		return false
	}
	if !ok {
		if user.IsAnonymous() {
			r.message("You must be logged in to view this project.", ReasonForbidden, errs.ReasonNotLoggedIn)
		} else {
			r.message("You do not have permission to view this project.", ReasonForbidden, errs.ReasonForbidden)
		}
		return false
	}
	return true
}
