package version

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// StatusResult is the outcome of the release, unrelease, archive and
// unarchive validations.
type StatusResult struct {
	result
	version *model.Version
	updated model.Version
	moveTo  *model.Version
}

// Version returns the version as it will be after the change.
func (r *StatusResult) Version() model.Version { return r.updated }

// MoveUnresolvedTo returns the version unresolved fix issues move to on
// release, or nil.
func (r *StatusResult) MoveUnresolvedTo() *model.Version { return r.moveTo }

// ValidateRelease checks that the version can be released. releaseDate
// uses DateLayout; empty means today. When moveUnresolvedTo is set, the
// unresolved issues fixed in this version are rescheduled to it.
func (s *Service) ValidateRelease(
	ctx context.Context,
	user model.User,
	versionID string,
	releaseDate string,
	moveUnresolvedTo string,
) *StatusResult {
	r, v := s.validateStatusChange(ctx, user, versionID)
	if v == nil {
		return r
	}
	if v.Released {
		r.fieldError("released", "The version is already released.", ReasonAlreadyReleased, errs.ReasonValidationFailed)
		return r
	}

	date := parseDate(r.result, "releaseDate", releaseDate, ReasonBadReleaseDate)
	if date == nil && releaseDate == "" {
		today := s.now().UTC().Truncate(24 * time.Hour)
		date = &today
	}
	if date != nil && v.StartDate != nil && v.StartDate.After(*date) {
		r.fieldError("releaseDate", "The release date must be on or after the start date.", ReasonBadStartReleaseOrder, errs.ReasonValidationFailed)
	}
	r.updated.Released = true
	r.updated.ReleaseDate = date

	if moveUnresolvedTo != "" {
		r.moveTo = s.validateMoveTarget(ctx, r.result, v, moveUnresolvedTo)
	}
	return r
}

// validateMoveTarget checks the version unresolved issues are moved to
// on release.
func (s *Service) validateMoveTarget(
	ctx context.Context,
	r result,
	v *model.Version,
	targetID string,
) *model.Version {
	if targetID == v.ID {
		r.fieldError("moveUnfixedIssuesTo", "Cannot move issues to the version being released.", ReasonSwapToVersionInvalid, errs.ReasonValidationFailed)
		return nil
	}
	target, err := s.store.GetVersionByID(ctx, targetID)
	if err != nil {
		if store.IsNotFound(err) {
			r.fieldError("moveUnfixedIssuesTo", fmt.Sprintf("Version %q does not exist.", targetID), ReasonSwapToVersionInvalid, errs.ReasonValidationFailed)
			return nil
		}
		s.serverError(r, "loading version", err)
		return nil
	}
	if target.ProjectID != v.ProjectID || target.Archived {
		r.fieldError("moveUnfixedIssuesTo", "Issues can only move to an unarchived version of the same project.", ReasonSwapToVersionInvalid, errs.ReasonValidationFailed)
		return nil
	}
	return target
}

// Release marks the version released, first moving unresolved issues
// when requested.
func (s *Service) Release(ctx context.Context, user model.User, r *StatusResult) (*model.Version, error) {
	if r == nil || !r.IsValid() || !r.updated.Released {
		return nil, errs.ErrInvalidResult
	}
	if r.moveTo != nil {
		moved, err := s.store.MoveUnresolvedFixIssues(ctx, r.version.ID, r.moveTo.ID)
		if err != nil {
			return nil, fmt.Errorf("moving unresolved issues of %s: %w", r.version.ID, err)
		}
		s.log.Info("moved unresolved issues", "from", r.version.ID, "to", r.moveTo.ID, "count", moved)
	}
	return s.applyStatus(ctx, user, r, "released")
}

// ValidateUnrelease checks that the version is released.
func (s *Service) ValidateUnrelease(ctx context.Context, user model.User, versionID string) *StatusResult {
	r, v := s.validateStatusChange(ctx, user, versionID)
	if v == nil {
		return r
	}
	if !v.Released {
		r.fieldError("released", "The version is not released.", ReasonNotReleased, errs.ReasonValidationFailed)
	}
	r.updated.Released = false
	return r
}

// Unrelease marks the version unreleased. The release date is kept.
func (s *Service) Unrelease(ctx context.Context, user model.User, r *StatusResult) (*model.Version, error) {
	if r == nil || !r.IsValid() || r.updated.Released {
		return nil, errs.ErrInvalidResult
	}
	return s.applyStatus(ctx, user, r, "unreleased")
}

// ValidateArchive checks that the version is not archived yet.
func (s *Service) ValidateArchive(ctx context.Context, user model.User, versionID string) *StatusResult {
	r, v := s.validateStatusChange(ctx, user, versionID)
	if v == nil {
		return r
	}
	if v.Archived {
		r.fieldError("archived", "The version is already archived.", ReasonAlreadyArchived, errs.ReasonValidationFailed)
	}
	r.updated.Archived = true
	return r
}

// Archive hides the version from unarchived listings.
func (s *Service) Archive(ctx context.Context, user model.User, r *StatusResult) (*model.Version, error) {
	if r == nil || !r.IsValid() || !r.updated.Archived {
		return nil, errs.ErrInvalidResult
	}
	return s.applyStatus(ctx, user, r, "archived")
}

// ValidateUnarchive checks that the version is archived.
func (s *Service) ValidateUnarchive(ctx context.Context, user model.User, versionID string) *StatusResult {
	r, v := s.validateStatusChange(ctx, user, versionID)
	if v == nil {
		return r
	}
	if !v.Archived {
		r.fieldError("archived", "The version is not archived.", ReasonNotArchived, errs.ReasonValidationFailed)
	}
	r.updated.Archived = false
	return r
}

// Unarchive restores an archived version.
func (s *Service) Unarchive(ctx context.Context, user model.User, r *StatusResult) (*model.Version, error) {
	if r == nil || !r.IsValid() || r.updated.Archived {
		return nil, errs.ErrInvalidResult
	}
	return s.applyStatus(ctx, user, r, "unarchived")
}

// validateStatusChange loads the version and checks permissions. It
// returns a nil version when validation cannot continue.
func (s *Service) validateStatusChange(
	ctx context.Context,
	user model.User,
	versionID string,
) (*StatusResult, *model.Version) {
	r := &StatusResult{result: newResult()}
	v := s.loadVersion(ctx, r.result, "id", versionID)
	if v == nil {
		return r, nil
	}
	r.version = v
	r.updated = *v
	if !s.canAdminister(ctx, r.result, user, v.ProjectID) {
		return r, nil
	}
	return r, v
}

func (s *Service) applyStatus(
	ctx context.Context,
	user model.User,
	r *StatusResult,
	event string,
) (*model.Version, error) {
	if err := s.store.UpdateVersion(ctx, r.updated); err != nil {
		return nil, fmt.Errorf("updating version %s: %w", r.updated.ID, err)
	}
	s.log.Info("version "+event, "user", user.Name, "version", r.updated.ID)
	return s.store.GetVersionByID(ctx, r.updated.ID)
}
