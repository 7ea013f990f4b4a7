// Package version manages the lifecycle of project versions: creation,
// editing, ordering, release, archiving, merging and deletion.
//
// Every mutating operation is split in two. A Validate call checks
// permissions and input, collecting problems in an errs.Collection, and
// returns a result. The matching execute call accepts only a valid
// result and returns errs.ErrInvalidResult otherwise.
package version

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// DateLayout is the layout accepted for start and release dates.
const DateLayout = "2006-01-02"

// MaxNameLength is the longest version name accepted, in runes.
const MaxNameLength = 255

// Reason explains why a version operation was rejected, more precisely
// than the generic errs reasons.
type Reason string

const (
	ReasonBadProject           Reason = "BAD_PROJECT"
	ReasonForbidden            Reason = "FORBIDDEN"
	ReasonBadName              Reason = "BAD_NAME"
	ReasonNameTooLong          Reason = "VERSION_NAME_TOO_LONG"
	ReasonDuplicateName        Reason = "DUPLICATE_NAME"
	ReasonBadStartDate         Reason = "BAD_START_DATE"
	ReasonBadReleaseDate       Reason = "BAD_RELEASE_DATE"
	ReasonBadStartReleaseOrder Reason = "BAD_START_RELEASE_DATE_ORDER"
	ReasonBadSchedule          Reason = "BAD_SCHEDULE_AFTER"
	ReasonNotFound             Reason = "NOT_FOUND"
	ReasonSwapToVersionInvalid Reason = "SWAP_TO_VERSION_INVALID"
	ReasonAlreadyReleased      Reason = "ALREADY_RELEASED"
	ReasonNotReleased          Reason = "NOT_RELEASED"
	ReasonAlreadyArchived      Reason = "ALREADY_ARCHIVED"
	ReasonNotArchived          Reason = "NOT_ARCHIVED"
	ReasonBadMove              Reason = "BAD_MOVE"
	ReasonServerError          Reason = "SERVER_ERROR"
)

// Builder carries the user-supplied fields of a version. StartDate and
// ReleaseDate use DateLayout and may be empty. ScheduleAfter places a new
// version directly after the version with that ID; empty appends it.
type Builder struct {
	ProjectID     string
	Name          string
	Description   string
	StartDate     string
	ReleaseDate   string
	ScheduleAfter string
}

// result holds what every validation result shares.
type result struct {
	errors  *errs.Collection
	reasons map[Reason]struct{}
}

func newResult() result {
	return result{errors: errs.New(), reasons: make(map[Reason]struct{})}
}

// IsValid reports whether the result can be executed.
func (r result) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r result) Errors() *errs.Collection { return r.errors }

// Reasons returns the version-specific reasons, sorted.
func (r result) Reasons() []Reason {
	out := make([]Reason, 0, len(r.reasons))
	for reason := range r.reasons {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasReason reports whether reason was recorded.
func (r result) HasReason(reason Reason) bool {
	_, ok := r.reasons[reason]
	return ok
}

func (r result) fieldError(field, msg string, reason Reason, generic errs.Reason) {
	r.errors.AddErrorWithReason(field, msg, generic)
	r.reasons[reason] = struct{}{}
}

func (r result) message(msg string, reason Reason, generic errs.Reason) {
	r.errors.AddErrorMessageWithReason(msg, generic)
	r.reasons[reason] = struct{}{}
}

// CreateResult is the outcome of ValidateCreate.
type CreateResult struct {
	result
	project       *model.Project
	version       model.Version
	scheduleAfter string
}

// Project returns the project the version will be created in.
func (r *CreateResult) Project() *model.Project { return r.project }

// UpdateResult is the outcome of ValidateUpdate.
type UpdateResult struct {
	result
	updated model.Version
}

// Version returns the version as it will be after the update.
func (r *UpdateResult) Version() model.Version { return r.updated }

// Service implements version management on top of a store.
type Service struct {
	store store.Store
	perms permission.Checker
	log   *logger.Logger
	now   func() time.Time
}

// NewService creates a version service.
func NewService(s store.Store, perms permission.Checker, log *logger.Logger) *Service {
	return &Service{store: s, perms: perms, log: log, now: time.Now}
}

// ValidateCreate checks that user may create the version described by b.
func (s *Service) ValidateCreate(ctx context.Context, user model.User, b Builder) *CreateResult {
	r := &CreateResult{result: newResult(), scheduleAfter: b.ScheduleAfter}

	project, err := s.store.GetProjectByID(ctx, b.ProjectID)
	if err != nil {
		if store.IsNotFound(err) {
			r.fieldError("project", "The project specified does not exist.", ReasonBadProject, errs.ReasonNotFound)
		} else {
			s.serverError(r.result, "loading project", err)
		}
		return r
	}
	r.project = project

	if !s.canAdminister(ctx, r.result, user, project.ID) {
		return r
	}

	r.version = model.Version{ProjectID: project.ID, Description: b.Description}
	name := s.validateName(ctx, r.result, project.ID, "", b.Name)
	r.version.Name = name
	r.version.StartDate, r.version.ReleaseDate = validateDates(r.result, b.StartDate, b.ReleaseDate)

	if b.ScheduleAfter != "" {
		after, err := s.store.GetVersionByID(ctx, b.ScheduleAfter)
		switch {
		case store.IsNotFound(err) || (err == nil && after.ProjectID != project.ID):
			r.fieldError("scheduleAfter", "The version to schedule after does not exist in this project.", ReasonBadSchedule, errs.ReasonValidationFailed)
		case err != nil:
			s.serverError(r.result, "loading version", err)
		}
	}
	return r
}

// Create creates the version validated by r.
func (s *Service) Create(ctx context.Context, user model.User, r *CreateResult) (*model.Version, error) {
	if r == nil || !r.IsValid() {
		return nil, errs.ErrInvalidResult
	}
	v := r.version
	if err := s.store.CreateVersion(ctx, &v); err != nil {
		return nil, fmt.Errorf("creating version %s: %w", v.Name, err)
	}
	if r.scheduleAfter != "" {
		if err := s.placeAfter(ctx, v.ProjectID, v.ID, r.scheduleAfter); err != nil {
			return nil, err
		}
		created, err := s.store.GetVersionByID(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("reloading version %s: %w", v.ID, err)
		}
		v = *created
	}
	s.log.Info("version created", "user", user.Name, "project", v.ProjectID, "version", v.Name)
	return &v, nil
}

// ValidateUpdate checks that user may change the version to match b.
// b.ProjectID and b.ScheduleAfter are ignored.
func (s *Service) ValidateUpdate(
	ctx context.Context,
	user model.User,
	versionID string,
	b Builder,
) *UpdateResult {
	r := &UpdateResult{result: newResult()}

	v := s.loadVersion(ctx, r.result, "id", versionID)
	if v == nil {
		return r
	}
	if !s.canAdminister(ctx, r.result, user, v.ProjectID) {
		return r
	}

	r.updated = *v
	r.updated.Name = s.validateName(ctx, r.result, v.ProjectID, v.ID, b.Name)
	r.updated.Description = b.Description
	r.updated.StartDate, r.updated.ReleaseDate = validateDates(r.result, b.StartDate, b.ReleaseDate)
	return r
}

// Update stores the version validated by r.
func (s *Service) Update(ctx context.Context, user model.User, r *UpdateResult) (*model.Version, error) {
	if r == nil || !r.IsValid() {
		return nil, errs.ErrInvalidResult
	}
	if err := s.store.UpdateVersion(ctx, r.updated); err != nil {
		return nil, fmt.Errorf("updating version %s: %w", r.updated.ID, err)
	}
	s.log.Info("version updated", "user", user.Name, "version", r.updated.ID)
	return s.store.GetVersionByID(ctx, r.updated.ID)
}

// validateName checks name and returns it trimmed. selfID is excluded
// from the duplicate check.
func (s *Service) validateName(ctx context.Context, r result, projectID, selfID, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		r.fieldError("name", "You must specify a valid version name.", ReasonBadName, errs.ReasonValidationFailed)
		return name
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		r.fieldError("name", fmt.Sprintf("The version name must not exceed %d characters.", MaxNameLength), ReasonNameTooLong, errs.ReasonValidationFailed)
		return name
	}
	versions, err := s.store.GetVersionsByProject(ctx, projectID, true)
	if err != nil {
		s.serverError(r, "loading versions", err)
		return name
	}
	for _, other := range versions {
		if other.ID != selfID && strings.EqualFold(other.Name, name) {
			r.fieldError("name", fmt.Sprintf("A version with the name %q already exists in this project.", name), ReasonDuplicateName, errs.ReasonValidationFailed)
			break
		}
	}
	return name
}

// validateDates parses the optional start and release dates and checks
// their order.
func validateDates(r result, start, release string) (*time.Time, *time.Time) {
	startDate := parseDate(r, "startDate", start, ReasonBadStartDate)
	releaseDate := parseDate(r, "releaseDate", release, ReasonBadReleaseDate)
	if startDate != nil && releaseDate != nil && startDate.After(*releaseDate) {
		r.fieldError("startDate", "The start date must be on or before the release date.", ReasonBadStartReleaseOrder, errs.ReasonValidationFailed)
	}
	return startDate, releaseDate
}

// parseDate returns nil for an empty value and records reason for an
// unparseable one.
func parseDate(r result, field, value string, reason Reason) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		r.fieldError(field, fmt.Sprintf("Invalid date %q, expected format %s.", value, DateLayout), reason, errs.ReasonValidationFailed)
		return nil
	}
	return &t
}

// canAdminister records FORBIDDEN unless user administers the project.
func (s *Service) canAdminister(ctx context.Context, r result, user model.User, projectID string) bool {
	if user.IsAnonymous() {
		r.message("You must be logged in to manage versions.", ReasonForbidden, errs.ReasonNotLoggedIn)
		return false
	}
	ok, err := permission.CanAdministerProject(ctx, s.perms, user, projectID)
	if err != nil {
		s.serverError(r, "checking permissions", err)
		return false
	}
	if !ok {
		r.message("You do not have permission to manage versions of this project.", ReasonForbidden, errs.ReasonForbidden)
		return false
	}
	return true
}

// loadVersion fetches a version, recording NOT_FOUND against field.
func (s *Service) loadVersion(ctx context.Context, r result, field, id string) *model.Version {
	v, err := s.store.GetVersionByID(ctx, id)
	if store.IsNotFound(err) {
		r.fieldError(field, fmt.Sprintf("Version %q does not exist.", id), ReasonNotFound, errs.ReasonNotFound)
		return nil
	}
	if err != nil {
		s.serverError(r, "loading version", err)
		return nil
	}
	return v
}

func (s *Service) serverError(r result, what string, err error) {
	s.log.Error("version service failure", "op", what, "error", err)
	r.message(fmt.Sprintf("Internal error while %s.", what), ReasonServerError, errs.ReasonServerError)
}
