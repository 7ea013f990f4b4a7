package issuelink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// Maximum lengths of remote link fields.
const (
	maxGlobalIDLength = 255
	maxURLLength      = 2000
	maxTitleLength    = 255
)

// RemoteBuilder carries the user-supplied fields of a remote link.
type RemoteBuilder struct {
	GlobalID        string
	URL             string
	Title           string
	Summary         string
	IconURL         string
	Relationship    string
	ApplicationType string
	ApplicationName string
}

// RemoteService manages links from issues to remote objects.
type RemoteService struct {
	store   store.Store
	perms   permission.Checker
	log     *logger.Logger
	enabled bool
}

// NewRemoteService creates a remote link service. It is disabled unless
// both issue linking and remote links are enabled.
func NewRemoteService(
	s store.Store,
	perms permission.Checker,
	log *logger.Logger,
	features model.FeatureConfig,
) *RemoteService {
	return &RemoteService{
		store:   s,
		perms:   perms,
		log:     log,
		enabled: features.IssueLinking && features.RemoteLinks,
	}
}

// Enabled reports whether remote links are switched on.
func (s *RemoteService) Enabled() bool { return s.enabled }

// RemoteResult is the outcome of ValidateCreate and ValidateUpdate.
type RemoteResult struct {
	errors *errs.Collection
	issue  *model.Issue
	link   model.RemoteIssueLink
}

// IsValid reports whether the link can be stored.
func (r *RemoteResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *RemoteResult) Errors() *errs.Collection { return r.errors }

// Link returns the link as it will be stored.
func (r *RemoteResult) Link() model.RemoteIssueLink { return r.link }

// ValidateCreate checks a new remote link on issueKey. An empty global
// ID is replaced by a random UUID URN.
func (s *RemoteService) ValidateCreate(
	ctx context.Context,
	user model.User,
	issueKey string,
	b RemoteBuilder,
) *RemoteResult {
	r := &RemoteResult{errors: errs.New()}
	issue := s.checkIssue(ctx, r.errors, user, issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue

	if strings.TrimSpace(b.GlobalID) == "" {
		b.GlobalID = uuid.New().URN()
	}
	r.link = s.validateFields(r.errors, issue.ID, b)
	s.checkGlobalIDUnique(ctx, r.errors, issue.ID, "", r.link.GlobalID)
	return r
}

// Create stores the remote link validated by r.
func (s *RemoteService) Create(ctx context.Context, user model.User, r *RemoteResult) (*model.RemoteIssueLink, error) {
	if r == nil || !r.IsValid() || r.link.ID != "" {
		return nil, errs.ErrInvalidResult
	}
	link := r.link
	if err := s.store.CreateRemoteLink(ctx, &link); err != nil {
		return nil, fmt.Errorf("creating remote link on %s: %w", r.issue.Key, err)
	}
	s.log.Info("remote link created", "user", user.Name, "issue", r.issue.Key, "global_id", link.GlobalID)
	return &link, nil
}

// ValidateUpdate checks new field values for an existing remote link.
// An empty global ID keeps the current one.
func (s *RemoteService) ValidateUpdate(
	ctx context.Context,
	user model.User,
	issueKey string,
	linkID string,
	b RemoteBuilder,
) *RemoteResult {
	r := &RemoteResult{errors: errs.New()}
	issue := s.checkIssue(ctx, r.errors, user, issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue

	existing := s.loadRemoteLink(ctx, r.errors, issue, linkID)
	if existing == nil {
		return r
	}
	if strings.TrimSpace(b.GlobalID) == "" {
		b.GlobalID = existing.GlobalID
	}
	r.link = s.validateFields(r.errors, issue.ID, b)
	r.link.ID = existing.ID
	r.link.CreatedAt = existing.CreatedAt
	s.checkGlobalIDUnique(ctx, r.errors, issue.ID, existing.ID, r.link.GlobalID)
	return r
}

// Update stores the remote link validated by r.
func (s *RemoteService) Update(ctx context.Context, user model.User, r *RemoteResult) (*model.RemoteIssueLink, error) {
	if r == nil || !r.IsValid() || r.link.ID == "" {
		return nil, errs.ErrInvalidResult
	}
	if err := s.store.UpdateRemoteLink(ctx, r.link); err != nil {
		return nil, fmt.Errorf("updating remote link %s: %w", r.link.ID, err)
	}
	s.log.Info("remote link updated", "user", user.Name, "issue", r.issue.Key, "link", r.link.ID)
	return s.store.GetRemoteLink(ctx, r.link.ID)
}

// RemoteDeleteResult is the outcome of the delete validations.
type RemoteDeleteResult struct {
	errors *errs.Collection
	issue  *model.Issue
	link   *model.RemoteIssueLink
}

// IsValid reports whether the link can be deleted.
func (r *RemoteDeleteResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *RemoteDeleteResult) Errors() *errs.Collection { return r.errors }

// ValidateDelete checks that user may delete remote link linkID.
func (s *RemoteService) ValidateDelete(
	ctx context.Context,
	user model.User,
	issueKey string,
	linkID string,
) *RemoteDeleteResult {
	r := &RemoteDeleteResult{errors: errs.New()}
	issue := s.checkIssue(ctx, r.errors, user, issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue
	r.link = s.loadRemoteLink(ctx, r.errors, issue, linkID)
	return r
}

// ValidateDeleteByGlobalID checks that user may delete the remote link
// with globalID.
func (s *RemoteService) ValidateDeleteByGlobalID(
	ctx context.Context,
	user model.User,
	issueKey string,
	globalID string,
) *RemoteDeleteResult {
	r := &RemoteDeleteResult{errors: errs.New()}
	issue := s.checkIssue(ctx, r.errors, user, issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue
	link, err := s.store.GetRemoteLinkByGlobalID(ctx, issue.ID, globalID)
	if err != nil {
		if store.IsNotFound(err) {
			r.errors.AddErrorWithReason("globalId", fmt.Sprintf("No remote link with global id %q on %s.", globalID, issue.Key), errs.ReasonNotFound)
		} else {
			serverError(s.log, r.errors, "loading remote link", err)
		}
		return r
	}
	r.link = link
	return r
}

// Delete removes the remote link validated by r.
func (s *RemoteService) Delete(ctx context.Context, user model.User, r *RemoteDeleteResult) error {
	if r == nil || !r.IsValid() {
		return errs.ErrInvalidResult
	}
	if err := s.store.DeleteRemoteLink(ctx, r.link.ID); err != nil {
		return fmt.Errorf("deleting remote link %s: %w", r.link.ID, err)
	}
	s.log.Info("remote link deleted", "user", user.Name, "issue", r.issue.Key, "link", r.link.ID)
	return nil
}

// DeleteByGlobalID removes the remote link validated by
// ValidateDeleteByGlobalID.
func (s *RemoteService) DeleteByGlobalID(ctx context.Context, user model.User, r *RemoteDeleteResult) error {
	return s.Delete(ctx, user, r)
}

// GetRemoteLinks lists the remote links of an issue the user can browse.
func (s *RemoteService) GetRemoteLinks(
	ctx context.Context,
	user model.User,
	issueKey string,
) ([]model.RemoteIssueLink, error) {
	ec := errs.New()
	issue := s.browsableIssue(ctx, ec, user, issueKey)
	if issue == nil {
		return nil, ec
	}
	links, err := s.store.GetRemoteLinksForIssue(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("listing remote links of %s: %w", issue.Key, err)
	}
	return links, nil
}

// GetRemoteLinkByGlobalID returns one remote link of an issue the user
// can browse.
func (s *RemoteService) GetRemoteLinkByGlobalID(
	ctx context.Context,
	user model.User,
	issueKey string,
	globalID string,
) (*model.RemoteIssueLink, error) {
	ec := errs.New()
	issue := s.browsableIssue(ctx, ec, user, issueKey)
	if issue == nil {
		return nil, ec
	}
	link, err := s.store.GetRemoteLinkByGlobalID(ctx, issue.ID, globalID)
	if store.IsNotFound(err) {
		ec.AddErrorWithReason("globalId", fmt.Sprintf("No remote link with global id %q on %s.", globalID, issue.Key), errs.ReasonNotFound)
		return nil, ec
	}
	if err != nil {
		return nil, fmt.Errorf("loading remote link %s: %w", globalID, err)
	}
	return link, nil
}

func (s *RemoteService) browsableIssue(
	ctx context.Context,
	ec *errs.Collection,
	user model.User,
	issueKey string,
) *model.Issue {
	issue := loadIssue(ctx, s.store, s.log, ec, "issue", issueKey)
	if issue == nil {
		return nil
	}
	if !require(ctx, s.perms, s.log, ec, user, permission.Browse, issue.ProjectID,
		"You do not have permission to view this issue.") {
		return nil
	}
	return issue
}

// checkIssue verifies the feature flag, loads the issue and checks
// EDIT_ISSUE.
func (s *RemoteService) checkIssue(
	ctx context.Context,
	ec *errs.Collection,
	user model.User,
	issueKey string,
) *model.Issue {
	if !s.enabled {
		ec.AddErrorMessageWithReason("Remote issue linking is currently disabled.", errs.ReasonForbidden)
		return nil
	}
	issue := loadIssue(ctx, s.store, s.log, ec, "issue", issueKey)
	if issue == nil {
		return nil
	}
	if !require(ctx, s.perms, s.log, ec, user, permission.EditIssue, issue.ProjectID,
		"You do not have permission to edit this issue.") {
		return nil
	}
	return issue
}

func (s *RemoteService) loadRemoteLink(
	ctx context.Context,
	ec *errs.Collection,
	issue *model.Issue,
	linkID string,
) *model.RemoteIssueLink {
	link, err := s.store.GetRemoteLink(ctx, linkID)
	if err == nil && link.IssueID != issue.ID {
		err = store.ErrNotFound
	}
	if store.IsNotFound(err) {
		ec.AddErrorWithReason("id", fmt.Sprintf("No remote link with id %q on %s.", linkID, issue.Key), errs.ReasonNotFound)
		return nil
	}
	if err != nil {
		serverError(s.log, ec, "loading remote link", err)
		return nil
	}
	return link
}

// validateFields checks the builder and returns the link it describes.
func (s *RemoteService) validateFields(ec *errs.Collection, issueID string, b RemoteBuilder) model.RemoteIssueLink {
	link := model.RemoteIssueLink{
		IssueID:         issueID,
		GlobalID:        strings.TrimSpace(b.GlobalID),
		URL:             strings.TrimSpace(b.URL),
		Title:           strings.TrimSpace(b.Title),
		Summary:         b.Summary,
		IconURL:         strings.TrimSpace(b.IconURL),
		Relationship:    b.Relationship,
		ApplicationType: b.ApplicationType,
		ApplicationName: b.ApplicationName,
	}

	if utf8.RuneCountInString(link.GlobalID) > maxGlobalIDLength {
		ec.AddErrorWithReason("globalId", fmt.Sprintf("The global id must not exceed %d characters.", maxGlobalIDLength), errs.ReasonValidationFailed)
	}
	switch {
	case link.URL == "":
		ec.AddErrorWithReason("url", "A URL is required.", errs.ReasonValidationFailed)
	case utf8.RuneCountInString(link.URL) > maxURLLength:
		ec.AddErrorWithReason("url", fmt.Sprintf("The URL must not exceed %d characters.", maxURLLength), errs.ReasonValidationFailed)
	case !isAbsoluteHTTP(link.URL):
		ec.AddErrorWithReason("url", "The URL must be an absolute http or https URL.", errs.ReasonValidationFailed)
	}
	switch {
	case link.Title == "":
		ec.AddErrorWithReason("title", "A title is required.", errs.ReasonValidationFailed)
	case utf8.RuneCountInString(link.Title) > maxTitleLength:
		ec.AddErrorWithReason("title", fmt.Sprintf("The title must not exceed %d characters.", maxTitleLength), errs.ReasonValidationFailed)
	}
	if link.IconURL != "" && !isAbsoluteHTTP(link.IconURL) {
		ec.AddErrorWithReason("iconUrl", "The icon URL must be an absolute http or https URL.", errs.ReasonValidationFailed)
	}
	return link
}

func (s *RemoteService) checkGlobalIDUnique(
	ctx context.Context,
	ec *errs.Collection,
	issueID string,
	selfID string,
	globalID string,
) {
	existing, err := s.store.GetRemoteLinkByGlobalID(ctx, issueID, globalID)
	switch {
	case store.IsNotFound(err):
	case err != nil:
		serverError(s.log, ec, "checking global id", err)
	case existing.ID != selfID:
		ec.AddErrorWithReason("globalId", fmt.Sprintf("A remote link with global id %q already exists on this issue.", globalID), errs.ReasonConflict)
	}
}

func isAbsoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
