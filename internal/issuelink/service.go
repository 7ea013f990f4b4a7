// Package issuelink creates, lists and removes links between issues and
// from issues to objects in remote systems.
package issuelink

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuekey"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// Direction says which end of a link the subject issue is on.
type Direction string

const (
	Outward Direction = "outward"
	Inward  Direction = "inward"
)

// Service manages links between local issues.
type Service struct {
	store   store.Store
	perms   permission.Checker
	log     *logger.Logger
	enabled bool
}

// NewService creates a link service. Linking is refused unless
// features.IssueLinking is set.
func NewService(
	s store.Store,
	perms permission.Checker,
	log *logger.Logger,
	features model.FeatureConfig,
) *Service {
	return &Service{store: s, perms: perms, log: log, enabled: features.IssueLinking}
}

// Enabled reports whether issue linking is switched on.
func (s *Service) Enabled() bool { return s.enabled }

// AddResult is the outcome of ValidateAddIssueLinks.
type AddResult struct {
	errors    *errs.Collection
	issue     *model.Issue
	linkType  *model.IssueLinkType
	direction Direction
	targets   []model.Issue
}

// IsValid reports whether the links can be created.
func (r *AddResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *AddResult) Errors() *errs.Collection { return r.errors }

// LinkType returns the resolved link type.
func (r *AddResult) LinkType() *model.IssueLinkType { return r.linkType }

// Direction returns the resolved direction.
func (r *AddResult) Direction() Direction { return r.direction }

// Targets returns the issues that will be linked to.
func (r *AddResult) Targets() []model.Issue { return r.targets }

// ValidateAddIssueLinks checks that user may link issueKey to every key
// in keys. linkType may be a link type name or one of its outward or
// inward descriptions; a description match decides the direction.
func (s *Service) ValidateAddIssueLinks(
	ctx context.Context,
	user model.User,
	issueKey string,
	linkType string,
	direction Direction,
	keys []string,
) *AddResult {
	r := &AddResult{errors: errs.New()}

	if !s.enabled {
		r.errors.AddErrorMessageWithReason("Issue linking is currently disabled.", errs.ReasonForbidden)
		return r
	}

	issue := loadIssue(ctx, s.store, s.log, r.errors, "issue", issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue
	if !require(ctx, s.perms, s.log, r.errors, user, permission.LinkIssue, issue.ProjectID,
		"You do not have permission to link issues in this project.") {
		return r
	}

	lt, dir := s.resolveLinkType(ctx, r.errors, linkType, direction)
	if lt == nil {
		return r
	}
	r.linkType, r.direction = lt, dir

	if len(keys) == 0 {
		r.errors.AddErrorWithReason("issuelinks", "You must specify at least one issue to link to.", errs.ReasonValidationFailed)
		return r
	}

	// Per-key problems are general messages so that every key is reported.
	seen := make(map[string]bool)
	for _, raw := range keys {
		key, err := issuekey.Parse(raw)
		if err != nil {
			r.errors.AddErrorMessageWithReason(fmt.Sprintf("%q is not a valid issue key.", raw), errs.ReasonValidationFailed)
			continue
		}
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true

		target := loadIssue(ctx, s.store, s.log, r.errors, "", key.String())
		if target == nil {
			continue
		}
		if target.ID == issue.ID {
			r.errors.AddErrorMessageWithReason(fmt.Sprintf("You cannot link %s to itself.", target.Key), errs.ReasonValidationFailed)
			continue
		}
		if !require(ctx, s.perms, s.log, r.errors, user, permission.Browse, target.ProjectID,
			fmt.Sprintf("You do not have permission to view issue %s.", target.Key)) {
			continue
		}
		r.targets = append(r.targets, *target)
	}
	return r
}

// resolveLinkType finds the link type named or described by name.
func (s *Service) resolveLinkType(
	ctx context.Context,
	ec *errs.Collection,
	name string,
	direction Direction,
) (*model.IssueLinkType, Direction) {
	types, err := s.store.GetLinkTypes(ctx)
	if err != nil {
		serverError(s.log, ec, "loading link types", err)
		return nil, ""
	}
	if direction == "" {
		direction = Outward
	}
	name = strings.TrimSpace(name)

	var found *model.IssueLinkType
	for i := range types {
		lt := &types[i]
		switch {
		case strings.EqualFold(lt.Name, name):
		case strings.EqualFold(lt.Outward, name):
			direction = Outward
		case strings.EqualFold(lt.Inward, name):
			direction = Inward
		default:
			continue
		}
		found = lt
		break
	}
	if found == nil || found.IsSystem() {
		ec.AddErrorWithReason("linktype", fmt.Sprintf("No issue link type with name %q found.", name), errs.ReasonValidationFailed)
		return nil, ""
	}
	if direction != Outward && direction != Inward {
		ec.AddErrorWithReason("direction", fmt.Sprintf("Unknown link direction %q.", direction), errs.ReasonValidationFailed)
		return nil, ""
	}
	return found, direction
}

// AddIssueLinks creates the links validated by r. Links that already
// exist are left alone. It returns every link between the issue and the
// targets, new or existing.
func (s *Service) AddIssueLinks(ctx context.Context, user model.User, r *AddResult) ([]model.IssueLink, error) {
	if r == nil || !r.IsValid() {
		return nil, errs.ErrInvalidResult
	}
	out := make([]model.IssueLink, 0, len(r.targets))
	for _, target := range r.targets {
		src, dst := r.issue.ID, target.ID
		if r.direction == Inward {
			src, dst = dst, src
		}
		link, err := s.store.FindIssueLink(ctx, r.linkType.ID, src, dst)
		if err == nil {
			out = append(out, *link)
			continue
		}
		if !store.IsNotFound(err) {
			return nil, fmt.Errorf("checking link %s -> %s: %w", src, dst, err)
		}
		created := model.IssueLink{TypeID: r.linkType.ID, SourceID: src, DestinationID: dst}
		if err := s.store.CreateIssueLink(ctx, &created); err != nil {
			return nil, fmt.Errorf("linking %s to %s: %w", r.issue.Key, target.Key, err)
		}
		out = append(out, created)
	}
	s.log.Info("issue links added", "user", user.Name, "issue", r.issue.Key,
		"type", r.linkType.Name, "direction", r.direction, "count", len(out))
	return out, nil
}

// LinkedIssue is one end of a link seen from the subject issue.
type LinkedIssue struct {
	LinkID  string
	Issue   model.Issue
	Created time.Time
}

// LinkGroup holds the links of one type in one direction.
type LinkGroup struct {
	Type        model.IssueLinkType
	Direction   Direction
	Description string
	Links       []LinkedIssue
}

// LinkCollection is every visible link of an issue.
type LinkCollection struct {
	Issue  model.Issue
	Groups []LinkGroup
}

// AllIssues returns every linked issue once, in group order.
func (c *LinkCollection) AllIssues() []model.Issue {
	seen := make(map[string]bool)
	var out []model.Issue
	for _, g := range c.Groups {
		for _, l := range g.Links {
			if !seen[l.Issue.ID] {
				seen[l.Issue.ID] = true
				out = append(out, l.Issue)
			}
		}
	}
	return out
}

// GetIssueLinks returns the links of an issue grouped by type and
// direction. Links to issues the user cannot browse are dropped and
// system links are dropped unless includeSystem is set.
func (s *Service) GetIssueLinks(
	ctx context.Context,
	user model.User,
	issueKey string,
	includeSystem bool,
) (*LinkCollection, error) {
	ec := errs.New()
	issue := loadIssue(ctx, s.store, s.log, ec, "issue", issueKey)
	if issue == nil {
		return nil, ec
	}
	if !require(ctx, s.perms, s.log, ec, user, permission.Browse, issue.ProjectID,
		"You do not have permission to view this issue.") {
		return nil, ec
	}

	outward, err := s.store.GetOutwardLinks(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("loading links of %s: %w", issue.Key, err)
	}
	inward, err := s.store.GetInwardLinks(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("loading links of %s: %w", issue.Key, err)
	}

	types := make(map[string]*model.IssueLinkType)
	browsable := make(map[string]bool)
	groups := make(map[string]*LinkGroup)

	add := func(l model.IssueLink, dir Direction, otherID string) error {
		lt, ok := types[l.TypeID]
		if !ok {
			lt, err = s.store.GetLinkType(ctx, l.TypeID)
			if err != nil {
				return fmt.Errorf("loading link type %s: %w", l.TypeID, err)
			}
			types[l.TypeID] = lt
		}
		if lt.IsSystem() && !includeSystem {
			return nil
		}
		other, err := s.store.GetIssueByID(ctx, otherID)
		if err != nil {
			return fmt.Errorf("loading linked issue %s: %w", otherID, err)
		}
		visible, ok := browsable[other.ProjectID]
		if !ok {
			visible, err = s.perms.HasProjectPermission(ctx, user, permission.Browse, other.ProjectID)
			if err != nil {
				return fmt.Errorf("checking browse permission: %w", err)
			}
			browsable[other.ProjectID] = visible
		}
		if !visible {
			return nil
		}
		key := lt.ID + "/" + string(dir)
		g, ok := groups[key]
		if !ok {
			desc := lt.Outward
			if dir == Inward {
				desc = lt.Inward
			}
			g = &LinkGroup{Type: *lt, Direction: dir, Description: desc}
			groups[key] = g
		}
		g.Links = append(g.Links, LinkedIssue{LinkID: l.ID, Issue: *other, Created: l.CreatedAt})
		return nil
	}

	for _, l := range outward {
		if err := add(l, Outward, l.DestinationID); err != nil {
			return nil, err
		}
	}
	for _, l := range inward {
		if err := add(l, Inward, l.SourceID); err != nil {
			return nil, err
		}
	}

	c := &LinkCollection{Issue: *issue}
	for _, g := range groups {
		c.Groups = append(c.Groups, *g)
	}
	sort.Slice(c.Groups, func(i, j int) bool {
		a, b := c.Groups[i], c.Groups[j]
		if a.Type.Name != b.Type.Name {
			return a.Type.Name < b.Type.Name
		}
		return a.Direction == Outward && b.Direction == Inward
	})
	return c, nil
}

// DeleteResult is the outcome of ValidateDelete.
type DeleteResult struct {
	errors *errs.Collection
	issue  *model.Issue
	link   *model.IssueLink
}

// IsValid reports whether the link can be deleted.
func (r *DeleteResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *DeleteResult) Errors() *errs.Collection { return r.errors }

// ValidateDelete checks that user may remove linkID from issueKey.
func (s *Service) ValidateDelete(
	ctx context.Context,
	user model.User,
	issueKey string,
	linkID string,
) *DeleteResult {
	r := &DeleteResult{errors: errs.New()}
	if !s.enabled {
		r.errors.AddErrorMessageWithReason("Issue linking is currently disabled.", errs.ReasonForbidden)
		return r
	}
	issue := loadIssue(ctx, s.store, s.log, r.errors, "issue", issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue

	link, err := s.store.GetIssueLink(ctx, linkID)
	if err != nil {
		if store.IsNotFound(err) {
			r.errors.AddErrorWithReason("link", fmt.Sprintf("No issue link with id %q exists.", linkID), errs.ReasonNotFound)
		} else {
			serverError(s.log, r.errors, "loading link", err)
		}
		return r
	}
	if link.SourceID != issue.ID && link.DestinationID != issue.ID {
		r.errors.AddErrorWithReason("link", fmt.Sprintf("Link %q does not belong to issue %s.", linkID, issue.Key), errs.ReasonNotFound)
		return r
	}
	lt, err := s.store.GetLinkType(ctx, link.TypeID)
	if err != nil {
		serverError(s.log, r.errors, "loading link type", err)
		return r
	}
	if lt.IsSystem() {
		r.errors.AddErrorWithReason("link", "System links cannot be removed directly.", errs.ReasonValidationFailed)
		return r
	}
	if !require(ctx, s.perms, s.log, r.errors, user, permission.LinkIssue, issue.ProjectID,
		"You do not have permission to link issues in this project.") {
		return r
	}
	r.link = link
	return r
}

// Delete removes the link validated by r.
func (s *Service) Delete(ctx context.Context, user model.User, r *DeleteResult) error {
	if r == nil || !r.IsValid() {
		return errs.ErrInvalidResult
	}
	if err := s.store.DeleteIssueLink(ctx, r.link.ID); err != nil {
		return fmt.Errorf("deleting link %s: %w", r.link.ID, err)
	}
	s.log.Info("issue link deleted", "user", user.Name, "issue", r.issue.Key, "link", r.link.ID)
	return nil
}
