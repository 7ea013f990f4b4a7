// Package tabpanel assembles the activity shown on an issue's tab panels:
// comments, work logs, change history and links.
package tabpanel

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// Panel identifies a tab panel.
type Panel string

const (
	PanelAll      Panel = "all"
	PanelComments Panel = "comment"
	PanelWorklog  Panel = "worklog"
	PanelHistory  Panel = "history"
	PanelLinks    Panel = "links"
)

// ParsePanel maps a panel name to a Panel. An empty name is PanelAll.
func ParsePanel(name string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return PanelAll, nil
	case PanelAll, PanelComments, PanelWorklog, PanelHistory, PanelLinks:
		return p, nil
	case "comments":
		return PanelComments, nil
	}
	return "", fmt.Errorf("unknown panel %q", name)
}

// Action is one entry shown on a panel.
type Action struct {
	Panel   Panel     `json:"panel"`
	Time    time.Time `json:"time"`
	Author  string    `json:"author"`
	Summary string    `json:"summary"`
	Body    string    `json:"body,omitempty"`
}

// Service builds panel contents for issues.
type Service struct {
	store    store.Store
	perms    permission.Checker
	links    *issuelink.Service
	remote   *issuelink.RemoteService
	log      *logger.Logger
	features model.FeatureConfig
}

// NewService creates a Service.
func NewService(
	s store.Store,
	perms permission.Checker,
	links *issuelink.Service,
	remote *issuelink.RemoteService,
	log *logger.Logger,
	features model.FeatureConfig,
) *Service {
	return &Service{store: s, perms: perms, links: links, remote: remote, log: log, features: features}
}

// Panels lists the panels user can see on the issue, PanelAll first.
func (s *Service) Panels(ctx context.Context, user model.User, issueKey string) ([]Panel, error) {
	if _, err := s.browsableIssue(ctx, user, issueKey); err != nil {
		return nil, err
	}
	return s.visible(), nil
}

func (s *Service) visible() []Panel {
	out := []Panel{PanelAll, PanelComments}
	if s.features.TimeTracking {
		out = append(out, PanelWorklog)
	}
	out = append(out, PanelHistory)
	if s.features.IssueLinking {
		out = append(out, PanelLinks)
	}
	return out
}

// Actions returns the entries of one panel ordered by time, oldest first
// unless descending is set. PanelAll merges every visible panel.
func (s *Service) Actions(
	ctx context.Context,
	user model.User,
	issueKey string,
	panel Panel,
	descending bool,
) ([]Action, error) {
	issue, err := s.browsableIssue(ctx, user, issueKey)
	if err != nil {
		return nil, err
	}

	panels := []Panel{panel}
	if panel == PanelAll {
		panels = s.visible()[1:]
	} else if !slices.Contains(s.visible(), panel) {
		ec := errs.New()
		ec.AddErrorMessageWithReason(fmt.Sprintf("Panel %s is not available.", panel), errs.ReasonNotFound)
		return nil, ec
	}

	names := newNameCache(s.store)
	var out []Action
	for _, p := range panels {
		var actions []Action
		switch p {
		case PanelComments:
			actions, err = s.comments(ctx, issue, names)
		case PanelWorklog:
			actions, err = s.worklogs(ctx, issue, names)
		case PanelHistory:
			actions, err = s.history(ctx, issue, names)
		case PanelLinks:
			actions, err = s.linkActions(ctx, user, issue)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, actions...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Time.After(out[j].Time)
		}
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func (s *Service) browsableIssue(ctx context.Context, user model.User, key string) (*model.Issue, error) {
	ec := errs.New()
	issue, err := s.store.GetIssueByKey(ctx, key)
	if store.IsNotFound(err) {
		ec.AddErrorMessageWithReason(fmt.Sprintf("Issue %s does not exist.", key), errs.ReasonNotFound)
		return nil, ec
	}
	if err != nil {
		return nil, fmt.Errorf("loading issue %s: %w", key, err)
	}
	ok, err := s.perms.HasProjectPermission(ctx, user, permission.Browse, issue.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("checking browse permission: %w", err)
	}
	if !ok {
		if user.IsAnonymous() {
			ec.AddErrorMessageWithReason("You are not logged in.", errs.ReasonNotLoggedIn)
		} else {
			ec.AddErrorMessageWithReason("You do not have permission to view this issue.", errs.ReasonForbidden)
		}
		return nil, ec
	}
	return issue, nil
}

func (s *Service) comments(ctx context.Context, issue *model.Issue, names *nameCache) ([]Action, error) {
	comments, err := s.store.GetComments(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("loading comments of %s: %w", issue.Key, err)
	}
	out := make([]Action, 0, len(comments))
	for _, c := range comments {
		author := names.display(ctx, c.Author)
		out = append(out, Action{
			Panel:   PanelComments,
			Time:    c.CreatedAt,
			Author:  author,
			Summary: author + " added a comment",
			Body:    c.Body,
		})
	}
	return out, nil
}

func (s *Service) worklogs(ctx context.Context, issue *model.Issue, names *nameCache) ([]Action, error) {
	logs, err := s.store.GetWorklogs(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("loading worklogs of %s: %w", issue.Key, err)
	}
	out := make([]Action, 0, len(logs))
	for _, w := range logs {
		author := names.display(ctx, w.Author)
		out = append(out, Action{
			Panel:   PanelWorklog,
			Time:    w.StartedAt,
			Author:  author,
			Summary: fmt.Sprintf("%s logged %s", author, FormatDuration(w.TimeSpentS)),
			Body:    w.Comment,
		})
	}
	return out, nil
}

func (s *Service) history(ctx context.Context, issue *model.Issue, names *nameCache) ([]Action, error) {
	items, err := s.store.GetChangeItems(ctx, issue.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history of %s: %w", issue.Key, err)
	}
	out := make([]Action, 0, len(items))
	for _, c := range items {
		author := names.display(ctx, c.Author)
		out = append(out, Action{
			Panel:   PanelHistory,
			Time:    c.CreatedAt,
			Author:  author,
			Summary: fmt.Sprintf("%s changed %s", author, c.Field),
			Body:    describeChange(c),
		})
	}
	return out, nil
}

func describeChange(c model.ChangeItem) string {
	switch {
	case c.OldValue == "":
		return fmt.Sprintf("set to %q", c.NewValue)
	case c.NewValue == "":
		return fmt.Sprintf("cleared (was %q)", c.OldValue)
	default:
		return fmt.Sprintf("%q to %q", c.OldValue, c.NewValue)
	}
}

func (s *Service) linkActions(ctx context.Context, user model.User, issue *model.Issue) ([]Action, error) {
	links, err := s.links.GetIssueLinks(ctx, user, issue.Key, false)
	if err != nil {
		return nil, err
	}
	var out []Action
	for _, g := range links.Groups {
		for _, l := range g.Links {
			out = append(out, Action{
				Panel:   PanelLinks,
				Time:    l.Created,
				Summary: fmt.Sprintf("%s %s", g.Description, l.Issue.Key),
				Body:    l.Issue.Summary,
			})
		}
	}

	if !s.features.RemoteLinks {
		return out, nil
	}
	remote, err := s.remote.GetRemoteLinks(ctx, user, issue.Key)
	if err != nil {
		return nil, err
	}
	for _, r := range remote {
		rel := r.Relationship
		if rel == "" {
			rel = "links to"
		}
		out = append(out, Action{
			Panel:   PanelLinks,
			Time:    r.CreatedAt,
			Summary: fmt.Sprintf("%s %s", rel, r.Title),
			Body:    r.URL,
		})
	}
	return out, nil
}

// FormatDuration renders seconds as weeks, days, hours and minutes using
// five-day weeks and eight-hour days, e.g. "1d 2h 30m".
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return "0m"
	}
	units := []struct {
		suffix string
		size   int
	}{
		{"w", 5 * 8 * 3600},
		{"d", 8 * 3600},
		{"h", 3600},
		{"m", 60},
	}
	var parts []string
	rest := seconds
	for _, u := range units {
		if n := rest / u.size; n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
			rest -= n * u.size
		}
	}
	return strings.Join(parts, " ")
}

// nameCache resolves user names to display names for one request.
type nameCache struct {
	store store.Store
	names map[string]string
}

func newNameCache(s store.Store) *nameCache {
	return &nameCache{store: s, names: map[string]string{}}
}

func (c *nameCache) display(ctx context.Context, name string) string {
	if name == "" {
		return "Anonymous"
	}
	if d, ok := c.names[name]; ok {
		return d
	}
	d := name
	if u, err := c.store.GetUser(ctx, name); err == nil && u.DisplayName != "" {
		d = u.DisplayName
	}
	c.names[name] = d
	return d
}
