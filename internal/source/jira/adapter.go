package jira

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/source"
)

// exportFields are the Jira fields requested while exporting issues.
var exportFields = []string{
	"summary", "description", "status", "priority", "assignee",
	"reporter", "issuetype", "project", "parent", "versions",
	"fixVersions", "issuelinks", "created", "updated",
}

// searchPageSize is the maxResults sent with every search page.
const searchPageSize = 100

// Adapter implements source.ProjectSource for Jira Server/DC.
type Adapter struct {
	client *source.Client
}

// NewAdapter creates a new Jira project source.
func NewAdapter(baseURL, token string, opts ...source.ClientOption) *Adapter {
	return &Adapter{client: newClient(baseURL, token, opts...)}
}

// Type returns the source type identifier for Jira.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeJira
}

// ValidateConnection verifies credentials by calling GET /rest/api/2/myself.
// Returns the user's display name on success.
func (a *Adapter) ValidateConnection(ctx context.Context) (string, error) {
	var me Myself
	if err := a.client.Get(ctx, "/rest/api/2/myself", &me); err != nil {
		return "", fmt.Errorf("validating Jira connection: %w", err)
	}
	return me.DisplayName, nil
}

// FetchProject exports a project with its versions, issue types, link
// types, issues and the links between those issues.
func (a *Adapter) FetchProject(
	ctx context.Context,
	projectKey string,
) (*source.Snapshot, error) {
	var proj Project
	path := "/rest/api/2/project/" + url.PathEscape(projectKey)
	if err := a.client.Get(ctx, path, &proj); err != nil {
		return nil, fmt.Errorf("fetching Jira project %s: %w", projectKey, err)
	}

	var versions []Version
	if err := a.client.Get(ctx, path+"/versions", &versions); err != nil {
		return nil, fmt.Errorf("fetching versions of %s: %w", projectKey, err)
	}

	var linkTypes IssueLinkTypesResponse
	if err := a.client.Get(ctx, "/rest/api/2/issueLinkType", &linkTypes); err != nil {
		return nil, fmt.Errorf("fetching link types: %w", err)
	}

	issues, err := a.searchProjectIssues(ctx, proj.Key)
	if err != nil {
		return nil, err
	}

	return buildSnapshot(proj, versions, linkTypes.IssueLinkTypes, issues), nil
}

// searchProjectIssues pages through every issue of a project.
func (a *Adapter) searchProjectIssues(ctx context.Context, projectKey string) ([]Issue, error) {
	jql := fmt.Sprintf(`project = "%s" ORDER BY key ASC`, escapeJQL(projectKey))

	var out []Issue
	for startAt := 0; ; {
		body := map[string]any{
			"jql":        jql,
			"fields":     exportFields,
			"startAt":    startAt,
			"maxResults": searchPageSize,
		}
		var resp SearchResponse
		if err := a.client.Post(ctx, "/rest/api/2/search", body, &resp); err != nil {
			return nil, fmt.Errorf("searching issues of %s: %w", projectKey, err)
		}
		out = append(out, resp.Issues...)
		startAt += len(resp.Issues)
		if len(resp.Issues) == 0 || startAt >= resp.Total {
			return out, nil
		}
	}
}

// buildSnapshot converts Jira payloads into a source-neutral snapshot.
// Only links whose both ends belong to the exported issues are kept,
// and each link is reported once from its outward side.
func buildSnapshot(
	proj Project,
	versions []Version,
	linkTypes []IssueLinkType,
	issues []Issue,
) *source.Snapshot {
	snap := &source.Snapshot{
		Project: source.Project{ID: proj.ID, Key: proj.Key, Name: proj.Name},
	}

	users := make(map[string]source.User)
	addUser := func(u *User) string {
		if u == nil || u.Name == "" {
			return ""
		}
		users[u.Name] = source.User{Name: u.Name, DisplayName: u.DisplayName, Email: u.EmailAddress}
		return u.Name
	}
	snap.Project.Lead = addUser(proj.Lead)

	types := make(map[string]source.IssueType)
	for _, it := range proj.IssueTypes {
		types[it.ID] = source.IssueType{ID: it.ID, Name: it.Name, Subtask: it.Subtask}
	}

	for _, v := range versions {
		snap.Versions = append(snap.Versions, source.Version{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Description,
			StartDate:   v.StartDate,
			ReleaseDate: v.ReleaseDate,
			Released:    v.Released,
			Archived:    v.Archived,
		})
	}

	for _, lt := range linkTypes {
		snap.LinkTypes = append(snap.LinkTypes, source.LinkType{
			ID: lt.ID, Name: lt.Name, Outward: lt.Outward, Inward: lt.Inward,
		})
	}

	exported := make(map[string]bool, len(issues))
	for _, is := range issues {
		exported[is.ID] = true
	}

	for _, is := range issues {
		f := is.Fields
		types[f.IssueType.ID] = source.IssueType{ID: f.IssueType.ID, Name: f.IssueType.Name, Subtask: f.IssueType.Subtask}

		out := source.Issue{
			ID:              is.ID,
			Key:             is.Key,
			TypeID:          f.IssueType.ID,
			Summary:         f.Summary,
			Description:     f.Description,
			Status:          normalizeStatus(f.Status),
			Priority:        normalizePriority(f.Priority),
			Reporter:        addUser(f.Reporter),
			Assignee:        addUser(f.Assignee),
			AffectsVersions: versionIDs(f.Versions),
			FixVersions:     versionIDs(f.FixVersions),
		}
		if f.Parent != nil {
			out.ParentID = f.Parent.ID
		}
		snap.Issues = append(snap.Issues, out)

		for _, l := range f.IssueLinks {
			if l.OutwardIssue == nil || !exported[l.OutwardIssue.ID] {
				continue
			}
			snap.Links = append(snap.Links, source.Link{
				TypeID:        l.Type.ID,
				SourceID:      is.ID,
				DestinationID: l.OutwardIssue.ID,
			})
		}
	}

	for _, u := range users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].Name < snap.Users[j].Name })

	for _, it := range types {
		snap.IssueTypes = append(snap.IssueTypes, it)
	}
	sort.Slice(snap.IssueTypes, func(i, j int) bool { return snap.IssueTypes[i].ID < snap.IssueTypes[j].ID })

	return snap
}

func versionIDs(vs []Version) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.ID)
	}
	return out
}

// normalizeStatus maps a Jira status to a normalized status constant.
// It first checks if the status name contains "review" (case-insensitive),
// then falls back to the status category key mapping.
func normalizeStatus(status Status) string {
	if strings.Contains(strings.ToLower(status.Name), "review") {
		return model.StatusReview
	}

	switch strings.ToLower(status.StatusCategory.Key) {
	case "new":
		return model.StatusOpen
	case "indeterminate":
		return model.StatusInProgress
	case "done":
		return model.StatusDone
	default:
		return model.StatusOpen
	}
}

// normalizePriority maps a Jira priority ID to a normalized priority level.
func normalizePriority(priority *Priority) int {
	if priority == nil {
		return model.PriorityMedium
	}
	id, err := strconv.Atoi(priority.ID)
	if err != nil {
		return model.PriorityMedium
	}

	switch {
	case id <= 2:
		return model.PriorityCritical
	case id == 3:
		return model.PriorityHigh
	case id == 4:
		return model.PriorityMedium
	case id == 5:
		return model.PriorityLow
	default:
		return model.PriorityLowest
	}
}

// escapeJQL escapes special characters in a quoted JQL value.
func escapeJQL(s string) string {
	// Escape backslashes first, then double-quotes.
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
