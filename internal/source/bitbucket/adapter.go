package bitbucket

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/tracker/internal/issuekey"
	"github.com/nhle/tracker/internal/source"
)

const (
	// ApplicationType and ApplicationName tag the remote links created
	// for pull requests.
	ApplicationType = "com.atlassian.bitbucket"
	ApplicationName = "Bitbucket"

	// Relationship describes how a pull request relates to an issue.
	Relationship = "mentioned in"

	maxTitleRunes = 255
)

// Repo names a repository as PROJECT/slug.
type Repo struct {
	Project string
	Slug    string
}

// ParseRepo parses "PROJECT/slug".
func ParseRepo(s string) (Repo, error) {
	project, slug, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || project == "" || slug == "" || strings.Contains(slug, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q, want PROJECT/slug", s)
	}
	return Repo{Project: project, Slug: slug}, nil
}

func (r Repo) String() string { return r.Project + "/" + r.Slug }

// Adapter implements source.LinkSource for Bitbucket Server/DC. Pull
// requests whose title or source branch mention an issue key become
// development links on that issue.
type Adapter struct {
	client   *source.Client
	repos    []Repo
	pageSize int
}

// NewAdapter creates a new Bitbucket source adapter scanning repos.
func NewAdapter(baseURL, token string, repos []Repo) *Adapter {
	return &Adapter{
		client:   newClient(baseURL, token),
		repos:    repos,
		pageSize: 50,
	}
}

// Type returns the source type identifier for Bitbucket.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeBitbucket
}

// ValidateConnection verifies credentials by calling the whoami
// endpoint and then fetching the user's display name.
func (a *Adapter) ValidateConnection(
	ctx context.Context,
) (string, error) {
	username, err := a.client.GetText(
		ctx, "/plugins/servlet/applinks/whoami",
	)
	if err != nil {
		return "", fmt.Errorf(
			"validating Bitbucket connection: %w", err,
		)
	}

	if username == "" {
		return "", fmt.Errorf(
			"whoami returned empty username; token may be invalid",
		)
	}

	var user User
	userPath := "/rest/api/1.0/users/" + url.PathEscape(username)
	if err := a.client.Get(ctx, userPath, &user); err != nil {
		// If user lookup fails, fall back to the username.
		return username, nil
	}

	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return username, nil
}

// FetchDevLinks lists the pull requests of every configured repository
// in any state and returns one link per mentioned issue key.
func (a *Adapter) FetchDevLinks(ctx context.Context) ([]source.DevLink, error) {
	var links []source.DevLink
	for _, repo := range a.repos {
		path := fmt.Sprintf(
			"/rest/api/1.0/projects/%s/repos/%s/pull-requests?state=ALL",
			url.PathEscape(repo.Project), url.PathEscape(repo.Slug),
		)
		prs, err := getAllPRPages(ctx, a.client, path, a.pageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching pull requests of %s: %w", repo, err)
		}
		for _, pr := range prs {
			links = append(links, a.prLinks(repo, pr)...)
		}
	}
	return links, nil
}

func (a *Adapter) prLinks(repo Repo, pr PullRequest) []source.DevLink {
	keys := issuekey.Extract(pr.Title + " " + pr.FromRef.DisplayID)
	if len(keys) == 0 {
		return nil
	}

	title := truncateRunes(fmt.Sprintf("PR #%d: %s", pr.ID, pr.Title), maxTitleRunes)
	summary := fmt.Sprintf("%s, %s into %s", normalizeState(pr.State), pr.FromRef.DisplayID, pr.ToRef.DisplayID)
	if pr.Author.User.DisplayName != "" {
		summary += " by " + pr.Author.User.DisplayName
	}

	out := make([]source.DevLink, 0, len(keys))
	for _, key := range keys {
		out = append(out, source.DevLink{
			IssueKey:        key,
			GlobalID:        prGlobalID(repo, pr.ID),
			URL:             a.prURL(repo, pr),
			Title:           title,
			Summary:         summary,
			Relationship:    Relationship,
			ApplicationType: ApplicationType,
			ApplicationName: ApplicationName,
		})
	}
	return out
}

// prURL prefers the self link the server reports.
func (a *Adapter) prURL(repo Repo, pr PullRequest) string {
	if len(pr.Links.Self) > 0 && pr.Links.Self[0].Href != "" {
		return pr.Links.Self[0].Href
	}
	return fmt.Sprintf("%s/projects/%s/repos/%s/pull-requests/%d",
		a.client.BaseURL(), url.PathEscape(repo.Project), url.PathEscape(repo.Slug), pr.ID)
}

func prGlobalID(repo Repo, id int) string {
	return fmt.Sprintf("bitbucket:%s/pull-requests/%d", repo, id)
}

func normalizeState(state string) string {
	switch strings.ToUpper(state) {
	case "OPEN":
		return "open"
	case "MERGED":
		return "merged"
	case "DECLINED":
		return "declined"
	default:
		return strings.ToLower(state)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
