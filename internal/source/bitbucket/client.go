package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/source"
)

// newClient returns a client for the Bitbucket Server REST API.
func newClient(baseURL, token string) *source.Client {
	return source.NewClient(source.SourceTypeBitbucket, baseURL, token,
		source.WithErrorDecoder(errorMessage))
}

// errorMessage joins the messages of a BBErrorResponse body.
func errorMessage(body []byte) string {
	var resp BBErrorResponse
	if json.Unmarshal(body, &resp) != nil || len(resp.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(resp.Errors))
	for _, e := range resp.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// getAllPRPages follows isLastPage/nextPageStart until every pull
// request of path has been read.
func getAllPRPages(ctx context.Context, c *source.Client, path string, limit int) ([]PullRequest, error) {
	if limit <= 0 {
		limit = 25
	}
	separator := "?"
	if strings.Contains(path, "?") {
		separator = "&"
	}

	var all []PullRequest
	for start := 0; ; {
		var page PullRequestPage
		if err := c.Get(ctx, fmt.Sprintf("%s%sstart=%d&limit=%d", path, separator, start, limit), &page); err != nil {
			return nil, err
		}
		all = append(all, page.Values...)
		if page.IsLastPage || len(page.Values) == 0 {
			return all, nil
		}
		start = page.NextPageStart
	}
}
