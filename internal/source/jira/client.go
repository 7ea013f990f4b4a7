package jira

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/source"
)

// newClient returns a client for the Jira REST API v2.
func newClient(baseURL, token string, opts ...source.ClientOption) *source.Client {
	opts = append([]source.ClientOption{source.WithErrorDecoder(errorMessage)}, opts...)
	return source.NewClient(source.SourceTypeJira, baseURL, token, opts...)
}

// errorMessage flattens a Jira ErrorResponse body.
func errorMessage(body []byte) string {
	var resp ErrorResponse
	if json.Unmarshal(body, &resp) != nil || (len(resp.ErrorMessages) == 0 && len(resp.Errors) == 0) {
		return ""
	}
	msg := strings.Join(resp.ErrorMessages, "; ")
	if len(resp.Errors) > 0 {
		msg = strings.TrimSpace(fmt.Sprintf("%s %v", msg, resp.Errors))
	}
	return msg
}
