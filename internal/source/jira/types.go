package jira

// SearchResponse is the response from POST /rest/api/2/search.
type SearchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Issue represents a single Jira issue from the REST API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains the fields read during a project export.
type IssueFields struct {
	Summary     string      `json:"summary"`
	Description string      `json:"description,omitempty"`
	Status      Status      `json:"status"`
	Priority    *Priority   `json:"priority"`
	IssueType   IssueType   `json:"issuetype"`
	Assignee    *User       `json:"assignee"`
	Reporter    *User       `json:"reporter"`
	Project     Project     `json:"project"`
	Parent      *IssueRef   `json:"parent,omitempty"`
	Versions    []Version   `json:"versions,omitempty"`
	FixVersions []Version   `json:"fixVersions,omitempty"`
	IssueLinks  []IssueLink `json:"issuelinks,omitempty"`
	Created     string      `json:"created"`
	Updated     string      `json:"updated"`
}

// IssueRef is the abbreviated issue embedded in parent and link fields.
type IssueRef struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// Status represents the status of a Jira issue.
type Status struct {
	Name           string         `json:"name"`
	ID             string         `json:"id"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

// StatusCategory is the broad category a status belongs to.
type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Priority represents the priority level of a Jira issue.
type Priority struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// IssueType represents the type of a Jira issue (Bug, Story, etc.).
type IssueType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subtask bool   `json:"subtask"`
}

// User represents a Jira user.
type User struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// Project is the response from GET /rest/api/2/project/{key}.
type Project struct {
	ID         string      `json:"id"`
	Key        string      `json:"key"`
	Name       string      `json:"name"`
	Lead       *User       `json:"lead,omitempty"`
	IssueTypes []IssueType `json:"issueTypes,omitempty"`
}

// Version is a project version as returned by
// GET /rest/api/2/project/{key}/versions.
type Version struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Released    bool   `json:"released"`
	Archived    bool   `json:"archived"`
}

// IssueLinkType is a link type from GET /rest/api/2/issueLinkType.
type IssueLinkType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// IssueLinkTypesResponse wraps the list of link types.
type IssueLinkTypesResponse struct {
	IssueLinkTypes []IssueLinkType `json:"issueLinkTypes"`
}

// IssueLink is one entry of an issue's issuelinks field. Exactly one of
// OutwardIssue and InwardIssue is set.
type IssueLink struct {
	ID           string        `json:"id"`
	Type         IssueLinkType `json:"type"`
	OutwardIssue *IssueRef     `json:"outwardIssue,omitempty"`
	InwardIssue  *IssueRef     `json:"inwardIssue,omitempty"`
}

// Myself is the response from GET /rest/api/2/myself.
type Myself struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// ErrorResponse is the standard Jira error response format.
type ErrorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}
