package model

import "time"

// LinkStyleSubtask marks the system link type that connects a parent
// issue to its subtasks. Users never create or delete such links directly.
const LinkStyleSubtask = "jira_subtask"

// IssueLinkType describes a named, directed relationship between issues.
type IssueLinkType struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Outward string `json:"outward" db:"outward"`
	Inward  string `json:"inward" db:"inward"`
	Style   string `json:"style,omitempty" db:"style"`
}

// IsSystem reports whether the link type is managed internally.
func (t IssueLinkType) IsSystem() bool { return t.Style == LinkStyleSubtask }

// IssueLink is a directed link from SourceID to DestinationID.
type IssueLink struct {
	ID            string    `json:"id" db:"id"`
	TypeID        string    `json:"type_id" db:"type_id"`
	SourceID      string    `json:"source_id" db:"source_id"`
	DestinationID string    `json:"destination_id" db:"destination_id"`
	Sequence      int       `json:"sequence" db:"sequence"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RemoteIssueLink points from an issue to an object in another system.
type RemoteIssueLink struct {
	ID              string    `json:"id" db:"id"`
	IssueID         string    `json:"issue_id" db:"issue_id"`
	GlobalID        string    `json:"global_id" db:"global_id"`
	URL             string    `json:"url" db:"url"`
	Title           string    `json:"title" db:"title"`
	Summary         string    `json:"summary" db:"summary"`
	IconURL         string    `json:"icon_url" db:"icon_url"`
	Relationship    string    `json:"relationship" db:"relationship"`
	ApplicationType string    `json:"application_type" db:"application_type"`
	ApplicationName string    `json:"application_name" db:"application_name"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
