// Package source defines how a project snapshot is pulled from another
// issue tracker for import.
package source

import (
	"context"
	"errors"
	"fmt"
)

// AuthError indicates that authentication has failed or expired for a source.
// It is returned by source clients when a 401 response is received.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of external source integration.
type SourceType string

const (
	SourceTypeJira      SourceType = "jira"
	SourceTypeBitbucket SourceType = "bitbucket"
)

// Project is the exported project header. IDs are the source's own.
type Project struct {
	ID   string
	Key  string
	Name string
	Lead string
}

// User is an exported user account.
type User struct {
	Name        string
	DisplayName string
	Email       string
}

// IssueType is an exported issue type.
type IssueType struct {
	ID      string
	Name    string
	Subtask bool
}

// LinkType is an exported issue link type.
type LinkType struct {
	ID      string
	Name    string
	Outward string
	Inward  string
}

// Version is an exported project version. Dates use 2006-01-02.
type Version struct {
	ID          string
	Name        string
	Description string
	StartDate   string
	ReleaseDate string
	Released    bool
	Archived    bool
}

// Issue is an exported issue. Version, type, parent and user references
// hold source IDs or user names.
type Issue struct {
	ID              string
	Key             string
	TypeID          string
	Summary         string
	Description     string
	Status          string
	Priority        int
	ParentID        string
	Reporter        string
	Assignee        string
	AffectsVersions []string
	FixVersions     []string
}

// Link is an exported directed issue link.
type Link struct {
	TypeID        string
	SourceID      string
	DestinationID string
}

// Snapshot is everything an import reads from the source project.
type Snapshot struct {
	Project    Project
	Users      []User
	IssueTypes []IssueType
	LinkTypes  []LinkType
	Versions   []Version
	Issues     []Issue
	Links      []Link
}

// ProjectSource is implemented by every tracker a project can be
// imported from.
type ProjectSource interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchProject reads the project with the given key and everything
	// it references.
	FetchProject(ctx context.Context, projectKey string) (*Snapshot, error)
}

// DevLink is a development artifact, such as a pull request, that
// mentions an issue. It becomes a remote link on that issue.
type DevLink struct {
	IssueKey        string
	GlobalID        string
	URL             string
	Title           string
	Summary         string
	Relationship    string
	ApplicationType string
	ApplicationName string
}

// LinkSource is implemented by code hosts whose artifacts are linked to
// issues.
type LinkSource interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ValidateConnection verifies credentials and connectivity.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchDevLinks returns one DevLink per artifact and mentioned issue.
	FetchDevLinks(ctx context.Context) ([]DevLink, error)
}
