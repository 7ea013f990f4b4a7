package store

import (
	"context"
	"errors"

	"github.com/nhle/tracker/internal/model"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IssueFilter controls filtering and pagination for issue queries.
type IssueFilter struct {
	ProjectID *string
	ParentID  *string
	TypeID    *string
	Status    *string
	Keys      []string
	Limit     int
	Offset    int
}

// Grant gives a user a permission, globally (ProjectID == "") or on one
// project.
type Grant struct {
	UserName   string `db:"user_name"`
	Permission string `db:"permission"`
	ProjectID  string `db:"project_id"`
}

// VersionSwap describes how issue references to a version are rewritten
// before it is removed. A nil target removes the reference.
type VersionSwap struct {
	VersionID     string
	AffectsSwapTo *string
	FixSwapTo     *string
}

// Mapping is one persisted old-to-new ID translation from a project import.
type Mapping struct {
	ImportID string `db:"import_id"`
	Kind     string `db:"kind"`
	OldID    string `db:"old_id"`
	NewID    string `db:"new_id"`
	OldKey   string `db:"old_key"`
}

// Store defines the persistence interface for projects, issues, versions,
// links, custom fields, activity and import mappings.
type Store interface {
	// === Projects, users and permissions ===

	CreateProject(ctx context.Context, project *model.Project) error
	GetProjectByID(ctx context.Context, id string) (*model.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*model.Project, error)
	GetProjects(ctx context.Context) ([]model.Project, error)

	UpsertUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, name string) (*model.User, error)
	GetUsers(ctx context.Context) ([]model.User, error)

	AddGrant(ctx context.Context, g Grant) error
	GetGrants(ctx context.Context, userName string) ([]Grant, error)

	// === Issue types and issues ===

	CreateIssueType(ctx context.Context, it *model.IssueType) error
	GetIssueType(ctx context.Context, id string) (*model.IssueType, error)
	GetIssueTypes(ctx context.Context) ([]model.IssueType, error)

	CreateIssue(ctx context.Context, issue *model.Issue) error
	UpdateIssue(ctx context.Context, issue model.Issue, changes []model.ChangeItem) error
	GetIssueByID(ctx context.Context, id string) (*model.Issue, error)
	GetIssueByKey(ctx context.Context, key string) (*model.Issue, error)
	GetIssues(ctx context.Context, filter IssueFilter) ([]model.Issue, error)
	SetIssueVersions(ctx context.Context, issueID string, kind model.VersionKind, versionIDs []string) error
	ReparentIssue(ctx context.Context, issue model.Issue, changes []model.ChangeItem, subtaskLinkTypeID string) error

	// === Versions ===

	CreateVersion(ctx context.Context, v *model.Version) error
	UpdateVersion(ctx context.Context, v model.Version) error
	GetVersionByID(ctx context.Context, id string) (*model.Version, error)
	GetVersionsByProject(ctx context.Context, projectID string, includeArchived bool) ([]model.Version, error)
	ResequenceVersions(ctx context.Context, projectID string, orderedIDs []string) error
	DeleteVersion(ctx context.Context, swap VersionSwap) error
	MoveUnresolvedFixIssues(ctx context.Context, fromVersionID, toVersionID string) (int, error)
	CountVersionIssues(ctx context.Context, versionID string) (model.VersionIssueCounts, error)
	GetIssueIDsForVersion(ctx context.Context, versionID string, kind model.VersionKind) ([]string, error)

	// === Links ===

	CreateLinkType(ctx context.Context, lt *model.IssueLinkType) error
	GetLinkType(ctx context.Context, id string) (*model.IssueLinkType, error)
	GetLinkTypes(ctx context.Context) ([]model.IssueLinkType, error)

	CreateIssueLink(ctx context.Context, link *model.IssueLink) error
	DeleteIssueLink(ctx context.Context, id string) error
	GetIssueLink(ctx context.Context, id string) (*model.IssueLink, error)
	FindIssueLink(ctx context.Context, typeID, sourceID, destinationID string) (*model.IssueLink, error)
	GetOutwardLinks(ctx context.Context, issueID string) ([]model.IssueLink, error)
	GetInwardLinks(ctx context.Context, issueID string) ([]model.IssueLink, error)

	CreateRemoteLink(ctx context.Context, link *model.RemoteIssueLink) error
	UpdateRemoteLink(ctx context.Context, link model.RemoteIssueLink) error
	DeleteRemoteLink(ctx context.Context, id string) error
	GetRemoteLink(ctx context.Context, id string) (*model.RemoteIssueLink, error)
	GetRemoteLinkByGlobalID(ctx context.Context, issueID, globalID string) (*model.RemoteIssueLink, error)
	GetRemoteLinksForIssue(ctx context.Context, issueID string) ([]model.RemoteIssueLink, error)

	// === Custom fields ===

	CreateCustomField(ctx context.Context, f *model.CustomField) error
	GetCustomField(ctx context.Context, id string) (*model.CustomField, error)
	GetCustomFields(ctx context.Context) ([]model.CustomField, error)
	GetFieldValue(ctx context.Context, issueID, fieldID string) (model.FieldValue, error)
	SetFieldValue(ctx context.Context, issueID, fieldID string, value model.FieldValue) error
	SetFieldValues(ctx context.Context, issueID string, values []FieldChange, changes []model.ChangeItem) error

	// === Activity ===

	AddComment(ctx context.Context, c *model.Comment) error
	GetComments(ctx context.Context, issueID string) ([]model.Comment, error)
	GetChangeItems(ctx context.Context, issueID string) ([]model.ChangeItem, error)
	AddWorklog(ctx context.Context, w *model.Worklog) error
	GetWorklogs(ctx context.Context, issueID string) ([]model.Worklog, error)

	// === Import mappings ===

	SaveMappings(ctx context.Context, mappings []Mapping) error
	GetMappings(ctx context.Context, importID string) ([]Mapping, error)
}
