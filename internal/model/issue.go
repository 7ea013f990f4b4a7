package model

import "time"

// Issue status constants. Resolution is implied by StatusDone.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Priority constants (lower number = higher priority).
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
	PriorityLowest   = 5
)

// IssueType classifies issues. Subtask types can only be used by issues
// that have a parent.
type IssueType struct {
	ID      string `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Subtask bool   `json:"subtask" db:"subtask"`
}

// Issue is a single tracked work item.
type Issue struct {
	ID          string    `json:"id" db:"id"`
	Key         string    `json:"key" db:"key"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	TypeID      string    `json:"type_id" db:"type_id"`
	Status      string    `json:"status" db:"status"`
	Priority    int       `json:"priority" db:"priority"`
	Summary     string    `json:"summary" db:"summary"`
	Description string    `json:"description" db:"description"`
	ParentID    *string   `json:"parent_id,omitempty" db:"parent_id"`
	Reporter    string    `json:"reporter" db:"reporter"`
	Assignee    string    `json:"assignee" db:"assignee"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	// AffectsVersions and FixVersions hold version IDs and are populated
	// from the issue_versions table.
	AffectsVersions []string `json:"affects_versions,omitempty" db:"-"`
	FixVersions     []string `json:"fix_versions,omitempty" db:"-"`
}

// IsResolved reports whether the issue is in a terminal status.
func (i Issue) IsResolved() bool { return i.Status == StatusDone }

// IsSubtask reports whether the issue has a parent.
func (i Issue) IsSubtask() bool { return i.ParentID != nil && *i.ParentID != "" }
