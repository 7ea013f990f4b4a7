package model

import "time"

// Version is a release of a project that issues can be scheduled against
// (fix version) or reported in (affects version).
type Version struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	StartDate   *time.Time `json:"start_date,omitempty" db:"start_date"`
	ReleaseDate *time.Time `json:"release_date,omitempty" db:"release_date"`
	Released    bool       `json:"released" db:"released"`
	Archived    bool       `json:"archived" db:"archived"`
	Sequence    int        `json:"sequence" db:"sequence"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// VersionKind distinguishes the two ways an issue references a version.
type VersionKind string

const (
	VersionKindAffects VersionKind = "affects"
	VersionKindFix     VersionKind = "fix"
)

// VersionIssueCounts summarises how many issues reference a version.
type VersionIssueCounts struct {
	Affects    int `json:"affects"`
	Fix        int `json:"fix"`
	Unresolved int `json:"unresolved"`
}
