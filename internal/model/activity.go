package model

import "time"

// Comment is a user remark on an issue.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	IssueID   string    `json:"issue_id" db:"issue_id"`
	Author    string    `json:"author" db:"author"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ChangeItem records one field change in an issue's history.
type ChangeItem struct {
	ID        string    `json:"id" db:"id"`
	IssueID   string    `json:"issue_id" db:"issue_id"`
	Author    string    `json:"author" db:"author"`
	Field     string    `json:"field" db:"field"`
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Worklog records time spent on an issue.
type Worklog struct {
	ID         string    `json:"id" db:"id"`
	IssueID    string    `json:"issue_id" db:"issue_id"`
	Author     string    `json:"author" db:"author"`
	TimeSpentS int       `json:"time_spent_seconds" db:"time_spent_seconds"`
	Comment    string    `json:"comment" db:"comment"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
}
