package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const issueColumns = `id, key, project_id, type_id, status, priority, summary,
	description, parent_id, reporter, assignee, created_at, updated_at`

// CreateIssue inserts a new issue. When Key is empty the next key of the
// owning project is allocated (e.g. PROJ-12).
func (s *SQLiteStore) CreateIssue(ctx context.Context, issue *model.Issue) error {
	if strings.TrimSpace(issue.Summary) == "" {
		return fmt.Errorf("issue summary must not be empty")
	}
	if issue.ID == "" {
		issue.ID = newID()
	}
	if issue.Status == "" {
		issue.Status = model.StatusOpen
	}
	if issue.Priority < 1 || issue.Priority > 5 {
		issue.Priority = model.PriorityMedium
	}
	ts := now()
	issue.CreatedAt = ts
	issue.UpdatedAt = ts

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var projectKey string
		var counter int
		err := tx.QueryRowxContext(ctx,
			"SELECT key, issue_counter FROM projects WHERE id = ?", issue.ProjectID,
		).Scan(&projectKey, &counter)
		if err != nil {
			return notFound(err, "project", issue.ProjectID)
		}

		if issue.Key == "" {
			counter++
			issue.Key = fmt.Sprintf("%s-%d", projectKey, counter)
			if _, err := tx.ExecContext(ctx,
				"UPDATE projects SET issue_counter = ? WHERE id = ?",
				counter, issue.ProjectID); err != nil {
				return fmt.Errorf("advancing issue counter: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO issues (`+issueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, issue.Key, issue.ProjectID, issue.TypeID, issue.Status,
			issue.Priority, issue.Summary, issue.Description, issue.ParentID,
			issue.Reporter, issue.Assignee, issue.CreatedAt, issue.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating issue: %w", err)
		}

		if err := setIssueVersionsTx(ctx, tx, issue.ID, model.VersionKindAffects, issue.AffectsVersions); err != nil {
			return err
		}
		return setIssueVersionsTx(ctx, tx, issue.ID, model.VersionKindFix, issue.FixVersions)
	})
}

// UpdateIssue writes the mutable issue fields and appends the given
// change items to the issue history in one transaction.
func (s *SQLiteStore) UpdateIssue(
	ctx context.Context,
	issue model.Issue,
	changes []model.ChangeItem,
) error {
	if strings.TrimSpace(issue.Summary) == "" {
		return fmt.Errorf("issue summary must not be empty")
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return updateIssueTx(ctx, tx, &issue, changes)
	})
}

// updateIssueTx writes issue and appends changes to its history.
func updateIssueTx(
	ctx context.Context,
	tx *sqlx.Tx,
	issue *model.Issue,
	changes []model.ChangeItem,
) error {
	issue.UpdatedAt = now()

	result, err := tx.ExecContext(ctx, `
		UPDATE issues SET
			type_id = ?, status = ?, priority = ?, summary = ?,
			description = ?, parent_id = ?, assignee = ?, updated_at = ?
		WHERE id = ?`,
		issue.TypeID, issue.Status, issue.Priority, issue.Summary,
		issue.Description, issue.ParentID, issue.Assignee, issue.UpdatedAt,
		issue.ID,
	)
	if err != nil {
		return fmt.Errorf("updating issue %s: %w", issue.ID, err)
	}
	if err := requireAffected(result, "issue", issue.ID); err != nil {
		return err
	}

	return insertChangeItemsTx(ctx, tx, issue.ID, issue.UpdatedAt, changes)
}

// insertChangeItemsTx appends changes to the history of issueID. Items
// without a timestamp get at.
func insertChangeItemsTx(
	ctx context.Context,
	tx *sqlx.Tx,
	issueID string,
	at time.Time,
	changes []model.ChangeItem,
) error {
	for _, c := range changes {
		if c.ID == "" {
			c.ID = newID()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = at
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO change_items (id, issue_id, author, field, old_value, new_value, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, issueID, c.Author, c.Field, c.OldValue, c.NewValue, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("recording change of %s on issue %s: %w", c.Field, issueID, err)
		}
	}
	return nil
}

// ReparentIssue writes issue like UpdateIssue and replaces its subtask
// link in the same transaction: any link of subtaskLinkTypeID pointing
// at the issue is removed, and a new one from the parent is added when
// ParentID is set.
func (s *SQLiteStore) ReparentIssue(
	ctx context.Context,
	issue model.Issue,
	changes []model.ChangeItem,
	subtaskLinkTypeID string,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateIssueTx(ctx, tx, &issue, changes); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM issue_links WHERE type_id = ? AND destination_id = ?",
			subtaskLinkTypeID, issue.ID); err != nil {
			return fmt.Errorf("removing subtask link of %s: %w", issue.ID, err)
		}
		if !issue.IsSubtask() {
			return nil
		}

		var maxSeq int
		if err := tx.GetContext(ctx, &maxSeq, `
			SELECT COALESCE(MAX(sequence), 0) FROM issue_links
			WHERE source_id = ? AND type_id = ?`, *issue.ParentID, subtaskLinkTypeID); err != nil {
			return fmt.Errorf("getting max subtask sequence: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO issue_links (`+issueLinkColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`,
			newID(), subtaskLinkTypeID, *issue.ParentID, issue.ID, maxSeq+1, issue.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("linking %s to parent %s: %w", issue.ID, *issue.ParentID, err)
		}
		return nil
	})
}

// GetIssueByID retrieves a single issue with its version references.
func (s *SQLiteStore) GetIssueByID(ctx context.Context, id string) (*model.Issue, error) {
	return s.getIssue(ctx, "id", id)
}

// GetIssueByKey retrieves a single issue by key, case-insensitively.
func (s *SQLiteStore) GetIssueByKey(ctx context.Context, key string) (*model.Issue, error) {
	return s.getIssue(ctx, "key", strings.ToUpper(key))
}

func (s *SQLiteStore) getIssue(ctx context.Context, column, value string) (*model.Issue, error) {
	var issue model.Issue
	err := s.db.GetContext(ctx, &issue,
		"SELECT "+issueColumns+" FROM issues WHERE "+column+" = ?", value)
	if err != nil {
		return nil, notFound(err, "issue", value)
	}
	issues := []model.Issue{issue}
	if err := s.loadIssueVersions(ctx, issues); err != nil {
		return nil, err
	}
	return &issues[0], nil
}

// GetIssues retrieves issues matching the filter, ordered by creation.
func (s *SQLiteStore) GetIssues(ctx context.Context, filter IssueFilter) ([]model.Issue, error) {
	var conditions []string
	var args []interface{}

	if filter.ProjectID != nil {
		conditions = append(conditions, "project_id = ?")
		args = append(args, *filter.ProjectID)
	}
	if filter.ParentID != nil {
		conditions = append(conditions, "parent_id = ?")
		args = append(args, *filter.ParentID)
	}
	if filter.TypeID != nil {
		conditions = append(conditions, "type_id = ?")
		args = append(args, *filter.TypeID)
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}
	if len(filter.Keys) > 0 {
		keys := make([]string, len(filter.Keys))
		for i, k := range filter.Keys {
			keys[i] = strings.ToUpper(k)
		}
		clause, inArgs, err := sqlx.In("key IN (?)", keys)
		if err != nil {
			return nil, fmt.Errorf("building key filter: %w", err)
		}
		conditions = append(conditions, clause)
		args = append(args, inArgs...)
	}

	query := "SELECT " + issueColumns + " FROM issues"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, key"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var issues []model.Issue
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("querying issues: %w", err)
	}
	if err := s.loadIssueVersions(ctx, issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// SetIssueVersions replaces the affects or fix versions of an issue.
func (s *SQLiteStore) SetIssueVersions(
	ctx context.Context,
	issueID string,
	kind model.VersionKind,
	versionIDs []string,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM issue_versions WHERE issue_id = ? AND kind = ?",
			issueID, string(kind)); err != nil {
			return fmt.Errorf("clearing %s versions of issue %s: %w", kind, issueID, err)
		}
		return setIssueVersionsTx(ctx, tx, issueID, kind, versionIDs)
	})
}

func setIssueVersionsTx(
	ctx context.Context,
	tx *sqlx.Tx,
	issueID string,
	kind model.VersionKind,
	versionIDs []string,
) error {
	for _, vid := range versionIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO issue_versions (issue_id, version_id, kind)
			VALUES (?, ?, ?)`, issueID, vid, string(kind)); err != nil {
			return fmt.Errorf("setting %s version %s on issue %s: %w", kind, vid, issueID, err)
		}
	}
	return nil
}

// loadIssueVersions fills AffectsVersions and FixVersions in place.
func (s *SQLiteStore) loadIssueVersions(ctx context.Context, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	index := make(map[string]int, len(issues))
	ids := make([]string, len(issues))
	for i, is := range issues {
		index[is.ID] = i
		ids[i] = is.ID
	}

	query, args, err := sqlx.In(`
		SELECT iv.issue_id, iv.version_id, iv.kind FROM issue_versions iv
		JOIN versions v ON v.id = iv.version_id
		WHERE iv.issue_id IN (?)
		ORDER BY v.sequence, v.name`, ids)
	if err != nil {
		return fmt.Errorf("building version query: %w", err)
	}

	var rows []struct {
		IssueID   string `db:"issue_id"`
		VersionID string `db:"version_id"`
		Kind      string `db:"kind"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("querying issue versions: %w", err)
	}
	for _, r := range rows {
		is := &issues[index[r.IssueID]]
		if model.VersionKind(r.Kind) == model.VersionKindAffects {
			is.AffectsVersions = append(is.AffectsVersions, r.VersionID)
		} else {
			is.FixVersions = append(is.FixVersions, r.VersionID)
		}
	}
	return nil
}

// === Activity ===

// AddComment inserts a comment on an issue.
func (s *SQLiteStore) AddComment(ctx context.Context, c *model.Comment) error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("comment body must not be empty")
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, issue_id, author, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.IssueID, c.Author, c.Body, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	return nil
}

// GetComments retrieves an issue's comments, oldest first.
func (s *SQLiteStore) GetComments(ctx context.Context, issueID string) ([]model.Comment, error) {
	var out []model.Comment
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, issue_id, author, body, created_at FROM comments
		WHERE issue_id = ? ORDER BY created_at, id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying comments for issue %s: %w", issueID, err)
	}
	return out, nil
}

// GetChangeItems retrieves an issue's history, oldest first.
func (s *SQLiteStore) GetChangeItems(ctx context.Context, issueID string) ([]model.ChangeItem, error) {
	var out []model.ChangeItem
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, issue_id, author, field, old_value, new_value, created_at
		FROM change_items WHERE issue_id = ? ORDER BY created_at, id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying history for issue %s: %w", issueID, err)
	}
	return out, nil
}

// AddWorklog inserts a worklog entry.
func (s *SQLiteStore) AddWorklog(ctx context.Context, w *model.Worklog) error {
	if w.TimeSpentS <= 0 {
		return fmt.Errorf("worklog time spent must be positive")
	}
	if w.ID == "" {
		w.ID = newID()
	}
	if w.StartedAt.IsZero() {
		w.StartedAt = now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO worklogs (id, issue_id, author, time_spent_seconds, comment, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.IssueID, w.Author, w.TimeSpentS, w.Comment, w.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("creating worklog: %w", err)
	}
	return nil
}

// GetWorklogs retrieves an issue's worklogs, oldest first.
func (s *SQLiteStore) GetWorklogs(ctx context.Context, issueID string) ([]model.Worklog, error) {
	var out []model.Worklog
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, issue_id, author, time_spent_seconds, comment, started_at
		FROM worklogs WHERE issue_id = ? ORDER BY started_at, id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying worklogs for issue %s: %w", issueID, err)
	}
	return out, nil
}
