package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

const versionColumns = `id, project_id, name, description, start_date, release_date,
	released, archived, sequence, created_at, updated_at`

// CreateVersion inserts a new version. A zero Sequence appends the
// version after the project's last one.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *model.Version) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("version name must not be empty")
	}
	if v.ID == "" {
		v.ID = newID()
	}
	ts := now()
	v.CreatedAt = ts
	v.UpdatedAt = ts

	if v.Sequence == 0 {
		var maxSeq int
		err := s.db.GetContext(ctx, &maxSeq,
			"SELECT COALESCE(MAX(sequence), 0) FROM versions WHERE project_id = ?", v.ProjectID)
		if err != nil {
			return fmt.Errorf("getting max version sequence: %w", err)
		}
		v.Sequence = maxSeq + 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.ProjectID, v.Name, v.Description, v.StartDate, v.ReleaseDate,
		boolToInt(v.Released), boolToInt(v.Archived), v.Sequence,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating version: %w", err)
	}
	return nil
}

// UpdateVersion writes every mutable version field.
func (s *SQLiteStore) UpdateVersion(ctx context.Context, v model.Version) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("version name must not be empty")
	}
	v.UpdatedAt = now()

	result, err := s.db.ExecContext(ctx, `
		UPDATE versions SET
			name = ?, description = ?, start_date = ?, release_date = ?,
			released = ?, archived = ?, sequence = ?, updated_at = ?
		WHERE id = ?`,
		v.Name, v.Description, v.StartDate, v.ReleaseDate,
		boolToInt(v.Released), boolToInt(v.Archived), v.Sequence, v.UpdatedAt,
		v.ID,
	)
	if err != nil {
		return fmt.Errorf("updating version %s: %w", v.ID, err)
	}
	return requireAffected(result, "version", v.ID)
}

// GetVersionByID retrieves a single version.
func (s *SQLiteStore) GetVersionByID(ctx context.Context, id string) (*model.Version, error) {
	var v model.Version
	err := s.db.GetContext(ctx, &v,
		"SELECT "+versionColumns+" FROM versions WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "version", id)
	}
	return &v, nil
}

// GetVersionsByProject retrieves a project's versions in sequence order.
func (s *SQLiteStore) GetVersionsByProject(
	ctx context.Context,
	projectID string,
	includeArchived bool,
) ([]model.Version, error) {
	query := "SELECT " + versionColumns + " FROM versions WHERE project_id = ?"
	if !includeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY sequence, name"

	var versions []model.Version
	if err := s.db.SelectContext(ctx, &versions, query, projectID); err != nil {
		return nil, fmt.Errorf("querying versions for project %s: %w", projectID, err)
	}
	return versions, nil
}

// ResequenceVersions assigns sequence 1..n to orderedIDs. Every ID must
// belong to projectID.
func (s *SQLiteStore) ResequenceVersions(
	ctx context.Context,
	projectID string,
	orderedIDs []string,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		ts := now()
		for i, id := range orderedIDs {
			result, err := tx.ExecContext(ctx, `
				UPDATE versions SET sequence = ?, updated_at = ?
				WHERE id = ? AND project_id = ?`, i+1, ts, id, projectID)
			if err != nil {
				return fmt.Errorf("resequencing version %s: %w", id, err)
			}
			if err := requireAffected(result, "version", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteVersion rewrites affects and fix references as described by
// swap, removes the version and renumbers the project's remaining
// versions 1..n, all in one transaction.
func (s *SQLiteStore) DeleteVersion(ctx context.Context, swap VersionSwap) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var projectID string
		err := tx.GetContext(ctx, &projectID,
			"SELECT project_id FROM versions WHERE id = ?", swap.VersionID)
		if err != nil {
			return notFound(err, "version", swap.VersionID)
		}
		if err := swapVersionTx(ctx, tx, swap.VersionID, model.VersionKindAffects, swap.AffectsSwapTo); err != nil {
			return err
		}
		if err := swapVersionTx(ctx, tx, swap.VersionID, model.VersionKindFix, swap.FixSwapTo); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM versions WHERE id = ?", swap.VersionID)
		if err != nil {
			return fmt.Errorf("deleting version %s: %w", swap.VersionID, err)
		}
		if err := requireAffected(result, "version", swap.VersionID); err != nil {
			return err
		}
		return renumberVersionsTx(ctx, tx, projectID)
	})
}

func renumberVersionsTx(ctx context.Context, tx *sqlx.Tx, projectID string) error {
	var ids []string
	err := tx.SelectContext(ctx, &ids,
		"SELECT id FROM versions WHERE project_id = ? ORDER BY sequence, name", projectID)
	if err != nil {
		return fmt.Errorf("querying versions of project %s: %w", projectID, err)
	}
	ts := now()
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE versions SET sequence = ?, updated_at = ? WHERE id = ?", i+1, ts, id); err != nil {
			return fmt.Errorf("renumbering version %s: %w", id, err)
		}
	}
	return nil
}

func swapVersionTx(
	ctx context.Context,
	tx *sqlx.Tx,
	fromID string,
	kind model.VersionKind,
	to *string,
) error {
	if to != nil {
		// Issues already referencing the target keep a single row.
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO issue_versions (issue_id, version_id, kind)
			SELECT issue_id, ?, kind FROM issue_versions
			WHERE version_id = ? AND kind = ?`, *to, fromID, string(kind))
		if err != nil {
			return fmt.Errorf("swapping %s version %s to %s: %w", kind, fromID, *to, err)
		}
	}
	_, err := tx.ExecContext(ctx,
		"DELETE FROM issue_versions WHERE version_id = ? AND kind = ?", fromID, string(kind))
	if err != nil {
		return fmt.Errorf("removing %s references to version %s: %w", kind, fromID, err)
	}
	return nil
}

// MoveUnresolvedFixIssues moves the fix-version reference of every
// unresolved issue from one version to another. It returns the number
// of issues moved.
func (s *SQLiteStore) MoveUnresolvedFixIssues(
	ctx context.Context,
	fromVersionID string,
	toVersionID string,
) (int, error) {
	var moved int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var ids []string
		err := tx.SelectContext(ctx, &ids, `
			SELECT iv.issue_id FROM issue_versions iv
			JOIN issues i ON i.id = iv.issue_id
			WHERE iv.version_id = ? AND iv.kind = 'fix' AND i.status != ?`,
			fromVersionID, model.StatusDone)
		if err != nil {
			return fmt.Errorf("querying unresolved issues of version %s: %w", fromVersionID, err)
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO issue_versions (issue_id, version_id, kind)
				VALUES (?, ?, 'fix')`, id, toVersionID); err != nil {
				return fmt.Errorf("moving issue %s to version %s: %w", id, toVersionID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM issue_versions
				WHERE issue_id = ? AND version_id = ? AND kind = 'fix'`, id, fromVersionID); err != nil {
				return fmt.Errorf("removing issue %s from version %s: %w", id, fromVersionID, err)
			}
		}
		moved = len(ids)
		return nil
	})
	return moved, err
}

// CountVersionIssues counts issues referencing a version.
func (s *SQLiteStore) CountVersionIssues(
	ctx context.Context,
	versionID string,
) (model.VersionIssueCounts, error) {
	var c model.VersionIssueCounts
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN iv.kind = 'affects' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN iv.kind = 'fix' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN iv.kind = 'fix' AND i.status != ? THEN 1 ELSE 0 END), 0)
		FROM issue_versions iv
		JOIN issues i ON i.id = iv.issue_id
		WHERE iv.version_id = ?`, model.StatusDone, versionID,
	).Scan(&c.Affects, &c.Fix, &c.Unresolved)
	if err != nil {
		return c, fmt.Errorf("counting issues for version %s: %w", versionID, err)
	}
	return c, nil
}

// GetIssueIDsForVersion lists the issues referencing a version.
func (s *SQLiteStore) GetIssueIDsForVersion(
	ctx context.Context,
	versionID string,
	kind model.VersionKind,
) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT issue_id FROM issue_versions
		WHERE version_id = ? AND kind = ? ORDER BY issue_id`, versionID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("querying issues for version %s: %w", versionID, err)
	}
	return ids, nil
}
