package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/model"
)

// CreateLinkType inserts a new issue link type.
func (s *SQLiteStore) CreateLinkType(ctx context.Context, lt *model.IssueLinkType) error {
	if strings.TrimSpace(lt.Name) == "" {
		return fmt.Errorf("link type name must not be empty")
	}
	if lt.ID == "" {
		lt.ID = newID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO link_types (id, name, outward, inward, style)
		VALUES (?, ?, ?, ?, ?)`,
		lt.ID, lt.Name, lt.Outward, lt.Inward, lt.Style,
	)
	if err != nil {
		return fmt.Errorf("creating link type: %w", err)
	}
	return nil
}

// GetLinkType retrieves a link type by ID.
func (s *SQLiteStore) GetLinkType(ctx context.Context, id string) (*model.IssueLinkType, error) {
	var lt model.IssueLinkType
	err := s.db.GetContext(ctx, &lt,
		"SELECT id, name, outward, inward, style FROM link_types WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "link type", id)
	}
	return &lt, nil
}

// GetLinkTypes retrieves all link types ordered by name.
func (s *SQLiteStore) GetLinkTypes(ctx context.Context) ([]model.IssueLinkType, error) {
	var out []model.IssueLinkType
	err := s.db.SelectContext(ctx, &out,
		"SELECT id, name, outward, inward, style FROM link_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying link types: %w", err)
	}
	return out, nil
}

const issueLinkColumns = "id, type_id, source_id, destination_id, sequence, created_at"

// CreateIssueLink creates a directed link between two issues. The
// sequence places it after the source's existing links of the same type.
func (s *SQLiteStore) CreateIssueLink(ctx context.Context, link *model.IssueLink) error {
	if link.ID == "" {
		link.ID = newID()
	}
	link.CreatedAt = now()

	if link.Sequence == 0 {
		var maxSeq int
		err := s.db.GetContext(ctx, &maxSeq, `
			SELECT COALESCE(MAX(sequence), 0) FROM issue_links
			WHERE source_id = ? AND type_id = ?`, link.SourceID, link.TypeID)
		if err != nil {
			return fmt.Errorf("getting max link sequence: %w", err)
		}
		link.Sequence = maxSeq + 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO issue_links (`+issueLinkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		link.ID, link.TypeID, link.SourceID, link.DestinationID,
		link.Sequence, link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating link: %w", err)
	}
	return nil
}

// DeleteIssueLink removes a link by ID.
func (s *SQLiteStore) DeleteIssueLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM issue_links WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting link %s: %w", id, err)
	}
	return requireAffected(result, "link", id)
}

// GetIssueLink retrieves a link by ID.
func (s *SQLiteStore) GetIssueLink(ctx context.Context, id string) (*model.IssueLink, error) {
	var l model.IssueLink
	err := s.db.GetContext(ctx, &l,
		"SELECT "+issueLinkColumns+" FROM issue_links WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "link", id)
	}
	return &l, nil
}

// FindIssueLink retrieves the link of a type between two issues.
func (s *SQLiteStore) FindIssueLink(
	ctx context.Context,
	typeID string,
	sourceID string,
	destinationID string,
) (*model.IssueLink, error) {
	var l model.IssueLink
	err := s.db.GetContext(ctx, &l, `
		SELECT `+issueLinkColumns+` FROM issue_links
		WHERE type_id = ? AND source_id = ? AND destination_id = ?`,
		typeID, sourceID, destinationID)
	if err != nil {
		return nil, notFound(err, "link", sourceID+"->"+destinationID)
	}
	return &l, nil
}

// GetOutwardLinks retrieves links whose source is issueID.
func (s *SQLiteStore) GetOutwardLinks(ctx context.Context, issueID string) ([]model.IssueLink, error) {
	var out []model.IssueLink
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+issueLinkColumns+` FROM issue_links
		WHERE source_id = ? ORDER BY type_id, sequence`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying outward links for issue %s: %w", issueID, err)
	}
	return out, nil
}

// GetInwardLinks retrieves links whose destination is issueID.
func (s *SQLiteStore) GetInwardLinks(ctx context.Context, issueID string) ([]model.IssueLink, error) {
	var out []model.IssueLink
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+issueLinkColumns+` FROM issue_links
		WHERE destination_id = ? ORDER BY type_id, sequence`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying inward links for issue %s: %w", issueID, err)
	}
	return out, nil
}

const remoteLinkColumns = `id, issue_id, global_id, url, title, summary, icon_url,
	relationship, application_type, application_name, created_at, updated_at`

// CreateRemoteLink inserts a remote link.
func (s *SQLiteStore) CreateRemoteLink(ctx context.Context, link *model.RemoteIssueLink) error {
	if link.ID == "" {
		link.ID = newID()
	}
	ts := now()
	link.CreatedAt = ts
	link.UpdatedAt = ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remote_links (`+remoteLinkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.IssueID, link.GlobalID, link.URL, link.Title, link.Summary,
		link.IconURL, link.Relationship, link.ApplicationType, link.ApplicationName,
		link.CreatedAt, link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating remote link: %w", err)
	}
	return nil
}

// UpdateRemoteLink writes every mutable remote link field.
func (s *SQLiteStore) UpdateRemoteLink(ctx context.Context, link model.RemoteIssueLink) error {
	link.UpdatedAt = now()
	result, err := s.db.ExecContext(ctx, `
		UPDATE remote_links SET
			global_id = ?, url = ?, title = ?, summary = ?, icon_url = ?,
			relationship = ?, application_type = ?, application_name = ?, updated_at = ?
		WHERE id = ?`,
		link.GlobalID, link.URL, link.Title, link.Summary, link.IconURL,
		link.Relationship, link.ApplicationType, link.ApplicationName, link.UpdatedAt,
		link.ID,
	)
	if err != nil {
		return fmt.Errorf("updating remote link %s: %w", link.ID, err)
	}
	return requireAffected(result, "remote link", link.ID)
}

// DeleteRemoteLink removes a remote link by ID.
func (s *SQLiteStore) DeleteRemoteLink(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM remote_links WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting remote link %s: %w", id, err)
	}
	return requireAffected(result, "remote link", id)
}

// GetRemoteLink retrieves a remote link by ID.
func (s *SQLiteStore) GetRemoteLink(ctx context.Context, id string) (*model.RemoteIssueLink, error) {
	var l model.RemoteIssueLink
	err := s.db.GetContext(ctx, &l,
		"SELECT "+remoteLinkColumns+" FROM remote_links WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "remote link", id)
	}
	return &l, nil
}

// GetRemoteLinkByGlobalID retrieves the remote link of an issue with the
// given global ID.
func (s *SQLiteStore) GetRemoteLinkByGlobalID(
	ctx context.Context,
	issueID string,
	globalID string,
) (*model.RemoteIssueLink, error) {
	var l model.RemoteIssueLink
	err := s.db.GetContext(ctx, &l, `
		SELECT `+remoteLinkColumns+` FROM remote_links
		WHERE issue_id = ? AND global_id = ?`, issueID, globalID)
	if err != nil {
		return nil, notFound(err, "remote link", globalID)
	}
	return &l, nil
}

// GetRemoteLinksForIssue retrieves an issue's remote links, oldest first.
func (s *SQLiteStore) GetRemoteLinksForIssue(
	ctx context.Context,
	issueID string,
) ([]model.RemoteIssueLink, error) {
	var out []model.RemoteIssueLink
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+remoteLinkColumns+` FROM remote_links
		WHERE issue_id = ? ORDER BY created_at, id`, issueID)
	if err != nil {
		return nil, fmt.Errorf("querying remote links for issue %s: %w", issueID, err)
	}
	return out, nil
}
