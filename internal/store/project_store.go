package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/model"
)

const projectColumns = "id, key, name, lead, created_at, updated_at"

// CreateProject inserts a new project. The key is upper-cased.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *model.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return fmt.Errorf("project name must not be empty")
	}
	if strings.TrimSpace(project.Key) == "" {
		return fmt.Errorf("project key must not be empty")
	}
	if project.ID == "" {
		project.ID = newID()
	}
	project.Key = strings.ToUpper(project.Key)
	ts := now()
	project.CreatedAt = ts
	project.UpdatedAt = ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, key, name, lead, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		project.ID, project.Key, project.Name, project.Lead,
		project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

// GetProjectByID retrieves a single project by ID.
func (s *SQLiteStore) GetProjectByID(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return &p, nil
}

// GetProjectByKey retrieves a single project by its key, case-insensitively.
func (s *SQLiteStore) GetProjectByKey(ctx context.Context, key string) (*model.Project, error) {
	var p model.Project
	err := s.db.GetContext(ctx, &p,
		"SELECT "+projectColumns+" FROM projects WHERE key = ?", strings.ToUpper(key))
	if err != nil {
		return nil, notFound(err, "project", key)
	}
	return &p, nil
}

// GetProjects retrieves all projects ordered by key.
func (s *SQLiteStore) GetProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := s.db.SelectContext(ctx, &projects,
		"SELECT "+projectColumns+" FROM projects ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	return projects, nil
}

// CreateIssueType inserts a new issue type.
func (s *SQLiteStore) CreateIssueType(ctx context.Context, it *model.IssueType) error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("issue type name must not be empty")
	}
	if it.ID == "" {
		it.ID = newID()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO issue_types (id, name, subtask) VALUES (?, ?, ?)",
		it.ID, it.Name, boolToInt(it.Subtask),
	)
	if err != nil {
		return fmt.Errorf("creating issue type: %w", err)
	}
	return nil
}

// GetIssueType retrieves an issue type by ID.
func (s *SQLiteStore) GetIssueType(ctx context.Context, id string) (*model.IssueType, error) {
	var it model.IssueType
	err := s.db.GetContext(ctx, &it,
		"SELECT id, name, subtask FROM issue_types WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "issue type", id)
	}
	return &it, nil
}

// GetIssueTypes retrieves all issue types ordered by name.
func (s *SQLiteStore) GetIssueTypes(ctx context.Context) ([]model.IssueType, error) {
	var types []model.IssueType
	err := s.db.SelectContext(ctx, &types,
		"SELECT id, name, subtask FROM issue_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying issue types: %w", err)
	}
	return types, nil
}
