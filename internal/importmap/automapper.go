package importmap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// Lookup is the part of the store the auto mapper reads.
type Lookup interface {
	GetProjectByKey(ctx context.Context, key string) (*model.Project, error)
	GetUser(ctx context.Context, name string) (*model.User, error)
	GetIssueTypes(ctx context.Context) ([]model.IssueType, error)
	GetLinkTypes(ctx context.Context) ([]model.IssueLinkType, error)
	GetCustomFields(ctx context.Context) ([]model.CustomField, error)
	GetVersionsByProject(ctx context.Context, projectID string, includeArchived bool) ([]model.Version, error)
}

// AutoMap maps every registered old value onto an existing local entity
// with the same natural key: project key, user name, issue type name,
// link type name, custom field name and, within a mapped project,
// version name. Names compare case-insensitively. Values without a
// match stay unmapped.
func AutoMap(ctx context.Context, lookup Lookup, p *ProjectImportMapper) error {
	for _, oldID := range p.Projects.RegisteredOldIDs() {
		key, _ := p.Projects.Key(oldID)
		proj, err := lookup.GetProjectByKey(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("auto-mapping project %s: %w", key, err)
		}
		p.Projects.MapValue(oldID, proj.ID)
	}

	for _, oldID := range p.Users.RegisteredOldIDs() {
		name, _ := p.Users.Key(oldID)
		u, err := lookup.GetUser(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("auto-mapping user %s: %w", name, err)
		}
		p.Users.MapValue(oldID, u.Name)
	}

	types, err := lookup.GetIssueTypes(ctx)
	if err != nil {
		return fmt.Errorf("auto-mapping issue types: %w", err)
	}
	typeIDs := make(map[string]string, len(types))
	for _, t := range types {
		typeIDs[strings.ToLower(t.Name)] = t.ID
	}
	mapByName(p.IssueTypes, typeIDs)

	linkTypes, err := lookup.GetLinkTypes(ctx)
	if err != nil {
		return fmt.Errorf("auto-mapping link types: %w", err)
	}
	linkTypeIDs := make(map[string]string, len(linkTypes))
	for _, lt := range linkTypes {
		linkTypeIDs[strings.ToLower(lt.Name)] = lt.ID
	}
	mapByName(p.IssueLinkTypes, linkTypeIDs)

	fields, err := lookup.GetCustomFields(ctx)
	if err != nil {
		return fmt.Errorf("auto-mapping custom fields: %w", err)
	}
	fieldIDs := make(map[string]string, len(fields))
	for _, f := range fields {
		fieldIDs[strings.ToLower(f.Name)] = f.ID
	}
	mapByName(p.CustomFields, fieldIDs)

	return autoMapVersions(ctx, lookup, p)
}

func mapByName(m *Mapper, idsByName map[string]string) {
	for _, oldID := range m.RegisteredOldIDs() {
		name, _ := m.Key(oldID)
		if id, ok := idsByName[strings.ToLower(name)]; ok {
			m.MapValue(oldID, id)
		}
	}
}

func autoMapVersions(ctx context.Context, lookup Lookup, p *ProjectImportMapper) error {
	for _, oldProjectID := range p.Projects.RegisteredOldIDs() {
		newProjectID, ok := p.Projects.MappedID(oldProjectID)
		if !ok {
			continue
		}
		versions, err := lookup.GetVersionsByProject(ctx, newProjectID, true)
		if err != nil {
			return fmt.Errorf("auto-mapping versions of project %s: %w", newProjectID, err)
		}
		byName := make(map[string]string, len(versions))
		for _, v := range versions {
			byName[strings.ToLower(v.Name)] = v.ID
		}
		for _, oldVersionID := range p.Versions.VersionIDsForProject(oldProjectID) {
			name, _ := p.Versions.Key(oldVersionID)
			if id, ok := byName[strings.ToLower(name)]; ok {
				p.Versions.MapValue(oldVersionID, id)
			}
		}
	}
	return nil
}
