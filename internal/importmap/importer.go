package importmap

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/source"
	"github.com/nhle/tracker/internal/store"
	"github.com/nhle/tracker/internal/version"
)

// Options controls one import run.
type Options struct {
	// ProjectKey is the key of the project in the source. A local
	// project with the same key must exist.
	ProjectKey string
	// User performs the import and must administer the target project.
	User model.User
	// DryRun stops after mapping and validation.
	DryRun bool
}

// Report summarises an import run.
type Report struct {
	ImportID        string
	DryRun          bool
	Mapper          *ProjectImportMapper
	Errors          *errs.Collection
	CreatedUsers    int
	CreatedVersions int
	CreatedIssues   int
	CreatedLinks    int
}

// Importer copies a project from a ProjectSource into the local store.
type Importer struct {
	store    store.Store
	source   source.ProjectSource
	versions *version.Service
	links    *issuelink.Service
	log      *logger.Logger
}

// NewImporter wires an importer.
func NewImporter(
	s store.Store,
	src source.ProjectSource,
	versions *version.Service,
	links *issuelink.Service,
	log *logger.Logger,
) *Importer {
	return &Importer{store: s, source: src, versions: versions, links: links, log: log}
}

// Run fetches the source project, maps everything it references onto
// local entities, and unless opts.DryRun is set creates what is missing.
// Mapping problems are reported in Report.Errors with a nil error.
func (im *Importer) Run(ctx context.Context, opts Options) (*Report, error) {
	snap, err := im.source.FetchProject(ctx, opts.ProjectKey)
	if err != nil {
		return nil, fmt.Errorf("fetching project %s: %w", opts.ProjectKey, err)
	}
	im.log.Info("fetched project snapshot", "project", snap.Project.Key,
		"issues", len(snap.Issues), "versions", len(snap.Versions), "links", len(snap.Links))

	report := &Report{
		ImportID: uuid.NewString(),
		DryRun:   opts.DryRun,
		Mapper:   NewProjectImportMapper(),
		Errors:   errs.New(),
	}
	m := report.Mapper

	if err := register(m, snap); err != nil {
		return nil, err
	}
	if err := AutoMap(ctx, im.store, m); err != nil {
		return nil, err
	}
	Validate(m, report.Errors)
	if report.Errors.HasAnyErrors() || opts.DryRun {
		return report, nil
	}

	if err := im.createUsers(ctx, snap, report); err != nil {
		return report, err
	}
	if err := im.createVersions(ctx, opts.User, snap, report); err != nil {
		return report, err
	}
	if err := im.createIssues(ctx, snap, report); err != nil {
		return report, err
	}
	if err := im.createLinks(ctx, opts.User, snap, report); err != nil {
		return report, err
	}
	if err := im.saveMappings(ctx, report); err != nil {
		return report, err
	}

	im.log.Info("project import finished", "import", report.ImportID, "project", snap.Project.Key,
		"users", report.CreatedUsers, "versions", report.CreatedVersions,
		"issues", report.CreatedIssues, "links", report.CreatedLinks)
	return report, nil
}

// register records every old value of the snapshot and flags what must
// already exist locally: the project, and the issue and link types in use.
func register(m *ProjectImportMapper, snap *source.Snapshot) error {
	m.Projects.RegisterOldValue(snap.Project.ID, snap.Project.Key)
	if err := m.Projects.FlagValueAsRequired(snap.Project.ID); err != nil {
		return err
	}
	for _, u := range snap.Users {
		m.Users.RegisterOldValue(u.Name, u.Name)
	}
	for _, it := range snap.IssueTypes {
		m.IssueTypes.RegisterOldValue(it.ID, it.Name)
	}
	for _, lt := range snap.LinkTypes {
		m.IssueLinkTypes.RegisterOldValue(lt.ID, lt.Name)
	}
	for _, v := range snap.Versions {
		m.Versions.RegisterVersion(snap.Project.ID, v.ID, v.Name)
	}
	for _, is := range snap.Issues {
		m.Issues.RegisterOldValue(is.ID, is.Key)
		if err := m.IssueTypes.FlagValueAsRequired(is.TypeID); err != nil {
			return err
		}
	}
	for _, l := range snap.Links {
		if err := m.IssueLinkTypes.FlagValueAsRequired(l.TypeID); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) createUsers(ctx context.Context, snap *source.Snapshot, report *Report) error {
	for _, u := range snap.Users {
		if _, ok := report.Mapper.Users.MappedID(u.Name); ok {
			continue
		}
		if err := im.store.UpsertUser(ctx, model.User{Name: u.Name, DisplayName: u.DisplayName, Email: u.Email}); err != nil {
			return fmt.Errorf("creating user %s: %w", u.Name, err)
		}
		report.Mapper.Users.MapValue(u.Name, u.Name)
		report.CreatedUsers++
	}
	return nil
}

func (im *Importer) createVersions(ctx context.Context, user model.User, snap *source.Snapshot, report *Report) error {
	m := report.Mapper
	projectID, _ := m.Projects.MappedID(snap.Project.ID)

	for _, v := range snap.Versions {
		if _, ok := m.Versions.MappedID(v.ID); ok {
			continue
		}
		cr := im.versions.ValidateCreate(ctx, user, version.Builder{
			ProjectID:   projectID,
			Name:        v.Name,
			Description: v.Description,
			StartDate:   v.StartDate,
			ReleaseDate: v.ReleaseDate,
		})
		if !cr.IsValid() {
			report.Errors.AddCollection(cr.Errors())
			return fmt.Errorf("importing version %s: %w", v.Name, cr.Errors())
		}
		created, err := im.versions.Create(ctx, user, cr)
		if err != nil {
			return err
		}
		m.Versions.MapValue(v.ID, created.ID)
		report.CreatedVersions++

		if v.Released {
			rr := im.versions.ValidateRelease(ctx, user, created.ID, v.ReleaseDate, "")
			if _, err := im.versions.Release(ctx, user, rr); err != nil {
				return fmt.Errorf("releasing version %s: %w", v.Name, err)
			}
		}
		if v.Archived {
			ar := im.versions.ValidateArchive(ctx, user, created.ID)
			if _, err := im.versions.Archive(ctx, user, ar); err != nil {
				return fmt.Errorf("archiving version %s: %w", v.Name, err)
			}
		}
	}
	return nil
}

// createIssues creates unmapped issues, parents before subtasks, and
// connects each subtask to its parent with the system subtask link.
func (im *Importer) createIssues(ctx context.Context, snap *source.Snapshot, report *Report) error {
	m := report.Mapper
	projectID, _ := m.Projects.MappedID(snap.Project.ID)

	subtaskLink, err := im.subtaskLinkType(ctx)
	if err != nil {
		return err
	}

	issues := append([]source.Issue(nil), snap.Issues...)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].ParentID == "" && issues[j].ParentID != ""
	})

	for _, is := range issues {
		if _, ok := m.Issues.MappedID(is.ID); ok {
			continue
		}
		typeID, _ := m.IssueTypes.MappedID(is.TypeID)
		issue := model.Issue{
			ProjectID:       projectID,
			TypeID:          typeID,
			Status:          is.Status,
			Priority:        is.Priority,
			Summary:         is.Summary,
			Description:     is.Description,
			Reporter:        is.Reporter,
			Assignee:        is.Assignee,
			AffectsVersions: mapAll(m.Versions.Mapper, is.AffectsVersions),
			FixVersions:     mapAll(m.Versions.Mapper, is.FixVersions),
		}
		if is.ParentID != "" {
			parentID, ok := m.Issues.MappedID(is.ParentID)
			if !ok {
				return fmt.Errorf("parent of %s was not imported", is.Key)
			}
			issue.ParentID = &parentID
		}
		if err := im.store.CreateIssue(ctx, &issue); err != nil {
			return fmt.Errorf("importing issue %s: %w", is.Key, err)
		}
		m.Issues.MapValue(is.ID, issue.ID)
		report.CreatedIssues++

		if issue.ParentID != nil && subtaskLink != nil {
			link := model.IssueLink{TypeID: subtaskLink.ID, SourceID: *issue.ParentID, DestinationID: issue.ID}
			if err := im.store.CreateIssueLink(ctx, &link); err != nil {
				return fmt.Errorf("linking subtask %s: %w", is.Key, err)
			}
		}
	}
	return nil
}

func (im *Importer) subtaskLinkType(ctx context.Context) (*model.IssueLinkType, error) {
	types, err := im.store.GetLinkTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading link types: %w", err)
	}
	for _, lt := range types {
		if lt.IsSystem() {
			return &lt, nil
		}
	}
	return nil, nil
}

// createLinks recreates issue links through the link service so the
// usual link validation applies.
func (im *Importer) createLinks(ctx context.Context, user model.User, snap *source.Snapshot, report *Report) error {
	m := report.Mapper
	for _, l := range snap.Links {
		srcID, ok1 := m.Issues.MappedID(l.SourceID)
		dstID, ok2 := m.Issues.MappedID(l.DestinationID)
		if !ok1 || !ok2 {
			continue
		}
		typeID, _ := m.IssueLinkTypes.MappedID(l.TypeID)
		lt, err := im.store.GetLinkType(ctx, typeID)
		if err != nil {
			return fmt.Errorf("loading link type %s: %w", typeID, err)
		}

		src, err := im.store.GetIssueByID(ctx, srcID)
		if err != nil {
			return fmt.Errorf("loading imported issue %s: %w", srcID, err)
		}
		dst, err := im.store.GetIssueByID(ctx, dstID)
		if err != nil {
			return fmt.Errorf("loading imported issue %s: %w", dstID, err)
		}

		r := im.links.ValidateAddIssueLinks(ctx, user, src.Key, lt.Name, issuelink.Outward, []string{dst.Key})
		if !r.IsValid() {
			report.Errors.AddCollection(r.Errors())
			return fmt.Errorf("importing link %s -> %s: %w", src.Key, dst.Key, r.Errors())
		}
		created, err := im.links.AddIssueLinks(ctx, user, r)
		if err != nil {
			return err
		}
		report.CreatedLinks += len(created)
	}
	return nil
}

func (im *Importer) saveMappings(ctx context.Context, report *Report) error {
	var rows []store.Mapping
	for _, mapper := range report.Mapper.All() {
		mapped := mapper.Mappings()
		for _, oldID := range mapper.RegisteredOldIDs() {
			newID, ok := mapped[oldID]
			if !ok {
				continue
			}
			key, _ := mapper.Key(oldID)
			rows = append(rows, store.Mapping{
				ImportID: report.ImportID,
				Kind:     mapper.Kind(),
				OldID:    oldID,
				NewID:    newID,
				OldKey:   key,
			})
		}
	}
	if err := im.store.SaveMappings(ctx, rows); err != nil {
		return fmt.Errorf("saving import mappings: %w", err)
	}
	return nil
}

func mapAll(m *Mapper, oldIDs []string) []string {
	if len(oldIDs) == 0 {
		return nil
	}
	out := make([]string, 0, len(oldIDs))
	for _, id := range oldIDs {
		if newID, ok := m.MappedID(id); ok {
			out = append(out, newID)
		}
	}
	return out
}
