package testutil

import (
	"context"
	"testing"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Fixture is a small populated tracker used across service tests.
//
//   - admin holds ADMINISTER.
//   - alice can browse, create, edit, link and move issues in HSP.
//   - bob can only browse HSP.
//   - eve has no grants.
type Fixture struct {
	Store *store.SQLiteStore

	Admin model.User
	Alice model.User
	Bob   model.User
	Eve   model.User

	HSP model.Project
	MKY model.Project

	Bug     model.IssueType
	Task    model.IssueType
	Subtask model.IssueType

	Blocks      model.IssueLinkType
	Duplicate   model.IssueLinkType
	SubtaskLink model.IssueLinkType
}

// NewFixture builds a Fixture on a fresh in-memory store.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	ctx := context.Background()
	s := NewTestStore(t)

	f := &Fixture{
		Store: s,
		Admin: model.User{Name: "admin", DisplayName: "Administrator"},
		Alice: model.User{Name: "alice", DisplayName: "Alice"},
		Bob:   model.User{Name: "bob", DisplayName: "Bob"},
		Eve:   model.User{Name: "eve", DisplayName: "Eve"},
		HSP:   model.Project{Key: "HSP", Name: "Homosapien", Lead: "admin"},
		MKY:   model.Project{Key: "MKY", Name: "Monkey", Lead: "admin"},

		Bug:     model.IssueType{Name: "Bug"},
		Task:    model.IssueType{Name: "Task"},
		Subtask: model.IssueType{Name: "Sub-task", Subtask: true},

		Blocks:      model.IssueLinkType{Name: "Blocks", Outward: "blocks", Inward: "is blocked by"},
		Duplicate:   model.IssueLinkType{Name: "Duplicate", Outward: "duplicates", Inward: "is duplicated by"},
		SubtaskLink: model.IssueLinkType{Name: "jira_subtask_link", Outward: "jira_subtask_outward", Inward: "jira_subtask_inward", Style: model.LinkStyleSubtask},
	}

	for _, u := range []model.User{f.Admin, f.Alice, f.Bob, f.Eve} {
		Must(t, s.UpsertUser(ctx, u))
	}
	Must(t, s.CreateProject(ctx, &f.HSP))
	Must(t, s.CreateProject(ctx, &f.MKY))
	for _, it := range []*model.IssueType{&f.Bug, &f.Task, &f.Subtask} {
		Must(t, s.CreateIssueType(ctx, it))
	}
	for _, lt := range []*model.IssueLinkType{&f.Blocks, &f.Duplicate, &f.SubtaskLink} {
		Must(t, s.CreateLinkType(ctx, lt))
	}

	Must(t, s.AddGrant(ctx, store.Grant{UserName: "admin", Permission: string(permission.Administer)}))
	for _, p := range []permission.Permission{
		permission.Browse, permission.CreateIssue, permission.EditIssue,
		permission.LinkIssue, permission.MoveIssue,
	} {
		Must(t, s.AddGrant(ctx, store.Grant{UserName: "alice", Permission: string(p), ProjectID: f.HSP.ID}))
	}
	Must(t, s.AddGrant(ctx, store.Grant{UserName: "bob", Permission: string(permission.Browse), ProjectID: f.HSP.ID}))

	return f
}

// Checker returns a permission checker over the fixture's grants.
func (f *Fixture) Checker() *permission.StoreChecker {
	return permission.NewStoreChecker(f.Store)
}

// NewIssue creates an issue of the given type in project.
func (f *Fixture) NewIssue(t *testing.T, project model.Project, it model.IssueType, summary string) model.Issue {
	t.Helper()
	issue := model.Issue{ProjectID: project.ID, TypeID: it.ID, Summary: summary, Reporter: f.Alice.Name}
	Must(t, f.Store.CreateIssue(context.Background(), &issue))
	return issue
}

// NewVersion creates a version in project.
func (f *Fixture) NewVersion(t *testing.T, project model.Project, name string) model.Version {
	t.Helper()
	v := model.Version{ProjectID: project.ID, Name: name}
	Must(t, f.Store.CreateVersion(context.Background(), &v))
	return v
}

// Must fails the test immediately when err is non-nil.
func Must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture setup: %v", err)
	}
}
