package version_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/version"
	"github.com/nhle/tracker/tests/testutil"
)

func newService(t *testing.T) (*version.Service, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	return version.NewService(f.Store, f.Checker(), logger.Nop()), f
}

func mustCreate(t *testing.T, svc *version.Service, f *testutil.Fixture, b version.Builder) *model.Version {
	t.Helper()
	r := svc.ValidateCreate(context.Background(), f.Admin, b)
	require.True(t, r.IsValid(), r.Errors().Error())
	v, err := svc.Create(context.Background(), f.Admin, r)
	require.NoError(t, err)
	return v
}

func names(vs []model.Version) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Name)
	}
	return out
}

func TestCreateVersion(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()

	v1 := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: " 1.0 ", StartDate: "2024-01-01", ReleaseDate: "2024-02-01"})
	assert.Equal(t, "1.0", v1.Name)
	assert.Equal(t, 1, v1.Sequence)
	require.NotNil(t, v1.ReleaseDate)
	assert.Equal(t, "2024-02-01", v1.ReleaseDate.Format(version.DateLayout))

	mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "3.0"})
	mid := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "2.0", ScheduleAfter: v1.ID})
	assert.Equal(t, 2, mid.Sequence)

	all, err := svc.GetVersionsByProject(ctx, f.Admin, f.HSP.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0", "2.0", "3.0"}, names(all))
}

func TestValidateCreateErrors(t *testing.T) {
	svc, f := newService(t)
	mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})

	tests := []struct {
		name    string
		user    model.User
		builder version.Builder
		reason  version.Reason
		generic errs.Reason
	}{
		{"unknown project", f.Admin, version.Builder{ProjectID: "nope", Name: "x"}, version.ReasonBadProject, errs.ReasonNotFound},
		{"not an admin", f.Alice, version.Builder{ProjectID: f.HSP.ID, Name: "x"}, version.ReasonForbidden, errs.ReasonForbidden},
		{"anonymous", model.User{}, version.Builder{ProjectID: f.HSP.ID, Name: "x"}, version.ReasonForbidden, errs.ReasonNotLoggedIn},
		{"blank name", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "  "}, version.ReasonBadName, errs.ReasonValidationFailed},
		{"long name", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: strings.Repeat("é", 256)}, version.ReasonNameTooLong, errs.ReasonValidationFailed},
		{"duplicate name", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"}, version.ReasonDuplicateName, errs.ReasonValidationFailed},
		{"bad start date", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "x", StartDate: "01/02/2024"}, version.ReasonBadStartDate, errs.ReasonValidationFailed},
		{"bad release date", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "x", ReleaseDate: "soon"}, version.ReasonBadReleaseDate, errs.ReasonValidationFailed},
		{"dates out of order", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "x", StartDate: "2024-03-01", ReleaseDate: "2024-02-01"}, version.ReasonBadStartReleaseOrder, errs.ReasonValidationFailed},
		{"bad schedule", f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "x", ScheduleAfter: "missing"}, version.ReasonBadSchedule, errs.ReasonValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := svc.ValidateCreate(context.Background(), tt.user, tt.builder)
			assert.False(t, r.IsValid())
			assert.True(t, r.HasReason(tt.reason), "reasons: %v", r.Reasons())
			assert.True(t, r.Errors().HasReason(tt.generic))

			_, err := svc.Create(context.Background(), tt.user, r)
			assert.ErrorIs(t, err, errs.ErrInvalidResult)
		})
	}
}

func TestDuplicateNameIsCaseInsensitiveAndPerProject(t *testing.T) {
	svc, f := newService(t)
	mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "Beta"})

	r := svc.ValidateCreate(context.Background(), f.Admin, version.Builder{ProjectID: f.HSP.ID, Name: "BETA"})
	assert.True(t, r.HasReason(version.ReasonDuplicateName))

	r = svc.ValidateCreate(context.Background(), f.Admin, version.Builder{ProjectID: f.MKY.ID, Name: "BETA"})
	assert.True(t, r.IsValid())
}

func TestUpdateVersion(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})
	mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "2.0"})

	r := svc.ValidateUpdate(ctx, f.Admin, v.ID, version.Builder{Name: "1.0", Description: "first"})
	require.True(t, r.IsValid(), r.Errors().Error())
	updated, err := svc.Update(ctx, f.Admin, r)
	require.NoError(t, err)
	assert.Equal(t, "first", updated.Description)

	r = svc.ValidateUpdate(ctx, f.Admin, v.ID, version.Builder{Name: "2.0"})
	assert.True(t, r.HasReason(version.ReasonDuplicateName))

	r = svc.ValidateUpdate(ctx, f.Admin, "missing", version.Builder{Name: "x"})
	assert.True(t, r.HasReason(version.ReasonNotFound))
	assert.Equal(t, errs.ReasonNotFound, r.Errors().Worst())
}

func TestDeleteVersionSwapsReferences(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	old := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})
	target := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "2.0"})

	issue := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Bug.ID, Summary: "bug",
		AffectsVersions: []string{old.ID}, FixVersions: []string{old.ID}}
	require.NoError(t, f.Store.CreateIssue(ctx, &issue))

	r := svc.ValidateDelete(ctx, f.Admin, old.ID, version.SwapTo(target.ID), version.Remove())
	require.True(t, r.IsValid(), r.Errors().Error())
	assert.Equal(t, target.ID, r.AffectsSwapVersion().ID)
	assert.Nil(t, r.FixSwapVersion())
	require.NoError(t, svc.Delete(ctx, f.Admin, r))

	got, err := f.Store.GetIssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{target.ID}, got.AffectsVersions)
	assert.Empty(t, got.FixVersions)

	remaining, err := svc.GetVersionByID(ctx, f.Admin, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining.Sequence)

	_, err = svc.GetVersionByID(ctx, f.Admin, old.ID)
	ec, ok := errs.From(err)
	require.True(t, ok)
	assert.True(t, ec.HasReason(errs.ReasonNotFound))
}

func TestValidateDeleteSwapTargets(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})
	other := mustCreate(t, svc, f, version.Builder{ProjectID: f.MKY.ID, Name: "1.0"})
	archived := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "old"})
	ar := svc.ValidateArchive(ctx, f.Admin, archived.ID)
	_, err := svc.Archive(ctx, f.Admin, ar)
	require.NoError(t, err)

	for name, target := range map[string]string{
		"itself":        v.ID,
		"missing":       "missing",
		"other project": other.ID,
		"archived":      archived.ID,
	} {
		t.Run(name, func(t *testing.T) {
			r := svc.ValidateDelete(ctx, f.Admin, v.ID, version.Remove(), version.SwapTo(target))
			assert.False(t, r.IsValid())
			assert.True(t, r.HasReason(version.ReasonSwapToVersionInvalid))
			assert.Contains(t, r.Errors().Errors(), "fixVersion")
		})
	}
}

func TestMergeVersions(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	from := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})
	to := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.1"})

	issue := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Bug.ID, Summary: "bug",
		AffectsVersions: []string{from.ID, to.ID}, FixVersions: []string{from.ID}}
	require.NoError(t, f.Store.CreateIssue(ctx, &issue))

	r := svc.ValidateMerge(ctx, f.Admin, from.ID, to.ID)
	require.True(t, r.IsValid(), r.Errors().Error())
	require.NoError(t, svc.Merge(ctx, f.Admin, r))

	got, err := f.Store.GetIssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{to.ID}, got.AffectsVersions)
	assert.Equal(t, []string{to.ID}, got.FixVersions)

	remove := svc.ValidateDelete(ctx, f.Admin, to.ID, version.Remove(), version.Remove())
	require.True(t, remove.IsValid())
	assert.ErrorIs(t, svc.Merge(ctx, f.Admin, remove), errs.ErrInvalidResult)
}

func TestReleaseLifecycle(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0", StartDate: "2024-01-10"})
	next := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.1"})

	open := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Bug.ID, Summary: "open", FixVersions: []string{v.ID}}
	done := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Bug.ID, Summary: "done", Status: model.StatusDone, FixVersions: []string{v.ID}}
	require.NoError(t, f.Store.CreateIssue(ctx, &open))
	require.NoError(t, f.Store.CreateIssue(ctx, &done))

	bad := svc.ValidateRelease(ctx, f.Admin, v.ID, "2024-01-01", "")
	assert.True(t, bad.HasReason(version.ReasonBadStartReleaseOrder))

	r := svc.ValidateRelease(ctx, f.Admin, v.ID, "2024-02-01", next.ID)
	require.True(t, r.IsValid(), r.Errors().Error())
	released, err := svc.Release(ctx, f.Admin, r)
	require.NoError(t, err)
	assert.True(t, released.Released)
	assert.Equal(t, "2024-02-01", released.ReleaseDate.Format(version.DateLayout))

	counts, err := svc.IssueCounts(ctx, f.Admin, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VersionIssueCounts{Fix: 1}, counts)
	nextCounts, err := svc.IssueCounts(ctx, f.Admin, next.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VersionIssueCounts{Fix: 1, Unresolved: 1}, nextCounts)

	again := svc.ValidateRelease(ctx, f.Admin, v.ID, "", "")
	assert.True(t, again.HasReason(version.ReasonAlreadyReleased))

	rel, err := svc.GetReleased(ctx, f.Bob, f.HSP.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, names(rel))
	unrel, err := svc.GetUnreleased(ctx, f.Bob, f.HSP.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1"}, names(unrel))

	ur := svc.ValidateUnrelease(ctx, f.Admin, v.ID)
	require.True(t, ur.IsValid())
	unreleased, err := svc.Unrelease(ctx, f.Admin, ur)
	require.NoError(t, err)
	assert.False(t, unreleased.Released)

	assert.True(t, svc.ValidateUnrelease(ctx, f.Admin, v.ID).HasReason(version.ReasonNotReleased))
}

func TestReleaseDefaultsToToday(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})

	r := svc.ValidateRelease(ctx, f.Admin, v.ID, "", "")
	require.True(t, r.IsValid())
	require.NotNil(t, r.Version().ReleaseDate)
	assert.WithinDuration(t, time.Now().UTC(), *r.Version().ReleaseDate, 48*time.Hour)

	assert.True(t, svc.ValidateRelease(ctx, f.Admin, v.ID, "", v.ID).HasReason(version.ReasonSwapToVersionInvalid))
}

func TestArchiveLifecycle(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "1.0"})

	assert.True(t, svc.ValidateUnarchive(ctx, f.Admin, v.ID).HasReason(version.ReasonNotArchived))

	r := svc.ValidateArchive(ctx, f.Admin, v.ID)
	_, err := svc.Archive(ctx, f.Admin, r)
	require.NoError(t, err)
	assert.True(t, svc.ValidateArchive(ctx, f.Admin, v.ID).HasReason(version.ReasonAlreadyArchived))

	visible, err := svc.GetVersionsByProject(ctx, f.Admin, f.HSP.ID, false)
	require.NoError(t, err)
	assert.Empty(t, visible)

	u := svc.ValidateUnarchive(ctx, f.Admin, v.ID)
	got, err := svc.Unarchive(ctx, f.Admin, u)
	require.NoError(t, err)
	assert.False(t, got.Archived)

	assert.ErrorIs(t, func() error { _, err := svc.Archive(ctx, f.Admin, u); return err }(), errs.ErrInvalidResult)
}

func TestMoveVersion(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	a := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "a"})
	b := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "b"})
	c := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "c"})

	tests := []struct {
		name   string
		id     string
		action version.MoveAction
		want   []string
	}{
		{"first", c.ID, version.MoveAction{Position: version.MoveFirst}, []string{"c", "a", "b"}},
		{"last", c.ID, version.MoveAction{Position: version.MoveLast}, []string{"a", "b", "c"}},
		{"up", b.ID, version.MoveAction{Position: version.MoveUp}, []string{"b", "a", "c"}},
		{"up at top", b.ID, version.MoveAction{Position: version.MoveUp}, []string{"b", "a", "c"}},
		{"down", b.ID, version.MoveAction{Position: version.MoveDown}, []string{"a", "b", "c"}},
		{"after", a.ID, version.MoveAction{Position: version.MoveAfter, AfterID: c.ID}, []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		r := svc.ValidateMove(ctx, f.Admin, tt.id, tt.action)
		require.True(t, r.IsValid(), "%s: %s", tt.name, r.Errors().Error())
		require.NoError(t, svc.Move(ctx, f.Admin, r), tt.name)

		all, err := svc.GetVersionsByProject(ctx, f.Admin, f.HSP.ID, true)
		require.NoError(t, err)
		assert.Equal(t, tt.want, names(all), tt.name)
	}

	self := svc.ValidateMove(ctx, f.Admin, a.ID, version.MoveAction{Position: version.MoveAfter, AfterID: a.ID})
	assert.True(t, self.HasReason(version.ReasonBadMove))
	unknown := svc.ValidateMove(ctx, f.Admin, a.ID, version.MoveAction{Position: "SIDEWAYS"})
	assert.True(t, unknown.HasReason(version.ReasonBadMove))
}

func TestQueriesCheckBrowsePermission(t *testing.T) {
	svc, f := newService(t)
	ctx := context.Background()
	v := mustCreate(t, svc, f, version.Builder{ProjectID: f.HSP.ID, Name: "Alpha"})

	got, err := svc.GetVersionByProjectAndName(ctx, f.Bob, f.HSP.ID, "alpha")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = svc.GetVersionByProjectAndName(ctx, f.Bob, f.HSP.ID, "beta")
	ec, ok := errs.From(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonNotFound, ec.Worst())

	_, err = svc.GetVersionByID(ctx, f.Eve, v.ID)
	ec, ok = errs.From(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonForbidden, ec.Worst())

	_, err = svc.GetVersionsByProject(ctx, model.User{}, f.HSP.ID, false)
	ec, ok = errs.From(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonNotLoggedIn, ec.Worst())
}
