package issuelink_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/tests/testutil"
)

func newRemoteService(t *testing.T) (*issuelink.RemoteService, *testutil.Fixture, model.Issue) {
	t.Helper()
	f := testutil.NewFixture(t)
	issue := f.NewIssue(t, f.HSP, f.Bug, "with remote links")
	return issuelink.NewRemoteService(f.Store, f.Checker(), logger.Nop(), allFeatures), f, issue
}

func TestCreateRemoteLink(t *testing.T) {
	svc, f, issue := newRemoteService(t)
	ctx := context.Background()

	r := svc.ValidateCreate(ctx, f.Alice, issue.Key, issuelink.RemoteBuilder{
		URL: "https://ci.example.com/build/42", Title: "Build 42", Relationship: "built by",
	})
	require.True(t, r.IsValid(), r.Errors().Error())
	assert.True(t, strings.HasPrefix(r.Link().GlobalID, "urn:uuid:"))

	link, err := svc.Create(ctx, f.Alice, r)
	require.NoError(t, err)
	assert.NotEmpty(t, link.ID)

	got, err := svc.GetRemoteLinkByGlobalID(ctx, f.Bob, issue.Key, link.GlobalID)
	require.NoError(t, err)
	assert.Equal(t, "Build 42", got.Title)

	all, err := svc.GetRemoteLinks(ctx, f.Bob, issue.Key)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestValidateCreateRemoteLinkErrors(t *testing.T) {
	svc, f, issue := newRemoteService(t)
	ctx := context.Background()

	first := svc.ValidateCreate(ctx, f.Alice, issue.Key, issuelink.RemoteBuilder{GlobalID: "build=1", URL: "http://ci/1", Title: "one"})
	_, err := svc.Create(ctx, f.Alice, first)
	require.NoError(t, err)

	tests := []struct {
		name    string
		user    model.User
		builder issuelink.RemoteBuilder
		field   string
		reason  errs.Reason
	}{
		{"missing url", f.Alice, issuelink.RemoteBuilder{Title: "t"}, "url", errs.ReasonValidationFailed},
		{"relative url", f.Alice, issuelink.RemoteBuilder{URL: "/build/1", Title: "t"}, "url", errs.ReasonValidationFailed},
		{"ftp url", f.Alice, issuelink.RemoteBuilder{URL: "ftp://host/x", Title: "t"}, "url", errs.ReasonValidationFailed},
		{"missing title", f.Alice, issuelink.RemoteBuilder{URL: "http://ci/2"}, "title", errs.ReasonValidationFailed},
		{"bad icon", f.Alice, issuelink.RemoteBuilder{URL: "http://ci/2", Title: "t", IconURL: "icon.png"}, "iconUrl", errs.ReasonValidationFailed},
		{"duplicate global id", f.Alice, issuelink.RemoteBuilder{GlobalID: "build=1", URL: "http://ci/2", Title: "t"}, "globalId", errs.ReasonConflict},
		{"title too long", f.Alice, issuelink.RemoteBuilder{URL: "http://ci/2", Title: strings.Repeat("é", 256)}, "title", errs.ReasonValidationFailed},
		{"no edit permission", f.Bob, issuelink.RemoteBuilder{URL: "http://ci/2", Title: "t"}, "", errs.ReasonForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := svc.ValidateCreate(ctx, tt.user, issue.Key, tt.builder)
			require.False(t, r.IsValid())
			assert.True(t, r.Errors().HasReason(tt.reason), "reasons: %v", r.Errors().Reasons())
			if tt.field != "" {
				assert.Contains(t, r.Errors().Errors(), tt.field)
			}
		})
	}
}

func TestRemoteLinkTitleLimitCountsCharacters(t *testing.T) {
	svc, f, issue := newRemoteService(t)

	title := strings.Repeat("é", 254) + "…"
	r := svc.ValidateCreate(context.Background(), f.Alice, issue.Key, issuelink.RemoteBuilder{
		URL: "https://ci.example.com/build/7", Title: title,
	})
	require.True(t, r.IsValid(), r.Errors().Error())
	assert.Equal(t, title, r.Link().Title)
}

func TestUpdateAndDeleteRemoteLink(t *testing.T) {
	svc, f, issue := newRemoteService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, f.Alice, svc.ValidateCreate(ctx, f.Alice, issue.Key, issuelink.RemoteBuilder{GlobalID: "a", URL: "http://x/a", Title: "A"}))
	require.NoError(t, err)
	b, err := svc.Create(ctx, f.Alice, svc.ValidateCreate(ctx, f.Alice, issue.Key, issuelink.RemoteBuilder{GlobalID: "b", URL: "http://x/b", Title: "B"}))
	require.NoError(t, err)

	clash := svc.ValidateUpdate(ctx, f.Alice, issue.Key, a.ID, issuelink.RemoteBuilder{GlobalID: "b", URL: "http://x/a", Title: "A"})
	assert.True(t, clash.Errors().HasReason(errs.ReasonConflict))

	u := svc.ValidateUpdate(ctx, f.Alice, issue.Key, a.ID, issuelink.RemoteBuilder{URL: "https://x/a2", Title: "A2"})
	require.True(t, u.IsValid(), u.Errors().Error())
	updated, err := svc.Update(ctx, f.Alice, u)
	require.NoError(t, err)
	assert.Equal(t, "a", updated.GlobalID)
	assert.Equal(t, "A2", updated.Title)
	_, err = svc.Create(ctx, f.Alice, u)
	assert.ErrorIs(t, err, errs.ErrInvalidResult)

	d := svc.ValidateDelete(ctx, f.Alice, issue.Key, a.ID)
	require.True(t, d.IsValid())
	require.NoError(t, svc.Delete(ctx, f.Alice, d))

	missing := svc.ValidateDeleteByGlobalID(ctx, f.Alice, issue.Key, "a")
	assert.True(t, missing.Errors().HasReason(errs.ReasonNotFound))

	g := svc.ValidateDeleteByGlobalID(ctx, f.Alice, issue.Key, b.GlobalID)
	require.True(t, g.IsValid())
	require.NoError(t, svc.DeleteByGlobalID(ctx, f.Alice, g))

	all, err := svc.GetRemoteLinks(ctx, f.Alice, issue.Key)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRemoteLinksDisabled(t *testing.T) {
	f := testutil.NewFixture(t)
	issue := f.NewIssue(t, f.HSP, f.Bug, "x")
	svc := issuelink.NewRemoteService(f.Store, f.Checker(), logger.Nop(), model.FeatureConfig{IssueLinking: true})

	r := svc.ValidateCreate(context.Background(), f.Alice, issue.Key, issuelink.RemoteBuilder{URL: "http://x", Title: "x"})
	assert.Equal(t, errs.ReasonForbidden, r.Errors().Worst())
}
