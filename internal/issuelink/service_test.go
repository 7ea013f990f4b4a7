package issuelink_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/tests/testutil"
)

var allFeatures = model.FeatureConfig{IssueLinking: true, RemoteLinks: true, Subtasks: true}

func newLinkService(t *testing.T) (*issuelink.Service, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	return issuelink.NewService(f.Store, f.Checker(), logger.Nop(), allFeatures), f
}

func TestAddIssueLinks(t *testing.T) {
	svc, f := newLinkService(t)
	ctx := context.Background()
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")
	c := f.NewIssue(t, f.HSP, f.Bug, "c")

	r := svc.ValidateAddIssueLinks(ctx, f.Alice, a.Key, "Blocks", "", []string{b.Key, c.Key, "hsp-2"})
	require.True(t, r.IsValid(), r.Errors().Error())
	assert.Equal(t, issuelink.Outward, r.Direction())
	assert.Len(t, r.Targets(), 2)

	links, err := svc.AddIssueLinks(ctx, f.Alice, r)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, a.ID, links[0].SourceID)
	assert.Equal(t, b.ID, links[0].DestinationID)
	assert.Equal(t, 1, links[0].Sequence)
	assert.Equal(t, 2, links[1].Sequence)

	// Adding again returns the existing links.
	again, err := svc.AddIssueLinks(ctx, f.Alice, svc.ValidateAddIssueLinks(ctx, f.Alice, a.Key, "Blocks", "", []string{b.Key}))
	require.NoError(t, err)
	assert.Equal(t, links[0].ID, again[0].ID)
}

func TestAddIssueLinksByDescription(t *testing.T) {
	svc, f := newLinkService(t)
	ctx := context.Background()
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")

	r := svc.ValidateAddIssueLinks(ctx, f.Alice, a.Key, "is blocked by", issuelink.Outward, []string{b.Key})
	require.True(t, r.IsValid(), r.Errors().Error())
	assert.Equal(t, issuelink.Inward, r.Direction())
	assert.Equal(t, f.Blocks.ID, r.LinkType().ID)

	links, err := svc.AddIssueLinks(ctx, f.Alice, r)
	require.NoError(t, err)
	assert.Equal(t, b.ID, links[0].SourceID)
	assert.Equal(t, a.ID, links[0].DestinationID)
}

func TestValidateAddIssueLinksErrors(t *testing.T) {
	svc, f := newLinkService(t)
	ctx := context.Background()
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")
	hidden := f.NewIssue(t, f.MKY, f.Bug, "hidden")

	tests := []struct {
		name     string
		user     model.User
		issue    string
		linkType string
		keys     []string
		field    string
		reason   errs.Reason
	}{
		{"missing issue", f.Alice, "HSP-99", "Blocks", []string{b.Key}, "issue", errs.ReasonNotFound},
		{"no link permission", f.Bob, a.Key, "Blocks", []string{b.Key}, "", errs.ReasonForbidden},
		{"anonymous", model.User{}, a.Key, "Blocks", []string{b.Key}, "", errs.ReasonNotLoggedIn},
		{"unknown link type", f.Alice, a.Key, "Relates", []string{b.Key}, "linktype", errs.ReasonValidationFailed},
		{"system link type", f.Alice, a.Key, f.SubtaskLink.Name, []string{b.Key}, "linktype", errs.ReasonValidationFailed},
		{"no keys", f.Alice, a.Key, "Blocks", nil, "issuelinks", errs.ReasonValidationFailed},
		{"bad key", f.Alice, a.Key, "Blocks", []string{"not a key"}, "", errs.ReasonValidationFailed},
		{"missing target", f.Alice, a.Key, "Blocks", []string{"HSP-42"}, "", errs.ReasonNotFound},
		{"self link", f.Alice, a.Key, "Blocks", []string{a.Key}, "", errs.ReasonValidationFailed},
		{"hidden target", f.Alice, a.Key, "Blocks", []string{hidden.Key}, "", errs.ReasonForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := svc.ValidateAddIssueLinks(ctx, tt.user, tt.issue, tt.linkType, "", tt.keys)
			require.False(t, r.IsValid())
			assert.True(t, r.Errors().HasReason(tt.reason), "reasons: %v", r.Errors().Reasons())
			if tt.field != "" {
				assert.Contains(t, r.Errors().Errors(), tt.field)
			}
			_, err := svc.AddIssueLinks(ctx, tt.user, r)
			assert.ErrorIs(t, err, errs.ErrInvalidResult)
		})
	}
}

func TestValidateAddIssueLinksReportsEveryKey(t *testing.T) {
	svc, f := newLinkService(t)
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")

	r := svc.ValidateAddIssueLinks(context.Background(), f.Alice, a.Key, "Blocks", "",
		[]string{"not a key", "HSP-42", "HSP-43", a.Key, b.Key})
	require.False(t, r.IsValid())
	assert.ElementsMatch(t, []string{
		`"not a key" is not a valid issue key.`,
		"Issue HSP-42 does not exist.",
		"Issue HSP-43 does not exist.",
		"You cannot link " + a.Key + " to itself.",
	}, r.Errors().ErrorMessages())
	assert.Empty(t, r.Errors().Errors())
	require.Len(t, r.Targets(), 1)
	assert.Equal(t, b.Key, r.Targets()[0].Key)
}

func TestLinkingDisabled(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := issuelink.NewService(f.Store, f.Checker(), logger.Nop(), model.FeatureConfig{})
	a := f.NewIssue(t, f.HSP, f.Bug, "a")

	r := svc.ValidateAddIssueLinks(context.Background(), f.Alice, a.Key, "Blocks", "", []string{"HSP-2"})
	assert.False(t, r.IsValid())
	assert.Equal(t, errs.ReasonForbidden, r.Errors().Worst())
}

func TestGetIssueLinks(t *testing.T) {
	svc, f := newLinkService(t)
	ctx := context.Background()
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")
	c := f.NewIssue(t, f.HSP, f.Bug, "c")
	hidden := f.NewIssue(t, f.MKY, f.Bug, "hidden")

	for _, l := range []model.IssueLink{
		{TypeID: f.Blocks.ID, SourceID: a.ID, DestinationID: b.ID},
		{TypeID: f.Duplicate.ID, SourceID: c.ID, DestinationID: a.ID},
		{TypeID: f.Blocks.ID, SourceID: a.ID, DestinationID: hidden.ID},
		{TypeID: f.SubtaskLink.ID, SourceID: a.ID, DestinationID: c.ID},
	} {
		require.NoError(t, f.Store.CreateIssueLink(ctx, &l))
	}

	got, err := svc.GetIssueLinks(ctx, f.Bob, a.Key, false)
	require.NoError(t, err)
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "Blocks", got.Groups[0].Type.Name)
	assert.Equal(t, "blocks", got.Groups[0].Description)
	require.Len(t, got.Groups[0].Links, 1)
	assert.Equal(t, b.Key, got.Groups[0].Links[0].Issue.Key)
	assert.Equal(t, issuelink.Inward, got.Groups[1].Direction)
	assert.Equal(t, "is duplicated by", got.Groups[1].Description)
	assert.Len(t, got.AllIssues(), 2)

	withSystem, err := svc.GetIssueLinks(ctx, f.Admin, a.Key, true)
	require.NoError(t, err)
	assert.Len(t, withSystem.Groups, 3)
	assert.Len(t, withSystem.AllIssues(), 3)

	_, err = svc.GetIssueLinks(ctx, f.Eve, a.Key, false)
	ec, ok := errs.From(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonForbidden, ec.Worst())
}

func TestDeleteIssueLink(t *testing.T) {
	svc, f := newLinkService(t)
	ctx := context.Background()
	a := f.NewIssue(t, f.HSP, f.Bug, "a")
	b := f.NewIssue(t, f.HSP, f.Bug, "b")
	c := f.NewIssue(t, f.HSP, f.Bug, "c")

	link := model.IssueLink{TypeID: f.Blocks.ID, SourceID: a.ID, DestinationID: b.ID}
	require.NoError(t, f.Store.CreateIssueLink(ctx, &link))
	system := model.IssueLink{TypeID: f.SubtaskLink.ID, SourceID: a.ID, DestinationID: c.ID}
	require.NoError(t, f.Store.CreateIssueLink(ctx, &system))

	assert.True(t, svc.ValidateDelete(ctx, f.Alice, c.Key, link.ID).Errors().HasReason(errs.ReasonNotFound))
	assert.True(t, svc.ValidateDelete(ctx, f.Alice, a.Key, "nope").Errors().HasReason(errs.ReasonNotFound))
	assert.False(t, svc.ValidateDelete(ctx, f.Alice, a.Key, system.ID).IsValid())
	assert.True(t, svc.ValidateDelete(ctx, f.Bob, a.Key, link.ID).Errors().HasReason(errs.ReasonForbidden))

	// Either end of the link may remove it.
	r := svc.ValidateDelete(ctx, f.Alice, b.Key, link.ID)
	require.True(t, r.IsValid(), r.Errors().Error())
	require.NoError(t, svc.Delete(ctx, f.Alice, r))

	_, err := f.Store.GetIssueLink(ctx, link.ID)
	assert.Error(t, err)
}
