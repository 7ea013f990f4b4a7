package subtask_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
	"github.com/nhle/tracker/internal/subtask"
	"github.com/nhle/tracker/tests/testutil"
)

func newConverters(t *testing.T, features model.FeatureConfig) (*subtask.IssueToSubTask, *subtask.SubTaskToIssue, *testutil.Fixture) {
	t.Helper()
	f := testutil.NewFixture(t)
	return subtask.NewIssueToSubTask(f.Store, f.Checker(), logger.Nop(), features),
		subtask.NewSubTaskToIssue(f.Store, f.Checker(), logger.Nop()),
		f
}

func subtaskLinks(t *testing.T, f *testutil.Fixture, issueID string) []model.IssueLink {
	t.Helper()
	inward, err := f.Store.GetInwardLinks(context.Background(), issueID)
	require.NoError(t, err)
	var out []model.IssueLink
	for _, l := range inward {
		if l.TypeID == f.SubtaskLink.ID {
			out = append(out, l)
		}
	}
	return out
}

func TestConvertIssueToSubtaskAndBack(t *testing.T) {
	toSub, toIssue, f := newConverters(t, model.FeatureConfig{Subtasks: true})
	ctx := context.Background()
	parent := f.NewIssue(t, f.HSP, f.Task, "parent")
	issue := f.NewIssue(t, f.HSP, f.Bug, "child")

	r := toSub.ValidateConvert(ctx, f.Alice, issue.Key, parent.Key, f.Subtask.ID)
	require.True(t, r.IsValid(), r.Errors().Error())

	converted, err := toSub.Convert(ctx, f.Alice, r)
	require.NoError(t, err)
	require.NotNil(t, converted.ParentID)
	assert.Equal(t, parent.ID, *converted.ParentID)
	assert.Equal(t, f.Subtask.ID, converted.TypeID)

	links := subtaskLinks(t, f, issue.ID)
	require.Len(t, links, 1)
	assert.Equal(t, parent.ID, links[0].SourceID)

	history, err := f.Store.GetChangeItems(ctx, issue.ID)
	require.NoError(t, err)
	fields := map[string]model.ChangeItem{}
	for _, c := range history {
		fields[c.Field] = c
	}
	assert.Equal(t, "Bug", fields["issuetype"].OldValue)
	assert.Equal(t, "Sub-task", fields["issuetype"].NewValue)
	assert.Equal(t, parent.Key, fields["Parent"].NewValue)

	back := toIssue.ValidateConvert(ctx, f.Alice, issue.Key, f.Task.ID)
	require.True(t, back.IsValid(), back.Errors().Error())
	restored, err := toIssue.Convert(ctx, f.Alice, back)
	require.NoError(t, err)
	assert.False(t, restored.IsSubtask())
	assert.Equal(t, f.Task.ID, restored.TypeID)
	assert.Empty(t, subtaskLinks(t, f, issue.ID))
}

func TestValidateIssueToSubtask(t *testing.T) {
	toSub, _, f := newConverters(t, model.FeatureConfig{Subtasks: true})
	ctx := context.Background()
	parent := f.NewIssue(t, f.HSP, f.Task, "parent")
	issue := f.NewIssue(t, f.HSP, f.Bug, "issue")
	other := f.NewIssue(t, f.MKY, f.Task, "elsewhere")

	child := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Subtask.ID, Summary: "child", ParentID: &parent.ID}
	testutil.Must(t, f.Store.CreateIssue(ctx, &child))

	tests := []struct {
		name   string
		user   model.User
		issue  string
		parent string
		typeID string
		field  string
		reason errs.Reason
	}{
		{"missing issue", f.Alice, "HSP-999", parent.Key, f.Subtask.ID, "issue", errs.ReasonNotFound},
		{"anonymous", model.User{}, issue.Key, parent.Key, f.Subtask.ID, "", errs.ReasonNotLoggedIn},
		{"browse only", f.Bob, issue.Key, parent.Key, f.Subtask.ID, "", errs.ReasonForbidden},
		{"already subtask", f.Alice, child.Key, parent.Key, f.Subtask.ID, "issue", errs.ReasonValidationFailed},
		{"has subtasks", f.Alice, parent.Key, issue.Key, f.Subtask.ID, "issue", errs.ReasonValidationFailed},
		{"own parent", f.Alice, issue.Key, issue.Key, f.Subtask.ID, "parent", errs.ReasonValidationFailed},
		{"subtask parent", f.Alice, issue.Key, child.Key, f.Subtask.ID, "parent", errs.ReasonValidationFailed},
		{"other project", f.Alice, issue.Key, other.Key, f.Subtask.ID, "parent", errs.ReasonValidationFailed},
		{"missing parent", f.Alice, issue.Key, "HSP-999", f.Subtask.ID, "parent", errs.ReasonNotFound},
		{"standard type", f.Alice, issue.Key, parent.Key, f.Task.ID, "issuetype", errs.ReasonValidationFailed},
		{"unknown type", f.Alice, issue.Key, parent.Key, "nope", "issuetype", errs.ReasonValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := toSub.ValidateConvert(ctx, tt.user, tt.issue, tt.parent, tt.typeID)
			require.False(t, r.IsValid())
			assert.True(t, r.Errors().HasReason(tt.reason), r.Errors().Error())
			if tt.field != "" {
				assert.Contains(t, r.Errors().Errors(), tt.field)
			}

			_, err := toSub.Convert(ctx, tt.user, r)
			assert.ErrorIs(t, err, errs.ErrInvalidResult)
		})
	}
}

func TestIssueToSubtaskDisabled(t *testing.T) {
	toSub, _, f := newConverters(t, model.FeatureConfig{})
	parent := f.NewIssue(t, f.HSP, f.Task, "parent")
	issue := f.NewIssue(t, f.HSP, f.Bug, "issue")

	r := toSub.ValidateConvert(context.Background(), f.Alice, issue.Key, parent.Key, f.Subtask.ID)
	assert.False(t, r.IsValid())
	assert.Equal(t, errs.ReasonForbidden, r.Errors().Worst())
}

func TestValidateSubtaskToIssue(t *testing.T) {
	_, toIssue, f := newConverters(t, model.FeatureConfig{Subtasks: true})
	ctx := context.Background()
	parent := f.NewIssue(t, f.HSP, f.Task, "parent")
	child := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Subtask.ID, Summary: "child", ParentID: &parent.ID}
	testutil.Must(t, f.Store.CreateIssue(ctx, &child))

	r := toIssue.ValidateConvert(ctx, f.Alice, parent.Key, f.Task.ID)
	assert.True(t, r.Errors().HasReason(errs.ReasonValidationFailed))
	assert.Contains(t, r.Errors().Errors(), "issue")

	r = toIssue.ValidateConvert(ctx, f.Alice, child.Key, f.Subtask.ID)
	assert.Contains(t, r.Errors().Errors(), "issuetype")

	r = toIssue.ValidateConvert(ctx, f.Bob, child.Key, f.Task.ID)
	assert.Equal(t, errs.ReasonForbidden, r.Errors().Worst())
}

// parentLookupStore fails lookups of one issue by ID.
type parentLookupStore struct {
	store.Store
	id  string
	err error
}

func (s parentLookupStore) GetIssueByID(ctx context.Context, id string) (*model.Issue, error) {
	if id == s.id {
		return nil, s.err
	}
	return s.Store.GetIssueByID(ctx, id)
}

func TestSubtaskToIssueParentLookupFails(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	parent := f.NewIssue(t, f.HSP, f.Task, "parent")
	child := model.Issue{ProjectID: f.HSP.ID, TypeID: f.Subtask.ID, Summary: "child", ParentID: &parent.ID}
	testutil.Must(t, f.Store.CreateIssue(ctx, &child))

	tests := []struct {
		name   string
		err    error
		reason errs.Reason
		field  string
	}{
		{"missing parent", store.ErrNotFound, errs.ReasonValidationFailed, "parent"},
		{"lookup error", errors.New("disk I/O error"), errs.ReasonServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := parentLookupStore{Store: f.Store, id: parent.ID, err: tt.err}
			toIssue := subtask.NewSubTaskToIssue(s, f.Checker(), logger.Nop())

			r := toIssue.ValidateConvert(ctx, f.Alice, child.Key, f.Task.ID)
			require.False(t, r.IsValid())
			assert.True(t, r.Errors().HasReason(tt.reason), "reasons: %v", r.Errors().Reasons())
			if tt.field != "" {
				assert.Contains(t, r.Errors().Errors(), tt.field)
			}
			_, err := toIssue.Convert(ctx, f.Alice, r)
			assert.ErrorIs(t, err, errs.ErrInvalidResult)

			got, err := f.Store.GetIssueByID(ctx, child.ID)
			require.NoError(t, err)
			assert.Equal(t, f.Subtask.ID, got.TypeID)
		})
	}
}
