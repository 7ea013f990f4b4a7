package customfield_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/customfield"
	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/tests/testutil"
)

func newFieldService(t *testing.T) (*customfield.Service, *testutil.Fixture, model.Issue) {
	t.Helper()
	f := testutil.NewFixture(t)
	ctx := context.Background()
	testutil.Must(t, f.Store.CreateCustomField(ctx, &model.CustomField{ID: "cf_labels", Name: "Tags", Type: model.FieldTypeLabels}))
	testutil.Must(t, f.Store.CreateCustomField(ctx, &model.CustomField{ID: "cf_num", Name: "Points", Type: model.FieldTypeNumber}))
	issue := f.NewIssue(t, f.HSP, f.Bug, "issue")
	return customfield.NewService(f.Store, f.Checker(), logger.Nop()), f, issue
}

func TestEditCustomFields(t *testing.T) {
	svc, f, issue := newFieldService(t)
	ctx := context.Background()

	r := svc.ValidateEdit(ctx, f.Alice, issue.Key, map[string][]customfield.Operation{
		"cf_labels": {customfield.Add([]any{"ui", "db"})},
		"points":    {customfield.Set("5")},
	})
	require.True(t, r.IsValid(), r.Errors().Error())
	require.Len(t, r.Changes(), 2)
	assert.Equal(t, "cf_labels", r.Changes()[0].Field.ID)

	out, err := svc.Edit(ctx, f.Alice, r)
	require.NoError(t, err)
	assert.Equal(t, model.FieldValue{"ui", "db"}, out["cf_labels"])

	values, err := svc.Values(ctx, f.Bob, issue.Key)
	require.NoError(t, err)
	assert.Equal(t, model.FieldValue{"5"}, values["cf_num"])

	history, err := f.Store.GetChangeItems(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	byField := map[string]string{}
	for _, c := range history {
		byField[c.Field] = c.NewValue
	}
	assert.Equal(t, "ui, db", byField["Tags"])
	assert.Equal(t, "5", byField["Points"])

	// Re-applying the same value is a no-op.
	again := svc.ValidateEdit(ctx, f.Alice, issue.Key, map[string][]customfield.Operation{
		"cf_num": {customfield.Set("5.0")},
	})
	require.True(t, again.IsValid())
	assert.Empty(t, again.Changes())
}

func TestEditKeepsConcurrentIssueChanges(t *testing.T) {
	svc, f, issue := newFieldService(t)
	ctx := context.Background()

	r := svc.ValidateEdit(ctx, f.Alice, issue.Key, map[string][]customfield.Operation{
		"cf_num": {customfield.Set("3")},
	})
	require.True(t, r.IsValid(), r.Errors().Error())

	current, err := f.Store.GetIssueByKey(ctx, issue.Key)
	require.NoError(t, err)
	current.Summary = "renamed meanwhile"
	current.Status = model.StatusDone
	require.NoError(t, f.Store.UpdateIssue(ctx, *current, nil))

	_, err = svc.Edit(ctx, f.Alice, r)
	require.NoError(t, err)

	got, err := f.Store.GetIssueByKey(ctx, issue.Key)
	require.NoError(t, err)
	assert.Equal(t, "renamed meanwhile", got.Summary)
	assert.Equal(t, model.StatusDone, got.Status)
	assert.True(t, !got.UpdatedAt.Before(current.UpdatedAt))

	v, err := f.Store.GetFieldValue(ctx, issue.ID, "cf_num")
	require.NoError(t, err)
	assert.Equal(t, model.FieldValue{"3"}, v)
}

func TestValidateEditErrors(t *testing.T) {
	svc, f, issue := newFieldService(t)
	ctx := context.Background()

	r := svc.ValidateEdit(ctx, f.Bob, issue.Key, map[string][]customfield.Operation{"cf_num": {customfield.Set("1")}})
	assert.Equal(t, errs.ReasonForbidden, r.Errors().Worst())

	r = svc.ValidateEdit(ctx, model.User{}, issue.Key, nil)
	assert.Equal(t, errs.ReasonNotLoggedIn, r.Errors().Worst())

	r = svc.ValidateEdit(ctx, f.Alice, "HSP-404", nil)
	assert.Equal(t, errs.ReasonNotFound, r.Errors().Worst())

	r = svc.ValidateEdit(ctx, f.Alice, issue.Key, map[string][]customfield.Operation{
		"nope":   {customfield.Set("1")},
		"cf_num": {customfield.Set("1")},
		"Points": {customfield.Set("2")},
	})
	assert.False(t, r.IsValid())
	assert.Contains(t, r.Errors().Errors(), "nope")
	assert.Contains(t, r.Errors().Errors(), "cf_num")

	_, err := svc.Edit(ctx, f.Alice, r)
	assert.ErrorIs(t, err, errs.ErrInvalidResult)

	_, err = svc.Values(ctx, f.Eve, issue.Key)
	ec, ok := errs.From(err)
	require.True(t, ok)
	assert.Equal(t, errs.ReasonForbidden, ec.Worst())
}
