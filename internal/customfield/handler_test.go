package customfield_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/customfield"
	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/tests/testutil"
)

func TestOperationUnmarshal(t *testing.T) {
	var ops []customfield.Operation
	require.NoError(t, json.Unmarshal([]byte(`[{"add":"x"},{"op":"remove","value":["y"]},{"set":{"name":"1.0"}}]`), &ops))
	require.Len(t, ops, 3)
	assert.Equal(t, customfield.OpAdd, ops[0].Op)
	assert.Equal(t, "x", ops[0].Value)
	assert.Equal(t, customfield.OpRemove, ops[1].Op)
	assert.Equal(t, customfield.OpSet, ops[2].Op)

	var bad customfield.Operation
	assert.Error(t, json.Unmarshal([]byte(`{"add":"x","set":"y"}`), &bad))
}

func TestHandlerApply(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	issue := f.NewIssue(t, f.HSP, f.Bug, "issue")
	v1 := f.NewVersion(t, f.HSP, "1.0")
	v2 := f.NewVersion(t, f.HSP, "2.0")
	f.NewVersion(t, f.MKY, "3.0")
	h := customfield.NewHandler(f.Store)

	text := model.CustomField{ID: "cf_text", Name: "Notes", Type: model.FieldTypeText}
	number := model.CustomField{ID: "cf_num", Name: "Points", Type: model.FieldTypeNumber}
	sel := model.CustomField{ID: "cf_sel", Name: "Env", Type: model.FieldTypeSelect, Options: []string{"Prod", "Staging"}}
	multi := model.CustomField{ID: "cf_multi", Name: "OS", Type: model.FieldTypeMultiSelect, Options: []string{"Linux", "Mac", "Windows"}}
	labels := model.CustomField{ID: "cf_labels", Name: "Tags", Type: model.FieldTypeLabels}
	versions := model.CustomField{ID: "cf_ver", Name: "Targets", Type: model.FieldTypeVersions}
	user := model.CustomField{ID: "cf_user", Name: "Reviewer", Type: model.FieldTypeUser}

	tests := []struct {
		name    string
		field   model.CustomField
		current model.FieldValue
		ops     []customfield.Operation
		want    model.FieldValue
		wantErr bool
	}{
		{"text set", text, nil, []customfield.Operation{customfield.Set("  hello ")}, model.FieldValue{"hello"}, false},
		{"text clear", text, model.FieldValue{"old"}, []customfield.Operation{customfield.Set(nil)}, model.FieldValue{}, false},
		{"text add unsupported", text, nil, []customfield.Operation{customfield.Add("x")}, nil, true},
		{"number canonical", number, nil, []customfield.Operation{customfield.Set("3.50")}, model.FieldValue{"3.5"}, false},
		{"number from json", number, nil, []customfield.Operation{customfield.Set(float64(8))}, model.FieldValue{"8"}, false},
		{"number invalid", number, nil, []customfield.Operation{customfield.Set("lots")}, nil, true},
		{"select option case", sel, nil, []customfield.Operation{customfield.Set(map[string]any{"value": "prod"})}, model.FieldValue{"Prod"}, false},
		{"select unknown", sel, nil, []customfield.Operation{customfield.Set("Dev")}, nil, true},
		{"select two values", sel, nil, []customfield.Operation{customfield.Set([]any{"Prod", "Staging"})}, nil, true},
		{"multi add keeps order", multi, model.FieldValue{"Mac"}, []customfield.Operation{customfield.Add([]any{"Linux", "Mac"})}, model.FieldValue{"Mac", "Linux"}, false},
		{"multi remove", multi, model.FieldValue{"Mac", "Linux"}, []customfield.Operation{customfield.Remove("Mac")}, model.FieldValue{"Linux"}, false},
		{"multi set replaces", multi, model.FieldValue{"Mac"}, []customfield.Operation{customfield.Set([]any{"Windows"})}, model.FieldValue{"Windows"}, false},
		{"labels chain", labels, model.FieldValue{"a"}, []customfield.Operation{customfield.Add("b"), customfield.Remove("a"), customfield.Add("c")}, model.FieldValue{"b", "c"}, false},
		{"labels edit", labels, model.FieldValue{"a", "b"}, []customfield.Operation{customfield.Edit("a", "z")}, model.FieldValue{"z", "b"}, false},
		{"labels edit missing value", labels, model.FieldValue{"a", "b"}, []customfield.Operation{customfield.Edit("x", "z")}, nil, true},
		{"labels edit after remove", labels, model.FieldValue{"a"}, []customfield.Operation{customfield.Remove("a"), customfield.Edit("a", "z")}, nil, true},
		{"labels space", labels, nil, []customfield.Operation{customfield.Add("two words")}, nil, true},
		{"versions by name and id", versions, nil, []customfield.Operation{customfield.Add([]any{map[string]any{"name": "1.0"}, map[string]any{"id": v2.ID}})}, model.FieldValue{v1.ID, v2.ID}, false},
		{"versions other project", versions, nil, []customfield.Operation{customfield.Add(map[string]any{"name": "3.0"})}, nil, true},
		{"user", user, nil, []customfield.Operation{customfield.Set(map[string]any{"name": "bob"})}, model.FieldValue{"bob"}, false},
		{"user unknown", user, nil, []customfield.Operation{customfield.Set("mallory")}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ec := errs.New()
			got := h.Apply(ctx, issue, tt.field, tt.current, tt.ops, ec)
			if tt.wantErr {
				assert.True(t, ec.HasAnyErrors())
				assert.Contains(t, ec.Errors(), tt.field.ID)
				return
			}
			require.False(t, ec.HasAnyErrors(), ec.Error())
			assert.Equal(t, tt.want, got)
		})
	}
}
