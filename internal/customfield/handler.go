package customfield

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// MaxTextLength bounds text values and labels.
const MaxTextLength = 255

// Lookup resolves references held by version and user fields.
type Lookup interface {
	GetVersionsByProject(ctx context.Context, projectID string, includeArchived bool) ([]model.Version, error)
	GetUser(ctx context.Context, name string) (*model.User, error)
}

// Handler applies operations to field values.
type Handler struct {
	lookup Lookup
}

// NewHandler creates a Handler.
func NewHandler(lookup Lookup) *Handler {
	return &Handler{lookup: lookup}
}

// SupportedOps lists the operations a field type accepts.
func SupportedOps(t model.CustomFieldType) []Op {
	if t.IsMulti() {
		return []Op{OpSet, OpAdd, OpRemove, OpEdit}
	}
	return []Op{OpSet}
}

// Apply runs ops in order against current and returns the new value.
// Problems are reported on ec under the field ID; the returned value is
// meaningless when ec gained errors.
func (h *Handler) Apply(
	ctx context.Context,
	issue model.Issue,
	field model.CustomField,
	current model.FieldValue,
	ops []Operation,
	ec *errs.Collection,
) model.FieldValue {
	value := slices.Clone(current)
	supported := SupportedOps(field.Type)

	for _, op := range ops {
		if !slices.Contains(supported, op.Op) {
			ec.AddErrorWithReason(field.ID,
				fmt.Sprintf("Field %s does not support operation %q.", field.Name, op.Op),
				errs.ReasonValidationFailed)
			return current
		}

		if op.Op == OpEdit {
			from, to, err := editPair(op.Value)
			if err != nil {
				ec.AddErrorWithReason(field.ID, fmt.Sprintf("Invalid edit for %s: %v.", field.Name, err), errs.ReasonValidationFailed)
				return current
			}
			pair, ok := h.normalize(ctx, issue, field, []string{from, to}, ec)
			if !ok {
				return current
			}
			if len(pair) != 2 {
				ec.AddErrorWithReason(field.ID, fmt.Sprintf("Edit of %s needs non-empty old and new values.", field.Name), errs.ReasonValidationFailed)
				return current
			}
			if !slices.Contains(value, pair[0]) {
				ec.AddErrorWithReason(field.ID, fmt.Sprintf("Field %s has no value %q to edit.", field.Name, from), errs.ReasonValidationFailed)
				return current
			}
			value = replace(value, pair[0], pair[1])
			continue
		}

		raw, err := scalars(op.Value)
		if err != nil {
			ec.AddErrorWithReason(field.ID, fmt.Sprintf("Invalid value for %s: %v.", field.Name, err), errs.ReasonValidationFailed)
			return current
		}
		vals, ok := h.normalize(ctx, issue, field, raw, ec)
		if !ok {
			return current
		}

		switch op.Op {
		case OpSet:
			if !field.Type.IsMulti() && len(vals) > 1 {
				ec.AddErrorWithReason(field.ID, fmt.Sprintf("Field %s takes a single value.", field.Name), errs.ReasonValidationFailed)
				return current
			}
			value = union(nil, vals)
		case OpAdd:
			value = union(value, vals)
		case OpRemove:
			value = slices.DeleteFunc(value, func(v string) bool { return slices.Contains(vals, v) })
		}
	}
	if len(value) == 0 {
		return model.FieldValue{}
	}
	return value
}

// normalize validates raw values for the field type and converts them
// to their stored form.
func (h *Handler) normalize(
	ctx context.Context,
	issue model.Issue,
	field model.CustomField,
	raw []string,
	ec *errs.Collection,
) ([]string, bool) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		v, msg := h.normalizeOne(ctx, issue, field, r)
		if msg != "" {
			reason := errs.ReasonValidationFailed
			if msg == serverErrorMsg {
				reason = errs.ReasonServerError
			}
			ec.AddErrorWithReason(field.ID, msg, reason)
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

const serverErrorMsg = "Internal error while resolving the value."

func (h *Handler) normalizeOne(ctx context.Context, issue model.Issue, field model.CustomField, v string) (string, string) {
	switch field.Type {
	case model.FieldTypeText:
		if len(v) > MaxTextLength {
			return "", fmt.Sprintf("%s must be at most %d characters.", field.Name, MaxTextLength)
		}
		return v, ""

	case model.FieldTypeNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", fmt.Sprintf("%q is not a valid number.", v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), ""

	case model.FieldTypeSelect, model.FieldTypeMultiSelect:
		for _, opt := range field.Options {
			if strings.EqualFold(opt, v) {
				return opt, ""
			}
		}
		return "", fmt.Sprintf("Option %q is not valid for %s.", v, field.Name)

	case model.FieldTypeLabels:
		if strings.ContainsAny(v, " \t\n") {
			return "", fmt.Sprintf("Label %q must not contain spaces.", v)
		}
		if len(v) > MaxTextLength {
			return "", fmt.Sprintf("Label must be at most %d characters.", MaxTextLength)
		}
		return v, ""

	case model.FieldTypeVersions:
		versions, err := h.lookup.GetVersionsByProject(ctx, issue.ProjectID, true)
		if err != nil {
			return "", serverErrorMsg
		}
		for _, ver := range versions {
			if ver.ID == v {
				return ver.ID, ""
			}
		}
		for _, ver := range versions {
			if strings.EqualFold(ver.Name, v) {
				return ver.ID, ""
			}
		}
		return "", fmt.Sprintf("Version %q does not exist in this project.", v)

	case model.FieldTypeUser:
		u, err := h.lookup.GetUser(ctx, v)
		if store.IsNotFound(err) {
			return "", fmt.Sprintf("User %q does not exist.", v)
		}
		if err != nil {
			return "", serverErrorMsg
		}
		return u.Name, ""
	}
	return "", fmt.Sprintf("Field %s has unknown type %q.", field.Name, field.Type)
}

// union appends the members of add missing from base, keeping order.
func union(base, add []string) []string {
	out := slices.Clone(base)
	for _, v := range add {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// replace swaps from for to, dropping other occurrences of to. from must be
// present in values.
func replace(values []string, from, to string) []string {
	out := slices.DeleteFunc(slices.Clone(values), func(v string) bool { return v == to && v != from })
	out[slices.Index(out, from)] = to
	return out
}
