package customfield

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// Change is the computed new value of one field.
type Change struct {
	Field model.CustomField
	Old   model.FieldValue
	New   model.FieldValue
}

// EditResult is the outcome of ValidateEdit.
type EditResult struct {
	errors  *errs.Collection
	issue   *model.Issue
	changes []Change
}

// IsValid reports whether the edit can be applied.
func (r *EditResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *EditResult) Errors() *errs.Collection { return r.errors }

// Issue returns the issue being edited.
func (r *EditResult) Issue() *model.Issue { return r.issue }

// Changes returns the fields whose value differs from the stored one,
// ordered by field ID.
func (r *EditResult) Changes() []Change { return r.changes }

// Service edits custom field values on issues.
type Service struct {
	store   store.Store
	perms   permission.Checker
	handler *Handler
	log     *logger.Logger
}

// NewService creates a Service.
func NewService(s store.Store, perms permission.Checker, log *logger.Logger) *Service {
	return &Service{store: s, perms: perms, handler: NewHandler(s), log: log}
}

// ValidateEdit applies edits, keyed by field ID or name, to the issue's
// current values without storing them.
func (s *Service) ValidateEdit(
	ctx context.Context,
	user model.User,
	issueKey string,
	edits map[string][]Operation,
) *EditResult {
	r := &EditResult{errors: errs.New()}
	issue, ok := s.loadIssue(ctx, r.errors, user, issueKey, permission.EditIssue)
	if !ok {
		return r
	}
	r.issue = issue

	fields, err := s.store.GetCustomFields(ctx)
	if err != nil {
		s.serverError(r.errors, "loading custom fields", err)
		return r
	}

	keys := make([]string, 0, len(edits))
	for k := range edits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := map[string]bool{}
	for _, key := range keys {
		field, ok := resolveField(fields, key)
		if !ok {
			r.errors.AddErrorWithReason(key, fmt.Sprintf("Field %q does not exist.", key), errs.ReasonValidationFailed)
			continue
		}
		if seen[field.ID] {
			r.errors.AddErrorWithReason(field.ID, fmt.Sprintf("Field %s is edited twice.", field.Name), errs.ReasonValidationFailed)
			continue
		}
		seen[field.ID] = true

		current, err := s.store.GetFieldValue(ctx, issue.ID, field.ID)
		if err != nil {
			s.serverError(r.errors, "loading field value", err)
			return r
		}
		next := s.handler.Apply(ctx, *issue, field, current, edits[key], r.errors)
		if !slices.Equal(current, next) {
			r.changes = append(r.changes, Change{Field: field, Old: current, New: next})
		}
	}
	sort.Slice(r.changes, func(i, j int) bool { return r.changes[i].Field.ID < r.changes[j].Field.ID })
	return r
}

// Edit stores the values computed by ValidateEdit and records them in
// the issue history.
func (s *Service) Edit(ctx context.Context, user model.User, r *EditResult) (map[string]model.FieldValue, error) {
	if r == nil || !r.IsValid() {
		return nil, errs.ErrInvalidResult
	}
	out := make(map[string]model.FieldValue, len(r.changes))
	if len(r.changes) == 0 {
		return out, nil
	}

	values := make([]store.FieldChange, 0, len(r.changes))
	items := make([]model.ChangeItem, 0, len(r.changes))
	for _, c := range r.changes {
		values = append(values, store.FieldChange{FieldID: c.Field.ID, Value: c.New})
		items = append(items, model.ChangeItem{
			Author:   user.Name,
			Field:    c.Field.Name,
			OldValue: strings.Join(c.Old, ", "),
			NewValue: strings.Join(c.New, ", "),
		})
	}
	if err := s.store.SetFieldValues(ctx, r.issue.ID, values, items); err != nil {
		return nil, fmt.Errorf("editing fields on %s: %w", r.issue.Key, err)
	}
	for _, c := range r.changes {
		out[c.Field.ID] = c.New
	}

	s.log.Info("custom fields edited", "user", user.Name, "issue", r.issue.Key, "fields", len(r.changes))
	return out, nil
}

// Values returns every set custom field value of an issue keyed by
// field ID.
func (s *Service) Values(ctx context.Context, user model.User, issueKey string) (map[string]model.FieldValue, error) {
	ec := errs.New()
	issue, ok := s.loadIssue(ctx, ec, user, issueKey, permission.Browse)
	if !ok {
		return nil, ec
	}
	fields, err := s.store.GetCustomFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading custom fields: %w", err)
	}
	out := map[string]model.FieldValue{}
	for _, f := range fields {
		v, err := s.store.GetFieldValue(ctx, issue.ID, f.ID)
		if err != nil {
			return nil, err
		}
		if len(v) > 0 {
			out[f.ID] = v
		}
	}
	return out, nil
}

func (s *Service) loadIssue(
	ctx context.Context,
	ec *errs.Collection,
	user model.User,
	key string,
	p permission.Permission,
) (*model.Issue, bool) {
	issue, err := s.store.GetIssueByKey(ctx, key)
	if store.IsNotFound(err) {
		ec.AddErrorMessageWithReason(fmt.Sprintf("Issue %s does not exist.", key), errs.ReasonNotFound)
		return nil, false
	}
	if err != nil {
		s.serverError(ec, "loading issue", err)
		return nil, false
	}
	ok, err := s.perms.HasProjectPermission(ctx, user, p, issue.ProjectID)
	if err != nil {
		s.serverError(ec, "checking permissions", err)
		return nil, false
	}
	if !ok {
		if user.IsAnonymous() {
			ec.AddErrorMessageWithReason("You are not logged in.", errs.ReasonNotLoggedIn)
		} else {
			ec.AddErrorMessageWithReason(fmt.Sprintf("You do not have permission for issue %s.", key), errs.ReasonForbidden)
		}
		return nil, false
	}
	return issue, true
}

func (s *Service) serverError(ec *errs.Collection, what string, err error) {
	s.log.Error("custom field failure", "op", what, "error", err)
	ec.AddErrorMessageWithReason(fmt.Sprintf("Internal error while %s.", what), errs.ReasonServerError)
}

func resolveField(fields []model.CustomField, key string) (model.CustomField, bool) {
	for _, f := range fields {
		if f.ID == key {
			return f, true
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f.Name, key) {
			return f, true
		}
	}
	return model.CustomField{}, false
}
