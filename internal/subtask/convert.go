// Package subtask converts standard issues into subtasks of another
// issue and subtasks back into standard issues.
package subtask

import (
	"context"
	"fmt"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// ConvertResult is the outcome of a conversion validation.
type ConvertResult struct {
	errors      *errs.Collection
	issue       *model.Issue
	parent      *model.Issue
	oldParent   *model.Issue
	oldType     *model.IssueType
	targetType  *model.IssueType
	subtaskLink *model.IssueLinkType
}

// IsValid reports whether the conversion can run.
func (r *ConvertResult) IsValid() bool { return !r.errors.HasAnyErrors() }

// Errors returns the collected errors.
func (r *ConvertResult) Errors() *errs.Collection { return r.errors }

// Issue returns the issue being converted.
func (r *ConvertResult) Issue() *model.Issue { return r.issue }

// Parent returns the new parent, or nil when converting to an issue.
func (r *ConvertResult) Parent() *model.Issue { return r.parent }

// TargetType returns the issue type after conversion.
func (r *ConvertResult) TargetType() *model.IssueType { return r.targetType }

// converter holds what both conversion directions share.
type converter struct {
	store store.Store
	perms permission.Checker
	log   *logger.Logger
}

func (c converter) loadIssue(ctx context.Context, ec *errs.Collection, field, key string) *model.Issue {
	issue, err := c.store.GetIssueByKey(ctx, key)
	if store.IsNotFound(err) {
		ec.AddErrorWithReason(field, fmt.Sprintf("Issue %s does not exist.", key), errs.ReasonNotFound)
		return nil
	}
	if err != nil {
		c.serverError(ec, "loading issue", err)
		return nil
	}
	return issue
}

func (c converter) loadType(ctx context.Context, ec *errs.Collection, id string) *model.IssueType {
	it, err := c.store.GetIssueType(ctx, id)
	if store.IsNotFound(err) {
		ec.AddErrorWithReason("issuetype", fmt.Sprintf("Issue type %q does not exist.", id), errs.ReasonValidationFailed)
		return nil
	}
	if err != nil {
		c.serverError(ec, "loading issue type", err)
		return nil
	}
	return it
}

func (c converter) subtaskLinkType(ctx context.Context, ec *errs.Collection) *model.IssueLinkType {
	types, err := c.store.GetLinkTypes(ctx)
	if err != nil {
		c.serverError(ec, "loading link types", err)
		return nil
	}
	for _, lt := range types {
		if lt.IsSystem() {
			return &lt
		}
	}
	ec.AddErrorMessageWithReason("The subtask link type is not configured.", errs.ReasonServerError)
	return nil
}

// requirePerms records an error for the first permission user lacks.
func (c converter) requirePerms(
	ctx context.Context,
	ec *errs.Collection,
	user model.User,
	projectID string,
	perms ...permission.Permission,
) bool {
	if user.IsAnonymous() {
		ec.AddErrorMessageWithReason("You must be logged in to convert issues.", errs.ReasonNotLoggedIn)
		return false
	}
	for _, p := range perms {
		ok, err := c.perms.HasProjectPermission(ctx, user, p, projectID)
		if err != nil {
			c.serverError(ec, "checking permissions", err)
			return false
		}
		if !ok {
			ec.AddErrorMessageWithReason(fmt.Sprintf("You need the %s permission to convert this issue.", p), errs.ReasonForbidden)
			return false
		}
	}
	return true
}

func (c converter) serverError(ec *errs.Collection, what string, err error) {
	c.log.Error("subtask conversion failure", "op", what, "error", err)
	ec.AddErrorMessageWithReason(fmt.Sprintf("Internal error while %s.", what), errs.ReasonServerError)
}

// convert stores the issue with its new parent and type and records the
// change history.
func (c converter) convert(ctx context.Context, user model.User, r *ConvertResult, oldParentKey string) (*model.Issue, error) {
	updated := *r.issue
	updated.TypeID = r.targetType.ID
	updated.ParentID = nil
	newParentKey := ""
	if r.parent != nil {
		updated.ParentID = &r.parent.ID
		newParentKey = r.parent.Key
	}

	changes := []model.ChangeItem{
		{Author: user.Name, Field: "issuetype", OldValue: r.oldType.Name, NewValue: r.targetType.Name},
		{Author: user.Name, Field: "Parent", OldValue: oldParentKey, NewValue: newParentKey},
	}
	if err := c.store.ReparentIssue(ctx, updated, changes, r.subtaskLink.ID); err != nil {
		return nil, fmt.Errorf("converting %s: %w", r.issue.Key, err)
	}
	return c.store.GetIssueByID(ctx, updated.ID)
}

// IssueToSubTask turns a standard issue into a subtask.
type IssueToSubTask struct {
	converter
	enabled bool
}

// NewIssueToSubTask creates the conversion service. It refuses every
// conversion unless features.Subtasks is set.
func NewIssueToSubTask(
	s store.Store,
	perms permission.Checker,
	log *logger.Logger,
	features model.FeatureConfig,
) *IssueToSubTask {
	return &IssueToSubTask{converter: converter{store: s, perms: perms, log: log}, enabled: features.Subtasks}
}

// ValidateConvert checks that issueKey can become a subtask of parentKey
// with issue type targetTypeID.
func (c *IssueToSubTask) ValidateConvert(
	ctx context.Context,
	user model.User,
	issueKey string,
	parentKey string,
	targetTypeID string,
) *ConvertResult {
	r := &ConvertResult{errors: errs.New()}
	if !c.enabled {
		r.errors.AddErrorMessageWithReason("Subtasks are disabled.", errs.ReasonForbidden)
		return r
	}

	issue := c.loadIssue(ctx, r.errors, "issue", issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue
	if !c.requirePerms(ctx, r.errors, user, issue.ProjectID, permission.EditIssue, permission.MoveIssue) {
		return r
	}
	if issue.IsSubtask() {
		r.errors.AddErrorWithReason("issue", fmt.Sprintf("Issue %s is already a subtask.", issue.Key), errs.ReasonValidationFailed)
		return r
	}

	children, err := c.store.GetIssues(ctx, store.IssueFilter{ParentID: &issue.ID, Limit: 1})
	if err != nil {
		c.serverError(r.errors, "loading subtasks", err)
		return r
	}
	if len(children) > 0 {
		r.errors.AddErrorWithReason("issue", fmt.Sprintf("Issue %s has subtasks and cannot become a subtask.", issue.Key), errs.ReasonValidationFailed)
	}

	if parent := c.loadIssue(ctx, r.errors, "parent", parentKey); parent != nil {
		switch {
		case parent.ID == issue.ID:
			r.errors.AddErrorWithReason("parent", "An issue cannot be its own parent.", errs.ReasonValidationFailed)
		case parent.IsSubtask():
			r.errors.AddErrorWithReason("parent", fmt.Sprintf("Issue %s is a subtask and cannot have subtasks.", parent.Key), errs.ReasonValidationFailed)
		case parent.ProjectID != issue.ProjectID:
			r.errors.AddErrorWithReason("parent", "The parent must be in the same project.", errs.ReasonValidationFailed)
		default:
			r.parent = parent
		}
	}

	if target := c.loadType(ctx, r.errors, targetTypeID); target != nil {
		if !target.Subtask {
			r.errors.AddErrorWithReason("issuetype", fmt.Sprintf("Issue type %s is not a subtask type.", target.Name), errs.ReasonValidationFailed)
		}
		r.targetType = target
	}
	r.oldType = c.loadType(ctx, r.errors, issue.TypeID)
	r.subtaskLink = c.subtaskLinkType(ctx, r.errors)
	return r
}

// Convert applies the conversion validated by r.
func (c *IssueToSubTask) Convert(ctx context.Context, user model.User, r *ConvertResult) (*model.Issue, error) {
	if r == nil || !r.IsValid() || r.parent == nil {
		return nil, errs.ErrInvalidResult
	}
	issue, err := c.convert(ctx, user, r, "")
	if err != nil {
		return nil, err
	}
	c.log.Info("issue converted to subtask", "user", user.Name, "issue", issue.Key, "parent", r.parent.Key)
	return issue, nil
}

// SubTaskToIssue turns a subtask into a standard issue.
type SubTaskToIssue struct {
	converter
}

// NewSubTaskToIssue creates the conversion service.
func NewSubTaskToIssue(s store.Store, perms permission.Checker, log *logger.Logger) *SubTaskToIssue {
	return &SubTaskToIssue{converter: converter{store: s, perms: perms, log: log}}
}

// ValidateConvert checks that subtask issueKey can become a standard
// issue of type targetTypeID.
func (c *SubTaskToIssue) ValidateConvert(
	ctx context.Context,
	user model.User,
	issueKey string,
	targetTypeID string,
) *ConvertResult {
	r := &ConvertResult{errors: errs.New()}

	issue := c.loadIssue(ctx, r.errors, "issue", issueKey)
	if issue == nil {
		return r
	}
	r.issue = issue
	if !c.requirePerms(ctx, r.errors, user, issue.ProjectID, permission.EditIssue) {
		return r
	}
	if !issue.IsSubtask() {
		r.errors.AddErrorWithReason("issue", fmt.Sprintf("Issue %s is not a subtask.", issue.Key), errs.ReasonValidationFailed)
		return r
	}
	oldParent, err := c.store.GetIssueByID(ctx, *issue.ParentID)
	switch {
	case store.IsNotFound(err):
		r.errors.AddErrorWithReason("parent", fmt.Sprintf("The parent of %s does not exist.", issue.Key), errs.ReasonValidationFailed)
	case err != nil:
		c.serverError(r.errors, "loading parent", err)
	default:
		r.oldParent = oldParent
	}

	if target := c.loadType(ctx, r.errors, targetTypeID); target != nil {
		if target.Subtask {
			r.errors.AddErrorWithReason("issuetype", fmt.Sprintf("Issue type %s is a subtask type.", target.Name), errs.ReasonValidationFailed)
		}
		r.targetType = target
	}
	r.oldType = c.loadType(ctx, r.errors, issue.TypeID)
	r.subtaskLink = c.subtaskLinkType(ctx, r.errors)
	return r
}

// Convert applies the conversion validated by r.
func (c *SubTaskToIssue) Convert(ctx context.Context, user model.User, r *ConvertResult) (*model.Issue, error) {
	if r == nil || !r.IsValid() || r.parent != nil || r.oldParent == nil {
		return nil, errs.ErrInvalidResult
	}
	issue, err := c.convert(ctx, user, r, r.oldParent.Key)
	if err != nil {
		return nil, err
	}
	c.log.Info("subtask converted to issue", "user", user.Name, "issue", issue.Key)
	return issue, nil
}
