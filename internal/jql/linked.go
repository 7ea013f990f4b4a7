package jql

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// LinkedIssuesFunction implements linkedIssues(issue[, linkType]). The
// issue is named by key or ID; the optional link type by name or by its
// outward or inward description. Values are issue IDs.
type LinkedIssuesFunction struct {
	store store.Store
	perms permission.Checker
	links *issuelink.Service
}

// NewLinkedIssuesFunction returns linkedIssues().
func NewLinkedIssuesFunction(s store.Store, perms permission.Checker, links *issuelink.Service) *LinkedIssuesFunction {
	return &LinkedIssuesFunction{store: s, perms: perms, links: links}
}

func (f *LinkedIssuesFunction) Name() string { return "linkedIssues" }
func (f *LinkedIssuesFunction) IsList() bool { return true }

func (f *LinkedIssuesFunction) Validate(ctx context.Context, user model.User, op FunctionOperand, _ TerminalClause) *errs.Collection {
	ec := errs.New()
	if !f.links.Enabled() {
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Function '%s' cannot be used while issue linking is disabled.", op.Function),
			errs.ReasonValidationFailed)
		return ec
	}
	if !argCount(ec, op, 1, 2) {
		return ec
	}

	issue, err := f.findIssue(ctx, op.Args[0])
	if err != nil {
		ec.AddErrorMessageWithReason("Internal error while loading the issue.", errs.ReasonServerError)
		return ec
	}
	visible := false
	if issue != nil {
		visible, err = f.perms.HasProjectPermission(ctx, user, permission.Browse, issue.ProjectID)
		if err != nil {
			ec.AddErrorMessageWithReason("Internal error while checking permissions.", errs.ReasonServerError)
			return ec
		}
	}
	if !visible {
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Issue '%s' could not be found in function '%s'.", op.Args[0], op.Function),
			errs.ReasonValidationFailed)
	}

	if len(op.Args) == 2 {
		types, err := f.store.GetLinkTypes(ctx)
		if err != nil {
			ec.AddErrorMessageWithReason("Internal error while loading link types.", errs.ReasonServerError)
			return ec
		}
		found := false
		for _, lt := range types {
			if !lt.IsSystem() && matchesLinkType(lt, op.Args[1]) {
				found = true
				break
			}
		}
		if !found {
			ec.AddErrorMessageWithReason(
				fmt.Sprintf("Issue link type '%s' could not be found in function '%s'.", op.Args[1], op.Function),
				errs.ReasonValidationFailed)
		}
	}
	return ec
}

func (f *LinkedIssuesFunction) Values(ctx context.Context, user model.User, op FunctionOperand, _ TerminalClause) ([]QueryLiteral, error) {
	if len(op.Args) == 0 {
		return nil, nil
	}
	issue, err := f.findIssue(ctx, op.Args[0])
	if err != nil {
		return nil, err
	}
	if issue == nil {
		return nil, nil
	}
	links, err := f.links.GetIssueLinks(ctx, user, issue.Key, false)
	if err != nil {
		if _, ok := errs.From(err); ok {
			return nil, nil
		}
		return nil, err
	}

	var out []QueryLiteral
	seen := map[string]bool{}
	for _, g := range links.Groups {
		if len(op.Args) > 1 && !strings.EqualFold(g.Type.Name, op.Args[1]) &&
			!strings.EqualFold(g.Description, op.Args[1]) {
			continue
		}
		for _, l := range g.Links {
			if !seen[l.Issue.ID] {
				seen[l.Issue.ID] = true
				out = append(out, StringLiteral(op, l.Issue.ID))
			}
		}
	}
	return out, nil
}

// Sanitise replaces an issue key user cannot browse with the issue ID.
func (f *LinkedIssuesFunction) Sanitise(ctx context.Context, user model.User, op FunctionOperand) FunctionOperand {
	if len(op.Args) == 0 {
		return op
	}
	issue, err := f.findIssue(ctx, op.Args[0])
	if err != nil || issue == nil {
		return op
	}
	if ok, err := f.perms.HasProjectPermission(ctx, user, permission.Browse, issue.ProjectID); err != nil || ok {
		return op
	}
	args := append([]string{issue.ID}, op.Args[1:]...)
	return FunctionOperand{Function: op.Function, Args: args}
}

// findIssue looks arg up as a key, then as an ID. A miss yields nil.
func (f *LinkedIssuesFunction) findIssue(ctx context.Context, arg string) (*model.Issue, error) {
	arg = strings.TrimSpace(arg)
	issue, err := f.store.GetIssueByKey(ctx, arg)
	if err == nil {
		return issue, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}
	issue, err = f.store.GetIssueByID(ctx, arg)
	if store.IsNotFound(err) {
		return nil, nil
	}
	return issue, err
}

func matchesLinkType(lt model.IssueLinkType, arg string) bool {
	return strings.EqualFold(lt.Name, arg) ||
		strings.EqualFold(lt.Outward, arg) ||
		strings.EqualFold(lt.Inward, arg)
}
