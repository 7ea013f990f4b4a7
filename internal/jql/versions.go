package jql

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// VersionFunction implements releasedVersions() and
// unreleasedVersions(). Arguments name projects by key, ID or name; with
// no arguments every browsable project is used. Archived versions are
// never returned. Values are version IDs.
type VersionFunction struct {
	store    store.Store
	perms    permission.Checker
	released bool
}

// NewReleasedVersionsFunction returns releasedVersions().
func NewReleasedVersionsFunction(s store.Store, perms permission.Checker) *VersionFunction {
	return &VersionFunction{store: s, perms: perms, released: true}
}

// NewUnreleasedVersionsFunction returns unreleasedVersions().
func NewUnreleasedVersionsFunction(s store.Store, perms permission.Checker) *VersionFunction {
	return &VersionFunction{store: s, perms: perms}
}

func (f *VersionFunction) Name() string {
	if f.released {
		return "releasedVersions"
	}
	return "unreleasedVersions"
}

func (f *VersionFunction) IsList() bool { return true }

func (f *VersionFunction) Validate(ctx context.Context, user model.User, op FunctionOperand, _ TerminalClause) *errs.Collection {
	ec := errs.New()
	if len(op.Args) == 0 {
		return ec
	}
	projects, err := f.store.GetProjects(ctx)
	if err != nil {
		ec.AddErrorMessageWithReason("Internal error while loading projects.", errs.ReasonServerError)
		return ec
	}
	for _, arg := range op.Args {
		p := findProject(projects, arg)
		if p != nil {
			ok, err := f.perms.HasProjectPermission(ctx, user, permission.Browse, p.ID)
			if err != nil {
				ec.AddErrorMessageWithReason("Internal error while checking permissions.", errs.ReasonServerError)
				return ec
			}
			if ok {
				continue
			}
		}
		ec.AddErrorMessageWithReason(
			fmt.Sprintf("Could not resolve the project '%s' provided to function '%s'.", arg, op.Function),
			errs.ReasonValidationFailed)
	}
	return ec
}

func (f *VersionFunction) Values(ctx context.Context, user model.User, op FunctionOperand, _ TerminalClause) ([]QueryLiteral, error) {
	projects, err := f.store.GetProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}

	var targets []model.Project
	if len(op.Args) == 0 {
		targets = projects
	} else {
		seen := map[string]bool{}
		for _, arg := range op.Args {
			if p := findProject(projects, arg); p != nil && !seen[p.ID] {
				seen[p.ID] = true
				targets = append(targets, *p)
			}
		}
	}

	var out []QueryLiteral
	for _, p := range targets {
		ok, err := f.perms.HasProjectPermission(ctx, user, permission.Browse, p.ID)
		if err != nil {
			return nil, fmt.Errorf("checking browse permission: %w", err)
		}
		if !ok {
			continue
		}
		versions, err := f.store.GetVersionsByProject(ctx, p.ID, false)
		if err != nil {
			return nil, fmt.Errorf("loading versions of %s: %w", p.Key, err)
		}
		for _, v := range versions {
			if v.Released == f.released {
				out = append(out, StringLiteral(op, v.ID))
			}
		}
	}
	return out, nil
}

// Sanitise replaces arguments naming projects user cannot browse with
// the project ID.
func (f *VersionFunction) Sanitise(ctx context.Context, user model.User, op FunctionOperand) FunctionOperand {
	projects, err := f.store.GetProjects(ctx)
	if err != nil {
		return op
	}
	args := make([]string, len(op.Args))
	for i, arg := range op.Args {
		args[i] = arg
		p := findProject(projects, arg)
		if p == nil {
			continue
		}
		if ok, err := f.perms.HasProjectPermission(ctx, user, permission.Browse, p.ID); err == nil && !ok {
			args[i] = p.ID
		}
	}
	return FunctionOperand{Function: op.Function, Args: args}
}

// findProject matches arg against project keys, then IDs, then names.
func findProject(projects []model.Project, arg string) *model.Project {
	arg = strings.TrimSpace(arg)
	for i := range projects {
		if strings.EqualFold(projects[i].Key, arg) {
			return &projects[i]
		}
	}
	for i := range projects {
		if projects[i].ID == arg {
			return &projects[i]
		}
	}
	for i := range projects {
		if strings.EqualFold(projects[i].Name, arg) {
			return &projects[i]
		}
	}
	return nil
}
