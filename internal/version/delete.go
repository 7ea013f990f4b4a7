package version

import (
	"context"
	"fmt"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

// DeleteActionKind says what happens to issue references of a deleted
// version.
type DeleteActionKind string

const (
	ActionRemove DeleteActionKind = "REMOVE"
	ActionSwap   DeleteActionKind = "SWAP"
)

// DeleteAction is the fate of one kind of reference (affects or fix).
type DeleteAction struct {
	Kind     DeleteActionKind
	TargetID string
}

// Remove drops the references.
func Remove() DeleteAction { return DeleteAction{Kind: ActionRemove} }

// SwapTo moves the references to another version.
func SwapTo(versionID string) DeleteAction {
	return DeleteAction{Kind: ActionSwap, TargetID: versionID}
}

// DeleteResult is the outcome of ValidateDelete and ValidateMerge.
type DeleteResult struct {
	result
	version *model.Version
	affects *model.Version
	fix     *model.Version
}

// Version returns the version that will be deleted.
func (r *DeleteResult) Version() *model.Version { return r.version }

// AffectsSwapVersion returns the version affects references move to, or nil.
func (r *DeleteResult) AffectsSwapVersion() *model.Version { return r.affects }

// FixSwapVersion returns the version fix references move to, or nil.
func (r *DeleteResult) FixSwapVersion() *model.Version { return r.fix }

// ValidateDelete checks that user may delete the version and that both
// actions are usable.
func (s *Service) ValidateDelete(
	ctx context.Context,
	user model.User,
	versionID string,
	affectsAction DeleteAction,
	fixAction DeleteAction,
) *DeleteResult {
	r := &DeleteResult{result: newResult()}

	v := s.loadVersion(ctx, r.result, "id", versionID)
	if v == nil {
		return r
	}
	r.version = v
	if !s.canAdminister(ctx, r.result, user, v.ProjectID) {
		return r
	}

	r.affects = s.validateSwap(ctx, r.result, v, "affectsVersion", affectsAction)
	r.fix = s.validateSwap(ctx, r.result, v, "fixVersion", fixAction)
	return r
}

// ValidateMerge checks that every reference to fromID can be moved to
// toID before fromID is deleted.
func (s *Service) ValidateMerge(
	ctx context.Context,
	user model.User,
	fromID string,
	toID string,
) *DeleteResult {
	return s.ValidateDelete(ctx, user, fromID, SwapTo(toID), SwapTo(toID))
}

// validateSwap resolves the swap target of action. A nil return with no
// recorded error means the references are removed.
func (s *Service) validateSwap(
	ctx context.Context,
	r result,
	deleted *model.Version,
	field string,
	action DeleteAction,
) *model.Version {
	switch action.Kind {
	case ActionRemove, "":
		return nil
	case ActionSwap:
	default:
		r.fieldError(field, fmt.Sprintf("Unknown action %q.", action.Kind), ReasonSwapToVersionInvalid, errs.ReasonValidationFailed)
		return nil
	}

	invalid := func(msg string) *model.Version {
		r.fieldError(field, msg, ReasonSwapToVersionInvalid, errs.ReasonValidationFailed)
		return nil
	}
	if action.TargetID == deleted.ID {
		return invalid("Cannot swap to the version being deleted.")
	}
	target, err := s.store.GetVersionByID(ctx, action.TargetID)
	if err != nil {
		if store.IsNotFound(err) {
			return invalid(fmt.Sprintf("Version %q does not exist.", action.TargetID))
		}
		s.serverError(r, "loading swap version", err)
		return nil
	}
	if target.ProjectID != deleted.ProjectID {
		return invalid("The swap version must belong to the same project.")
	}
	if target.Archived {
		return invalid("Cannot swap to an archived version.")
	}
	return target
}

// Delete rewrites issue references and deletes the version validated by r.
// Remaining versions are renumbered so sequences stay contiguous.
func (s *Service) Delete(ctx context.Context, user model.User, r *DeleteResult) error {
	if r == nil || !r.IsValid() {
		return errs.ErrInvalidResult
	}
	swap := store.VersionSwap{VersionID: r.version.ID}
	if r.affects != nil {
		swap.AffectsSwapTo = &r.affects.ID
	}
	if r.fix != nil {
		swap.FixSwapTo = &r.fix.ID
	}
	if err := s.store.DeleteVersion(ctx, swap); err != nil {
		return fmt.Errorf("deleting version %s: %w", r.version.ID, err)
	}
	s.log.Info("version deleted", "user", user.Name, "version", r.version.ID, "project", r.version.ProjectID)
	return nil
}

// Merge moves every reference to the target version and deletes the
// source version.
func (s *Service) Merge(ctx context.Context, user model.User, r *DeleteResult) error {
	if r == nil || !r.IsValid() || r.affects == nil || r.fix == nil || r.affects.ID != r.fix.ID {
		return errs.ErrInvalidResult
	}
	return s.Delete(ctx, user, r)
}
