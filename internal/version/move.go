package version

import (
	"context"
	"fmt"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
)

// MovePosition says where a version moves within its project's order.
type MovePosition string

const (
	MoveFirst MovePosition = "FIRST"
	MoveLast  MovePosition = "LAST"
	MoveUp    MovePosition = "UP"
	MoveDown  MovePosition = "DOWN"
	MoveAfter MovePosition = "AFTER"
)

// MoveAction is a requested reordering. AfterID is used with MoveAfter.
type MoveAction struct {
	Position MovePosition
	AfterID  string
}

// MoveResult is the outcome of ValidateMove.
type MoveResult struct {
	result
	version *model.Version
	order   []string
}

// Order returns the version IDs in their new order.
func (r *MoveResult) Order() []string { return append([]string(nil), r.order...) }

// ValidateMove checks the move and computes the resulting order.
func (s *Service) ValidateMove(
	ctx context.Context,
	user model.User,
	versionID string,
	action MoveAction,
) *MoveResult {
	r := &MoveResult{result: newResult()}

	v := s.loadVersion(ctx, r.result, "id", versionID)
	if v == nil {
		return r
	}
	r.version = v
	if !s.canAdminister(ctx, r.result, user, v.ProjectID) {
		return r
	}

	versions, err := s.store.GetVersionsByProject(ctx, v.ProjectID, true)
	if err != nil {
		s.serverError(r.result, "loading versions", err)
		return r
	}
	ids := make([]string, 0, len(versions))
	for _, other := range versions {
		ids = append(ids, other.ID)
	}

	order, msg := reorder(ids, v.ID, action)
	if msg != "" {
		r.fieldError("position", msg, ReasonBadMove, errs.ReasonValidationFailed)
		return r
	}
	r.order = order
	return r
}

// Move stores the order computed by ValidateMove.
func (s *Service) Move(ctx context.Context, user model.User, r *MoveResult) error {
	if r == nil || !r.IsValid() {
		return errs.ErrInvalidResult
	}
	if err := s.store.ResequenceVersions(ctx, r.version.ProjectID, r.order); err != nil {
		return fmt.Errorf("moving version %s: %w", r.version.ID, err)
	}
	s.log.Info("version moved", "user", user.Name, "version", r.version.ID)
	return nil
}

// placeAfter moves id directly after afterID.
func (s *Service) placeAfter(ctx context.Context, projectID, id, afterID string) error {
	versions, err := s.store.GetVersionsByProject(ctx, projectID, true)
	if err != nil {
		return fmt.Errorf("loading versions of %s: %w", projectID, err)
	}
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
	}
	order, msg := reorder(ids, id, MoveAction{Position: MoveAfter, AfterID: afterID})
	if msg != "" {
		return fmt.Errorf("scheduling version %s: %s", id, msg)
	}
	return s.store.ResequenceVersions(ctx, projectID, order)
}

// reorder returns ids with id moved according to action, or a message
// explaining why the move is impossible. Moving the first version up or
// the last one down leaves the order unchanged.
func reorder(ids []string, id string, action MoveAction) ([]string, string) {
	pos := indexOf(ids, id)
	if pos < 0 {
		return nil, fmt.Sprintf("Version %q is not part of the project.", id)
	}
	rest := make([]string, 0, len(ids)-1)
	rest = append(rest, ids[:pos]...)
	rest = append(rest, ids[pos+1:]...)

	var at int
	switch action.Position {
	case MoveFirst:
		at = 0
	case MoveLast:
		at = len(rest)
	case MoveUp:
		at = max(pos-1, 0)
	case MoveDown:
		at = min(pos+1, len(rest))
	case MoveAfter:
		if action.AfterID == id {
			return nil, "A version cannot be moved after itself."
		}
		after := indexOf(rest, action.AfterID)
		if after < 0 {
			return nil, fmt.Sprintf("Version %q is not part of the project.", action.AfterID)
		}
		at = after + 1
	default:
		return nil, fmt.Sprintf("Unknown move position %q.", action.Position)
	}

	out := make([]string, 0, len(ids))
	out = append(out, rest[:at]...)
	out = append(out, id)
	out = append(out, rest[at:]...)
	return out, ""
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
