package jql

import (
	"context"
	"time"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/model"
)

// CurrentUserFunction resolves currentUser() to the caller's user name.
// Anonymous callers resolve to no value.
type CurrentUserFunction struct{}

func (CurrentUserFunction) Name() string { return "currentUser" }
func (CurrentUserFunction) IsList() bool { return false }

func (CurrentUserFunction) Validate(_ context.Context, _ model.User, op FunctionOperand, _ TerminalClause) *errs.Collection {
	ec := errs.New()
	argCount(ec, op, 0, 0)
	return ec
}

func (CurrentUserFunction) Values(_ context.Context, user model.User, op FunctionOperand, _ TerminalClause) ([]QueryLiteral, error) {
	if user.IsAnonymous() {
		return nil, nil
	}
	return []QueryLiteral{StringLiteral(op, user.Name)}, nil
}

// NowFunction resolves now() to the current time in epoch milliseconds.
type NowFunction struct {
	Clock func() time.Time
}

func (NowFunction) Name() string { return "now" }
func (NowFunction) IsList() bool { return false }

func (NowFunction) Validate(_ context.Context, _ model.User, op FunctionOperand, _ TerminalClause) *errs.Collection {
	ec := errs.New()
	argCount(ec, op, 0, 0)
	return ec
}

func (f NowFunction) Values(_ context.Context, _ model.User, op FunctionOperand, _ TerminalClause) ([]QueryLiteral, error) {
	clock := f.Clock
	if clock == nil {
		clock = time.Now
	}
	return []QueryLiteral{IntLiteral(op, clock().UnixMilli())}, nil
}
