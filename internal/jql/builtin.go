package jql

import (
	"time"

	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// Builtins returns the standard functions.
func Builtins(s store.Store, perms permission.Checker, links *issuelink.Service, clock func() time.Time) []Function {
	return []Function{
		CurrentUserFunction{},
		NowFunction{Clock: clock},
		NewReleasedVersionsFunction(s, perms),
		NewUnreleasedVersionsFunction(s, perms),
		NewLinkedIssuesFunction(s, perms, links),
	}
}
