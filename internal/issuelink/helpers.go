package issuelink

import (
	"context"
	"fmt"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

// loadIssue fetches an issue by key, recording NOT_FOUND against field,
// or as a general message when field is empty.
func loadIssue(
	ctx context.Context,
	s store.Store,
	log *logger.Logger,
	ec *errs.Collection,
	field string,
	key string,
) *model.Issue {
	issue, err := s.GetIssueByKey(ctx, key)
	if store.IsNotFound(err) {
		msg := fmt.Sprintf("Issue %s does not exist.", key)
		if field == "" {
			ec.AddErrorMessageWithReason(msg, errs.ReasonNotFound)
		} else {
			ec.AddErrorWithReason(field, msg, errs.ReasonNotFound)
		}
		return nil
	}
	if err != nil {
		serverError(log, ec, "loading issue", err)
		return nil
	}
	return issue
}

// require records msg unless user holds p on projectID.
func require(
	ctx context.Context,
	c permission.Checker,
	log *logger.Logger,
	ec *errs.Collection,
	user model.User,
	p permission.Permission,
	projectID string,
	msg string,
) bool {
	ok, err := c.HasProjectPermission(ctx, user, p, projectID)
	if err != nil {
		serverError(log, ec, "checking permissions", err)
		return false
	}
	if ok {
		return true
	}
	if user.IsAnonymous() {
		ec.AddErrorMessageWithReason("You are not logged in.", errs.ReasonNotLoggedIn)
	} else {
		ec.AddErrorMessageWithReason(msg, errs.ReasonForbidden)
	}
	return false
}

func serverError(log *logger.Logger, ec *errs.Collection, what string, err error) {
	log.Error("issue link service failure", "op", what, "error", err)
	ec.AddErrorMessageWithReason(fmt.Sprintf("Internal error while %s.", what), errs.ReasonServerError)
}
