package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/errs"
	"github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/http/response"
	"github.com/nhle/tracker/internal/license"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/permission"
)

// LicenseHandler reports license notices to administrators.
type LicenseHandler struct {
	log     *logger.Logger
	details license.Details
	perms   permission.Checker
	clock   func() time.Time
}

func NewLicenseHandler(log *logger.Logger, details license.Details, perms permission.Checker, clock func() time.Time) *LicenseHandler {
	if clock == nil {
		clock = time.Now
	}
	return &LicenseHandler{
		log:     log.With("handler", "LicenseHandler"),
		details: details,
		perms:   perms,
		clock:   clock,
	}
}

// GET /license/messages
func (h *LicenseHandler) Messages(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ok, err := h.perms.HasGlobalPermission(c.Request.Context(), user, permission.Administer)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if !ok {
		ec := errs.New()
		reason := errs.ReasonForbidden
		if user.IsAnonymous() {
			reason = errs.ReasonNotLoggedIn
		}
		ec.AddErrorMessageWithReason("You must be an administrator to view license messages.", reason)
		response.RespondCollection(c, ec)
		return
	}
	messages := h.details.Messages(h.clock())
	if messages == nil {
		messages = []license.Message{}
	}
	response.RespondOK(c, gin.H{"type": h.details.Type, "messages": messages})
}
