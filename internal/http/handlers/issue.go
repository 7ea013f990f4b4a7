package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/customfield"
	"github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/http/response"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/subtask"
	"github.com/nhle/tracker/internal/tabpanel"
)

// IssueHandler serves subtask conversion, custom field edits and the
// activity panels of an issue.
type IssueHandler struct {
	log      *logger.Logger
	toSub    *subtask.IssueToSubTask
	toIssue  *subtask.SubTaskToIssue
	fields   *customfield.Service
	activity *tabpanel.Service
}

func NewIssueHandler(
	log *logger.Logger,
	toSub *subtask.IssueToSubTask,
	toIssue *subtask.SubTaskToIssue,
	fields *customfield.Service,
	activity *tabpanel.Service,
) *IssueHandler {
	return &IssueHandler{
		log:      log.With("handler", "IssueHandler"),
		toSub:    toSub,
		toIssue:  toIssue,
		fields:   fields,
		activity: activity,
	}
}

type convertRequest struct {
	Parent    string `json:"parent"`
	IssueType string `json:"issueType"`
}

// POST /issue/:key/convert/subtask
func (h *IssueHandler) ConvertToSubtask(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.toSub.ValidateConvert(ctx, user, c.Param("key"), req.Parent, req.IssueType)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	issue, err := h.toSub.Convert(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, issue)
}

// POST /issue/:key/convert/issue
func (h *IssueHandler) ConvertToIssue(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.toIssue.ValidateConvert(ctx, user, c.Param("key"), req.IssueType)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	issue, err := h.toIssue.Convert(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, issue)
}

type editFieldsRequest struct {
	Update map[string][]customfield.Operation `json:"update"`
}

// GET /issue/:key/customfields
func (h *IssueHandler) Fields(c *gin.Context) {
	values, err := h.fields.Values(c.Request.Context(), middleware.CurrentUser(c), c.Param("key"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, values)
}

// PUT /issue/:key/customfields
func (h *IssueHandler) EditFields(c *gin.Context) {
	var req editFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.fields.ValidateEdit(ctx, user, c.Param("key"), req.Update)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	changed, err := h.fields.Edit(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, changed)
}

// GET /issue/:key/activity?panel=all&order=desc
func (h *IssueHandler) Activity(c *gin.Context) {
	panel, err := tabpanel.ParsePanel(c.Query("panel"))
	if err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	descending := strings.EqualFold(c.Query("order"), "desc")
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	panels, err := h.activity.Panels(ctx, user, c.Param("key"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	actions, err := h.activity.Actions(ctx, user, c.Param("key"), panel, descending)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if actions == nil {
		actions = []tabpanel.Action{}
	}
	response.RespondOK(c, gin.H{"panels": panels, "actions": actions})
}
