package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/http/response"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/version"
)

// ProjectLookup resolves project keys.
type ProjectLookup interface {
	GetProjectByKey(ctx context.Context, key string) (*model.Project, error)
}

type VersionHandler struct {
	log      *logger.Logger
	versions *version.Service
	projects ProjectLookup
}

func NewVersionHandler(log *logger.Logger, versions *version.Service, projects ProjectLookup) *VersionHandler {
	return &VersionHandler{log: log.With("handler", "VersionHandler"), versions: versions, projects: projects}
}

type versionRequest struct {
	Project       string `json:"project"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	StartDate     string `json:"startDate"`
	ReleaseDate   string `json:"releaseDate"`
	ScheduleAfter string `json:"scheduleAfter"`
}

func (req versionRequest) builder(projectID string) version.Builder {
	return version.Builder{
		ProjectID:     projectID,
		Name:          req.Name,
		Description:   req.Description,
		StartDate:     req.StartDate,
		ReleaseDate:   req.ReleaseDate,
		ScheduleAfter: req.ScheduleAfter,
	}
}

// projectID accepts a project key or ID.
func (h *VersionHandler) projectID(c *gin.Context, keyOrID string) string {
	if p, err := h.projects.GetProjectByKey(c.Request.Context(), keyOrID); err == nil {
		return p.ID
	}
	return keyOrID
}

// POST /version
func (h *VersionHandler) Create(c *gin.Context) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateCreate(ctx, user, req.builder(h.projectID(c, req.Project)))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	v, err := h.versions.Create(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, v)
}

// GET /version/:id
func (h *VersionHandler) Get(c *gin.Context) {
	v, err := h.versions.GetVersionByID(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}

// PUT /version/:id
func (h *VersionHandler) Update(c *gin.Context) {
	var req versionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateUpdate(ctx, user, c.Param("id"), req.builder(""))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	v, err := h.versions.Update(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}

// DELETE /version/:id?moveAffectedIssuesTo=&moveFixIssuesTo=
func (h *VersionHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateDelete(ctx, user, c.Param("id"),
		deleteAction(c.Query("moveAffectedIssuesTo")),
		deleteAction(c.Query("moveFixIssuesTo")))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.versions.Delete(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}

func deleteAction(target string) version.DeleteAction {
	if target == "" {
		return version.Remove()
	}
	return version.SwapTo(target)
}

// PUT /version/:id/mergeto/:targetId
func (h *VersionHandler) Merge(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateMerge(ctx, user, c.Param("id"), c.Param("targetId"))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.versions.Merge(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}

type moveRequest struct {
	Position string `json:"position"`
	After    string `json:"after"`
}

// POST /version/:id/move
func (h *VersionHandler) Move(c *gin.Context) {
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	action := version.MoveAction{Position: version.MovePosition(req.Position), AfterID: req.After}
	if req.Position == "" && req.After != "" {
		action.Position = version.MoveAfter
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateMove(ctx, user, c.Param("id"), action)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.versions.Move(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"order": r.Order()})
}

type releaseRequest struct {
	ReleaseDate            string `json:"releaseDate"`
	MoveUnresolvedIssuesTo string `json:"moveUnresolvedIssuesTo"`
}

// POST /version/:id/release
func (h *VersionHandler) Release(c *gin.Context) {
	var req releaseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondBadRequest(c, err)
			return
		}
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.versions.ValidateRelease(ctx, user, c.Param("id"), req.ReleaseDate, req.MoveUnresolvedIssuesTo)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	v, err := h.versions.Release(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}

// POST /version/:id/unrelease
func (h *VersionHandler) Unrelease(c *gin.Context) {
	h.statusChange(c, h.versions.ValidateUnrelease, h.versions.Unrelease)
}

// POST /version/:id/archive
func (h *VersionHandler) Archive(c *gin.Context) {
	h.statusChange(c, h.versions.ValidateArchive, h.versions.Archive)
}

// POST /version/:id/unarchive
func (h *VersionHandler) Unarchive(c *gin.Context) {
	h.statusChange(c, h.versions.ValidateUnarchive, h.versions.Unarchive)
}

func (h *VersionHandler) statusChange(
	c *gin.Context,
	validate func(context.Context, model.User, string) *version.StatusResult,
	apply func(context.Context, model.User, *version.StatusResult) (*model.Version, error),
) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := validate(ctx, user, c.Param("id"))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	v, err := apply(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, v)
}

// GET /version/:id/relatedIssueCounts
func (h *VersionHandler) IssueCounts(c *gin.Context) {
	counts, err := h.versions.IssueCounts(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, counts)
}

// GET /project/:key/versions?includeArchived=true&released=false
func (h *VersionHandler) ListByProject(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.DefaultQuery("includeArchived", "true"))
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()
	projectID := h.projectID(c, c.Param("key"))

	var (
		versions []model.Version
		err      error
	)
	switch c.Query("released") {
	case "true":
		versions, err = h.versions.GetReleased(ctx, user, projectID, includeArchived)
	case "false":
		versions, err = h.versions.GetUnreleased(ctx, user, projectID, includeArchived)
	default:
		versions, err = h.versions.GetVersionsByProject(ctx, user, projectID, includeArchived)
	}
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if versions == nil {
		versions = []model.Version{}
	}
	response.RespondOK(c, versions)
}
