package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/http/response"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
)

type LinkHandler struct {
	log    *logger.Logger
	links  *issuelink.Service
	remote *issuelink.RemoteService
}

func NewLinkHandler(log *logger.Logger, links *issuelink.Service, remote *issuelink.RemoteService) *LinkHandler {
	return &LinkHandler{log: log.With("handler", "LinkHandler"), links: links, remote: remote}
}

type addLinksRequest struct {
	Type      string   `json:"type"`
	Direction string   `json:"direction"`
	Issues    []string `json:"issues"`
}

// POST /issue/:key/links
func (h *LinkHandler) Add(c *gin.Context) {
	var req addLinksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.links.ValidateAddIssueLinks(ctx, user, c.Param("key"), req.Type, issuelink.Direction(req.Direction), req.Issues)
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	links, err := h.links.AddIssueLinks(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, links)
}

type linkedIssueView struct {
	LinkID  string    `json:"linkId"`
	Key     string    `json:"key"`
	Summary string    `json:"summary"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
}

type linkGroupView struct {
	Type        string            `json:"type"`
	Direction   string            `json:"direction"`
	Description string            `json:"description"`
	Issues      []linkedIssueView `json:"issues"`
}

// GET /issue/:key/links?includeSubtasks=true
func (h *LinkHandler) List(c *gin.Context) {
	includeSystem := c.Query("includeSubtasks") == "true"
	coll, err := h.links.GetIssueLinks(c.Request.Context(), middleware.CurrentUser(c), c.Param("key"), includeSystem)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	out := make([]linkGroupView, 0, len(coll.Groups))
	for _, g := range coll.Groups {
		v := linkGroupView{Type: g.Type.Name, Direction: string(g.Direction), Description: g.Description}
		for _, l := range g.Links {
			v.Issues = append(v.Issues, linkedIssueView{
				LinkID:  l.LinkID,
				Key:     l.Issue.Key,
				Summary: l.Issue.Summary,
				Status:  l.Issue.Status,
				Created: l.Created,
			})
		}
		out = append(out, v)
	}
	response.RespondOK(c, gin.H{"issue": coll.Issue.Key, "groups": out})
}

// DELETE /issue/:key/links/:linkId
func (h *LinkHandler) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.links.ValidateDelete(ctx, user, c.Param("key"), c.Param("linkId"))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.links.Delete(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}

type remoteLinkRequest struct {
	GlobalID     string `json:"globalId"`
	Relationship string `json:"relationship"`
	Application  struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"application"`
	Object struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Icon    struct {
			URL string `json:"url16x16"`
		} `json:"icon"`
	} `json:"object"`
}

func (req remoteLinkRequest) builder() issuelink.RemoteBuilder {
	return issuelink.RemoteBuilder{
		GlobalID:        req.GlobalID,
		URL:             req.Object.URL,
		Title:           req.Object.Title,
		Summary:         req.Object.Summary,
		IconURL:         req.Object.Icon.URL,
		Relationship:    req.Relationship,
		ApplicationType: req.Application.Type,
		ApplicationName: req.Application.Name,
	}
}

// POST /issue/:key/remotelink
func (h *LinkHandler) CreateRemote(c *gin.Context) {
	var req remoteLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.remote.ValidateCreate(ctx, user, c.Param("key"), req.builder())
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	link, err := h.remote.Create(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, link)
}

// PUT /issue/:key/remotelink/:linkId
func (h *LinkHandler) UpdateRemote(c *gin.Context) {
	var req remoteLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondBadRequest(c, err)
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.remote.ValidateUpdate(ctx, user, c.Param("key"), c.Param("linkId"), req.builder())
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	link, err := h.remote.Update(ctx, user, r)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, link)
}

// GET /issue/:key/remotelink?globalId=
func (h *LinkHandler) ListRemote(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	if gid := c.Query("globalId"); gid != "" {
		link, err := h.remote.GetRemoteLinkByGlobalID(ctx, user, c.Param("key"), gid)
		if err != nil {
			response.RespondError(c, err)
			return
		}
		response.RespondOK(c, link)
		return
	}
	links, err := h.remote.GetRemoteLinks(ctx, user, c.Param("key"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if links == nil {
		links = []model.RemoteIssueLink{}
	}
	response.RespondOK(c, links)
}

// DELETE /issue/:key/remotelink/:linkId
func (h *LinkHandler) DeleteRemote(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.remote.ValidateDelete(ctx, user, c.Param("key"), c.Param("linkId"))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.remote.Delete(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}

// DELETE /issue/:key/remotelink?globalId=
func (h *LinkHandler) DeleteRemoteByGlobalID(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	r := h.remote.ValidateDeleteByGlobalID(ctx, user, c.Param("key"), c.Query("globalId"))
	if !r.IsValid() {
		response.RespondCollection(c, r.Errors())
		return
	}
	if err := h.remote.DeleteByGlobalID(ctx, user, r); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondNoContent(c)
}
