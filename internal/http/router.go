// Package http wires the REST handlers into a gin engine.
package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/nhle/tracker/internal/http/handlers"
	httpMW "github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	VersionHandler *httpH.VersionHandler
	LinkHandler    *httpH.LinkHandler
	IssueHandler   *httpH.IssueHandler
	JQLHandler     *httpH.JQLHandler
	LicenseHandler *httpH.LicenseHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.Check)
	}

	api := r.Group("/rest/api/2")
	admin := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireToken())
		admin.Use(cfg.AuthMiddleware.RequireToken())
	}

	// Versions
	if cfg.VersionHandler != nil {
		api.POST("/version", cfg.VersionHandler.Create)
		api.GET("/version/:id", cfg.VersionHandler.Get)
		api.PUT("/version/:id", cfg.VersionHandler.Update)
		api.DELETE("/version/:id", cfg.VersionHandler.Delete)
		api.PUT("/version/:id/mergeto/:targetId", cfg.VersionHandler.Merge)
		api.POST("/version/:id/move", cfg.VersionHandler.Move)
		api.POST("/version/:id/release", cfg.VersionHandler.Release)
		api.POST("/version/:id/unrelease", cfg.VersionHandler.Unrelease)
		api.POST("/version/:id/archive", cfg.VersionHandler.Archive)
		api.POST("/version/:id/unarchive", cfg.VersionHandler.Unarchive)
		api.GET("/version/:id/relatedIssueCounts", cfg.VersionHandler.IssueCounts)
		api.GET("/project/:key/versions", cfg.VersionHandler.ListByProject)
	}

	// Issue links and remote links
	if cfg.LinkHandler != nil {
		api.GET("/issue/:key/links", cfg.LinkHandler.List)
		api.POST("/issue/:key/links", cfg.LinkHandler.Add)
		api.DELETE("/issue/:key/links/:linkId", cfg.LinkHandler.Delete)

		api.GET("/issue/:key/remotelink", cfg.LinkHandler.ListRemote)
		api.POST("/issue/:key/remotelink", cfg.LinkHandler.CreateRemote)
		api.DELETE("/issue/:key/remotelink", cfg.LinkHandler.DeleteRemoteByGlobalID)
		api.PUT("/issue/:key/remotelink/:linkId", cfg.LinkHandler.UpdateRemote)
		api.DELETE("/issue/:key/remotelink/:linkId", cfg.LinkHandler.DeleteRemote)
	}

	// Subtasks, custom fields, activity
	if cfg.IssueHandler != nil {
		api.POST("/issue/:key/convert/subtask", cfg.IssueHandler.ConvertToSubtask)
		api.POST("/issue/:key/convert/issue", cfg.IssueHandler.ConvertToIssue)
		api.GET("/issue/:key/customfields", cfg.IssueHandler.Fields)
		api.PUT("/issue/:key/customfields", cfg.IssueHandler.EditFields)
		api.GET("/issue/:key/activity", cfg.IssueHandler.Activity)
	}

	if cfg.JQLHandler != nil {
		api.POST("/jql/operand", cfg.JQLHandler.Resolve)
	}

	if cfg.LicenseHandler != nil {
		admin.GET("/license/messages", cfg.LicenseHandler.Messages)
	}

	return r
}
