package http

import (
	"fmt"
	"time"

	"github.com/nhle/tracker/internal/customfield"
	httpH "github.com/nhle/tracker/internal/http/handlers"
	httpMW "github.com/nhle/tracker/internal/http/middleware"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/jql"
	"github.com/nhle/tracker/internal/license"
	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
	"github.com/nhle/tracker/internal/subtask"
	"github.com/nhle/tracker/internal/tabpanel"
	"github.com/nhle/tracker/internal/version"
)

// Deps are the collaborators the REST surface is built from.
type Deps struct {
	Log      *logger.Logger
	Store    store.Store
	Perms    permission.Checker
	Features model.FeatureConfig
	License  license.Details
	Token    string
	Clock    func() time.Time
}

// NewRouterConfig builds every service and handler over deps.
func NewRouterConfig(deps Deps) (RouterConfig, error) {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	links := issuelink.NewService(deps.Store, deps.Perms, log.With("service", "issuelink"), deps.Features)
	remote := issuelink.NewRemoteService(deps.Store, deps.Perms, log.With("service", "remotelink"), deps.Features)

	registry, err := jql.NewFunctionRegistry(jql.Builtins(deps.Store, deps.Perms, links, clock)...)
	if err != nil {
		return RouterConfig{}, fmt.Errorf("registering jql functions: %w", err)
	}

	return RouterConfig{
		Log:            log,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, deps.Token, deps.Store),
		VersionHandler: httpH.NewVersionHandler(log,
			version.NewService(deps.Store, deps.Perms, log.With("service", "version")), deps.Store),
		LinkHandler: httpH.NewLinkHandler(log, links, remote),
		IssueHandler: httpH.NewIssueHandler(log,
			subtask.NewIssueToSubTask(deps.Store, deps.Perms, log.With("service", "subtask"), deps.Features),
			subtask.NewSubTaskToIssue(deps.Store, deps.Perms, log.With("service", "subtask")),
			customfield.NewService(deps.Store, deps.Perms, log.With("service", "customfield")),
			tabpanel.NewService(deps.Store, deps.Perms, links, remote, log.With("service", "tabpanel"), deps.Features),
		),
		JQLHandler:     httpH.NewJQLHandler(log, jql.NewResolver(registry, log.With("service", "jql"))),
		LicenseHandler: httpH.NewLicenseHandler(log, deps.License, deps.Perms, clock),
		HealthHandler:  httpH.NewHealthHandler(),
	}, nil
}
