package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/credential"
	api "github.com/nhle/tracker/internal/http"
	"github.com/nhle/tracker/internal/license"
	"github.com/nhle/tracker/internal/permission"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Serves the REST API under /rest/api/2. Requests must carry the API
token as a bearer token; the token is read from TRACKER_API_TOKEN or the
system keyring. When devlinks.bitbucket is configured, pull requests are
mirrored as remote issue links in the background.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	token, err := credential.Resolve(credential.EnvAPIToken, cfg.Auth.TokenKey)
	if err != nil {
		return fmt.Errorf("reading API token: %w", err)
	}
	details, err := license.FromConfig(cfg.License)
	if err != nil {
		return fmt.Errorf("reading license: %w", err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if strings.EqualFold(cfg.Log.Mode, "prod") {
		gin.SetMode(gin.ReleaseMode)
	}
	routerCfg, err := api.NewRouterConfig(api.Deps{
		Log:      log,
		Store:    s,
		Perms:    permission.NewStoreChecker(s),
		Features: cfg.Features,
		License:  details,
		Token:    token,
	})
	if err != nil {
		return err
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DevLinks.Enabled() {
		poller, adapter, err := newDevLinkPoller(ctx, s)
		if err != nil {
			return err
		}
		poller.RegisterSource(adapter, devLinkInterval())
		poller.Start(ctx)
		defer poller.Stop()
		log.Info("syncing development links", "url", cfg.DevLinks.Bitbucket.BaseURL, "every", devLinkInterval())
	}

	log.Info("starting server", "addr", addr, "database", cfg.Database.Path)
	if err := api.NewServer(routerCfg).Serve(ctx, addr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	log.Info("server stopped")
	return nil
}
