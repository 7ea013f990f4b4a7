package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/credential"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/source/bitbucket"
	"github.com/nhle/tracker/internal/store"
	devsync "github.com/nhle/tracker/internal/sync"
	"github.com/nhle/tracker/internal/theme"
)

var devlinksCmd = &cobra.Command{
	Use:   "devlinks",
	Short: "Mirror pull requests as remote issue links",
}

var devlinksSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync pull requests from the configured repositories once",
	Long: `Reads the pull requests of every repository under devlinks.bitbucket.repos
and creates or updates a remote link on each issue whose key appears in a
pull request title or branch. Links are written as devlinks.user.`,
	Args: cobra.NoArgs,
	RunE: runDevlinksSync,
}

func init() {
	devlinksCmd.AddCommand(devlinksSyncCmd)
	rootCmd.AddCommand(devlinksCmd)
}

func runDevlinksSync(cmd *cobra.Command, args []string) error {
	if !cfg.DevLinks.Enabled() {
		return fmt.Errorf("no link source configured: set devlinks.bitbucket.base_url and devlinks.bitbucket.repos")
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	poller, adapter, err := newDevLinkPoller(ctx, s)
	if err != nil {
		return err
	}
	who, err := adapter.ValidateConnection(ctx)
	if err != nil {
		return err
	}
	log.Info("connected to bitbucket", "url", cfg.DevLinks.Bitbucket.BaseURL, "as", who)

	res, err := poller.SyncOnce(ctx, adapter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, theme.HeaderStyle.Render("Development links"))
	fmt.Fprintf(out, "  created %d, updated %d, unchanged %d\n", res.Created, res.Updated, res.Unchanged)
	if res.Skipped > 0 {
		fmt.Fprintln(out, theme.WarningStyle.Render(fmt.Sprintf("  skipped %d (unknown issue, no permission or invalid link)", res.Skipped)))
	}
	return nil
}

// newDevLinkPoller builds a poller over the configured Bitbucket
// repositories that writes links as devlinks.user.
func newDevLinkPoller(ctx context.Context, s store.Store) (*devsync.Poller, *bitbucket.Adapter, error) {
	bb := cfg.DevLinks.Bitbucket
	repos := make([]bitbucket.Repo, 0, len(bb.Repos))
	for _, raw := range bb.Repos {
		r, err := bitbucket.ParseRepo(raw)
		if err != nil {
			return nil, nil, err
		}
		repos = append(repos, r)
	}

	token, err := credential.Resolve(credential.EnvBitbucketToken, bb.TokenKey)
	if err != nil {
		return nil, nil, fmt.Errorf("reading bitbucket token: %w", err)
	}
	user, err := s.GetUser(ctx, cfg.DevLinks.User)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving devlinks user %s: %w", cfg.DevLinks.User, err)
	}

	remote := issuelink.NewRemoteService(s, permission.NewStoreChecker(s),
		log.With("service", "remotelink"), cfg.Features)
	poller := devsync.New(remote, *user, log.With("service", "devlinks"))
	return poller, bitbucket.NewAdapter(bb.BaseURL, token, repos), nil
}

func devLinkInterval() time.Duration {
	if cfg.DevLinks.IntervalSec <= 0 {
		return devsync.DefaultInterval
	}
	return time.Duration(cfg.DevLinks.IntervalSec) * time.Second
}
