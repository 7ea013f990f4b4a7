package main

import (
	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/tabpanel"
)

var (
	activityPanel string
	activityDesc  bool
	activityWidth int
)

var activityCmd = &cobra.Command{
	Use:   "activity <issue-key>",
	Short: "Show the activity of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		panel, err := tabpanel.ParsePanel(activityPanel)
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		user, err := actingUser(ctx, s)
		if err != nil {
			return err
		}
		perms := permission.NewStoreChecker(s)
		svc := tabpanel.NewService(s, perms,
			issuelink.NewService(s, perms, log, cfg.Features),
			issuelink.NewRemoteService(s, perms, log, cfg.Features),
			log.With("service", "tabpanel"), cfg.Features)

		actions, err := svc.Actions(ctx, user, args[0], panel, activityDesc)
		if err != nil {
			return err
		}
		return tabpanel.TextRenderer{Width: activityWidth}.Render(cmd.OutOrStdout(), args[0], actions)
	},
}

func init() {
	activityCmd.Flags().StringVar(&activityPanel, "panel", "all", "panel to show: all, comment, worklog, history, links")
	activityCmd.Flags().BoolVar(&activityDesc, "desc", false, "newest first")
	activityCmd.Flags().IntVar(&activityWidth, "width", 80, "wrap width for entry bodies")
}
