package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/theme"
)

var linksSubtasks bool

var linksCmd = &cobra.Command{
	Use:   "links <issue-key>",
	Short: "Show the issue and remote links of an issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		links := issuelink.NewService(s, perms, log, cfg.Features)
		coll, err := links.GetIssueLinks(ctx, user, args[0], linksSubtasks)
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString(theme.HeaderStyle.Render(coll.Issue.Key) + " " + coll.Issue.Summary + "\n")
		if len(coll.Groups) == 0 {
			b.WriteString(theme.MetaStyle.Render("No links.") + "\n")
		}
		for _, g := range coll.Groups {
			var rows []string
			for _, l := range g.Links {
				rows = append(rows, fmt.Sprintf("%-10s %s %s",
					l.Issue.Key, theme.StatusStyle(l.Issue.Status).Render(l.Issue.Status), l.Issue.Summary))
			}
			b.WriteString(theme.PanelStyle("links").Render(g.Description) + "\n")
			b.WriteString(theme.BorderStyle.Render(strings.Join(rows, "\n")) + "\n")
		}

		remote := issuelink.NewRemoteService(s, perms, log, cfg.Features)
		if remote.Enabled() {
			rl, err := remote.GetRemoteLinks(ctx, user, args[0])
			if err != nil {
				return err
			}
			for _, l := range rl {
				b.WriteString(fmt.Sprintf("%s %s %s\n",
					theme.PanelStyle("links").Render("remote"), l.Title, theme.MetaStyle.Render(l.URL)))
			}
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
		return err
	},
}

func init() {
	linksCmd.Flags().BoolVar(&linksSubtasks, "subtasks", false, "include parent and subtask links")
	rootCmd.AddCommand(linksCmd)
}
