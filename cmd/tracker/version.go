package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/theme"
	"github.com/nhle/tracker/internal/version"
)

var versionListArchived bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Inspect project versions",
}

var versionListCmd = &cobra.Command{
	Use:   "list <project-key>",
	Short: "List the versions of a project in order",
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
		project, err := s.GetProjectByKey(ctx, args[0])
		if err != nil {
			return err
		}
		svc := version.NewService(s, permission.NewStoreChecker(s), log.With("service", "version"))
		versions, err := svc.GetVersionsByProject(ctx, user, project.ID, versionListArchived)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, theme.HeaderStyle.Render(project.Key+" "+project.Name))
		if len(versions) == 0 {
			fmt.Fprintln(out, theme.MetaStyle.Render("No versions."))
			return nil
		}
		for _, v := range versions {
			state := "unreleased"
			switch {
			case v.Archived:
				state = "archived"
			case v.Released:
				state = "released"
			}
			date := ""
			if v.ReleaseDate != nil {
				date = v.ReleaseDate.Format(version.DateLayout)
			}
			fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top,
				theme.VersionStyle(v.Released, v.Archived).Width(24).Render(v.Name),
				theme.MetaStyle.Width(12).Render(state),
				theme.MetaStyle.Render(date),
			))
		}
		return nil
	},
}

func init() {
	versionListCmd.Flags().BoolVar(&versionListArchived, "archived", false, "include archived versions")
	versionCmd.AddCommand(versionListCmd)
}
