package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/credential"
	"github.com/nhle/tracker/internal/importmap"
	"github.com/nhle/tracker/internal/issuelink"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/source/jira"
	"github.com/nhle/tracker/internal/theme"
	"github.com/nhle/tracker/internal/version"
)

var (
	importDryRun  bool
	importBaseURL string
)

var importCmd = &cobra.Command{
	Use:   "import <project-key>",
	Short: "Import a project from a remote Jira instance",
	Long: `Fetches a project with its versions, issues and links from the
remote instance configured under import.remote and recreates it locally.
A project with the same key must already exist. Issue types and link
types are matched by name.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "map and validate without writing anything")
	importCmd.Flags().StringVar(&importBaseURL, "url", "", "remote base URL (overrides import.remote.base_url)")
}

func runImport(cmd *cobra.Command, args []string) error {
	baseURL := cfg.Import.Remote.BaseURL
	if importBaseURL != "" {
		baseURL = importBaseURL
	}
	if baseURL == "" {
		return fmt.Errorf("no remote configured: set import.remote.base_url or pass --url")
	}
	token, err := credential.Resolve(credential.EnvImportToken, cfg.Import.Remote.TokenKey)
	if err != nil {
		return fmt.Errorf("reading import token: %w", err)
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

	adapter := jira.NewAdapter(baseURL, token)
	who, err := adapter.ValidateConnection(ctx)
	if err != nil {
		return err
	}
	log.Info("connected to remote", "url", baseURL, "as", who)

	perms := permission.NewStoreChecker(s)
	importer := importmap.NewImporter(s, adapter,
		version.NewService(s, perms, log.With("service", "version")),
		issuelink.NewService(s, perms, log.With("service", "issuelink"), cfg.Features),
		log.With("service", "import"),
	)
	report, err := importer.Run(ctx, importmap.Options{ProjectKey: args[0], User: user, DryRun: importDryRun})
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), report)
	if report.Errors.HasAnyErrors() {
		return fmt.Errorf("import of %s failed validation", args[0])
	}
	return nil
}

func printReport(w io.Writer, r *importmap.Report) {
	title := "Import " + r.ImportID
	if r.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintln(w, theme.HeaderStyle.Render(title))

	for _, m := range r.Mapper.All() {
		required := m.RequiredOldIDs()
		unmapped := m.UnmappedRequiredOldIDs()
		line := fmt.Sprintf("%-16s %4d registered %4d required", m.Kind(), len(m.RegisteredOldIDs()), len(required))
		if len(unmapped) > 0 {
			keys := make([]string, 0, len(unmapped))
			for _, id := range unmapped {
				if k, ok := m.Key(id); ok && k != "" {
					keys = append(keys, k)
				} else {
					keys = append(keys, id)
				}
			}
			line += " " + theme.WarningStyle.Render("unmapped: "+strings.Join(keys, ", "))
		}
		fmt.Fprintln(w, line)
	}

	if !r.DryRun && !r.Errors.HasAnyErrors() {
		fmt.Fprintln(w, theme.MetaStyle.Render(fmt.Sprintf(
			"created %d users, %d versions, %d issues, %d links",
			r.CreatedUsers, r.CreatedVersions, r.CreatedIssues, r.CreatedLinks)))
	}
	for _, msg := range r.Errors.ErrorMessages() {
		fmt.Fprintln(w, theme.WarningStyle.Render(msg))
	}
	for field, msg := range r.Errors.Errors() {
		fmt.Fprintln(w, theme.WarningStyle.Render(field+": "+msg))
	}
}
