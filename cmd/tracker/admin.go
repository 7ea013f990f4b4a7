package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/credential"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage users, projects, grants and tokens",
}

var userAddCmd = &cobra.Command{
	Use:   "user-add <name> [display name]",
	Short: "Create or update a user",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := model.User{Name: args[0], DisplayName: args[0]}
		if len(args) == 2 {
			u.DisplayName = args[1]
		}
		return withStore(func(s *store.SQLiteStore) error {
			if err := s.UpsertUser(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %s saved\n", u.Name)
			return nil
		})
	},
}

var projectLead string

var projectCreateCmd = &cobra.Command{
	Use:   "project-create <key> <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := model.Project{Key: strings.ToUpper(args[0]), Name: args[1], Lead: projectLead}
		return withStore(func(s *store.SQLiteStore) error {
			if err := s.CreateProject(cmd.Context(), &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "project %s created (%s)\n", p.Key, p.ID)
			return nil
		})
	},
}

var grantCmd = &cobra.Command{
	Use:   "grant <user> <permission> [project-key]",
	Short: "Grant a permission globally or in one project",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		perm := permission.Permission(strings.ToUpper(args[1]))
		switch perm {
		case permission.Administer, permission.ProjectAdmin, permission.Browse,
			permission.CreateIssue, permission.EditIssue, permission.LinkIssue, permission.MoveIssue:
		default:
			return fmt.Errorf("unknown permission %s", args[1])
		}
		return withStore(func(s *store.SQLiteStore) error {
			ctx := cmd.Context()
			g := store.Grant{UserName: args[0], Permission: string(perm)}
			if len(args) == 3 {
				p, err := s.GetProjectByKey(ctx, args[2])
				if err != nil {
					return err
				}
				g.ProjectID = p.ID
			}
			if err := s.AddGrant(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %s to %s\n", perm, g.UserName)
			return nil
		})
	},
}

var tokenSetCmd = &cobra.Command{
	Use:   "token-set <api|import|bitbucket> <token>",
	Short: "Store a token in the system keyring",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := tokenKey(args[0])
		if err != nil {
			return err
		}
		if err := credential.Set(key, args[1]); err != nil {
			return err
		}
		log.Info("token stored", "key", key)
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "token-delete <api|import|bitbucket>",
	Short: "Remove a token from the system keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := tokenKey(args[0])
		if err != nil {
			return err
		}
		if err := credential.Delete(key); err != nil {
			return err
		}
		log.Info("token removed", "key", key)
		return nil
	},
}

// tokenKey maps a token name to its configured keyring entry.
func tokenKey(name string) (string, error) {
	switch name {
	case "api":
		return cfg.Auth.TokenKey, nil
	case "import":
		return cfg.Import.Remote.TokenKey, nil
	case "bitbucket":
		return cfg.DevLinks.Bitbucket.TokenKey, nil
	}
	return "", fmt.Errorf("unknown token %q, want api, import or bitbucket", name)
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectLead, "lead", "admin", "project lead")
	adminCmd.AddCommand(userAddCmd, projectCreateCmd, grantCmd, tokenSetCmd, tokenDeleteCmd)
}

func withStore(fn func(s *store.SQLiteStore) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
