package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/tracker/internal/logger"
	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/store"
)

var (
	// Global flags
	cfgPath string
	verbose bool
	asUser  string

	cfg *model.AppConfig
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Issue tracker services and REST API",
	Long: `tracker manages versions, issue links, subtasks and custom fields
of a local issue database and serves them over a REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(cfgPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log, err = logger.New(cfg.Log.Mode, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", model.DefaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&asUser, "as", envOr("TRACKER_USER", "admin"), "user the command acts as")

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, activityCmd, versionCmd, adminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// openStore opens the configured database, applying pending migrations.
func openStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database.Path, err)
	}
	return s, nil
}

// actingUser resolves the --as user. An empty name is anonymous.
func actingUser(ctx context.Context, s store.Store) (model.User, error) {
	if asUser == "" {
		return model.User{}, nil
	}
	u, err := s.GetUser(ctx, asUser)
	if err != nil {
		return model.User{}, fmt.Errorf("resolving user %s: %w", asUser, err)
	}
	return *u, nil
}
