package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tracker/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database, and SQLite
	// has a single writer anyway.
	db.SetMaxOpenConns(1)

	if !strings.Contains(dbPath, ":memory:") {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied migration version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// notFound converts sql.ErrNoRows into a wrapped ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("getting %s %s: %w", what, id, err)
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(result sql.Result, what, id string) error {
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

func now() time.Time {
	return time.Now().UTC()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// === Users and grants ===

// UpsertUser inserts or replaces a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user model.User) error {
	if strings.TrimSpace(user.Name) == "" {
		return fmt.Errorf("user name must not be empty")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (name, display_name, email)
		VALUES (?, ?, ?)`,
		user.Name, user.DisplayName, user.Email,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", user.Name, err)
	}
	return nil
}

// GetUser retrieves a user by name.
func (s *SQLiteStore) GetUser(ctx context.Context, name string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u,
		"SELECT name, display_name, email FROM users WHERE name = ?", name)
	if err != nil {
		return nil, notFound(err, "user", name)
	}
	return &u, nil
}

// GetUsers retrieves all users ordered by name.
func (s *SQLiteStore) GetUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT name, display_name, email FROM users ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}

// AddGrant records a permission grant. Duplicate grants are ignored.
func (s *SQLiteStore) AddGrant(ctx context.Context, g Grant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO grants (user_name, permission, project_id)
		VALUES (?, ?, ?)`,
		g.UserName, g.Permission, g.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("adding grant %s to %s: %w", g.Permission, g.UserName, err)
	}
	return nil
}

// GetGrants retrieves every grant held by a user.
func (s *SQLiteStore) GetGrants(ctx context.Context, userName string) ([]Grant, error) {
	var grants []Grant
	err := s.db.SelectContext(ctx, &grants, `
		SELECT user_name, permission, project_id FROM grants
		WHERE user_name = ?`, userName)
	if err != nil {
		return nil, fmt.Errorf("querying grants for %s: %w", userName, err)
	}
	return grants, nil
}

// === Import mappings ===

// SaveMappings persists the old-to-new translations of an import,
// replacing earlier rows for the same (import, kind, old id).
func (s *SQLiteStore) SaveMappings(ctx context.Context, mappings []Mapping) error {
	if len(mappings) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT OR REPLACE INTO import_mappings (import_id, kind, old_id, new_id, old_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing mapping insert: %w", err)
		}
		defer stmt.Close()

		ts := now()
		for _, m := range mappings {
			if _, err := stmt.ExecContext(ctx, m.ImportID, m.Kind, m.OldID, m.NewID, m.OldKey, ts); err != nil {
				return fmt.Errorf("saving mapping %s/%s: %w", m.Kind, m.OldID, err)
			}
		}
		return nil
	})
}

// GetMappings retrieves the mappings recorded by one import.
func (s *SQLiteStore) GetMappings(ctx context.Context, importID string) ([]Mapping, error) {
	var out []Mapping
	err := s.db.SelectContext(ctx, &out, `
		SELECT import_id, kind, old_id, new_id, old_key FROM import_mappings
		WHERE import_id = ? ORDER BY kind, old_id`, importID)
	if err != nil {
		return nil, fmt.Errorf("querying mappings for import %s: %w", importID, err)
	}
	return out, nil
}
