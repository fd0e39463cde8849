// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides menu/artifact/gate persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS menus (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			parent_id INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_menus_parent ON menus(parent_id);

		CREATE TABLE IF NOT EXISTS artifacts (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			menu_id      INTEGER NOT NULL,
			kind         TEXT NOT NULL,
			handle       TEXT,
			caption      TEXT,
			url          TEXT,
			access_token TEXT UNIQUE NOT NULL,

			CHECK (kind IN ('document', 'video', 'photo', 'audio', 'animation', 'link'))
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_menu ON artifacts(menu_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_token ON artifacts(access_token);

		CREATE TABLE IF NOT EXISTS gates (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_ref TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id     TEXT PRIMARY KEY,
			handle TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS admins (
			id     TEXT PRIMARY KEY,
			handle TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// CreateMenu inserts a new menu and returns its id
func (s *SQLiteStore) CreateMenu(ctx context.Context, name string, parentID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO menus (name, parent_id) VALUES (?, ?)`, name, parentID)
	if err != nil {
		return 0, fmt.Errorf("inserting menu: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting menu id: %w", err)
	}

	s.logger.Debug("created menu", "id", id, "name", name, "parent_id", parentID)
	return id, nil
}

// GetMenu retrieves a menu by id.
// Returns ErrNotFound if the menu doesn't exist.
func (s *SQLiteStore) GetMenu(ctx context.Context, id int64) (*Menu, error) {
	var m Menu
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM menus WHERE id = ?`, id).
		Scan(&m.ID, &m.Name, &m.ParentID)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying menu: %w", err)
	}

	return &m, nil
}

// ListMenus returns all menus ordered by id
func (s *SQLiteStore) ListMenus(ctx context.Context) ([]*Menu, error) {
	return s.queryMenus(ctx, `SELECT id, name, parent_id FROM menus ORDER BY id`)
}

// ListChildMenus returns the direct submenus of a parent, ordered by id.
// Pass RootMenuID to list top-level menus.
func (s *SQLiteStore) ListChildMenus(ctx context.Context, parentID int64) ([]*Menu, error) {
	return s.queryMenus(ctx,
		`SELECT id, name, parent_id FROM menus WHERE parent_id = ? ORDER BY id`, parentID)
}

func (s *SQLiteStore) queryMenus(ctx context.Context, query string, args ...any) ([]*Menu, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying menus: %w", err)
	}
	defer rows.Close()

	var menus []*Menu
	for rows.Next() {
		var m Menu
		if err := rows.Scan(&m.ID, &m.Name, &m.ParentID); err != nil {
			return nil, fmt.Errorf("scanning menu row: %w", err)
		}
		menus = append(menus, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating menu rows: %w", err)
	}
	return menus, nil
}

// RenameMenu updates a menu's display name.
// Returns ErrNotFound if the menu doesn't exist.
func (s *SQLiteStore) RenameMenu(ctx context.Context, id int64, name string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE menus SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("renaming menu: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("renamed menu", "id", id, "name", name)
	return nil
}

// DeleteMenu removes a menu, its direct artifacts, and reparents its direct
// child menus to root, all in one transaction.
// Returns ErrNotFound if the menu doesn't exist.
func (s *SQLiteStore) DeleteMenu(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM menus WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting menu: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE menu_id = ?`, id); err != nil {
		return fmt.Errorf("deleting menu artifacts: %w", err)
	}

	// Orphaned submenus become top-level menus rather than dangling
	if _, err := tx.ExecContext(ctx,
		`UPDATE menus SET parent_id = ? WHERE parent_id = ?`, RootMenuID, id); err != nil {
		return fmt.Errorf("reparenting child menus: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing menu delete: %w", err)
	}

	s.logger.Debug("deleted menu", "id", id)
	return nil
}

// CreateArtifact inserts a new artifact and returns its id.
// Returns ErrDuplicateToken if the access token is already in use.
func (s *SQLiteStore) CreateArtifact(ctx context.Context, a *Artifact) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (menu_id, kind, handle, caption, url, access_token)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.MenuID, string(a.Kind), nullString(a.Handle), nullString(a.Caption),
		nullString(a.URL), a.AccessToken)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, ErrDuplicateToken
		}
		return 0, fmt.Errorf("inserting artifact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting artifact id: %w", err)
	}

	s.logger.Debug("created artifact", "id", id, "menu_id", a.MenuID, "kind", a.Kind)
	return id, nil
}

// nullString returns nil for empty strings, otherwise the string value
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListMenuArtifacts returns all artifacts directly under a menu, ordered by id
func (s *SQLiteStore) ListMenuArtifacts(ctx context.Context, menuID int64) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, menu_id, kind, handle, caption, url, access_token
		FROM artifacts
		WHERE menu_id = ?
		ORDER BY id
	`, menuID)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifact rows: %w", err)
	}
	return artifacts, nil
}

// GetArtifactByToken retrieves an artifact by its access token.
// This is the only artifact lookup exposed to end users.
// Returns ErrNotFound if no artifact carries the token.
func (s *SQLiteStore) GetArtifactByToken(ctx context.Context, token string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, menu_id, kind, handle, caption, url, access_token
		FROM artifacts
		WHERE access_token = ?
	`, token)

	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var a Artifact
	var kind string
	var handle, caption, url sql.NullString

	err := row.Scan(&a.ID, &a.MenuID, &kind, &handle, &caption, &url, &a.AccessToken)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning artifact: %w", err)
	}

	a.Kind = ArtifactKind(kind)
	a.Handle = handle.String
	a.Caption = caption.String
	a.URL = url.String
	return &a, nil
}

// CreateGate inserts a new gate and returns its id
func (s *SQLiteStore) CreateGate(ctx context.Context, channelRef string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO gates (channel_ref) VALUES (?)`, channelRef)
	if err != nil {
		return 0, fmt.Errorf("inserting gate: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting gate id: %w", err)
	}

	s.logger.Debug("created gate", "id", id, "channel_ref", channelRef)
	return id, nil
}

// GetGate retrieves a gate by id.
// Returns ErrNotFound if the gate doesn't exist.
func (s *SQLiteStore) GetGate(ctx context.Context, id int64) (*Gate, error) {
	var g Gate
	err := s.db.QueryRowContext(ctx,
		`SELECT id, channel_ref FROM gates WHERE id = ?`, id).
		Scan(&g.ID, &g.ChannelRef)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying gate: %w", err)
	}
	return &g, nil
}

// ListGates returns all configured gates ordered by id
func (s *SQLiteStore) ListGates(ctx context.Context) ([]*Gate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, channel_ref FROM gates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying gates: %w", err)
	}
	defer rows.Close()

	var gates []*Gate
	for rows.Next() {
		var g Gate
		if err := rows.Scan(&g.ID, &g.ChannelRef); err != nil {
			return nil, fmt.Errorf("scanning gate row: %w", err)
		}
		gates = append(gates, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gate rows: %w", err)
	}
	return gates, nil
}

// UpdateGate replaces a gate's channel reference.
// Returns ErrNotFound if the gate doesn't exist.
func (s *SQLiteStore) UpdateGate(ctx context.Context, id int64, channelRef string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE gates SET channel_ref = ? WHERE id = ?`, channelRef, id)
	if err != nil {
		return fmt.Errorf("updating gate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated gate", "id", id, "channel_ref", channelRef)
	return nil
}

// DeleteGate removes a gate.
// Returns ErrNotFound if the gate doesn't exist.
func (s *SQLiteStore) DeleteGate(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM gates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting gate: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted gate", "id", id)
	return nil
}

// UpsertUser inserts a user or refreshes its display handle.
// Users are never deleted.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, handle) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET handle = excluded.handle
	`, u.ID, u.Handle)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// ListUsers returns all known users ordered by id
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, handle FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Handle); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// UpsertAdmin adds an identity to the durable allow-list
func (s *SQLiteStore) UpsertAdmin(ctx context.Context, a *Admin) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (id, handle) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET handle = excluded.handle
	`, a.ID, a.Handle)
	if err != nil {
		return fmt.Errorf("upserting admin: %w", err)
	}
	return nil
}

// IsAdmin reports whether the identity is on the durable allow-list
func (s *SQLiteStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM admins WHERE id = ?`, userID).Scan(&one)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying admin: %w", err)
	}
	return true, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
