package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nikbrunner/anchormarks/internal/model"
)

const currentSchemaVersion = 3

// ErrNotFound is returned by lookups that match no row for the user.
var ErrNotFound = errors.New("not found")

// Querier is satisfied by both *sql.DB and *sql.Tx, so every query helper
// can run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage is the canonical bookmark store backed by a SQLite database.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// brings its schema up to date.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// DB exposes the underlying handle for autocommit queries.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a transaction, committing only if fn returns nil.
func (s *SQLiteStorage) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStorage) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	return version, err
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	// Check current schema version
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
	}

	if version < 3 {
		if err := s.migrateV3(); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the initial schema. There is deliberately no unique
// index on (user_id, url): duplicate URLs are prevented by the importer
// and syncer, and rows created by other paths are tolerated.
func (s *SQLiteStorage) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS folders (
			id TEXT PRIMARY KEY NOT NULL,
			user_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (parent_id) REFERENCES folders(id) ON DELETE SET NULL
		);

		CREATE INDEX IF NOT EXISTS idx_folders_user_parent_name ON folders(user_id, parent_id, name);

		CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY NOT NULL,
			user_id TEXT NOT NULL,
			folder_id TEXT,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			favicon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			click_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (folder_id) REFERENCES folders(id) ON DELETE SET NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bookmarks_user_url ON bookmarks(user_id, url);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_folder_id ON bookmarks(folder_id);

		CREATE TABLE IF NOT EXISTS tags (
			id TEXT PRIMARY KEY NOT NULL,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE (user_id, name)
		);

		CREATE TABLE IF NOT EXISTS bookmark_tags (
			bookmark_id TEXT NOT NULL,
			tag_id TEXT NOT NULL,
			color_override TEXT,
			PRIMARY KEY (bookmark_id, tag_id),
			FOREIGN KEY (bookmark_id) REFERENCES bookmarks(id) ON DELETE CASCADE,
			FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_bookmark_tags_tag_id ON bookmark_tags(tag_id);

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// migrateV2 tracks when a bookmark's favicon was last looked up.
func (s *SQLiteStorage) migrateV2() error {
	migration := `
		ALTER TABLE bookmarks ADD COLUMN favicon_checked_at TEXT;
		UPDATE schema_version SET version = 2;
	`
	_, err := s.db.Exec(migration)
	return err
}

// migrateV3 scopes folder ids to their user. Browsers reuse small ids
// ("1" is Chrome's bookmark bar for everyone), so sync must be able to
// store the same folder id for different users. Folder references become
// composite keys on (user_id, folder id), which also stops a bookmark or
// folder from pointing at another user's folder.
//
// SQLite cannot alter keys in place: both tables are rebuilt on a single
// connection with foreign key enforcement switched off for the copy.
func (s *SQLiteStorage) migrateV3() error {
	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer func() { _, _ = conn.ExecContext(ctx, "PRAGMA foreign_keys = ON") }()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	migration := `
		CREATE TABLE folders_v3 (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			parent_id TEXT,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, id),
			FOREIGN KEY (user_id, parent_id) REFERENCES folders(user_id, id)
		);

		INSERT INTO folders_v3 (id, user_id, parent_id, name, color, icon, position, created_at, updated_at)
		SELECT id, user_id, parent_id, name, color, icon, position, created_at, updated_at FROM folders;

		CREATE TABLE bookmarks_v3 (
			id TEXT PRIMARY KEY NOT NULL,
			user_id TEXT NOT NULL,
			folder_id TEXT,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			favicon TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			is_favorite INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			click_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			favicon_checked_at TEXT,
			FOREIGN KEY (user_id, folder_id) REFERENCES folders(user_id, id)
		);

		INSERT INTO bookmarks_v3 (id, user_id, folder_id, title, url, description, favicon, color,
			position, is_favorite, is_archived, click_count, created_at, updated_at, favicon_checked_at)
		SELECT id, user_id, folder_id, title, url, description, favicon, color,
			position, is_favorite, is_archived, click_count, created_at, updated_at, favicon_checked_at
		FROM bookmarks;

		DROP TABLE bookmarks;
		DROP TABLE folders;
		ALTER TABLE folders_v3 RENAME TO folders;
		ALTER TABLE bookmarks_v3 RENAME TO bookmarks;

		CREATE INDEX idx_folders_user_parent_name ON folders(user_id, parent_id, name);
		CREATE INDEX idx_bookmarks_user_url ON bookmarks(user_id, url);
		CREATE INDEX idx_bookmarks_user_folder ON bookmarks(user_id, folder_id);

		UPDATE schema_version SET version = 3;
	`
	if _, err := tx.ExecContext(ctx, migration); err != nil {
		_ = tx.Rollback()
		return err
	}

	// Rows that pointed at another user's folder would fail the new keys.
	for _, stmt := range []string{
		`UPDATE bookmarks SET folder_id = NULL
		 WHERE folder_id IS NOT NULL AND NOT EXISTS (
			SELECT 1 FROM folders f WHERE f.user_id = bookmarks.user_id AND f.id = bookmarks.folder_id)`,
		`UPDATE folders SET parent_id = NULL
		 WHERE parent_id IS NOT NULL AND NOT EXISTS (
			SELECT 1 FROM folders p WHERE p.user_id = folders.user_id AND p.id = folders.parent_id)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Load reads one user's full store inside a single transaction so the
// folders, bookmarks and tags are a consistent snapshot.
func (s *SQLiteStorage) Load(ctx context.Context, userID string) (*model.Store, error) {
	var snap *model.Store
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// nullable turns a nil pointer into SQL NULL.
func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
