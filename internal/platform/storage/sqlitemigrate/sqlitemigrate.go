// Package sqlitemigrate applies embedded SQL migrations to SQLite databases.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	migrationTable = "schema_migrations"
	upMarker       = "-- +migrate Up"
	downMarker     = "-- +migrate Down"
)

// Migrator applies *.sql files under Root once each, in lexical order.
type Migrator struct {
	DB   *sql.DB
	FS   fs.FS
	Root string
	Log  *logrus.Entry
	// Now stamps applied_at. Defaults to time.Now.
	Now func() time.Time
}

// Apply runs pending migrations and returns the keys it applied.
func (m Migrator) Apply(ctx context.Context) ([]string, error) {
	if m.DB == nil {
		return nil, errors.New("sql db is required")
	}
	if m.FS == nil {
		return nil, errors.New("migration fs is required")
	}
	now := m.Now
	if now == nil {
		now = time.Now
	}

	root := strings.Trim(strings.TrimSpace(m.Root), "/")
	if root == "" {
		root = "."
	}
	files, err := sqlFiles(m.FS, root)
	if err != nil {
		return nil, err
	}

	if _, err := m.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, file := range files {
		key := file
		if root != "." {
			key = path.Join(root, file)
		}

		done, err := isApplied(ctx, m.DB, key)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", key, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(m.FS, path.Join(root, file))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", key, err)
		}
		upSQL := ExtractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		if err := applyOne(ctx, m.DB, key, upSQL, now()); err != nil {
			return applied, err
		}
		if m.Log != nil {
			m.Log.WithField("migration", key).Info("applied migration")
		}
		applied = append(applied, key)
	}
	return applied, nil
}

func sqlFiles(fsys fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func applyOne(ctx context.Context, db *sql.DB, key, upSQL string, at time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, upSQL); err != nil && !IsAlreadyExistsError(err) {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
		key, at.UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", key, err)
	}
	return nil
}

// ExtractUpMigration returns the SQL between the Up and Down markers. Files
// without markers are treated as all Up.
func ExtractUpMigration(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	body := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx != -1 {
		body = body[:downIdx]
	}
	return body
}

// IsAlreadyExistsError reports whether err is SQLite rejecting DDL that has
// already been applied.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
