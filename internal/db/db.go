// Package db opens the workspace SQLite database. All state for a workspace
// lives under its .printline directory.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".printline"
	dbFileName   = "printline.db"
)

type Config struct {
	Workspace string
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, dbFileName)
}

// EnsureWorkspace creates the workspace state directory if missing and
// returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	dir := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure workspace: %w", err)
	}
	return dir, nil
}

// Open opens the workspace database with foreign keys on.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", Path(cfg.Workspace))
	return sql.Open("sqlite", dsn)
}
