// Package migrate applies, authors and checks the goose SQL migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where new migrations are written during development.
const DefaultDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps dialect and base filesystem in package globals.
var gooseMu sync.Mutex

// Run executes a goose command (up, down, redo, status). An empty dir runs the
// migrations compiled into the binary; otherwise files are read from disk.
func Run(ctx context.Context, db *sql.DB, dir string, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	return withGoose(dir, func(source string) error {
		if err := goose.RunContext(ctx, command, db, source, args...); err != nil {
			return fmt.Errorf("goose %s: %w", command, err)
		}
		return nil
	})
}

// MigrateToVersion moves the schema up or down until it sits at version.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir string, version string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", version)
	}

	return withGoose(dir, func(source string) error {
		current, err := goose.GetDBVersionContext(ctx, db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current < target:
			err = goose.UpToContext(ctx, db, source, target)
		case current > target:
			err = goose.DownToContext(ctx, db, source, target)
		}
		if err != nil {
			return fmt.Errorf("goose %d -> %d: %w", current, target, err)
		}
		return nil
	})
}

func withGoose(dir string, fn func(source string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	// sqlite is a test-only driver; migrations are written for postgres.
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	source := dir
	if dir == "" {
		goose.SetBaseFS(embedded)
		source = embeddedDir
	}
	defer goose.SetBaseFS(nil)

	return fn(source)
}
