package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/multierr"
)

const (
	annotationUp             = "-- +goose Up"
	annotationDown           = "-- +goose Down"
	annotationStatementBegin = "-- +goose StatementBegin"
	annotationStatementEnd   = "-- +goose StatementEnd"
)

var migrationNameRe = regexp.MustCompile(`^\d{14}_[a-z0-9_]+\.sql$`)

// ValidateDir checks every SQL migration in dir and reports all problems at once.
// Goose then collects the set so duplicate or unorderable versions fail here
// instead of at deploy time.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list migrations in %q: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil
	}

	var problems error
	for _, path := range paths {
		problems = multierr.Append(problems, validateFile(path))
	}
	if problems != nil {
		return problems
	}

	return withGoose(dir, func(source string) error {
		if _, err := goose.CollectMigrations(source, 0, goose.MaxVersion); err != nil {
			return fmt.Errorf("collect migrations in %q: %w", dir, err)
		}
		return nil
	})
}

func validateFile(path string) error {
	name := filepath.Base(path)
	if !migrationNameRe.MatchString(name) {
		return fmt.Errorf("%s: expected YYYYMMDDHHMMSS_snake_name.sql", name)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	text := string(raw)

	up := strings.Index(text, annotationUp)
	down := strings.Index(text, annotationDown)
	switch {
	case up < 0:
		return fmt.Errorf("%s: missing %q", name, annotationUp)
	case down < 0:
		return fmt.Errorf("%s: missing %q", name, annotationDown)
	case down < up:
		return fmt.Errorf("%s: down section precedes up section", name)
	}

	if begins, ends := strings.Count(text, annotationStatementBegin), strings.Count(text, annotationStatementEnd); begins != ends {
		return fmt.Errorf("%s: %d StatementBegin vs %d StatementEnd", name, begins, ends)
	}
	return nil
}
