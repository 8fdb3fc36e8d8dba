package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var nonSnakeRe = regexp.MustCompile(`[^a-z0-9]+`)

var sqlMigrationTemplate = template.Must(template.New("migration").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}} ({{.Version}})
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert {{.CamelName}}
-- +goose StatementEnd
`))

// CreateSQLMigration writes a timestamped goose SQL migration into dir and
// returns its path. Names are reduced to snake_case and must be unique in dir.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	safe := strings.Trim(nonSnakeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if safe == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	pattern := filepath.Join(dir, "*_"+safe+".sql")
	if existing, _ := filepath.Glob(pattern); len(existing) > 0 {
		return "", fmt.Errorf("migration %q already exists: %s", safe, existing[0])
	}

	err := withGoose(dir, func(source string) error {
		goose.SetSequential(false)
		return goose.CreateWithTemplate(nil, source, sqlMigrationTemplate, safe, "sql")
	})
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", safe, err)
	}

	created, err := filepath.Glob(pattern)
	if err != nil || len(created) == 0 {
		return "", fmt.Errorf("locate created migration %q in %q", safe, dir)
	}
	sort.Strings(created)
	return created[len(created)-1], nil
}
