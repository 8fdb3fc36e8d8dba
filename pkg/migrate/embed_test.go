package migrate

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)

	compiled, err := fs.Glob(embedded, embeddedDir+"/*.sql")
	require.NoError(t, err)

	require.NotEmpty(t, compiled)
	assert.Len(t, compiled, len(onDisk))
	for _, path := range onDisk {
		assert.Contains(t, compiled, embeddedDir+"/"+filepath.Base(path))
	}
}
