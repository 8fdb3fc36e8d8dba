package capacity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Antônio   CARLOS ": "antonio carlos",
		"BARBACENA":           "barbacena",
		"São João del-Rei":    "sao joao del-rei",
		"":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestCatalogResolve(t *testing.T) {
	catalog, err := NewCatalog(DefaultCities())
	require.NoError(t, err)

	city, ok := catalog.Resolve("Barbacena - MG")
	require.True(t, ok)
	assert.Equal(t, "barbacena", city.Key)

	city, ok = catalog.Resolve("ANTÔNIO  carlos")
	require.True(t, ok)
	assert.Equal(t, "antonio-carlos", city.Key)

	city, ok = catalog.Resolve("Alfredo Vasconcellos")
	require.True(t, ok)
	assert.Equal(t, "alfredo-vasconcelos", city.Key)

	_, ok = catalog.Resolve("Juiz de Fora")
	assert.False(t, ok)
	_, ok = catalog.Resolve("   ")
	assert.False(t, ok)
}

func TestCatalogPrefersLongestSpelling(t *testing.T) {
	catalog, err := NewCatalog([]City{
		{Key: "carlos", Name: "Carlos", Limit: 1},
		{Key: "antonio-carlos", Name: "Antonio Carlos", Limit: 1},
	})
	require.NoError(t, err)

	city, ok := catalog.Resolve("antonio carlos")
	require.True(t, ok)
	assert.Equal(t, "antonio-carlos", city.Key)
}

func TestNewCatalogValidation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)
	_, err = NewCatalog([]City{{Key: "", Name: "x"}})
	assert.Error(t, err)
	_, err = NewCatalog([]City{{Key: "a", Name: "A", Limit: -1}})
	assert.Error(t, err)
	_, err = NewCatalog([]City{{Key: "a", Name: "A"}, {Key: "a", Name: "B"}})
	assert.Error(t, err)
	_, err = NewCatalog([]City{{Key: "a"}})
	assert.Error(t, err)
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.json")
	payload := `[{"key":"ibertioga","name":"Ibertioga","limit":30,"variants":["ibertioga mg"]}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	city, ok := catalog.Get("ibertioga")
	require.True(t, ok)
	assert.Equal(t, 30, city.Limit)
	assert.ElementsMatch(t, []string{"ibertioga", "ibertioga mg"}, city.Variants)

	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, def.Cities(), len(DefaultCities()))

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
