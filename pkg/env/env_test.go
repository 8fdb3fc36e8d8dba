package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	t.Setenv("MUTIRAO_TEST_VALUE", "  console ")
	t.Setenv("MUTIRAO_TEST_BLANK", "   ")

	assert.Equal(t, "console", Get("MUTIRAO_TEST_VALUE", "json"))
	assert.Equal(t, "json", Get("MUTIRAO_TEST_BLANK", "json"))
	assert.Equal(t, "json", Get("MUTIRAO_TEST_MISSING", "json"))
}

func TestFirst(t *testing.T) {
	t.Setenv("MUTIRAO_TEST_LEGACY", "console")
	assert.Equal(t, "console", First("json", "MUTIRAO_TEST_PRIMARY", "MUTIRAO_TEST_LEGACY"))

	t.Setenv("MUTIRAO_TEST_PRIMARY", "json")
	assert.Equal(t, "json", First("console", "MUTIRAO_TEST_PRIMARY", "MUTIRAO_TEST_LEGACY"))

	assert.Equal(t, "fallback", First("fallback"))
}
