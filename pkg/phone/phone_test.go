package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"(32) 99999-1234":     "5532999991234",
		"32 3333-1234":        "553233331234",
		"+55 32 99999-1234":   "5532999991234",
		"055 (32) 99999-1234": "5532999991234",
	}
	for input, want := range cases {
		got, err := Normalize(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := Normalize("1234")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Normalize("+1 415 555 0100 99")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "99991234", Suffix("+55 (32) 9 9999-1234"))
	assert.Equal(t, "99991234", Suffix("32999991234"))
	assert.Equal(t, "1234", Suffix("12-34"))
}
