package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/mutirao/castracao-backend/pkg/errors"
)

type registerBody struct {
	Name    string `json:"name" validate:"required,max=10"`
	Species string `json:"species" validate:"required,oneof=dog cat"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBody(t *testing.T) {
	var body registerBody
	require.NoError(t, DecodeJSONBody(jsonRequest(`{"name":"Rex","species":"dog"}`), &body))
	assert.Equal(t, "Rex", body.Name)
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var body registerBody
	err := DecodeJSONBody(jsonRequest(`{"name":"a very long name","species":"bird"}`), &body)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be at most 10 characters", details["name"])
	assert.Equal(t, "must be one of: dog, cat", details["species"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"unknown field":  `{"name":"Rex","species":"dog","admin":true}`,
		"trailing value": `{"name":"Rex","species":"dog"}{"name":"Bob","species":"cat"}`,
		"not json":       `name=Rex`,
		"too large":      `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `","species":"dog"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			var body registerBody
			err := DecodeJSONBody(jsonRequest(payload), &body)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestSanitizeLine(t *testing.T) {
	assert.Equal(t, "Maria da Silva", SanitizeLine("  Maria \t da\nSilva  ", 0))
	assert.Equal(t, "Jose", SanitizeLine("Jo\u0000se\u200b", 0))
	assert.Equal(t, "São", SanitizeLine("São Paulo", 3))
	assert.Equal(t, "Ação", SanitizeLine("Ação", 4))
	assert.Equal(t, "ab", SanitizeLine("ab cd", 3))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "first line\nsecond line", SanitizeText("\r\n  first   line\r\nsecond\tline \n\n", 0))
	assert.Equal(t, "abc", SanitizeText("abcdef", 3))
}
