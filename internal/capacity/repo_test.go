package capacity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutirao/castracao-backend/pkg/db/dbtest"
	"github.com/mutirao/castracao-backend/pkg/enums"
)

func TestCountOccupiedTreatsWildcardsLiterally(t *testing.T) {
	db := dbtest.Open(t).DB()
	ctx := context.Background()
	repo := NewRepository()

	seedRegistrations(t, db, "sao_joao", enums.RegistrationStatusAwaitingService, 2)
	seedRegistrations(t, db, "saoxjoao", enums.RegistrationStatusScheduled, 3)
	seedRegistrations(t, db, "100% rural", enums.RegistrationStatusScheduled, 1)

	n, err := repo.CountOccupied(ctx, db, []string{"sao_joao"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.CountOccupied(ctx, db, []string{"100%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = repo.CountOccupied(ctx, db, []string{"%"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `sao\_joao`, escapeLike("sao_joao"))
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}
