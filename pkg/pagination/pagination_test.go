package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123000000, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	got, err := ParseCursor("   ")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseCursor("!!!")
	assert.Error(t, err)
	_, err = ParseCursor(EncodeCursor(Cursor{}) + "x")
	assert.Error(t, err)
}

func TestBuildPage(t *testing.T) {
	now := time.Now().UTC()
	rows := []Cursor{
		{CreatedAt: now, ID: uuid.New()},
		{CreatedAt: now.Add(-time.Minute), ID: uuid.New()},
		{CreatedAt: now.Add(-2 * time.Minute), ID: uuid.New()},
	}
	page := BuildPage(rows, 2, func(c Cursor) Cursor { return c })
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].ID, next.ID)

	last := BuildPage(rows[:1], 2, func(c Cursor) Cursor { return c })
	assert.Empty(t, last.NextCursor)

	empty := BuildPage[Cursor](nil, 0, func(c Cursor) Cursor { return c })
	assert.NotNil(t, empty.Items)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(1000))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}
