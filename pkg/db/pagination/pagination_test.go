package pagination

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "1234567890", CreatedAt: "2026-05-01T10:00:00Z"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", cursor.ID)
	assert.Equal(t, "2026-05-01T10:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not-base64!!!")
	require.Error(t, err)

	_, err = DecodeCursor("aGVsbG8=") // valid base64, not json
	require.Error(t, err)
}

func TestBuildCursorPageInfo(t *testing.T) {
	type row struct{ id int }
	extract := func(r *row) string { return strconv.Itoa(r.id) }

	rows := []*row{{1}, {2}, {3}}

	info := BuildCursorPageInfo(rows, 2, extract)
	assert.True(t, info.HasMore)
	assert.Equal(t, "2", info.NextPageToken, "token must come from the last visible row")

	info = BuildCursorPageInfo(rows, 3, extract)
	assert.False(t, info.HasMore)
	assert.Equal(t, "3", info.NextPageToken)

	info = BuildCursorPageInfo(nil, 3, extract)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
