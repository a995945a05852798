package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{"2026-10-18", " 2026-10-18 ", "2026-10-18T23:30:00+03:00", "2026-10-18T00:00:00Z"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseDate("18/10/2026")
	assert.ErrorIs(t, err, ErrorInvalidDate)
}

func TestParseOptionalDate(t *testing.T) {
	got, err := ParseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalDate("2026-01-31")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2026-01-31", got.Format(DateLayout))

	_, err = ParseOptionalDate("tomorrow")
	assert.Error(t, err)
}

func TestUniqueIntsKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, UniqueInts([]int{3, 1, 3, 2, 1}))
	assert.Equal(t, []string{"a", "b"}, SplitAndTrim(" a, ,b ,"))
	assert.Nil(t, SplitAndTrim("  "))
}
