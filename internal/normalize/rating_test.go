package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		input     string
		wantAvg   float64
		wantCount int
	}{
		{"★ 4.8 / 5 ( 123 ratings )", 4.8, 123},
		{"4.5 stars (2,001)", 4.5, 2001},
		{"4.8(123)", 4.8, 123},
		{"4.2", 4.2, 0},
		{"Rated 5 stars (7 reviews)", 5, 7},
	}
	for _, tt := range tests {
		avg, count := ParseRating(tt.input)
		require.NotNil(t, avg, tt.input)
		assert.InDelta(t, tt.wantAvg, *avg, 0.001, tt.input)
		assert.Equal(t, tt.wantCount, count, tt.input)
	}
}

func TestParseRatingRejectsOutOfRange(t *testing.T) {
	// Unrelated numbers sometimes land in the rating slot; the count still
	// survives when the average is bogus.
	avg, count := ParseRating("556.0 (1)")
	assert.Nil(t, avg)
	assert.Equal(t, 1, count)

	avg, count = ParseRating("6.3")
	assert.Nil(t, avg)
	assert.Equal(t, 0, count)
}

func TestParseRatingEmpty(t *testing.T) {
	avg, count := ParseRating("")
	assert.Nil(t, avg)
	assert.Equal(t, 0, count)

	avg, count = ParseRating("no ratings yet")
	assert.Nil(t, avg)
	assert.Equal(t, 0, count)
}
