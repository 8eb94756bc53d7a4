package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	t.Run("standard range", func(t *testing.T) {
		ranges, err := parseRange("bytes=0-499", 1000)
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Equal(t, int64(0), ranges[0][0])
		assert.Equal(t, int64(499), ranges[0][1])
	})

	t.Run("open-ended range", func(t *testing.T) {
		ranges, err := parseRange("bytes=500-", 1000)
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Equal(t, int64(500), ranges[0][0])
		assert.Equal(t, int64(999), ranges[0][1])
	})

	t.Run("suffix range", func(t *testing.T) {
		ranges, err := parseRange("bytes=-200", 1000)
		require.NoError(t, err)
		require.Len(t, ranges, 1)
		assert.Equal(t, int64(800), ranges[0][0])
		assert.Equal(t, int64(999), ranges[0][1])
	})

	t.Run("multiple ranges", func(t *testing.T) {
		ranges, err := parseRange("bytes=0-99,200-299", 1000)
		require.NoError(t, err)
		assert.Len(t, ranges, 2)
	})

	t.Run("missing bytes prefix", func(t *testing.T) {
		_, err := parseRange("0-499", 1000)
		assert.Error(t, err)
	})

	t.Run("end beyond file size", func(t *testing.T) {
		_, err := parseRange("bytes=0-1000", 1000)
		assert.Error(t, err)
	})

	t.Run("inverted range", func(t *testing.T) {
		_, err := parseRange("bytes=500-100", 1000)
		assert.Error(t, err)
	})
}

func TestParseFloatValue(t *testing.T) {
	assert.Nil(t, parseFloatValue(""))
	assert.Nil(t, parseFloatValue("not-a-number"))

	v := parseFloatValue("55.7558")
	require.NotNil(t, v)
	assert.InDelta(t, 55.7558, *v, 0.0001)
}
