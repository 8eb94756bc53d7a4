package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateNewDimensions(t *testing.T) {
	t.Run("landscape", func(t *testing.T) {
		w, h := calculateNewDimensions(4000, 3000, 1024)
		assert.Equal(t, 1024, w)
		assert.Equal(t, 768, h)
	})

	t.Run("portrait", func(t *testing.T) {
		w, h := calculateNewDimensions(3000, 4000, 1024)
		assert.Equal(t, 768, w)
		assert.Equal(t, 1024, h)
	})

	t.Run("square", func(t *testing.T) {
		w, h := calculateNewDimensions(2000, 2000, 1024)
		assert.Equal(t, 1024, w)
		assert.Equal(t, 1024, h)
	})
}

func TestCalculatePreviewTime(t *testing.T) {
	t.Run("short video uses first second", func(t *testing.T) {
		assert.Equal(t, "00:00:01", calculatePreviewTime("5.0"))
	})

	t.Run("long video uses ten percent offset", func(t *testing.T) {
		assert.Equal(t, "00:00:30", calculatePreviewTime("300.0"))
	})

	t.Run("unparseable duration falls back", func(t *testing.T) {
		assert.Equal(t, "00:00:01", calculatePreviewTime("n/a"))
	})
}
