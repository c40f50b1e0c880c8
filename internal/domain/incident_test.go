package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDedupeHash(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := NewDedupeHash("BVK", "Палилула: Далматинска", "Палилула, Далматинска")
		b := NewDedupeHash("BVK", "Палилула: Далматинска", "Палилула, Далматинска")
		assert.Equal(t, a, b)
		assert.Len(t, a, 40)
	})

	t.Run("any component changes the hash", func(t *testing.T) {
		base := NewDedupeHash("BVK", "t", "a")
		assert.NotEqual(t, base, NewDedupeHash("EPS", "t", "a"))
		assert.NotEqual(t, base, NewDedupeHash("BVK", "t2", "a"))
		assert.NotEqual(t, base, NewDedupeHash("BVK", "t", "a2"))
	})
}

func TestIncidentHasCoordinates(t *testing.T) {
	lat, lon := 44.8, 20.4
	assert.False(t, Incident{}.HasCoordinates())
	assert.False(t, Incident{Lat: &lat}.HasCoordinates())
	assert.True(t, Incident{Lat: &lat, Lon: &lon}.HasCoordinates())
}
