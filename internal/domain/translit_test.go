package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToLatin(t *testing.T) {
	t.Run("municipality names", func(t *testing.T) {
		assert.Equal(t, "Palilula", ToLatin("Палилула"))
		assert.Equal(t, "Zvezdara", ToLatin("Звездара"))
		assert.Equal(t, "Čukarica", ToLatin("Чукарица"))
		assert.Equal(t, "Novi Beograd", ToLatin("Нови Београд"))
	})

	t.Run("digraph letters", func(t *testing.T) {
		assert.Equal(t, "ljiljan", ToLatin("љиљан"))
		assert.Equal(t, "Njegoševa", ToLatin("Његошева"))
		assert.Equal(t, "džep", ToLatin("џеп"))
	})

	t.Run("non cyrillic passes through", func(t *testing.T) {
		assert.Equal(t, "Bulevar 243-261, x", ToLatin("Bulevar 243-261, x"))
	})
}

func TestToCyrillic(t *testing.T) {
	t.Run("digraphs collapse to single letters", func(t *testing.T) {
		assert.Equal(t, "љиљан", ToCyrillic("ljiljan"))
		assert.Equal(t, "Његош", ToCyrillic("Njegoš"))
	})

	t.Run("round trips through latin", func(t *testing.T) {
		for _, m := range Municipalities {
			assert.Equal(t, m, ToCyrillic(ToLatin(m)), m)
		}
	})
}

func TestNormalizeForMatch(t *testing.T) {
	t.Run("script invariance", func(t *testing.T) {
		assert.Equal(t, NormalizeForMatch("Палилула"), NormalizeForMatch("Palilula"))
		assert.Equal(t, NormalizeForMatch("Чукарица"), NormalizeForMatch("Cukarica"))
		assert.Equal(t, NormalizeForMatch("Његошева"), NormalizeForMatch("NJEGOSEVA"))
	})

	t.Run("diacritics fold to ascii", func(t *testing.T) {
		assert.Equal(t, "cukarica", NormalizeForMatch("Čukarica"))
		assert.Equal(t, "djerdapska", NormalizeForMatch("Đerdapska"))
		assert.Equal(t, "suma", NormalizeForMatch("Šuma"))
	})

	t.Run("whitespace collapses", func(t *testing.T) {
		assert.Equal(t, "novi beograd", NormalizeForMatch("  Нови \t Београд "))
	})

	t.Run("total on arbitrary input", func(t *testing.T) {
		assert.Equal(t, "", NormalizeForMatch(""))
		assert.Equal(t, "243-261", NormalizeForMatch("243-261"))
	})
}
