package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isGloveName(name string) bool {
	return strings.Contains(name, "gloves") || strings.Contains(name, "hand wraps")
}

func TestCatalog_FilterKnifeExcludesGloves(t *testing.T) {
	c := DefaultCatalog()

	names, categories, err := c.Filter(TypeKnife)
	require.NoError(t, err)

	assert.Equal(t, []string{CategoryKnife}, categories)
	assert.Len(t, names, 15)
	for _, n := range names {
		assert.False(t, isGloveName(n), "knife filter contains glove %q", n)
	}
	assert.Contains(t, names, "karambit")
}

func TestCatalog_FilterGloveExcludesKnives(t *testing.T) {
	c := DefaultCatalog()

	names, categories, err := c.Filter(TypeGlove)
	require.NoError(t, err)

	assert.Equal(t, []string{CategoryGloves}, categories)
	assert.Len(t, names, 8)
	for _, n := range names {
		assert.True(t, isGloveName(n), "glove filter contains knife %q", n)
	}
	assert.Contains(t, names, "hand wraps")
}

func TestCatalog_FilterBothIsUnion(t *testing.T) {
	c := DefaultCatalog()

	knives, _, err := c.Filter(TypeKnife)
	require.NoError(t, err)
	gloves, _, err := c.Filter(TypeGlove)
	require.NoError(t, err)
	both, categories, err := c.Filter(TypeBoth)
	require.NoError(t, err)

	assert.ElementsMatch(t, append(knives, gloves...), both)
	assert.ElementsMatch(t, []string{CategoryKnife, CategoryGloves}, categories)
}

func TestCatalog_FilterDoesNotAlias(t *testing.T) {
	c := DefaultCatalog()

	names, _, err := c.Filter(TypeKnife)
	require.NoError(t, err)
	names[0] = "mutated"

	assert.NotEqual(t, "mutated", c.Knives[0])
}

func TestCatalog_FilterInvalidType(t *testing.T) {
	_, _, err := DefaultCatalog().Filter("pistol")
	assert.ErrorIs(t, err, ErrInvalidItemType)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - Karambit\n  - Sport Gloves\n  - Hand Wraps\n"), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"karambit"}, c.Knives)
	assert.Equal(t, []string{"sport gloves", "hand wraps"}, c.Gloves)
}

func TestLoadCatalog_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items: []\n"), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
