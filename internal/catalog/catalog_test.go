package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec-areas.json")
	doc := `[
		{"id": "recgov-2991", "name": "Yosemite National Park", "provider": "RecreationDotGov", "imageUrl": "https://example.com/yose.jpg"},
		{"id": "reserveca-678", "name": "Big Basin Redwoods SP", "provider": "ReserveCalifornia"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	areas, err := Load(path)
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, RecreationDotGov, areas[0].Provider)
	assert.Equal(t, "Big Basin Redwoods SP", areas[1].Name)
}

func TestLoadCatalogMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "rec-areas.json"))
	require.Error(t, err)
}

func TestSortedByIDLeavesInputUntouched(t *testing.T) {
	areas := []Area{{ID: "b"}, {ID: "a"}, {ID: "c"}}

	sorted := SortedByID(areas)
	assert.Equal(t, "a", sorted[0].ID)
	assert.Equal(t, "b", areas[0].ID, "input order preserved")
}

func TestByID(t *testing.T) {
	m := ByID([]Area{{ID: "recgov-1", Name: "One"}, {ID: "recgov-2", Name: "Two"}})
	require.Len(t, m, 2)
	assert.Equal(t, "Two", m["recgov-2"].Name)
}
