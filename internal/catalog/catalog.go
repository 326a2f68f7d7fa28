// Package catalog holds the static recreation-area catalog. Entries are
// built by an out-of-band catalog builder and are read-only at scan time.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ProviderKind identifies the upstream reservation system an area belongs
// to. It is an explicit field on every catalog entry; area IDs are opaque
// keys and are never parsed to recover the provider.
type ProviderKind string

const (
	RecreationDotGov  ProviderKind = "RecreationDotGov"
	ReserveCalifornia ProviderKind = "ReserveCalifornia"
)

// Area is a single recreation-area catalog entry.
type Area struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Provider ProviderKind `json:"provider"`
	ImageURL string       `json:"imageUrl,omitempty"`
}

// Load reads the area catalog from a JSON file. A missing file is an error:
// there is nothing to scan without a catalog.
func Load(path string) ([]Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read area catalog: %w", err)
	}
	var areas []Area
	if err := json.Unmarshal(data, &areas); err != nil {
		return nil, fmt.Errorf("decode area catalog: %w", err)
	}
	return areas, nil
}

// ByID indexes areas by their catalog ID.
func ByID(areas []Area) map[string]Area {
	m := make(map[string]Area, len(areas))
	for _, a := range areas {
		m[a.ID] = a
	}
	return m
}

// SortedByID returns a copy of areas ordered by ID ascending. The rotation
// cursor indexes into this order, so it must be stable across catalog
// reloads.
func SortedByID(areas []Area) []Area {
	out := make([]Area, len(areas))
	copy(out, areas)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
