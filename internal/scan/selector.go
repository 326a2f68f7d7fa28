package scan

import (
	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/store"
)

// EnabledAreas returns the areas excluded by neither the manual nor the
// automatic disable set, ordered by ID ascending. The rotation cursor
// indexes into this order, so it must be deterministic across runs even if
// the catalog is reloaded.
func EnabledAreas(areas []catalog.Area, fav *store.FavoritesConfig) []catalog.Area {
	enabled := make([]catalog.Area, 0, len(areas))
	for _, a := range areas {
		if fav.IsEnabled(a.ID) {
			enabled = append(enabled, a)
		}
	}
	return catalog.SortedByID(enabled)
}

// SelectAreas produces the ordered list of areas to scan this run. It is a
// pure function of its inputs; the cursor is re-normalized against the
// current enabled count here, never at persistence time.
//
// Explicit mode bypasses the disabled sets entirely. IDs absent from the
// catalog are silently dropped and duplicates are ignored. Rotation batch
// sizes larger than the enabled count wrap around, selecting some areas more
// than once; duplicate scans are accepted (last result wins).
func SelectAreas(areas []catalog.Area, fav *store.FavoritesConfig, cursor int, mode Mode, explicitIDs []string, batchSize int) []catalog.Area {
	switch mode {
	case ModeExplicit:
		requested := make(map[string]bool, len(explicitIDs))
		for _, id := range explicitIDs {
			requested[id] = true
		}
		selected := []catalog.Area{}
		for _, a := range areas {
			if requested[a.ID] {
				selected = append(selected, a)
			}
		}
		return selected

	case ModeFavorites:
		selected := []catalog.Area{}
		for _, a := range areas {
			if fav.IsFavorite(a.ID) && fav.IsEnabled(a.ID) {
				selected = append(selected, a)
			}
		}
		return selected

	case ModeRotation:
		enabled := EnabledAreas(areas, fav)
		n := len(enabled)
		if n == 0 {
			return nil
		}
		if batchSize < 1 {
			batchSize = 1
		}
		start := ((cursor % n) + n) % n
		selected := make([]catalog.Area, 0, batchSize)
		for i := 0; i < batchSize; i++ {
			selected = append(selected, enabled[(start+i)%n])
		}
		return selected
	}
	return nil
}
