// Package store persists scanner state as JSON documents on disk. All
// documents are read once at run start and written once at run end; saves
// are atomic (write to a temp file in the same directory, then rename) so a
// crash mid-write never corrupts the previous state.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	areasFile        = "rec-areas.json"
	scanStateFile    = "scan-state.json"
	favoritesFile    = "favorites.json"
	availabilityFile = "availability.json"

	// MaxWeekendDates bounds the per-area weekend-date set to the nearest
	// dates. Older dates roll off; callers never need an unbounded list.
	MaxWeekendDates = 10
)

// --------------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------------

// AreaScanState is the mutable per-area record surviving across runs.
// WeekendDates always reflects the most recent successful scan; a failed
// scan must not overwrite it.
type AreaScanState struct {
	LastScannedAt      *time.Time `json:"lastScannedAt,omitempty"`
	WeekendDates       []string   `json:"weekendDates,omitempty"`
	BookingHorizonDays *int       `json:"bookingHorizonDays,omitempty"`
	ScanError          bool       `json:"scanError,omitempty"`
	NotifiedPending    bool       `json:"notifiedPending,omitempty"`
	LastNotifiedAt     *time.Time `json:"lastNotifiedAt,omitempty"`
}

// ScanState is the scan-state document: per-area records keyed by area ID
// plus the rotation cursor. The cursor is re-normalized against the current
// enabled-area count at the point of use, never at persistence time.
type ScanState struct {
	Cursor int                       `json:"currentIndex"`
	Areas  map[string]*AreaScanState `json:"areas"`
}

// Area returns the state record for an area, creating it on first access.
func (s *ScanState) Area(id string) *AreaScanState {
	if s.Areas == nil {
		s.Areas = make(map[string]*AreaScanState)
	}
	st, ok := s.Areas[id]
	if !ok {
		st = &AreaScanState{}
		s.Areas[id] = st
	}
	return st
}

// FavoritesConfig holds the user-curated area sets. Sets are serialized as
// sorted slices so the documents diff cleanly under version control.
type FavoritesConfig struct {
	Favorites            []string `json:"favorites"`
	Disabled             []string `json:"disabled"`
	AutoDisabled         []string `json:"autoDisabled"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
}

// IsFavorite reports whether the area is eligible for notifications and
// favorites-mode scanning.
func (f *FavoritesConfig) IsFavorite(id string) bool { return contains(f.Favorites, id) }

// IsEnabled reports whether the area participates in rotation and favorites
// scanning. Manual disable and auto-disable both exclude it.
func (f *FavoritesConfig) IsEnabled(id string) bool {
	return !contains(f.Disabled, id) && !contains(f.AutoDisabled, id)
}

// AutoDisable permanently excludes an area found to have zero campgrounds.
// Returns true if the area was newly added.
func (f *FavoritesConfig) AutoDisable(id string) bool {
	if contains(f.AutoDisabled, id) {
		return false
	}
	f.AutoDisabled = insertSorted(f.AutoDisabled, id)
	return true
}

// AddFavorite marks an area as a favorite. Returns true if newly added.
func (f *FavoritesConfig) AddFavorite(id string) bool {
	if contains(f.Favorites, id) {
		return false
	}
	f.Favorites = insertSorted(f.Favorites, id)
	return true
}

// RemoveFavorite unmarks a favorite. Returns true if it was present.
func (f *FavoritesConfig) RemoveFavorite(id string) bool {
	for i, v := range f.Favorites {
		if v == id {
			f.Favorites = append(f.Favorites[:i], f.Favorites[i+1:]...)
			return true
		}
	}
	return false
}

// Opening is one area's availability in the published snapshot.
type Opening struct {
	AreaID       string               `json:"recAreaId"`
	AreaName     string               `json:"recAreaName"`
	Provider     catalog.ProviderKind `json:"provider"`
	TotalSites   int                  `json:"totalSites"`
	WeekendDates []string             `json:"weekendDates"`
}

// Availability is the snapshot document consumed by the companion web page.
type Availability struct {
	LastScan *time.Time `json:"lastScan"`
	Openings []Opening  `json:"openings"`
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store reads and writes the JSON documents under a single data directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// LoadAreas reads the immutable area catalog.
func (s *Store) LoadAreas() ([]catalog.Area, error) {
	return catalog.Load(filepath.Join(s.dir, areasFile))
}

// LoadScanState reads the scan-state document. A missing file yields an
// empty state with cursor zero.
func (s *Store) LoadScanState() (*ScanState, error) {
	st := &ScanState{Areas: make(map[string]*AreaScanState)}
	if err := s.loadJSON(scanStateFile, st); err != nil {
		return nil, err
	}
	if st.Areas == nil {
		st.Areas = make(map[string]*AreaScanState)
	}
	return st, nil
}

// LoadFavorites reads the favorites document. A missing file yields empty
// sets with notifications disabled.
func (s *Store) LoadFavorites() (*FavoritesConfig, error) {
	f := &FavoritesConfig{}
	if err := s.loadJSON(favoritesFile, f); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadAvailability reads the published availability snapshot.
func (s *Store) LoadAvailability() (*Availability, error) {
	a := &Availability{Openings: []Opening{}}
	if err := s.loadJSON(availabilityFile, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveScanState persists the scan-state document atomically.
func (s *Store) SaveScanState(st *ScanState) error {
	return s.saveJSON(scanStateFile, st)
}

// SaveFavorites persists the favorites document atomically.
func (s *Store) SaveFavorites(f *FavoritesConfig) error {
	return s.saveJSON(favoritesFile, f)
}

// SaveAvailability persists the availability snapshot atomically.
func (s *Store) SaveAvailability(a *Availability) error {
	return s.saveJSON(availabilityFile, a)
}

func (s *Store) loadJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil // defaults stand
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// saveJSON writes the document to a temp file in the data directory and
// renames it into place. Rename is atomic on the same filesystem, so a
// crash leaves either the old document or the new one, never a torn write.
func (s *Store) saveJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func insertSorted(list []string, v string) []string {
	list = append(list, v)
	sort.Strings(list)
	return list
}
