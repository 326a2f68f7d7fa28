package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/store"
)

// handler holds shared dependencies for all endpoint handlers.
type handler struct {
	store *store.Store
}

func newHandler(st *store.Store) *handler {
	return &handler{store: st}
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "Campwatch API",
		"version": "1.0.0",
		"status":  "running",
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// availability returns the snapshot produced by the most recent scan run.
func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	avail, err := h.store.LoadAvailability()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "availability_load_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// areaView joins a catalog entry with its scan state and favorites flags.
type areaView struct {
	catalog.Area
	LastScannedAt      *time.Time `json:"lastScannedAt,omitempty"`
	WeekendDates       []string   `json:"weekendDates,omitempty"`
	BookingHorizonDays *int       `json:"bookingHorizonDays,omitempty"`
	ScanError          bool       `json:"scanError,omitempty"`
	Favorite           bool       `json:"favorite"`
	Enabled            bool       `json:"enabled"`
}

// areas returns the catalog joined with per-area scan state. Catalog and
// state stay separately owned documents; the join happens here, per request.
func (h *handler) areas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.store.LoadAreas()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog_load_failed", err.Error())
		return
	}
	state, err := h.store.LoadScanState()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state_load_failed", err.Error())
		return
	}
	fav, err := h.store.LoadFavorites()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "favorites_load_failed", err.Error())
		return
	}

	views := make([]areaView, 0, len(areas))
	for _, a := range areas {
		v := areaView{
			Area:     a,
			Favorite: fav.IsFavorite(a.ID),
			Enabled:  fav.IsEnabled(a.ID),
		}
		if st, ok := state.Areas[a.ID]; ok {
			v.LastScannedAt = st.LastScannedAt
			v.WeekendDates = st.WeekendDates
			v.BookingHorizonDays = st.BookingHorizonDays
			v.ScanError = st.ScanError
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

// --------------------------------------------------------------------------
// Response helpers
// --------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
