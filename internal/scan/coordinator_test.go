package scan

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/notify"
	"github.com/ethanrabb/campwatch/internal/provider"
	"github.com/ethanrabb/campwatch/internal/store"
)

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

type recordingSender struct {
	messages []string
}

func (s *recordingSender) Send(ctx context.Context, message string) error {
	s.messages = append(s.messages, message)
	return nil
}

// runTime is 12:00 Pacific (19:00 UTC), safely outside quiet hours.
var runTime = time.Date(2025, 6, 5, 19, 0, 0, 0, time.UTC)

func seedCatalog(t *testing.T, dir string, areas []catalog.Area) {
	t.Helper()
	data, err := json.Marshal(areas)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rec-areas.json"), data, 0o644))
}

func newTestCoordinator(dir string, stub *stubProvider, sender notify.Sender) *Coordinator {
	reg := provider.Registry{}
	reg.Register(stub)

	scanner := NewScanner(reg, time.Second, testLogger())
	scanner.Now = func() time.Time { return runTime }

	reconciler := notify.NewReconciler(sender, "", testLogger())
	c := NewCoordinator(store.New(dir), scanner, reconciler, testLogger())
	c.Now = func() time.Time { return runTime }
	return c
}

func okSearch(int, string, time.Time, time.Time) (provider.Result, error) {
	return provider.Result{SiteCount: 1}, nil
}

func resultIDs(run *RunResult) []string {
	out := make([]string, 0, len(run.Results))
	for id := range run.Results {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestRunDryRunWritesNothingAndKeepsCursor(t *testing.T) {
	dir := t.TempDir()
	seedCatalog(t, dir, []catalog.Area{
		{ID: "recgov-a", Provider: catalog.RecreationDotGov},
		{ID: "recgov-b", Provider: catalog.RecreationDotGov},
	})
	stub := wholeAreaStub()
	stub.searchFn = okSearch
	c := newTestCoordinator(dir, stub, &recordingSender{})

	params := Params{Mode: ModeRotation, BatchSize: 1, DryRun: true}
	first, err := c.Run(context.Background(), params)
	require.NoError(t, err)
	second, err := c.Run(context.Background(), params)
	require.NoError(t, err)

	// Same batch both times: the cursor never moved.
	assert.Equal(t, resultIDs(first), resultIDs(second))
	_, statErr := os.Stat(filepath.Join(dir, "scan-state.json"))
	assert.True(t, os.IsNotExist(statErr), "dry run persists nothing")
	_, statErr = os.Stat(filepath.Join(dir, "availability.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunRotationAdvancesCursorModuloEnabled(t *testing.T) {
	dir := t.TempDir()
	seedCatalog(t, dir, []catalog.Area{
		{ID: "recgov-a", Provider: catalog.RecreationDotGov},
		{ID: "recgov-b", Provider: catalog.RecreationDotGov},
		{ID: "recgov-c", Provider: catalog.RecreationDotGov},
	})
	stub := wholeAreaStub()
	stub.searchFn = okSearch
	c := newTestCoordinator(dir, stub, &recordingSender{})

	params := Params{Mode: ModeRotation, BatchSize: 2}
	_, err := c.Run(context.Background(), params)
	require.NoError(t, err)

	state, err := store.New(dir).LoadScanState()
	require.NoError(t, err)
	assert.Equal(t, 2, state.Cursor)

	_, err = c.Run(context.Background(), params)
	require.NoError(t, err)
	state, err = store.New(dir).LoadScanState()
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor, "(2+2) mod 3 enabled areas")
}

func TestRunAutoDisablesZeroCampgroundArea(t *testing.T) {
	dir := t.TempDir()
	seedCatalog(t, dir, []catalog.Area{
		{ID: "recgov-empty", Provider: catalog.RecreationDotGov},
	})
	stub := &stubProvider{
		kind:        catalog.RecreationDotGov,
		campgrounds: []provider.Campground{},
	}
	c := newTestCoordinator(dir, stub, &recordingSender{})

	run, err := c.Run(context.Background(), Params{Mode: ModeRotation, BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"recgov-empty"}, run.AutoDisabled)
	assert.Zero(t, run.Failed, "zero campgrounds is not an error")

	fav, err := store.New(dir).LoadFavorites()
	require.NoError(t, err)
	assert.Contains(t, fav.AutoDisabled, "recgov-empty")

	// The area no longer participates in rotation.
	next, err := c.Run(context.Background(), Params{Mode: ModeRotation, BatchSize: 1})
	require.NoError(t, err)
	assert.Zero(t, next.Selected)
}

func TestRunContainsAreaFailure(t *testing.T) {
	dir := t.TempDir()
	seedCatalog(t, dir, []catalog.Area{
		{ID: "recgov-bad", Provider: catalog.RecreationDotGov},
		{ID: "recgov-good", Provider: catalog.RecreationDotGov},
	})
	st := store.New(dir)
	preset := &store.ScanState{Areas: map[string]*store.AreaScanState{
		"recgov-bad": {WeekendDates: []string{"2025-05-03"}},
	}}
	require.NoError(t, st.SaveScanState(preset))

	stub := wholeAreaStub()
	stub.searchFn = func(_ int, targetID string, _, _ time.Time) (provider.Result, error) {
		if targetID == "recgov-bad" {
			return provider.Result{}, errors.New("provider down")
		}
		return provider.Result{SiteCount: 2}, nil
	}
	c := newTestCoordinator(dir, stub, &recordingSender{})

	run, err := c.Run(context.Background(), Params{Mode: ModeRotation, BatchSize: 2})
	require.NoError(t, err, "one area's failure never aborts the run")
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.Scanned)

	state, err := st.LoadScanState()
	require.NoError(t, err)

	bad := state.Area("recgov-bad")
	assert.True(t, bad.ScanError)
	require.NotNil(t, bad.LastScannedAt)
	assert.Equal(t, []string{"2025-05-03"}, bad.WeekendDates,
		"a failed scan must not overwrite the last successful observation")

	good := state.Area("recgov-good")
	assert.False(t, good.ScanError)

	assert.Zero(t, state.Cursor, "cursor never advances on a failed run")
}

func TestRunEndToEndNotifiesNewWeekendDate(t *testing.T) {
	dir := t.TempDir()
	seedCatalog(t, dir, []catalog.Area{
		{ID: "recgov-111", Name: "Yosemite", Provider: catalog.RecreationDotGov},
	})
	st := store.New(dir)
	require.NoError(t, st.SaveScanState(&store.ScanState{Areas: map[string]*store.AreaScanState{
		"recgov-111": {WeekendDates: []string{"2025-06-07"}},
	}}))
	require.NoError(t, st.SaveFavorites(&store.FavoritesConfig{
		Favorites:            []string{"recgov-111"},
		NotificationsEnabled: true,
	}))

	stub := wholeAreaStub()
	stub.searchFn = func(int, string, time.Time, time.Time) (provider.Result, error) {
		return provider.Result{
			SiteCount: 3,
			Records: []provider.Record{
				{CampsiteID: "s1", Date: saturday},
				{CampsiteID: "s2", Date: saturday.AddDate(0, 0, 7)}, // 2025-06-14
			},
		}, nil
	}
	sender := &recordingSender{}
	c := newTestCoordinator(dir, stub, sender)

	run, err := c.Run(context.Background(), Params{Mode: ModeFavorites})
	require.NoError(t, err)
	assert.Equal(t, []string{"recgov-111"}, run.NotifiedIDs)

	require.Len(t, sender.messages, 1, "exactly one notification")
	assert.Contains(t, sender.messages[0], "2025-06-14")
	assert.NotContains(t, sender.messages[0], "2025-06-07")

	state, err := st.LoadScanState()
	require.NoError(t, err)
	area := state.Area("recgov-111")
	require.NotNil(t, area.LastNotifiedAt)
	assert.True(t, area.LastNotifiedAt.Equal(runTime))
	assert.Equal(t, []string{"2025-06-07", "2025-06-14"}, area.WeekendDates)
	require.NotNil(t, area.BookingHorizonDays)

	avail, err := st.LoadAvailability()
	require.NoError(t, err)
	require.Len(t, avail.Openings, 1)
	assert.Equal(t, "recgov-111", avail.Openings[0].AreaID)
	assert.Equal(t, 3, avail.Openings[0].TotalSites)
}
