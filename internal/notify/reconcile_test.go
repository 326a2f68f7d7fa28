package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/store"
)

// --------------------------------------------------------------------------
// Fixtures
// --------------------------------------------------------------------------

type stubSender struct {
	messages []string
	err      error
}

func (s *stubSender) Send(ctx context.Context, message string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	// Mid-day and middle-of-the-night Pacific reference times.
	noonPacific  = time.Date(2025, 6, 5, 12, 0, 0, 0, pacific)
	nightPacific = time.Date(2025, 6, 5, 2, 0, 0, 0, pacific)

	testAreas = map[string]catalog.Area{
		"recgov-111": {ID: "recgov-111", Name: "Yosemite", Provider: catalog.RecreationDotGov},
		"recgov-222": {ID: "recgov-222", Name: "Sequoia", Provider: catalog.RecreationDotGov},
	}
)

func enabledFavorites(ids ...string) *store.FavoritesConfig {
	return &store.FavoritesConfig{Favorites: ids, NotificationsEnabled: true}
}

func freshState() *store.ScanState {
	return &store.ScanState{Areas: make(map[string]*store.AreaScanState)}
}

func input(scans []AreaScan, fav *store.FavoritesConfig, state *store.ScanState, now time.Time) Input {
	return Input{Areas: testAreas, Scans: scans, Fav: fav, State: state, Now: now}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestReconcileNotifiesNewDatesOnly(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "https://example.com/camping", testLogger())
	state := freshState()

	scans := []AreaScan{{
		AreaID:     "recgov-111",
		TotalSites: 12,
		Success:    true,
		Current:    []string{"2025-06-07", "2025-06-14"},
		Prior:      []string{"2025-06-07"},
	}}
	out := r.Reconcile(context.Background(), input(scans, enabledFavorites("recgov-111"), state, noonPacific))

	require.Len(t, sender.messages, 1, "exactly one notification")
	assert.Equal(t, []string{"recgov-111"}, out.Notified)
	assert.Contains(t, sender.messages[0], "Yosemite")
	assert.Contains(t, sender.messages[0], "2025-06-14")
	assert.NotContains(t, sender.messages[0], "2025-06-07", "only the new date is referenced")
	assert.Contains(t, sender.messages[0], "https://example.com/camping")

	st := state.Area("recgov-111")
	require.NotNil(t, st.LastNotifiedAt)
	assert.True(t, st.LastNotifiedAt.Equal(noonPacific))
	assert.False(t, st.NotifiedPending)
}

func TestReconcileUnchangedAvailabilityNeverRenotifies(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())
	state := freshState()
	fav := enabledFavorites("recgov-111")

	scans := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-06-07"},
		Prior:   nil,
	}}
	r.Reconcile(context.Background(), input(scans, fav, state, noonPacific))
	require.Len(t, sender.messages, 1)

	// Second run observes the identical set: no new dates, no notification.
	repeat := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-06-07"},
		Prior:   []string{"2025-06-07"},
	}}
	out := r.Reconcile(context.Background(), input(repeat, fav, state, noonPacific.Add(72*time.Hour)))
	assert.Len(t, sender.messages, 1, "no second notification for the same availability")
	assert.Empty(t, out.Notified)
}

func TestReconcileShrinkingAvailabilitySkipped(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())

	scans := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-06-07"},
		Prior:   []string{"2025-06-07", "2025-06-14"},
	}}
	out := r.Reconcile(context.Background(), input(scans, enabledFavorites("recgov-111"), freshState(), noonPacific))

	assert.Empty(t, sender.messages)
	assert.Empty(t, out.Notified)
}

func TestReconcileRespectsCooldown(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())
	state := freshState()
	fav := enabledFavorites("recgov-111")

	lastNotified := noonPacific.Add(-1 * time.Hour)
	state.Area("recgov-111").LastNotifiedAt = &lastNotified

	// A completely disjoint new date set inside the cooldown stays quiet.
	scans := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-07-04"},
		Prior:   []string{"2025-06-07"},
	}}
	out := r.Reconcile(context.Background(), input(scans, fav, state, noonPacific))
	assert.Empty(t, sender.messages, "notified one hour ago, cooldown active")
	assert.Empty(t, out.Notified)

	// At T+49h the same change is eligible again.
	out = r.Reconcile(context.Background(), input(scans, fav, state, lastNotified.Add(49*time.Hour)))
	assert.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"recgov-111"}, out.Notified)
}

func TestReconcileQuietHoursDefersThenSends(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())
	state := freshState()
	fav := enabledFavorites("recgov-111")

	scans := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-06-14"},
		Prior:   nil,
	}}
	out := r.Reconcile(context.Background(), input(scans, fav, state, nightPacific))

	assert.Empty(t, sender.messages, "nothing sent at 02:00 Pacific")
	assert.Equal(t, []string{"recgov-111"}, out.Deferred)
	assert.True(t, state.Area("recgov-111").NotifiedPending)
	assert.Nil(t, state.Area("recgov-111").LastNotifiedAt)

	// Morning run with no further change still delivers the deferred alert.
	morning := time.Date(2025, 6, 5, 9, 0, 0, 0, pacific)
	unchanged := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{"2025-06-14"},
		Prior:   []string{"2025-06-14"},
	}}
	out = r.Reconcile(context.Background(), input(unchanged, fav, state, morning))

	require.Len(t, sender.messages, 1)
	assert.Equal(t, []string{"recgov-111"}, out.Notified)
	assert.Contains(t, sender.messages[0], "Yosemite")
	assert.False(t, state.Area("recgov-111").NotifiedPending)
	require.NotNil(t, state.Area("recgov-111").LastNotifiedAt)
}

func TestReconcileSkipsNonFavoritesAndFailedScans(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())

	scans := []AreaScan{
		{AreaID: "recgov-111", Success: true, Current: []string{"2025-06-14"}},  // not a favorite
		{AreaID: "recgov-222", Success: false, Current: []string{"2025-06-14"}}, // failed scan
	}
	out := r.Reconcile(context.Background(), input(scans, enabledFavorites("recgov-222"), freshState(), noonPacific))

	assert.Empty(t, sender.messages)
	assert.Empty(t, out.Notified)
}

func TestReconcileNotificationsDisabled(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())
	fav := &store.FavoritesConfig{Favorites: []string{"recgov-111"}}

	scans := []AreaScan{{AreaID: "recgov-111", Success: true, Current: []string{"2025-06-14"}}}
	out := r.Reconcile(context.Background(), input(scans, fav, freshState(), noonPacific))

	assert.Empty(t, sender.messages)
	assert.Empty(t, out.Notified)
	assert.Empty(t, out.Deferred)
}

func TestReconcileBatchesMultipleAreas(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())

	scans := []AreaScan{
		{AreaID: "recgov-111", TotalSites: 3, Success: true, Current: []string{"2025-06-14"}},
		{AreaID: "recgov-222", TotalSites: 5, Success: true, Current: []string{"2025-06-21"}},
	}
	out := r.Reconcile(context.Background(),
		input(scans, enabledFavorites("recgov-111", "recgov-222"), freshState(), noonPacific))

	require.Len(t, sender.messages, 1, "one batched message, not one per area")
	assert.ElementsMatch(t, []string{"recgov-111", "recgov-222"}, out.Notified)
	assert.Contains(t, sender.messages[0], "Yosemite")
	assert.Contains(t, sender.messages[0], "Sequoia")
}

func TestReconcileDateOverflowCollapses(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())

	scans := []AreaScan{{
		AreaID:  "recgov-111",
		Success: true,
		Current: []string{
			"2025-06-06", "2025-06-07", "2025-06-13", "2025-06-14",
			"2025-06-20", "2025-06-21", "2025-06-27",
		},
	}}
	r.Reconcile(context.Background(), input(scans, enabledFavorites("recgov-111"), freshState(), noonPacific))

	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "+2 more")
	assert.NotContains(t, sender.messages[0], "2025-06-21", "only the first five dates are listed")
}

func TestReconcileSendFailureStillAdvancesState(t *testing.T) {
	sender := &stubSender{err: errors.New("webhook 500")}
	r := NewReconciler(sender, "", testLogger())
	state := freshState()

	scans := []AreaScan{{AreaID: "recgov-111", Success: true, Current: []string{"2025-06-14"}}}
	out := r.Reconcile(context.Background(), input(scans, enabledFavorites("recgov-111"), state, noonPacific))

	// At-most-once delivery: the failure is swallowed and state advances so
	// the same availability is never re-alerted.
	assert.Equal(t, []string{"recgov-111"}, out.Notified)
	require.NotNil(t, state.Area("recgov-111").LastNotifiedAt)
}

func TestReconcileDryRunWithholdsSend(t *testing.T) {
	sender := &stubSender{}
	r := NewReconciler(sender, "", testLogger())

	in := input(
		[]AreaScan{{AreaID: "recgov-111", Success: true, Current: []string{"2025-06-14"}}},
		enabledFavorites("recgov-111"), freshState(), noonPacific)
	in.DryRun = true
	out := r.Reconcile(context.Background(), in)

	assert.Empty(t, sender.messages, "dry run never reaches the transport")
	assert.Equal(t, []string{"recgov-111"}, out.Notified)
	assert.Contains(t, out.Message, "2025-06-14")
}

func TestInQuietHours(t *testing.T) {
	assert.True(t, InQuietHours(time.Date(2025, 6, 5, 0, 0, 0, 0, pacific)))
	assert.True(t, InQuietHours(time.Date(2025, 6, 5, 7, 59, 0, 0, pacific)))
	assert.False(t, InQuietHours(time.Date(2025, 6, 5, 8, 0, 0, 0, pacific)))
	assert.False(t, InQuietHours(time.Date(2025, 6, 5, 23, 0, 0, 0, pacific)))
}
