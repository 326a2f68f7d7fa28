package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/notify"
	"github.com/ethanrabb/campwatch/internal/store"
)

// snapshotDates bounds the weekend dates published per opening in the
// availability snapshot.
const snapshotDates = 5

// Params are the externally supplied knobs for one run.
type Params struct {
	Mode        Mode
	ExplicitIDs []string
	BatchSize   int
	DateRange   *DateRange
	DryRun      bool
}

// Coordinator sequences one full run: selection → scan per area →
// notification reconciliation → atomic persistence. One area's failure
// never aborts the run; dry-run performs every computation but writes
// nothing and sends nothing.
type Coordinator struct {
	store      *store.Store
	scanner    *Scanner
	reconciler *notify.Reconciler
	logger     *slog.Logger

	// Now is the run clock. Overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st *store.Store, scanner *Scanner, reconciler *notify.Reconciler, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:      st,
		scanner:    scanner,
		reconciler: reconciler,
		logger:     logger,
		Now:        time.Now,
	}
}

// Run executes one scan invocation. The returned RunResult is non-nil
// whenever the run got past state loading; its Failed count feeds the
// process exit status. A persistence failure is returned as an error after
// the scans completed, so partial results are never silently lost without
// the operator noticing.
func (c *Coordinator) Run(ctx context.Context, p Params) (*RunResult, error) {
	start := time.Now()

	areas, err := c.store.LoadAreas()
	if err != nil {
		return nil, err
	}
	state, err := c.store.LoadScanState()
	if err != nil {
		return nil, err
	}
	fav, err := c.store.LoadFavorites()
	if err != nil {
		return nil, err
	}

	selected := SelectAreas(areas, fav, state.Cursor, p.Mode, p.ExplicitIDs, p.BatchSize)
	run := &RunResult{Selected: len(selected), Results: make(map[string]Result)}
	if len(selected) == 0 {
		c.logger.Info("no areas to scan", "mode", p.Mode)
		run.Duration = time.Since(start)
		return run, nil
	}
	c.logger.Info("scan run starting",
		"mode", p.Mode, "areas", len(selected), "dry_run", p.DryRun)

	// Weekend dates persisted before this run, captured per area before the
	// first update so the reconciler diffs against genuinely prior state.
	prior := make(map[string][]string)

	for _, area := range selected {
		if _, seen := prior[area.ID]; !seen {
			prior[area.ID] = append([]string(nil), state.Area(area.ID).WeekendDates...)
		}

		c.logger.Info("scanning area", "area", area.ID, "name", area.Name, "provider", area.Provider)
		result := c.scanner.ScanArea(ctx, area, p.DateRange)
		run.Results[area.ID] = result

		st := state.Area(area.ID)
		now := c.Now()
		st.LastScannedAt = &now

		if !result.Success {
			st.ScanError = true
			c.logger.Error("area scan failed", "area", area.ID, "error", result.Err)
			continue
		}
		st.ScanError = false
		st.WeekendDates = result.WeekendDates
		st.BookingHorizonDays = bookingHorizon(result.WeekendDates, now)

		if result.CampgroundCount == 0 {
			if fav.AutoDisable(area.ID) {
				run.AutoDisabled = append(run.AutoDisabled, area.ID)
				c.logger.Warn("no campgrounds found, auto-disabling area", "area", area.ID)
			}
			continue
		}
		c.logger.Info("area scan complete",
			"area", area.ID, "sites", result.TotalSites,
			"weekend_dates", len(result.WeekendDates),
			"duration", result.Duration.Round(time.Second))
	}

	run.Scanned = len(run.Results)
	for _, r := range run.Results {
		if !r.Success {
			run.Failed++
		}
	}

	outcome := c.reconciler.Reconcile(ctx, notify.Input{
		Areas:  catalog.ByID(areas),
		Scans:  c.areaScans(run, prior),
		Fav:    fav,
		State:  state,
		Now:    c.Now(),
		DryRun: p.DryRun,
	})
	run.NotifiedIDs = outcome.Notified
	run.DeferredIDs = outcome.Deferred

	// The cursor only advances on fully successful, non-dry-run rotation
	// runs, modulo the enabled count as it stands after auto-disables.
	if p.Mode == ModeRotation && !p.DryRun && run.Failed == 0 {
		if n := len(EnabledAreas(areas, fav)); n > 0 {
			batch := p.BatchSize
			if batch < 1 {
				batch = 1
			}
			state.Cursor = (state.Cursor + batch) % n
			c.logger.Info("rotation cursor advanced", "cursor", state.Cursor)
		}
	}

	run.Duration = time.Since(start)

	if p.DryRun {
		c.logger.Info("dry run, skipping persistence", "summary", run.Summary())
		return run, nil
	}

	if err := c.persist(state, fav, areas, run); err != nil {
		return run, err
	}
	c.logger.Info("scan run complete", "summary", run.Summary())
	return run, nil
}

// areaScans pairs each distinct scanned area with its prior weekend dates.
func (c *Coordinator) areaScans(run *RunResult, prior map[string][]string) []notify.AreaScan {
	scans := make([]notify.AreaScan, 0, len(run.Results))
	for id, r := range run.Results {
		scans = append(scans, notify.AreaScan{
			AreaID:     id,
			TotalSites: r.TotalSites,
			Success:    r.Success,
			Current:    r.WeekendDates,
			Prior:      prior[id],
		})
	}
	return scans
}

// persist writes scan state, favorites (auto-disable changes), and the
// availability snapshot together. Each save is individually atomic.
func (c *Coordinator) persist(state *store.ScanState, fav *store.FavoritesConfig, areas []catalog.Area, run *RunResult) error {
	if err := c.store.SaveScanState(state); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}
	if err := c.store.SaveFavorites(fav); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	if err := c.store.SaveAvailability(c.snapshot(areas, run)); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}

// snapshot builds the availability document for the companion web page.
func (c *Coordinator) snapshot(areas []catalog.Area, run *RunResult) *store.Availability {
	byID := catalog.ByID(areas)
	openings := []store.Opening{}
	for id, r := range run.Results {
		if !r.Success || r.TotalSites == 0 {
			continue
		}
		dates := r.WeekendDates
		if len(dates) > snapshotDates {
			dates = dates[:snapshotDates]
		}
		a := byID[id]
		openings = append(openings, store.Opening{
			AreaID:       id,
			AreaName:     a.Name,
			Provider:     a.Provider,
			TotalSites:   r.TotalSites,
			WeekendDates: dates,
		})
	}
	sort.Slice(openings, func(i, j int) bool { return openings[i].AreaID < openings[j].AreaID })
	now := c.Now()
	return &store.Availability{LastScan: &now, Openings: openings}
}

// bookingHorizon is the average lead time, in days, of the nearest three
// weekend dates. Nil when no dates parse.
func bookingHorizon(dates []string, now time.Time) *int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var daysOut []int
	for _, ds := range dates { // already sorted ascending
		if len(daysOut) == 3 {
			break
		}
		d, err := time.Parse(isoDate, ds)
		if err != nil {
			continue
		}
		daysOut = append(daysOut, int(d.Sub(today).Hours()/24))
	}
	if len(daysOut) == 0 {
		return nil
	}
	sum := 0
	for _, d := range daysOut {
		sum += d
	}
	avg := sum / len(daysOut)
	return &avg
}
