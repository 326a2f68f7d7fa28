package scan

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/provider"
	"github.com/ethanrabb/campwatch/internal/store"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// The widening search covers six consecutive ~30-day windows starting
	// today, roughly a 6-month booking horizon.
	windowCount = 6
	windowDays  = 30
)

// weekendDays classifies "interesting" booking dates per provider.
// ReserveCalifornia releases Sunday nights separately, so only Fri/Sat count.
var weekendDays = map[catalog.ProviderKind]map[time.Weekday]bool{
	catalog.RecreationDotGov: {
		time.Friday: true, time.Saturday: true, time.Sunday: true,
	},
	catalog.ReserveCalifornia: {
		time.Friday: true, time.Saturday: true,
	},
}

// --------------------------------------------------------------------------
// Scanner
// --------------------------------------------------------------------------

// Scanner drives the external search provider for one area at a time across
// a widening sequence of date windows, stopping early on the first window
// with a weekend hit. Further months would add lower-value detail at extra
// cost to the upstream provider.
type Scanner struct {
	providers    provider.Registry
	queryTimeout time.Duration
	logger       *slog.Logger

	// Now is the clock used to anchor the widening windows. Overridable in
	// tests; defaults to time.Now.
	Now func() time.Time
}

// NewScanner creates a Scanner. queryTimeout bounds every individual
// provider call; exceeding it is that query's failure, not a process crash.
func NewScanner(providers provider.Registry, queryTimeout time.Duration, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		providers:    providers,
		queryTimeout: queryTimeout,
		logger:       logger,
		Now:          time.Now,
	}
}

// ScanArea produces a Result for one area. With an explicit override exactly
// one query window is used; otherwise six consecutive 30-day windows are
// queried in order, stopping after the first window that yields a weekend
// date. A single window's failure is logged and skipped; only if every
// window fails is the whole area scan reported as failed.
func (s *Scanner) ScanArea(ctx context.Context, area catalog.Area, override *DateRange) Result {
	start := time.Now()
	res := Result{AreaID: area.ID}

	p, err := s.providers.For(area.Provider)
	if err != nil {
		return s.failed(res, start, err.Error())
	}

	campgrounds, err := s.listCampgrounds(ctx, p, area.ID)
	if err != nil {
		s.logger.Warn("campground listing failed", "area", area.ID, "error", err)
		return s.failed(res, start, "list campgrounds: "+err.Error())
	}
	res.CampgroundCount = len(campgrounds)
	if len(campgrounds) == 0 {
		// Valid, meaningful result: nothing reservable here, ever. The
		// coordinator auto-disables the area.
		res.Success = true
		res.WeekendDates = []string{}
		res.Duration = time.Since(start)
		return res
	}

	windows := s.windows(override)
	weekendSet := make(map[string]bool)
	succeeded := 0

	for i, w := range windows {
		s.logger.Debug("scanning window",
			"area", area.ID, "window", i+1, "of", len(windows),
			"start", w.Start.Format(isoDate), "end", w.End.Format(isoDate))

		windowDates, sites, ok := s.scanWindow(ctx, p, area, campgrounds, w)
		if !ok {
			// A transient failure in one window must not cancel the rest.
			continue
		}
		succeeded++
		res.TotalSites += sites
		for d := range windowDates {
			weekendSet[d] = true
		}
		if len(windowDates) > 0 {
			s.logger.Info("weekend availability found",
				"area", area.ID, "window", i+1, "sites", sites, "weekend_dates", len(windowDates))
			break
		}
	}

	if succeeded == 0 {
		return s.failed(res, start, "all query windows failed")
	}

	res.WeekendDates = sortedDates(weekendSet, store.MaxWeekendDates)
	res.Success = true
	res.Duration = time.Since(start)
	return res
}

// scanWindow queries one date window. For per-campground providers each
// campground is queried independently and individual failures are skipped:
// partial success is still success. For whole-area providers a failed query
// is the area's failure for that window.
func (s *Scanner) scanWindow(ctx context.Context, p provider.Provider, area catalog.Area, campgrounds []provider.Campground, w DateRange) (map[string]bool, int, bool) {
	dates := make(map[string]bool)
	sites := 0

	if p.SearchesPerCampground() {
		anyOK := false
		for _, cg := range campgrounds {
			r, err := s.search(ctx, p, cg.ID, w)
			if err != nil {
				s.logger.Warn("campground query failed",
					"area", area.ID, "campground", cg.ID, "error", err)
				continue
			}
			anyOK = true
			sites += r.SiteCount
			collectWeekendDates(dates, r.Records, area.Provider)
		}
		return dates, sites, anyOK
	}

	r, err := s.search(ctx, p, area.ID, w)
	if err != nil {
		s.logger.Warn("window query failed", "area", area.ID, "error", err)
		return nil, 0, false
	}
	sites = r.SiteCount
	collectWeekendDates(dates, r.Records, area.Provider)
	return dates, sites, true
}

// windows computes the query windows: the caller's override verbatim, or six
// consecutive 30-day windows anchored at today.
func (s *Scanner) windows(override *DateRange) []DateRange {
	if override != nil {
		return []DateRange{*override}
	}
	base := s.Now()
	windows := make([]DateRange, 0, windowCount)
	for k := 0; k < windowCount; k++ {
		start := base.AddDate(0, 0, windowDays*k)
		windows = append(windows, DateRange{Start: start, End: start.AddDate(0, 0, windowDays)})
	}
	return windows
}

func (s *Scanner) search(ctx context.Context, p provider.Provider, targetID string, w DateRange) (provider.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return p.Search(ctx, targetID, w.Start, w.End)
}

func (s *Scanner) listCampgrounds(ctx context.Context, p provider.Provider, areaID string) ([]provider.Campground, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return p.ListCampgrounds(ctx, areaID)
}

func (s *Scanner) failed(res Result, start time.Time, msg string) Result {
	res.Success = false
	res.Err = msg
	res.Duration = time.Since(start)
	return res
}

// --------------------------------------------------------------------------
// Weekend classification
// --------------------------------------------------------------------------

const isoDate = "2006-01-02"

func collectWeekendDates(into map[string]bool, records []provider.Record, kind catalog.ProviderKind) {
	days := weekendDays[kind]
	if days == nil {
		days = weekendDays[catalog.RecreationDotGov]
	}
	for _, rec := range records {
		if days[rec.Date.Weekday()] {
			into[rec.Date.Format(isoDate)] = true
		}
	}
}

// sortedDates flattens a date set into an ascending slice capped at limit.
// ISO dates sort correctly as strings, so the nearest dates survive the cap.
func sortedDates(set map[string]bool, limit int) []string {
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
