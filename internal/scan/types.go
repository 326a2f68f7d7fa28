// Package scan is the scan-orchestration core: area selection (explicit,
// rotation, favorites), the widening-window availability scanner, and the
// run coordinator that ties selection, scanning, notification
// reconciliation, and persistence together.
package scan

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Run parameters
// --------------------------------------------------------------------------

// Mode selects how areas are chosen for a run.
type Mode string

const (
	// ModeExplicit scans exactly the requested area IDs, ignoring the
	// disabled sets. An explicit request always executes.
	ModeExplicit Mode = "explicit"
	// ModeRotation scans the next batch of enabled areas, round-robin,
	// resuming from the persisted cursor.
	ModeRotation Mode = "rotation"
	// ModeFavorites scans every enabled favorite.
	ModeFavorites Mode = "favorites"
)

// DateRange is an explicit scan window override. When set, the scanner
// issues exactly one query window instead of widening.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// Result is the ephemeral outcome of scanning one area in one run.
type Result struct {
	AreaID          string
	TotalSites      int
	WeekendDates    []string // ISO dates, deduplicated, ascending, bounded
	CampgroundCount int
	Success         bool
	Err             string
	Duration        time.Duration
}

// RunResult aggregates a whole run for logging and exit-status decisions.
type RunResult struct {
	Selected     int
	Scanned      int
	Failed       int
	AutoDisabled []string
	NotifiedIDs  []string
	DeferredIDs  []string
	Duration     time.Duration
	Results      map[string]Result
}

// Summary returns a human-readable summary.
func (r *RunResult) Summary() string {
	return fmt.Sprintf("selected=%d scanned=%d failed=%d auto_disabled=%d notified=%d deferred=%d dur=%s",
		r.Selected, r.Scanned, r.Failed, len(r.AutoDisabled),
		len(r.NotifiedIDs), len(r.DeferredIDs), r.Duration.Round(time.Second))
}
