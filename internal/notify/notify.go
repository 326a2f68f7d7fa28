// Package notify decides which freshly scanned areas warrant a chat
// notification and delivers at most one batched message per run.
//
// Pipeline: diff current weekend dates against stored state → apply the
// cooldown → defer during quiet hours → batch → best-effort send. A missed
// alert is low-severity; the next scan cycle re-evaluates.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// Cooldown prevents repeated alerts for availability that keeps
	// reappearing inside the same booking window.
	Cooldown = 48 * time.Hour

	// Quiet hours: 00:00–08:00 Pacific. Qualifying changes are deferred
	// with notifiedPending, not dropped.
	quietEndHour = 8

	// At most this many new dates are listed per area; the rest collapse
	// into an overflow count.
	maxDatesPerArea = 5
)

// pacific is the reference timezone for quiet hours. Falls back to a fixed
// PST offset if the zone database is unavailable.
var pacific = loadPacific()

func loadPacific() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.FixedZone("PST", -8*60*60)
	}
	return loc
}

// InQuietHours reports whether t falls inside the 00:00–08:00 Pacific
// window during which notifications are computed but not sent.
func InQuietHours(t time.Time) bool {
	return t.In(pacific).Hour() < quietEndHour
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// AreaScan is one area's fresh scan paired with the weekend dates persisted
// before this run. Prior must be captured before the state store is
// updated, or the diff degenerates to the empty set.
type AreaScan struct {
	AreaID     string
	TotalSites int
	Success    bool
	Current    []string // this run's weekend dates (ISO)
	Prior      []string // stored weekend dates from the previous run
}

// NewDates returns Current − Prior, sorted ascending. Unchanged or
// shrinking availability yields an empty slice and never notifies.
func (a AreaScan) NewDates() []string {
	prior := make(map[string]bool, len(a.Prior))
	for _, d := range a.Prior {
		prior[d] = true
	}
	var out []string
	for _, d := range a.Current {
		if !prior[d] {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Outcome reports what the reconciler did this run.
type Outcome struct {
	Notified []string // area IDs covered by the sent message
	Deferred []string // area IDs marked pending during quiet hours
	Message  string   // the message sent (or withheld in dry-run)
}

// --------------------------------------------------------------------------
// Message building
// --------------------------------------------------------------------------

// areaLine is the per-area content of a batched message.
type areaLine struct {
	Name       string
	TotalSites int
	NewDates   []string
}

func buildMessage(lines []areaLine, publicURL string) string {
	var b strings.Builder
	b.WriteString("🏕️ **New Campsite Availability!**\n\n")
	for _, l := range lines {
		b.WriteString("**" + l.Name + "**")
		if l.TotalSites > 0 {
			fmt.Fprintf(&b, " (%d sites)", l.TotalSites)
		}
		b.WriteString("\n")
		if len(l.NewDates) > 0 {
			shown := l.NewDates
			overflow := 0
			if len(shown) > maxDatesPerArea {
				overflow = len(shown) - maxDatesPerArea
				shown = shown[:maxDatesPerArea]
			}
			b.WriteString("New dates: " + strings.Join(shown, ", "))
			if overflow > 0 {
				fmt.Fprintf(&b, " +%d more", overflow)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if publicURL != "" {
		b.WriteString("🔗 " + publicURL)
	}
	return b.String()
}
