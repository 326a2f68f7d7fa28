package notify

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/store"
)

// Sender delivers a formatted notification message. Delivery is best-effort
// and at-most-once; failures are logged, never fatal.
type Sender interface {
	Send(ctx context.Context, message string) error
}

// Reconciler diffs fresh scans against persisted state and fires at most one
// batched notification per run.
type Reconciler struct {
	sender    Sender
	publicURL string
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler. publicURL, when set, is appended to
// every message as a link to the availability page.
func NewReconciler(sender Sender, publicURL string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{sender: sender, publicURL: publicURL, logger: logger}
}

// Input carries everything one reconciliation pass needs. State is mutated
// in place (notifiedPending, lastNotifiedAt); the caller owns persisting it.
type Input struct {
	Areas  map[string]catalog.Area
	Scans  []AreaScan
	Fav    *store.FavoritesConfig
	State  *store.ScanState
	Now    time.Time
	DryRun bool
}

// Reconcile applies the notification policy for one run:
//
//  1. Only favorited areas with a successful fresh scan are considered.
//  2. An area with no new dates (set difference against prior state) is
//     skipped — unchanged or shrinking availability never notifies.
//  3. An area notified less than the cooldown ago is skipped, even for a
//     disjoint new date set.
//  4. During quiet hours the qualifying areas are marked notifiedPending and
//     nothing is sent; lastNotifiedAt is untouched.
//  5. Otherwise one batched message covers the qualifying areas plus any
//     areas still pending from a quiet-hours cycle; after the send attempt
//     (success or not) every covered area gets notifiedPending=false and
//     lastNotifiedAt=now.
func (r *Reconciler) Reconcile(ctx context.Context, in Input) Outcome {
	if !in.Fav.NotificationsEnabled {
		r.logger.Debug("notifications disabled, skipping reconciliation")
		return Outcome{}
	}

	newDates := make(map[string][]string)
	sites := make(map[string]int)
	var eligible []string

	for _, scanned := range in.Scans {
		if !scanned.Success || !in.Fav.IsFavorite(scanned.AreaID) {
			continue
		}
		fresh := scanned.NewDates()
		if len(fresh) == 0 {
			continue
		}
		st := in.State.Area(scanned.AreaID)
		if st.LastNotifiedAt != nil && in.Now.Sub(*st.LastNotifiedAt) < Cooldown {
			r.logger.Debug("cooldown active, skipping",
				"area", scanned.AreaID, "last_notified", st.LastNotifiedAt)
			continue
		}
		eligible = append(eligible, scanned.AreaID)
		newDates[scanned.AreaID] = fresh
		sites[scanned.AreaID] = scanned.TotalSites
	}

	if InQuietHours(in.Now) {
		if len(eligible) == 0 {
			return Outcome{}
		}
		for _, id := range eligible {
			in.State.Area(id).NotifiedPending = true
		}
		r.logger.Info("quiet hours, deferring notification", "areas", len(eligible))
		return Outcome{Deferred: eligible}
	}

	// Fold in areas deferred by an earlier quiet-hours cycle.
	covered := make(map[string]bool, len(eligible))
	for _, id := range eligible {
		covered[id] = true
	}
	for id, st := range in.State.Areas {
		if st.NotifiedPending && in.Fav.IsFavorite(id) {
			covered[id] = true
		}
	}
	if len(covered) == 0 {
		return Outcome{}
	}

	ids := make([]string, 0, len(covered))
	for id := range covered {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	lines := make([]areaLine, 0, len(ids))
	for _, id := range ids {
		name := id
		if a, ok := in.Areas[id]; ok {
			name = a.Name
		}
		lines = append(lines, areaLine{
			Name:       name,
			TotalSites: sites[id],
			NewDates:   newDates[id],
		})
	}
	message := buildMessage(lines, r.publicURL)

	if in.DryRun {
		r.logger.Info("dry run, withholding notification", "areas", len(ids))
	} else if err := r.sender.Send(ctx, message); err != nil {
		// At-most-once: a failed send is logged and the state still
		// advances, so the same availability is never re-alerted.
		r.logger.Error("notification send failed", "error", err)
	} else {
		r.logger.Info("notification sent", "areas", len(ids))
	}

	for _, id := range ids {
		st := in.State.Area(id)
		st.NotifiedPending = false
		now := in.Now
		st.LastNotifiedAt = &now
	}
	return Outcome{Notified: ids, Message: message}
}
