// Package provider defines the interface the scanner uses to query upstream
// campsite-reservation systems, and a registry keyed by provider kind.
// Concrete clients live in subpackages (recgov, reserveca).
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ethanrabb/campwatch/internal/catalog"
)

// Record is a single raw availability observation: one campsite open on one
// booking date. Weekend classification is the scanner's job, not the
// provider's.
type Record struct {
	CampsiteID string
	Date       time.Time
}

// Result is the outcome of one availability query.
type Result struct {
	SiteCount int
	Records   []Record
}

// Campground identifies one reservable campground within an area.
type Campground struct {
	ID   string
	Name string
}

// Provider is one upstream reservation system.
type Provider interface {
	// Kind identifies the reservation system this client talks to.
	Kind() catalog.ProviderKind

	// ListCampgrounds returns the campgrounds within a recreation area. An
	// empty list is a valid, meaningful result: the area has nothing
	// reservable and should be auto-disabled.
	ListCampgrounds(ctx context.Context, areaID string) ([]Campground, error)

	// Search returns raw availability for the target over [start, end].
	// The target is a campground ID when SearchesPerCampground is true,
	// otherwise the area ID.
	Search(ctx context.Context, targetID string, start, end time.Time) (Result, error)

	// SearchesPerCampground reports whether Search must be driven per
	// campground rather than per area.
	SearchesPerCampground() bool
}

// Registry maps provider kinds to their clients.
type Registry map[catalog.ProviderKind]Provider

// Register adds a provider to the registry.
func (r Registry) Register(p Provider) {
	r[p.Kind()] = p
}

// For returns the provider for a kind.
func (r Registry) For(kind catalog.ProviderKind) (Provider, error) {
	p, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("no provider registered for kind %q", kind)
	}
	return p, nil
}
