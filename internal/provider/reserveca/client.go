// Package reserveca is the ReserveCalifornia (UseDirect) provider client.
// UseDirect exposes a whole-place grid search, so the scanner queries this
// provider per area rather than per campground.
package reserveca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/provider"
)

const (
	defaultBaseURL = "https://calirdr.usedirect.com/rdr/rdr"

	// Wire detail of this client only; provider kind comes from the catalog.
	idPrefix = "reserveca-"

	dateLayout = "2006-01-02"
)

// Client talks to the UseDirect RDR API backing ReserveCalifornia.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	limiter      *rate.Limiter
	queryTimeout time.Duration
	logger       *slog.Logger
}

// New creates a ReserveCalifornia client with rate limiting.
func New(requestsPerMinute int, queryTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient:   &http.Client{Timeout: queryTimeout},
		baseURL:      defaultBaseURL,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Kind implements provider.Provider.
func (c *Client) Kind() catalog.ProviderKind { return catalog.ReserveCalifornia }

// SearchesPerCampground implements provider.Provider. The grid search covers
// a whole place in one call.
func (c *Client) SearchesPerCampground() bool { return false }

// --------------------------------------------------------------------------
// Wire types
// --------------------------------------------------------------------------

type gridRequest struct {
	PlaceID   string `json:"PlaceId"`
	StartDate string `json:"StartDate"`
	EndDate   string `json:"EndDate"`
	Nights    int    `json:"Nights"`
}

type gridResponse struct {
	SelectedPlace struct {
		Facilities map[string]gridFacility `json:"Facilities"`
	} `json:"SelectedPlace"`
}

type gridFacility struct {
	Name      string `json:"Name"`
	Available bool   `json:"Available"`
	Units     map[string]struct {
		UnitID string `json:"UnitId"`
		Slices map[string]struct {
			Date   string `json:"Date"`
			IsFree bool   `json:"IsFree"`
		} `json:"Slices"`
	} `json:"Units"`
}

// --------------------------------------------------------------------------
// Provider implementation
// --------------------------------------------------------------------------

// ListCampgrounds implements provider.Provider. A one-night grid probe
// returns the place's facility map; an empty map means the place has nothing
// reservable.
func (c *Client) ListCampgrounds(ctx context.Context, areaID string) ([]provider.Campground, error) {
	today := time.Now().Format(dateLayout)
	resp, err := c.grid(ctx, areaID, today, today)
	if err != nil {
		return nil, fmt.Errorf("list campgrounds for %s: %w", areaID, err)
	}
	campgrounds := []provider.Campground{}
	for id, f := range resp.SelectedPlace.Facilities {
		campgrounds = append(campgrounds, provider.Campground{ID: id, Name: f.Name})
	}
	return campgrounds, nil
}

// Search implements provider.Provider. targetID is the area (place) ID.
func (c *Client) Search(ctx context.Context, targetID string, start, end time.Time) (provider.Result, error) {
	resp, err := c.grid(ctx, targetID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return provider.Result{}, fmt.Errorf("grid search for %s: %w", targetID, err)
	}

	var result provider.Result
	for _, f := range resp.SelectedPlace.Facilities {
		for _, unit := range f.Units {
			counted := false
			for _, slice := range unit.Slices {
				if !slice.IsFree {
					continue
				}
				date, err := time.Parse(dateLayout, slice.Date)
				if err != nil {
					continue
				}
				if date.Before(start) || date.After(end) {
					continue
				}
				if !counted {
					counted = true
					result.SiteCount++
				}
				result.Records = append(result.Records, provider.Record{
					CampsiteID: unit.UnitID,
					Date:       date,
				})
			}
		}
	}
	return result, nil
}

// grid performs a rate-limited POST to the grid search endpoint.
func (c *Client) grid(ctx context.Context, areaID, startDate, endDate string) (*gridResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	payload, err := json.Marshal(gridRequest{
		PlaceID:   strings.TrimPrefix(areaID, idPrefix),
		StartDate: startDate,
		EndDate:   endDate,
		Nights:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("encode grid request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/grid", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request grid: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("usedirect grid returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out gridResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode grid response: %w", err)
	}
	return &out, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
