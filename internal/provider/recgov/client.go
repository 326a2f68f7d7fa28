// Package recgov is the Recreation.gov provider client. Campground listing
// goes through the RIDB facilities API; availability goes through the
// month-granular campground availability endpoint. Availability is only
// exposed per campground, so the scanner drives this provider campground by
// campground.
//
// Rate limiting is handled via a token bucket limiter; every request carries
// a per-call deadline derived from the client timeout.
package recgov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ethanrabb/campwatch/internal/catalog"
	"github.com/ethanrabb/campwatch/internal/provider"
)

const (
	defaultRIDBBase  = "https://ridb.recreation.gov/api/v1"
	defaultAvailBase = "https://www.recreation.gov/api"

	// Catalog IDs are provider-qualified; the upstream API wants the bare
	// numeric ID. This prefix is a wire detail of this client only — the
	// provider kind is never inferred from it.
	idPrefix = "recgov-"

	listPageSize = 50
)

// Client talks to Recreation.gov.
type Client struct {
	httpClient   *http.Client
	ridbBase     string
	availBase    string
	apiKey       string
	limiter      *rate.Limiter
	queryTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Recreation.gov client with rate limiting. queryTimeout
// bounds every individual request.
func New(apiKey string, requestsPerMinute int, queryTimeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		httpClient:   &http.Client{Timeout: queryTimeout},
		ridbBase:     defaultRIDBBase,
		availBase:    defaultAvailBase,
		apiKey:       apiKey,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

// Kind implements provider.Provider.
func (c *Client) Kind() catalog.ProviderKind { return catalog.RecreationDotGov }

// SearchesPerCampground implements provider.Provider. Recreation.gov only
// exposes availability per campground.
func (c *Client) SearchesPerCampground() bool { return true }

// --------------------------------------------------------------------------
// Campground listing (RIDB facilities API)
// --------------------------------------------------------------------------

type facilitiesResponse struct {
	RecData []struct {
		FacilityID   string `json:"FacilityID"`
		FacilityName string `json:"FacilityName"`
		FacilityType string `json:"FacilityTypeDescription"`
		Reservable   bool   `json:"Reservable"`
	} `json:"RECDATA"`
	Metadata struct {
		Results struct {
			TotalCount int `json:"TOTAL_COUNT"`
		} `json:"RESULTS"`
	} `json:"METADATA"`
}

// ListCampgrounds implements provider.Provider. Pages through the RIDB
// facilities endpoint and keeps reservable campgrounds only.
func (c *Client) ListCampgrounds(ctx context.Context, areaID string) ([]provider.Campground, error) {
	recAreaID := strings.TrimPrefix(areaID, idPrefix)
	campgrounds := []provider.Campground{}

	for offset := 0; ; offset += listPageSize {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", listPageSize))
		params.Set("offset", fmt.Sprintf("%d", offset))

		var page facilitiesResponse
		path := fmt.Sprintf("%s/recareas/%s/facilities", c.ridbBase, recAreaID)
		if err := c.get(ctx, path, params, &page); err != nil {
			return nil, fmt.Errorf("list facilities for %s: %w", areaID, err)
		}

		for _, f := range page.RecData {
			if f.FacilityType != "Campground" || !f.Reservable {
				continue
			}
			campgrounds = append(campgrounds, provider.Campground{
				ID:   f.FacilityID,
				Name: f.FacilityName,
			})
		}

		if offset+listPageSize >= page.Metadata.Results.TotalCount {
			break
		}
	}
	return campgrounds, nil
}

// --------------------------------------------------------------------------
// Availability (month-granular campground endpoint)
// --------------------------------------------------------------------------

type monthAvailability struct {
	Campsites map[string]struct {
		Availabilities map[string]string `json:"availabilities"`
	} `json:"campsites"`
}

// Search implements provider.Provider. The upstream endpoint returns one
// calendar month per call, so the requested window is covered by querying
// each month it touches and filtering dates back down to [start, end].
func (c *Client) Search(ctx context.Context, campgroundID string, start, end time.Time) (provider.Result, error) {
	var result provider.Result
	seen := map[string]bool{}

	for month := firstOfMonth(start); !month.After(end); month = month.AddDate(0, 1, 0) {
		params := url.Values{}
		params.Set("start_date", month.UTC().Format("2006-01-02T15:04:05.000Z"))

		var avail monthAvailability
		path := fmt.Sprintf("%s/camps/availability/campground/%s/month", c.availBase, campgroundID)
		if err := c.get(ctx, path, params, &avail); err != nil {
			return provider.Result{}, fmt.Errorf("availability for campground %s: %w", campgroundID, err)
		}

		for siteID, site := range avail.Campsites {
			siteCounted := false
			for dateStr, status := range site.Availabilities {
				if status != "Available" {
					continue
				}
				date, err := time.Parse("2006-01-02T15:04:05Z", dateStr)
				if err != nil {
					continue
				}
				if date.Before(start) || date.After(end) {
					continue
				}
				if !siteCounted && !seen[siteID] {
					seen[siteID] = true
					siteCounted = true
					result.SiteCount++
				}
				result.Records = append(result.Records, provider.Record{
					CampsiteID: siteID,
					Date:       date,
				})
			}
		}
	}
	return result, nil
}

// --------------------------------------------------------------------------
// HTTP plumbing
// --------------------------------------------------------------------------

// get performs a rate-limited GET with a per-call deadline and decodes the
// JSON response into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	u := path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recreation.gov %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
