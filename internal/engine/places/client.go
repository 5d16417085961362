package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/metrics"
	"github.com/rsavell/place_scout/internal/model"
)

const (
	defaultBaseURL = "https://places.googleapis.com"
	searchPath     = "/v1/places:searchText"

	fullFieldMask  = "places.displayName,places.formattedAddress,places.internationalPhoneNumber,places.websiteUri,nextPageToken"
	countFieldMask = "places.id,nextPageToken"

	// The API rejects page sizes above 20. Count mode always requests the
	// ceiling since each page is one billed round-trip either way.
	maxPageSize = 20

	defaultTimeout = 15 * time.Second
)

// Config holds the client settings loaded from configuration.
type Config struct {
	APIKey   string
	BaseURL  string        // override for tests; empty means the real API
	PageSize int           // full-search page size, capped at maxPageSize
	Timeout  time.Duration // per-request timeout
}

// Client wraps the text-search endpoint with cursor pagination and the two
// field projections (full place records vs id-only counting).
type Client struct {
	http     *http.Client
	apiKey   string
	baseURL  string
	pageSize int
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		http:     &http.Client{Timeout: timeout},
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		pageSize: pageSize,
		logger:   logger,
	}
}

type searchRequest struct {
	TextQuery           string               `json:"textQuery"`
	MaxResultCount      int                  `json:"maxResultCount"`
	LocationRestriction *locationRestriction `json:"locationRestriction,omitempty"`
	IncludedType        string               `json:"includedType,omitempty"`
	PageToken           string               `json:"pageToken,omitempty"`
}

type locationRestriction struct {
	Rectangle rectangle `json:"rectangle"`
}

type rectangle struct {
	Low  coordinates `json:"low"`
	High coordinates `json:"high"`
}

type coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchResponse struct {
	Places        []place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}

type place struct {
	ID               string      `json:"id"`
	DisplayName      displayName `json:"displayName"`
	FormattedAddress string      `json:"formattedAddress"`
	Phone            string      `json:"internationalPhoneNumber"`
	Website          string      `json:"websiteUri"`
}

type displayName struct {
	Text string `json:"text"`
}

func (p place) record() model.PlaceRecord {
	rec := model.PlaceRecord{
		Name:    p.DisplayName.Text,
		Address: p.FormattedAddress,
		Phone:   p.Phone,
		Website: p.Website,
	}
	if rec.Phone == "" {
		rec.Phone = model.NotAvailable
	}
	if rec.Website == "" {
		rec.Website = model.NotAvailable
	}
	return rec
}

func restrictionFor(box *model.BoundingBox) *locationRestriction {
	if box == nil {
		return nil
	}
	return &locationRestriction{Rectangle: rectangle{
		Low:  coordinates{Latitude: box.Southwest.Lat, Longitude: box.Southwest.Lng},
		High: coordinates{Latitude: box.Northeast.Lat, Longitude: box.Northeast.Lng},
	}}
}

// SearchFull accumulates full place records across every result page. A nil
// box means unrestricted search; a non-empty category narrows by place type.
// A failed page stops pagination and returns what was accumulated together
// with the error, so one bad page never voids a batch.
func (c *Client) SearchFull(ctx context.Context, text string, box *model.BoundingBox, category string) ([]model.PlaceRecord, error) {
	var records []model.PlaceRecord
	restriction := restrictionFor(box)
	token := ""

	for {
		req := searchRequest{
			TextQuery:           text,
			MaxResultCount:      c.pageSize,
			LocationRestriction: restriction,
			IncludedType:        category,
			PageToken:           token,
		}
		resp, err := c.search(ctx, req, fullFieldMask, "full")
		if err != nil {
			c.logger.Warn("search page failed",
				zap.String("query", text), zap.Error(err))
			return records, err
		}
		for _, p := range resp.Places {
			records = append(records, p.record())
		}
		if resp.NextPageToken == "" {
			return records, nil
		}
		token = resp.NextPageToken
	}
}

// SearchCount sums page sizes across all pages, requesting only place ids to
// keep response payloads minimal. Pagination is the only count signal the
// API offers; there is no total field to read. Same soft-failure contract as
// SearchFull: a failed page returns the partial sum plus the error.
func (c *Client) SearchCount(ctx context.Context, text string, box *model.BoundingBox) (int, error) {
	total := 0
	restriction := restrictionFor(box)
	token := ""

	for {
		req := searchRequest{
			TextQuery:           text,
			MaxResultCount:      maxPageSize,
			LocationRestriction: restriction,
			PageToken:           token,
		}
		resp, err := c.search(ctx, req, countFieldMask, "count")
		if err != nil {
			c.logger.Warn("count page failed",
				zap.String("query", text), zap.Error(err))
			return total, err
		}
		total += len(resp.Places)
		if resp.NextPageToken == "" {
			return total, nil
		}
		token = resp.NextPageToken
	}
}

func (c *Client) search(ctx context.Context, body searchRequest, fieldMask, projection string) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstream(projection, "error", time.Since(start))
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstream(projection, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &out, nil
}
