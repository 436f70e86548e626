package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxProviderResponseBytes = 1 << 20

var ErrProviderUnavailable = errors.New("travel provider unavailable")

type HotelQuery struct {
	Location     string `json:"location"`
	CheckinDate  string `json:"checkin_date,omitempty"`
	CheckoutDate string `json:"checkout_date,omitempty"`
	Guests       int    `json:"guests,omitempty"`
	MaxPrice     int    `json:"max_price,omitempty"`
}

type Hotel struct {
	Name         string  `json:"name"`
	Area         string  `json:"area,omitempty"`
	NightlyPrice float64 `json:"nightly_price"`
	Currency     string  `json:"currency,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
}

type FlightQuery struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date,omitempty"`
	Passengers    int    `json:"passengers,omitempty"`
}

type Flight struct {
	Carrier   string  `json:"carrier"`
	Number    string  `json:"number"`
	Departure string  `json:"departure"`
	Arrival   string  `json:"arrival"`
	Stops     int     `json:"stops"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency,omitempty"`
}

type TourQuery struct {
	Destination string `json:"destination"`
	Date        string `json:"date,omitempty"`
	Keywords    string `json:"keywords,omitempty"`
}

type Tour struct {
	Title    string  `json:"title"`
	Duration string  `json:"duration,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
}

// Provider is the third-party inventory the specialists search.
type Provider interface {
	SearchHotels(ctx context.Context, q HotelQuery) ([]Hotel, error)
	SearchFlights(ctx context.Context, q FlightQuery) ([]Flight, error)
	SearchTours(ctx context.Context, q TourQuery) ([]Tour, error)
}

type ProviderConfig struct {
	URL        string        `split_words:"true" required:"true"`
	APIKey     string        `split_words:"true"`
	Timeout    time.Duration `split_words:"true" default:"15s"`
	MaxResults int           `split_words:"true" default:"5"`
}

// HTTPProvider talks to a JSON search API exposing /hotels, /flights and
// /tours, each answering {"results": [...]}.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

func NewHTTPProvider(cfg ProviderConfig) (*HTTPProvider, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("provider url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *HTTPProvider) SearchHotels(ctx context.Context, q HotelQuery) ([]Hotel, error) {
	params := url.Values{}
	params.Set("location", q.Location)
	setIfPresent(params, "checkin", q.CheckinDate)
	setIfPresent(params, "checkout", q.CheckoutDate)
	setIntIfPositive(params, "guests", q.Guests)
	setIntIfPositive(params, "max_price", q.MaxPrice)

	var out []Hotel
	if err := p.get(ctx, "/hotels", params, &out); err != nil {
		return nil, err
	}
	return truncate(out, p.maxResults), nil
}

func (p *HTTPProvider) SearchFlights(ctx context.Context, q FlightQuery) ([]Flight, error) {
	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	setIfPresent(params, "date", q.DepartureDate)
	setIntIfPositive(params, "passengers", q.Passengers)

	var out []Flight
	if err := p.get(ctx, "/flights", params, &out); err != nil {
		return nil, err
	}
	return truncate(out, p.maxResults), nil
}

func (p *HTTPProvider) SearchTours(ctx context.Context, q TourQuery) ([]Tour, error) {
	params := url.Values{}
	params.Set("destination", q.Destination)
	setIfPresent(params, "date", q.Date)
	setIfPresent(params, "q", q.Keywords)

	var out []Tour
	if err := p.get(ctx, "/tours", params, &out); err != nil {
		return nil, err
	}
	return truncate(out, p.maxResults), nil
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := p.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status=%d body=%s", ErrProviderUnavailable, resp.StatusCode, string(raw))
	}

	envelope := struct {
		Results json.RawMessage `json:"results"`
	}{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	if len(envelope.Results) == 0 || string(envelope.Results) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Results, out); err != nil {
		return fmt.Errorf("decode provider results: %w", err)
	}
	return nil
}

func setIfPresent(params url.Values, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		params.Set(key, v)
	}
}

func setIntIfPositive(params url.Values, key string, value int) {
	if value > 0 {
		params.Set(key, strconv.Itoa(value))
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
