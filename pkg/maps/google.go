package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com/maps/api"

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// GoogleConfig configures the Google Maps web service client.
type GoogleConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GoogleClient talks to the Geocoding, Distance Matrix and Directions web services.
type GoogleClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewGoogleClient constructs a client. A nil httpClient gets one with the configured timeout.
func NewGoogleClient(cfg GoogleConfig, httpClient *http.Client, logger *zap.Logger) *GoogleClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGoogleBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
		logger:  logger,
	}
}

type googleValue struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location Coordinates `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type distanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string      `json:"status"`
			Distance googleValue `json:"distance"`
			Duration googleValue `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			StartAddress string      `json:"start_address"`
			EndAddress   string      `json:"end_address"`
			Distance     googleValue `json:"distance"`
			Duration     googleValue `json:"duration"`
			Steps        []struct {
				HTMLInstructions string      `json:"html_instructions"`
				Distance         googleValue `json:"distance"`
				Duration         googleValue `json:"duration"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Geocode resolves an address to coordinates.
func (g *GoogleClient) Geocode(ctx context.Context, address string) (*Place, error) {
	params := url.Values{}
	params.Set("address", address)

	var payload geocodeResponse
	if err := g.get(ctx, "geocode/json", params, &payload); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, err)
	}
	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, fmt.Errorf("geocode %q: %w", address, ErrNotFound)
	default:
		return nil, fmt.Errorf("geocode %q: status %s: %s", address, payload.Status, payload.ErrorMessage)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("geocode %q: %w", address, ErrNotFound)
	}
	first := payload.Results[0]
	return &Place{Query: address, FormattedAddress: first.FormattedAddress, Location: first.Geometry.Location}, nil
}

// Distance returns the travel distance and duration between two addresses.
func (g *GoogleClient) Distance(ctx context.Context, origin, destination string, mode TravelMode) (*Measurement, error) {
	params := url.Values{}
	params.Set("origins", origin)
	params.Set("destinations", destination)
	params.Set("mode", string(mode))

	var payload distanceMatrixResponse
	if err := g.get(ctx, "distancematrix/json", params, &payload); err != nil {
		return nil, fmt.Errorf("distance %q -> %q: %w", origin, destination, err)
	}
	if payload.Status != "OK" {
		return nil, fmt.Errorf("distance %q -> %q: status %s: %s", origin, destination, payload.Status, payload.ErrorMessage)
	}
	if len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
		return nil, fmt.Errorf("distance %q -> %q: %w", origin, destination, ErrUnreachable)
	}
	element := payload.Rows[0].Elements[0]
	if element.Status != "OK" {
		return nil, fmt.Errorf("distance %q -> %q: element %s: %w", origin, destination, element.Status, ErrUnreachable)
	}
	return &Measurement{DistanceMeters: element.Distance.Value, DurationSeconds: element.Duration.Value}, nil
}

// Directions returns turn-by-turn legs visiting stops in the given order.
func (g *GoogleClient) Directions(ctx context.Context, stops []string, mode TravelMode) (*Directions, error) {
	if len(stops) < 2 {
		return &Directions{}, nil
	}
	params := url.Values{}
	params.Set("origin", stops[0])
	params.Set("destination", stops[len(stops)-1])
	params.Set("mode", string(mode))
	if len(stops) > 2 {
		params.Set("waypoints", strings.Join(stops[1:len(stops)-1], "|"))
	}

	var payload directionsResponse
	if err := g.get(ctx, "directions/json", params, &payload); err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}
	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, fmt.Errorf("directions: %w", ErrUnreachable)
	default:
		return nil, fmt.Errorf("directions: status %s: %s", payload.Status, payload.ErrorMessage)
	}
	if len(payload.Routes) == 0 {
		return nil, fmt.Errorf("directions: %w", ErrUnreachable)
	}

	route := payload.Routes[0]
	directions := &Directions{Polyline: route.OverviewPolyline.Points}
	for _, leg := range route.Legs {
		out := Leg{
			From:            leg.StartAddress,
			To:              leg.EndAddress,
			DistanceMeters:  leg.Distance.Value,
			DurationSeconds: leg.Duration.Value,
		}
		for _, step := range leg.Steps {
			out.Steps = append(out.Steps, Step{
				Instruction:     strings.TrimSpace(htmlTags.ReplaceAllString(step.HTMLInstructions, " ")),
				DistanceMeters:  step.Distance.Value,
				DurationSeconds: step.Duration.Value,
			})
		}
		directions.Legs = append(directions.Legs, out)
	}
	directions.total()
	return directions, nil
}

func (g *GoogleClient) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	params.Set("key", g.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", g.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	g.logger.Debug("maps request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
