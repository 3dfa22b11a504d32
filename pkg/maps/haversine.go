package maps

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000.0

// average speeds in metres per second
var modeSpeeds = map[TravelMode]float64{
	ModeDriving:   40.0 / 3.6,
	ModeWalking:   5.0 / 3.6,
	ModeBicycling: 15.0 / 3.6,
	ModeTransit:   25.0 / 3.6,
}

// HaversineProvider is an offline provider that understands "lat,lng" strings and an optional gazetteer
// of named places. Distances are great-circle distances; durations assume a constant speed per mode.
type HaversineProvider struct {
	places map[string]Coordinates
}

// NewHaversineProvider constructs the provider. Gazetteer keys are matched case-insensitively.
func NewHaversineProvider(gazetteer map[string]Coordinates) *HaversineProvider {
	places := make(map[string]Coordinates, len(gazetteer))
	for name, coords := range gazetteer {
		places[strings.ToLower(strings.TrimSpace(name))] = coords
	}
	return &HaversineProvider{places: places}
}

// Geocode resolves a "lat,lng" pair or a gazetteer name.
func (p *HaversineProvider) Geocode(ctx context.Context, address string) (*Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if coords, ok := parseCoordinates(address); ok {
		return &Place{Query: address, FormattedAddress: address, Location: coords}, nil
	}
	if coords, ok := p.places[strings.ToLower(strings.TrimSpace(address))]; ok {
		return &Place{Query: address, FormattedAddress: address, Location: coords}, nil
	}
	return nil, fmt.Errorf("geocode %q: %w", address, ErrNotFound)
}

// Distance returns the great-circle distance and an estimated duration.
func (p *HaversineProvider) Distance(ctx context.Context, origin, destination string, mode TravelMode) (*Measurement, error) {
	from, err := p.Geocode(ctx, origin)
	if err != nil {
		return nil, fmt.Errorf("distance from %q: %w", origin, ErrUnreachable)
	}
	to, err := p.Geocode(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("distance to %q: %w", destination, ErrUnreachable)
	}
	meters := HaversineMeters(from.Location, to.Location)
	return &Measurement{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: estimateSeconds(meters, mode),
	}, nil
}

// Directions builds straight-line legs between consecutive stops.
func (p *HaversineProvider) Directions(ctx context.Context, stops []string, mode TravelMode) (*Directions, error) {
	directions := &Directions{}
	for i := 1; i < len(stops); i++ {
		m, err := p.Distance(ctx, stops[i-1], stops[i], mode)
		if err != nil {
			return nil, err
		}
		directions.Legs = append(directions.Legs, Leg{
			From:            stops[i-1],
			To:              stops[i],
			DistanceMeters:  m.DistanceMeters,
			DurationSeconds: m.DurationSeconds,
			Steps: []Step{{
				Instruction:     fmt.Sprintf("Travel to %s", stops[i]),
				DistanceMeters:  m.DistanceMeters,
				DurationSeconds: m.DurationSeconds,
			}},
		})
	}
	directions.total()
	return directions, nil
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func estimateSeconds(meters float64, mode TravelMode) int {
	speed, ok := modeSpeeds[mode]
	if !ok {
		speed = modeSpeeds[ModeDriving]
	}
	return int(math.Round(meters / speed))
}

func parseCoordinates(raw string) (Coordinates, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return Coordinates{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}
