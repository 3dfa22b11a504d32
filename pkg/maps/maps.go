// Package maps provides distance, geocoding and directions lookups used to sequence technician routes.
package maps

import (
	"context"
	"errors"
	"strings"
)

// Provider is implemented by GoogleClient and HaversineProvider.
type Provider interface {
	Geocode(ctx context.Context, address string) (*Place, error)
	Distance(ctx context.Context, origin, destination string, mode TravelMode) (*Measurement, error)
	Directions(ctx context.Context, stops []string, mode TravelMode) (*Directions, error)
}

var (
	_ Provider = (*GoogleClient)(nil)
	_ Provider = (*HaversineProvider)(nil)
)

// TravelMode selects the transport used for distance and directions calculations.
type TravelMode string

const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeBicycling TravelMode = "bicycling"
	ModeTransit   TravelMode = "transit"
)

// Valid reports whether the mode is one the providers understand.
func (m TravelMode) Valid() bool {
	switch m {
	case ModeDriving, ModeWalking, ModeBicycling, ModeTransit:
		return true
	}
	return false
}

// ParseMode normalises user input, defaulting to driving.
func ParseMode(raw string) TravelMode {
	mode := TravelMode(strings.ToLower(strings.TrimSpace(raw)))
	if mode == "" {
		return ModeDriving
	}
	return mode
}

var (
	// ErrNotFound is returned when an address cannot be geocoded.
	ErrNotFound = errors.New("location not found")
	// ErrUnreachable is returned when no route exists between two locations.
	ErrUnreachable = errors.New("location unreachable")
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is a geocoded address.
type Place struct {
	Query            string      `json:"query"`
	FormattedAddress string      `json:"formatted_address"`
	Location         Coordinates `json:"location"`
}

// Measurement is the travel cost between two places.
type Measurement struct {
	DistanceMeters  int `json:"distance_meters"`
	DurationSeconds int `json:"duration_seconds"`
}

// Step is a single turn-by-turn instruction.
type Step struct {
	Instruction     string `json:"instruction"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Leg connects two consecutive stops.
type Leg struct {
	From            string `json:"from"`
	To              string `json:"to"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`
	Steps           []Step `json:"steps"`
}

// Directions is a multi-leg route through ordered stops.
type Directions struct {
	Legs            []Leg  `json:"legs"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`
	Polyline        string `json:"polyline,omitempty"`
}

func (d *Directions) total() {
	d.DistanceMeters, d.DurationSeconds = 0, 0
	for _, leg := range d.Legs {
		d.DistanceMeters += leg.DistanceMeters
		d.DurationSeconds += leg.DurationSeconds
	}
}
