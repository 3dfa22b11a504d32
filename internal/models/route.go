package models

import "github.com/noah-isme/fieldservice-api/pkg/maps"

// OptimizedRoute is the nearest-neighbour ordering of a set of stops.
type OptimizedRoute struct {
	Mode        maps.TravelMode  `json:"mode"`
	Start       string           `json:"start"`
	Ordered     []string         `json:"ordered"`
	Unreachable []string         `json:"unreachable,omitempty"`
	Directions  *maps.Directions `json:"directions,omitempty"`
}
