// Package geocode resolves a city/state pair to coordinates through a chain of
// providers, memoized by a process-wide coordinate cache.
package geocode

import (
	"context"
	"math"
	"strings"
)

// Location is a resolved point, or the unresolved sentinel.
type Location struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Resolved bool    `json:"resolved"`
}

// Unresolved is returned for every lookup that produced no usable point.
var Unresolved = Location{}

// Resolved builds a resolved Location.
func Resolved(lat, lon float64) Location {
	return Location{Lat: lat, Lon: lon, Resolved: true}
}

// Valid reports whether loc is resolved and inside the coordinate domain.
func (loc Location) Valid() bool {
	if !loc.Resolved {
		return false
	}
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lon) {
		return false
	}
	return loc.Lat >= -90 && loc.Lat <= 90 && loc.Lon >= -180 && loc.Lon <= 180
}

// Provider is a single geocoding backend. A nil error with an unresolved
// Location means the backend answered but found no match.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, city, state string) (Location, error)
}

// Key returns the cache key for a city/state pair.
func Key(city, state string) string {
	return strings.ToLower(strings.TrimSpace(city) + "," + strings.TrimSpace(state))
}

// Query formats the free-text query sent to search backends.
func Query(city, state string) string {
	city, state = strings.TrimSpace(city), strings.TrimSpace(state)
	switch {
	case city == "":
		return state
	case state == "":
		return city
	}
	return city + ", " + state
}
