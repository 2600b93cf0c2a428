package geocode

import "context"

// Place is a known city/state with coordinates.
type Place struct {
	City  string  `json:"city" yaml:"city"`
	State string  `json:"state" yaml:"state"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
}

// StaticProvider answers from a fixed table. It never fails.
type StaticProvider struct {
	places map[string]Location
}

// NewStaticProvider indexes places by Key. Later duplicates win.
func NewStaticProvider(places []Place) *StaticProvider {
	p := &StaticProvider{places: make(map[string]Location, len(places))}
	for _, pl := range places {
		p.places[Key(pl.City, pl.State)] = Resolved(pl.Lat, pl.Lon)
	}
	return p
}

// Name implements Provider.
func (p *StaticProvider) Name() string { return "static" }

// Resolve implements Provider.
func (p *StaticProvider) Resolve(_ context.Context, city, state string) (Location, error) {
	if loc, ok := p.places[Key(city, state)]; ok {
		return loc, nil
	}
	return Unresolved, nil
}

// Len returns the number of known places.
func (p *StaticProvider) Len() int { return len(p.places) }
