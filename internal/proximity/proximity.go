// Package proximity measures how close a resolved location is to the nearest
// NAF academy and buckets that distance into proximity tiers.
package proximity

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

// EarthRadiusKM is the mean Earth radius used for great-circle distances.
const EarthRadiusKM = 6371.0088

const (
	// indexLevel is the S2 cell level academies are bucketed at.
	indexLevel = 6
	// linearScanMax is the table size below which the index is skipped.
	linearScanMax = 32
)

// Academy is a reference academy location.
type Academy struct {
	Name  string  `json:"name" yaml:"name"`
	City  string  `json:"city,omitempty" yaml:"city,omitempty"`
	State string  `json:"state,omitempty" yaml:"state,omitempty"`
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
}

// Nearest is the closest academy to a point.
type Nearest struct {
	Academy    Academy `json:"academy"`
	DistanceKM float64 `json:"distance_km"`
}

// Table is an immutable set of academies with an S2 cell index.
type Table struct {
	academies []Academy
	points    []s2.LatLng
	cells     map[s2.CellID][]int
	radiusKM  float64
}

// NewTable validates and indexes academies. searchRadiusKM bounds the
// indexed search; beyond it Nearest falls back to a full scan. Zero uses the
// default weak-tier cut-off.
func NewTable(academies []Academy, searchRadiusKM float64) (*Table, error) {
	if searchRadiusKM <= 0 {
		searchRadiusKM = DefaultTiers().WeakKM
	}
	t := &Table{
		academies: make([]Academy, len(academies)),
		points:    make([]s2.LatLng, len(academies)),
		cells:     make(map[s2.CellID][]int),
		radiusKM:  searchRadiusKM,
	}
	copy(t.academies, academies)
	for i, a := range t.academies {
		if !geocode.Resolved(a.Lat, a.Lon).Valid() {
			return nil, eris.Errorf("proximity: academy %q has invalid coordinates (%v, %v)", a.Name, a.Lat, a.Lon)
		}
		ll := s2.LatLngFromDegrees(a.Lat, a.Lon)
		t.points[i] = ll
		cell := s2.CellIDFromLatLng(ll).Parent(indexLevel)
		t.cells[cell] = append(t.cells[cell], i)
	}
	return t, nil
}

// Len returns the number of academies.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.academies)
}

// Academies returns a copy of the table contents.
func (t *Table) Academies() []Academy {
	return append([]Academy(nil), t.academies...)
}

// Nearest returns the academy closest to loc. It reports false when loc is
// unresolved or the table is empty.
func (t *Table) Nearest(loc geocode.Location) (Nearest, bool) {
	if t.Len() == 0 || !loc.Valid() {
		return Nearest{}, false
	}
	q := s2.LatLngFromDegrees(loc.Lat, loc.Lon)

	if len(t.academies) > linearScanMax {
		if idx, d, ok := t.searchIndex(q); ok {
			return Nearest{Academy: t.academies[idx], DistanceKM: d}, true
		}
	}
	idx, d := t.scan(q)
	return Nearest{Academy: t.academies[idx], DistanceKM: d}, true
}

func (t *Table) scan(q s2.LatLng) (int, float64) {
	best, bestD := 0, math.Inf(1)
	for i, p := range t.points {
		if d := distanceKM(q, p); d < bestD {
			best, bestD = i, d
		}
	}
	return best, bestD
}

// searchIndex looks only at academies in cells covering the search cap. Any
// academy within the radius lies in one of those cells, so a hit inside the
// radius is the true minimum.
func (t *Table) searchIndex(q s2.LatLng) (int, float64, bool) {
	angle := s1.Angle(t.radiusKM / EarthRadiusKM)
	region := s2.CapFromCenterAngle(s2.PointFromLatLng(q), angle)
	coverer := &s2.RegionCoverer{MinLevel: indexLevel, MaxLevel: indexLevel, MaxCells: 32}

	best, bestD, found := -1, math.Inf(1), false
	visit := func(cell s2.CellID) {
		for _, i := range t.cells[cell] {
			d := distanceKM(q, t.points[i])
			if d < bestD || (d == bestD && i < best) {
				best, bestD, found = i, d, true
			}
		}
	}
	for _, c := range coverer.Covering(region) {
		switch {
		case c.Level() > indexLevel:
			visit(c.Parent(indexLevel))
		case c.Level() < indexLevel:
			for ci := c.ChildBeginAtLevel(indexLevel); ci != c.ChildEndAtLevel(indexLevel); ci = ci.Next() {
				visit(ci)
			}
		default:
			visit(c)
		}
	}
	if !found || bestD > t.radiusKM {
		return 0, 0, false
	}
	return best, bestD, true
}

// DistanceKM returns the great-circle distance between two coordinates.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	return distanceKM(s2.LatLngFromDegrees(lat1, lon1), s2.LatLngFromDegrees(lat2, lon2))
}

func distanceKM(a, b s2.LatLng) float64 {
	return a.Distance(b).Radians() * EarthRadiusKM
}
