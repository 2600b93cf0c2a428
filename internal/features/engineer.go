package features

import (
	"context"

	"github.com/sells-group/naf-analyzer/internal/fuzzy"
	"github.com/sells-group/naf-analyzer/internal/model"
	"github.com/sells-group/naf-analyzer/internal/proximity"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

// Resolver resolves a city/state pair. It must not fail: lookups that go
// wrong return geocode.Unresolved. *geocode.Cache satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, city, state string) geocode.Location
}

// Deps are the reference data and services an Engineer reads.
type Deps struct {
	Schools   *fuzzy.ReferenceSet
	Companies *fuzzy.ReferenceSet
	Academies *proximity.Table
	Tiers     proximity.Tiers
	Matcher   fuzzy.Matcher
	Geocoder  Resolver
}

// Engineer computes feature vectors. It is safe for concurrent use; the only
// shared mutable state is the geocoder's cache.
type Engineer struct {
	schools   *fuzzy.ReferenceSet
	companies *fuzzy.ReferenceSet
	academies *proximity.Table
	tiers     proximity.Tiers
	matcher   fuzzy.Matcher
	geocoder  Resolver
}

// New builds an Engineer. Zero-valued tiers and matcher take their defaults.
// A nil geocoder leaves every location unresolved.
func New(d Deps) *Engineer {
	if d.Tiers == (proximity.Tiers{}) {
		d.Tiers = proximity.DefaultTiers()
	}
	if d.Matcher.Threshold <= 0 {
		d.Matcher = fuzzy.NewMatcher(0)
	}
	return &Engineer{
		schools:   d.Schools,
		companies: d.Companies,
		academies: d.Academies,
		tiers:     d.Tiers,
		matcher:   d.Matcher,
		geocoder:  d.Geocoder,
	}
}

// Explanation is a feature vector with the evidence behind it.
type Explanation struct {
	Features        model.FeatureVector `json:"features"`
	Location        geocode.Location    `json:"location"`
	NearestAcademy  string              `json:"nearest_academy,omitempty"`
	DistanceKM      *float64            `json:"distance_km,omitempty"`
	HighSchoolMatch string              `json:"high_school_match,omitempty"`
	InternshipMatch string              `json:"internship_match,omitempty"`
	JobMatch        string              `json:"job_match,omitempty"`
}

// Vector computes the feature vector of p. It never fails; missing or
// unresolvable inputs yield zero features.
func (e *Engineer) Vector(ctx context.Context, p model.Profile) model.FeatureVector {
	return e.Explain(ctx, p).Features
}

// Explain computes the feature vector of p and records the matches and
// distance that produced it.
func (e *Engineer) Explain(ctx context.Context, p model.Profile) Explanation {
	var v model.FeatureVector
	var ex Explanation

	// Any academy value counts: the column holds a school name as often as
	// a yes/no.
	hasAcademy := !Clean(p.Academy).IsMissing()
	certified := IsTruthy(p.TrackCertified)
	v = v.Set(model.FeatHasAcademy, hasAcademy)
	v = v.Set(model.FeatTrackCertified, certified)
	v = v.Set(model.FeatRuleDefinite, hasAcademy || certified)

	var hs, intern, job bool
	ex.HighSchoolMatch, hs = e.match(p.HighSchool, e.schools)
	ex.InternshipMatch, intern = e.match(p.InternshipCompany, e.companies)
	ex.JobMatch, job = e.match(p.JobCompany, e.companies)
	v = v.Set(model.FeatHighSchoolMatch, hs)
	v = v.Set(model.FeatInternshipMatch, intern)
	v = v.Set(model.FeatJobMatch, job)

	ex.Location = e.locate(ctx, p)
	nearest, ok := e.academies.Nearest(ex.Location)
	if ok {
		d := nearest.DistanceKM
		ex.DistanceKM = &d
		ex.NearestAcademy = nearest.Academy.Name
	}
	strong, weak := e.tiers.Classify(nearest.DistanceKM, ok)
	v[model.FeatProxStrong] = strong
	v[model.FeatProxWeak] = weak

	ex.Features = v
	return ex
}

func (e *Engineer) match(raw model.Value, set *fuzzy.ReferenceSet) (string, bool) {
	v := Clean(raw)
	name, score := e.matcher.Best(v, set)
	if score < e.matcher.Threshold {
		return "", false
	}
	return name, true
}

func (e *Engineer) locate(ctx context.Context, p model.Profile) geocode.Location {
	if e.geocoder == nil {
		return geocode.Unresolved
	}
	city := Clean(p.City)
	if city.IsMissing() {
		return geocode.Unresolved
	}
	return e.geocoder.Resolve(ctx, city.Text, Clean(p.State).String())
}
