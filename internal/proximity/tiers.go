package proximity

import "github.com/rotisserie/eris"

// Tiers holds the distance cut-offs in kilometres.
type Tiers struct {
	StrongKM float64 `json:"strong_km"`
	WeakKM   float64 `json:"weak_km"`
}

// DefaultTiers returns the standard 80/160 km cut-offs.
func DefaultTiers() Tiers {
	return Tiers{StrongKM: 80, WeakKM: 160}
}

// Validate checks that the cut-offs are positive and ordered.
func (t Tiers) Validate() error {
	if t.StrongKM <= 0 || t.WeakKM <= 0 {
		return eris.Errorf("proximity: tiers must be positive (strong=%v weak=%v)", t.StrongKM, t.WeakKM)
	}
	if t.StrongKM > t.WeakKM {
		return eris.Errorf("proximity: strong tier %v exceeds weak tier %v", t.StrongKM, t.WeakKM)
	}
	return nil
}

// Classify buckets a distance. Strong is d < StrongKM, weak is
// StrongKM <= d <= WeakKM; an undefined distance (ok == false) is neither.
// The two flags are never both set.
func (t Tiers) Classify(d float64, ok bool) (strong, weak int) {
	if !ok {
		return 0, 0
	}
	switch {
	case d < t.StrongKM:
		return 1, 0
	case d <= t.WeakKM:
		return 0, 1
	}
	return 0, 0
}
