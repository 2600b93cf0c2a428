package fuzzy

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// DefaultThreshold is the minimum PartialRatio for a membership match.
const DefaultThreshold = 90.0

// Fold reduces s to its matching key: compatibility-normalized, diacritics
// removed, lower-cased, trimmed, internal whitespace collapsed.
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// ReferenceSet is an immutable set of canonical names.
type ReferenceSet struct {
	names []string
	index map[string]struct{}
}

// NewReferenceSet folds and de-duplicates names. Empty names are ignored.
func NewReferenceSet(names ...string) *ReferenceSet {
	rs := &ReferenceSet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		key := Fold(n)
		if key == "" {
			continue
		}
		if _, dup := rs.index[key]; dup {
			continue
		}
		rs.index[key] = struct{}{}
		rs.names = append(rs.names, key)
	}
	sort.Strings(rs.names)
	return rs
}

// Len returns the number of distinct names.
func (rs *ReferenceSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.names)
}

// Names returns a copy of the folded names in sorted order.
func (rs *ReferenceSet) Names() []string {
	if rs == nil {
		return nil
	}
	return append([]string(nil), rs.names...)
}

// Contains reports an exact match of the folded key.
func (rs *ReferenceSet) Contains(s string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.index[Fold(s)]
	return ok
}

// Matcher decides fuzzy membership of a value in a ReferenceSet.
type Matcher struct {
	Threshold float64
}

// NewMatcher returns a Matcher using threshold, or DefaultThreshold when
// threshold is not positive.
func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Matcher{Threshold: threshold}
}

// Match reports whether v is similar enough to any member of set. Missing
// values and empty sets never match.
func (m Matcher) Match(v model.Value, set *ReferenceSet) bool {
	_, score := m.Best(v, set)
	return score >= m.threshold()
}

// Best returns the closest member of set and its score. It returns ("", 0)
// for missing values or an empty set.
func (m Matcher) Best(v model.Value, set *ReferenceSet) (string, float64) {
	if v.IsMissing() || set.Len() == 0 {
		return "", 0
	}
	key := Fold(v.Text)
	if key == "" {
		return "", 0
	}
	if set.Contains(key) {
		return key, 100
	}

	best, bestScore := "", 0.0
	for _, name := range set.names {
		s := PartialRatio(key, name)
		if s > bestScore {
			best, bestScore = name, s
			if s == 100 {
				break
			}
		}
	}
	return best, bestScore
}

func (m Matcher) threshold() float64 {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}
