// Package schema maps loosely named input columns onto the canonical profile
// schema.
package schema

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// synonyms maps lower-cased column aliases to their canonical name.
var synonyms = map[string]string{
	"company_internship":  model.FieldInternshipCompany,
	"company internship":  model.FieldInternshipCompany,
	"internship_company":  model.FieldInternshipCompany,
	"internshipcompany1":  model.FieldInternshipCompany,
	"companyjob":          model.FieldJobCompany,
	"company job":         model.FieldJobCompany,
	"currentjob":          model.FieldJobCompany,
	"highschool":          model.FieldHighSchool,
	"hs":                  model.FieldHighSchool,
	"nafacademy":          model.FieldAcademy,
	"naf_academy":         model.FieldAcademy,
	"naftrackcertified":   model.FieldTrackCertified,
	"naf_track_certified": model.FieldTrackCertified,
}

// passthrough lists non-feature columns carried into the canonical output.
var passthrough = []string{model.FieldRef, model.FieldTarget}

// maxSuggestDistance bounds the edit distance of a did-you-mean hint.
const maxSuggestDistance = 3

// Result is the outcome of Normalize.
type Result struct {
	Records      model.RecordSet
	Unrecognized []string          // input columns with no canonical mapping, in input order
	Suggestions  map[string]string // unrecognized column -> closest canonical name
}

// Normalize renames the columns of rs to the canonical schema and
// back-fills absent canonical columns with model.Missing. Values are never
// modified and no row is dropped. Unrecognized columns are excluded from the
// output and reported on the result.
//
// When several input columns map to the same canonical name the leftmost one
// wins; later ones only fill rows where it is missing.
func Normalize(rs model.RecordSet) Result {
	mapping := make(map[string]string, len(rs.Columns))
	order := make(map[string][]string)
	var unrecognized []string

	for _, col := range rs.Columns {
		canon, ok := Canonical(col)
		if !ok {
			unrecognized = append(unrecognized, col)
			continue
		}
		mapping[col] = canon
		order[canon] = append(order[canon], col)
	}

	cols := make([]string, 0, len(model.CanonicalFields)+len(passthrough))
	cols = append(cols, model.CanonicalFields...)
	for _, p := range passthrough {
		if len(order[p]) > 0 {
			cols = append(cols, p)
		}
	}

	rows := make([]model.Record, len(rs.Rows))
	for i, in := range rs.Rows {
		out := make(model.Record, len(cols))
		for _, canon := range cols {
			v := model.Missing
			for _, src := range order[canon] {
				if cand := in.Get(src); cand.Present {
					v = cand
					break
				}
			}
			out[canon] = v
		}
		rows[i] = out
	}

	res := Result{
		Records:      model.RecordSet{Columns: cols, Rows: rows},
		Unrecognized: unrecognized,
	}
	if len(unrecognized) > 0 {
		res.Suggestions = make(map[string]string)
		for _, col := range unrecognized {
			if s := Suggest(col); s != "" {
				res.Suggestions[col] = s
			}
		}
	}
	return res
}

// Canonical returns the canonical name for a raw column name.
func Canonical(col string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(col))
	if canon, ok := synonyms[key]; ok {
		return canon, true
	}
	for _, f := range model.CanonicalFields {
		if strings.ToLower(f) == key {
			return f, true
		}
	}
	for _, p := range passthrough {
		if p == key {
			return p, true
		}
	}
	return "", false
}

// Suggest returns the canonical field closest to col by edit distance, or ""
// when nothing is close enough.
func Suggest(col string) string {
	key := strings.ToLower(strings.TrimSpace(col))
	if key == "" {
		return ""
	}

	candidates := make(map[string]string, len(synonyms)+len(model.CanonicalFields))
	for alias, canon := range synonyms {
		candidates[alias] = canon
	}
	for _, f := range model.CanonicalFields {
		candidates[strings.ToLower(f)] = f
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestDist := "", maxSuggestDistance+1
	for _, name := range names {
		d := levenshtein.ComputeDistance(key, name)
		if d < bestDist {
			best, bestDist = candidates[name], d
		}
	}
	if bestDist > maxSuggestDistance || bestDist >= len(key) {
		return ""
	}
	return best
}

// LogUnrecognized emits one warning per dropped column.
func (r Result) LogUnrecognized() {
	for _, col := range r.Unrecognized {
		fields := []zap.Field{zap.String("column", col)}
		if s, ok := r.Suggestions[col]; ok {
			fields = append(fields, zap.String("did_you_mean", s))
		}
		zap.L().Warn("schema: unrecognized column dropped", fields...)
	}
}
