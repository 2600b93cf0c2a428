// Package features turns a normalized profile into the fixed-order binary
// feature vector consumed by the decision model.
package features

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// missingLiterals are text values treated as absent.
var missingLiterals = map[string]struct{}{
	"":     {},
	"nan":  {},
	"null": {},
	"none": {},
}

// truthy are the cleaned values that set a flag feature.
var truthy = map[string]struct{}{
	"yes":  {},
	"true": {},
	"1":    {},
}

// Clean canonicalizes a text value: NFC, lower-case, trimmed, internal
// whitespace collapsed. Empty strings and missing literals become
// model.Missing.
func Clean(v model.Value) model.Value {
	if v.IsMissing() {
		return model.Missing
	}
	s := strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(v.Text))), " ")
	if _, ok := missingLiterals[s]; ok {
		return model.Missing
	}
	return model.Text(s)
}

// IsTruthy reports whether the cleaned value is yes, true or 1.
func IsTruthy(v model.Value) bool {
	c := Clean(v)
	if c.IsMissing() {
		return false
	}
	_, ok := truthy[c.Text]
	return ok
}
