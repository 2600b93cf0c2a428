package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/naf-analyzer/internal/model"
)

func TestRatio(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 100.0, Ratio("abc", "abc"), 1e-9)
	assert.InDelta(t, 100.0, Ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
	// LCS("abcd","abxd") = 3 -> 100*6/8
	assert.InDelta(t, 75.0, Ratio("abcd", "abxd"), 1e-9)
}

func TestPartialRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "lincoln high", "lincoln high", 100, 100},
		{"substring", "verizon", "verizon wireless", 100, 100},
		{"reversed args", "verizon wireless", "verizon", 100, 100},
		{"one typo", "lincon high", "lincoln high school", 90, 100},
		{"unrelated", "completely different", "lincoln high", 0, 89.99},
		{"empty vs text", "", "canva", 0, 0},
		{"both empty", "", "", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PartialRatio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestPartialRatio_Symmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"hosa", "hosa future health professionals"},
		{"atmore", "atmor"},
		{"abc", "xbcx"},
	}
	for _, p := range pairs {
		assert.InDelta(t, PartialRatio(p[0], p[1]), PartialRatio(p[1], p[0]), 1e-9)
	}
}

func TestFold(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "jose marti high", Fold("  José   Martí\tHIGH "))
	assert.Equal(t, "", Fold("   "))
}

func TestReferenceSet(t *testing.T) {
	t.Parallel()

	rs := NewReferenceSet("Canva", "canva ", "Verizon", "")
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"canva", "verizon"}, rs.Names())
	assert.True(t, rs.Contains("CANVA"))
	assert.False(t, rs.Contains("hosa"))

	var nilSet *ReferenceSet
	assert.Equal(t, 0, nilSet.Len())
	assert.False(t, nilSet.Contains("x"))
}

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	schools := NewReferenceSet("Lincoln High")
	m := NewMatcher(0)

	tests := []struct {
		name string
		in   model.Value
		want bool
	}{
		{"exact with padding", model.Text("Lincoln High "), true},
		{"case and spacing", model.Text("LINCOLN   high"), true},
		{"contained", model.Text("lincoln high school"), true},
		{"unrelated", model.Text("completely different"), false},
		{"missing", model.Missing, false},
		{"blank", model.Text("  "), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, m.Match(tt.in, schools))
		})
	}
}

func TestMatcher_EmptySet(t *testing.T) {
	t.Parallel()

	m := NewMatcher(90)
	assert.False(t, m.Match(model.Text("anything"), NewReferenceSet()))
	assert.False(t, m.Match(model.Text("anything"), nil))
}

func TestMatcher_Best(t *testing.T) {
	t.Parallel()

	set := NewReferenceSet("Canva", "HOSA", "Verizon")
	m := NewMatcher(90)

	name, score := m.Best(model.Text("Verizon Communications"), set)
	assert.Equal(t, "verizon", name)
	assert.InDelta(t, 100.0, score, 1e-9)

	name, score = m.Best(model.Missing, set)
	assert.Equal(t, "", name)
	assert.Zero(t, score)
}

func TestMatcher_Threshold(t *testing.T) {
	t.Parallel()

	set := NewReferenceSet("abcdefghij")
	// best window is the 9-rune prefix: 100*18/19
	v := model.Text("abcdefghiX")
	assert.True(t, Matcher{Threshold: 90}.Match(v, set))
	assert.False(t, Matcher{Threshold: 95}.Match(v, set))
}
