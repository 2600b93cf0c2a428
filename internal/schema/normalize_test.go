package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/naf-analyzer/internal/model"
)

func TestNormalize_SynonymsAndBackfill(t *testing.T) {
	t.Parallel()

	in := model.RecordSet{
		Columns: []string{" HS ", "company internship", "City"},
		Rows: []model.Record{
			{" HS ": model.Text("Lincoln High"), "company internship": model.Text("Verizon"), "City": model.Text("Miami")},
		},
	}

	res := Normalize(in)
	require.Len(t, res.Records.Rows, 1)
	row := res.Records.Rows[0]

	assert.Equal(t, model.Text("Lincoln High"), row[model.FieldHighSchool])
	assert.Equal(t, model.Text("Verizon"), row[model.FieldInternshipCompany])
	assert.Equal(t, model.Text("Miami"), row[model.FieldCity])
	for _, f := range []string{model.FieldAcademy, model.FieldTrackCertified, model.FieldJobCompany, model.FieldState} {
		v, ok := row[f]
		assert.True(t, ok, f)
		assert.True(t, v.IsMissing(), f)
	}
	assert.Equal(t, model.CanonicalFields, res.Records.Columns)
	assert.Empty(t, res.Unrecognized)
}

func TestCanonical_FlagAliases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"NAFAcademy", model.FieldAcademy},
		{"naf_academy", model.FieldAcademy},
		{"NAFTrackCertified", model.FieldTrackCertified},
		{"naf_track_certified", model.FieldTrackCertified},
	}
	for _, tt := range tests {
		got, ok := Canonical(tt.in)
		assert.True(t, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalize_RestoresCasingSensitiveName(t *testing.T) {
	t.Parallel()

	for _, col := range []string{"company_internship", "COMPANY_INTERNSHIP", "Company_internship", "internship_company"} {
		canon, ok := Canonical(col)
		assert.True(t, ok, col)
		assert.Equal(t, "Company_internship", canon, col)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	in := model.RecordSet{
		Columns: []string{"Academy", "companyJob", "highschool", "target", "notes"},
		Rows: []model.Record{
			{"Academy": model.Text("Yes"), "companyJob": model.Text("Canva"), "highschool": model.Text("x"), "target": model.Text("1"), "notes": model.Text("n")},
			{"Academy": model.Missing, "target": model.Text("0")},
		},
	}

	once := Normalize(in)
	twice := Normalize(once.Records)

	assert.Equal(t, once.Records, twice.Records)
	assert.Empty(t, twice.Unrecognized)
}

func TestNormalize_CanonicalInputUnchanged(t *testing.T) {
	t.Parallel()

	row := model.Record{}
	for _, f := range model.CanonicalFields {
		row[f] = model.Text(f + "-value")
	}
	in := model.RecordSet{Columns: model.CanonicalFields, Rows: []model.Record{row}}

	res := Normalize(in)
	assert.Equal(t, in.Columns, res.Records.Columns)
	assert.Equal(t, row, res.Records.Rows[0])
}

func TestNormalize_KeepsTargetAndRef(t *testing.T) {
	t.Parallel()

	in := model.RecordSet{
		Columns: []string{"Target", "ref"},
		Rows:    []model.Record{{"Target": model.Text("1"), "ref": model.Text("u1")}},
	}
	res := Normalize(in)

	assert.Contains(t, res.Records.Columns, model.FieldTarget)
	assert.Contains(t, res.Records.Columns, model.FieldRef)
	assert.Equal(t, model.Text("1"), res.Records.Rows[0][model.FieldTarget])
}

func TestNormalize_DuplicateColumnsLeftmostWins(t *testing.T) {
	t.Parallel()

	in := model.RecordSet{
		Columns: []string{"high_school", "hs"},
		Rows: []model.Record{
			{"high_school": model.Text("first"), "hs": model.Text("second")},
			{"high_school": model.Missing, "hs": model.Text("fallback")},
		},
	}
	res := Normalize(in)

	assert.Equal(t, model.Text("first"), res.Records.Rows[0][model.FieldHighSchool])
	assert.Equal(t, model.Text("fallback"), res.Records.Rows[1][model.FieldHighSchool])
}

func TestNormalize_UnrecognizedColumns(t *testing.T) {
	t.Parallel()

	in := model.RecordSet{
		Columns: []string{"acadmy", "zzzzzzzzzzzz"},
		Rows:    []model.Record{{"acadmy": model.Text("yes")}},
	}
	res := Normalize(in)

	assert.Equal(t, []string{"acadmy", "zzzzzzzzzzzz"}, res.Unrecognized)
	assert.Equal(t, "academy", res.Suggestions["acadmy"])
	_, ok := res.Suggestions["zzzzzzzzzzzz"]
	assert.False(t, ok)
	assert.True(t, res.Records.Rows[0][model.FieldAcademy].IsMissing())

	res.LogUnrecognized()
}

func TestNormalize_EmptySet(t *testing.T) {
	t.Parallel()

	res := Normalize(model.RecordSet{})
	assert.Equal(t, model.CanonicalFields, res.Records.Columns)
	assert.Empty(t, res.Records.Rows)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"cty", "city"},
		{"stat", "state"},
		{"high_scool", "high_school"},
		{"", ""},
		{"x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Suggest(tt.in))
		})
	}
}
