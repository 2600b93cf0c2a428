package model

// Canonical field names of a normalized profile record.
const (
	FieldAcademy           = "academy"
	FieldTrackCertified    = "track_certified"
	FieldHighSchool        = "high_school"
	FieldInternshipCompany = "Company_internship" // only canonical name with upper-case letters
	FieldJobCompany        = "company_job"
	FieldCity              = "city"
	FieldState             = "state"

	// FieldTarget is the optional ground-truth label column.
	FieldTarget = "target"
)

// CanonicalFields lists the canonical schema in output order.
var CanonicalFields = []string{
	FieldAcademy,
	FieldTrackCertified,
	FieldHighSchool,
	FieldInternshipCompany,
	FieldJobCompany,
	FieldCity,
	FieldState,
}

// Value is a single cell. The zero Value is the missing marker.
type Value struct {
	Text    string `json:"text"`
	Present bool   `json:"present"`
}

// Missing is the explicit missing marker.
var Missing = Value{}

// Text returns a present value holding s.
func Text(s string) Value {
	return Value{Text: s, Present: true}
}

// IsMissing reports whether v carries no value.
func (v Value) IsMissing() bool {
	return !v.Present
}

// String returns the raw text, or "" when missing.
func (v Value) String() string {
	if !v.Present {
		return ""
	}
	return v.Text
}

// Record is one input row keyed by column name.
type Record map[string]Value

// Get returns the value for field, or Missing when the field is absent.
func (r Record) Get(field string) Value {
	v, ok := r[field]
	if !ok {
		return Missing
	}
	return v
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RecordSet is an ordered batch of records sharing a column list.
type RecordSet struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// Len returns the number of rows.
func (rs RecordSet) Len() int {
	return len(rs.Rows)
}

// HasColumn reports whether name is one of the set's columns.
func (rs RecordSet) HasColumn(name string) bool {
	for _, c := range rs.Columns {
		if c == name {
			return true
		}
	}
	return false
}
