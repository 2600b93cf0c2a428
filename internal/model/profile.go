package model

// FieldRef is an optional column carrying an external reference for the
// row (a profile URL when the record came from the crawler table).
const FieldRef = "ref"

// Profile is the typed view of a normalized record.
type Profile struct {
	Ref               string `json:"ref,omitempty"`
	Academy           Value  `json:"academy"`
	TrackCertified    Value  `json:"track_certified"`
	HighSchool        Value  `json:"high_school"`
	InternshipCompany Value  `json:"Company_internship"`
	JobCompany        Value  `json:"company_job"`
	City              Value  `json:"city"`
	State             Value  `json:"state"`
}

// ProfileFromRecord builds a Profile from a normalized record. Fields absent
// from the record are Missing.
func ProfileFromRecord(r Record) Profile {
	return Profile{
		Ref:               r.Get(FieldRef).String(),
		Academy:           r.Get(FieldAcademy),
		TrackCertified:    r.Get(FieldTrackCertified),
		HighSchool:        r.Get(FieldHighSchool),
		InternshipCompany: r.Get(FieldInternshipCompany),
		JobCompany:        r.Get(FieldJobCompany),
		City:              r.Get(FieldCity),
		State:             r.Get(FieldState),
	}
}

// Record converts the profile back to a canonical record.
func (p Profile) Record() Record {
	r := Record{
		FieldAcademy:           p.Academy,
		FieldTrackCertified:    p.TrackCertified,
		FieldHighSchool:        p.HighSchool,
		FieldInternshipCompany: p.InternshipCompany,
		FieldJobCompany:        p.JobCompany,
		FieldCity:              p.City,
		FieldState:             p.State,
	}
	if p.Ref != "" {
		r[FieldRef] = Text(p.Ref)
	}
	return r
}
