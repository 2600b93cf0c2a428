package store

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// locationKey is the crawler's combined "City, ST" field.
const locationKey = "location"

// FetchProfiles reads a page of crawled profiles from crawler_data, ordered
// by crawler_id. Each profile's JSON document becomes one raw record keyed
// by its original field names, with the profile URL in the ref column and
// city and state split out of the location field when not set directly.
func (s *PostgresStore) FetchProfiles(ctx context.Context, limit, offset int) (model.RecordSet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT crawler_id, profile_url, json FROM crawler_data ORDER BY crawler_id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return model.RecordSet{}, eris.Wrap(err, "postgres: fetch profiles")
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var id int64
		var url string
		var doc []byte
		if err := rows.Scan(&id, &url, &doc); err != nil {
			return model.RecordSet{}, eris.Wrap(err, "postgres: scan profile")
		}
		rec, err := crawlerRecord(doc)
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "postgres: profile %d", id)
		}
		rec[model.FieldRef] = model.Text(url)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return model.RecordSet{}, eris.Wrap(err, "postgres: fetch profiles iterate")
	}

	return model.RecordSet{Columns: columnsOf(records), Rows: records}, nil
}

// crawlerRecord flattens a crawler JSON document into a raw record. Nested
// values are ignored and false becomes missing.
func crawlerRecord(doc []byte) (model.Record, error) {
	fields := map[string]any{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, eris.Wrap(err, "decode profile json")
		}
	}

	rec := make(model.Record, len(fields)+2)
	for k, v := range fields {
		switch x := v.(type) {
		case nil:
			rec[k] = model.Missing
		case string:
			rec[k] = model.Text(x)
		case bool:
			// false is the crawler's "not found", not a value
			if x {
				rec[k] = model.Text("true")
			} else {
				rec[k] = model.Missing
			}
		case float64:
			rec[k] = model.Text(strconv.FormatFloat(x, 'f', -1, 64))
		}
	}

	if loc := rec.Get(locationKey); loc.Present {
		city, state := splitLocation(loc.Text)
		if !rec.Get(model.FieldCity).Present && city != "" {
			rec[model.FieldCity] = model.Text(city)
		}
		if !rec.Get(model.FieldState).Present && state != "" {
			rec[model.FieldState] = model.Text(state)
		}
	}
	return rec, nil
}

// columnsOf returns the union of record keys: ref first, the rest sorted.
func columnsOf(records []model.Record) []string {
	seen := map[string]bool{model.FieldRef: true}
	cols := []string{}
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return append([]string{model.FieldRef}, cols...)
}

// splitLocation splits a "City, ST" string. Without a comma the whole string
// is taken as the city.
func splitLocation(loc string) (city, state string) {
	parts := strings.Split(loc, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(loc), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
