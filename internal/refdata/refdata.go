// Package refdata loads the reference lists the feature engineer matches
// against: NAF high schools, partner companies, academy locations and an
// optional offline gazetteer.
package refdata

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/naf-analyzer/internal/fetcher"
	"github.com/sells-group/naf-analyzer/internal/fuzzy"
	"github.com/sells-group/naf-analyzer/internal/proximity"
	"github.com/sells-group/naf-analyzer/pkg/geocode"
)

//go:embed defaults/*.yaml
var defaults embed.FS

// Paths locates the reference files. An empty path falls back to the
// built-in list for companies and academies, and to an empty list for high
// schools and places.
type Paths struct {
	HighSchools string `mapstructure:"high_schools"`
	Companies   string `mapstructure:"companies"`
	Academies   string `mapstructure:"academies"`
	Places      string `mapstructure:"places"`
}

// Set is the loaded reference data.
type Set struct {
	Schools   *fuzzy.ReferenceSet
	Companies *fuzzy.ReferenceSet
	Academies *proximity.Table
	Places    []geocode.Place
}

// Entry is a named reference item. It decodes from either a bare string or
// an object with a name field.
type Entry struct {
	Name string `json:"name" yaml:"name"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return eris.Wrap(err, "refdata: decode entry")
	}
	e.Name = obj.Name
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Entry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	var obj struct {
		Name string `yaml:"name"`
	}
	if err := node.Decode(&obj); err != nil {
		return eris.Wrap(err, "refdata: decode entry")
	}
	e.Name = obj.Name
	return nil
}

// Load reads every reference list and builds the lookup structures.
// searchRadiusKM is passed to proximity.NewTable.
func Load(ctx context.Context, p Paths, searchRadiusKM float64) (*Set, error) {
	schools, err := loadEntries(ctx, p.HighSchools, "")
	if err != nil {
		return nil, err
	}
	companies, err := loadEntries(ctx, p.Companies, "defaults/companies.yaml")
	if err != nil {
		return nil, err
	}

	var academies []proximity.Academy
	if err := loadList(ctx, p.Academies, "defaults/academies.yaml", &academies); err != nil {
		return nil, err
	}
	table, err := proximity.NewTable(academies, searchRadiusKM)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: build academy table")
	}

	var places []geocode.Place
	if err := loadList(ctx, p.Places, "", &places); err != nil {
		return nil, err
	}
	for _, pl := range places {
		if !geocode.Resolved(pl.Lat, pl.Lon).Valid() {
			return nil, eris.Errorf("refdata: place %s, %s has invalid coordinates", pl.City, pl.State)
		}
	}

	set := &Set{
		Schools:   fuzzy.NewReferenceSet(names(schools)...),
		Companies: fuzzy.NewReferenceSet(names(companies)...),
		Academies: table,
		Places:    places,
	}
	if set.Schools.Len() == 0 {
		zap.L().Warn("refdata: no high schools loaded, hs_match will always be 0")
	}
	zap.L().Info("refdata: loaded reference data",
		zap.Int("high_schools", set.Schools.Len()),
		zap.Int("companies", set.Companies.Len()),
		zap.Int("academies", set.Academies.Len()),
		zap.Int("places", len(set.Places)),
	)
	return set, nil
}

func loadEntries(ctx context.Context, path, fallback string) ([]Entry, error) {
	var out []Entry
	err := loadList(ctx, path, fallback, &out)
	return out, err
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.ToLower(e.Name))
	}
	return out
}

// loadList decodes a JSON or YAML array from path, or from the embedded
// fallback when path is empty. With neither, out is left empty.
func loadList[T any](ctx context.Context, path, fallback string, out *[]T) error {
	switch {
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "refdata: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		if err := decodeList(ctx, f, filepath.Ext(path), out); err != nil {
			return eris.Wrapf(err, "refdata: parse %s", path)
		}
		return nil
	case fallback != "":
		f, err := defaults.Open(fallback)
		if err != nil {
			return eris.Wrapf(err, "refdata: open built-in %s", fallback)
		}
		defer f.Close() //nolint:errcheck
		return decodeList(ctx, f, filepath.Ext(fallback), out)
	default:
		return nil
	}
}

func decodeList[T any](ctx context.Context, r io.Reader, ext string, out *[]T) error {
	switch strings.ToLower(ext) {
	case ".json":
		items, err := fetcher.CollectJSONArray[T](ctx, r)
		if err != nil {
			return err
		}
		*out = items
		return nil
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(out); err != nil && err != io.EOF {
			return eris.Wrap(err, "refdata: decode yaml")
		}
		return nil
	default:
		return eris.Errorf("refdata: unsupported reference format %q", ext)
	}
}
