package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// openOutput returns path opened for writing, or stdout when path is empty.
// The returned close func is always safe to call.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create output file %s", path)
	}
	return f, f.Close, nil
}

func writeClassifications(w io.Writer, format string, results []model.Classification) error {
	switch format {
	case "json":
		return writeJSON(w, results)
	case "csv":
		return writeClassificationsCSV(w, results)
	default:
		return eris.Errorf("unsupported format %q (json or csv)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "write JSON")
	}
	return nil
}

func writeClassificationsCSV(w io.Writer, results []model.Classification) error {
	cw := csv.NewWriter(w)

	header := []string{"row", "ref", "label", "confidence", "source", "probability"}
	header = append(header, model.FeatureNames[:]...)
	header = append(header, "error")
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write CSV header")
	}

	for _, r := range results {
		prob := ""
		if r.Probability != nil {
			prob = strconv.FormatFloat(*r.Probability, 'f', 6, 64)
		}
		row := []string{
			strconv.Itoa(r.Row),
			r.Ref,
			strconv.Itoa(r.Label),
			strconv.FormatFloat(r.Confidence, 'f', 6, 64),
			string(r.Source),
			prob,
		}
		for _, f := range r.Features {
			row = append(row, strconv.Itoa(f))
		}
		row = append(row, r.Error)
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "write CSV row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "flush CSV")
}
