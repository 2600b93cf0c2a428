package fetcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// ErrNoHeader is returned for tabular input without a header row.
var ErrNoHeader = eris.New("fetcher: input has no header row")

// ReadRecordSet loads a batch of raw records from path, choosing the parser
// by extension: .csv, .xlsx or .json (an array of flat objects). Tabular
// files use their first row as the header.
func ReadRecordSet(ctx context.Context, path string) (model.RecordSet, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err := ReadCSV(ctx, f, CSVOptions{LazyQuotes: true})
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "fetcher: parse %s", path)
		}
		return RecordSetFromRows(rows)
	case ".xlsx":
		rows, err := ReadXLSX(path, XLSXOptions{})
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "fetcher: parse %s", path)
		}
		return RecordSetFromRows(rows)
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "fetcher: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rs, err := DecodeRecordSet(ctx, f)
		if err != nil {
			return model.RecordSet{}, eris.Wrapf(err, "fetcher: parse %s", path)
		}
		return rs, nil
	default:
		return model.RecordSet{}, eris.Errorf("fetcher: unsupported input format %q", ext)
	}
}

// RecordSetFromRows turns a header row plus data rows into a RecordSet.
// Empty cells are present empty strings; cells past the end of a short row
// are missing. A repeated header keeps its first column.
func RecordSetFromRows(rows [][]string) (model.RecordSet, error) {
	if len(rows) == 0 || isBlank(rows[0]) {
		return model.RecordSet{}, ErrNoHeader
	}

	header := rows[0]
	var cols []string
	index := make([]int, 0, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" || seen[h] {
			if h != "" {
				zap.L().Warn("fetcher: duplicate column ignored", zap.String("column", h), zap.Int("position", i))
			}
			continue
		}
		seen[h] = true
		cols = append(cols, h)
		index = append(index, i)
	}

	rs := model.RecordSet{Columns: cols, Rows: make([]model.Record, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(model.Record, len(cols))
		for k, col := range cols {
			if i := index[k]; i < len(row) {
				rec[col] = model.Text(row[i])
			} else {
				rec[col] = model.Missing
			}
		}
		rs.Rows = append(rs.Rows, rec)
	}
	return rs, nil
}

// DecodeRecordSet reads either a JSON array of flat objects or a single flat
// object from r.
func DecodeRecordSet(ctx context.Context, r io.Reader) (model.RecordSet, error) {
	br := bufio.NewReader(r)
	first, err := peekToken(br)
	if err != nil {
		return model.RecordSet{}, eris.Wrap(err, "fetcher: empty JSON input")
	}
	if first == '{' {
		var row jsonRow
		if err := json.NewDecoder(br).Decode(&row); err != nil {
			return model.RecordSet{}, eris.Wrap(err, "fetcher: decode JSON object")
		}
		return recordSetFromJSON([]jsonRow{row}), nil
	}
	objs, err := CollectJSONArray[jsonRow](ctx, br)
	if err != nil {
		return model.RecordSet{}, err
	}
	return recordSetFromJSON(objs), nil
}

// peekToken returns the first non-space byte of br without consuming it.
func peekToken(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func recordSetFromJSON(objs []jsonRow) model.RecordSet {
	var cols []string
	seen := make(map[string]bool)
	for _, o := range objs {
		for _, k := range o.keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	rs := model.RecordSet{Columns: cols, Rows: make([]model.Record, len(objs))}
	for i, o := range objs {
		rs.Rows[i] = o.values
	}
	return rs
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
