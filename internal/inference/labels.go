package inference

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// Labels extracts the binary target column of rs. Accepted spellings are
// 0/1 (including 0.0/1.0), true/false and yes/no, case-insensitively.
func Labels(rs model.RecordSet) ([]int, error) {
	target, ok := targetColumn(rs.Columns)
	if !ok {
		return nil, eris.Wrapf(model.ErrMalformedLabel, "no %q column", model.FieldTarget)
	}
	out := make([]int, len(rs.Rows))
	for i, r := range rs.Rows {
		y, err := ParseLabel(r.Get(target))
		if err != nil {
			return nil, eris.Wrapf(err, "row %d", i)
		}
		out[i] = y
	}
	return out, nil
}

// ParseLabel parses one target value.
func ParseLabel(v model.Value) (int, error) {
	if v.IsMissing() {
		return 0, eris.Wrap(model.ErrMalformedLabel, "missing label")
	}
	s := strings.ToLower(strings.TrimSpace(v.Text))
	switch s {
	case "1", "true", "yes":
		return 1, nil
	case "0", "false", "no":
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		switch f {
		case 1:
			return 1, nil
		case 0:
			return 0, nil
		}
	}
	return 0, eris.Wrapf(model.ErrMalformedLabel, "label %q is not binary", v.Text)
}

func targetColumn(cols []string) (string, bool) {
	for _, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c), model.FieldTarget) {
			return c, true
		}
	}
	return "", false
}
