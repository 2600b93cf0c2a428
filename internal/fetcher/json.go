package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// DecodeJSONArray decodes a JSON array element by element, sending each
// decoded value on the returned channel. Both channels are closed when
// decoding stops. An empty input yields no elements and no error.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}
			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// CollectJSONArray decodes a whole JSON array into a slice.
func CollectJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	ch, errCh := DecodeJSONArray[T](ctx, r)
	var out []T
	for item := range ch {
		out = append(out, item)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return out, nil
}

// jsonRow is a flat JSON object that remembers its key order.
type jsonRow struct {
	keys   []string
	values model.Record
}

// UnmarshalJSON accepts an object of scalars. Strings, numbers and booleans
// become present text; null becomes model.Missing.
func (j *jsonRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "json: read row")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("json: row must be an object, got %v", tok)
	}

	j.values = make(model.Record)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "json: read key")
		}
		key, _ := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return eris.Wrapf(err, "json: read value of %q", key)
		}
		var v model.Value
		switch x := valTok.(type) {
		case nil:
			v = model.Missing
		case string:
			v = model.Text(x)
		case json.Number:
			v = model.Text(x.String())
		case bool:
			v = model.Text(strconv.FormatBool(x))
		default:
			return eris.Errorf("json: field %q must be a scalar", key)
		}

		if _, dup := j.values[key]; dup {
			continue
		}
		j.keys = append(j.keys, key)
		j.values[key] = v
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "json: close row")
	}
	return nil
}
