package rowsource

import (
	"bytes"
	"encoding/csv"
	"io"

	gojson "github.com/goccy/go-json"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// CSVOptions configures FromCSV.
type CSVOptions struct {
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Header names the columns. When empty the first record is the header.
	Header []string
	// NullValue is the field text read as a nil value.
	NullValue string
}

type csvSource struct {
	reader  *csv.Reader
	opts    CSVOptions
	columns []string
	record  []string
	err     error
}

// FromCSV reads delimited text. Every value is a string, or nil when it
// equals opts.NullValue; property setters parse the text into their types.
func FromCSV(r io.Reader, opts CSVOptions) Source {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.ReuseRecord = true
	return &csvSource{reader: reader, opts: opts, columns: opts.Header}
}

func (s *csvSource) Next() bool {
	if s.err != nil {
		return false
	}
	if s.columns == nil {
		header, err := s.reader.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = errors.Wrap(err, "failed to read headers")
			}
			return false
		}
		s.columns = append([]string(nil), header...)
	}
	record, err := s.reader.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = errors.Wrap(err, "failed to read record")
		}
		return false
	}
	s.record = record
	return true
}

func (s *csvSource) Row() (Row, error) {
	values := make([]any, len(s.record))
	for i, field := range s.record {
		if field == s.opts.NullValue {
			continue
		}
		values[i] = field
	}
	return NewRow(s.columns, values)
}

func (s *csvSource) Err() error   { return s.err }
func (s *csvSource) Close() error { return nil }

type jsonLinesSource struct {
	decoder *gojson.Decoder
	current *orderedmap.OrderedMap[string, any]
	err     error
}

// FromJSONLines reads a stream of JSON objects, one per row. Keys keep their
// document order. Numbers are kept as json.Number so large integer keys do
// not lose precision; property setters parse them into their field types.
func FromJSONLines(r io.Reader) Source {
	return &jsonLinesSource{decoder: gojson.NewDecoder(r)}
}

func (s *jsonLinesSource) Next() bool {
	if s.err != nil {
		return false
	}
	raw := orderedmap.New[string, gojson.RawMessage]()
	if err := s.decoder.Decode(raw); err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = errors.Wrap(err, "failed to decode json row")
		}
		return false
	}
	object := orderedmap.New[string, any](raw.Len())
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		value, err := decodeValue(pair.Value)
		if err != nil {
			s.err = errors.Wrapf(err, "failed to decode json field %q", pair.Key)
			return false
		}
		object.Set(pair.Key, value)
	}
	s.current = object
	return true
}

func decodeValue(raw gojson.RawMessage) (any, error) {
	decoder := gojson.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func (s *jsonLinesSource) Row() (Row, error) {
	if s.current == nil {
		return Row{}, errors.New("no current row")
	}
	return rowFromMap(s.current), nil
}

func (s *jsonLinesSource) Err() error   { return s.err }
func (s *jsonLinesSource) Close() error { return nil }
