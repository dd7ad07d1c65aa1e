package ingestion

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	errEmptyFile    = errors.New("empty file")
	requiredColumns = []string{ColumnSKU, ColumnName}
)

// row is one data record keyed by lower-cased header name.
type row struct {
	line   int
	fields map[string]string
}

// rowReader streams header-keyed rows out of CSV content.
type rowReader struct {
	csv    *csv.Reader
	header []string
}

// newRowReader reads and validates the header. Input must be UTF-8, with an
// optional BOM. Ill-formed bytes fail the read rather than being replaced, so
// two keys that differ only in bad bytes never collapse into one.
func newRowReader(content []byte) (*rowReader, error) {
	decoded := transform.NewReader(bytes.NewReader(content),
		transform.Chain(encoding.UTF8Validator, unicode.BOMOverride(transform.Nop)))

	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		header[i] = h
		seen[h] = struct{}{}
	}
	for _, col := range requiredColumns {
		if _, ok := seen[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	return &rowReader{csv: r, header: header}, nil
}

// next returns the next row or io.EOF.
func (rr *rowReader) next() (row, error) {
	record, err := rr.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return row{}, io.EOF
		}
		return row{}, fmt.Errorf("failed to parse csv: %w", err)
	}

	line, _ := rr.csv.FieldPos(0)
	fields := make(map[string]string, len(rr.header))
	for i, name := range rr.header {
		if i < len(record) {
			fields[name] = record[i]
		}
	}
	return row{line: line, fields: fields}, nil
}

// countRows parses the whole input and returns the number of data rows.
// Any structural error fails here, before a single batch is applied.
func countRows(content []byte) (int, error) {
	rr, err := newRowReader(content)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		if _, err := rr.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return 0, err
		}
		n++
	}
}
