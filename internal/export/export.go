// Package export streams list data as NDJSON or CSV. Callers own the
// destination writer and response headers; exporters only encode rows.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type Format string

const (
	FormatNDJSON Format = "ndjson"
	FormatCSV    Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(FormatNDJSON):
		return FormatNDJSON, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/x-ndjson"
}

// Row is one record of an export stream. Fields feed the CSV encoder in
// header order; Doc is what NDJSON marshals.
type Row struct {
	Fields []string
	Doc    any
}

// Exporter writes a streamed export. Begin is called once before the first
// row; Close flushes buffered output and reports any deferred write error.
type Exporter interface {
	Begin(header []string) error
	Write(row Row) error
	Close() error
}

// New returns the exporter for the format writing to w.
func New(format Format, w io.Writer) Exporter {
	if format == FormatCSV {
		return NewCSVExporter(w)
	}
	return NewNDJSONExporter(w)
}

// NDJSONExporter writes one JSON document per line.
type NDJSONExporter struct {
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONExporter{enc: enc}
}

func (e *NDJSONExporter) Begin(header []string) error { return nil }

func (e *NDJSONExporter) Write(row Row) error {
	return e.enc.Encode(row.Doc)
}

func (e *NDJSONExporter) Close() error { return nil }

// CSVExporter writes a header row followed by one record per row.
type CSVExporter struct {
	w       *csv.Writer
	columns int
}

func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{w: csv.NewWriter(w)}
}

func (e *CSVExporter) Begin(header []string) error {
	if len(header) == 0 {
		return fmt.Errorf("csv export requires a header")
	}
	e.columns = len(header)
	return e.w.Write(header)
}

func (e *CSVExporter) Write(row Row) error {
	if e.columns == 0 {
		return fmt.Errorf("csv export not begun")
	}
	if len(row.Fields) != e.columns {
		return fmt.Errorf("csv row has %d fields, header has %d", len(row.Fields), e.columns)
	}
	return e.w.Write(row.Fields)
}

func (e *CSVExporter) Close() error {
	e.w.Flush()
	return e.w.Error()
}
