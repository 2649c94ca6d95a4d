package export

import (
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatNDJSON},
		{in: "ndjson", want: FormatNDJSON},
		{in: " CSV ", want: FormatCSV},
		{in: "xlsx", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseFormat(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseFormat(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNDJSONExporterOneDocPerLine(t *testing.T) {
	var buf strings.Builder
	exp := NewNDJSONExporter(&buf)
	if err := exp.Begin(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := []Row{
		{Doc: map[string]any{"id": "app-1", "status": "approved"}},
		{Doc: map[string]any{"id": "app-2", "status": "rejected"}},
	}
	for _, row := range rows {
		if err := exp.Write(row); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"id":"app-1"`) {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
}

func TestCSVExporterWritesHeaderAndQuotes(t *testing.T) {
	var buf strings.Builder
	exp := NewCSVExporter(&buf)
	if err := exp.Begin([]string{"application_id", "applicant", "status"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := exp.Write(Row{Fields: []string{"app-1", `Ryan "RJ" Ko, Jr.`, "approved"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := buf.String()
	if !strings.HasPrefix(got, "application_id,applicant,status\n") {
		t.Fatalf("expected header row, got %q", got)
	}
	if !strings.Contains(got, `"Ryan ""RJ"" Ko, Jr."`) {
		t.Fatalf("expected quoted field, got %q", got)
	}
}

func TestCSVExporterRejectsColumnMismatch(t *testing.T) {
	var buf strings.Builder
	exp := NewCSVExporter(&buf)
	if err := exp.Begin([]string{"a", "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := exp.Write(Row{Fields: []string{"only-one"}}); err == nil {
		t.Fatalf("expected error for column mismatch")
	}
}

func TestCSVExporterRequiresBegin(t *testing.T) {
	var buf strings.Builder
	exp := NewCSVExporter(&buf)
	if err := exp.Write(Row{Fields: []string{"a"}}); err == nil {
		t.Fatalf("expected error before Begin")
	}
}

func TestNewPicksExporterByFormat(t *testing.T) {
	var buf strings.Builder
	if _, ok := New(FormatCSV, &buf).(*CSVExporter); !ok {
		t.Fatalf("expected CSV exporter")
	}
	if _, ok := New(FormatNDJSON, &buf).(*NDJSONExporter); !ok {
		t.Fatalf("expected NDJSON exporter")
	}
}
