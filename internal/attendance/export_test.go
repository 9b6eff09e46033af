package attendance

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestWriteCSVPrependsBOM(t *testing.T) {
	rows := []ExportRow{
		{
			StudentNumber: "6510001",
			FullName:      "Somchai J.",
			SessionULID:   "SESS0001",
			OpenAt:        time.Date(2025, 6, 2, 8, 50, 0, 0, time.UTC),
			ClockedAt:     time.Date(2025, 6, 2, 9, 1, 0, 0, time.UTC),
			Distance:      0.3123,
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("output must start with UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimRight(string(out[3:]), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "student_number,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "6510001") || !strings.Contains(lines[1], "0.3123") {
		t.Errorf("row = %q", lines[1])
	}
}

func TestWriteCSVEmptyStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(buf.String(), "student_number") {
		t.Error("header missing on empty export")
	}
}
