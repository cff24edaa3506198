package codec

import (
	"strings"
	"testing"
)

func TestDecodeCSV(t *testing.T) {
	data := []byte("Email, First Name ,Last Name\nalice@example.com,Alice,Smith\nbob@example.com,Bob\n")
	rows, err := DecodeCSV(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// the header is line 1, so data rows start at 2
	if rows[0].Number != 2 || rows[1].Number != 3 {
		t.Fatalf("unexpected row numbers %d, %d", rows[0].Number, rows[1].Number)
	}
	if rows[0].Fields["email"] != "alice@example.com" {
		t.Fatalf("header must be normalized, got %+v", rows[0].Fields)
	}
	if rows[0].Fields["first name"] != "Alice" {
		t.Fatalf("inner whitespace must survive normalization, got %+v", rows[0].Fields)
	}
	// short rows are padded with empty cells
	if v, ok := rows[1].Fields["last name"]; !ok || v != "" {
		t.Fatalf("short row not padded: %+v", rows[1].Fields)
	}
}

func TestDecodeCSVStripsBOM(t *testing.T) {
	data := []byte("\xef\xbb\xbfEmail\nalice@example.com\n")
	rows, err := DecodeCSV(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rows[0].Fields["email"] != "alice@example.com" {
		t.Fatalf("BOM leaked into the header key: %+v", rows[0].Fields)
	}
}

func TestDecodeCSVRejectsWideRow(t *testing.T) {
	data := []byte("email\nalice@example.com,extra\n")
	if _, err := DecodeCSV(data); err == nil || !strings.Contains(err.Error(), "row 2") {
		t.Fatalf("expected a wide-row error naming the line, got %v", err)
	}
}

func TestDecodeCSVEmptyFile(t *testing.T) {
	if _, err := DecodeCSV(nil); err == nil {
		t.Fatal("expected an error for an empty file")
	}
}

func TestEncodeCSV(t *testing.T) {
	table := Table{
		Fields: []string{"id", "full_name", "has_avatar"},
		Records: []map[string]any{
			{"id": int64(7), "full_name": "Alice Smith", "has_avatar": "Yes"},
		},
	}
	out, err := EncodeCSV(table)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if lines[0] != "ID,Full Name,Has Avatar" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "7,Alice Smith,Yes" {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestFieldLabel(t *testing.T) {
	cases := map[string]string{
		"id":              "ID",
		"role_id":         "Role ID",
		"full_name":       "Full Name",
		"activity_status": "Activity Status",
		"email":           "Email",
	}
	for in, want := range cases {
		if got := FieldLabel(in); got != want {
			t.Errorf("FieldLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"csv", "CSV", " json ", "excel", "xlsx", "pdf"} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q): %v", in, err)
		}
	}
	if f, _ := ParseFormat("xlsx"); f != FormatExcel {
		t.Fatalf("xlsx must alias excel, got %q", f)
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestDetectImportFormat(t *testing.T) {
	tests := []struct {
		filename, contentType string
		want                  ImportFormat
		ok                    bool
	}{
		{"users.csv", "", ImportCSV, true},
		{"Users.XLSX", "", ImportXLSX, true},
		{"upload", "text/csv; charset=utf-8", ImportCSV, true},
		{"upload", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", ImportXLSX, true},
		{"users.pdf", "application/pdf", "", false},
	}
	for _, tc := range tests {
		got, ok := DetectImportFormat(tc.filename, tc.contentType)
		if got != tc.want || ok != tc.ok {
			t.Errorf("DetectImportFormat(%q, %q) = %q, %v", tc.filename, tc.contentType, got, ok)
		}
	}
}
