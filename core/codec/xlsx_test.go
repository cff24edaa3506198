package codec

import "testing"

func TestXLSXRoundTrip(t *testing.T) {
	table := Table{
		Fields: []string{"email", "first_name", "coin"},
		Records: []map[string]any{
			{"email": "alice@example.com", "first_name": "Alice", "coin": "1250"},
			{"email": "bob@example.com", "first_name": "Bob", "coin": "0"},
		},
	}
	data, err := EncodeXLSX(table)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	rows, err := DecodeXLSX(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Number != 2 {
		t.Fatalf("first data row must be 2, got %d", rows[0].Number)
	}
	if rows[0].Fields["email"] != "alice@example.com" || rows[1].Fields["first name"] != "Bob" {
		t.Fatalf("unexpected decoded rows: %+v", rows)
	}
	if rows[0].Fields["coin"] != "1250" {
		t.Fatalf("coin cell mangled: %+v", rows[0].Fields)
	}
}
