package users

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"afk-admin/config"
	"afk-admin/core/codec"
	"afk-admin/core/store"
)

func sampleRows() []store.UserWithRole {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	sexMale := true
	bday := time.Date(1990, 3, 15, 0, 0, 0, 0, time.UTC)
	avatar := "avatars/alice.png"
	return []store.UserWithRole{
		{
			User: store.User{
				ID: 1, Email: "alice@example.com", FirstName: "Alice", LastName: "Smith",
				IsActive: true, Sex: &sexMale, Birthday: &bday, Coin: 1250, Avatar: &avatar,
				LastLogin: &now, CreatedAt: now, UpdatedAt: now,
			},
			RoleName: "admin",
		},
		{
			User: store.User{
				ID: 2, Email: "bob@example.com", FirstName: "Bob", LastName: "Jones",
				IsActive: false, CreatedAt: now, UpdatedAt: now,
			},
			RoleName: "user",
		},
	}
}

func TestExportLimitBlocksBeforeFetch(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Directory.ExportMaxRows = 10
	usersStore := &mockUsersStore{countTotal: 11}
	svc, _ := newTestService(t, usersStore, cfg)

	_, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatCSV})
	e, ok := AsError(err)
	if !ok || e.Code != CodeExportLimitExceeded {
		t.Fatalf("expected EXPORT_LIMIT_EXCEEDED, got %v", err)
	}
	if usersStore.listCalls != 0 {
		t.Fatal("rows must not be fetched when the limit is exceeded")
	}
}

func TestExportCSV(t *testing.T) {
	usersStore := &mockUsersStore{countTotal: 2, listResult: sampleRows()}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatCSV})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(result.ContentType, "text/csv") {
		t.Fatalf("unexpected content type %q", result.ContentType)
	}
	if !strings.HasPrefix(result.Filename, "users-export-") || !strings.HasSuffix(result.Filename, ".csv") {
		t.Fatalf("unexpected filename %q", result.Filename)
	}
	body := string(result.Data)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "Full Name") || !strings.Contains(lines[0], "Has Avatar") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(body, "Alice Smith") || !strings.Contains(body, "Male") || !strings.Contains(body, "Yes") {
		t.Fatalf("flattened values missing from body:\n%s", body)
	}
	if !strings.Contains(body, "never") {
		t.Fatalf("bob should have activity never:\n%s", body)
	}
}

func TestExportFilenameHint(t *testing.T) {
	usersStore := &mockUsersStore{countTotal: 2, listResult: sampleRows()}
	svc, _ := newTestService(t, usersStore, nil)

	cases := []struct {
		hint string
		want string
	}{
		{"q3-review", "q3-review.csv"},
		{"q3-review.csv", "q3-review.csv"},
		{"../../etc/passwd", "passwd.csv"},
	}
	for _, tc := range cases {
		result, err := svc.Export(context.Background(), adminActor(), ExportRequest{
			Format:   codec.FormatCSV,
			Filename: tc.hint,
		})
		if err != nil {
			t.Fatalf("export with hint %q: %v", tc.hint, err)
		}
		if result.Filename != tc.want {
			t.Fatalf("hint %q: filename = %q, want %q", tc.hint, result.Filename, tc.want)
		}
	}

	// blank hint falls back to the dated default
	result, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatCSV, Filename: "  "})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(result.Filename, "users-export-") || !strings.HasSuffix(result.Filename, ".csv") {
		t.Fatalf("unexpected fallback filename %q", result.Filename)
	}
}

func TestExportJSONEnvelope(t *testing.T) {
	usersStore := &mockUsersStore{countTotal: 2, listResult: sampleRows()}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	var doc struct {
		Data     []map[string]any `json:"data"`
		Metadata struct {
			TotalRecords    int `json:"total_records"`
			ExportedRecords int `json:"exported_records"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(result.Data, &doc); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if doc.Metadata.TotalRecords != 2 || doc.Metadata.ExportedRecords != 2 {
		t.Fatalf("unexpected metadata: %+v", doc.Metadata)
	}
	if len(doc.Data) != 2 || doc.Data[0]["full_name"] != "Alice Smith" {
		t.Fatalf("unexpected data: %+v", doc.Data)
	}
	// coin is exported as a string to survive spreadsheet round-trips
	if doc.Data[0]["coin"] != "1250" {
		t.Fatalf("coin must be stringified, got %v", doc.Data[0]["coin"])
	}
}

func TestExportFieldSelection(t *testing.T) {
	usersStore := &mockUsersStore{countTotal: 2, listResult: sampleRows()}
	svc, _ := newTestService(t, usersStore, nil)

	result, err := svc.Export(context.Background(), adminActor(), ExportRequest{
		Format: codec.FormatCSV,
		Fields: []string{"email", "status"},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	if lines[0] != "Email,Status" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[2] != "bob@example.com,inactive" {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestExportUnknownField(t *testing.T) {
	svc, _ := newTestService(t, &mockUsersStore{}, nil)
	_, err := svc.Export(context.Background(), adminActor(), ExportRequest{
		Format: codec.FormatCSV,
		Fields: []string{"password_hash"},
	})
	e, ok := AsError(err)
	if !ok || e.Code != CodeValidationError {
		t.Fatalf("credential columns must never be exportable, got %v", err)
	}
}

func TestExportFormats(t *testing.T) {
	usersStore := &mockUsersStore{countTotal: 2, listResult: sampleRows()}
	svc, _ := newTestService(t, usersStore, nil)

	xlsx, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatExcel})
	if err != nil {
		t.Fatalf("xlsx export: %v", err)
	}
	if len(xlsx.Data) == 0 || !strings.HasSuffix(xlsx.Filename, ".xlsx") {
		t.Fatalf("unexpected xlsx result %q (%d bytes)", xlsx.Filename, len(xlsx.Data))
	}

	pdf, err := svc.Export(context.Background(), adminActor(), ExportRequest{Format: codec.FormatPDF})
	if err != nil {
		t.Fatalf("pdf export: %v", err)
	}
	if !strings.HasPrefix(string(pdf.Data), "%PDF") {
		t.Fatal("pdf export must produce a PDF document")
	}
}
