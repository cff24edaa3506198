package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"afk-admin/core/codec"
	"afk-admin/core/users"
)

const (
	bulkTimeout     = 10 * time.Second
	transferTimeout = 2 * time.Minute
)

type bulkPayload struct {
	Operation string  `json:"operation"`
	UserIDs   []int64 `json:"user_ids"`
	RoleID    int64   `json:"role_id"`
}

// Bulk executes ban/unban/delete/assign_role over a selection. Mixed
// outcomes return 207 Multi-Status with per-id failures.
func (h *UsersHandlers) Bulk(w http.ResponseWriter, r *http.Request) {
	var payload bulkPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	op, err := users.ParseOperation(payload.Operation, payload.RoleID)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bulkTimeout)
	defer cancel()
	result, err := h.directory.Bulk(ctx, actorFromCtx(r), users.BulkRequest{Op: op, TargetIDs: payload.UserIDs})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Partial {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func (h *UsersHandlers) Import(w http.ResponseWriter, r *http.Request) {
	// one extra MiB of slack for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, 11<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, users.NewError(users.CodeFileTooLarge, "upload too large or malformed"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, users.NewError(users.CodeImportFileInvalid, "missing file field"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, users.NewError(users.CodeImportFileInvalid, "read upload: %v", err))
		return
	}
	opts, err := users.ParseImportOptions([]byte(r.FormValue("options")))
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), transferTimeout)
	defer cancel()
	report, err := h.directory.Import(ctx, actorFromCtx(r), users.ImportFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if report.Code != "" {
		status = users.NewError(report.Code, "").HTTPStatus()
	}
	writeJSON(w, status, report)
}

func (h *UsersHandlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format, err := codec.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, users.NewError(users.CodeInvalidExportFormat, "%v", err))
		return
	}
	var fields []string
	if raw := strings.TrimSpace(q.Get("fields")); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), transferTimeout)
	defer cancel()
	result, err := h.directory.Export(ctx, actorFromCtx(r), users.ExportRequest{
		Format:   format,
		Fields:   fields,
		Filter:   userFilterFromQuery(q.Get),
		Filename: q.Get("filename"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
