package users

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"afk-admin/core/auth"
	"afk-admin/core/codec"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

// exportFields is the default selection and its order.
var exportFields = []string{
	"id", "email", "first_name", "last_name", "full_name", "status",
	"activity_status", "role_name", "sex", "age", "birthday", "address",
	"locale", "group_id", "coin", "has_avatar", "last_login", "created_at",
}

var exportFieldSet = func() map[string]bool {
	m := make(map[string]bool, len(exportFields))
	for _, f := range exportFields {
		m[f] = true
	}
	return m
}()

type ExportRequest struct {
	Format   codec.Format
	Fields   []string
	Filter   store.UserFilter
	Filename string // optional download name, extension appended if missing
}

type ExportResult struct {
	Data        []byte
	ContentType string
	Filename    string
}

// Export flattens the filtered directory into the requested format. The
// row count is checked before any rows are fetched; exceeding the limit
// fails the whole request rather than truncating silently.
func (s *Service) Export(ctx context.Context, actor auth.Actor, req ExportRequest) (*ExportResult, error) {
	if err := s.authorize(actor, "read"); err != nil {
		return nil, err
	}
	if req.Format == "" {
		return nil, NewError(CodeInvalidExportFormat, "format is required")
	}
	fields := req.Fields
	if len(fields) == 0 {
		fields = exportFields
	} else {
		for _, f := range fields {
			if !exportFieldSet[f] {
				return nil, NewError(CodeValidationError, "unknown export field %q", f)
			}
		}
	}

	now := utils.NowUTC()
	req.Filter.Now = now
	req.Filter.OnlineWindow = s.cfg.EffectiveOnlineWindow()

	total, err := s.users.CountFiltered(ctx, req.Filter)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "count users: %v", err)
	}
	if max := s.cfg.EffectiveExportMaxRows(); total > max {
		return nil, NewError(CodeExportLimitExceeded,
			"export of %d rows exceeds the limit of %d, narrow the filter", total, max)
	}

	rows, err := s.users.ListFiltered(ctx, req.Filter, 0, 0)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "list users: %v", err)
	}

	table := codec.Table{Fields: fields, Records: make([]map[string]any, 0, len(rows))}
	window := s.cfg.EffectiveOnlineWindow()
	for _, row := range rows {
		table.Records = append(table.Records, exportRecord(row, now, window, fields))
	}

	var data []byte
	switch req.Format {
	case codec.FormatCSV:
		data, err = codec.EncodeCSV(table)
	case codec.FormatJSON:
		data, err = codec.EncodeJSON(table, codec.JSONMeta{
			TotalRecords:    total,
			ExportedRecords: len(rows),
			ExportDate:      now,
		})
	case codec.FormatExcel:
		data, err = codec.EncodeXLSX(table)
	case codec.FormatPDF:
		data, err = codec.EncodePDF(table, "User Directory Export")
	default:
		return nil, NewError(CodeInvalidExportFormat, "unknown export format %q", req.Format)
	}
	if err != nil {
		return nil, NewError(CodeInternal, "encode %s export: %v", req.Format, err)
	}

	s.audit(ctx, actor, "users.export",
		fmt.Sprintf("%d rows as %s", len(rows), req.Format))
	return &ExportResult{
		Data:        data,
		ContentType: req.Format.MIME(),
		Filename:    exportFilename(req.Filename, req.Format, now),
	}, nil
}

// exportFilename honors the caller's download-name hint, falling back to
// a dated default. Any directory part is dropped and the format's
// extension is appended when the hint lacks it.
func exportFilename(hint string, format codec.Format, now time.Time) string {
	name := path.Base(strings.TrimSpace(hint))
	if name == "." || name == "/" {
		name = ""
	}
	if name == "" {
		name = "users-export-" + now.Format("2006-01-02")
	}
	if ext := "." + format.Ext(); !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}
	return name
}

// flattenUser computes the derived, human-readable projection of a user
// shared by the listing API and every export format.
func flattenUser(row store.UserWithRole, now time.Time, window time.Duration) UserView {
	v := UserView{
		ID:        row.ID,
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		FullName:  strings.TrimSpace(row.FirstName + " " + row.LastName),
		IsActive:  row.IsActive,
		Status:    "inactive",
		RoleID:    row.RoleID,
		RoleName:  row.RoleName,
		Address:   row.Address,
		Locale:    row.Locale,
		GroupID:   row.GroupID,
		Coin:      strconv.FormatInt(row.Coin, 10),
		HasAvatar: row.Avatar != nil && *row.Avatar != "",
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: row.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if row.IsActive {
		v.Status = "active"
	}
	if row.Sex != nil {
		sex := "Female"
		if *row.Sex {
			sex = "Male"
		}
		v.Sex = &sex
	}
	if row.Birthday != nil {
		bday := row.Birthday.UTC().Format("2006-01-02")
		v.Birthday = &bday
		age := ageFrom(*row.Birthday, now)
		v.Age = &age
	}
	switch {
	case row.LastLogin == nil:
		v.ActivityStatus = "never"
	case row.LastLogin.After(now.Add(-window)):
		v.ActivityStatus = "online"
	default:
		v.ActivityStatus = "offline"
	}
	if row.LastLogin != nil {
		ts := row.LastLogin.UTC().Format(time.RFC3339)
		v.LastLogin = &ts
	}
	if row.LastLogout != nil {
		ts := row.LastLogout.UTC().Format(time.RFC3339)
		v.LastLogout = &ts
	}
	return v
}

func exportRecord(row store.UserWithRole, now time.Time, window time.Duration, fields []string) map[string]any {
	v := flattenUser(row, now, window)
	all := map[string]any{
		"id":              v.ID,
		"email":           v.Email,
		"first_name":      v.FirstName,
		"last_name":       v.LastName,
		"full_name":       v.FullName,
		"status":          v.Status,
		"activity_status": v.ActivityStatus,
		"role_name":       v.RoleName,
		"sex":             deref(v.Sex),
		"age":             derefInt(v.Age),
		"birthday":        deref(v.Birthday),
		"address":         v.Address,
		"locale":          v.Locale,
		"group_id":        derefInt64(v.GroupID),
		"coin":            v.Coin,
		"has_avatar":      yesNo(v.HasAvatar),
		"last_login":      deref(v.LastLogin),
		"created_at":      v.CreatedAt,
	}
	record := make(map[string]any, len(fields))
	for _, f := range fields {
		record[f] = all[f]
	}
	return record
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func deref(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
