package users

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"afk-admin/core/auth"
	"afk-admin/core/codec"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

// canonicalImportFields is the closed set of column targets the import
// pipeline understands. Field mappings may only point at these.
var canonicalImportFields = map[string]bool{
	"email":      true,
	"first_name": true,
	"last_name":  true,
	"password":   true,
	"role":       true,
	"role_id":    true,
	"is_active":  true,
	"sex":        true,
	"birthday":   true,
	"address":    true,
	"locale":     true,
	"group_id":   true,
	"coin":       true,
}

type ImportOptions struct {
	UpdateExisting  bool              `json:"update_existing"`
	ValidateOnly    bool              `json:"validate_only"`
	SkipInvalidRows bool              `json:"skip_invalid_rows"`
	DefaultRole     string            `json:"default_role"`
	DefaultStatus   *bool             `json:"default_status"`
	FieldMapping    map[string]string `json:"field_mapping"`
}

// ParseImportOptions decodes the options form field. Absent fields take
// the permissive defaults; an unknown field-mapping target is rejected
// before any file parsing happens.
func ParseImportOptions(raw []byte) (ImportOptions, error) {
	opts := ImportOptions{SkipInvalidRows: true}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &opts); err != nil {
			return opts, NewError(CodeValidationError, "invalid import options: %v", err)
		}
	}
	mapping := make(map[string]string, len(opts.FieldMapping))
	for source, target := range opts.FieldMapping {
		source = strings.ToLower(strings.TrimSpace(source))
		target = strings.ToLower(strings.TrimSpace(target))
		if source == "" || target == "" {
			continue
		}
		if !canonicalImportFields[target] {
			return opts, NewError(CodeValidationError, "field mapping target %q is not an importable field", target)
		}
		mapping[source] = target
	}
	opts.FieldMapping = mapping
	return opts, nil
}

type ImportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type ImportIssue struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

type ImportSummary struct {
	TotalRows   int `json:"total_rows"`
	ValidRows   int `json:"valid_rows"`
	InvalidRows int `json:"invalid_rows"`
	Created     int `json:"created"`
	Updated     int `json:"updated"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

type ImportReport struct {
	Success  bool                `json:"success"`
	Code     Code                `json:"code,omitempty"`
	Summary  ImportSummary       `json:"summary"`
	Errors   []ImportIssue       `json:"errors,omitempty"`
	Warnings []ImportIssue       `json:"warnings,omitempty"`
	Preview  []map[string]string `json:"preview,omitempty"`
}

// rowPlan is the outcome of validating one row, ready to persist.
type rowPlan struct {
	row        int
	update     bool
	existingID int64
	password   string
	generated  bool
	user       store.User
}

// Import runs the two-stage pipeline: validate every row first, then
// persist. With ValidateOnly set the second stage is skipped entirely,
// so repeated validate calls never change the directory.
func (s *Service) Import(ctx context.Context, actor auth.Actor, file ImportFile, opts ImportOptions) (*ImportReport, error) {
	if err := s.authorize(actor, "create"); err != nil {
		return nil, err
	}
	if len(file.Data) == 0 {
		return nil, NewError(CodeImportFileInvalid, "file is empty")
	}
	if max := s.cfg.EffectiveImportMaxBytes(); int64(len(file.Data)) > max {
		return nil, NewError(CodeFileTooLarge, "file exceeds the %d byte limit", max)
	}
	format, ok := codec.DetectImportFormat(file.Name, file.ContentType)
	if !ok {
		return nil, NewError(CodeUnsupportedFileFormat, "only CSV and XLSX files can be imported")
	}
	rows, err := codec.DecodeImport(format, file.Data)
	if err != nil {
		return nil, NewError(CodeImportFileInvalid, "parse %s: %v", file.Name, err)
	}
	if len(rows) == 0 {
		return nil, NewError(CodeImportFileInvalid, "file has no data rows")
	}
	if max := s.cfg.EffectiveImportMaxRows(); len(rows) > max {
		return nil, NewError(CodeImportDataInvalid, "file has %d rows, the limit is %d", len(rows), max)
	}

	roleMap, err := s.roleMap(ctx)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "load roles: %v", err)
	}
	emailIndex, err := s.users.EmailIndex(ctx)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "load emails: %v", err)
	}

	report := &ImportReport{Summary: ImportSummary{TotalRows: len(rows)}}
	var plans []rowPlan
	seenEmails := make(map[string]int, len(rows))

	for _, row := range rows {
		plan, issues, warnings := s.planRow(row, opts, roleMap, emailIndex, seenEmails)
		report.Warnings = append(report.Warnings, warnings...)
		if len(issues) > 0 {
			report.Errors = append(report.Errors, issues...)
			report.Summary.InvalidRows++
			continue
		}
		if plan == nil {
			// duplicate handled as warning-skip
			report.Summary.ValidRows++
			report.Summary.Skipped++
			continue
		}
		report.Summary.ValidRows++
		plans = append(plans, *plan)
	}

	if !opts.SkipInvalidRows && report.Summary.InvalidRows > 0 {
		report.Code = CodeImportDataInvalid
		report.Summary.Created = 0
		report.Summary.Updated = 0
		report.Summary.Skipped = 0
		return report, nil
	}

	if opts.ValidateOnly {
		report.Success = report.Summary.ValidRows > 0 || report.Summary.InvalidRows == 0
		report.Preview = buildPreview(plans, s.cfg.EffectiveImportPreviewRows())
		return report, nil
	}

	for _, plan := range plans {
		if err := s.persistRow(ctx, plan); err != nil {
			report.Summary.Failed++
			report.Errors = append(report.Errors, ImportIssue{
				Row:     plan.row,
				Message: fmt.Sprintf("save failed: %v", err),
			})
			continue
		}
		if plan.update {
			report.Summary.Updated++
		} else {
			report.Summary.Created++
		}
	}

	sum := report.Summary
	report.Success = sum.Created+sum.Updated+sum.Skipped > 0
	s.audit(ctx, actor, "users.import",
		fmt.Sprintf("%s: %d rows, %d created, %d updated, %d skipped, %d invalid, %d failed",
			file.Name, sum.TotalRows, sum.Created, sum.Updated, sum.Skipped, sum.InvalidRows, sum.Failed))
	return report, nil
}

// planRow validates one row. A nil plan with no issues means the row
// was a duplicate resolved by skipping.
func (s *Service) planRow(row codec.Row, opts ImportOptions, roleMap map[string]store.Role,
	emailIndex map[string]int64, seenEmails map[string]int) (*rowPlan, []ImportIssue, []ImportIssue) {

	fields := applyFieldMapping(row.Fields, opts.FieldMapping)
	var issues, warnings []ImportIssue
	fail := func(field, value, format string, args ...any) {
		issues = append(issues, ImportIssue{Row: row.Number, Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
	}
	warn := func(field, format string, args ...any) {
		warnings = append(warnings, ImportIssue{Row: row.Number, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	email := utils.NormalizeEmail(fields["email"])
	if err := utils.ValidateEmail(email); err != nil {
		fail("email", fields["email"], "%v", err)
	}
	if first, ok := seenEmails[email]; ok && email != "" {
		fail("email", email, "duplicate of row %d in the same file", first)
	} else if email != "" {
		seenEmails[email] = row.Number
	}

	firstName := strings.TrimSpace(fields["first_name"])
	if err := utils.ValidateName("first_name", firstName); err != nil {
		fail("first_name", firstName, "%v", err)
	}
	lastName := strings.TrimSpace(fields["last_name"])
	if err := utils.ValidateName("last_name", lastName); err != nil {
		fail("last_name", lastName, "%v", err)
	}

	plan := rowPlan{
		row: row.Number,
		user: store.User{
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
			IsActive:  true,
			Address:   strings.TrimSpace(fields["address"]),
			Locale:    strings.TrimSpace(fields["locale"]),
		},
	}
	if opts.DefaultStatus != nil {
		plan.user.IsActive = *opts.DefaultStatus
	}

	plan.password = fields["password"]
	if plan.password == "" {
		plan.password = utils.GenerateTempPassword()
		plan.generated = true
		warn("password", "Generated temporary password")
	} else if err := utils.ValidatePassword(plan.password); err != nil {
		fail("password", "", "%v", err)
	}

	if v := fields["is_active"]; v != "" {
		active, err := parseBoolCell(v)
		if err != nil {
			fail("is_active", v, "%v", err)
		} else {
			plan.user.IsActive = active
		}
	}
	if v := fields["sex"]; v != "" {
		sex, err := parseSexCell(v)
		if err != nil {
			fail("sex", v, "%v", err)
		} else {
			plan.user.Sex = &sex
		}
	}
	if v := fields["birthday"]; v != "" {
		bday, err := utils.ParseDate(v)
		if err != nil {
			fail("birthday", v, "%v", err)
		} else if err := utils.ValidateBirthday(bday, utils.NowUTC()); err != nil {
			fail("birthday", v, "%v", err)
		} else {
			plan.user.Birthday = &bday
		}
	}
	if err := utils.ValidateAddress(plan.user.Address); err != nil {
		fail("address", "", "%v", err)
	}
	if v := fields["group_id"]; v != "" {
		gid, err := parseIntCell(v)
		if err != nil {
			fail("group_id", v, "invalid group id")
		} else {
			plan.user.GroupID = &gid
		}
	}
	if v := fields["coin"]; v != "" {
		coin, err := parseIntCell(v)
		if err != nil {
			fail("coin", v, "invalid coin value")
		} else {
			plan.user.Coin = coin
		}
	}

	plan.user.RoleID = resolveImportRole(fields, opts, roleMap, warn)

	if len(issues) > 0 {
		return nil, issues, warnings
	}

	// Duplicate resolution against the existing directory. Without
	// update_existing a duplicate is always skipped with a warning, so a
	// plain re-import stays harmless. A legacy skip_duplicates option
	// key in the request is ignored.
	if existingID, exists := emailIndex[email]; exists {
		if opts.UpdateExisting {
			plan.update = true
			plan.existingID = existingID
		} else {
			warn("email", "email already exists, skipping")
			return nil, nil, warnings
		}
	}
	return &plan, nil, warnings
}

// resolveImportRole picks role_id, then role name, then the default
// role. Unknown names degrade to the default with a warning instead of
// failing the row.
func resolveImportRole(fields map[string]string, opts ImportOptions,
	roleMap map[string]store.Role, warn func(field, format string, args ...any)) *int64 {

	defaultRole := func() *int64 {
		name := strings.ToLower(strings.TrimSpace(opts.DefaultRole))
		if name == "" {
			return nil
		}
		if role, ok := roleMap[name]; ok {
			return &role.ID
		}
		warn("role", "unknown default role %q", opts.DefaultRole)
		return nil
	}

	if v := fields["role_id"]; v != "" {
		id, err := parseIntCell(v)
		if err == nil {
			for _, role := range roleMap {
				if role.ID == id {
					return &role.ID
				}
			}
		}
		warn("role_id", "unknown role id %q, using default", v)
		return defaultRole()
	}
	if v := strings.TrimSpace(fields["role"]); v != "" {
		if role, ok := roleMap[strings.ToLower(v)]; ok {
			return &role.ID
		}
		warn("role", "unknown role %q, using default", v)
		return defaultRole()
	}
	return defaultRole()
}

// applyFieldMapping renames source columns to canonical field names.
// Codec row keys are lower-cased, so mapping sources are normalized the
// same way whether the options came through ParseImportOptions or were
// built by the caller.
func applyFieldMapping(fields map[string]string, mapping map[string]string) map[string]string {
	if len(mapping) == 0 {
		return fields
	}
	targets := make(map[string]string, len(mapping))
	for source, target := range mapping {
		targets[strings.ToLower(strings.TrimSpace(source))] = target
	}
	out := make(map[string]string, len(fields))
	for key, value := range fields {
		if target, ok := targets[key]; ok {
			out[target] = value
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}
	return out
}

func (s *Service) persistRow(ctx context.Context, plan rowPlan) error {
	ph, err := auth.HashPassword(plan.password, s.cfg.Pepper)
	if err != nil {
		return err
	}
	if !plan.update {
		u := plan.user
		u.PasswordHash = ph.Hash
		u.Salt = ph.Salt
		_, err := s.users.Create(ctx, &u)
		return err
	}

	existing, err := s.users.Get(ctx, plan.existingID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("user %d disappeared during import", plan.existingID)
	}
	existing.FirstName = plan.user.FirstName
	existing.LastName = plan.user.LastName
	existing.IsActive = plan.user.IsActive
	existing.Address = plan.user.Address
	existing.Locale = plan.user.Locale
	if plan.user.RoleID != nil {
		existing.RoleID = plan.user.RoleID
	}
	if plan.user.Sex != nil {
		existing.Sex = plan.user.Sex
	}
	if plan.user.Birthday != nil {
		existing.Birthday = plan.user.Birthday
	}
	if plan.user.GroupID != nil {
		existing.GroupID = plan.user.GroupID
	}
	if plan.user.Coin != 0 {
		existing.Coin = plan.user.Coin
	}
	if !plan.generated {
		// only overwrite credentials the file actually provided
		existing.PasswordHash = ph.Hash
		existing.Salt = ph.Salt
	}
	return s.users.Update(ctx, existing)
}

func buildPreview(plans []rowPlan, limit int) []map[string]string {
	if limit <= 0 || len(plans) == 0 {
		return nil
	}
	if len(plans) < limit {
		limit = len(plans)
	}
	preview := make([]map[string]string, 0, limit)
	for _, plan := range plans[:limit] {
		entry := map[string]string{
			"email":      plan.user.Email,
			"first_name": plan.user.FirstName,
			"last_name":  plan.user.LastName,
			"is_active":  codec.FormatCell(plan.user.IsActive),
			"password":   "[PROVIDED]",
		}
		if plan.generated {
			entry["password"] = "[GENERATED]"
		}
		if plan.update {
			entry["action"] = "update"
		} else {
			entry["action"] = "create"
		}
		preview = append(preview, entry)
	}
	return preview
}
