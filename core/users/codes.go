package users

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the closed set of machine-readable failure codes the user
// directory API returns. Handlers translate them to HTTP statuses with
// HTTPStatus; nothing else invents codes.
type Code string

const (
	CodeUnauthorized            Code = "UNAUTHORIZED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeValidationError         Code = "VALIDATION_ERROR"
	CodeInvalidRole             Code = "INVALID_ROLE"
	CodeUserNotFound            Code = "USER_NOT_FOUND"
	CodeEmailExists             Code = "EMAIL_ALREADY_EXISTS"
	CodeCannotBanSelf           Code = "CANNOT_BAN_SELF"
	CodeCannotDeleteSelf        Code = "CANNOT_DELETE_SELF"
	CodeTooManySelected         Code = "TOO_MANY_USERS_SELECTED"
	CodeBulkOperationFailed     Code = "BULK_OPERATION_FAILED"
	CodeFileTooLarge            Code = "FILE_TOO_LARGE"
	CodeUnsupportedFileFormat   Code = "UNSUPPORTED_FILE_FORMAT"
	CodeImportFileInvalid       Code = "IMPORT_FILE_INVALID"
	CodeImportDataInvalid       Code = "IMPORT_DATA_INVALID"
	CodeInvalidExportFormat     Code = "INVALID_EXPORT_FORMAT"
	CodeExportLimitExceeded     Code = "EXPORT_LIMIT_EXCEEDED"
	CodeDatabaseError           Code = "DATABASE_ERROR"
	CodeInternal                Code = "INTERNAL_SERVER_ERROR"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into the directory error type.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInsufficientPermissions:
		return http.StatusForbidden
	case CodeUserNotFound:
		return http.StatusNotFound
	case CodeEmailExists:
		return http.StatusConflict
	case CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeDatabaseError, CodeInternal, CodeBulkOperationFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
