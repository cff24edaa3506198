package codec

import (
	"path/filepath"
	"strings"
)

// ImportFormat identifies the tabular input flavors the import pipeline
// accepts.
type ImportFormat string

const (
	ImportCSV  ImportFormat = "csv"
	ImportXLSX ImportFormat = "xlsx"
)

var xlsxMIMEs = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel": true,
}

var csvMIMEs = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// DetectImportFormat resolves format from the filename extension first,
// falling back to the declared content type.
func DetectImportFormat(filename, contentType string) (ImportFormat, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ImportCSV, true
	case ".xlsx":
		return ImportXLSX, true
	}
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if xlsxMIMEs[mime] {
		return ImportXLSX, true
	}
	if csvMIMEs[mime] {
		return ImportCSV, true
	}
	return "", false
}

// DecodeImport dispatches to the decoder for the detected format.
func DecodeImport(format ImportFormat, data []byte) ([]Row, error) {
	if format == ImportXLSX {
		return DecodeXLSX(data)
	}
	return DecodeCSV(data)
}
