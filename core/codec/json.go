package codec

import (
	"encoding/json"
	"time"
)

type JSONMeta struct {
	TotalRecords    int       `json:"total_records"`
	ExportedRecords int       `json:"exported_records"`
	ExportDate      time.Time `json:"export_date"`
	Fields          []string  `json:"fields"`
}

type jsonDocument struct {
	Data     []map[string]any `json:"data"`
	Metadata JSONMeta         `json:"metadata"`
}

// EncodeJSON keeps native value types and wraps the records with export
// metadata.
func EncodeJSON(t Table, meta JSONMeta) ([]byte, error) {
	meta.Fields = t.Fields
	records := t.Records
	if records == nil {
		records = []map[string]any{}
	}
	return json.MarshalIndent(jsonDocument{Data: records, Metadata: meta}, "", "  ")
}
