package codec

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// DecodeCSV parses data into rows keyed by the normalized header. Short
// records are padded; a row wider than the header is an error.
func DecodeCSV(data []byte) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = normalizeHeader(h)
	}

	var rows []Row
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if len(record) > len(keys) {
			return nil, fmt.Errorf("row %d: has %d columns, header has %d", line, len(record), len(keys))
		}
		fields := make(map[string]string, len(keys))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if i < len(record) {
				fields[key] = strings.TrimSpace(record[i])
			} else {
				fields[key] = ""
			}
		}
		rows = append(rows, Row{Number: line, Fields: fields})
	}
	return rows, nil
}

func EncodeCSV(t Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		header[i] = FieldLabel(f)
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Fields))
	for _, rec := range t.Records {
		for i, f := range t.Fields {
			record[i] = FormatCell(rec[f])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
