/*
tabular - Decoding uploaded tables and encoding report sheets

PURPOSE:
  Imports arrive as CSV, JSON, YAML or Excel files with loosely named
  columns. This package turns any of them into a Frame (header + rows of
  strings) and leaves column interpretation to the caller. Reports go the
  other way: a list of Sheets written as one XLSX workbook or one CSV.

CELL TEXT:
  Cells keep their source text where the format allows it. A YAML "007"
  stays "007"; JSON numbers are decoded with UseNumber so 100 stays "100"
  rather than "1e+02".

JSON AND YAML SHAPES:
  Either a list of objects, or an object with an "agenda" key holding
  that list. YAML keeps the document's key order; JSON keys are ordered
  by first appearance and sorted within each object.

SEE ALSO:
  - agenda/importer.go: Resolves Frame columns to reservation fields
  - agenda/report.go: Produces Sheets
*/
package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for unknown file types.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Format names an input or output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts a format name or a bare extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx", "xlsm", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename picks the format from the file extension.
func FormatFromFilename(name string) (Format, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return ParseFormat(ext)
}

// ContentType is the MIME type for writing f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatYAML:
		return "application/yaml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// =============================================================================
// FRAME
// =============================================================================

// Frame is a decoded table. Rows may be shorter than Header.
type Frame struct {
	Header []string
	Rows   [][]string
}

// Cell returns row[col] trimmed, or "" when the row is short or col < 0.
func (f Frame) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// Len is the number of data rows.
func (f Frame) Len() int { return len(f.Rows) }

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// SHEET
// =============================================================================

// Sheet is a named table for export. Cells may be strings or numbers.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}
