package tabular

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

const wrapperKey = "agenda"

// Decode reads a whole table from r in the given format.
func Decode(r io.Reader, format Format) (Frame, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(r)
	case FormatJSON:
		return decodeJSON(r)
	case FormatYAML:
		return decodeYAML(r)
	case FormatXLSX:
		return decodeXLSX(r)
	}
	return Frame{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// fromRecords splits the first record off as header and drops blank rows.
func fromRecords(records [][]string) Frame {
	if len(records) == 0 {
		return Frame{}
	}
	f := Frame{Header: records[0]}
	for _, r := range records[1:] {
		if !blank(r) {
			f.Rows = append(f.Rows, r)
		}
	}
	return f
}

// =============================================================================
// CSV
// =============================================================================

func decodeCSV(r io.Reader) (Frame, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Frame{}, fmt.Errorf("decode csv: %w", err)
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return fromRecords(records), nil
}

// =============================================================================
// JSON
// =============================================================================

func decodeJSON(r io.Reader) (Frame, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Frame{}, fmt.Errorf("decode json: %w", err)
	}
	if obj, ok := raw.(map[string]any); ok {
		inner, found := obj[wrapperKey]
		if !found {
			return Frame{}, fmt.Errorf("decode json: object without %q list", wrapperKey)
		}
		raw = inner
	}
	list, ok := raw.([]any)
	if !ok {
		return Frame{}, errors.New("decode json: expected a list of objects")
	}

	objects := make([]map[string]any, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return Frame{}, fmt.Errorf("decode json: item %d is not an object", i)
		}
		objects = append(objects, obj)
	}
	return frameFromObjects(objects, jsonKeys(objects)), nil
}

// jsonKeys orders columns by first appearance. Keys new to the same object
// are sorted, since map iteration order is random.
func jsonKeys(objects []map[string]any) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, o := range objects {
		batch := make([]string, 0, len(o))
		for k := range o {
			if !seen[k] {
				seen[k] = true
				batch = append(batch, k)
			}
		}
		sort.Strings(batch)
		keys = append(keys, batch...)
	}
	return keys
}

func frameFromObjects(objects []map[string]any, keys []string) Frame {
	f := Frame{Header: keys}
	for _, o := range objects {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = jsonCell(o[k])
		}
		if !blank(row) {
			f.Rows = append(f.Rows, row)
		}
	}
	return f
}

func jsonCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// =============================================================================
// YAML
// =============================================================================

func decodeYAML(r io.Reader) (Frame, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, nil
		}
		return Frame{}, fmt.Errorf("decode yaml: %w", err)
	}

	node := &doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind == yaml.MappingNode {
		node = mappingValue(node, wrapperKey)
		if node == nil {
			return Frame{}, fmt.Errorf("decode yaml: mapping without %q list", wrapperKey)
		}
	}
	if node.Kind != yaml.SequenceNode {
		return Frame{}, errors.New("decode yaml: expected a list of mappings")
	}

	var (
		keys    []string
		index   = make(map[string]int)
		records []map[string]string
	)
	for i, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return Frame{}, fmt.Errorf("decode yaml: item %d is not a mapping", i)
		}
		rec := make(map[string]string, len(item.Content)/2)
		for j := 0; j+1 < len(item.Content); j += 2 {
			k := item.Content[j].Value
			if _, ok := index[k]; !ok {
				index[k] = len(keys)
				keys = append(keys, k)
			}
			rec[k] = yamlCell(item.Content[j+1])
		}
		records = append(records, rec)
	}

	f := Frame{Header: keys}
	for _, rec := range records {
		row := make([]string, len(keys))
		for k, v := range rec {
			row[index[k]] = v
		}
		if !blank(row) {
			f.Rows = append(f.Rows, row)
		}
	}
	return f, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func yamlCell(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		if n.Tag == "!!null" {
			return ""
		}
		return n.Value
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return ""
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// =============================================================================
// XLSX
// =============================================================================

// decodeXLSX reads the first worksheet. Cells come back formatted the way
// Excel would display them.
func decodeXLSX(r io.Reader) (Frame, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decode xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Frame{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Frame{}, fmt.Errorf("decode xlsx: %w", err)
	}
	return fromRecords(rows), nil
}
