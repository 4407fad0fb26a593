package inputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFile is returned for input files that are not JSON, YAML or XLSX.
var ErrUnsupportedFile = errors.New("unsupported input file")

// XLSX input files hold one row per field under these headers.
const (
	FieldColumn = "Field"
	ValueColumn = "Value"
)

// Supported reports whether path has an extension LoadFile understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".xlsx":
		return true
	}
	return false
}

// LoadFile reads a key to value mapping from a JSON, YAML or XLSX file.
// Values keep their decoded type; use Form.Apply to merge them.
func LoadFile(path string) (map[string]any, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
		return loadYAML(path)
	case ".xlsx":
		return loadXLSX(path)
	case ".xls":
		return nil, fmt.Errorf("%w: %s: legacy .xls workbooks are not supported, save as .xlsx", ErrUnsupportedFile, path)
	default:
		return nil, fmt.Errorf("%w: %s: only .json, .yaml or .xlsx files are supported", ErrUnsupportedFile, path)
	}
}

// loadYAML decodes JSON and YAML alike; JSON is valid YAML.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func loadXLSX(path string) (map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheets[0])
	}

	fieldCol, valueCol := -1, -1
	for i, h := range rows[0] {
		switch strings.TrimSpace(h) {
		case FieldColumn:
			fieldCol = i
		case ValueColumn:
			valueCol = i
		}
	}
	if fieldCol < 0 || valueCol < 0 {
		return nil, fmt.Errorf("%s: sheet %q needs %q and %q header columns", path, sheets[0], FieldColumn, ValueColumn)
	}

	m := make(map[string]any)
	for _, row := range rows[1:] {
		if fieldCol >= len(row) || valueCol >= len(row) {
			continue
		}
		key := strings.TrimSpace(row[fieldCol])
		if key == "" {
			continue
		}
		m[key] = strings.TrimSpace(row[valueCol])
	}
	return m, nil
}

// SaveFile writes the form to a JSON, YAML or XLSX file that LoadFile
// reads back.
func SaveFile(path string, f Form) error {
	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(orderedJSON(f), "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(orderedYAML(f))
	case ".xlsx":
		return saveXLSX(path, f)
	default:
		return fmt.Errorf("%w: %s: only .json, .yaml or .xlsx files are supported", ErrUnsupportedFile, path)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// orderedJSON keeps field order in the encoded object.
type orderedJSON Form

func (o orderedJSON) MarshalJSON() ([]byte, error) {
	f := Form(o)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		v, _ := f.Get(k)
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func orderedYAML(f Form) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range Keys() {
		v, _ := f.Get(k)
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v, Style: yaml.DoubleQuotedStyle},
		)
	}
	return node
}

func saveXLSX(path string, f Form) error {
	wb := excelize.NewFile()
	defer func() { _ = wb.Close() }()

	const sheet = "Sheet1"
	if err := wb.SetSheetRow(sheet, "A1", &[]interface{}{FieldColumn, ValueColumn}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, k := range Keys() {
		v, _ := f.Get(k)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cell, &[]interface{}{k, v}); err != nil {
			return fmt.Errorf("failed to write %s: %w", k, err)
		}
	}
	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
