// Package export writes lens grids to tabular files.
//
// Every format has the same three columns, SPH, CYL and Axis, with one row
// per grid point in emission order. Points are streamed from the generator
// into the sink; the grid is never held in memory as a whole.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/lensgrid/internal/grid"
)

// Format identifies an output file format.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Columns are the header names of every export.
var Columns = []string{"SPH", "CYL", "Axis"}

// ErrUnknownFormat is returned for unsupported format names or extensions.
var ErrUnknownFormat = errors.New("unknown export format")

// Formats returns all supported formats.
func Formats() []Format {
	return []Format{FormatXLSX, FormatCSV, FormatJSON}
}

// ParseFormat parses a format name. Matching is case-insensitive and a
// leading dot is ignored, so ".XLSX" is accepted.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want xlsx, csv or json)", ErrUnknownFormat, s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", false
	}
	return f, true
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Options controls export output.
type Options struct {
	// Sheet is the XLSX worksheet name. Empty means "Sheet1".
	Sheet string
}

func (o Options) sheet() string {
	if o.Sheet == "" {
		return "Sheet1"
	}
	return o.Sheet
}

// Result summarizes a finished export.
type Result struct {
	Path   string      `json:"path,omitempty"`
	Format Format      `json:"format"`
	Rows   int         `json:"rows"`
	Counts grid.Counts `json:"counts"`
}

// Write streams the grid for p to w in the given format.
func Write(w io.Writer, format Format, gen *grid.Generator, p grid.Params, opts Options) (*Result, error) {
	counts, err := gen.Count(p)
	if err != nil {
		return nil, err
	}

	var rows int
	switch format {
	case FormatXLSX:
		rows, err = writeXLSX(w, gen, p, counts, opts)
	case FormatCSV:
		rows, err = writeCSV(w, gen, p)
	case FormatJSON:
		rows, err = writeJSON(w, gen, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}

	return &Result{Format: format, Rows: rows, Counts: counts}, nil
}

// WriteFile exports the grid to path. The file is written to a temporary
// file in the same directory and renamed into place, so a failed export
// never leaves a partial file behind.
func WriteFile(path string, format Format, gen *grid.Generator, p grid.Params, opts Options) (*Result, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".lensgrid-*"+format.Ext())
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	res, err := Write(tmp, format, gen, p, opts)
	if err != nil {
		_ = tmp.Close()
		return nil, err
	}
	// CreateTemp opens with 0600; exports get the usual mode for a created file.
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to set mode of %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("failed to move export into place at %s: %w", path, err)
	}

	res.Path = path
	return res, nil
}
