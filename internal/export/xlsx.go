package export

import (
	"fmt"
	"io"

	"github.com/leapstack-labs/lensgrid/internal/grid"
	"github.com/xuri/excelize/v2"
)

// ErrTooManyRows is returned when a grid does not fit in one worksheet.
var ErrTooManyRows = fmt.Errorf("grid exceeds the worksheet limit of %d rows", excelize.TotalRows-1)

func writeXLSX(w io.Writer, gen *grid.Generator, p grid.Params, counts grid.Counts, opts Options) (int, error) {
	if counts.Total+1 > excelize.TotalRows {
		return 0, fmt.Errorf("%w: %d points", ErrTooManyRows, counts.Total)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := opts.sheet()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return 0, fmt.Errorf("invalid sheet name %q: %w", sheet, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet writer: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	row := 1
	err = gen.Walk(p, func(pt grid.Point) error {
		row++
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, []interface{}{pt.SPH, pt.CYL, pt.Axis})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write row %d: %w", row, err)
	}

	if err := sw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return row - 1, nil
}
