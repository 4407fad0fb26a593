package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/leapstack-labs/lensgrid/internal/grid"
)

// FormatValue renders a coordinate the way text exports do: the shortest
// representation that parses back to the same float.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(w io.Writer, gen *grid.Generator, p grid.Params) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	record := make([]string, len(Columns))
	err := gen.Walk(p, func(pt grid.Point) error {
		record[0] = FormatValue(pt.SPH)
		record[1] = FormatValue(pt.CYL)
		record[2] = FormatValue(pt.Axis)
		rows++
		return cw.Write(record)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write row %d: %w", rows, err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush csv: %w", err)
	}
	return rows, nil
}

// writeJSON streams a JSON array of points, one object per line.
func writeJSON(w io.Writer, gen *grid.Generator, p grid.Params) (int, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("["); err != nil {
		return 0, err
	}

	rows := 0
	err := gen.Walk(p, func(pt grid.Point) error {
		b, err := json.Marshal(pt)
		if err != nil {
			return err
		}
		sep := ",\n"
		if rows == 0 {
			sep = "\n"
		}
		if _, err := bw.WriteString(sep); err != nil {
			return err
		}
		if _, err := bw.Write(b); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to write point %d: %w", rows, err)
	}

	if _, err := bw.WriteString("\n]\n"); err != nil {
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush json: %w", err)
	}
	return rows, nil
}
