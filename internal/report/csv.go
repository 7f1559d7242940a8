// Package report exports sweep outcomes in the CSV schema consumed by the
// downstream analysis notebooks.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/talgya/citysim/internal/sweep"
)

var header = []string{"year", "population", "gini", "morale", "yield", "edu_rate", "tax_rate"}

// WriteCSV writes one row per grid combination: the final completed year of
// each run plus the education and tax rates that produced it.
func WriteCSV(w io.Writer, outcomes []sweep.Outcome) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, o := range outcomes {
		row := []string{
			strconv.Itoa(o.Final.Year),
			strconv.Itoa(o.Final.Population),
			strconv.FormatFloat(o.Final.Gini, 'f', 3, 64),
			strconv.FormatFloat(o.Final.Morale, 'f', 2, 64),
			strconv.Itoa(int(o.Final.GrossYield)),
			strconv.FormatFloat(o.EduRate, 'f', -1, 64),
			strconv.FormatFloat(o.TaxRate, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
