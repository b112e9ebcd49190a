package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"paperbroker/internal/broker"
)

// WriteEquityCSV writes a date,equity,return series suitable for
// plotting. The first row's return is left empty.
func WriteEquityCSV(path string, settlements []broker.Settlement) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create equity csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"date", "equity", "return"}); err != nil {
		return err
	}
	returns := Returns(settlements)
	for i, s := range settlements {
		ret := ""
		if i > 0 {
			ret = strconv.FormatFloat(returns[i-1], 'f', -1, 64)
		}
		record := []string{
			s.At.Format("2006-01-02"),
			strconv.FormatFloat(s.TotalEquity, 'f', 2, 64),
			ret,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
