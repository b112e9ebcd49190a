package replay

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PriceBar is one price observation for one instrument.
type PriceBar struct {
	Code  string    `json:"code"`
	At    time.Time `json:"at"`
	Price float64   `json:"price"`
}

// Action names what a script row asks the account to do.
type Action string

const (
	ActionBuy    Action = "buy"
	ActionSell   Action = "sell"
	ActionCancel Action = "cancel"
)

// ScriptRow is one instruction from the order script. Cancel rows
// target every pending order for the code; price and quantity are
// ignored for them.
type ScriptRow struct {
	At       time.Time
	Code     string
	Action   Action
	Price    float64
	Quantity int64
}

// LoadBars reads a price CSV with columns: time,code,price. The first
// row is treated as a header. Rows come back sorted by time.
func LoadBars(path string) ([]PriceBar, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	bars := make([]PriceBar, 0, len(records))
	for i, record := range records {
		if len(record) < 3 {
			return nil, fmt.Errorf("prices row %d: expected 3 columns, got %d", i+2, len(record))
		}
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("prices row %d: parse time: %w", i+2, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("prices row %d: parse price: %w", i+2, err)
		}
		bars = append(bars, PriceBar{
			Code:  strings.TrimSpace(record[1]),
			At:    at,
			Price: price,
		})
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].At.Before(bars[j].At) })
	return bars, nil
}

// LoadScript reads an order script CSV with columns:
// time,code,action,price,quantity. Rows come back sorted by time.
func LoadScript(path string) ([]ScriptRow, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	rows := make([]ScriptRow, 0, len(records))
	for i, record := range records {
		if len(record) < 5 {
			return nil, fmt.Errorf("orders row %d: expected 5 columns, got %d", i+2, len(record))
		}
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("orders row %d: parse time: %w", i+2, err)
		}
		action := Action(strings.ToLower(strings.TrimSpace(record[2])))
		switch action {
		case ActionBuy, ActionSell, ActionCancel:
		default:
			return nil, fmt.Errorf("orders row %d: unknown action %q", i+2, record[2])
		}
		row := ScriptRow{
			At:     at,
			Code:   strings.TrimSpace(record[1]),
			Action: action,
		}
		if action != ActionCancel {
			row.Price, err = strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
			if err != nil {
				return nil, fmt.Errorf("orders row %d: parse price: %w", i+2, err)
			}
			row.Quantity, err = strconv.ParseInt(strings.TrimSpace(record[4]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("orders row %d: parse quantity: %w", i+2, err)
			}
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.Before(rows[j].At) })
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv file %s", path)
	}
	return records[1:], nil
}
