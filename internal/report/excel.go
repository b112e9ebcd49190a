package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"paperbroker/internal/broker"
)

const (
	sheetSettlements  = "Settlements"
	sheetTransactions = "Transactions"
)

// ExportExcel writes the settlement series and the fill history into a
// two-sheet workbook at path.
func ExportExcel(path string, settlements []broker.Settlement, fills []broker.FillRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetSettlements)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Total Equity", "Available Cash", "Frozen Cash", "Position Value", "Floating P&L"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetSettlements, cell, header)
	}
	for i, s := range settlements {
		row := i + 2
		positionValue := s.TotalEquity - s.AvailableCash - s.FrozenCash
		f.SetCellValue(sheetSettlements, fmt.Sprintf("A%d", row), s.At.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetSettlements, fmt.Sprintf("B%d", row), s.TotalEquity)
		f.SetCellValue(sheetSettlements, fmt.Sprintf("C%d", row), s.AvailableCash)
		f.SetCellValue(sheetSettlements, fmt.Sprintf("D%d", row), s.FrozenCash)
		f.SetCellValue(sheetSettlements, fmt.Sprintf("E%d", row), positionValue)
		f.SetCellValue(sheetSettlements, fmt.Sprintf("F%d", row), s.FloatingProfit)
	}
	f.SetColWidth(sheetSettlements, "A", "A", 20)
	f.SetColWidth(sheetSettlements, "B", "F", 15)

	if _, err := f.NewSheet(sheetTransactions); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	headers = []string{"Time", "Order ID", "Code", "Direction", "Price", "Quantity", "Commission", "Tax"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetTransactions, cell, header)
	}
	for i, fill := range fills {
		row := i + 2
		f.SetCellValue(sheetTransactions, fmt.Sprintf("A%d", row), fill.FilledAt.Format("2006-01-02 15:04:05"))
		f.SetCellValue(sheetTransactions, fmt.Sprintf("B%d", row), fill.OrderID)
		f.SetCellValue(sheetTransactions, fmt.Sprintf("C%d", row), fill.Code)
		f.SetCellValue(sheetTransactions, fmt.Sprintf("D%d", row), string(fill.Direction))
		f.SetCellValue(sheetTransactions, fmt.Sprintf("E%d", row), fill.Price)
		f.SetCellValue(sheetTransactions, fmt.Sprintf("F%d", row), fill.Quantity)
		f.SetCellValue(sheetTransactions, fmt.Sprintf("G%d", row), fill.Commission)
		f.SetCellValue(sheetTransactions, fmt.Sprintf("H%d", row), fill.Tax)
	}
	f.SetColWidth(sheetTransactions, "A", "B", 20)
	f.SetColWidth(sheetTransactions, "C", "H", 12)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
