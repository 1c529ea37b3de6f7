// Package export renders the transaction log as JSON, CSV and XLSX
// downloads.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"expensebook/internal/core"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// SheetName is the worksheet holding exported transactions.
	SheetName = "Transactions"
)

var csvHeader = []string{"Date", "Amount", "Description", "Category"}

// WriteJSON dumps the whole transaction collection, inactive entries
// included.
func WriteJSON(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(txs)
}

// WriteCSV writes one line per active transaction. The description is
// always double-quoted with inner quotes doubled.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(csvHeader, ",") + "\n")
	for _, tx := range txs {
		if !tx.Active {
			continue
		}
		e := tx.Expense
		fmt.Fprintf(bw, "%s,%s,%s,%s\n",
			e.Date.String(),
			e.Amount.String(),
			quote(e.Description),
			csvField(e.Category))
	}
	return bw.Flush()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}

// WriteXLSX writes the active transactions to a single-sheet workbook.
func WriteXLSX(w io.Writer, txs []core.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := fillSheet(f, txs); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter is the part of *excelize.File used to lay out the sheet.
type sheetWriter interface {
	SetSheetRow(sheet, cell string, slice interface{}) error
	SetColWidth(sheet, startCol, endCol string, width float64) error
}

func fillSheet(sw sheetWriter, txs []core.Transaction) error {
	headers := []any{"Date", "Amount", "Description", "Category", "Payment Method"}
	if err := sw.SetSheetRow(SheetName, "A1", &headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, tx := range txs {
		if !tx.Active {
			continue
		}
		e := tx.Expense
		amount, _ := e.Amount.Decimal().Float64()
		values := []any{e.Date.String(), amount, e.Description, e.Category, e.PaymentMethod}
		cell := fmt.Sprintf("A%d", row)
		if err := sw.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d (transaction %s): %w", row, tx.ID, err)
		}
		row++
	}

	for _, col := range []struct {
		name  string
		width float64
	}{{"A", 12}, {"B", 12}, {"C", 30}, {"D", 15}, {"E", 15}} {
		if err := sw.SetColWidth(SheetName, col.name, col.name, col.width); err != nil {
			return fmt.Errorf("set column %s width: %w", col.name, err)
		}
	}
	return nil
}
