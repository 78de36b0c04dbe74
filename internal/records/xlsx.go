package records

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"dailyledger/internal/core"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Ledger"

// numFmtCurrency is the built-in "#,##0.00" format.
const numFmtCurrency = 4

// WriteXLSX writes recs as a single-sheet workbook with a bold, frozen header
// row. Amounts are stored as numbers so they can be summed in the sheet.
func WriteXLSX(w io.Writer, recs []core.LedgerRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range recs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.Date.String()}
		for j, a := range r.Amounts() {
			if j == 6 {
				values = append(values, r.Orders)
			}
			values = append(values, a.InexactFloat64())
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %s: %w", r.Date, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	if len(recs) > 0 {
		moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtCurrency})
		if err != nil {
			return fmt.Errorf("create currency style: %w", err)
		}
		last := fmt.Sprint(len(recs) + 1)
		// Column H holds orders, which stay plain integers.
		if err := f.SetCellStyle(SheetName, "B2", "G"+last, moneyStyle); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "I2", lastCol+last, moneyStyle); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", lastCol, 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadXLSX reads the first worksheet of a workbook laid out like WriteXLSX's
// output. Cell formatting is ignored.
func ReadXLSX(r io.Reader) ([]core.LedgerRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	normalizeSerialDates(rows)
	return decodeRows(rows[0], rows[1:], 2)
}

// normalizeSerialDates rewrites date cells stored as spreadsheet serial
// numbers, as they are after someone retypes a date in Excel.
func normalizeSerialDates(rows [][]string) {
	col := -1
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), ColDate) {
			col = i
		}
	}
	if col < 0 {
		return
	}
	for _, cols := range rows[1:] {
		if col >= len(cols) {
			continue
		}
		serial, err := strconv.ParseFloat(strings.TrimSpace(cols[col]), 64)
		if err != nil {
			continue
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			continue
		}
		cols[col] = t.Format(core.DateLayout)
	}
}
