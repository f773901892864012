// Package export renders the pases ledger as a downloadable workbook.
package export

import (
	"errors"
	"fmt"
	"io"

	"github.com/avvvet/pases-service/internal/pasesvc/models"
	"github.com/xuri/excelize/v2"
)

const (
	FileName    = "pases.xlsx"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ErrExport = errors.New("export error")

var colWidths = []float64{28, 24, 8, 18, 40, 16}

// WriteWorkbook writes a header row and one row per record, in the given
// order, to a single Pases sheet.
func WriteWorkbook(w io.Writer, records []models.PassRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := render(f, records); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: write workbook: %w", ErrExport, err)
	}
	return nil
}

func render(f *excelize.File, records []models.PassRecord) error {
	if err := f.SetSheetName(f.GetSheetName(0), models.SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(models.SheetName)
	if err != nil {
		return err
	}

	// widths must be set before the first row
	for i, width := range colWidths {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return err
		}
	}

	header := make([]any, len(models.Header))
	for i, h := range models.Header {
		header[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	for i, r := range records {
		// the stream writer truncates long text without an error
		if err := models.CheckCells(r); err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Timestamp, r.Para, r.Pases, r.ID, r.Link, r.User}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	return sw.Flush()
}
