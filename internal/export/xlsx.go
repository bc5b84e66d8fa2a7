// Package export renders the report projection as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/tarisrizki/provisioning-telkom/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Report"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var reportHeaders = []any{
	"ORDER ID", "WORKORDER", "CHANNEL", "DATE CREATED", "BOOKING DATE", "SERVICE AREA",
	"BRANCH", "CUSTOMER NAME", "STATUS BIMA", "UPDATE LAPANGAN", "TINJUT", "MANJA",
}

func reportCells(r models.ReportRow) []any {
	return []any{
		r.OrderID, r.WorkOrder, r.Channel, r.DateCreated, r.BookingDate, r.ServiceArea,
		r.Branch, r.CustomerName, r.StatusBima, r.UpdateLapangan, r.Tinjut, r.Manja,
	}
}

// WriteReport writes rows to w as a single-sheet workbook with a header row.
func WriteReport(w io.Writer, rows []models.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}
	if err := sw.SetRow("A1", reportHeaders); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, reportCells(r)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// FileName is the download name for a report generated on day (YYYY-MM-DD).
func FileName(day string) string {
	return "provisioning-report-" + day + ".xlsx"
}
