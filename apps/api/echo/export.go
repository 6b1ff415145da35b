package echoapi

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/trezcool/cuota/core/ledger"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheetName = "Students"
)

var exportHeaders = []interface{}{"ID", "Name", "Grade", "Section", "Guardian", "Phone", "Monthly rate", "Outstanding balance"}

func exportFilename(today time.Time) string {
	return fmt.Sprintf("students_%s.xlsx", today.Format("20060102"))
}

// writeStudentsXLSX writes the students listing, with their outstanding balance, as an xlsx workbook.
func writeStudentsXLSX(w io.Writer, students []ledger.StudentSummary, today time.Time) error {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheetName, "A1", &exportHeaders); err != nil {
		return err
	}

	for i, st := range students {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			st.ID, st.Name, st.Grade, st.Section, st.Guardian, st.Phone,
			st.MonthlyRate.InexactFloat64(), st.OutstandingBalance.InexactFloat64(),
		}
		if err = f.SetSheetRow(exportSheetName, cell, &row); err != nil {
			return err
		}
	}

	footer := len(students) + 3
	if err := f.SetCellValue(exportSheetName, fmt.Sprintf("A%d", footer), "As of "+today.Format("2006-01-02")); err != nil {
		return err
	}
	if len(students) > 0 {
		if err := f.SetCellValue(exportSheetName, fmt.Sprintf("G%d", footer), "Total"); err != nil {
			return err
		}
		if err := f.SetCellFormula(exportSheetName, fmt.Sprintf("H%d", footer), fmt.Sprintf("SUM(H2:H%d)", footer-2)); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
