// Package report renders attendance reports as spreadsheets, terminal
// tables and QR codes.
package report

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"classattend/internal/attendance"
)

const sheetName = "Attendance"

var xlsxHeaders = []string{"Student", "Status", "Marked by", "Marked at", "Attendance %"}

// WriteXLSX renders rep as a workbook with a title row, a header row, one row
// per student and a totals row. It returns the buffer and a suggested file name.
func WriteXLSX(courseID string, rep attendance.Report) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", errors.Wrap(err, "new sheet")
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", errors.Wrap(err, "delete default sheet")
	}

	_ = f.SetColWidth(sheetName, "A", "A", 18)
	_ = f.SetColWidth(sheetName, "B", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "D", 22)
	_ = f.SetColWidth(sheetName, "E", "E", 14)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "header style")
	}

	_ = f.SetCellValue(sheetName, "A1", title(courseID, rep))
	_ = f.MergeCell(sheetName, "A1", cell(len(xlsxHeaders), 1))
	_ = f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	for i, h := range xlsxHeaders {
		_ = f.SetCellValue(sheetName, cell(i+1, 2), h)
	}
	_ = f.SetCellStyle(sheetName, "A2", cell(len(xlsxHeaders), 2), headerStyle)

	row := 3
	for _, r := range rep.Rows {
		_ = f.SetCellValue(sheetName, cell(1, row), r.StudentID)
		_ = f.SetCellValue(sheetName, cell(2, row), statusText(r.Status))
		_ = f.SetCellValue(sheetName, cell(3, row), r.MarkedBy)
		if !r.MarkedAt.IsZero() {
			_ = f.SetCellValue(sheetName, cell(4, row), r.MarkedAt.Format("2006-01-02 15:04:05"))
		}
		_ = f.SetCellValue(sheetName, cell(5, row), round2(r.Percentage))
		row++
	}

	s := rep.Summary
	_ = f.SetCellValue(sheetName, cell(1, row), "Total")
	_ = f.SetCellValue(sheetName, cell(2, row), fmt.Sprintf("P %d / L %d / A %d / E %d", s.Present, s.Late, s.Absent, s.Excused))
	_ = f.SetCellValue(sheetName, cell(5, row), round2(s.AttendanceRate))

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", errors.Wrap(err, "write workbook")
	}
	return buf, fileName(courseID, rep), nil
}

func title(courseID string, rep attendance.Report) string {
	if rep.Window == nil {
		return fmt.Sprintf("%s: no active session", courseID)
	}
	w := rep.Window
	return fmt.Sprintf("%s: %s %s-%s", courseID, w.Date(), w.Start, w.End)
}

func fileName(courseID string, rep attendance.Report) string {
	date := rep.GeneratedAt.Format(attendance.DateLayout)
	if rep.Window != nil {
		date = rep.Window.Date()
	}
	return fmt.Sprintf("attendance_%s_%s.xlsx", courseID, date)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func statusText(st attendance.Status) string {
	if st == "" {
		return "unmarked"
	}
	return string(st)
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
