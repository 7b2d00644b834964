package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"classattend/internal/attendance"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numStyle    = cellStyle.Align(lipgloss.Right)
	absentStyle = cellStyle.Foreground(lipgloss.Color("#FF4D4F"))
)

// Table renders rep for a terminal, followed by a one-line summary.
func Table(rep attendance.Report) string {
	rows := make([][]string, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		marked := ""
		if !r.MarkedAt.IsZero() {
			marked = r.MarkedAt.Local().Format("15:04:05")
		}
		rows = append(rows, []string{
			r.StudentID,
			statusText(r.Status),
			r.MarkedBy,
			marked,
			fmt.Sprintf("%.2f%%", r.Percentage),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Student", "Status", "Marked by", "At", "Attendance").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 4:
				return numStyle
			case col == 1 && row >= 0 && row < len(rows) && rows[row][1] == string(attendance.StatusAbsent):
				return absentStyle
			}
			return cellStyle
		})

	return t.String() + "\n" + SummaryLine(rep.Summary)
}

// SummaryLine is a single-line view of s.
func SummaryLine(s attendance.Summary) string {
	return fmt.Sprintf("present %d  late %d  absent %d  excused %d  unmarked %d  total %d  rate %.2f%%",
		s.Present, s.Late, s.Absent, s.Excused, s.Unmarked, s.Total, s.AttendanceRate)
}
