// Package export renders bookings and issues as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"cottage/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	IssuesSheet   = "Issues"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout     = "2006-01-02 15:04"
	defaultSheet   = "Sheet1"
	headerFill     = "#DDEBF7"
	pendingFill    = "#FFEB9C"
	approvedFill   = "#C6EFCE"
	inactiveFill   = "#FFC7CE"
	criticalFill   = "#FFC7CE"
	doneIssueFill  = "#E7E6E6"
	defaultColSize = 18
)

var bookingHeaders = []string{
	"ID", "Title", "Start", "End", "Status", "Requester", "Email", "Phone",
	"Notes", "Approved by", "Calendar event", "Created",
}

var issueHeaders = []string{
	"ID", "Title", "Priority", "Status", "Location", "Target date",
	"Reported by", "Assigned to", "Latest update", "Created", "Updated",
}

// WriteBookings renders bookings into a single-sheet workbook. Times are shown in loc.
func WriteBookings(w io.Writer, bookings []*models.Booking, loc *time.Location) error {
	f, err := newWorkbook(BookingsSheet, bookingHeaders)
	if err != nil {
		return err
	}
	defer f.Close()

	styles := map[models.BookingStatus]int{}
	for status, color := range map[models.BookingStatus]string{
		models.BookingPending:   pendingFill,
		models.BookingApproved:  approvedFill,
		models.BookingDeclined:  inactiveFill,
		models.BookingCancelled: inactiveFill,
	} {
		id, err := fillStyle(f, color)
		if err != nil {
			return err
		}
		styles[status] = id
	}

	for i, b := range bookings {
		row := i + 2
		values := []interface{}{
			b.ID,
			b.Title,
			formatTime(b.StartDate, loc),
			formatTime(b.EndDate, loc),
			string(b.Status),
			b.RequesterName,
			b.RequesterEmail,
			deref(b.RequesterPhone),
			deref(b.Notes),
			b.ApprovedByName,
			b.EventID(),
			formatTime(b.CreatedAt, loc),
		}
		if err := writeRow(f, BookingsSheet, row, values); err != nil {
			return err
		}

		if style, ok := styles[b.Status]; ok {
			cell, _ := excelize.CoordinatesToCellName(5, row)
			_ = f.SetCellStyle(BookingsSheet, cell, cell, style)
		}
	}

	return finish(f, w)
}

// WriteIssues renders issues with their latest log entry.
func WriteIssues(w io.Writer, issues []*models.Issue, loc *time.Location) error {
	f, err := newWorkbook(IssuesSheet, issueHeaders)
	if err != nil {
		return err
	}
	defer f.Close()

	if loc == nil {
		loc = time.UTC
	}

	critical, err := fillStyle(f, criticalFill)
	if err != nil {
		return err
	}
	done, err := fillStyle(f, doneIssueFill)
	if err != nil {
		return err
	}

	for i, issue := range issues {
		row := i + 2
		latest := ""
		if issue.LatestUpdate != nil {
			latest = issue.LatestUpdate.Notes
		}
		target := ""
		if issue.TargetDate != nil {
			target = issue.TargetDate.In(loc).Format("2006-01-02")
		}

		values := []interface{}{
			issue.ID,
			issue.Title,
			string(issue.Priority),
			string(issue.Status),
			deref(issue.Location),
			target,
			issue.ReportedByName,
			issue.AssignedToName,
			latest,
			formatTime(issue.CreatedAt, loc),
			formatTime(issue.UpdatedAt, loc),
		}
		if err := writeRow(f, IssuesSheet, row, values); err != nil {
			return err
		}

		switch {
		case issue.Status.Done():
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(issueHeaders), row)
			_ = f.SetCellStyle(IssuesSheet, first, last, done)
		case issue.Priority == models.PriorityCritical:
			cell, _ := excelize.CoordinatesToCellName(3, row)
			_ = f.SetCellStyle(IssuesSheet, cell, cell, critical)
		}
	}

	return finish(f, w)
}

func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet(defaultSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", "A", 8)
	_ = f.SetColWidth(sheet, "B", lastCol, defaultColSize)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func fillStyle(f *excelize.File, color string) (int, error) {
	id, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	return id, nil
}

func finish(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
