package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"rotary-ams-gateway/internal/attendance"
	"rotary-ams-gateway/internal/model"
	"rotary-ams-gateway/internal/notification"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderHome(w io.Writer, user model.User) {
	fmt.Fprintf(w, "Signed in as %s (%s)\n", user.Username, user.Role)
	screens := []string{"qrcode", "today", "sheet", "notifications", "publications", "statements"}
	if user.IsAdmin() {
		screens = append([]string{"scan"}, screens...)
	}
	fmt.Fprintf(w, "Screens: %s\n", strings.Join(screens, ", "))
}

func renderAttendees(w io.Writer, attendees []model.Attendee) error {
	if len(attendees) == 0 {
		fmt.Fprintln(w, "No attendance logged today.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tTIME")
	for _, a := range attendees {
		fmt.Fprintf(tw, "%s\t%s\n", a.Member.FullName(), a.TimeLabel())
	}
	return tw.Flush()
}

// renderSheet prints both grids. Cells inside a run of three or more
// absences are bracketed.
func renderSheet(w io.Writer, sheet attendance.Sheet) error {
	if sheet.Query != "" {
		fmt.Fprintf(w, "Members matching %q\n", sheet.Query)
	}
	fmt.Fprintln(w, "Regular meetings")
	if err := renderGrid(w, sheet.NonMakeup); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Makeup meetings")
	if err := renderGrid(w, sheet.Makeup); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "[ ] three or more consecutive absences")
	return nil
}

func renderGrid(w io.Writer, grid attendance.Grid) error {
	switch {
	case len(grid.Columns) == 0:
		fmt.Fprintln(w, "  no meetings")
		return nil
	case len(grid.Rows) == 0:
		fmt.Fprintln(w, "  no members")
		return nil
	}

	tw := newTable(w)
	header := []string{"MEMBER"}
	for _, col := range grid.Columns {
		header = append(header, col.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range grid.Rows {
		line := []string{row.Name}
		for _, cell := range row.Cells {
			if cell.Highlighted {
				line = append(line, "["+cell.Glyph+"]")
			} else {
				line = append(line, cell.Glyph)
			}
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

func renderNotifications(w io.Writer, view notification.View) error {
	fmt.Fprintf(w, "Unseen: %d\n", view.UnseenCount)
	if len(view.Notifications) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return nil
	}

	tw := newTable(w)
	for _, n := range view.Notifications {
		marker := " "
		if !n.Seen {
			marker = "*"
		}
		sent := ""
		if !n.SentAt.IsZero() {
			sent = n.SentAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, sent, n.Title, n.Body)
	}
	return tw.Flush()
}

func renderPublications(w io.Writer, pubs []model.Publication) error {
	if len(pubs) == 0 {
		fmt.Fprintln(w, "No publications.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TITLE\tISSUE\tPDF")
	for _, p := range pubs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Title, p.Issue, p.PDFURL)
	}
	return tw.Flush()
}

func renderStatements(w io.Writer, links []model.Link) error {
	if len(links) == 0 {
		fmt.Fprintln(w, "No financial statements.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ICON\tTITLE\tURL")
	for _, l := range links {
		icon := l.Icon()
		if icon == "" {
			icon = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", icon, l.Title, l.URL)
	}
	return tw.Flush()
}
