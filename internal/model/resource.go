package model

import "fmt"

// PersonName is the member name embedded in attendance responses.
type PersonName struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name with a single space.
func (p PersonName) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Attendee is one entry of GET /api/attendance/today.
type Attendee struct {
	ID         int64      `json:"id"`
	AttendedAt Timestamp  `json:"attended_at"`
	Member     PersonName `json:"member"`
}

// ScanResult is the payload of POST /api/attendance/log.
type ScanResult struct {
	Member PersonName `json:"member"`
}

// Message is the confirmation shown after a successful scan.
func (r ScanResult) Message() string {
	return fmt.Sprintf("Attendance for %s has been logged.", r.Member.FullName())
}

// Link is a financial statement link.
type Link struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Publication is a magazine issue.
type Publication struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Issue        string `json:"issue"`
	PDFURL       string `json:"pdf_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// TimeLabel formats the scan time as hh:mm AM.
func (a Attendee) TimeLabel() string {
	if a.AttendedAt.IsZero() {
		return ""
	}
	return a.AttendedAt.Format("03:04 PM")
}

var statementIcons = map[string]string{
	"Members Tracker":            "users",
	"Cash Receipt":               "money-bill",
	"Club Dues Tracker":          "dollar-sign",
	"Club Financial Performance": "chart-line",
	"Cash Distribution":          "hand-holding-usd",
}

// Icon names the icon shown next to a known financial statement.
// Unknown titles have none.
func (l Link) Icon() string {
	return statementIcons[l.Title]
}
