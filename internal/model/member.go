package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Status is the attendance status of one member for one session.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// UnmarshalJSON accepts any value; everything except "Present" becomes Absent.
func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil || Status(raw) != StatusPresent {
		*s = StatusAbsent
		return nil
	}
	*s = StatusPresent
	return nil
}

// Normalize maps the zero value and unknown statuses to Absent.
func (s Status) Normalize() Status {
	if s == StatusPresent {
		return StatusPresent
	}
	return StatusAbsent
}

// Member is a club member as listed on the attendance sheet.
type Member struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name with a single space.
func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

// Schedule is a single meeting instance.
type Schedule struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	IsMakeup bool   `json:"is_makeup"`
}

// Label is the date without its year prefix, e.g. "01-07" for "2024-01-07".
func (s Schedule) Label() string {
	date := s.Date
	if i := strings.IndexAny(date, "T "); i >= 0 {
		date = date[:i]
	}
	if len(date) > 5 {
		return date[5:]
	}
	return date
}

// SessionStatuses maps a session id to the member's status for it.
type SessionStatuses map[int64]Status

// UnmarshalJSON decodes an object keyed by session id. The API sends [] or
// null for a member without records; both decode as an empty mapping.
func (s *SessionStatuses) UnmarshalJSON(b []byte) error {
	if emptyCollection(b) {
		*s = SessionStatuses{}
		return nil
	}
	var raw map[int64]Status
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = raw
	return nil
}

// AttendanceData maps a member id to that member's statuses.
type AttendanceData map[int64]MemberAttendance

// UnmarshalJSON accepts [] and null as an empty mapping, like SessionStatuses.
func (a *AttendanceData) UnmarshalJSON(b []byte) error {
	if emptyCollection(b) {
		*a = AttendanceData{}
		return nil
	}
	var raw map[int64]MemberAttendance
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*a = raw
	return nil
}

// emptyCollection reports whether b is null or an empty JSON array.
func emptyCollection(b []byte) bool {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return true
	}
	return len(b) >= 2 && b[0] == '[' && b[len(b)-1] == ']' && len(bytes.TrimSpace(b[1:len(b)-1])) == 0
}

// MemberAttendance splits a member's statuses by session kind.
type MemberAttendance struct {
	NonMakeup SessionStatuses `json:"non_makeup"`
	Makeup    SessionStatuses `json:"makeup"`
}

// AttendanceSheet is the payload of GET /api/attendance-sheet.
type AttendanceSheet struct {
	Members            []Member       `json:"members"`
	AttendanceData     AttendanceData `json:"attendance_data"`
	NonMakeupSchedules []Schedule     `json:"non_makeup_schedules"`
	MakeupSchedules    []Schedule     `json:"makeup_schedules"`
}

// NonMakeupFor returns the member's regular-session statuses, never nil.
func (a AttendanceSheet) NonMakeupFor(memberID int64) SessionStatuses {
	if rec, ok := a.AttendanceData[memberID]; ok && rec.NonMakeup != nil {
		return rec.NonMakeup
	}
	return SessionStatuses{}
}

// MakeupFor returns the member's makeup-session statuses, never nil.
func (a AttendanceSheet) MakeupFor(memberID int64) SessionStatuses {
	if rec, ok := a.AttendanceData[memberID]; ok && rec.Makeup != nil {
		return rec.Makeup
	}
	return SessionStatuses{}
}
