package attendance

import "rotary-ams-gateway/internal/model"

const (
	GlyphPresent = "✔️"
	GlyphAbsent  = "❌"
)

// Cell is one member/session intersection of the grid.
type Cell struct {
	SessionID   int64        `json:"session_id"`
	Status      model.Status `json:"status"`
	Glyph       string       `json:"glyph"`
	Highlighted bool         `json:"highlighted"`
}

// Row is one member's line of the grid.
type Row struct {
	MemberID int64  `json:"member_id"`
	Name     string `json:"name"`
	Cells    []Cell `json:"cells"`
}

// Column labels one session of the grid.
type Column struct {
	SessionID int64  `json:"session_id"`
	Date      string `json:"date"`
	Label     string `json:"label"`
}

// Grid is the member by session matrix rendered on the attendance sheet.
type Grid struct {
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Sheet is the complete attendance screen: the regular grid with streak
// highlighting and the makeup grid without it.
type Sheet struct {
	Query     string `json:"query"`
	NonMakeup Grid   `json:"non_makeup"`
	Makeup    Grid   `json:"makeup"`
}

// Statuses aligns a member's statuses to the session order. Sessions missing
// from the mapping are Absent.
func Statuses(sessions []model.Schedule, statuses model.SessionStatuses) []model.Status {
	aligned := make([]model.Status, len(sessions))
	for i, s := range sessions {
		aligned[i] = statuses[s.ID].Normalize()
	}
	return aligned
}

// Build produces the grid of members matching query over the given sessions.
// attendance maps member id to that member's statuses; missing members and
// missing sessions render as Absent. Session order is kept as given.
func Build(members []model.Member, sessions []model.Schedule, attendance map[int64]model.SessionStatuses, query string) Grid {
	return build(members, sessions, func(id int64) model.SessionStatuses { return attendance[id] }, query, true)
}

// BuildSheet derives both grids of the attendance sheet.
func BuildSheet(sheet model.AttendanceSheet, query string) Sheet {
	return Sheet{
		Query:     query,
		NonMakeup: build(sheet.Members, sheet.NonMakeupSchedules, sheet.NonMakeupFor, query, true),
		Makeup:    build(sheet.Members, sheet.MakeupSchedules, sheet.MakeupFor, query, false),
	}
}

func build(members []model.Member, sessions []model.Schedule, lookup func(int64) model.SessionStatuses, query string, highlight bool) Grid {
	grid := Grid{
		Columns: make([]Column, len(sessions)),
		Rows:    make([]Row, 0, len(members)),
	}
	for i, s := range sessions {
		grid.Columns[i] = Column{SessionID: s.ID, Date: s.Date, Label: s.Label()}
	}

	for _, member := range FilterMembers(members, query) {
		statuses := Statuses(sessions, lookup(member.ID))
		var marks []bool
		if highlight {
			marks = ConsecutiveAbsences(statuses)
		}

		row := Row{
			MemberID: member.ID,
			Name:     member.FullName(),
			Cells:    make([]Cell, len(sessions)),
		}
		for i, s := range sessions {
			cell := Cell{SessionID: s.ID, Status: statuses[i], Glyph: GlyphAbsent}
			if statuses[i] == model.StatusPresent {
				cell.Glyph = GlyphPresent
			}
			if marks != nil {
				cell.Highlighted = marks[i]
			}
			row.Cells[i] = cell
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid
}
