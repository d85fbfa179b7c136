package domain

import (
	"encoding/json"
	"fmt"
)

// DayPart is the service period shown on the board.
type DayPart string

const (
	Breakfast DayPart = "Breakfast"
	Lunch     DayPart = "Lunch"
)

// DefaultDayPart is returned when nothing has been stored for a date.
const DefaultDayPart = Breakfast

// Valid reports whether d is Breakfast or Lunch.
func (d DayPart) Valid() bool {
	return d == Breakfast || d == Lunch
}

// Employee is one row of an imported roster.
type Employee struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	ShiftStart string `json:"shiftStart,omitempty"`
	ShiftEnd   string `json:"shiftEnd,omitempty"`
	Position   string `json:"position,omitempty"`
	Minor      bool   `json:"minor"`
}

// ScheduleDoc is the roster for one date.
type ScheduleDoc struct {
	Employees   []Employee `json:"employees"`
	FileName    string     `json:"fileName,omitempty"`
	UploadedAt  string     `json:"uploadedAt,omitempty"`
	LastUpdated string     `json:"lastUpdated,omitempty"`
}

// AssignmentMap is dayPart -> stationId -> column -> employee names.
type AssignmentMap map[string]map[string]map[string][]string

// Slot addresses one cell of the assignment grid.
type Slot struct {
	DayPart   string `json:"dayPart"`
	StationID string `json:"stationId"`
	Column    string `json:"column"`
}

// Add puts employee into slot unless already present. Reports whether the map changed.
func (m AssignmentMap) Add(slot Slot, employee string) bool {
	stations, ok := m[slot.DayPart]
	if !ok {
		stations = make(map[string]map[string][]string)
		m[slot.DayPart] = stations
	}
	columns, ok := stations[slot.StationID]
	if !ok {
		columns = make(map[string][]string)
		stations[slot.StationID] = columns
	}
	for _, name := range columns[slot.Column] {
		if name == employee {
			return false
		}
	}
	columns[slot.Column] = append(columns[slot.Column], employee)
	return true
}

// Remove drops employee from slot and prunes empty levels. Reports whether the map changed.
func (m AssignmentMap) Remove(slot Slot, employee string) bool {
	columns := m[slot.DayPart][slot.StationID]
	names, ok := columns[slot.Column]
	if !ok {
		return false
	}
	kept := names[:0]
	removed := false
	for _, name := range names {
		if name == employee {
			removed = true
			continue
		}
		kept = append(kept, name)
	}
	if !removed {
		return false
	}
	if len(kept) == 0 {
		delete(columns, slot.Column)
		if len(columns) == 0 {
			delete(m[slot.DayPart], slot.StationID)
			if len(m[slot.DayPart]) == 0 {
				delete(m, slot.DayPart)
			}
		}
	} else {
		columns[slot.Column] = kept
	}
	return true
}

// Count returns the number of placed names across the whole grid.
func (m AssignmentMap) Count() int {
	n := 0
	for _, stations := range m {
		for _, columns := range stations {
			for _, names := range columns {
				n += len(names)
			}
		}
	}
	return n
}

// AssignmentDoc is the assignment grid for one date.
type AssignmentDoc struct {
	Assignments AssignmentMap `json:"assignments"`
	DayPart     DayPart       `json:"dayPart,omitempty"`
	LastUpdated string        `json:"lastUpdated,omitempty"`
}

// DayPartDoc is the last selected day-part for one date.
type DayPartDoc struct {
	DayPart     DayPart `json:"dayPart"`
	LastUpdated string  `json:"lastUpdated,omitempty"`
}

// Doc is implemented by the three document kinds only.
type Doc interface {
	Category() Category
	isDoc()
}

func (*ScheduleDoc) Category() Category   { return CategorySchedules }
func (*AssignmentDoc) Category() Category { return CategoryAssignments }
func (*DayPartDoc) Category() Category    { return CategoryDayParts }

func (*ScheduleDoc) isDoc()   {}
func (*AssignmentDoc) isDoc() {}
func (*DayPartDoc) isDoc()    {}

// Normalize replaces nil collections with empty ones so they encode as [] / {}.
func (d *ScheduleDoc) Normalize() {
	if d.Employees == nil {
		d.Employees = []Employee{}
	}
}

// Normalize replaces a nil grid with an empty one.
func (d *AssignmentDoc) Normalize() {
	if d.Assignments == nil {
		d.Assignments = AssignmentMap{}
	}
}

// Normalize fills in the default day-part.
func (d *DayPartDoc) Normalize() {
	if d.DayPart == "" {
		d.DayPart = DefaultDayPart
	}
}

// EmptyDoc returns the default document served for a date with nothing stored.
func EmptyDoc(c Category) (Doc, error) {
	switch c {
	case CategorySchedules:
		return &ScheduleDoc{Employees: []Employee{}}, nil
	case CategoryAssignments:
		return &AssignmentDoc{Assignments: AssignmentMap{}}, nil
	case CategoryDayParts:
		return &DayPartDoc{DayPart: DefaultDayPart}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", c)
	}
}

// DecodeDoc parses raw JSON as the document kind for category c.
func DecodeDoc(c Category, raw json.RawMessage) (Doc, error) {
	doc, err := EmptyDoc(c)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", c, err)
	}
	switch d := doc.(type) {
	case *ScheduleDoc:
		d.Normalize()
	case *AssignmentDoc:
		d.Normalize()
	case *DayPartDoc:
		d.Normalize()
	}
	return doc, nil
}
