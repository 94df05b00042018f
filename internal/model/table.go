package model

import (
	"encoding/json"
	"fmt"
)

// TableStatus is the service state of a table on the floor.
type TableStatus string

const (
	StatusAvailable TableStatus = "available"
	StatusReserved  TableStatus = "reserved"
	StatusOccupied  TableStatus = "occupied"
)

// legacyOccupied is how the web client historically spelled "occupied".
const legacyOccupied = "on-dine"

// UnmarshalJSON rejects unknown statuses so that corrupt slots fail to
// decode instead of producing half-valid tables.
func (s *TableStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw {
	case string(StatusAvailable), string(StatusReserved), string(StatusOccupied):
		*s = TableStatus(raw)
	case legacyOccupied:
		*s = StatusOccupied
	default:
		return fmt.Errorf("unknown table status %q", raw)
	}
	return nil
}

// TableSize is the visual classification derived from the footprint.
type TableSize string

const (
	SizeSmall TableSize = "small"
	SizeLarge TableSize = "large"
)

// Zones lists every named area of the floor plan in display order.
var Zones = []string{"saloon", "terrace", "outdoor"}

// DefaultZone is the zone shown when a session starts.
const DefaultZone = "saloon"

// ValidZone reports whether z is one of Zones.
func ValidZone(z string) bool {
	for _, known := range Zones {
		if z == known {
			return true
		}
	}
	return false
}

// Table represents one seating unit placed on the layout grid.
//
// Fields:
//
//	ID         – opaque identifier, stable for the table's lifetime.
//	Number     – display number, unique within Zone.
//	Zone       – floor area the table belongs to.
//	Status     – available, reserved or occupied.
//	Seats      – capacity.
//	Occupants  – diners currently seated.
//	Size       – small (1x1) or large (2x1).
//	GridCol    – 1-based column on the layout grid.
//	GridRow    – 1-based row on the layout grid.
//	ColSpan    – footprint width in cells.
//	RowSpan    – footprint height in cells.
//	Rotation   – 0, 90, 180 or 270 degrees.
//	MergedFrom – numbers absorbed by a merge (nil otherwise).
type Table struct {
	ID         string      `json:"id"`
	Number     int         `json:"number"`
	Zone       string      `json:"zone"`
	Status     TableStatus `json:"status"`
	Seats      int         `json:"seats"`
	Occupants  int         `json:"occupants"`
	Size       TableSize   `json:"size"`
	GridCol    int         `json:"gridCol"`
	GridRow    int         `json:"gridRow"`
	ColSpan    int         `json:"colSpan"`
	RowSpan    int         `json:"rowSpan"`
	Rotation   int         `json:"rotation"`
	MergedFrom []int       `json:"mergedFrom,omitempty"`
}

// Clone returns a deep copy so callers never share MergedFrom backing arrays.
func (t Table) Clone() Table {
	if t.MergedFrom != nil {
		t.MergedFrom = append([]int(nil), t.MergedFrom...)
	}
	return t
}

// TablePatch carries the optional fields of a partial table update.  Nil
// pointers leave the corresponding field untouched.
type TablePatch struct {
	Number     *int         `json:"number"`
	Zone       *string      `json:"zone"`
	Status     *TableStatus `json:"status"`
	Seats      *int         `json:"seats"`
	Occupants  *int         `json:"occupants"`
	Size       *TableSize   `json:"size"`
	GridCol    *int         `json:"gridCol"`
	GridRow    *int         `json:"gridRow"`
	ColSpan    *int         `json:"colSpan"`
	RowSpan    *int         `json:"rowSpan"`
	Rotation   *int         `json:"rotation"`
	MergedFrom *[]int       `json:"mergedFrom"`
}

// Apply merges the non-nil fields of p into t.
func (p TablePatch) Apply(t *Table) {
	if p.Number != nil {
		t.Number = *p.Number
	}
	if p.Zone != nil {
		t.Zone = *p.Zone
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Seats != nil {
		t.Seats = *p.Seats
	}
	if p.Occupants != nil {
		t.Occupants = *p.Occupants
	}
	if p.Size != nil {
		t.Size = *p.Size
	}
	if p.GridCol != nil {
		t.GridCol = *p.GridCol
	}
	if p.GridRow != nil {
		t.GridRow = *p.GridRow
	}
	if p.ColSpan != nil {
		t.ColSpan = *p.ColSpan
	}
	if p.RowSpan != nil {
		t.RowSpan = *p.RowSpan
	}
	if p.Rotation != nil {
		t.Rotation = *p.Rotation
	}
	if p.MergedFrom != nil {
		t.MergedFrom = append([]int(nil), (*p.MergedFrom)...)
	}
}

// TableStats summarises the collection by status.
type TableStats struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
	Occupied  int `json:"occupied"`
}
