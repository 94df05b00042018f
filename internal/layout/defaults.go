package layout

import "github.com/iliyamo/billsplit-floor/internal/model"

// defaultTables is the seed floor used whenever no usable layout is stored.
var defaultTables = []model.Table{
	{ID: "t1", Number: 1, Zone: "saloon", Status: model.StatusReserved, Seats: 8, Occupants: 6, Size: model.SizeLarge, GridCol: 1, GridRow: 1, ColSpan: 2, RowSpan: 1},
	{ID: "t2", Number: 2, Zone: "saloon", Status: model.StatusOccupied, Seats: 4, Occupants: 2, Size: model.SizeSmall, GridCol: 3, GridRow: 1, ColSpan: 1, RowSpan: 1},
	{ID: "t3", Number: 3, Zone: "saloon", Status: model.StatusAvailable, Seats: 4, Occupants: 0, Size: model.SizeSmall, GridCol: 4, GridRow: 1, ColSpan: 1, RowSpan: 1},
	{ID: "t4", Number: 4, Zone: "saloon", Status: model.StatusOccupied, Seats: 4, Occupants: 3, Size: model.SizeSmall, GridCol: 1, GridRow: 2, ColSpan: 1, RowSpan: 1},
	{ID: "t5", Number: 5, Zone: "saloon", Status: model.StatusAvailable, Seats: 2, Occupants: 0, Size: model.SizeSmall, GridCol: 2, GridRow: 2, ColSpan: 1, RowSpan: 1},
	{ID: "t6", Number: 6, Zone: "saloon", Status: model.StatusReserved, Seats: 8, Occupants: 7, Size: model.SizeLarge, GridCol: 3, GridRow: 2, ColSpan: 2, RowSpan: 1},
	{ID: "t7", Number: 7, Zone: "saloon", Status: model.StatusReserved, Seats: 8, Occupants: 10, Size: model.SizeLarge, GridCol: 1, GridRow: 3, ColSpan: 2, RowSpan: 1},
	{ID: "t8", Number: 8, Zone: "saloon", Status: model.StatusOccupied, Seats: 4, Occupants: 2, Size: model.SizeSmall, GridCol: 3, GridRow: 3, ColSpan: 1, RowSpan: 1},
	{ID: "t9", Number: 9, Zone: "saloon", Status: model.StatusOccupied, Seats: 4, Occupants: 4, Size: model.SizeSmall, GridCol: 4, GridRow: 3, ColSpan: 1, RowSpan: 1},
	{ID: "tt1", Number: 1, Zone: "terrace", Status: model.StatusAvailable, Seats: 4, Occupants: 0, Size: model.SizeSmall, GridCol: 1, GridRow: 1, ColSpan: 1, RowSpan: 1},
	{ID: "tt2", Number: 2, Zone: "terrace", Status: model.StatusOccupied, Seats: 4, Occupants: 3, Size: model.SizeSmall, GridCol: 2, GridRow: 1, ColSpan: 1, RowSpan: 1},
}

// DefaultTables returns a fresh copy of the seed floor.
func DefaultTables() []model.Table {
	return cloneTables(defaultTables)
}

func cloneTables(in []model.Table) []model.Table {
	out := make([]model.Table, len(in))
	for i, t := range in {
		out[i] = t.Clone()
	}
	return out
}
