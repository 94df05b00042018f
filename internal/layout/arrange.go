package layout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/billsplit-floor/internal/model"
)

// MergeTables replaces the tables matching ids with a single large table.
// The first matched table, in collection order, lends its number, zone
// and grid position.  Seats and occupants are summed and the status is the
// busiest among the sources.  Fewer than two matches is a no-op.
func (m *Manager) MergeTables(ctx context.Context, ids []string) (model.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var sources []model.Table
	kept := make([]model.Table, 0, len(m.tables))
	for _, t := range m.tables {
		if want[t.ID] {
			sources = append(sources, t)
		} else {
			kept = append(kept, t)
		}
	}
	if len(sources) < 2 {
		return model.Table{}, false
	}

	first := sources[0]
	merged := model.Table{
		ID:         "merged-" + uuid.NewString(),
		Number:     first.Number,
		Zone:       first.Zone,
		Status:     mergedStatus(sources),
		Size:       model.SizeLarge,
		GridCol:    first.GridCol,
		GridRow:    first.GridRow,
		ColSpan:    2,
		RowSpan:    1,
		Rotation:   0,
		MergedFrom: make([]int, 0, len(sources)),
	}
	for _, t := range sources {
		merged.Seats += t.Seats
		merged.Occupants += t.Occupants
		merged.MergedFrom = append(merged.MergedFrom, t.Number)
	}

	m.tables = append(kept, merged)
	m.persist(ctx)
	return merged.Clone(), true
}

// mergedStatus applies occupied > reserved > available.
func mergedStatus(tables []model.Table) model.TableStatus {
	status := model.StatusAvailable
	for _, t := range tables {
		switch t.Status {
		case model.StatusOccupied:
			return model.StatusOccupied
		case model.StatusReserved:
			status = model.StatusReserved
		}
	}
	return status
}

// SplitTable replaces the table with count small tables laid out on
// consecutive columns from the source's position.  Seats are spread as
// evenly as possible, the first tables taking the remainder.  New numbers
// are the lowest ones free in the zone starting at the source's number.
// A count below two or above the source's seats, or an unknown id, is a
// no-op: every part keeps at least one seat.
func (m *Manager) SplitTable(ctx context.Context, id string, count int) ([]model.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 || count < 2 || count > m.tables[i].Seats {
		return nil, false
	}
	source := m.tables[i]

	numbers := freeNumbers(m.tables, source, count)
	seats := splitSeats(source.Seats, count)
	batch := uuid.NewString()[:8]

	parts := make([]model.Table, count)
	for k := 0; k < count; k++ {
		parts[k] = model.Table{
			ID:       fmt.Sprintf("split-%s-%d-%s", source.ID, k, batch),
			Number:   numbers[k],
			Zone:     source.Zone,
			Status:   model.StatusAvailable,
			Seats:    seats[k],
			Size:     model.SizeSmall,
			GridCol:  source.GridCol + k,
			GridRow:  source.GridRow,
			ColSpan:  1,
			RowSpan:  1,
			Rotation: 0,
		}
	}

	m.tables = append(m.tables[:i], m.tables[i+1:]...)
	m.tables = append(m.tables, parts...)
	m.persist(ctx)
	return cloneTables(parts), true
}

// freeNumbers scans upward from source.Number and returns the first count
// numbers not used by any other table of the source's zone.
func freeNumbers(tables []model.Table, source model.Table, count int) []int {
	used := make(map[int]bool)
	for _, t := range tables {
		if t.Zone == source.Zone && t.ID != source.ID {
			used[t.Number] = true
		}
	}
	out := make([]int, 0, count)
	for n := source.Number; len(out) < count; n++ {
		if !used[n] {
			out = append(out, n)
		}
	}
	return out
}

// splitSeats divides seats into count parts; the first seats%count parts
// get one extra seat.
func splitSeats(seats, count int) []int {
	base, remainder := seats/count, seats%count
	out := make([]int, count)
	for k := range out {
		out[k] = base
		if k < remainder {
			out[k]++
		}
	}
	return out
}
