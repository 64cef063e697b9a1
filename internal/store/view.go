package store

import (
	"sort"

	"github.com/BuzzLyutic/task-tracker/internal/model"
)

// SortBy orders a View. The zero value keeps insertion order.
type SortBy int

const (
	SortInsertion SortBy = iota
	SortPriority
	SortDueDate
	SortCreated
)

// ParseSortBy accepts the names used on the command line.
func ParseSortBy(v string) (SortBy, bool) {
	switch v {
	case "", "insertion", "default":
		return SortInsertion, true
	case "priority":
		return SortPriority, true
	case "due", "due_at":
		return SortDueDate, true
	case "created", "created_at":
		return SortCreated, true
	}
	return SortInsertion, false
}

type ViewOptions struct {
	Status *model.Status
	SortBy SortBy
}

// View derives a filtered, sorted list from the current snapshot. Ties keep
// insertion order.
func (s *Store) View(opts ViewOptions) []model.Task {
	all := s.Snapshot()
	out := all[:0]
	for _, t := range all {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		out = append(out, t)
	}

	switch opts.SortBy {
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	case SortDueDate:
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].DueAt, out[j].DueAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			}
			return a.Before(*b)
		})
	case SortCreated:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	}
	return out
}
