package engine

import (
	"sort"
	"time"

	"bay-scheduler-backend/internal/model"
)

// BusyWindows collects the effective windows of the active tasks on bayID, skipping
// excluded task ids and empty windows.
func BusyWindows(bayID string, tasks []model.Task, exclude ...string) []Window {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	var busy []Window
	for _, t := range tasks {
		if _, ok := skip[t.ID]; ok {
			continue
		}
		if t.BayID == nil || *t.BayID != bayID || !IsActive(t) {
			continue
		}
		w, ok := EffectiveWindow(t)
		if !ok || w.Empty() {
			continue
		}
		busy = append(busy, w)
	}
	return busy
}

// MergeWindows sorts windows by start and merges the ones that overlap or touch.
func MergeWindows(windows []Window) []Window {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Window{sorted[0]}
	for _, w := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// FindSlots walks the gaps between busy windows from `from` and returns up to count
// back-to-back windows of the given duration, earliest first. No slot starts before
// from, and none starts after from+horizon when horizon is positive.
func FindSlots(busy []Window, from time.Time, duration time.Duration, count int, horizon time.Duration) []Window {
	if duration <= 0 || count <= 0 {
		return nil
	}
	var limit time.Time
	if horizon > 0 {
		limit = from.Add(horizon)
	}
	withinHorizon := func(t time.Time) bool {
		return limit.IsZero() || !t.After(limit)
	}

	slots := make([]Window, 0, count)
	cursor := from
	for _, b := range MergeWindows(busy) {
		if !b.End.After(cursor) {
			continue
		}
		for len(slots) < count && !cursor.Add(duration).After(b.Start) {
			if !withinHorizon(cursor) {
				return slots
			}
			slots = append(slots, Window{Start: cursor, End: cursor.Add(duration)})
			cursor = cursor.Add(duration)
		}
		if len(slots) == count {
			return slots
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}

	for len(slots) < count && withinHorizon(cursor) {
		slots = append(slots, Window{Start: cursor, End: cursor.Add(duration)})
		cursor = cursor.Add(duration)
	}
	return slots
}
