package engine

import (
	"sort"
	"time"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/model"
)

// LiveStatus is a bay's derived, point-in-time state.
type LiveStatus string

const (
	LiveAvailable LiveStatus = "available"
	LiveOccupied  LiveStatus = "occupied"
	LiveInactive  LiveStatus = "inactive"
)

// onBay filters tasks to the non-completed ones assigned to bayID that have a window.
func onBay(bayID string, tasks []model.Task) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		if t.BayID == nil || *t.BayID != bayID || t.Status == model.TaskCompleted {
			continue
		}
		if _, ok := EffectiveWindow(t); !ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// LiveStatusOf derives the bay's status at now. More than one task covering now is an
// integrity violation and is returned as *apperr.IntegrityError.
func LiveStatusOf(bay model.Bay, now time.Time, tasks []model.Task) (LiveStatus, *model.Task, error) {
	if bay.Status == model.BayInactive {
		return LiveInactive, nil, nil
	}

	var current []model.Task
	for _, t := range onBay(bay.ID, tasks) {
		w, _ := EffectiveWindow(t)
		if w.Contains(now) {
			current = append(current, t)
		}
	}

	switch len(current) {
	case 0:
		return LiveAvailable, nil, nil
	case 1:
		return LiveOccupied, &current[0], nil
	}

	ids := make([]string, 0, len(current))
	for _, t := range current {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return "", nil, &apperr.IntegrityError{BayID: bay.ID, TaskIDs: ids}
}

// NextAvailableAt is now for an available bay, the current task's effective end for an
// occupied one, and nil for an inactive one.
func NextAvailableAt(status LiveStatus, now time.Time, current *model.Task) *time.Time {
	switch status {
	case LiveAvailable:
		return &now
	case LiveOccupied:
		if current == nil {
			return nil
		}
		w, ok := EffectiveWindow(*current)
		if !ok {
			return nil
		}
		end := w.End
		return &end
	}
	return nil
}

// UpcomingTasks returns the bay's non-completed tasks starting strictly after now,
// earliest first, at most limit of them.
func UpcomingTasks(bayID string, now time.Time, tasks []model.Task, limit int) []model.Task {
	var out []model.Task
	for _, t := range onBay(bayID, tasks) {
		w, _ := EffectiveWindow(t)
		if w.Start.After(now) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, _ := EffectiveWindow(out[i])
		wj, _ := EffectiveWindow(out[j])
		if wi.Start.Equal(wj.Start) {
			return out[i].ID < out[j].ID
		}
		return wi.Start.Before(wj.Start)
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// OverlappingPairs lists every pair of active tasks on the same bay whose effective
// windows overlap. Pairs are ordered by bay, then by start.
func OverlappingPairs(tasks []model.Task) [][2]model.Task {
	byBay := make(map[string][]model.Task)
	for _, t := range tasks {
		if t.BayID == nil || !IsActive(t) {
			continue
		}
		if _, ok := EffectiveWindow(t); !ok {
			continue
		}
		byBay[*t.BayID] = append(byBay[*t.BayID], t)
	}

	bayIDs := make([]string, 0, len(byBay))
	for id := range byBay {
		bayIDs = append(bayIDs, id)
	}
	sort.Strings(bayIDs)

	var pairs [][2]model.Task
	for _, bayID := range bayIDs {
		list := byBay[bayID]
		sort.SliceStable(list, func(i, j int) bool {
			wi, _ := EffectiveWindow(list[i])
			wj, _ := EffectiveWindow(list[j])
			return wi.Start.Before(wj.Start)
		})
		for i := 0; i < len(list); i++ {
			wi, _ := EffectiveWindow(list[i])
			for j := i + 1; j < len(list); j++ {
				wj, _ := EffectiveWindow(list[j])
				if !wj.Start.Before(wi.End) {
					break
				}
				if wi.Overlaps(wj) {
					pairs = append(pairs, [2]model.Task{list[i], list[j]})
				}
			}
		}
	}
	return pairs
}
