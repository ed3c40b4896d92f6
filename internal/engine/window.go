// Package engine holds the pure scheduling rules: window overlap, effective windows,
// live bay status and free-slot search. Nothing here touches storage.
package engine

import (
	"time"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/model"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow validates end > start.
func NewWindow(start, end time.Time) (Window, error) {
	if start.IsZero() {
		return Window{}, apperr.Invalid("start", "is required")
	}
	if end.IsZero() {
		return Window{}, apperr.Invalid("end", "is required")
	}
	if !end.After(start) {
		return Window{}, apperr.Invalid("end", "must be after start")
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether a and b share any instant. Touching endpoints do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Empty reports whether the window has no duration.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// WindowsOverlap is the free-function form of Window.Overlaps.
func WindowsOverlap(a, b Window) bool {
	return a.Overlaps(b)
}

// EffectiveWindow prefers actual times over expected ones. ok is false when the task
// has never been given a window.
func EffectiveWindow(t model.Task) (w Window, ok bool) {
	start := t.ExpectedStart
	if t.ActualStart != nil {
		start = t.ActualStart
	}
	end := t.ExpectedEnd
	if t.ActualEnd != nil {
		end = t.ActualEnd
	}
	if start == nil || end == nil {
		return Window{}, false
	}
	return Window{Start: *start, End: *end}, true
}

// IsActive reports whether the task's window takes part in conflict checks.
func IsActive(t model.Task) bool {
	switch t.Status {
	case model.TaskScheduled, model.TaskRescheduled, model.TaskInProgress:
		return true
	}
	return false
}

// FirstConflict returns the first active task on bayID, other than the excluded ids,
// whose effective window overlaps candidate.
func FirstConflict(bayID string, candidate Window, tasks []model.Task, exclude ...string) (*model.Task, Window, bool) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	for i := range tasks {
		t := tasks[i]
		if _, ok := skip[t.ID]; ok {
			continue
		}
		if t.BayID == nil || *t.BayID != bayID || !IsActive(t) {
			continue
		}
		w, ok := EffectiveWindow(t)
		if !ok {
			continue
		}
		if w.Overlaps(candidate) {
			return &tasks[i], w, true
		}
	}
	return nil, Window{}, false
}

// ConflictFor turns the first conflicting task into a typed error, or returns nil.
func ConflictFor(bayID string, candidate Window, tasks []model.Task, exclude ...string) error {
	hit, w, found := FirstConflict(bayID, candidate, tasks, exclude...)
	if !found {
		return nil
	}
	return &apperr.ConflictError{BayID: bayID, TaskID: hit.ID, Start: w.Start, End: w.End}
}
