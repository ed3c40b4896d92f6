package store

import "bay-scheduler-backend/internal/model"

// TaskFilter narrows ListTasks. Zero-valued fields do not filter.
type TaskFilter struct {
	// BayIDs restricts to tasks on these bays. nil means any bay (including none);
	// a non-nil empty slice matches nothing.
	BayIDs []string
	// Statuses restricts to tasks in these lifecycle states.
	Statuses []model.TaskStatus
	// OrderID restricts to the tasks of one parent order.
	OrderID *string
	// WithOrder preloads the parent order for display.
	WithOrder bool
	// Limit caps the number of rows when positive.
	Limit int
}

// ActiveOn is the filter for conflict checks: every non-completed, scheduled task on the bays.
func ActiveOn(bayIDs ...string) TaskFilter {
	return TaskFilter{BayIDs: bayIDs, Statuses: model.ActiveStatuses}
}
