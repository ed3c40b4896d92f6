package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/metrics"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// ScheduleRequest places a task on a bay for [Start, End).
type ScheduleRequest struct {
	BayID string
	Start time.Time
	End   time.Time
}

func (r ScheduleRequest) validate() (string, engine.Window, error) {
	bayID := strings.TrimSpace(r.BayID)
	if bayID == "" {
		return "", engine.Window{}, apperr.Invalid("bayId", "is required")
	}
	w, err := engine.NewWindow(r.Start, r.End)
	if err != nil {
		return "", engine.Window{}, err
	}
	return bayID, w, nil
}

func record(op string, err error) {
	metrics.SchedulingOperations.WithLabelValues(op, apperr.Code(err)).Inc()
}

// Assign binds an unscheduled task to a bay and window for the first time.
func (s *Service) Assign(ctx context.Context, taskID string, req ScheduleRequest) (task *model.Task, err error) {
	defer func() { record("assign", err) }()

	bayID, w, err := req.validate()
	if err != nil {
		return nil, err
	}

	err = s.withBayLock(ctx, bayID, func(tx store.Store) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		switch {
		case t.Status == model.TaskCompleted:
			return fmt.Errorf("task %s is completed: %w", t.ID, apperr.ErrInvalidTransition)
		case t.BayID != nil || t.Status != model.TaskUnscheduled:
			return fmt.Errorf("task %s: %w", t.ID, apperr.ErrAlreadyScheduled)
		}

		if err := s.checkTarget(ctx, tx, t, bayID, w); err != nil {
			return err
		}

		t.BayID = &bayID
		t.ExpectedStart, t.ExpectedEnd = &w.Start, &w.End
		t.Status = model.TaskScheduled
		if err := tx.UpdateTask(ctx, t, t.Version); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task assigned",
		zap.String("task_id", task.ID),
		zap.String("bay_id", bayID),
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End))
	return task, nil
}

// Reschedule moves a non-terminal task, possibly to another bay, and clears its actuals.
func (s *Service) Reschedule(ctx context.Context, taskID string, req ScheduleRequest) (task *model.Task, err error) {
	defer func() { record("reschedule", err) }()

	bayID, w, err := req.validate()
	if err != nil {
		return nil, err
	}

	var fromBay string
	err = s.withBayLock(ctx, bayID, func(tx store.Store) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		switch t.Status {
		case model.TaskUnscheduled:
			return fmt.Errorf("task %s: %w", t.ID, apperr.ErrNotScheduled)
		case model.TaskCompleted:
			return fmt.Errorf("task %s is completed: %w", t.ID, apperr.ErrInvalidTransition)
		}
		if t.BayID != nil {
			fromBay = *t.BayID
		}

		if err := s.checkTarget(ctx, tx, t, bayID, w); err != nil {
			return err
		}

		t.BayID = &bayID
		t.ExpectedStart, t.ExpectedEnd = &w.Start, &w.End
		t.ActualStart, t.ActualEnd = nil, nil
		t.Assignments = nil
		t.Status = model.TaskRescheduled
		if err := tx.UpdateTask(ctx, t, t.Version); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task rescheduled",
		zap.String("task_id", task.ID),
		zap.String("from_bay_id", fromBay),
		zap.String("bay_id", bayID),
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End))
	return task, nil
}

// checkTarget verifies the bay accepts t over w. A task already on an inactive bay may
// still be moved within it.
func (s *Service) checkTarget(ctx context.Context, tx store.Store, t *model.Task, bayID string, w engine.Window) error {
	bay, err := tx.GetBay(ctx, bayID)
	if err != nil {
		return err
	}
	staying := t.BayID != nil && *t.BayID == bay.ID
	if bay.Status == model.BayInactive && !staying {
		return fmt.Errorf("bay %s: %w", bay.BayNumber, apperr.ErrBayInactive)
	}

	tasks, err := tx.ListTasks(ctx, store.ActiveOn(bay.ID))
	if err != nil {
		return err
	}
	return engine.ConflictFor(bay.ID, w, tasks, t.ID)
}

// Begin starts work on a scheduled task now and records who is doing it.
func (s *Service) Begin(ctx context.Context, taskID string, assignments []model.Assignment) (task *model.Task, err error) {
	defer func() { record("begin", err) }()

	for i, a := range assignments {
		if strings.TrimSpace(a.TechnicianID) == "" {
			return nil, apperr.Invalid(fmt.Sprintf("assignments[%d].technicianId", i), "is required")
		}
	}

	err = s.onTaskBay(ctx, taskID, func(tx store.Store, t *model.Task) error {
		switch t.Status {
		case model.TaskScheduled, model.TaskRescheduled:
		case model.TaskUnscheduled:
			return fmt.Errorf("task %s: %w", t.ID, apperr.ErrNotScheduled)
		default:
			return fmt.Errorf("cannot begin task %s in status %s: %w", t.ID, t.Status, apperr.ErrInvalidTransition)
		}

		now := s.now()
		if !now.Before(*t.ExpectedEnd) {
			return apperr.Invalid("expectedEnd", "has already passed, reschedule the task first")
		}
		w := engine.Window{Start: now, End: *t.ExpectedEnd}
		tasks, err := tx.ListTasks(ctx, store.ActiveOn(*t.BayID))
		if err != nil {
			return err
		}
		if err := engine.ConflictFor(*t.BayID, w, tasks, t.ID); err != nil {
			return err
		}

		t.ActualStart = &now
		t.ActualEnd = nil
		t.Assignments = assignments
		t.Status = model.TaskInProgress
		if err := tx.UpdateTask(ctx, t, t.Version); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task started",
		zap.String("task_id", task.ID),
		zap.String("bay_id", *task.BayID),
		zap.Time("actual_start", *task.ActualStart),
		zap.Int("technicians", len(assignments)))
	return task, nil
}

// Extend records a projected end for a task that is running long.
func (s *Service) Extend(ctx context.Context, taskID string, actualEnd time.Time) (task *model.Task, err error) {
	defer func() { record("extend", err) }()

	if actualEnd.IsZero() {
		return nil, apperr.Invalid("actualEnd", "is required")
	}
	actualEnd = actualEnd.UTC()

	err = s.onTaskBay(ctx, taskID, func(tx store.Store, t *model.Task) error {
		if t.Status != model.TaskInProgress {
			return fmt.Errorf("cannot extend task %s in status %s: %w", t.ID, t.Status, apperr.ErrInvalidTransition)
		}
		w, err := engine.NewWindow(*t.ActualStart, actualEnd)
		if err != nil {
			return apperr.Invalid("actualEnd", "must be after actualStart")
		}
		tasks, err := tx.ListTasks(ctx, store.ActiveOn(*t.BayID))
		if err != nil {
			return err
		}
		if err := engine.ConflictFor(*t.BayID, w, tasks, t.ID); err != nil {
			return err
		}

		t.ActualEnd = &w.End
		if err := tx.UpdateTask(ctx, t, t.Version); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task extended",
		zap.String("task_id", task.ID),
		zap.String("bay_id", *task.BayID),
		zap.Time("actual_end", *task.ActualEnd))
	return task, nil
}

// Complete finishes an in-progress task. Its window stays for history only.
func (s *Service) Complete(ctx context.Context, taskID string) (task *model.Task, err error) {
	defer func() { record("complete", err) }()

	err = s.onTaskBay(ctx, taskID, func(tx store.Store, t *model.Task) error {
		if t.Status != model.TaskInProgress {
			return fmt.Errorf("cannot complete task %s in status %s: %w", t.ID, t.Status, apperr.ErrInvalidTransition)
		}
		if t.ActualEnd == nil {
			now := s.now()
			t.ActualEnd = &now
		}
		t.Status = model.TaskCompleted
		if err := tx.UpdateTask(ctx, t, t.Version); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task completed",
		zap.String("task_id", task.ID),
		zap.String("bay_id", *task.BayID),
		zap.Time("actual_end", *task.ActualEnd))
	return task, nil
}

// onTaskBay locks the bay the task currently sits on and hands fn a fresh copy of the
// task read inside the transaction.
func (s *Service) onTaskBay(ctx context.Context, taskID string, fn func(tx store.Store, t *model.Task) error) error {
	peek, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if peek.BayID == nil {
		if peek.Status == model.TaskUnscheduled {
			return fmt.Errorf("task %s: %w", peek.ID, apperr.ErrNotScheduled)
		}
		return fmt.Errorf("task %s has no bay: %w", peek.ID, apperr.ErrInvalidTransition)
	}
	bayID := *peek.BayID

	return s.withBayLock(ctx, bayID, func(tx store.Store) error {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if t.BayID == nil || *t.BayID != bayID {
			return fmt.Errorf("task %s moved while waiting for bay %s: %w", t.ID, bayID, apperr.ErrStaleVersion)
		}
		return fn(tx, t)
	})
}
