package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// SlotQuery asks for Count free windows of Duration on one bay.
type SlotQuery struct {
	BayID          string
	Duration       time.Duration
	SearchFrom     *time.Time // now when nil
	Count          int
	ExcludeTaskIDs []string
}

// FindSlots lists the earliest free windows on a bay, skipping the busy windows of the
// excluded tasks so a task can be moved within its own bay.
func (s *Service) FindSlots(ctx context.Context, q SlotQuery) ([]engine.Window, error) {
	if strings.TrimSpace(q.BayID) == "" {
		return nil, apperr.Invalid("bayId", "is required")
	}
	if q.Duration <= 0 {
		return nil, apperr.Invalid("durationMinutes", "must be positive")
	}
	if q.Count < 1 || q.Count > s.cfg.MaxSlotCount {
		return nil, apperr.Invalid("count", fmt.Sprintf("must be between 1 and %d", s.cfg.MaxSlotCount))
	}
	from := s.now()
	if q.SearchFrom != nil {
		from = q.SearchFrom.UTC()
	}

	bay, err := s.store.GetBay(ctx, q.BayID)
	if err != nil {
		return nil, err
	}
	if bay.Status == model.BayInactive {
		return nil, fmt.Errorf("bay %s: %w", bay.BayNumber, apperr.ErrBayInactive)
	}

	tasks, err := s.store.ListTasks(ctx, store.ActiveOn(bay.ID))
	if err != nil {
		return nil, err
	}
	busy := engine.BusyWindows(bay.ID, tasks, q.ExcludeTaskIDs...)
	return engine.FindSlots(busy, from, q.Duration, q.Count, s.cfg.SlotSearchHorizon), nil
}
