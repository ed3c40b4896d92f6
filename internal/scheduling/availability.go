package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/metrics"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// SnapshotQuery bounds the availability view. Nil fields fall back to configured defaults.
type SnapshotQuery struct {
	From           *time.Time
	To             *time.Time
	LookaheadHours *int
	LimitUpcoming  *int
}

// TaskView is a task as shown on the availability board.
type TaskView struct {
	ID            string           `json:"id"`
	OrderID       string           `json:"orderId"`
	OrderNumber   string           `json:"orderNumber,omitempty"`
	CustomerName  string           `json:"customerName,omitempty"`
	Kind          model.TaskKind   `json:"kind"`
	Status        model.TaskStatus `json:"status"`
	ExpectedStart *time.Time       `json:"expectedStart"`
	ExpectedEnd   *time.Time       `json:"expectedEnd"`
	ActualStart   *time.Time       `json:"actualStart"`
	ActualEnd     *time.Time       `json:"actualEnd"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
}

func newTaskView(t model.Task) TaskView {
	w, _ := engine.EffectiveWindow(t)
	v := TaskView{
		ID:            t.ID,
		OrderID:       t.OrderID,
		Kind:          t.Kind,
		Status:        t.Status,
		ExpectedStart: t.ExpectedStart,
		ExpectedEnd:   t.ExpectedEnd,
		ActualStart:   t.ActualStart,
		ActualEnd:     t.ActualEnd,
		Start:         w.Start,
		End:           w.End,
	}
	if t.Order != nil {
		v.OrderNumber = t.Order.OrderNumber
		v.CustomerName = t.Order.CustomerName
	}
	return v
}

// BaySnapshot is one bay's live state.
type BaySnapshot struct {
	BayID                string            `json:"bayId"`
	BayNumber            string            `json:"bayNumber"`
	Description          string            `json:"description"`
	AdministrativeStatus model.BayStatus   `json:"administrativeStatus"`
	Status               engine.LiveStatus `json:"status"`
	CurrentTask          *TaskView         `json:"currentTask"`
	UpcomingTasks        []TaskView        `json:"upcomingTasks"`
	NextAvailableAt      *time.Time        `json:"nextAvailableAt"`
}

// Snapshot is the availability board at Now for [From, To).
type Snapshot struct {
	Now  time.Time     `json:"now"`
	From time.Time     `json:"from"`
	To   time.Time     `json:"to"`
	Bays []BaySnapshot `json:"bays"`
}

func (s *Service) resolveRange(q SnapshotQuery, now time.Time) (engine.Window, int, error) {
	lookahead := s.cfg.Lookahead
	if q.LookaheadHours != nil {
		if *q.LookaheadHours <= 0 {
			return engine.Window{}, 0, apperr.Invalid("lookaheadHours", "must be positive")
		}
		lookahead = time.Duration(*q.LookaheadHours) * time.Hour
	}
	limit := s.cfg.UpcomingLimit
	if q.LimitUpcoming != nil {
		if *q.LimitUpcoming < 0 {
			return engine.Window{}, 0, apperr.Invalid("limitUpcoming", "must not be negative")
		}
		limit = *q.LimitUpcoming
	}

	from := now
	if q.From != nil {
		from = q.From.UTC()
	}
	to := from.Add(lookahead)
	if q.To != nil {
		to = q.To.UTC()
	}
	if !to.After(from) {
		return engine.Window{}, 0, apperr.Invalid("to", "must be after from")
	}
	return engine.Window{Start: from, End: to}, limit, nil
}

// Snapshot derives every bay's live status, current task, upcoming tasks and next free
// instant. Bays sharing an instant between two active tasks fail the whole view.
func (s *Service) Snapshot(ctx context.Context, q SnapshotQuery) (*Snapshot, error) {
	start := time.Now()
	defer func() { metrics.SnapshotDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	rng, limit, err := s.resolveRange(q, now)
	if err != nil {
		return nil, err
	}

	bays, err := s.ListBays(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bays))
	for _, b := range bays {
		ids = append(ids, b.ID)
	}
	filter := store.ActiveOn(ids...)
	filter.WithOrder = true
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}

	byBay := make(map[string][]model.Task, len(bays))
	for _, t := range tasks {
		if t.BayID == nil {
			continue
		}
		w, ok := engine.EffectiveWindow(t)
		if !ok {
			continue
		}
		if t.Status == model.TaskInProgress || w.Overlaps(rng) {
			byBay[*t.BayID] = append(byBay[*t.BayID], t)
		}
	}

	snap := &Snapshot{Now: now, From: rng.Start, To: rng.End, Bays: make([]BaySnapshot, 0, len(bays))}
	for _, bay := range bays {
		onBay := byBay[bay.ID]
		status, current, err := engine.LiveStatusOf(bay, now, onBay)
		if err != nil {
			s.reportIntegrity(err, "snapshot")
			return nil, err
		}

		bs := BaySnapshot{
			BayID:                bay.ID,
			BayNumber:            bay.BayNumber,
			Description:          bay.Description,
			AdministrativeStatus: bay.Status,
			Status:               status,
			UpcomingTasks:        []TaskView{},
			NextAvailableAt:      engine.NextAvailableAt(status, now, current),
		}
		if current != nil {
			v := newTaskView(*current)
			bs.CurrentTask = &v
		}
		for _, t := range engine.UpcomingTasks(bay.ID, now, onBay, limit) {
			bs.UpcomingTasks = append(bs.UpcomingTasks, newTaskView(t))
		}
		snap.Bays = append(snap.Bays, bs)
	}
	return snap, nil
}

// reportIntegrity logs, counts and raises an alert for an *apperr.IntegrityError.
func (s *Service) reportIntegrity(err error, source string) {
	var ie *apperr.IntegrityError
	if !errors.As(err, &ie) {
		return
	}
	s.log.Error("integrity violation",
		zap.String("source", source),
		zap.String("bay_id", ie.BayID),
		zap.Strings("task_ids", ie.TaskIDs))
	metrics.IntegrityViolations.WithLabelValues(source).Inc()
	s.alerts.Dispatch(model.IntegrityAlert{
		BayID:      ie.BayID,
		TaskIDs:    ie.TaskIDs,
		Reason:     fmt.Sprintf("%d tasks occupy the bay at %s", len(ie.TaskIDs), s.now().Format(time.RFC3339)),
		DetectedAt: s.now(),
	})
}
