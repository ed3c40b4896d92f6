package scheduling

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/db"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/lock"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []model.IntegrityAlert
}

func (r *recordingAlerter) Dispatch(a model.IntegrityAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

type harness struct {
	svc    *Service
	store  store.Store
	clock  *fakeClock
	alerts *recordingAlerter
	order  *model.RepairOrder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gormDB)
	alerts := &recordingAlerter{}
	svc := NewService(st, lock.NewLocal(), alerts, config.SchedulingConfig{
		Lookahead:         24 * time.Hour,
		UpcomingLimit:     5,
		SlotSearchHorizon: 14 * 24 * time.Hour,
		MaxSlotCount:      50,
	}, zap.NewNop())
	clock := &fakeClock{now: at(8, 0)}
	svc.SetClock(clock.Now)

	order, err := svc.CreateOrder(context.Background(), OrderInput{OrderNumber: "RO-1001", CustomerName: "Dana Reyes"})
	require.NoError(t, err)
	return &harness{svc: svc, store: st, clock: clock, alerts: alerts, order: order}
}

func (h *harness) bay(t *testing.T, number string) *model.Bay {
	t.Helper()
	b, err := h.svc.CreateBay(context.Background(), BayInput{BayNumber: number})
	require.NoError(t, err)
	return b
}

func (h *harness) task(t *testing.T) *model.Task {
	t.Helper()
	tk, err := h.svc.CreateTask(context.Background(), TaskInput{OrderID: h.order.ID, Kind: model.TaskService})
	require.NoError(t, err)
	return tk
}

func (h *harness) assigned(t *testing.T, bayID string, start, end time.Time) *model.Task {
	t.Helper()
	tk, err := h.svc.Assign(context.Background(), h.task(t).ID, ScheduleRequest{BayID: bayID, Start: start, End: end})
	require.NoError(t, err)
	return tk
}

func TestAssign_SetsWindowAndStatus(t *testing.T) {
	h := newHarness(t)
	bay := h.bay(t, "Bay 1")

	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	assert.Equal(t, model.TaskScheduled, tk.Status)

	got, err := h.svc.GetTask(context.Background(), tk.ID)
	require.NoError(t, err)
	assert.Equal(t, bay.ID, *got.BayID)
	assert.True(t, at(9, 0).Equal(*got.ExpectedStart))
	assert.True(t, at(10, 0).Equal(*got.ExpectedEnd))
	assert.Equal(t, int64(1), got.Version)
}

func TestAssign_TouchingWindowsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	bay := h.bay(t, "Bay 1")

	h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	h.assigned(t, bay.ID, at(10, 0), at(11, 0))
	h.assigned(t, bay.ID, at(8, 0), at(9, 0))
}

func TestAssign_ConflictNamesCollidingTask(t *testing.T) {
	h := newHarness(t)
	bay := h.bay(t, "Bay 1")
	first := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	_, err := h.svc.Assign(context.Background(), h.task(t).ID, ScheduleRequest{BayID: bay.ID, Start: at(9, 30), End: at(10, 30)})
	require.True(t, errors.Is(err, apperr.ErrSlotConflict))
	var ce *apperr.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, first.ID, ce.TaskID)
	assert.True(t, at(9, 0).Equal(ce.Start))
	assert.True(t, at(10, 0).Equal(ce.End))
}

func TestAssign_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")

	t.Run("window validated before store access", func(t *testing.T) {
		_, err := h.svc.Assign(ctx, "missing", ScheduleRequest{BayID: bay.ID, Start: at(10, 0), End: at(10, 0)})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := h.svc.Assign(ctx, "missing", ScheduleRequest{BayID: bay.ID, Start: at(9, 0), End: at(10, 0)})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("unknown bay", func(t *testing.T) {
		_, err := h.svc.Assign(ctx, h.task(t).ID, ScheduleRequest{BayID: "nope", Start: at(9, 0), End: at(10, 0)})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("already assigned", func(t *testing.T) {
		tk := h.assigned(t, bay.ID, at(12, 0), at(13, 0))
		_, err := h.svc.Assign(ctx, tk.ID, ScheduleRequest{BayID: bay.ID, Start: at(14, 0), End: at(15, 0)})
		assert.True(t, errors.Is(err, apperr.ErrAlreadyScheduled))
	})
}

func TestAssign_InactiveBayAlwaysRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	_, err := h.svc.SetBayStatus(ctx, bay.ID, model.BayInactive)
	require.NoError(t, err)

	_, err = h.svc.Assign(ctx, h.task(t).ID, ScheduleRequest{BayID: bay.ID, Start: at(9, 0), End: at(10, 0)})
	assert.True(t, errors.Is(err, apperr.ErrBayInactive))
}

func TestReschedule_SelfExclusion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	moved, err := h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay.ID, Start: at(9, 30), End: at(10, 30)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskRescheduled, moved.Status)
	assert.True(t, at(9, 30).Equal(*moved.ExpectedStart))

	// Re-entrant.
	moved, err = h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay.ID, Start: at(9, 45), End: at(10, 45)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskRescheduled, moved.Status)
}

func TestReschedule_ClearsActualsOfRunningTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	h.clock.Set(at(9, 0))
	_, err := h.svc.Begin(ctx, tk.ID, []model.Assignment{{TechnicianID: "tech-1", Role: "lead"}})
	require.NoError(t, err)

	moved, err := h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay.ID, Start: at(13, 0), End: at(14, 0)})
	require.NoError(t, err)
	assert.Equal(t, model.TaskRescheduled, moved.Status)
	assert.Nil(t, moved.ActualStart)
	assert.Nil(t, moved.ActualEnd)

	got, err := h.svc.GetTask(ctx, tk.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ActualStart)
	assert.Empty(t, got.Assignments)
}

func TestReschedule_AcrossBays(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay1 := h.bay(t, "Bay 1")
	bay2 := h.bay(t, "Bay 2")
	blocker := h.assigned(t, bay2.ID, at(9, 0), at(10, 0))
	tk := h.assigned(t, bay1.ID, at(9, 0), at(10, 0))

	_, err := h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay2.ID, Start: at(9, 30), End: at(10, 30)})
	var ce *apperr.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, blocker.ID, ce.TaskID)

	moved, err := h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay2.ID, Start: at(10, 0), End: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, bay2.ID, *moved.BayID)

	// The old slot on bay 1 is free again.
	h.assigned(t, bay1.ID, at(9, 0), at(10, 0))
}

func TestReschedule_InactiveBay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay1 := h.bay(t, "Bay 1")
	bay2 := h.bay(t, "Bay 2")
	tk := h.assigned(t, bay1.ID, at(9, 0), at(10, 0))
	_, err := h.svc.SetBayStatus(ctx, bay1.ID, model.BayInactive)
	require.NoError(t, err)
	_, err = h.svc.SetBayStatus(ctx, bay2.ID, model.BayInactive)
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay2.ID, Start: at(9, 0), End: at(10, 0)})
	assert.True(t, errors.Is(err, apperr.ErrBayInactive))

	_, err = h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay1.ID, Start: at(11, 0), End: at(12, 0)})
	assert.NoError(t, err, "existing assignments on an inactive bay may still move within it")
}

func TestReschedule_InvalidStates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")

	_, err := h.svc.Reschedule(ctx, h.task(t).ID, ScheduleRequest{BayID: bay.ID, Start: at(9, 0), End: at(10, 0)})
	assert.True(t, errors.Is(err, apperr.ErrNotScheduled))

	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	h.clock.Set(at(9, 0))
	_, err = h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)
	_, err = h.svc.Complete(ctx, tk.ID)
	require.NoError(t, err)

	_, err = h.svc.Reschedule(ctx, tk.ID, ScheduleRequest{BayID: bay.ID, Start: at(11, 0), End: at(12, 0)})
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestBegin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")

	_, err := h.svc.Begin(ctx, h.task(t).ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrNotScheduled))

	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	h.clock.Set(at(9, 5))
	started, err := h.svc.Begin(ctx, tk.ID, []model.Assignment{{TechnicianID: "tech-7", Role: "mechanic"}})
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, started.Status)
	assert.True(t, at(9, 5).Equal(*started.ActualStart))
	assert.Equal(t, []model.Assignment{{TechnicianID: "tech-7", Role: "mechanic"}}, started.Assignments)

	_, err = h.svc.Begin(ctx, tk.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestBegin_EarlyStartConflictsWithPreviousTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	h.assigned(t, bay.ID, at(8, 0), at(9, 0))
	next := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	h.clock.Set(at(8, 30))
	_, err := h.svc.Begin(ctx, next.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrSlotConflict))
}

func TestBegin_AfterExpectedEnd(t *testing.T) {
	h := newHarness(t)
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	h.clock.Set(at(10, 0))
	_, err := h.svc.Begin(context.Background(), tk.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestBegin_RejectsBlankTechnician(t *testing.T) {
	h := newHarness(t)
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	_, err := h.svc.Begin(context.Background(), tk.ID, []model.Assignment{{Role: "lead"}})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "assignments[0].technicianId", ve.Field)
}

func TestExtend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	blocker := h.assigned(t, bay.ID, at(12, 0), at(13, 0))

	_, err := h.svc.Extend(ctx, tk.ID, at(11, 0))
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "only running tasks can be extended")

	h.clock.Set(at(9, 0))
	_, err = h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)

	_, err = h.svc.Extend(ctx, tk.ID, at(8, 0))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = h.svc.Extend(ctx, tk.ID, at(12, 30))
	var ce *apperr.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, blocker.ID, ce.TaskID)

	extended, err := h.svc.Extend(ctx, tk.ID, at(12, 0))
	require.NoError(t, err)
	assert.True(t, at(12, 0).Equal(*extended.ActualEnd))

	// The overrun now blocks new work.
	_, err = h.svc.Assign(ctx, h.task(t).ID, ScheduleRequest{BayID: bay.ID, Start: at(11, 0), End: at(11, 30)})
	assert.True(t, errors.Is(err, apperr.ErrSlotConflict))
}

func TestComplete_FreesTheWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	_, err := h.svc.Complete(ctx, tk.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	h.clock.Set(at(9, 0))
	_, err = h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)
	h.clock.Set(at(9, 40))
	done, err := h.svc.Complete(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskCompleted, done.Status)
	assert.True(t, at(9, 40).Equal(*done.ActualEnd))

	h.assigned(t, bay.ID, at(9, 0), at(10, 0))
}

func TestComplete_KeepsProjectedEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	h.clock.Set(at(9, 0))
	_, err := h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)
	_, err = h.svc.Extend(ctx, tk.ID, at(11, 0))
	require.NoError(t, err)

	h.clock.Set(at(10, 30))
	done, err := h.svc.Complete(ctx, tk.ID)
	require.NoError(t, err)
	assert.True(t, at(11, 0).Equal(*done.ActualEnd))
}

func TestConcurrentAssign_ExactlyOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	a, b := h.task(t), h.task(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = h.svc.Assign(ctx, id, ScheduleRequest{BayID: bay.ID, Start: at(9, 0), End: at(10, 0)})
		}(i, id)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestNoOverlap_RandomOperations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bays := []*model.Bay{h.bay(t, "Bay 1"), h.bay(t, "Bay 2")}
	rng := rand.New(rand.NewSource(42))

	var tasks []*model.Task
	for i := 0; i < 12; i++ {
		tasks = append(tasks, h.task(t))
	}
	for i := 0; i < 80; i++ {
		tk := tasks[rng.Intn(len(tasks))]
		bay := bays[rng.Intn(len(bays))]
		start := at(8, 0).Add(time.Duration(rng.Intn(16)) * 30 * time.Minute)
		end := start.Add(time.Duration(1+rng.Intn(4)) * 30 * time.Minute)
		req := ScheduleRequest{BayID: bay.ID, Start: start, End: end}
		if _, err := h.svc.Assign(ctx, tk.ID, req); errors.Is(err, apperr.ErrAlreadyScheduled) {
			_, _ = h.svc.Reschedule(ctx, tk.ID, req)
		}
	}

	all, err := h.store.ListTasks(ctx, store.ActiveOn())
	require.NoError(t, err)
	assert.NotEmpty(t, all)
	assert.Empty(t, engine.OverlappingPairs(all))
}

func TestSnapshot_Board(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay10 := h.bay(t, "Bay 10")
	bay2 := h.bay(t, "Bay 2")
	idle := h.bay(t, "Bay 3")
	off := h.bay(t, "Bay 4")
	_, err := h.svc.SetBayStatus(ctx, off.ID, model.BayInactive)
	require.NoError(t, err)

	running := h.assigned(t, bay2.ID, at(9, 0), at(11, 0))
	later := h.assigned(t, bay2.ID, at(13, 0), at(14, 0))
	h.assigned(t, bay10.ID, at(15, 0), at(16, 0))
	h.clock.Set(at(9, 0))
	_, err = h.svc.Begin(ctx, running.ID, nil)
	require.NoError(t, err)

	h.clock.Set(at(10, 0))
	snap, err := h.svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	assert.True(t, at(10, 0).Equal(snap.From))
	assert.True(t, at(10, 0).Add(24*time.Hour).Equal(snap.To))

	require.Len(t, snap.Bays, 4)
	var order []string
	for _, b := range snap.Bays {
		order = append(order, b.BayNumber)
	}
	assert.Equal(t, []string{"Bay 2", "Bay 3", "Bay 4", "Bay 10"}, order)

	b2 := snap.Bays[0]
	assert.Equal(t, engine.LiveOccupied, b2.Status)
	require.NotNil(t, b2.CurrentTask)
	assert.Equal(t, running.ID, b2.CurrentTask.ID)
	assert.Equal(t, "RO-1001", b2.CurrentTask.OrderNumber)
	assert.Equal(t, "Dana Reyes", b2.CurrentTask.CustomerName)
	assert.True(t, at(11, 0).Equal(*b2.NextAvailableAt))
	require.Len(t, b2.UpcomingTasks, 1)
	assert.Equal(t, later.ID, b2.UpcomingTasks[0].ID)

	b3 := snap.Bays[1]
	assert.Equal(t, idle.ID, b3.BayID)
	assert.Equal(t, engine.LiveAvailable, b3.Status)
	assert.True(t, at(10, 0).Equal(*b3.NextAvailableAt))
	assert.Empty(t, b3.UpcomingTasks)

	b4 := snap.Bays[2]
	assert.Equal(t, engine.LiveInactive, b4.Status)
	assert.Nil(t, b4.NextAvailableAt)

	b10 := snap.Bays[3]
	assert.Equal(t, engine.LiveAvailable, b10.Status)
	require.Len(t, b10.UpcomingTasks, 1)

	limit := 0
	snap, err = h.svc.Snapshot(ctx, SnapshotQuery{LimitUpcoming: &limit})
	require.NoError(t, err)
	assert.Empty(t, snap.Bays[0].UpcomingTasks)
}

func TestSnapshot_InProgressAlwaysVisible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	h.clock.Set(at(9, 0))
	_, err := h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)
	_, err = h.svc.Extend(ctx, tk.ID, at(13, 0))
	require.NoError(t, err)

	h.clock.Set(at(12, 0))
	from, to := at(14, 0), at(15, 0)
	snap, err := h.svc.Snapshot(ctx, SnapshotQuery{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, snap.Bays, 1)
	require.NotNil(t, snap.Bays[0].CurrentTask)
	assert.Equal(t, tk.ID, snap.Bays[0].CurrentTask.ID)
	assert.Equal(t, engine.LiveOccupied, snap.Bays[0].Status)
	assert.True(t, at(13, 0).Equal(*snap.Bays[0].NextAvailableAt))
}

func TestSnapshot_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	h.assigned(t, bay.ID, at(11, 0), at(12, 0))

	first, err := h.svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	second, err := h.svc.Snapshot(ctx, SnapshotQuery{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshot_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	from, to := at(12, 0), at(11, 0)
	_, err := h.svc.Snapshot(ctx, SnapshotQuery{From: &from, To: &to})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	zero := 0
	_, err = h.svc.Snapshot(ctx, SnapshotQuery{LookaheadHours: &zero})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	neg := -1
	_, err = h.svc.Snapshot(ctx, SnapshotQuery{LimitUpcoming: &neg})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestSnapshot_IntegrityViolationRaisesAlert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")

	// Corrupt data written around the coordinator.
	for _, id := range []string{"t-b", "t-a"} {
		bayID := bay.ID
		start, end := at(7, 0), at(9, 0)
		require.NoError(t, h.store.CreateTask(ctx, &model.Task{
			ID: id, OrderID: h.order.ID, Kind: model.TaskService, BayID: &bayID,
			ExpectedStart: &start, ExpectedEnd: &end, ActualStart: &start,
			Status: model.TaskInProgress,
		}))
	}

	_, err := h.svc.Snapshot(ctx, SnapshotQuery{})
	require.True(t, errors.Is(err, apperr.ErrIntegrityViolation))
	var ie *apperr.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, []string{"t-a", "t-b"}, ie.TaskIDs)

	require.Len(t, h.alerts.alerts, 1)
	assert.Equal(t, bay.ID, h.alerts.alerts[0].BayID)
	assert.Equal(t, []string{"t-a", "t-b"}, h.alerts.alerts[0].TaskIDs)
}

func TestFindSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	first := h.assigned(t, bay.ID, at(9, 0), at(10, 0))
	h.assigned(t, bay.ID, at(11, 0), at(12, 0))

	from := at(8, 0)
	slots, err := h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: time.Hour, SearchFrom: &from, Count: 3})
	require.NoError(t, err)
	require.Len(t, slots, 3)
	want := []engine.Window{
		{Start: at(8, 0), End: at(9, 0)},
		{Start: at(10, 0), End: at(11, 0)},
		{Start: at(12, 0), End: at(13, 0)},
	}
	for i := range want {
		assert.True(t, want[i].Start.Equal(slots[i].Start), "slot %d start", i)
		assert.True(t, want[i].End.Equal(slots[i].End), "slot %d end", i)
	}

	slots, err = h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: 2 * time.Hour, SearchFrom: &from, Count: 1, ExcludeTaskIDs: []string{first.ID}})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, at(8, 0).Equal(slots[0].Start))

	// Defaults to now.
	slots, err = h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: 30 * time.Minute, Count: 1})
	require.NoError(t, err)
	assert.True(t, at(8, 0).Equal(slots[0].Start))
}

func TestFindSlots_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")

	_, err := h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: 0, Count: 1})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: time.Hour, Count: 0})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: time.Hour, Count: 51})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.FindSlots(ctx, SlotQuery{BayID: "nope", Duration: time.Hour, Count: 1})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = h.svc.SetBayStatus(ctx, bay.ID, model.BayInactive)
	require.NoError(t, err)
	_, err = h.svc.FindSlots(ctx, SlotQuery{BayID: bay.ID, Duration: time.Hour, Count: 1})
	assert.True(t, errors.Is(err, apperr.ErrBayInactive))
}

func TestBayRegistry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateBay(ctx, BayInput{BayNumber: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	b1 := h.bay(t, "Bay #1")
	assert.Equal(t, "Bay 1", b1.BayNumber)
	_, err = h.svc.CreateBay(ctx, BayInput{BayNumber: "bay 1"})
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))

	b12 := h.bay(t, "Bay 12")
	h.bay(t, "Bay 3")
	bays, err := h.svc.ListBays(ctx)
	require.NoError(t, err)
	require.Len(t, bays, 3)
	assert.Equal(t, "Bay 12", bays[2].BayNumber)

	number, desc := "Bay 1", "lift"
	_, err = h.svc.UpdateBay(ctx, b12.ID, BayPatch{BayNumber: &number})
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	updated, err := h.svc.UpdateBay(ctx, b1.ID, BayPatch{BayNumber: &number, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "lift", updated.Description)

	bogus := model.BayStatus("closed")
	_, err = h.svc.UpdateBay(ctx, b1.ID, BayPatch{Status: &bogus})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.UpdateBay(ctx, "nope", BayPatch{Description: &desc})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteBay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bay := h.bay(t, "Bay 1")
	tk := h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	err := h.svc.DeleteBay(ctx, bay.ID)
	assert.True(t, errors.Is(err, apperr.ErrBayInUse))

	h.clock.Set(at(9, 0))
	_, err = h.svc.Begin(ctx, tk.ID, nil)
	require.NoError(t, err)
	_, err = h.svc.Complete(ctx, tk.ID)
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteBay(ctx, bay.ID))
	_, err = h.svc.GetBay(ctx, bay.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTasksAndOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreateOrder(ctx, OrderInput{OrderNumber: ""})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.CreateOrder(ctx, OrderInput{OrderNumber: "RO-1001"})
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))

	_, err = h.svc.CreateTask(ctx, TaskInput{OrderID: h.order.ID, Kind: "paint"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	_, err = h.svc.CreateTask(ctx, TaskInput{OrderID: "nope", Kind: model.TaskInspection})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	tk, err := h.svc.CreateTask(ctx, TaskInput{OrderID: h.order.ID, Kind: model.TaskInspection})
	require.NoError(t, err)
	assert.Equal(t, model.TaskUnscheduled, tk.Status)
	assert.Nil(t, tk.BayID)

	bay := h.bay(t, "Bay 1")
	h.assigned(t, bay.ID, at(9, 0), at(10, 0))

	list, err := h.svc.ListTasks(ctx, TaskQuery{Status: model.TaskUnscheduled})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tk.ID, list[0].ID)

	list, err = h.svc.ListTasks(ctx, TaskQuery{BayID: bay.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = h.svc.ListTasks(ctx, TaskQuery{Status: "parked"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
