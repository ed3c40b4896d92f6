package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/parse"
	"bay-scheduler-backend/internal/store"
)

// BayInput creates a bay.
type BayInput struct {
	BayNumber   string
	Description string
}

// BayPatch updates a bay. Nil fields are left alone.
type BayPatch struct {
	BayNumber   *string
	Description *string
	Status      *model.BayStatus
}

// OrderInput creates a parent repair order.
type OrderInput struct {
	OrderNumber  string
	CustomerName string
}

// TaskInput creates an unscheduled task under an order.
type TaskInput struct {
	OrderID string
	Kind    model.TaskKind
}

// TaskQuery filters ListTasks. Empty fields do not filter.
type TaskQuery struct {
	BayID   string
	Status  model.TaskStatus
	OrderID string
}

func normalizeBayNumber(raw string) (string, error) {
	n, err := parse.ParseBayNumber(raw)
	if err != nil {
		return "", apperr.Invalid("bayNumber", err.Error())
	}
	return n.Label, nil
}

// ensureUniqueNumber rejects number if a bay other than selfID already carries it.
func ensureUniqueNumber(ctx context.Context, st store.Store, number, selfID string) error {
	existing, err := st.FindBayByNumber(ctx, number)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return fmt.Errorf("bay %q: %w", number, apperr.ErrDuplicate)
	}
	return nil
}

// --- Bays ---

func (s *Service) CreateBay(ctx context.Context, in BayInput) (*model.Bay, error) {
	number, err := normalizeBayNumber(in.BayNumber)
	if err != nil {
		return nil, err
	}
	if err := ensureUniqueNumber(ctx, s.store, number, ""); err != nil {
		return nil, err
	}

	bay := &model.Bay{
		ID:          s.newID(),
		BayNumber:   number,
		Description: strings.TrimSpace(in.Description),
		Status:      model.BayAvailable,
	}
	if err := s.store.CreateBay(ctx, bay); err != nil {
		return nil, err
	}
	s.log.Info("bay created", zap.String("bay_id", bay.ID), zap.String("bay_number", bay.BayNumber))
	return bay, nil
}

func (s *Service) GetBay(ctx context.Context, id string) (*model.Bay, error) {
	return s.store.GetBay(ctx, id)
}

// ListBays returns every bay in natural label order.
func (s *Service) ListBays(ctx context.Context) ([]model.Bay, error) {
	bays, err := s.store.ListBays(ctx)
	if err != nil {
		return nil, err
	}
	sortBays(bays)
	return bays, nil
}

func sortBays(bays []model.Bay) {
	keys := make(map[string]parse.BayNumber, len(bays))
	for _, b := range bays {
		n, err := parse.ParseBayNumber(b.BayNumber)
		if err != nil {
			n = parse.BayNumber{Label: b.BayNumber, Prefix: b.BayNumber}
		}
		keys[b.ID] = n
	}
	sort.SliceStable(bays, func(i, j int) bool {
		return parse.Less(keys[bays[i].ID], keys[bays[j].ID])
	})
}

// UpdateBay applies patch. Deactivating a bay leaves its existing tasks in place.
func (s *Service) UpdateBay(ctx context.Context, id string, patch BayPatch) (*model.Bay, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, apperr.Invalid("status", fmt.Sprintf("must be %q or %q", model.BayAvailable, model.BayInactive))
	}
	var number string
	if patch.BayNumber != nil {
		n, err := normalizeBayNumber(*patch.BayNumber)
		if err != nil {
			return nil, err
		}
		number = n
	}

	var bay *model.Bay
	err := s.withBayLock(ctx, id, func(tx store.Store) error {
		b, err := tx.GetBay(ctx, id)
		if err != nil {
			return err
		}
		if patch.BayNumber != nil {
			if err := ensureUniqueNumber(ctx, tx, number, b.ID); err != nil {
				return err
			}
			b.BayNumber = number
		}
		if patch.Description != nil {
			b.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Status != nil {
			b.Status = *patch.Status
		}
		if err := tx.SaveBay(ctx, b); err != nil {
			return err
		}
		bay = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bay updated",
		zap.String("bay_id", bay.ID),
		zap.String("bay_number", bay.BayNumber),
		zap.String("status", string(bay.Status)))
	return bay, nil
}

// SetBayStatus toggles the administrative status.
func (s *Service) SetBayStatus(ctx context.Context, id string, status model.BayStatus) (*model.Bay, error) {
	return s.UpdateBay(ctx, id, BayPatch{Status: &status})
}

// DeleteBay hard-deletes a bay no active task references.
func (s *Service) DeleteBay(ctx context.Context, id string) error {
	held, release, err := s.locker.Lock(ctx, "bay:"+id)
	if err != nil {
		return fmt.Errorf("failed to lock bay %s: %w", id, err)
	}
	defer release()

	if err := lockLost(ctx, held, id, s.store.DeleteBay(held, id)); err != nil {
		return err
	}
	s.log.Info("bay deleted", zap.String("bay_id", id))
	return nil
}

// --- Orders and tasks ---

func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*model.RepairOrder, error) {
	number := strings.TrimSpace(in.OrderNumber)
	if number == "" {
		return nil, apperr.Invalid("orderNumber", "is required")
	}
	order := &model.RepairOrder{
		ID:           s.newID(),
		OrderNumber:  number,
		CustomerName: strings.TrimSpace(in.CustomerName),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, apperr.Invalid("orderId", "is required")
	}
	if !in.Kind.Valid() {
		return nil, apperr.Invalid("kind", fmt.Sprintf("must be %q or %q", model.TaskInspection, model.TaskService))
	}
	order, err := s.store.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:      s.newID(),
		OrderID: order.ID,
		Kind:    in.Kind,
		Status:  model.TaskUnscheduled,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	task.Order = order
	s.log.Info("task created", zap.String("task_id", task.ID), zap.String("order_id", order.ID))
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*model.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	filter := store.TaskFilter{WithOrder: true}
	if q.BayID != "" {
		filter.BayIDs = []string{q.BayID}
	}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, apperr.Invalid("status", fmt.Sprintf("unknown task status %q", q.Status))
		}
		filter.Statuses = []model.TaskStatus{q.Status}
	}
	if q.OrderID != "" {
		filter.OrderID = &q.OrderID
	}
	return s.store.ListTasks(ctx, filter)
}

// ListAlerts returns the most recent integrity alerts first.
func (s *Service) ListAlerts(ctx context.Context, limit int) ([]model.IntegrityAlert, error) {
	if limit < 0 {
		return nil, apperr.Invalid("limit", "must not be negative")
	}
	return s.store.ListAlerts(ctx, limit)
}
