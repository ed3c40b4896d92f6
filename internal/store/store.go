package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/model"
)

// Store defines the interface for all database operations of the bay registry,
// the task store, parent-order lookups and integrity alerts.
type Store interface {
	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	CreateBay(ctx context.Context, bay *model.Bay) error
	GetBay(ctx context.Context, id string) (*model.Bay, error)
	FindBayByNumber(ctx context.Context, number string) (*model.Bay, error)
	ListBays(ctx context.Context) ([]model.Bay, error)
	SaveBay(ctx context.Context, bay *model.Bay) error
	DeleteBay(ctx context.Context, id string) error

	CreateOrder(ctx context.Context, order *model.RepairOrder) error
	GetOrder(ctx context.Context, id string) (*model.RepairOrder, error)

	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task, expectedVersion int64) error

	CreateAlert(ctx context.Context, alert *model.IntegrityAlert) error
	ListAlerts(ctx context.Context, limit int) ([]model.IntegrityAlert, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// --- Bays ---

func (s *gormStore) CreateBay(ctx context.Context, bay *model.Bay) error {
	if err := s.db.WithContext(ctx).Create(bay).Error; err != nil {
		return translate(err, "bay", bay.BayNumber)
	}
	return nil
}

func (s *gormStore) GetBay(ctx context.Context, id string) (*model.Bay, error) {
	var bay model.Bay
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&bay).Error; err != nil {
		return nil, translate(err, "bay", id)
	}
	return &bay, nil
}

func (s *gormStore) FindBayByNumber(ctx context.Context, number string) (*model.Bay, error) {
	var bay model.Bay
	if err := s.db.WithContext(ctx).Where("LOWER(bay_number) = LOWER(?)", number).First(&bay).Error; err != nil {
		return nil, translate(err, "bay", number)
	}
	return &bay, nil
}

func (s *gormStore) ListBays(ctx context.Context) ([]model.Bay, error) {
	var bays []model.Bay
	if err := s.db.WithContext(ctx).Order("bay_number").Find(&bays).Error; err != nil {
		return nil, fmt.Errorf("failed to list bays: %w", err)
	}
	return bays, nil
}

func (s *gormStore) SaveBay(ctx context.Context, bay *model.Bay) error {
	res := s.db.WithContext(ctx).Model(bay).
		Select("bay_number", "description", "status", "updated_at").
		Updates(bay)
	if res.Error != nil {
		return translate(res.Error, "bay", bay.ID)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("bay", bay.ID)
	}
	return nil
}

// DeleteBay hard-deletes a bay that no active task references.
func (s *gormStore) DeleteBay(ctx context.Context, id string) error {
	return s.Transaction(ctx, func(tx Store) error {
		db := tx.(*gormStore).db
		var active int64
		if err := db.Model(&model.Task{}).
			Where("bay_id = ? AND status IN ?", id, model.ActiveStatuses).
			Count(&active).Error; err != nil {
			return fmt.Errorf("failed to count tasks on bay %s: %w", id, err)
		}
		if active > 0 {
			return fmt.Errorf("bay %s has %d active tasks: %w", id, active, apperr.ErrBayInUse)
		}

		res := db.Where("id = ?", id).Delete(&model.Bay{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete bay %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("bay", id)
		}
		return nil
	})
}

// --- Orders ---

func (s *gormStore) CreateOrder(ctx context.Context, order *model.RepairOrder) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return translate(err, "order", order.OrderNumber)
	}
	return nil
}

func (s *gormStore) GetOrder(ctx context.Context, id string) (*model.RepairOrder, error) {
	var order model.RepairOrder
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, translate(err, "order", id)
	}
	return &order, nil
}

// --- Tasks ---

func (s *gormStore) CreateTask(ctx context.Context, task *model.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return translate(err, "task", task.ID)
	}
	return nil
}

func (s *gormStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).Preload("Order").Where("id = ?", id).First(&task).Error; err != nil {
		return nil, translate(err, "task", id)
	}
	return &task, nil
}

func (s *gormStore) ListTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := s.db.WithContext(ctx).Model(&model.Task{})
	if filter.BayIDs != nil {
		if len(filter.BayIDs) == 0 {
			return nil, nil
		}
		q = q.Where("bay_id IN ?", filter.BayIDs)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.OrderID != nil {
		q = q.Where("order_id = ?", *filter.OrderID)
	}
	if filter.WithOrder {
		q = q.Preload("Order")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var tasks []model.Task
	if err := q.Order("created_at").Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask writes the scheduling fields of task only if its stored version still
// equals expectedVersion, then bumps the version.
func (s *gormStore) UpdateTask(ctx context.Context, task *model.Task, expectedVersion int64) error {
	task.Version = expectedVersion + 1
	res := s.db.WithContext(ctx).Model(task).
		Where("version = ?", expectedVersion).
		Select(scheduleColumns).
		Updates(task)
	if res.Error != nil {
		task.Version = expectedVersion
		if isExclusionViolation(res.Error) {
			return fmt.Errorf("task %s overlaps another task on its bay: %w", task.ID, apperr.ErrSlotConflict)
		}
		return fmt.Errorf("failed to update task %s: %w", task.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		task.Version = expectedVersion
		return fmt.Errorf("task %s at version %d: %w", task.ID, expectedVersion, apperr.ErrStaleVersion)
	}
	return nil
}

var scheduleColumns = []string{
	"bay_id", "expected_start", "expected_end", "actual_start", "actual_end",
	"status", "assignments", "version", "updated_at",
}

// --- Alerts ---

func (s *gormStore) CreateAlert(ctx context.Context, alert *model.IntegrityAlert) error {
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to record integrity alert for bay %s: %w", alert.BayID, err)
	}
	return nil
}

func (s *gormStore) ListAlerts(ctx context.Context, limit int) ([]model.IntegrityAlert, error) {
	var alerts []model.IntegrityAlert
	q := s.db.WithContext(ctx).Order("detected_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list integrity alerts: %w", err)
	}
	return alerts, nil
}

// exclusionViolation is the postgres SQLSTATE raised by the bay window exclusion constraint.
const exclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var state interface{ SQLState() string }
	return errors.As(err, &state) && state.SQLState() == exclusionViolation
}

func translate(err error, kind, id string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(kind, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s %s: %w", kind, id, apperr.ErrDuplicate)
	}
	return fmt.Errorf("%s %s: %w", kind, id, err)
}
