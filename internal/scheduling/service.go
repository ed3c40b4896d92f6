// Package scheduling is the staff-facing layer over the bay registry and task store.
// Every check-and-write runs in one store transaction while holding the bay's lock.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/apperr"
	"bay-scheduler-backend/internal/lock"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// Alerter receives integrity violations for operators. Dispatch must not block.
type Alerter interface {
	Dispatch(alert model.IntegrityAlert)
}

type noopAlerter struct{}

func (noopAlerter) Dispatch(model.IntegrityAlert) {}

// Service implements the registry, coordinator, snapshot and slot operations.
type Service struct {
	store  store.Store
	locker lock.Locker
	alerts Alerter
	log    *zap.Logger
	cfg    config.SchedulingConfig

	now   func() time.Time
	newID func() string
}

// NewService wires a Service. A nil alerter discards alerts.
func NewService(st store.Store, locker lock.Locker, alerts Alerter, cfg config.SchedulingConfig, log *zap.Logger) *Service {
	if alerts == nil {
		alerts = noopAlerter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:  st,
		locker: locker,
		alerts: alerts,
		log:    log.With(zap.String("component", "scheduling")),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = func() time.Time { return now().UTC() }
}

// withBayLock holds the bay's lock across one store transaction. The transaction is
// begun on the lock's context, so losing the lock rolls it back.
func (s *Service) withBayLock(ctx context.Context, bayID string, fn func(tx store.Store) error) error {
	held, release, err := s.locker.Lock(ctx, "bay:"+bayID)
	if err != nil {
		return fmt.Errorf("failed to lock bay %s: %w", bayID, err)
	}
	defer release()

	err = s.store.Transaction(held, fn)
	return lockLost(ctx, held, bayID, err)
}

// lockLost reports err as a retryable stale write when the lock went away under it.
func lockLost(ctx, held context.Context, bayID string, err error) error {
	if err != nil && held.Err() != nil && ctx.Err() == nil {
		return fmt.Errorf("lock on bay %s lost mid-write: %w", bayID, apperr.ErrStaleVersion)
	}
	return err
}
