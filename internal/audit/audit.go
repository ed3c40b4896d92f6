package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/engine"
	"bay-scheduler-backend/internal/metrics"
	"bay-scheduler-backend/internal/model"
	"bay-scheduler-backend/internal/store"
)

// Alerter receives the overlaps a sweep finds.
type Alerter interface {
	Dispatch(alert model.IntegrityAlert)
}

// Finding is one pair of active tasks sharing time on a bay.
type Finding struct {
	BayID   string
	TaskIDs [2]string
	Overlap engine.Window
}

// Service periodically re-checks the no-overlap rule across every bay. It never
// mutates tasks; it only reports.
type Service struct {
	cfg    config.AuditConfig
	store  store.Store
	alerts Alerter
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates and initializes a new audit service.
func NewService(cfg config.AuditConfig, st store.Store, alerts Alerter, log *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  st,
		alerts: alerts,
		log:    log.With(zap.String("component", "audit")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately, then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("integrity audit is disabled, not starting")
		return
	}
	s.log.Info("starting integrity audit", zap.Duration("interval", s.cfg.Interval))

	s.sweep(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("integrity audit shutting down")
			return
		case <-timer.C:
			s.sweep(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil {
		s.log.Error("integrity sweep failed", zap.Error(err))
	}
}

// SweepOnce loads every active task, reports each overlapping pair and returns them.
func (s *Service) SweepOnce(ctx context.Context) ([]Finding, error) {
	tasks, err := s.store.ListTasks(ctx, store.ActiveOn())
	if err != nil {
		return nil, fmt.Errorf("failed to load active tasks: %w", err)
	}

	pairs := engine.OverlappingPairs(tasks)
	findings := make([]Finding, 0, len(pairs))
	detected := s.now()
	for _, p := range pairs {
		a, b := p[0], p[1]
		wa, _ := engine.EffectiveWindow(a)
		wb, _ := engine.EffectiveWindow(b)
		overlap := engine.Window{Start: later(wa.Start, wb.Start), End: earlier(wa.End, wb.End)}
		f := Finding{BayID: *a.BayID, TaskIDs: [2]string{a.ID, b.ID}, Overlap: overlap}
		findings = append(findings, f)

		s.log.Error("overlapping tasks on bay",
			zap.String("bay_id", f.BayID),
			zap.Strings("task_ids", f.TaskIDs[:]),
			zap.Time("overlap_start", overlap.Start),
			zap.Time("overlap_end", overlap.End))
		metrics.IntegrityViolations.WithLabelValues("audit").Inc()
		if s.alerts != nil {
			s.alerts.Dispatch(model.IntegrityAlert{
				BayID:   f.BayID,
				TaskIDs: []string{a.ID, b.ID},
				Reason: fmt.Sprintf("windows overlap from %s to %s",
					overlap.Start.Format(time.RFC3339), overlap.End.Format(time.RFC3339)),
				DetectedAt: detected,
			})
		}
	}

	s.log.Info("integrity sweep finished", zap.Int("tasks", len(tasks)), zap.Int("overlaps", len(findings)))
	return findings, nil
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
