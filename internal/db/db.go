package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bay-scheduler-backend/config"
	"bay-scheduler-backend/internal/model"
)

// Init opens the database, configures the pool and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Open connects with the configured driver without touching the schema.
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(cfg, log),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// newGormLogger routes gorm's log lines through zap. Lookups that find nothing are
// expected (uniqueness prechecks, 404s) and are not logged.
func newGormLogger(cfg *config.DatabaseConfig, log *zap.Logger) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	level := logger.Warn
	if cfg.LogQueries {
		level = logger.Info
	}
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, cfg *config.DatabaseConfig, log *zap.Logger) error {
	log.Info("running database migrations", zap.String("driver", db.Dialector.Name()))
	if err := db.AutoMigrate(
		&model.Bay{},
		&model.RepairOrder{},
		&model.Task{},
		&model.IntegrityAlert{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.EnableRangeIndex && db.Dialector.Name() == "postgres" {
		log.Info("applying postgres bay window exclusion constraint")
		if err := applyRangeDDL(db); err != nil {
			log.Warn("failed to apply bay window constraint, continuing without it", zap.Error(err))
		}
	}

	log.Info("database initialization complete")
	return nil
}

// noOverlapConstraint makes postgres reject two active windows sharing an instant on one bay.
const noOverlapConstraint = "tasks_bay_window_no_overlap"

func applyRangeDDL(db *gorm.DB) error {
	ddls := []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist;",

		// windows are half-open, matching the overlap rule
		"DO $$ BEGIN " +
			"IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '" + noOverlapConstraint + "') THEN " +
			"ALTER TABLE tasks ADD CONSTRAINT " + noOverlapConstraint + " EXCLUDE USING GIST (" +
			"bay_id WITH =, " +
			"tstzrange(COALESCE(actual_start, expected_start), COALESCE(actual_end, expected_end), '[)') WITH &&" +
			") WHERE (status IN ('scheduled', 'rescheduled', 'in_progress') AND bay_id IS NOT NULL); " +
			"END IF; END $$;",

		"CREATE INDEX IF NOT EXISTS idx_integrity_alerts_detected_at ON integrity_alerts (detected_at DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
