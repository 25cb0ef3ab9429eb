package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"looksdehoje-backend/config"
	"looksdehoje-backend/internal/model"
	"looksdehoje-backend/internal/session"
)

// DefaultAdminPassword seeds a fresh database when no initial password is configured.
const DefaultAdminPassword = "admin123"

// slowQueryThreshold is the duration above which gorm logs a query as slow.
const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm's query log through zap.
func gormLogger(log *zap.Logger, logQueries bool) logger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	level := logger.Warn
	if logQueries {
		level = logger.Info
	}
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

// Open connects to the configured database without migrating it.
func Open(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger(log, cfg.LogQueries),
		TranslateError: true,
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

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Category{},
		&model.Piece{},
		&model.StoreSettings{},
		&model.HeroSettings{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed creates the store settings singleton on first start, with a hashed admin password.
func Seed(ctx context.Context, db *gorm.DB, admin config.AdminConfig, log *zap.Logger) error {
	var n int64
	if err := db.WithContext(ctx).Model(&model.StoreSettings{}).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to count store settings: %w", err)
	}
	if n > 0 {
		return nil
	}

	password := admin.InitialPassword
	if password == "" {
		password = DefaultAdminPassword
		log.Warn("seeding store settings with the default admin password; change it from the admin settings page")
	}
	hash, err := session.HashPassword(password)
	if err != nil {
		return err
	}

	settings := model.StoreSettings{StoreName: admin.StoreName, AdminPassword: hash}
	if err := db.WithContext(ctx).Create(&settings).Error; err != nil {
		return fmt.Errorf("failed to seed store settings: %w", err)
	}
	log.Info("seeded store settings", zap.String("store_name", settings.StoreName))
	return nil
}

// Init opens, migrates and seeds the database.
func Init(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	log.Info("running database migrations", zap.String("driver", cfg.Database.Driver))
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := Seed(ctx, db, cfg.Admin, log); err != nil {
		return nil, err
	}

	log.Info("database initialization complete")
	return db, nil
}
