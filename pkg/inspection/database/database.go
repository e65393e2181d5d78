package database

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/config"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Connect opens the history database for driver and migrates the schema.
// A nil logger silences gorm.
func Connect(driver, dsn string, logger *log.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true, // user, detection
		},
		TranslateError: true,
		Logger:         newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		// sqlite serialises writers anyway; one connection keeps the pragma
		// and in-memory databases consistent.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the user and detection tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Detection{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func newGormLogger(logger *log.Logger) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	level := gormlogger.Warn
	if logger.GetLevel() <= log.DebugLevel {
		level = gormlogger.Info
	}
	return gormlogger.New(
		logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
		gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}
