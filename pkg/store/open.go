package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config holds database connection settings.
type Config struct {
	// Driver is sqlite or mysql.
	Driver string `mapstructure:"driver"`

	// DSN is a file path for sqlite or a go-sql-driver DSN for mysql.
	DSN string `mapstructure:"dsn"`

	// AutoMigrate creates the plants table on open.
	AutoMigrate bool `mapstructure:"auto_migrate"`

	// MaxOpenConns bounds the pool (mysql). sqlite always uses one.
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Debug logs SQL statements.
	Debug bool `mapstructure:"debug"`
}

// DefaultConfig returns a local sqlite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          "plantcare.db",
		AutoMigrate:  true,
		MaxOpenConns: 10,
	}
}

// Open connects to the configured database and returns a store.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*GormStore, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultConfig().DSN
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("mysql dsn is required")
		}
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if dialector.Name() == DriverSQLite {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	s := New(db, log.With().Str("component", "store").Logger())
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	log.Info().Str("driver", dialector.Name()).Msg("Care store opened")
	return s, nil
}
