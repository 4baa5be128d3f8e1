// Package db opens the relay database. The driver is inferred from the DSN:
// postgres:// or host=/dbname= pairs select PostgreSQL, @tcp(/@unix( selects
// MySQL, anything else is treated as a SQLite path.
package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chat-relay/internal/types"
	"chat-relay/internal/utils"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a database connection from configuration.
func NewDB(configManager types.ConfigManager) (*gorm.DB, error) {
	dsn := configManager.GetDatabaseConfig().DSN
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is not configured")
	}

	var gormLogger logger.Interface
	if configManager.GetLogConfig().Level == "debug" {
		gormLogger = logger.New(
			log.New(logrus.StandardLogger().Out, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Info,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		)
	}

	dialector, flavor, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	switch flavor {
	case flavorSQLite:
		// SQLite needs a single writer connection to avoid lock errors.
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	default:
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logrus.Debugf("Database connection established (%s)", flavor)
	return database, nil
}

type dbFlavor string

const (
	flavorSQLite   dbFlavor = "sqlite"
	flavorMySQL    dbFlavor = "mysql"
	flavorPostgres dbFlavor = "postgres"
)

// dialectorFor sniffs the DSN and builds the matching GORM dialector.
func dialectorFor(dsn string) (gorm.Dialector, dbFlavor, error) {
	isPostgres := strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		(strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="))
	isMySQL := strings.Contains(dsn, "@tcp(") || strings.Contains(dsn, "@unix(")

	if isPostgres {
		return postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), flavorPostgres, nil
	}

	if isMySQL {
		if !strings.Contains(dsn, "parseTime") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		return mysql.Open(dsn), flavorMySQL, nil
	}

	// SQLite. file: URIs carry their own path handling; plain paths get
	// their parent directory created.
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, flavorSQLite, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	cacheSize := utils.GetEnvOrDefault("SQLITE_CACHE_SIZE", "10000")
	busyTimeout := utils.GetEnvOrDefault("SQLITE_BUSY_TIMEOUT", "10000")
	params := fmt.Sprintf("_pragma=foreign_keys(1)&_busy_timeout=%s&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=%s", busyTimeout, cacheSize)
	delimiter := "?"
	if strings.Contains(dsn, "?") {
		delimiter = "&"
	}
	return sqlite.Open(dsn + delimiter + params), flavorSQLite, nil
}
