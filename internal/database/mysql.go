package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLConfig describes a MySQL connection for the gorm-backed store.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	LogLevel string
	Pool     PoolConfig
}

func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// OpenMySQL connects through gorm, retrying while the server comes up.
func OpenMySQL(cfg MySQLConfig, retry RetryConfig, logger *zap.Logger) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// Balance mutations open their own transaction.
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
	}
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}

	var db *gorm.DB
	var err error
	for i := 0; i < retry.Attempts; i++ {
		db, err = gorm.Open(mysql.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				err = sqlDB.Ping()
			} else {
				err = dbErr
			}
		}
		if err == nil {
			break
		}
		if i < retry.Attempts-1 {
			logger.Warn("failed to connect to MySQL, retrying",
				zap.Int("attempt", i+1),
				zap.Int("max_attempts", retry.Attempts),
				zap.Duration("retry_in", retry.Delay),
				zap.Error(err),
			)
			time.Sleep(retry.Delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql after %d attempts: %w", retry.Attempts, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)

	logger.Info("connected to MySQL", zap.String("host", cfg.Host), zap.String("database", cfg.DBName))
	return db, nil
}

// CloseMySQL closes the pool underneath db.
func CloseMySQL(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Error
	}
}
