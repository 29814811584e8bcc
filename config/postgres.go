package config

import (
	"errors"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

func InitPostgres() error {
	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}

	gcfg := &gorm.Config{}
	if os.Getenv("POSTGRES_LOG_QUERIES") == "true" {
		gcfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(postgres.Open(uri), gcfg)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Pipeline workers and request handlers share this pool; keep enough
	// headroom that frame batch inserts never starve status reads.
	sqlDB.SetMaxIdleConns(getEnvAsIntOrDefault("POSTGRES_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(getEnvAsIntOrDefault("POSTGRES_MAX_OPEN_CONNS", 100))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	PostgresDB = db
	return nil
}
