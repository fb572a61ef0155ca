package db

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nonyonah/hedwig/internal/models"
)

// Open connects to Postgres and migrates the schema. The returned handle is
// passed to repositories explicitly; there is no package-level singleton.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		PrepareStmt:                              true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.TransactionRecord{},
		&models.SessionContext{},
		&models.Invoice{},
		&models.PaymentLink{},
		&models.OfframpOrder{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logrus.Info("database connected and schema migrated")
	return gdb, nil
}
