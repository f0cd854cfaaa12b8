package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/ternarybob/arbor"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/models"
)

// Open connects to the configured relational backend and migrates the schema
func Open(config *common.Config, logger arbor.ILogger) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch config.Storage.Type {
	case "postgres":
		dialector = postgres.Open(config.Storage.Postgres.DSN)
	case "sqlite":
		path := config.Storage.SQLite.Path
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Storage.Type, err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logger.Info().
		Str("type", config.Storage.Type).
		Msg("Storage opened and migrated")

	return db, nil
}

// Migrate applies the schema for all mirror entities
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Organization{},
		&models.Customer{},
		&models.Tag{},
		&models.Order{},
		&models.OrderTag{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Bootstrap provisions the organization and its tag catalog. Existing rows
// are left untouched; the catalog is not created per crawl run.
func Bootstrap(db *gorm.DB, config *common.Config, logger arbor.ILogger) error {
	var org models.Organization
	err := db.Where("name = ?", config.Organization).First(&org).Error
	if err == gorm.ErrRecordNotFound {
		org = models.Organization{Name: config.Organization}
		if err := db.Create(&org).Error; err != nil {
			return fmt.Errorf("failed to create organization %q: %w", config.Organization, err)
		}
		logger.Info().Str("organization", org.Name).Msg("Organization provisioned")
	} else if err != nil {
		return fmt.Errorf("failed to look up organization %q: %w", config.Organization, err)
	}

	created := 0
	for _, bt := range config.Bootstrap.Tags {
		var existing models.Tag
		err := db.Where("organization_id = ? AND code = ?", org.ID, bt.Code).First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			tag := models.Tag{
				OrganizationID: org.ID,
				Code:           bt.Code,
				Name:           bt.Name,
				Color:          bt.Color,
			}
			if err := db.Create(&tag).Error; err != nil {
				return fmt.Errorf("failed to create tag %q: %w", bt.Code, err)
			}
			created++
		} else if err != nil {
			return fmt.Errorf("failed to look up tag %q: %w", bt.Code, err)
		}
	}

	if created > 0 {
		logger.Info().
			Str("organization", org.Name).
			Int("tags_created", created).
			Msg("Tag catalog provisioned")
	}

	return nil
}
