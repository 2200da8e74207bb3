package database

import (
	"fmt"
	"log"

	"github.com/recruitflow/recruitflow/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres connection and runs migrations.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Println("Database connection established, running migrations...")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.OAuthCredential{},
		&models.Application{},
		&models.Attachment{},
	); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}
