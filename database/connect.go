package database

import (
	"context"
	"fmt"
	"time"

	"payverify/config"
	"payverify/dto/model"
	"payverify/helper"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB(s config.Settings) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(s.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	helper.Info("Connection Opened to Database")

	if err := db.AutoMigrate(&model.Transactions{}, &model.PaymentMethod{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	helper.Info("Database Migrated")

	return db, nil
}

// SetupMongoDB connects when uri is set. A nil client means mongo is
// disabled.
func SetupMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	helper.Info("Connected to MongoDB")
	return client, nil
}
