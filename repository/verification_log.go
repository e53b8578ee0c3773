package repository

import (
	"context"
	"fmt"
	"time"

	"payverify/dto/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const verificationLogCollection = "verification_logs"

type VerificationLogRepository struct {
	collection *mongo.Collection
}

func NewVerificationLogRepository(client *mongo.Client, databaseName string) *VerificationLogRepository {
	return &VerificationLogRepository{
		collection: client.Database(databaseName).Collection(verificationLogCollection),
	}
}

func (r *VerificationLogRepository) Insert(ctx context.Context, entry model.VerificationLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert verification log: %w", err)
	}
	return nil
}

// ListByTransaction returns the newest entries first.
func (r *VerificationLogRepository) ListByTransaction(ctx context.Context, transactionID string, limit int64) ([]model.VerificationLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, bson.M{"transaction_id": transactionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query verification logs: %w", err)
	}
	defer cursor.Close(ctx)

	var logs []model.VerificationLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, fmt.Errorf("failed to decode verification logs: %w", err)
	}
	return logs, nil
}
