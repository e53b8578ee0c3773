package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerificationLog is one poll attempt or outcome, stored in mongo.
type VerificationLog struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransactionID     string             `bson:"transaction_id" json:"transaction_id"`
	PaymentMethod     string             `bson:"payment_method" json:"payment_method"`
	Kind              string             `bson:"kind" json:"kind"`
	State             string             `bson:"state" json:"state"`
	Status            string             `bson:"status,omitempty" json:"status,omitempty"`
	Error             string             `bson:"error,omitempty" json:"error,omitempty"`
	Reason            string             `bson:"reason,omitempty" json:"reason,omitempty"`
	PollingCount      int                `bson:"polling_count" json:"polling_count"`
	ConsecutiveErrors int                `bson:"consecutive_errors" json:"consecutive_errors"`
	ElapsedMs         int64              `bson:"elapsed_ms" json:"elapsed_ms"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
}

const (
	VerificationLogAttempt  = "attempt"
	VerificationLogOutcome  = "outcome"
	VerificationLogNavigate = "navigate"
)
