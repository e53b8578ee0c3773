package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payverify/dto/model"

	"github.com/google/uuid"
	"go.elastic.co/apm"
	"gorm.io/gorm"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateTransaction = errors.New("transaction already exists")
)

var openStatusCodes = []int{model.StatusCodePending, model.StatusCodeWaiting}

type TransactionRepository struct {
	DB *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

// Create assigns a v7 uuid when the transaction has no id yet.
func (r *TransactionRepository) Create(ctx context.Context, transaction *model.Transactions) error {
	span, ctx := apm.StartSpan(ctx, "CreateTransaction", "repository")
	defer span.End()

	if transaction.ID == "" {
		uniqueID, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate transaction id: %w", err)
		}
		transaction.ID = uniqueID.String()
	}
	if transaction.StatusCode == 0 {
		transaction.StatusCode = model.StatusCodePending
	}

	if err := r.DB.WithContext(ctx).Create(transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("transaction %s: %w", transaction.ID, ErrDuplicateTransaction)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*model.Transactions, error) {
	span, ctx := apm.StartSpan(ctx, "GetTransactionByID", "repository")
	defer span.End()

	var transaction model.Transactions
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error fetching transaction: %w", err)
	}
	return &transaction, nil
}

// UpdateStatus moves an open transaction to statusCode. It reports false
// when the row was already settled or does not exist.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, statusCode int, referenceID, failReason string) (bool, error) {
	updates := map[string]interface{}{
		"status_code": statusCode,
	}
	if referenceID != "" {
		updates["reference_id"] = referenceID
	}
	if failReason != "" {
		updates["fail_reason"] = failReason
	}
	if statusCode == model.StatusCodeCompleted || statusCode == model.StatusCodeFailed {
		now := time.Now()
		updates["timestamp_callback_date"] = &now
	}

	result := r.DB.WithContext(ctx).Model(&model.Transactions{}).
		Where("id = ? AND status_code IN ?", id, openStatusCodes).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *TransactionRepository) MarkCompleted(ctx context.Context, id, referenceID string) (bool, error) {
	return r.UpdateStatus(ctx, id, model.StatusCodeCompleted, referenceID, "")
}

func (r *TransactionRepository) MarkFailed(ctx context.Context, id, referenceID, reason string) (bool, error) {
	return r.UpdateStatus(ctx, id, model.StatusCodeFailed, referenceID, reason)
}

// MarkSubmitted records the provider reference once the payment prompt
// was sent.
func (r *TransactionRepository) MarkSubmitted(ctx context.Context, id, referenceID string) error {
	now := time.Now()
	result := r.DB.WithContext(ctx).Model(&model.Transactions{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"reference_id":          referenceID,
			"timestamp_submit_date": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkVerified stamps verified_at on a completed transaction. Only the
// first caller gets true.
func (r *TransactionRepository) MarkVerified(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	result := r.DB.WithContext(ctx).Model(&model.Transactions{}).
		Where("id = ? AND status_code = ? AND verified_at IS NULL", id, model.StatusCodeCompleted).
		Update("verified_at", &now)
	if result.Error != nil {
		return false, fmt.Errorf("failed to mark transaction verified: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListStale returns open transactions created before olderThan, oldest
// first.
func (r *TransactionRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Transactions, error) {
	var transactions []model.Transactions
	if err := r.DB.WithContext(ctx).
		Where("status_code IN ? AND created_at < ?", openStatusCodes, olderThan).
		Order("created_at asc").
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("error fetching stale transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) ListPending(ctx context.Context, limit int) ([]model.Transactions, error) {
	var transactions []model.Transactions
	if err := r.DB.WithContext(ctx).
		Where("status_code IN ?", openStatusCodes).
		Order("created_at asc").
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("error fetching transactions: %w", err)
	}
	return transactions, nil
}

func (r *TransactionRepository) UpdateCallbackResult(ctx context.Context, id string, callbackDate *time.Time, callbackResult string) error {
	updates := map[string]interface{}{
		"timestamp_callback_result": callbackResult,
	}
	if callbackDate != nil {
		updates["timestamp_callback_date"] = callbackDate
	}

	result := r.DB.WithContext(ctx).Model(&model.Transactions{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update transaction callback timestamps: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}
