package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dtohttp "payverify/dto/http"
	"payverify/dto/model"
	"payverify/helper"
	"payverify/lib"
	"payverify/poller"
	"payverify/repository"
	"payverify/worker"

	"github.com/go-playground/validator/v10"
	"go.elastic.co/apm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidMSISDN       = errors.New("invalid phone number for payment method")
	ErrMethodUnavailable   = errors.New("payment method unavailable")
	ErrAmountOutOfRange    = errors.New("amount out of range for payment method")
	ErrInvalidSignature    = errors.New("invalid callback signature")
	ErrInvalidCallback     = errors.New("invalid callback body")
)

const (
	reconcileBatch = 50
	expiryBatch    = 200
)

type TransactionStore interface {
	Create(ctx context.Context, transaction *model.Transactions) error
	GetByID(ctx context.Context, id string) (*model.Transactions, error)
	MarkCompleted(ctx context.Context, id, referenceID string) (bool, error)
	MarkFailed(ctx context.Context, id, referenceID, reason string) (bool, error)
	MarkSubmitted(ctx context.Context, id, referenceID string) error
	MarkVerified(ctx context.Context, id string) (bool, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Transactions, error)
	ListPending(ctx context.Context, limit int) ([]model.Transactions, error)
}

type PaymentMethodStore interface {
	FindBySlug(ctx context.Context, slug string) (*model.PaymentMethod, error)
}

// Provider is a mobile-money collection API.
type Provider interface {
	RequestPayment(ctx context.Context, in lib.CollectionRequest) (lib.CollectionResponse, error)
	CheckPayment(ctx context.Context, referenceID string) (lib.PaymentStatusResult, error)
}

type OutcomeQueue interface {
	Enqueue(job worker.OutcomeJob) bool
}

type PaymentServiceConfig struct {
	CallbackSecret string
	// InquiryAfter is how old a pending transaction must be before Verify
	// asks the provider directly.
	InquiryAfter  time.Duration
	PendingExpiry time.Duration
}

type PaymentService struct {
	transactions TransactionStore
	methods      PaymentMethodStore
	providers    map[string]Provider
	outcomes     OutcomeQueue
	cfg          PaymentServiceConfig
	validate     *validator.Validate
	logger       *helper.Logger
	now          func() time.Time
}

func NewPaymentService(transactions TransactionStore, methods PaymentMethodStore, providers map[string]Provider, outcomes OutcomeQueue, cfg PaymentServiceConfig) *PaymentService {
	if cfg.PendingExpiry <= 0 {
		cfg.PendingExpiry = 10 * time.Minute
	}
	return &PaymentService{
		transactions: transactions,
		methods:      methods,
		providers:    providers,
		outcomes:     outcomes,
		cfg:          cfg,
		validate:     validator.New(),
		logger:       helper.NewLogger("payment"),
		now:          time.Now,
	}
}

// Initiate creates a pending transaction and asks the provider to push the
// payment prompt to the payer's phone.
func (s *PaymentService) Initiate(ctx context.Context, req dtohttp.CreatePaymentRequest) (*model.Transactions, error) {
	span, ctx := apm.StartSpan(ctx, "InitiatePayment", "service")
	defer span.End()

	provider, ok := s.providers[req.PaymentMethod]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodUnavailable, req.PaymentMethod)
	}

	currency, err := helper.ValidateCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	if !helper.ValidMSISDN(req.UserMDN) {
		return nil, ErrInvalidMSISDN
	}

	method, err := s.methods.FindBySlug(ctx, req.PaymentMethod)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if !helper.IsValidPrefix(req.UserMDN, req.PaymentMethod) {
			return nil, ErrInvalidMSISDN
		}
	case err != nil:
		return nil, err
	default:
		if !method.Active() {
			return nil, fmt.Errorf("%w: %s", ErrMethodUnavailable, req.PaymentMethod)
		}
		prefixes := []string(method.Prefix)
		if len(prefixes) == 0 {
			prefixes = helper.ValidPrefixes[req.PaymentMethod]
		}
		if !helper.ByPrefixNumber(prefixes, req.UserMDN) {
			return nil, ErrInvalidMSISDN
		}
		if req.Amount < method.MinimumDenom || (method.MaximumDenom > 0 && req.Amount > method.MaximumDenom) {
			return nil, fmt.Errorf("%w: %s", ErrAmountOutOfRange, helper.FormatCurrencyXAF(req.Amount))
		}
	}

	now := s.now()
	transaction := &model.Transactions{
		PaymentMethod:        req.PaymentMethod,
		StatusCode:           model.StatusCodePending,
		UserMDN:              helper.NormalizeMSISDN(req.UserMDN, true),
		UserId:               req.UserID,
		Amount:               req.Amount,
		Currency:             currency,
		ItemName:             req.ItemName,
		ItemId:               req.ItemID,
		NotificationUrl:      req.NotificationURL,
		TimestampRequestDate: &now,
	}
	if err := s.transactions.Create(ctx, transaction); err != nil {
		return nil, err
	}

	res, err := provider.RequestPayment(ctx, lib.CollectionRequest{
		TransactionID: transaction.ID,
		MSISDN:        transaction.UserMDN,
		Amount:        transaction.Amount,
		Currency:      transaction.Currency,
		Description:   transaction.ItemName,
	})
	if err != nil {
		helper.PaymentLogger(req.PaymentMethod).LogTransactionError(transaction.ID, err.Error(), map[string]interface{}{
			"user_mdn": transaction.UserMDN,
			"amount":   transaction.Amount,
		})
		if _, markErr := s.transactions.MarkFailed(ctx, transaction.ID, "", "provider request failed"); markErr != nil {
			s.logger.Error("failed to mark transaction %s failed: %v", transaction.ID, markErr)
		}
		transaction.StatusCode = model.StatusCodeFailed
		return transaction, fmt.Errorf("payment request failed: %w", err)
	}

	if err := s.transactions.MarkSubmitted(ctx, transaction.ID, res.ReferenceID); err != nil {
		return nil, err
	}
	transaction.ReferenceID = res.ReferenceID
	transaction.StatusCode = model.StatusCodeWaiting

	// Some providers settle synchronously.
	switch res.Status {
	case lib.ProviderSuccess:
		s.settle(ctx, transaction, model.StatusCodeCompleted, "")
	case lib.ProviderFailed:
		s.settle(ctx, transaction, model.StatusCodeFailed, "rejected by provider")
	}

	s.logger.Info("payment %s initiated via %s for %s", transaction.ID, transaction.PaymentMethod, helper.FormatCurrencyXAF(transaction.Amount))
	return transaction, nil
}

// Verify answers the verify endpoint. A completed transaction reports
// success to the first caller and already_completed afterwards.
func (s *PaymentService) Verify(ctx context.Context, transactionID string) (poller.Status, error) {
	span, ctx := apm.StartSpan(ctx, "VerifyPayment", "service")
	defer span.End()

	transaction, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return "", err
	}

	if isOpen(transaction) && transaction.ReferenceID != "" && s.now().Sub(transaction.CreatedAt) >= s.cfg.InquiryAfter {
		s.inquire(ctx, transaction)
	}

	switch transaction.StatusCode {
	case model.StatusCodeCompleted:
		first, err := s.transactions.MarkVerified(ctx, transaction.ID)
		if err != nil {
			return "", err
		}
		if first {
			return poller.StatusSuccess, nil
		}
		return poller.StatusAlreadyCompleted, nil
	case model.StatusCodeFailed:
		return poller.StatusFailed, nil
	default:
		return poller.StatusPending, nil
	}
}

func (s *PaymentService) GetTransaction(ctx context.Context, transactionID string) (*model.Transactions, error) {
	transaction, err := s.transactions.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
		}
		return nil, err
	}
	return transaction, nil
}

// inquire refreshes transaction from the provider. Provider errors are
// logged; the stored status stands.
func (s *PaymentService) inquire(ctx context.Context, transaction *model.Transactions) {
	provider, ok := s.providers[transaction.PaymentMethod]
	if !ok {
		return
	}
	res, err := provider.CheckPayment(ctx, transaction.ReferenceID)
	if err != nil {
		s.logger.Warn("status inquiry for %s failed: %v", transaction.ID, err)
		return
	}
	switch res.Status {
	case lib.ProviderSuccess:
		s.settle(ctx, transaction, model.StatusCodeCompleted, "")
	case lib.ProviderFailed:
		reason := res.Reason
		if reason == "" {
			reason = "rejected by provider"
		}
		s.settle(ctx, transaction, model.StatusCodeFailed, reason)
	}
}

// settle moves an open transaction to a terminal code, storing its
// provider reference, and queues the outcome notification. When another
// path settled it first, transaction is reloaded.
func (s *PaymentService) settle(ctx context.Context, transaction *model.Transactions, statusCode int, reason string) bool {
	var (
		changed bool
		err     error
	)
	if statusCode == model.StatusCodeCompleted {
		changed, err = s.transactions.MarkCompleted(ctx, transaction.ID, transaction.ReferenceID)
	} else {
		changed, err = s.transactions.MarkFailed(ctx, transaction.ID, transaction.ReferenceID, reason)
	}
	if err != nil {
		s.logger.Error("failed to settle transaction %s: %v", transaction.ID, err)
		return false
	}
	if !changed {
		if fresh, err := s.transactions.GetByID(ctx, transaction.ID); err == nil {
			*transaction = *fresh
		}
		return false
	}

	transaction.StatusCode = statusCode
	transaction.FailReason = reason
	transaction.UpdatedAt = s.now()
	s.enqueueOutcome(transaction)
	return true
}

func (s *PaymentService) enqueueOutcome(transaction *model.Transactions) {
	if s.outcomes == nil || transaction.NotificationUrl == "" {
		return
	}
	s.outcomes.Enqueue(worker.OutcomeJob{
		TransactionID:   transaction.ID,
		NotificationURL: transaction.NotificationUrl,
		Data: model.OutcomeCallbackData{
			TransactionID: transaction.ID,
			UserID:        transaction.UserId,
			StatusCode:    transaction.StatusCode,
			Status:        transaction.Status(),
			PaymentMethod: transaction.PaymentMethod,
			Amount:        transaction.Amount,
			Currency:      transaction.Currency,
			ItemName:      transaction.ItemName,
			ItemID:        transaction.ItemId,
			ReferenceID:   transaction.ReferenceID,
			FailReason:    transaction.FailReason,
			UpdatedAt:     transaction.UpdatedAt.Format(time.RFC3339),
		},
	})
}

// HandleCallback applies a signed provider callback.
func (s *PaymentService) HandleCallback(ctx context.Context, method string, body []byte, signature string) (*model.Transactions, error) {
	span, ctx := apm.StartSpan(ctx, "HandleProviderCallback", "service")
	defer span.End()

	if s.cfg.CallbackSecret == "" || signature == "" || !helper.VerifyBodySign(body, s.cfg.CallbackSecret, signature) {
		return nil, ErrInvalidSignature
	}

	var cb dtohttp.ProviderCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if err := s.validate.Struct(cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	helper.PaymentLogger(method).LogCallback(cb.TransactionID, true, map[string]interface{}{
		"reference_id": cb.ReferenceID,
		"status":       cb.Status,
		"reason":       cb.Reason,
	})

	transaction, err := s.GetTransaction(ctx, cb.TransactionID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(transaction.PaymentMethod, method) {
		return nil, fmt.Errorf("%w: method mismatch", ErrInvalidCallback)
	}
	if cb.ReferenceID != "" && transaction.ReferenceID == "" {
		transaction.ReferenceID = cb.ReferenceID
	}

	switch lib.NormalizeProviderStatus(cb.Status) {
	case lib.ProviderSuccess:
		s.settle(ctx, transaction, model.StatusCodeCompleted, "")
	case lib.ProviderFailed:
		reason := cb.Reason
		if reason == "" {
			reason = "rejected by provider"
		}
		s.settle(ctx, transaction, model.StatusCodeFailed, reason)
	}
	return transaction, nil
}

// ExpireStale fails open transactions older than PendingExpiry. Each one
// is settled on its own so the notification url hears about it.
func (s *PaymentService) ExpireStale(ctx context.Context) (int64, error) {
	olderThan := s.now().Add(-s.cfg.PendingExpiry)

	var expired int64
	for {
		stale, err := s.transactions.ListStale(ctx, olderThan, expiryBatch)
		if err != nil {
			return expired, err
		}

		progressed := false
		for i := range stale {
			if s.settle(ctx, &stale[i], model.StatusCodeFailed, "expired") {
				expired++
				progressed = true
			}
		}
		if len(stale) < expiryBatch || !progressed || ctx.Err() != nil {
			break
		}
	}

	if expired > 0 {
		s.logger.Info("expired %d pending transactions", expired)
	}
	return expired, nil
}

// ReconcilePending asks the providers about open transactions that have
// waited longer than InquiryAfter. It returns how many were settled.
func (s *PaymentService) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := s.transactions.ListPending(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}

	settled := 0
	now := s.now()
	for i := range pending {
		transaction := &pending[i]
		if transaction.ReferenceID == "" || now.Sub(transaction.CreatedAt) < s.cfg.InquiryAfter {
			continue
		}
		s.inquire(ctx, transaction)
		if !isOpen(transaction) {
			settled++
		}
	}
	if settled > 0 {
		s.logger.Info("reconciled %d pending transactions", settled)
	}
	return settled, nil
}

func isOpen(t *model.Transactions) bool {
	return t.StatusCode == model.StatusCodePending || t.StatusCode == model.StatusCodeWaiting
}
