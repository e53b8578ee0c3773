package handler

import (
	"context"
	"errors"
	"strings"

	dtohttp "payverify/dto/http"
	"payverify/dto/model"
	"payverify/pkg/response"
	"payverify/poller"
	"payverify/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type VerificationAPI interface {
	Start(req poller.Request) (poller.Snapshot, bool, error)
	Get(transactionID string) (poller.Snapshot, bool)
	Stop(transactionID string) bool
}

// TransactionLookup resolves the transaction a session is started for.
type TransactionLookup interface {
	GetTransaction(ctx context.Context, transactionID string) (*model.Transactions, error)
}

type VerificationLogReader interface {
	ListByTransaction(ctx context.Context, transactionID string, limit int64) ([]model.VerificationLog, error)
}

type VerificationHandler struct {
	Service      VerificationAPI
	Transactions TransactionLookup
	Logs         VerificationLogReader
	validate     *validator.Validate
}

// NewVerificationHandler takes a nil logs reader when the verification
// log is disabled.
func NewVerificationHandler(svc VerificationAPI, transactions TransactionLookup, logs VerificationLogReader) *VerificationHandler {
	return &VerificationHandler{Service: svc, Transactions: transactions, Logs: logs, validate: validator.New()}
}

func (h *VerificationHandler) StartVerification(c *fiber.Ctx) error {
	var input dtohttp.StartVerificationRequest
	if err := c.BodyParser(&input); err != nil {
		return response.ResponseFailed(c, fiber.StatusBadRequest, "Invalid input")
	}
	if err := h.validate.Struct(input); err != nil {
		return response.ResponseFailed(c, fiber.StatusBadRequest, err.Error())
	}

	transaction, err := h.Transactions.GetTransaction(c.UserContext(), input.TransactionID)
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		return response.ResponseFailed(c, fiber.StatusNotFound, "Transaction not found")
	case err != nil:
		return response.ResponseFailed(c, fiber.StatusInternalServerError, err.Error())
	case !strings.EqualFold(transaction.PaymentMethod, input.PaymentMethod):
		return response.ResponseFailed(c, fiber.StatusBadRequest, "Payment method does not match transaction")
	}

	snap, created, err := h.Service.Start(poller.Request{
		TransactionID: input.TransactionID,
		PaymentMethod: poller.PaymentMethod(input.PaymentMethod),
		PhoneNumber:   input.PhoneNumber,
		Amount:        input.Amount,
	})
	switch {
	case errors.Is(err, service.ErrServiceClosed), errors.Is(err, service.ErrTooManySessions):
		return response.ResponseFailed(c, fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		return response.ResponseFailed(c, fiber.StatusBadRequest, err.Error())
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return response.ResponseSuccess(c, status, toVerificationSnapshot(snap))
}

func (h *VerificationHandler) GetVerification(c *fiber.Ctx) error {
	snap, ok := h.Service.Get(c.Params("id"))
	if !ok {
		return response.ResponseFailed(c, fiber.StatusNotFound, "Verification not found")
	}
	return response.ResponseSuccess(c, fiber.StatusOK, toVerificationSnapshot(snap))
}

func (h *VerificationHandler) StopVerification(c *fiber.Ctx) error {
	if !h.Service.Stop(c.Params("id")) {
		return response.ResponseFailed(c, fiber.StatusNotFound, "Verification not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *VerificationHandler) GetVerificationLogs(c *fiber.Ctx) error {
	if h.Logs == nil {
		return response.ResponseFailed(c, fiber.StatusNotFound, "Verification log is disabled")
	}
	limit := int64(c.QueryInt("limit", 50))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	logs, err := h.Logs.ListByTransaction(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return response.Response(c, fiber.StatusInternalServerError, err.Error())
	}
	return response.ResponseSuccess(c, fiber.StatusOK, logs)
}

func toVerificationSnapshot(s poller.Snapshot) dtohttp.VerificationSnapshot {
	return dtohttp.VerificationSnapshot{
		TransactionID:     s.TransactionID,
		PaymentMethod:     string(s.PaymentMethod),
		PhoneNumber:       s.PhoneNumber,
		Amount:            s.Amount,
		State:             s.State.String(),
		Reason:            s.Reason.String(),
		Message:           s.Message,
		LastStatus:        string(s.LastStatus),
		PollingCount:      s.PollingCount,
		ConsecutiveErrors: s.ConsecutiveErrors,
		Degraded:          s.Degraded,
		Polling:           s.Polling,
		Navigated:         s.Navigated,
		StartedAt:         s.StartedAt,
		ElapsedSeconds:    s.Elapsed.Seconds(),
	}
}
