package handler

import (
	"context"
	"errors"

	dtohttp "payverify/dto/http"
	"payverify/dto/model"
	"payverify/helper"
	"payverify/lib"
	"payverify/pkg/response"
	"payverify/poller"
	"payverify/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.elastic.co/apm"
)

type PaymentAPI interface {
	Initiate(ctx context.Context, req dtohttp.CreatePaymentRequest) (*model.Transactions, error)
	Verify(ctx context.Context, transactionID string) (poller.Status, error)
	GetTransaction(ctx context.Context, transactionID string) (*model.Transactions, error)
	HandleCallback(ctx context.Context, method string, body []byte, signature string) (*model.Transactions, error)
}

type PaymentHandler struct {
	Service  PaymentAPI
	validate *validator.Validate
}

func NewPaymentHandler(svc PaymentAPI) *PaymentHandler {
	return &PaymentHandler{Service: svc, validate: validator.New()}
}

// CreatePayment initiates a payment and pushes the prompt to the payer.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	span, ctx := apm.StartSpan(c.UserContext(), "CreatePayment", "handler")
	defer span.End()

	var input dtohttp.CreatePaymentRequest
	if err := c.BodyParser(&input); err != nil {
		return response.ResponseFailed(c, fiber.StatusBadRequest, "Invalid input")
	}
	if err := h.validate.Struct(input); err != nil {
		return response.ResponseFailed(c, fiber.StatusBadRequest, err.Error())
	}

	transaction, err := h.Service.Initiate(ctx, input)
	if err != nil {
		return paymentError(c, err)
	}

	return response.ResponseSuccess(c, fiber.StatusCreated, dtohttp.CreatePaymentResponse{
		TransactionID: transaction.ID,
		Status:        transaction.Status(),
		PaymentMethod: transaction.PaymentMethod,
		UserMDN:       transaction.UserMDN,
		Amount:        transaction.Amount,
		Currency:      transaction.Currency,
	})
}

// VerifyPayment is GET /payments/verify/:id and answers {"status": ...}.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	span, ctx := apm.StartSpan(c.UserContext(), "VerifyPayment", "handler")
	defer span.End()

	status, err := h.Service.Verify(ctx, c.Params("id"))
	if err != nil {
		return paymentError(c, err)
	}
	return c.JSON(dtohttp.VerifyResponse{Status: string(status)})
}

func (h *PaymentHandler) GetTransactionByID(c *fiber.Ctx) error {
	transaction, err := h.Service.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return paymentError(c, err)
	}
	return response.ResponseSuccess(c, fiber.StatusOK, transaction)
}

// ProviderCallback applies a signed settlement notice from a provider.
func (h *PaymentHandler) ProviderCallback(c *fiber.Ctx) error {
	span, ctx := apm.StartSpan(c.UserContext(), "ProviderCallback", "handler")
	defer span.End()

	method := c.Params("method")
	if _, err := poller.ParsePaymentMethod(method); err != nil {
		return response.ResponseFailed(c, fiber.StatusNotFound, err.Error())
	}

	transaction, err := h.Service.HandleCallback(ctx, method, c.Body(), c.Get("bodysign"))
	if err != nil {
		helper.Warn("callback from %s rejected: %v", method, err)
		return paymentError(c, err)
	}
	return response.ResponseSuccess(c, fiber.StatusOK, fiber.Map{
		"transaction_id": transaction.ID,
		"status":         transaction.Status(),
	})
}

func paymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrTransactionNotFound):
		return response.ResponseFailed(c, fiber.StatusNotFound, helper.GetStatusMessage("E0004"))
	case errors.Is(err, service.ErrInvalidSignature):
		return response.ResponseFailed(c, fiber.StatusUnauthorized, helper.GetStatusMessage("E0003"))
	case errors.Is(err, service.ErrInvalidMSISDN):
		return response.ResponseFailed(c, fiber.StatusBadRequest, helper.GetStatusMessage("E0016"))
	case errors.Is(err, service.ErrAmountOutOfRange):
		return response.ResponseFailed(c, fiber.StatusBadRequest, helper.GetStatusMessage("E0021"))
	case errors.Is(err, service.ErrInvalidCallback):
		return response.ResponseFailed(c, fiber.StatusBadRequest, helper.GetStatusMessage("E0019"))
	case errors.Is(err, service.ErrMethodUnavailable):
		return response.ResponseFailed(c, fiber.StatusUnprocessableEntity, helper.GetStatusMessage("E0005"))
	case errors.Is(err, lib.ErrProviderRejected):
		return response.ResponseFailed(c, fiber.StatusBadGateway, helper.GetStatusMessage("E0018"))
	default:
		helper.Error("request %s %s failed: %v", c.Method(), c.Path(), err)
		return response.Response(c, fiber.StatusInternalServerError, helper.GetStatusMessage("E4001"))
	}
}
