package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"payverify/dto/model"
	"payverify/helper"
)

// OutcomeJob notifies the marketplace backend that a payment settled.
type OutcomeJob struct {
	TransactionID   string
	NotificationURL string
	Data            model.OutcomeCallbackData
}

// CallbackStore records the callback result on the transaction.
type CallbackStore interface {
	UpdateCallbackResult(ctx context.Context, id string, callbackDate *time.Time, callbackResult string) error
}

// CallbackLogger is satisfied by helper.PaymentHelpers.
type CallbackLogger interface {
	LogAPICall(endpoint, method string, duration time.Duration, statusCode int, requestData, responseData map[string]interface{})
}

type OutcomeWorker struct {
	queue      chan OutcomeJob
	store      CallbackStore
	secret     string
	client     *http.Client
	retries    int
	retryDelay time.Duration
	logger     CallbackLogger
	wg         sync.WaitGroup
}

func NewOutcomeWorker(store CallbackStore, secret string, retries int, retryDelay time.Duration) *OutcomeWorker {
	if retries <= 0 {
		retries = 1
	}
	return &OutcomeWorker{
		queue:      make(chan OutcomeJob, 100),
		store:      store,
		secret:     secret,
		client:     &http.Client{Timeout: 15 * time.Second},
		retries:    retries,
		retryDelay: retryDelay,
		logger:     helper.NotificationLogger,
	}
}

// Enqueue never blocks; it reports false when the queue is full.
func (w *OutcomeWorker) Enqueue(job OutcomeJob) bool {
	select {
	case w.queue <- job:
		return true
	default:
		helper.Warn("outcome queue full, dropping callback for %s", job.TransactionID)
		return false
	}
}

// Run sends queued callbacks until ctx is cancelled, then waits for the
// sends already started.
func (w *OutcomeWorker) Run(ctx context.Context) {
	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.queue:
			w.wg.Add(1)
			go func(job OutcomeJob) {
				defer w.wg.Done()
				if err := w.SendCallbackWithRetry(ctx, job); err != nil {
					helper.Error("Failed to send callback for transactionId: %s: %v", job.TransactionID, err)
				}
			}(job)
		}
	}
}

func (w *OutcomeWorker) SendCallbackWithRetry(ctx context.Context, job OutcomeJob) error {
	for i := 0; i < w.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.retryDelay):
			}
		}

		callbackDate := time.Now()
		result, err := SendCallback(ctx, w.client, job.NotificationURL, w.secret, job.TransactionID, job.Data, w.logger)
		if err == nil {
			if err := w.store.UpdateCallbackResult(ctx, job.TransactionID, &callbackDate, result); err != nil {
				return fmt.Errorf("failed to update transaction callback timestamps: %w", err)
			}
			return nil
		}
		helper.Warn("callback attempt %d for %s failed: %v", i+1, job.TransactionID, err)
	}

	if err := w.store.UpdateCallbackResult(context.Background(), job.TransactionID, nil, "failed"); err != nil {
		return fmt.Errorf("failed to update transaction callback timestamps: %w", err)
	}
	return fmt.Errorf("all retry attempts failed for transactionId: %s", job.TransactionID)
}

// SendCallback posts data with a bodysign header and returns the
// receiver's "result" field, or "ok".
func SendCallback(ctx context.Context, client *http.Client, url, secret, transactionID string, data interface{}, logger CallbackLogger) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal callback data: %w", err)
	}
	bodyJSONString := string(jsonData)
	bodySign, _ := helper.GenerateBodySign(bodyJSONString, secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("bodysign", bodySign)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send callback: %w", err)
	}
	defer resp.Body.Close()

	var responseBody map[string]interface{}
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr == nil {
		contentType := resp.Header.Get("Content-Type")
		if strings.Contains(strings.ToLower(contentType), "application/json") {
			if err := json.Unmarshal(bodyBytes, &responseBody); err != nil {
				responseBody = map[string]interface{}{"raw_body": string(bodyBytes)}
			}
		} else {
			responseBody = map[string]interface{}{
				"raw_body":     string(bodyBytes),
				"content_type": contentType,
			}
		}
	}

	if logger != nil {
		logger.LogAPICall(url, http.MethodPost, time.Since(start), resp.StatusCode,
			map[string]interface{}{
				"transaction_id":  transactionID,
				"header_bodysign": bodySign,
				"request_body":    bodyJSONString,
			},
			map[string]interface{}{"body": responseBody},
		)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("callback failed with status: %s , url: %s", resp.Status, url)
	}

	if result, ok := responseBody["result"]; ok && result != nil {
		return fmt.Sprintf("%v", result), nil
	}
	return "ok", nil
}
