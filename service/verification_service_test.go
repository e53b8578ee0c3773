package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"payverify/poller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPollerConfig() poller.Config {
	return poller.Config{
		Interval:      20 * time.Millisecond,
		Ceiling:       time.Second,
		NavigateDelay: 10 * time.Millisecond,
		CallTimeout:   15 * time.Millisecond,
	}
}

func orangeVerification(id string) poller.Request {
	return poller.Request{
		TransactionID: id,
		PaymentMethod: poller.MethodOrangeMoney,
		PhoneNumber:   "655123456",
		Amount:        15000,
	}
}

func TestVerificationService_RunsSessionToNavigation(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusPending, poller.StatusSuccess}}
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	metrics := newFakeMetrics()
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig()}, notifier, recorder, metrics)
	defer s.Shutdown()

	snap, created, err := s.Start(orangeVerification("tx-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, poller.Pending, snap.State)

	require.Eventually(t, func() bool {
		snap, ok := s.Get("tx-1")
		return ok && snap.Navigated
	}, 2*time.Second, 5*time.Millisecond)

	snap, _ = s.Get("tx-1")
	assert.Equal(t, poller.Success, snap.State)
	assert.Equal(t, 2, snap.PollingCount)

	require.Eventually(t, func() bool { return len(notifier.types()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{EventStateChanged, EventNavigate}, notifier.types())
	assert.Equal(t, 1, metrics.outcome("success"))
	assert.Contains(t, recorder.kinds(), "outcome")
	assert.Contains(t, recorder.kinds(), "navigate")
}

func TestVerificationService_FailedOutcomeUsesReason(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusFailed}}
	metrics := newFakeMetrics()
	notifier := &fakeNotifier{}
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig()}, notifier, nil, metrics)
	defer s.Shutdown()

	_, _, err := s.Start(orangeVerification("tx-2"))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(notifier.types()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, metrics.outcome("payment_failed"))
	snap, ok := s.Get("tx-2")
	require.True(t, ok)
	assert.Equal(t, poller.Failed, snap.State)
	assert.Equal(t, poller.MessagePaymentFailed, snap.Message)
	assert.Equal(t, []string{EventStateChanged}, notifier.types())
}

func TestVerificationService_StartTwiceReturnsExistingSession(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig()}, nil, nil, nil)
	defer s.Shutdown()

	_, created, err := s.Start(orangeVerification("tx-3"))
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = s.Start(orangeVerification("tx-3"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, s.Active())
}

func TestVerificationService_StopTearsDown(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig()}, nil, nil, nil)
	defer s.Shutdown()

	_, _, err := s.Start(orangeVerification("tx-4"))
	require.NoError(t, err)

	assert.True(t, s.Stop("tx-4"))
	_, ok := s.Get("tx-4")
	assert.False(t, ok)
	assert.False(t, s.Stop("tx-4"))
}

func TestVerificationService_InvalidRequest(t *testing.T) {
	s := NewVerificationService(&sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}, VerificationServiceConfig{}, nil, nil, nil)
	defer s.Shutdown()

	req := orangeVerification("tx-5")
	req.PaymentMethod = "paypal"
	_, _, err := s.Start(req)
	require.ErrorIs(t, err, poller.ErrUnsupportedMethod)
	assert.Zero(t, s.Active())
}

func TestVerificationService_Shutdown(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig()}, nil, nil, nil)

	_, _, err := s.Start(orangeVerification("tx-6"))
	require.NoError(t, err)
	_, _, err = s.Start(orangeVerification("tx-7"))
	require.NoError(t, err)

	s.Shutdown()
	assert.Zero(t, s.Active())

	_, _, err = s.Start(orangeVerification("tx-8"))
	require.ErrorIs(t, err, ErrServiceClosed)
}

func TestVerificationService_SessionLimit(t *testing.T) {
	verifier := &sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}
	s := NewVerificationService(verifier, VerificationServiceConfig{Poller: fastPollerConfig(), MaxSessions: 2}, nil, nil, nil)
	defer s.Shutdown()

	_, _, err := s.Start(orangeVerification("tx-10"))
	require.NoError(t, err)
	_, _, err = s.Start(orangeVerification("tx-11"))
	require.NoError(t, err)

	_, _, err = s.Start(orangeVerification("tx-12"))
	require.ErrorIs(t, err, ErrTooManySessions)
	assert.Equal(t, 2, s.Active())

	_, created, err := s.Start(orangeVerification("tx-10"))
	require.NoError(t, err)
	assert.False(t, created)

	require.True(t, s.Stop("tx-11"))
	_, created, err = s.Start(orangeVerification("tx-12"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestVerificationService_SessionTTLCoversCeiling(t *testing.T) {
	s := NewVerificationService(&sequenceVerifier{statuses: []poller.Status{poller.StatusPending}}, VerificationServiceConfig{SessionTTL: time.Second}, nil, nil, nil)
	defer s.Shutdown()
	assert.Equal(t, 123*time.Second, s.ttl)
}

func TestRedisNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub)
	snap := poller.Snapshot{
		Request: orangeVerification("tx-9"),
		State:   poller.Failed,
		Reason:  poller.ReasonTimeout,
		Message: poller.MessageTimeout,
	}

	require.NoError(t, n.Notify(context.Background(), NewVerificationEvent(EventStateChanged, snap, time.Now())))
	assert.Equal(t, "payments:verification:tx-9", pub.channel)

	var got VerificationEvent
	require.NoError(t, json.Unmarshal(pub.message.([]byte), &got))
	assert.Equal(t, "failed", got.State)
	assert.Equal(t, "timeout", got.Reason)
	assert.Equal(t, poller.MessageTimeout, got.Message)

	pub.err = errors.New("connection refused")
	require.Error(t, n.Notify(context.Background(), NewVerificationEvent(EventWarning, snap, time.Now())))
}
