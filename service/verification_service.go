package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"payverify/dto/model"
	"payverify/helper"
	"payverify/poller"

	"github.com/patrickmn/go-cache"
)

var (
	ErrServiceClosed   = errors.New("verification service is shut down")
	ErrTooManySessions = errors.New("too many verification sessions")
)

const (
	hookTimeout        = 2 * time.Second
	defaultMaxSessions = 1000
)

type VerificationServiceConfig struct {
	Poller     poller.Config
	SessionTTL time.Duration
	// MaxSessions caps concurrent sessions, finished ones included until
	// they expire.
	MaxSessions int
}

// VerificationService runs server-side verification sessions, one poller
// per transaction, for clients that cannot poll themselves.
type VerificationService struct {
	verifier poller.Verifier
	pollCfg  poller.Config
	ttl      time.Duration
	limit    int
	sessions *cache.Cache
	notifier Notifier
	recorder Recorder
	metrics  Metrics
	logger   *helper.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewVerificationService(verifier poller.Verifier, cfg VerificationServiceConfig, notifier Notifier, recorder Recorder, metrics Metrics) *VerificationService {
	def := poller.DefaultConfig()
	interval, ceiling, navigate := cfg.Poller.Interval, cfg.Poller.Ceiling, cfg.Poller.NavigateDelay
	if interval <= 0 {
		interval = def.Interval
	}
	if ceiling <= 0 {
		ceiling = def.Ceiling
	}
	ttl := cfg.SessionTTL
	if floor := ceiling + navigate + interval; ttl < floor {
		ttl = floor
	}
	limit := cfg.MaxSessions
	if limit <= 0 {
		limit = defaultMaxSessions
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &VerificationService{
		verifier: verifier,
		pollCfg:  cfg.Poller,
		ttl:      ttl,
		limit:    limit,
		sessions: cache.New(ttl, time.Minute),
		notifier: notifier,
		recorder: recorder,
		metrics:  metrics,
		logger:   helper.NewLogger("verification"),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.sessions.OnEvicted(func(id string, v interface{}) {
		if p, ok := v.(*poller.Poller); ok {
			p.Stop()
		}
	})
	return s
}

// Start begins verifying req.TransactionID. When a session already exists
// its snapshot is returned and created is false.
func (s *VerificationService) Start(req poller.Request) (snap poller.Snapshot, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return poller.Snapshot{}, false, ErrServiceClosed
	}
	if v, found := s.sessions.Get(req.TransactionID); found {
		return v.(*poller.Poller).Snapshot(), false, nil
	}
	if s.sessions.ItemCount() >= s.limit {
		s.logger.Warn("refusing verification for %s: %d sessions active", req.TransactionID, s.limit)
		return poller.Snapshot{}, false, ErrTooManySessions
	}

	p, err := poller.New(req, s.verifier, s.pollCfg, s.hooks())
	if err != nil {
		return poller.Snapshot{}, false, err
	}
	if err := p.Start(s.ctx); err != nil {
		return poller.Snapshot{}, false, err
	}
	s.sessions.Set(req.TransactionID, p, s.ttl)
	return p.Snapshot(), true, nil
}

func (s *VerificationService) Get(transactionID string) (poller.Snapshot, bool) {
	v, found := s.sessions.Get(transactionID)
	if !found {
		return poller.Snapshot{}, false
	}
	return v.(*poller.Poller).Snapshot(), true
}

// Stop tears a session down. It reports whether a session existed.
func (s *VerificationService) Stop(transactionID string) bool {
	if _, found := s.sessions.Get(transactionID); !found {
		return false
	}
	s.sessions.Delete(transactionID)
	return true
}

func (s *VerificationService) Active() int {
	return s.sessions.ItemCount()
}

// Shutdown stops every session. Start fails afterwards.
func (s *VerificationService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for id := range s.sessions.Items() {
		s.sessions.Delete(id)
	}
	s.cancel()
}

// hooks are built per session; published is only touched from that
// session's poller goroutine.
func (s *VerificationService) hooks() poller.Hooks {
	published := false
	return poller.Hooks{
		OnAttempt: func(snap poller.Snapshot, status poller.Status, err error) {
			result := string(status)
			entry := s.logEntry(model.VerificationLogAttempt, snap)
			entry.Status = result
			if err != nil {
				result = "error"
				entry.Error = err.Error()
			}
			s.metrics.PollAttempt(result)
			s.record(entry)
		},
		OnWarning: func(snap poller.Snapshot) {
			s.notify(NewVerificationEvent(EventWarning, snap, time.Now()))
		},
		OnChange: func(snap poller.Snapshot) {
			if published || !snap.State.Terminal() {
				return
			}
			published = true
			outcome := snap.State.String()
			if snap.State == poller.Failed {
				outcome = snap.Reason.String()
			}
			s.metrics.Verification(outcome)
			s.record(s.logEntry(model.VerificationLogOutcome, snap))
			s.notify(NewVerificationEvent(EventStateChanged, snap, time.Now()))
		},
		OnNavigate: func(snap poller.Snapshot) {
			s.record(s.logEntry(model.VerificationLogNavigate, snap))
			s.notify(NewVerificationEvent(EventNavigate, snap, time.Now()))
		},
	}
}

func (s *VerificationService) logEntry(kind string, snap poller.Snapshot) model.VerificationLog {
	return model.VerificationLog{
		TransactionID:     snap.TransactionID,
		PaymentMethod:     string(snap.PaymentMethod),
		Kind:              kind,
		State:             snap.State.String(),
		Reason:            snap.Reason.String(),
		PollingCount:      snap.PollingCount,
		ConsecutiveErrors: snap.ConsecutiveErrors,
		ElapsedMs:         snap.Elapsed.Milliseconds(),
		CreatedAt:         time.Now(),
	}
}

func (s *VerificationService) record(entry model.VerificationLog) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := s.recorder.Insert(ctx, entry); err != nil {
		s.logger.Warn("failed to record verification %s for %s: %v", entry.Kind, entry.TransactionID, err)
	}
}

func (s *VerificationService) notify(event VerificationEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("failed to publish %s for %s: %v", event.Type, event.TransactionID, err)
	}
}
