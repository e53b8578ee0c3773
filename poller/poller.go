// Package poller resolves a just-initiated mobile-money payment to a
// terminal outcome by polling the verify endpoint on a fixed interval,
// bounded by a wall-clock ceiling.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payverify/helper"
)

// Verifier is the verify-transaction operation.
type Verifier interface {
	Verify(ctx context.Context, transactionID string) (Status, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, transactionID string) (Status, error)

func (f VerifierFunc) Verify(ctx context.Context, transactionID string) (Status, error) {
	return f(ctx, transactionID)
}

type Config struct {
	Interval      time.Duration
	Ceiling       time.Duration
	NavigateDelay time.Duration
	// CallTimeout bounds a single verify call. It must be shorter than
	// Interval so calls never overlap.
	CallTimeout time.Duration
	// WarnAfterErrors marks the verification degraded after that many
	// consecutive verify errors. Zero disables the warning.
	WarnAfterErrors int
	// MaxConsecutiveErrors fails the verification after that many
	// consecutive verify errors. Zero leaves only the ceiling.
	MaxConsecutiveErrors int

	Clock  Clock
	Logger *helper.Logger
}

func DefaultConfig() Config {
	return Config{
		Interval:        3 * time.Second,
		Ceiling:         120 * time.Second,
		NavigateDelay:   2 * time.Second,
		CallTimeout:     2500 * time.Millisecond,
		WarnAfterErrors: 3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Ceiling <= 0 {
		c.Ceiling = d.Ceiling
	}
	if c.NavigateDelay < 0 {
		c.NavigateDelay = 0
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = c.Interval * 5 / 6
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = helper.NewLogger("poller")
	}
	return c
}

func (c Config) validate() error {
	if c.CallTimeout >= c.Interval {
		return fmt.Errorf("%w: call timeout %s must be shorter than interval %s", ErrInvalidConfig, c.CallTimeout, c.Interval)
	}
	if c.Ceiling < c.Interval {
		return fmt.Errorf("%w: ceiling %s shorter than interval %s", ErrInvalidConfig, c.Ceiling, c.Interval)
	}
	if c.WarnAfterErrors < 0 || c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("%w: negative error threshold", ErrInvalidConfig)
	}
	return nil
}

// Hooks are invoked from the poller goroutine, in order, after the state
// they describe has been committed.
type Hooks struct {
	// OnAttempt fires after every verify call that was applied.
	OnAttempt func(s Snapshot, status Status, err error)
	// OnChange fires after every applied step, including state transitions.
	OnChange func(s Snapshot)
	// OnWarning fires once per streak of consecutive verify errors.
	OnWarning func(s Snapshot)
	// OnNavigate fires NavigateDelay after a Success transition.
	OnNavigate func(s Snapshot)
}

type checkResult struct {
	status Status
	err    error
}

// Poller verifies a single transaction. A fresh payment attempt needs a
// new Poller.
type Poller struct {
	txID     string
	cfg      Config
	hooks    Hooks
	verifier Verifier
	clock    Clock
	logger   *helper.Logger
	machine  *Machine

	mu       sync.RWMutex
	snap     Snapshot
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func New(req Request, verifier Verifier, cfg Config, hooks Hooks) (*Poller, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, fmt.Errorf("%w: verifier is required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := NewMachine(req, cfg.WarnAfterErrors, cfg.MaxConsecutiveErrors)
	return &Poller{
		txID:     req.TransactionID,
		cfg:      cfg,
		hooks:    hooks,
		verifier: verifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger.WithField("transaction_id", req.TransactionID),
		machine:  m,
		snap:     m.Snapshot(cfg.Clock.Now()),
		done:     make(chan struct{}),
	}, nil
}

// Start issues the first check immediately and keeps polling until a
// terminal state, the ceiling, Stop or ctx cancellation.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.machine.Begin(p.clock.Now(), p.cfg.Ceiling)
	p.snap = p.machine.Snapshot(p.clock.Now())
	p.mu.Unlock()

	p.logger.Info("verification started for %s %s", p.snap.PaymentMethod.DisplayName(), p.snap.PhoneNumber)
	go p.run(ctx)
	return nil
}

// Stop tears the poller down: every timer is cancelled and the loop has
// exited when Stop returns. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		started := p.started
		cancel := p.cancel
		p.started = true
		p.mu.Unlock()

		if !started {
			close(p.done)
			return
		}
		cancel()
		<-p.done
	})
}

// Done is closed once the poller loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the poller exits or ctx ends, and returns the latest
// snapshot.
func (p *Poller) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-p.done:
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	s := p.snap
	p.mu.RUnlock()
	if !s.StartedAt.IsZero() && s.FinishedAt.IsZero() {
		s.Elapsed = p.clock.Now().Sub(s.StartedAt)
	}
	return s
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	ceiling := p.clock.NewTimer(p.cfg.Ceiling)
	defer ceiling.Stop()

	var nav Timer
	defer func() {
		if nav != nil {
			nav.Stop()
		}
	}()

	callCtx, cancelCalls := context.WithCancel(ctx)
	defer cancelCalls()

	results := make(chan checkResult, 1)
	inFlight := false
	launch := func() {
		inFlight = true
		p.machine.Attempt()
		go p.check(callCtx, results)
	}

	tickC := ticker.C()
	ceilingC := ceiling.C()
	var navC <-chan time.Time

	// stopPolling releases the interval and ceiling once a terminal state
	// is reached.
	stopPolling := func() {
		ticker.Stop()
		ceiling.Stop()
		tickC, ceilingC = nil, nil
		cancelCalls()
	}

	launch()
	for {
		select {
		case <-ctx.Done():
			p.halt()
			return

		case <-tickC:
			now := p.clock.Now()
			if p.machine.Due(now) {
				p.expire(now)
				return
			}
			if inFlight {
				p.machine.Skip()
				p.commit(now)
				p.logger.Debug("verify call still in flight, skipping tick")
				continue
			}
			launch()

		case <-ceilingC:
			p.expire(p.clock.Now())
			return

		case res := <-results:
			inFlight = false
			if ctx.Err() != nil {
				p.halt()
				return
			}
			now := p.clock.Now()
			if p.machine.Due(now) {
				p.expire(now)
				return
			}
			ch := p.apply(res, now)
			state := p.machine.State()
			if state.Terminal() {
				stopPolling()
				if state == Success {
					nav = p.clock.NewTimer(p.cfg.NavigateDelay)
					navC = nav.C()
				}
			}
			p.publish(now, res, ch)
			if state == Failed {
				return
			}

		case <-navC:
			p.navigate(p.clock.Now())
			return
		}
	}
}

func (p *Poller) check(ctx context.Context, results chan<- checkResult) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	status, err := p.verifier.Verify(callCtx, p.txID)
	results <- checkResult{status: status, err: err}
}

func (p *Poller) apply(res checkResult, now time.Time) Change {
	if res.err != nil {
		// The record may not exist yet right after initiation; the next
		// tick is the retry.
		p.logger.Warn("verify call failed: %v", res.err)
		return p.machine.ObserveError(res.err, now)
	}
	p.logger.Debug("verify returned %s", res.status)
	return p.machine.Observe(res.status, now)
}

func (p *Poller) publish(now time.Time, res checkResult, ch Change) {
	s := p.commit(now)
	if ch.Transitioned {
		p.logger.Info("verification %s after %d polls (%s)", s.State, s.PollingCount, s.Elapsed)
	}
	if p.hooks.OnAttempt != nil {
		p.hooks.OnAttempt(s, res.status, res.err)
	}
	if ch.Warned {
		p.logger.Warn("verify failed %d times in a row", s.ConsecutiveErrors)
		if p.hooks.OnWarning != nil {
			p.hooks.OnWarning(s)
		}
	}
	if p.hooks.OnChange != nil {
		p.hooks.OnChange(s)
	}
}

func (p *Poller) expire(now time.Time) {
	ch := p.machine.Expire(now)
	p.machine.Halt(now)
	s := p.commit(now)
	if ch.Transitioned {
		p.logger.Warn("verification timed out after %d polls", s.PollingCount)
	}
	if p.hooks.OnChange != nil {
		p.hooks.OnChange(s)
	}
}

func (p *Poller) navigate(now time.Time) {
	p.machine.MarkNavigated()
	s := p.commit(now)
	if p.hooks.OnNavigate != nil {
		p.hooks.OnNavigate(s)
	}
	if p.hooks.OnChange != nil {
		p.hooks.OnChange(s)
	}
}

// halt runs on teardown; state is left as it was.
func (p *Poller) halt() {
	now := p.clock.Now()
	p.machine.Halt(now)
	p.commit(now)
}

func (p *Poller) commit(now time.Time) Snapshot {
	s := p.machine.Snapshot(now)
	p.mu.Lock()
	p.snap = s
	p.mu.Unlock()
	return s
}
