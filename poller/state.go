package poller

import (
	"errors"
	"time"
)

var (
	ErrMissingTransactionID = errors.New("transaction id is required")
	ErrUnsupportedMethod    = errors.New("unsupported payment method")
	ErrAlreadyStarted       = errors.New("poller already started")
	ErrInvalidConfig        = errors.New("invalid poller config")
)

// State is the local verification state of a single payment.
type State int

const (
	Pending State = iota
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == Success || s == Failed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is an input to the transition table.
type Event int

const (
	EventPending Event = iota
	EventSucceeded
	EventFailed
	EventError
	EventCeiling
	EventErrorLimit
)

// EventFor maps a reported status onto an event. success and
// already_completed are the same event.
func EventFor(s Status) Event {
	switch s {
	case StatusSuccess, StatusAlreadyCompleted:
		return EventSucceeded
	case StatusFailed:
		return EventFailed
	default:
		return EventPending
	}
}

// Next is the transition table. The second return value reports whether
// the state changed. Terminal states never change.
func Next(s State, e Event) (State, bool) {
	if s != Pending {
		return s, false
	}
	switch e {
	case EventSucceeded:
		return Success, true
	case EventFailed, EventCeiling, EventErrorLimit:
		return Failed, true
	default:
		return Pending, false
	}
}

// FailureReason tells a reported payment failure apart from the local
// failure modes.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonPaymentFailed
	ReasonTimeout
	ReasonVerifierUnavailable
)

func (r FailureReason) String() string {
	switch r {
	case ReasonPaymentFailed:
		return "payment_failed"
	case ReasonTimeout:
		return "timeout"
	case ReasonVerifierUnavailable:
		return "verifier_unavailable"
	default:
		return ""
	}
}

func (r FailureReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

const (
	MessagePending             = "Waiting for payment confirmation on your phone."
	MessageSuccess             = "Payment confirmed."
	MessagePaymentFailed       = "Payment failed. Please try again or use another payment method."
	MessageTimeout             = "Payment verification timed out, please retry."
	MessageVerifierUnavailable = "We could not reach the payment service. Please retry in a moment."
	MessageDegraded            = "Still waiting, the payment service is responding slowly."
)

// Message is the user-facing text for a terminal reason.
func (r FailureReason) Message() string {
	switch r {
	case ReasonPaymentFailed:
		return MessagePaymentFailed
	case ReasonTimeout:
		return MessageTimeout
	case ReasonVerifierUnavailable:
		return MessageVerifierUnavailable
	default:
		return ""
	}
}

func reasonFor(e Event) FailureReason {
	switch e {
	case EventFailed:
		return ReasonPaymentFailed
	case EventCeiling:
		return ReasonTimeout
	case EventErrorLimit:
		return ReasonVerifierUnavailable
	default:
		return ReasonNone
	}
}

// Request carries what the payer confirmed. Only TransactionID drives the
// flow; the rest is for display.
type Request struct {
	TransactionID string        `json:"transaction_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PhoneNumber   string        `json:"phone_number"`
	Amount        float64       `json:"amount"`
}

func (r Request) validate() error {
	if r.TransactionID == "" {
		return ErrMissingTransactionID
	}
	if _, err := ParsePaymentMethod(string(r.PaymentMethod)); err != nil {
		return err
	}
	return nil
}

// Snapshot is a point-in-time copy of a verification.
type Snapshot struct {
	Request
	State             State         `json:"state"`
	Reason            FailureReason `json:"reason,omitempty"`
	Message           string        `json:"message"`
	LastStatus        Status        `json:"last_status,omitempty"`
	LastError         string        `json:"last_error,omitempty"`
	PollingCount      int           `json:"polling_count"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	SkippedTicks      int           `json:"skipped_ticks"`
	Degraded          bool          `json:"degraded"`
	Polling           bool          `json:"polling"`
	Navigated         bool          `json:"navigated"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at,omitempty"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Change describes what a single Machine step did.
type Change struct {
	Transitioned bool
	Warned       bool
}

// Machine applies events to a verification and keeps its bookkeeping.
// It is driven from one goroutine only.
type Machine struct {
	snap      Snapshot
	deadline  time.Time
	warnAfter int
	maxErrors int
}

func NewMachine(req Request, warnAfter, maxErrors int) *Machine {
	return &Machine{
		snap: Snapshot{
			Request: req,
			State:   Pending,
			Message: MessagePending,
		},
		warnAfter: warnAfter,
		maxErrors: maxErrors,
	}
}

// Begin records the start time and fixes the ceiling deadline.
func (m *Machine) Begin(now time.Time, ceiling time.Duration) {
	m.snap.StartedAt = now
	m.snap.Polling = true
	m.deadline = now.Add(ceiling)
}

// Due reports whether the ceiling has been reached at now.
func (m *Machine) Due(now time.Time) bool {
	return !m.deadline.IsZero() && !now.Before(m.deadline)
}

func (m *Machine) State() State { return m.snap.State }

func (m *Machine) Attempt() {
	m.snap.PollingCount++
}

func (m *Machine) Skip() {
	m.snap.SkippedTicks++
}

// Observe applies a status reported by the verify endpoint.
func (m *Machine) Observe(st Status, now time.Time) Change {
	if m.snap.State.Terminal() {
		return Change{}
	}
	m.snap.LastStatus = st
	m.snap.LastError = ""
	m.snap.ConsecutiveErrors = 0
	if m.snap.Degraded {
		m.snap.Degraded = false
		m.snap.Message = MessagePending
	}
	return Change{Transitioned: m.apply(EventFor(st), now)}
}

// ObserveError records a failed verify call. It only moves the state when
// an error limit is configured and reached.
func (m *Machine) ObserveError(err error, now time.Time) Change {
	if m.snap.State.Terminal() {
		return Change{}
	}
	m.snap.ConsecutiveErrors++
	if err != nil {
		m.snap.LastError = err.Error()
	}
	var ch Change
	if m.warnAfter > 0 && m.snap.ConsecutiveErrors == m.warnAfter {
		m.snap.Degraded = true
		m.snap.Message = MessageDegraded
		ch.Warned = true
	}
	if m.maxErrors > 0 && m.snap.ConsecutiveErrors >= m.maxErrors {
		ch.Transitioned = m.apply(EventErrorLimit, now)
	}
	return ch
}

// Expire applies the ceiling.
func (m *Machine) Expire(now time.Time) Change {
	return Change{Transitioned: m.apply(EventCeiling, now)}
}

// Halt marks polling as stopped without changing the state.
func (m *Machine) Halt(now time.Time) {
	m.snap.Polling = false
	if m.snap.FinishedAt.IsZero() {
		m.snap.FinishedAt = now
	}
}

func (m *Machine) MarkNavigated() {
	m.snap.Navigated = true
}

func (m *Machine) apply(e Event, now time.Time) bool {
	next, changed := Next(m.snap.State, e)
	if !changed {
		return false
	}
	m.snap.State = next
	m.snap.Polling = false
	m.snap.FinishedAt = now
	switch next {
	case Success:
		m.snap.Reason = ReasonNone
		m.snap.Message = MessageSuccess
		m.snap.Degraded = false
	case Failed:
		m.snap.Reason = reasonFor(e)
		m.snap.Message = m.snap.Reason.Message()
	}
	return true
}

// Snapshot returns a copy with Elapsed computed against now.
func (m *Machine) Snapshot(now time.Time) Snapshot {
	s := m.snap
	switch {
	case s.StartedAt.IsZero():
		s.Elapsed = 0
	case !s.FinishedAt.IsZero():
		s.Elapsed = s.FinishedAt.Sub(s.StartedAt)
	default:
		s.Elapsed = now.Sub(s.StartedAt)
	}
	return s
}
