package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"payverify/dto/model"
	"payverify/lib"
	"payverify/poller"
	"payverify/repository"
	"payverify/worker"

	"github.com/go-redis/redis/v8"
)

type fakeTransactions struct {
	mu      sync.Mutex
	rows    map[string]*model.Transactions
	seq     int
	stale   time.Time
}

func newFakeTransactions(rows ...model.Transactions) *fakeTransactions {
	f := &fakeTransactions{rows: map[string]*model.Transactions{}}
	for i := range rows {
		row := rows[i]
		f.rows[row.ID] = &row
	}
	return f
}

func (f *fakeTransactions) Create(ctx context.Context, t *model.Transactions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t.ID = fmt.Sprintf("tx-%d", f.seq)
	t.CreatedAt = time.Now()
	row := *t
	f.rows[t.ID] = &row
	return nil
}

func (f *fakeTransactions) GetByID(ctx context.Context, id string) (*model.Transactions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, repository.ErrNotFound)
	}
	cp := *row
	return &cp, nil
}

func (f *fakeTransactions) update(id string, code int, referenceID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || (row.StatusCode != model.StatusCodePending && row.StatusCode != model.StatusCodeWaiting) {
		return false, nil
	}
	row.StatusCode = code
	row.FailReason = reason
	if referenceID != "" {
		row.ReferenceID = referenceID
	}
	return true, nil
}

func (f *fakeTransactions) MarkCompleted(ctx context.Context, id, referenceID string) (bool, error) {
	return f.update(id, model.StatusCodeCompleted, referenceID, "")
}

func (f *fakeTransactions) MarkFailed(ctx context.Context, id, referenceID, reason string) (bool, error) {
	return f.update(id, model.StatusCodeFailed, referenceID, reason)
}

func (f *fakeTransactions) MarkSubmitted(ctx context.Context, id, referenceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.ReferenceID = referenceID
	row.StatusCode = model.StatusCodeWaiting
	return nil
}

func (f *fakeTransactions) MarkVerified(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok || row.StatusCode != model.StatusCodeCompleted || row.VerifiedAt != nil {
		return false, nil
	}
	now := time.Now()
	row.VerifiedAt = &now
	return true, nil
}

func (f *fakeTransactions) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]model.Transactions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale = olderThan
	var out []model.Transactions
	for _, row := range f.rows {
		open := row.StatusCode == model.StatusCodePending || row.StatusCode == model.StatusCodeWaiting
		if open && row.CreatedAt.Before(olderThan) && len(out) < limit {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeTransactions) ListPending(ctx context.Context, limit int) ([]model.Transactions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Transactions
	for _, row := range f.rows {
		if row.StatusCode == model.StatusCodePending || row.StatusCode == model.StatusCodeWaiting {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeTransactions) get(id string) model.Transactions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

type fakeMethods map[string]model.PaymentMethod

func (f fakeMethods) FindBySlug(ctx context.Context, slug string) (*model.PaymentMethod, error) {
	m, ok := f[slug]
	if !ok {
		return nil, fmt.Errorf("payment method %s: %w", slug, repository.ErrNotFound)
	}
	return &m, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	requests  []lib.CollectionRequest
	requestFn func(lib.CollectionRequest) (lib.CollectionResponse, error)
	check     lib.PaymentStatusResult
	checkErr  error
	checks    int
}

func (p *fakeProvider) RequestPayment(ctx context.Context, in lib.CollectionRequest) (lib.CollectionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, in)
	p.mu.Unlock()
	if p.requestFn != nil {
		return p.requestFn(in)
	}
	return lib.CollectionResponse{ReferenceID: "ref-" + in.TransactionID, Status: lib.ProviderPending}, nil
}

func (p *fakeProvider) CheckPayment(ctx context.Context, referenceID string) (lib.PaymentStatusResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks++
	return p.check, p.checkErr
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []worker.OutcomeJob
}

func (q *fakeQueue) Enqueue(job worker.OutcomeJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *fakeQueue) all() []worker.OutcomeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]worker.OutcomeJob(nil), q.jobs...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []VerificationEvent
}

func (n *fakeNotifier) Notify(ctx context.Context, event VerificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []model.VerificationLog
}

func (r *fakeRecorder) Insert(ctx context.Context, entry model.VerificationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Kind)
	}
	return out
}

type fakeMetrics struct {
	mu       sync.Mutex
	attempts map[string]int
	outcomes map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{attempts: map[string]int{}, outcomes: map[string]int{}}
}

func (m *fakeMetrics) PollAttempt(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[result]++
}

func (m *fakeMetrics) Verification(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *fakeMetrics) outcome(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[name]
}

// sequenceVerifier returns statuses in order and repeats the last one.
type sequenceVerifier struct {
	mu       sync.Mutex
	statuses []poller.Status
}

func (v *sequenceVerifier) Verify(ctx context.Context, id string) (poller.Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.statuses[0]
	if len(v.statuses) > 1 {
		v.statuses = v.statuses[1:]
	}
	return st, nil
}

type fakePublisher struct {
	channel string
	message interface{}
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.message = message
	return redis.NewIntResult(1, p.err)
}
