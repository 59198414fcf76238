package notifysink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fluxguard/incidentcore/pkg/clock"
	"github.com/fluxguard/incidentcore/pkg/incidenterr"
	"github.com/fluxguard/incidentcore/pkg/model"
)

// Deliverer performs the actual transport-level send for one notification.
// The reference Pool's default Deliverer always succeeds; tests and
// demonstration wiring (e.g. a webhook POST) can supply their own.
type Deliverer func(ctx context.Context, n *model.Notification) error

// Config mirrors spec §6.4's notifications.* keys.
type Config struct {
	QueueSize     int           // notifications.queue_size, default 1000
	WorkerCount   int           // notifications.worker_threads, default 2
	MaxRetries    int           // notifications.max_retries, default 3
	RetryBackoff  time.Duration // notifications.retry_backoff_secs, default 5s
	RatePerSecond float64       // outbound token-bucket rate; 0 disables limiting
}

// DefaultConfig returns the spec §6.4 defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    1000,
		WorkerCount:  2,
		MaxRetries:   3,
		RetryBackoff: 5 * time.Second,
	}
}

// Pool is the bounded, worker-pool-backed reference Sink.
// Modeled on the teacher's queue.WorkerPool/Worker: a fixed set of workers
// drain a channel and each send is retried with backoff. Stop() lets a
// delivery call already in progress complete; a send waiting between
// retries and notifications still in the queue are dropped unrecorded.
type Pool struct {
	cfg       Config
	clock     clock.Clock
	deliver   Deliverer
	limiter   *rate.Limiter
	queue     chan *model.Notification
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	mu  sync.Mutex
	log []*model.Notification // delivery history, most useful for tests
}

// NewPool creates a Pool. A nil Deliverer defaults to always-succeed.
func NewPool(cfg Config, c clock.Clock, deliver Deliverer) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if deliver == nil {
		deliver = func(context.Context, *model.Notification) error { return nil }
	}
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.WorkerCount)
	}
	return &Pool{
		cfg:     cfg,
		clock:   c,
		deliver: deliver,
		limiter: limiter,
		queue:   make(chan *model.Notification, cfg.QueueSize),
		stopCh:  make(chan struct{}),
	}
}

// Start spawns the worker goroutines.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Stop signals all workers to stop and waits for in-flight sends to finish.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

// QueueNotification enqueues n; a full queue surfaces as KindInternal
// (spec §5: "Full errors surface to callers as Internal").
func (p *Pool) QueueNotification(_ context.Context, n *model.Notification) error {
	if n == nil {
		return incidenterr.New(incidenterr.KindValidation, "notification must not be nil")
	}
	n.Status = model.NotificationPending
	select {
	case p.queue <- n:
		return nil
	default:
		return incidenterr.New(incidenterr.KindInternal, "notification queue is full")
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case n := <-p.queue:
			p.process(ctx, n)
		}
	}
}

func (p *Pool) process(ctx context.Context, n *model.Notification) {
	log := slog.With("notification_id", n.ID, "incident_id", n.IncidentID, "channel", n.Channel.Kind)
	n.Status = model.NotificationSending

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				log.Warn("rate limiter wait aborted", "error", err)
				break
			}
		}
		err := p.deliver(ctx, n)
		if err == nil {
			now := p.clock.Now()
			n.Status = model.NotificationSent
			n.SentAt = &now
			p.record(n)
			return
		}
		n.RetryCount = attempt + 1
		n.Error = err.Error()
		log.Warn("notification delivery attempt failed", "attempt", attempt, "error", err)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-p.clock.After(p.cfg.RetryBackoff):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}

	n.Status = model.NotificationFailed
	p.record(n)
	log.Error("notification delivery exhausted retries", "error", n.Error)
}

func (p *Pool) record(n *model.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = append(p.log, n)
}

// History returns every notification the pool has finished processing
// (sent or failed), for test assertions.
func (p *Pool) History() []*model.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*model.Notification, len(p.log))
	copy(out, p.log)
	return out
}

var _ Sink = (*Pool)(nil)
