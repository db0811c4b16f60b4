package alert

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cronwatch/pkg/logx"
)

var (
	ErrQueueFull = errors.New("alert queue full")
	ErrStopped   = errors.New("alert notifier stopped")
)

// Config controls the alert pipeline.
type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int

	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 1
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
	return c
}

// Notifier is the async alert pipeline. Safe for concurrent use.
type Notifier struct {
	mu sync.Mutex

	cfg     Config
	sinks   []Sink
	journal Journal
	log     logx.Logger
	limiter *rate.Limiter

	accepting bool
	queue     chan Event

	runCtx    context.Context
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func NewNotifier(cfg Config, sinks []Sink, journal Journal, log logx.Logger) *Notifier {
	cfg = cfg.withDefaults()
	return &Notifier{
		cfg:     cfg,
		sinks:   sinks,
		journal: journal,
		log:     log,
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	if n.queue != nil {
		n.mu.Unlock()
		return
	}
	n.queue = make(chan Event, n.cfg.QueueSize)
	n.accepting = true
	n.runCtx, n.runCancel = context.WithCancel(ctx)
	workers := n.cfg.Workers
	// Capture here: Stop nils n.queue, and a worker goroutine scheduled
	// after that must still drain the channel it was started for.
	q := n.queue
	runCtx := n.runCtx
	n.mu.Unlock()

	for i := 0; i < workers; i++ {
		n.workerWG.Add(1)
		go func() {
			defer n.workerWG.Done()
			n.workerLoop(q, runCtx)
		}()
	}
}

// Stop blocks new raises and drains the queue best-effort until ctx expires.
func (n *Notifier) Stop(ctx context.Context) {
	n.mu.Lock()
	q := n.queue
	cancel := n.runCancel
	if q == nil {
		n.mu.Unlock()
		return
	}
	n.accepting = false
	n.queue = nil
	n.mu.Unlock()

	close(q)

	done := make(chan struct{})
	go func() {
		n.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
	if cancel != nil {
		cancel()
	}
}

// Raise enqueues an event for delivery. Non-blocking: a full queue is an
// error, not a stall, so a slow sink can never hold up the monitoring tick.
func (n *Notifier) Raise(ctx context.Context, ev Event) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	n.mu.Lock()
	q := n.queue
	accepting := n.accepting
	n.mu.Unlock()

	if !accepting || q == nil {
		return ErrStopped
	}

	if ev.RaisedAt.IsZero() {
		ev.RaisedAt = time.Now()
	}

	select {
	case q <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (n *Notifier) workerLoop(q <-chan Event, runCtx context.Context) {
	for ev := range q {
		select {
		case <-runCtx.Done():
			return
		default:
		}
		n.deliver(runCtx, ev)
	}
}

func (n *Notifier) deliver(runCtx context.Context, ev Event) {
	if runCtx == nil {
		runCtx = context.Background()
	}
	if err := n.limiter.Wait(runCtx); err != nil {
		return
	}

	if len(n.sinks) == 0 {
		// Original behavior: no sink configured, surface the alert in the log.
		n.log.Warn("no alert sink configured; alert logged only",
			logx.String("job", ev.JobName),
			logx.String("subject", ev.Subject),
			logx.String("body", ev.Body))
		n.journalAppend(ev, "log", true)
		return
	}

	for _, sink := range n.sinks {
		delivered := n.sendWithRetry(runCtx, sink, ev)
		n.journalAppend(ev, sink.Name(), delivered)
	}
}

func (n *Notifier) sendWithRetry(runCtx context.Context, sink Sink, ev Event) bool {
	maxAttempts := 1 + n.cfg.RetryMax

	for attempt := 1; ; attempt++ {
		callCtx, cancel := context.WithTimeout(runCtx, 30*time.Second)
		err := sink.Send(callCtx, ev.Subject, ev.Body)
		cancel()
		if err == nil {
			n.log.Info("alert delivered",
				logx.String("job", ev.JobName),
				logx.String("sink", sink.Name()),
				logx.Int("attempt", attempt))
			return true
		}

		if attempt >= maxAttempts {
			n.log.Error("alert delivery failed",
				logx.String("job", ev.JobName),
				logx.String("sink", sink.Name()),
				logx.Int("attempts", attempt),
				logx.Err(err))
			return false
		}
		n.log.Debug("alert delivery failed, retrying",
			logx.String("sink", sink.Name()),
			logx.Int("attempt", attempt),
			logx.Err(err))

		t := time.NewTimer(retryDelay(n.cfg, attempt))
		select {
		case <-t.C:
		case <-runCtx.Done():
			if !t.Stop() {
				<-t.C
			}
			return false
		}
	}
}

func (n *Notifier) journalAppend(ev Event, sink string, delivered bool) {
	if n.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.journal.AppendAlert(ctx, ev, sink, delivered); err != nil {
		n.log.Warn("alert journal write failed", logx.String("job", ev.JobName), logx.Err(err))
	}
}

func retryDelay(cfg Config, attempt int) time.Duration {
	// attempt starts at 1 (first attempt), delay is for the NEXT attempt.
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	// Jitter 0.7..1.3 so parallel workers don't sync up.
	f := 0.7 + 0.6*rand.Float64()
	return time.Duration(float64(d) * f)
}
