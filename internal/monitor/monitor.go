package monitor

import (
	"context"
	"sync"
	"time"

	"cronwatch/internal/alert"
	"cronwatch/internal/config"
	"cronwatch/internal/cronclock"
	"cronwatch/internal/jenkins"
	"cronwatch/pkg/logx"
)

// Retriever is the upstream surface the monitor needs. *jenkins.Client
// satisfies it; tests substitute a fake.
type Retriever interface {
	JobSummary(ctx context.Context, jobName string) (*jenkins.JobSummary, error)
	LastBuild(ctx context.Context, ref jenkins.BuildRef) (*jenkins.BuildSnapshot, error)
	DiscoverSpec(ctx context.Context, jobName string) (string, error)
	BaseURL() string
}

// Notifier accepts alert events for asynchronous delivery.
type Notifier interface {
	Raise(ctx context.Context, ev alert.Event) error
}

// trackedJob is a config job resolved for evaluation. A job with a schedule
// expression that does not compile is kept but marked invalid so the
// surrounding jobs keep running; a job configured without a schedule starts
// with a nil Schedule and gets one from config.xml discovery on first check.
type trackedJob struct {
	job     Job
	invalid bool
}

// jobState survives across ticks and config reloads. Alert cooldown memory
// lives here, keyed by job name, so a reload cannot reset a cooldown.
type jobState struct {
	lastCheck     time.Time
	lastSnapshot  *jenkins.BuildSnapshot
	lastAlertSent time.Time
}

// Monitor owns the check loop: every interval it walks the job table,
// retrieves each job's latest build, evaluates schedule compliance and hands
// overdue verdicts to the gate and notifier.
type Monitor struct {
	client   Retriever
	notifier Notifier
	log      logx.Logger

	now func() time.Time // test hook

	mu       sync.Mutex
	interval time.Duration
	gate     *Gate
	jobs     []*trackedJob
	states   map[string]*jobState
}

func New(client Retriever, notifier Notifier, cfg *config.Config, log logx.Logger) *Monitor {
	m := &Monitor{
		client:   client,
		notifier: notifier,
		log:      log,
		now:      time.Now,
		states:   make(map[string]*jobState),
	}
	m.Apply(cfg)
	return m
}

// Apply swaps in the job table derived from cfg. Called at construction and
// on every config reload. Per-job state is kept for job names that survive
// the reload and dropped for names that do not.
func (m *Monitor) Apply(cfg *config.Config) {
	jobs := make([]*trackedJob, 0, len(cfg.Jobs))
	alive := make(map[string]bool, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		if !jc.IsEnabled() {
			m.log.Debug("job disabled, skipping", logx.String("job", jc.Name))
			continue
		}
		tj := &trackedJob{job: Job{
			Name:                  jc.Name,
			Threshold:             jc.AlertThresholdOrDefault(),
			AlertOnRetrievalError: alertOnRetrievalError(jc, cfg.Monitor),
		}}
		if jc.Schedule != "" {
			sched, err := cronclock.Compile(jc.Schedule)
			if err != nil {
				m.log.Error("job schedule does not parse, job will not be checked",
					logx.String("job", jc.Name),
					logx.String("schedule", jc.Schedule),
					logx.Err(err))
				tj.invalid = true
			} else {
				tj.job.Schedule = sched
			}
		}
		jobs = append(jobs, tj)
		alive[jc.Name] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interval = cfg.Monitor.CheckIntervalOrDefault()
	m.gate = NewGate(cfg.Monitor.AlertCooldownOrDefault())
	m.jobs = jobs
	for name := range m.states {
		if !alive[name] {
			delete(m.states, name)
		}
	}
}

func alertOnRetrievalError(jc config.JobConfig, mc config.MonitorConfig) bool {
	if jc.AlertOnRetrievalError != nil {
		return *jc.AlertOnRetrievalError
	}
	return mc.AlertOnRetrievalError
}

// Run checks all jobs once immediately, then on every tick of the check
// interval until ctx is cancelled. Config updates arriving on reload are
// applied between ticks.
func (m *Monitor) Run(ctx context.Context, reload <-chan *config.Config) error {
	m.checkAll(ctx)

	interval := m.checkInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg, ok := <-reload:
			if !ok {
				reload = nil
				continue
			}
			m.Apply(cfg)
			if next := m.checkInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
				m.log.Info("check interval changed", logx.Duration("interval", interval))
			}
		case <-ticker.C:
			m.checkAll(ctx)
		}
	}
}

func (m *Monitor) checkInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

func (m *Monitor) snapshotJobs() []*trackedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]*trackedJob, len(m.jobs))
	copy(jobs, m.jobs)
	return jobs
}

// checkAll runs one monitoring tick. Jobs are checked sequentially; a
// failure on one job never stops the walk.
func (m *Monitor) checkAll(ctx context.Context) {
	now := m.now()
	for _, tj := range m.snapshotJobs() {
		if ctx.Err() != nil {
			return
		}
		if tj.invalid {
			continue
		}
		m.checkJob(ctx, tj, now)
	}
}

func (m *Monitor) checkJob(ctx context.Context, tj *trackedJob, now time.Time) {
	name := tj.job.Name
	st := m.state(name)

	if tj.job.Schedule == nil {
		expr, err := m.client.DiscoverSpec(ctx, name)
		if err != nil {
			m.log.Error("schedule discovery failed", logx.String("job", name), logx.Err(err))
			m.touch(st, now)
			m.maybeRaiseRetrievalError(ctx, tj.job, err, now)
			return
		}
		sched, err := cronclock.Compile(expr)
		if err != nil {
			// Not transient: the job's own trigger spec is unusable.
			m.log.Error("discovered schedule does not parse, job will not be checked",
				logx.String("job", name),
				logx.String("schedule", expr),
				logx.Err(err))
			m.mu.Lock()
			tj.invalid = true
			m.mu.Unlock()
			return
		}
		m.mu.Lock()
		tj.job.Schedule = sched
		m.mu.Unlock()
		m.log.Info("discovered job schedule",
			logx.String("job", name),
			logx.String("schedule", sched.Expression()))
	}

	snap, err := m.latestBuild(ctx, name)
	m.touch(st, now)
	if err != nil {
		m.log.Error("job check failed", logx.String("job", name), logx.Err(err))
		m.maybeRaiseRetrievalError(ctx, tj.job, err, now)
		return
	}

	m.mu.Lock()
	prev := st.lastSnapshot
	st.lastSnapshot = snap
	m.mu.Unlock()
	if snap != nil && (prev == nil || prev.Number != snap.Number) {
		m.log.Info("observed new build",
			logx.String("job", name),
			logx.Int64("build", snap.Number),
			logx.String("result", snapshotResult(snap)))
	}

	verdict, err := Evaluate(tj.job, now, snap)
	if err != nil {
		m.log.Error("job could not be evaluated", logx.String("job", name), logx.Err(err))
		return
	}

	if verdict.Status == StatusHealthy {
		m.log.Debug("job healthy", logx.String("job", name), logx.String("reason", verdict.Reason))
		return
	}

	m.log.Warn("job overdue", logx.String("job", name), logx.String("reason", verdict.Reason))

	m.mu.Lock()
	fire := m.gate.ShouldFire(st.lastAlertSent, now)
	m.mu.Unlock()
	if !fire {
		m.log.Debug("alert suppressed by cooldown", logx.String("job", name))
		return
	}

	ev := overdueEvent(m.client.BaseURL(), tj.job, snap, verdict, now)
	if err := m.notifier.Raise(ctx, ev); err != nil {
		// Cooldown memory stays untouched so the next tick retries.
		m.log.Error("failed to queue alert", logx.String("job", name), logx.Err(err))
		return
	}
	m.mu.Lock()
	st.lastAlertSent = now
	m.mu.Unlock()
}

// latestBuild fetches the job summary and, when the job has run at least
// once, the details of its most recent build. nil with no error means the
// job exists but has no build history.
func (m *Monitor) latestBuild(ctx context.Context, name string) (*jenkins.BuildSnapshot, error) {
	summary, err := m.client.JobSummary(ctx, name)
	if err != nil {
		return nil, err
	}
	if summary.LastBuild == nil {
		return nil, nil
	}
	return m.client.LastBuild(ctx, *summary.LastBuild)
}

// maybeRaiseRetrievalError alerts on a failed check when the job opts in.
// These bypass the overdue cooldown; the notifier's rate limiter is the
// backstop against an outage turning into an alert storm.
func (m *Monitor) maybeRaiseRetrievalError(ctx context.Context, job Job, cause error, now time.Time) {
	if !job.AlertOnRetrievalError {
		return
	}
	ev := retrievalErrorEvent(m.client.BaseURL(), job, cause, now)
	if err := m.notifier.Raise(ctx, ev); err != nil {
		m.log.Error("failed to queue retrieval error alert",
			logx.String("job", job.Name), logx.Err(err))
	}
}

func (m *Monitor) state(name string) *jobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[name]
	if !ok {
		st = &jobState{}
		m.states[name] = st
	}
	return st
}

func (m *Monitor) touch(st *jobState, now time.Time) {
	m.mu.Lock()
	st.lastCheck = now
	m.mu.Unlock()
}
