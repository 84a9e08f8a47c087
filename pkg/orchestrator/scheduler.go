package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = 30 * time.Second

var ErrSchedulerRunning = errors.New("scheduler is already running")

// Lease elects one instance per tick. ok is false when another instance holds it.
type Lease interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

type SchedulerConfig struct {
	Interval       time.Duration
	RecoverOnStart bool
}

// Scheduler runs the orchestrator on a fixed interval. Ticks of one scheduler never overlap:
// a tick that overruns the interval delays the next one.
type Scheduler struct {
	orch  *Orchestrator
	lease Lease
	cfg   SchedulerConfig

	mu       sync.Mutex
	running  bool
	stopped  bool
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	tickWg   sync.WaitGroup
}

// NewScheduler builds a scheduler. lease may be nil when a single instance runs.
func NewScheduler(orch *Orchestrator, lease Lease, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		orch:  orch,
		lease: lease,
		cfg:   cfg,
		stop:  make(chan struct{}),
	}
}

// Run ticks immediately and then on every interval until Stop is called or parent is done.
// Cancelling parent only ends the loop: an in-flight tick keeps its gateway calls alive
// until it finishes or Shutdown gives up on it.
func (s *Scheduler) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	defer cancel()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	logrus.WithField("interval", s.cfg.Interval.String()).Info("transfer scheduler started")
	defer logrus.Info("transfer scheduler stopped")

	if s.cfg.RecoverOnStart {
		s.guarded(ctx, func(ctx context.Context) { s.orch.RecoverStale(ctx) })
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return nil
		case <-parent.Done():
			return nil
		case <-ticker.C:
			if parent.Err() != nil {
				return nil
			}
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.guarded(ctx, func(ctx context.Context) { s.orch.RunOnce(ctx) })
}

// guarded runs fn under the lease, if any, and keeps the scheduler alive on panic.
// Nothing runs once Stop was called.
func (s *Scheduler) guarded(ctx context.Context, fn func(context.Context)) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.tickWg.Add(1)
	s.mu.Unlock()
	defer s.tickWg.Done()

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("panic in transfer tick: %v", r)
		}
	}()

	if s.lease != nil {
		release, ok, err := s.lease.TryAcquire(ctx)
		if err != nil {
			logrus.WithError(err).Error("failed to acquire orchestrator lease, skipping tick")
			return
		}
		if !ok {
			logrus.Debug("orchestrator lease held by another instance, skipping tick")
			return
		}
		defer release()
	}

	fn(ctx)
}

// Stop signals the loop to exit and prevents new ticks. The in-flight tick keeps running;
// use Shutdown to wait for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// Shutdown stops the loop and waits for the in-flight tick. If ctx expires first the tick
// is cancelled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.tickWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		return errors.Wrap(ctx.Err(), "scheduler shutdown")
	}
}
