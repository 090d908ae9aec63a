/*
scheduler.go - Automated evaluation scheduler

PURPOSE:
  Periodically closes the loop on finished weeks: evaluates the last saved
  forecast against recorded revenue, updates the learned bias and re-mines
  patterns. This is the only background writer of learned state.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Waits InitialDelay before the first run so startup is not slowed
  - A panic inside a cycle is recovered and logged; the loop keeps running
  - Evaluation is idempotent: a completed week is never evaluated twice

CONFIGURATION:
  - Interval:     How often to run (default: 24 hours)
  - InitialDelay: Delay before the first run (default: 10 seconds)
  - Enabled:      Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewEvaluationScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Evaluate endpoint (manual trigger)
  - forecast/evaluate.go: Evaluator
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/shift-forecast/forecast"
	"github.com/warp/shift-forecast/logging"
)

// cycleRunner is the part of forecast.Engine the scheduler drives.
type cycleRunner interface {
	RunEvaluationCycle(ctx context.Context) (*forecast.EvaluationReport, int, error)
}

// EvaluationScheduler runs the evaluation cycle in the background.
type EvaluationScheduler struct {
	Engine       cycleRunner
	Interval     time.Duration
	InitialDelay time.Duration
	Timeout      time.Duration
	Enabled      bool
	Log          logrus.FieldLogger

	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	lastMu  sync.Mutex
	lastRun time.Time
	lastErr error
}

// NewEvaluationScheduler creates a scheduler with the default timings.
func NewEvaluationScheduler(engine cycleRunner) *EvaluationScheduler {
	return &EvaluationScheduler{
		Engine:       engine,
		Interval:     24 * time.Hour,
		InitialDelay: 10 * time.Second,
		Timeout:      5 * time.Minute,
		Enabled:      true,
		Log:          logging.Component("scheduler"),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *EvaluationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger().Info("scheduler disabled, not starting")
		return
	}
	if s.running {
		return
	}
	if s.Interval <= 0 {
		s.Interval = 24 * time.Hour
	}

	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)
	go s.run()

	s.logger().WithFields(logrus.Fields{
		"interval":      s.Interval.String(),
		"initial_delay": s.InitialDelay.String(),
	}).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *EvaluationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.running = false
	s.logger().Info("scheduler stopped")
}

func (s *EvaluationScheduler) run() {
	defer s.wg.Done()

	if s.InitialDelay > 0 {
		select {
		case <-time.After(s.InitialDelay):
		case <-s.stop:
			return
		}
	}
	s.RunNow()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-s.stop:
			return
		}
	}
}

// RunNow runs one cycle synchronously and returns its error.
func (s *EvaluationScheduler) RunNow() (err error) {
	log := s.logger()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluation cycle panicked: %v", r)
			log.WithField("panic", r).Error("evaluation cycle panicked")
		}
		s.lastMu.Lock()
		s.lastRun, s.lastErr = time.Now(), err
		s.lastMu.Unlock()
	}()

	ctx := context.Background()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	report, saved, err := s.Engine.RunEvaluationCycle(ctx)
	if err != nil {
		log.WithError(err).Error("evaluation cycle failed")
		return err
	}
	fields := logrus.Fields{"patterns_saved": saved}
	if report != nil {
		fields["week_start"] = forecast.FormatDate(report.WeekStart)
		fields["accuracy_pct"] = report.Accuracy.AccuracyPct
		fields["days_learned"] = report.DaysLearned
	}
	log.WithFields(fields).Info("evaluation cycle completed")
	return nil
}

// LastRun returns when the last cycle finished and its error.
func (s *EvaluationScheduler) LastRun() (time.Time, error) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun, s.lastErr
}

// GetNextRunTime returns when the next scheduled run will occur.
func (s *EvaluationScheduler) GetNextRunTime() time.Time {
	last, _ := s.LastRun()
	if last.IsZero() {
		return time.Now().Add(s.InitialDelay)
	}
	return last.Add(s.Interval)
}

func (s *EvaluationScheduler) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Component("scheduler")
}
