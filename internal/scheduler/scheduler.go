package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler is a trigger registry keyed by a stable job id. Daily
// jobs are cron entries, one-shot jobs are timers; both share the
// same id space so registration replaces an existing trigger and
// cancellation works uniformly. Fires run on scheduler-owned
// goroutines, never on the caller's.
type Scheduler struct {
	cron *cron.Cron

	mu   sync.Mutex
	jobs map[string]entry
	gen  uint64

	// Counts one-shot timers that are pending or mid-fire; cron has
	// its own drain context, AfterFunc does not.
	oneShot sync.WaitGroup
}

type entry struct {
	cronID cron.EntryID
	timer  *time.Timer
	gen    uint64
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]entry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels all pending one-shot timers, waits for any one-shot
// fire already executing, and stops the cron engine. The returned
// context is done once in-flight cron fires have drained.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	for id, e := range s.jobs {
		if e.timer != nil {
			if e.timer.Stop() {
				s.oneShot.Done()
			}
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()

	// A timer whose Stop returned false has a fire in flight; it owns
	// its own Done.
	s.oneShot.Wait()

	return s.cron.Stop()
}

// ScheduleDaily registers a recurring trigger firing every day at
// hour:minute. An existing trigger under jobID is replaced.
func (s *Scheduler) ScheduleDaily(jobID string, hour, minute int, fn func()) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute out of range: %d", minute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(jobID)

	id, err := s.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), safeFire(jobID, fn))
	if err != nil {
		return err
	}

	s.jobs[jobID] = entry{cronID: id}
	return nil
}

// ScheduleOnce registers a one-time trigger firing at the given
// moment. The trigger deregisters itself after firing. An existing
// trigger under jobID is replaced.
func (s *Scheduler) ScheduleOnce(jobID string, at time.Time, fn func()) error {
	d := time.Until(at)
	if d <= 0 {
		return fmt.Errorf("fire time already passed: %s", at.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(jobID)

	s.gen++
	gen := s.gen
	run := safeFire(jobID, fn)

	s.oneShot.Add(1)
	t := time.AfterFunc(d, func() {
		defer s.oneShot.Done()

		run()

		s.mu.Lock()
		if e, ok := s.jobs[jobID]; ok && e.gen == gen {
			delete(s.jobs, jobID)
		}
		s.mu.Unlock()
	})

	s.jobs[jobID] = entry{timer: t, gen: gen}
	return nil
}

// Cancel removes the trigger registered under jobID. Unknown ids are
// a no-op: the job may have already fired or never been registered.
func (s *Scheduler) Cancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(jobID)
}

func (s *Scheduler) Has(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

func (s *Scheduler) removeLocked(jobID string) {
	e, ok := s.jobs[jobID]
	if !ok {
		return
	}
	if e.timer != nil {
		if e.timer.Stop() {
			s.oneShot.Done()
		}
	} else {
		s.cron.Remove(e.cronID)
	}
	delete(s.jobs, jobID)
}

func safeFire(jobID string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("trigger fire panic recovered", "job_id", jobID, "panic", r)
			}
		}()

		start := time.Now()
		fn()
		slog.Info("trigger fired", "job_id", jobID, "duration_ms", time.Since(start).Milliseconds())
	}
}
