package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

// PollerRegistry runs the recurring settlement checks for live payment
// intents on a shared scheduler.  Each intent gets at most one job:
// starting a poll for an intent that already has one replaces the old
// job, and a job removes itself as soon as PollOnce reports the intent
// finished.
type PollerRegistry struct {
	payments  *PaymentService
	scheduler gocron.Scheduler
	interval  time.Duration

	mu   sync.Mutex
	jobs map[uint64]uuid.UUID // intent id -> scheduler job id
}

// NewPollerRegistry builds a registry with its own scheduler and
// starts it.  interval is the polling cadence per intent.
func NewPollerRegistry(payments *PaymentService, interval time.Duration) (*PollerRegistry, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	r := &PollerRegistry{
		payments:  payments,
		scheduler: sched,
		interval:  interval,
		jobs:      make(map[uint64]uuid.UUID),
	}
	sched.Start()
	return r, nil
}

// Start schedules recurring polling for an intent.  Any existing job
// for the same intent is replaced, so restarting a poll never stacks
// duplicate tickers.
func (r *PollerRegistry) Start(intentID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[intentID]; ok {
		if err := r.scheduler.RemoveJob(old); err != nil {
			log.Printf("poller: remove stale job for intent %d: %v", intentID, err)
		}
		delete(r.jobs, intentID)
	}

	j, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.tick, intentID),
	)
	if err != nil {
		return err
	}
	r.jobs[intentID] = j.ID()
	return nil
}

// Stop cancels polling for an intent.  Stopping an intent with no job
// is a no-op.
func (r *PollerRegistry) Stop(intentID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.jobs[intentID]
	if !ok {
		return
	}
	if err := r.scheduler.RemoveJob(id); err != nil {
		log.Printf("poller: remove job for intent %d: %v", intentID, err)
	}
	delete(r.jobs, intentID)
}

// Resume restarts polling for every intent that is still PENDING.
// Called once at startup so intents that were live when the process
// stopped keep getting checked.
func (r *PollerRegistry) Resume(ctx context.Context) error {
	pending, err := r.payments.intents.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, in := range pending {
		if err := r.Start(in.ID); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		log.Printf("poller: resumed %d pending intent(s)", len(pending))
	}
	return nil
}

// Shutdown stops the scheduler and all jobs.
func (r *PollerRegistry) Shutdown() error {
	return r.scheduler.Shutdown()
}

// tick runs one settlement check and unschedules the job once the
// intent reaches a terminal state.
func (r *PollerRegistry) tick(intentID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, done, err := r.payments.PollOnce(ctx, intentID)
	if err != nil {
		log.Printf("poller: poll intent %d failed: %v", intentID, err)
	}
	if done {
		r.Stop(intentID)
	}
}
