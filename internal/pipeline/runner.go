package pipeline

import (
	"context"
	"sync"

	"call-compliance-go/internal/logger"
)

// Work channel names. Audio-bound stages (validation, transcription,
// diarization), rule analysis and privacy redaction each have their own
// queue so one slow class of work cannot starve the others.
const (
	QueueAudio    = "audio"
	QueueAnalysis = "analysis"
	QueuePrivacy  = "privacy"
)

type workUnit struct {
	callID string
	stage  string
	run    func(ctx context.Context) error
	done   chan error
}

// Runner owns the worker pool. Stages within one call run strictly
// sequentially: the orchestrator submits one unit and waits for its ack
// before submitting the next. Units are acked only after the stage has
// committed, so an abandoned unit is simply resubmitted by a fresh run.
type Runner struct {
	queues map[string]chan workUnit

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(queueSize int) *Runner {
	return &Runner{
		queues: map[string]chan workUnit{
			QueueAudio:    make(chan workUnit, queueSize),
			QueueAnalysis: make(chan workUnit, queueSize),
			QueuePrivacy:  make(chan workUnit, queueSize),
		},
	}
}

// Start launches the worker pool.
func (r *Runner) Start(ctx context.Context, workers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	logger.Component("pipeline.runner").WithField("workers", workers).Info("worker pool started")
}

// Stop cancels the workers and waits for in-flight units to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case unit := <-r.queues[QueueAudio]:
			unit.done <- unit.run(ctx)
		case unit := <-r.queues[QueueAnalysis]:
			unit.done <- unit.run(ctx)
		case unit := <-r.queues[QueuePrivacy]:
			unit.done <- unit.run(ctx)
		}
	}
}

// Submit enqueues one stage's work on the named queue and blocks until a
// worker has run and acked it.
func (r *Runner) Submit(ctx context.Context, queue, callID, stage string, fn func(ctx context.Context) error) error {
	unit := workUnit{
		callID: callID,
		stage:  stage,
		run:    fn,
		done:   make(chan error, 1),
	}
	select {
	case r.queues[queue] <- unit:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-unit.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
