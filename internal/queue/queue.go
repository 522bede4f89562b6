// Package queue runs matching batches in the background. Each submitted job
// is persisted as a pollable status row before a worker picks it up.
package queue

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/blueoctober14/RightImpact/internal/metrics"
	"github.com/blueoctober14/RightImpact/internal/model"
	"github.com/blueoctober14/RightImpact/internal/store"
)

// ErrQueueFull is returned by Submit when every buffer slot is taken.
var ErrQueueFull = eris.New("queue: full")

// ErrUnknownKind is returned by Submit for a job kind no worker can run.
var ErrUnknownKind = eris.New("queue: unknown job kind")

// Runner executes the batch operations jobs ask for.
type Runner interface {
	MatchNewSourceContacts(ctx context.Context, sourceIDs, listIDs []int64) *model.BatchSummary
	MatchUnmatchedContacts(ctx context.Context, userIDs, listIDs []int64) *model.BatchSummary
	MatchNewTargetList(ctx context.Context, listID int64) *model.BatchSummary
}

// Options tunes a Queue.
type Options struct {
	Workers    int
	Buffer     int
	JobTimeout time.Duration // zero disables
	RatePerSec float64       // job starts per second; zero means unlimited
	Metrics    *metrics.Metrics
}

// Queue dispatches jobs from a buffered channel to a fixed set of workers.
type Queue struct {
	jobs    store.JobStore
	runner  Runner
	opts    Options
	ch      chan *model.Job
	limiter *rate.Limiter
	depth   atomic.Int64
}

// New creates a Queue. Call Run to start the workers.
func New(jobs store.JobStore, runner Runner, opts Options) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Queue{
		jobs:    jobs,
		runner:  runner,
		opts:    opts,
		ch:      make(chan *model.Job, opts.Buffer),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Submit persists a queued job and hands it to the workers. When the buffer
// is full the job row is marked failed and ErrQueueFull is returned.
func (q *Queue) Submit(ctx context.Context, kind model.JobKind, params model.JobParams) (*model.Job, error) {
	switch kind {
	case model.JobKindNewContacts, model.JobKindTargetList:
	default:
		return nil, eris.Wrapf(ErrUnknownKind, "kind %q", kind)
	}

	job := &model.Job{
		ID:     uuid.New().String(),
		Kind:   kind,
		Status: model.JobStatusQueued,
		Params: params,
	}
	if err := q.jobs.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrap(err, "queue: create job")
	}

	depth := q.depth.Add(1)
	select {
	case q.ch <- job:
		q.opts.Metrics.SetQueueDepth(int(depth))
		zap.L().Info("queue: job submitted",
			zap.String("job_id", job.ID),
			zap.String("kind", string(kind)),
		)
		return job, nil
	default:
		q.depth.Add(-1)
		if err := q.jobs.FailJob(ctx, job.ID, ErrQueueFull.Error()); err != nil {
			zap.L().Warn("queue: mark rejected job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		q.opts.Metrics.JobFinished(string(kind), string(model.JobStatusFailed))
		return nil, ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled. Jobs still in
// the buffer at that point stay queued in the store.
func (q *Queue) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "queue"))
	log.Info("queue: starting workers", zap.Int("workers", q.opts.Workers))

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case job := <-q.ch:
					q.opts.Metrics.SetQueueDepth(int(q.depth.Add(-1)))
					if err := q.limiter.Wait(gctx); err != nil {
						return nil
					}
					q.process(gctx, job)
				}
			}
		})
	}

	err := g.Wait()
	log.Info("queue: workers stopped")
	return err
}

// process runs one job and records its final status. Store writes use a
// context detached from the job deadline so a timed-out job can still be
// marked failed.
func (q *Queue) process(ctx context.Context, job *model.Job) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
	bg := context.WithoutCancel(ctx)

	if err := q.jobs.StartJob(bg, job.ID); err != nil {
		log.Error("queue: start job", zap.Error(err))
		return
	}

	runCtx := ctx
	if q.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.opts.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	summary, err := q.run(runCtx, job)
	if err == nil && runCtx.Err() != nil {
		err = eris.Wrap(runCtx.Err(), "queue: job interrupted")
	}

	if err != nil {
		log.Error("queue: job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if fErr := q.jobs.FailJob(bg, job.ID, err.Error()); fErr != nil {
			log.Error("queue: mark job failed", zap.Error(fErr))
		}
		q.opts.Metrics.JobFinished(string(job.Kind), string(model.JobStatusFailed))
		return
	}

	if cErr := q.jobs.CompleteJob(bg, job.ID, summary); cErr != nil {
		log.Error("queue: mark job complete", zap.Error(cErr))
		return
	}
	q.opts.Metrics.JobFinished(string(job.Kind), string(model.JobStatusComplete))
	log.Info("queue: job complete",
		zap.Int("processed", summary.ProcessedContacts),
		zap.Int("total", summary.TotalContacts),
		zap.Int("matches_created", summary.MatchesCreated),
		zap.Int("errors", len(summary.Errors)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (q *Queue) run(ctx context.Context, job *model.Job) (summary *model.BatchSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("queue: job panicked: %v", r)
		}
	}()

	p := job.Params
	switch job.Kind {
	case model.JobKindNewContacts:
		if len(p.SourceContactIDs) > 0 {
			return q.runner.MatchNewSourceContacts(ctx, p.SourceContactIDs, p.TargetListIDs), nil
		}
		return q.runner.MatchUnmatchedContacts(ctx, p.UserIDs, p.TargetListIDs), nil
	case model.JobKindTargetList:
		return q.runner.MatchNewTargetList(ctx, p.TargetListID), nil
	default:
		return nil, eris.Wrapf(ErrUnknownKind, "kind %q", job.Kind)
	}
}

// Depth returns the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return int(q.depth.Load())
}
