package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// HandlerFunc processes one job. The returned value is recorded with the
// finished job; a non-nil error triggers the queue's retry policy.
type HandlerFunc func(ctx context.Context, job *Job, progress func(percent int)) (any, error)

// finishedRecord is what lands in the completed/failed lists.
type finishedRecord struct {
	Job        *Job      `json:"job"`
	Result     any       `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Worker consumes a queue with the concurrency, rate limit and retry
// behavior of its Config.
type Worker struct {
	queue   *Queue
	handler HandlerFunc
	limiter *rate.Limiter

	jobCtx context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewWorker(q *Queue, handler HandlerFunc) *Worker {
	w := &Worker{queue: q, handler: handler}
	if cfg := q.Config(); cfg.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Every(cfg.RateWindow/time.Duration(cfg.RateLimit)), cfg.RateLimit)
	}
	return w
}

// Start launches the consumer goroutines plus the delayed-job promoter.
// It returns immediately; call Stop to drain.
// Shutdown only cancels the accept loops: a job that already started
// keeps a live context and runs to completion before Stop returns.
func (w *Worker) Start(ctx context.Context) {
	w.jobCtx = context.WithoutCancel(ctx)
	ctx, w.cancel = context.WithCancel(ctx)
	w.group, ctx = errgroup.WithContext(ctx)

	w.group.Go(func() error {
		w.promoteLoop(ctx)
		return nil
	})
	for i := 0; i < w.queue.Config().Concurrency; i++ {
		w.group.Go(func() error {
			w.consumeLoop(ctx)
			return nil
		})
	}
}

// Stop cancels the loops and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.group != nil {
		_ = w.group.Wait()
	}
}

// promoteLoop moves due delayed jobs back onto the pending list.
func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.promoteDue(ctx)
		}
	}
}

func (w *Worker) promoteDue(ctx context.Context) {
	now := fmt.Sprintf("%d", time.Now().UnixMilli())
	due, err := w.queue.rdb.ZRangeByScore(ctx, w.queue.delayedKey(), &redis.ZRangeBy{
		Min: "-inf", Max: now, Count: 100,
	}).Result()
	if err != nil || len(due) == 0 {
		return
	}
	for _, member := range due {
		removed, err := w.queue.rdb.ZRem(ctx, w.queue.delayedKey(), member).Result()
		if err != nil || removed == 0 {
			continue // another worker claimed it
		}
		if err := w.queue.rdb.LPush(ctx, w.queue.pendingKey(), member).Err(); err != nil {
			log.Printf("queue %s: promoting delayed job: %v", w.queue.cfg.Name, err)
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := w.queue.rdb.BRPop(ctx, 2*time.Second, w.queue.pendingKey()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("queue %s: pop: %v", w.queue.cfg.Name, err)
			time.Sleep(time.Second)
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			log.Printf("queue %s: dropping malformed job: %v", w.queue.cfg.Name, err)
			continue
		}

		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				// Shutting down mid-claim: put the job back.
				w.requeue(&job)
				return
			}
		}

		w.runJob(w.jobCtx, &job)
	}
}

func (w *Worker) requeue(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := w.queue.rdb.RPush(ctx, w.queue.pendingKey(), data).Err(); err != nil {
		log.Printf("queue %s: requeue job %s: %v", w.queue.cfg.Name, job.ID, err)
	}
}

func (w *Worker) runJob(ctx context.Context, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("queue %s: job %s panicked: %v", w.queue.cfg.Name, job.ID, r)
			w.retryOrFail(job, fmt.Sprintf("panic: %v", r))
		}
	}()

	progress := func(pct int) {
		w.queue.setProgress(ctx, job.ID, pct)
	}

	result, err := w.handler(ctx, job, progress)
	if err != nil {
		log.Printf("queue %s: job %s (%s) attempt %d/%d failed: %v",
			w.queue.cfg.Name, job.ID, job.Name, job.Attempt, w.queue.cfg.Attempts, err)
		w.retryOrFail(job, err.Error())
		return
	}
	w.finish(job, w.queue.doneKey(), w.queue.cfg.KeepDone, result, "")
}

// retryOrFail reschedules with exponential backoff until attempts are
// exhausted, then records the job as failed.
func (w *Worker) retryOrFail(job *Job, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if job.Attempt < w.queue.cfg.Attempts {
		delay := w.queue.cfg.Backoff << (job.Attempt - 1)
		job.Attempt++
		data, err := json.Marshal(job)
		if err != nil {
			return
		}
		score := float64(time.Now().Add(delay).UnixMilli())
		if err := w.queue.rdb.ZAdd(ctx, w.queue.delayedKey(), redis.Z{Score: score, Member: data}).Err(); err != nil {
			log.Printf("queue %s: scheduling retry for job %s: %v", w.queue.cfg.Name, job.ID, err)
		}
		return
	}
	w.finish(job, w.queue.failedKey(), w.queue.cfg.KeepFailed, nil, errMsg)
}

func (w *Worker) finish(job *Job, key string, keep KeepPolicy, result any, errMsg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := finishedRecord{Job: job, Result: result, Error: errMsg, FinishedAt: time.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("queue %s: marshal finished record: %v", w.queue.cfg.Name, err)
		return
	}

	pipe := w.queue.rdb.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(keep.Count)-1)
	pipe.Expire(ctx, key, keep.Age)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("queue %s: recording finished job %s: %v", w.queue.cfg.Name, job.ID, err)
	}
}
