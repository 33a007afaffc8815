package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is a Redis hash tag so all queue keys land on the same slot
// when running against a cluster.
const KeyPrefix = "{plex-manager}"

const (
	QueueMaintenance = "maintenance"
	QueueDeletion    = "deletion"
)

// KeepPolicy bounds how many finished job records are retained, and for
// how long.
type KeepPolicy struct {
	Count int
	Age   time.Duration
}

// Config describes one queue's retry, concurrency and retention behavior.
type Config struct {
	Name        string
	Attempts    int           // total tries, including the first
	Backoff     time.Duration // base for exponential backoff between tries
	Concurrency int
	RateLimit   int           // jobs per RateWindow; 0 disables limiting
	RateWindow  time.Duration
	KeepDone    KeepPolicy
	KeepFailed  KeepPolicy
}

// ScanQueueConfig is the library-scan queue. Scans are bursty and talk
// to Plex/Radarr/Sonarr, so they are rate limited.
func ScanQueueConfig() Config {
	return Config{
		Name:        QueueMaintenance,
		Attempts:    3,
		Backoff:     2 * time.Second,
		Concurrency: 2,
		RateLimit:   10,
		RateWindow:  time.Minute,
		KeepDone:    KeepPolicy{Count: 100, Age: 24 * time.Hour},
		KeepFailed:  KeepPolicy{Count: 1000, Age: 7 * 24 * time.Hour},
	}
}

// DeletionQueueConfig is the deletion queue. Concurrency is fixed at 1:
// deletions mutate external systems and must never interleave.
func DeletionQueueConfig() Config {
	return Config{
		Name:        QueueDeletion,
		Attempts:    2,
		Backoff:     5 * time.Second,
		Concurrency: 1,
		KeepDone:    KeepPolicy{Count: 100, Age: 24 * time.Hour},
		KeepFailed:  KeepPolicy{Count: 1000, Age: 30 * 24 * time.Hour},
	}
}

// Job is the unit of work carried through Redis.
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Enqueuer is the producer side of a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any) (string, error)
}

// JobQueue is what the HTTP layer needs: enqueue plus progress lookup.
type JobQueue interface {
	Enqueuer
	Progress(ctx context.Context, jobID string) (int, error)
}

// NewClient builds a Redis client from a REDIS_URL-style string.
// An empty URL falls back to a local instance.
func NewClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Queue is a Redis-list backed job queue with a sorted-set for delayed
// (retry) jobs.
type Queue struct {
	cfg Config
	rdb *redis.Client
}

func New(rdb *redis.Client, cfg Config) *Queue {
	return &Queue{cfg: cfg, rdb: rdb}
}

func (q *Queue) Config() Config { return q.cfg }

func (q *Queue) key(part string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, q.cfg.Name, part)
}

func (q *Queue) pendingKey() string  { return q.key("pending") }
func (q *Queue) delayedKey() string  { return q.key("delayed") }
func (q *Queue) doneKey() string     { return q.key("completed") }
func (q *Queue) failedKey() string   { return q.key("failed") }

func (q *Queue) progressKey(jobID string) string {
	return q.key("progress:" + jobID)
}

// Enqueue pushes a job for immediate processing and returns its id.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	job, data, err := q.buildJob(name, payload)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, q.pendingKey(), data).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s/%s: %w", q.cfg.Name, name, err)
	}
	return job.ID, nil
}

// EnqueueIn schedules a job to become runnable after the delay.
func (q *Queue) EnqueueIn(ctx context.Context, name string, payload any, delay time.Duration) (string, error) {
	job, data, err := q.buildJob(name, payload)
	if err != nil {
		return "", err
	}
	score := float64(time.Now().Add(delay).UnixMilli())
	if err := q.rdb.ZAdd(ctx, q.delayedKey(), redis.Z{Score: score, Member: data}).Err(); err != nil {
		return "", fmt.Errorf("enqueue delayed %s/%s: %w", q.cfg.Name, name, err)
	}
	return job.ID, nil
}

func (q *Queue) buildJob(name string, payload any) (*Job, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:         uuid.NewString(),
		Queue:      q.cfg.Name,
		Name:       name,
		Payload:    raw,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal job: %w", err)
	}
	return job, data, nil
}

// Progress returns the last reported percent for a job, or -1 when no
// progress has been recorded (or it already expired).
func (q *Queue) Progress(ctx context.Context, jobID string) (int, error) {
	pct, err := q.rdb.Get(ctx, q.progressKey(jobID)).Int()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("job progress: %w", err)
	}
	return pct, nil
}

func (q *Queue) setProgress(ctx context.Context, jobID string, pct int) {
	q.rdb.Set(ctx, q.progressKey(jobID), pct, time.Hour)
}

// NoopQueue satisfies Enqueuer without touching Redis; handy in tests
// and when running with workers disabled.
type NoopQueue struct{}

func (NoopQueue) Enqueue(ctx context.Context, name string, payload any) (string, error) {
	return uuid.NewString(), nil
}

func (NoopQueue) Progress(ctx context.Context, jobID string) (int, error) {
	return -1, nil
}
