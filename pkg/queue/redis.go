package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"HotelRevenue/pkg/logger"
)

// RedisQueue runs background jobs from a Redis list. Failed jobs wait in a
// sorted set until their retry time, then land on a dead-letter list once
// RetryLimit is spent. Every job has a status hash that callers can poll.
type RedisQueue struct {
	log    *logger.Logger
	cfg    Config
	client *redis.Client
	prefix string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces every key the queue writes.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedisQueue creates a queue; register jobs before Start.
func NewRedisQueue(lgr *logger.Logger, cfg Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.RetryPoll <= 0 {
		cfg.RetryPoll = 5 * time.Second
	}
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}
	if lgr == nil {
		lgr = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	rq := &RedisQueue{
		log:    lgr,
		cfg:    cfg,
		client: client,
		prefix: "revenue:jobs",
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers the handler for job.Type(). The first registration wins.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

func (r *RedisQueue) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

// Start pings Redis and launches the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	r.running = true

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	r.wg.Add(1)
	go r.promoteRetries()

	r.log.Info("run queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.String("prefix", r.prefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs until ctx expires.
// A job cut off by Stop keeps its running status.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.log.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.log.Info("run queue stopped")
		return nil
	}
}

// Enqueue pushes a message and records it as queued. It returns the job ID.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	if _, ok := r.job(msgType); !ok {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	pipe := r.client.TxPipeline()
	r.writeStatus(ctx, pipe, msg, StateQueued, nil)
	pipe.LPush(ctx, r.queueKey(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return msg.ID, nil
}

// Status returns the last recorded state of job id.
func (r *RedisQueue) Status(ctx context.Context, id string) (*Status, error) {
	fields, err := r.client.HGetAll(ctx, r.statusKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("job status %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	st := &Status{
		ID:    id,
		Type:  fields["type"],
		State: State(fields["state"]),
		Error: fields["error"],
	}
	st.Attempts, _ = strconv.Atoi(fields["attempts"])
	if ts, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil {
		st.UpdatedAt = time.UnixMilli(ts).UTC()
	}
	return st, nil
}

// DeadLetters returns how many messages exhausted their retries.
func (r *RedisQueue) DeadLetters(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.deadLetterKey()).Result()
}

func (r *RedisQueue) work(id int) {
	defer r.wg.Done()
	r.log.Debug("queue worker started", logger.Int("worker_id", id))
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}
		msg, ok := r.next()
		if ok {
			r.process(msg)
		}
	}
}

// next blocks up to a second for the next message.
func (r *RedisQueue) next() (Message, bool) {
	res, err := r.client.BRPop(r.ctx, time.Second, r.queueKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Message{}, false
		}
		r.log.Error("brpop error", logger.Error(err))
		select {
		case <-r.ctx.Done():
		case <-time.After(time.Second):
		}
		return Message{}, false
	}
	if len(res) < 2 {
		return Message{}, false
	}

	var msg Message
	if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
		r.log.Error("dropping undecodable message", logger.Error(err))
		return Message{}, false
	}
	return msg, true
}

func (r *RedisQueue) process(msg Message) {
	job, ok := r.job(msg.Type)
	if !ok {
		r.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.bury(msg, fmt.Errorf("no job registered for type: %s", msg.Type))
		return
	}

	r.setStatus(msg, StateRunning, nil)
	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		r.setStatus(msg, StateDone, nil)
		r.log.Info("job done",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Duration("elapsed", elapsed))
	case errors.Is(err, context.Canceled):
		r.log.Warn("job cancelled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int64("elapsed_ms", elapsed.Milliseconds()))
	case msg.Attempts >= r.cfg.RetryLimit:
		r.log.Error("job failed, retries exhausted",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempts", msg.Attempts+1),
			logger.Error(err))
		r.bury(msg, err)
	default:
		msg.Attempts++
		at := time.Now().Add(r.cfg.RetryDelay)
		r.retryAt(msg, at, err)
		r.log.Warn("job failed, retry scheduled",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts),
			logger.String("retry_at", at.Format(time.RFC3339)),
			logger.Error(err))
	}
}

func (r *RedisQueue) retryAt(msg Message, at time.Time, cause error) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal retry", logger.Error(err))
		return
	}
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, r.retryKey(), redis.Z{Score: float64(at.Unix()), Member: data})
	r.writeStatus(ctx, pipe, msg, StateRetrying, cause)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("schedule retry", logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message, cause error) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("marshal dead letter", logger.Error(err))
		return
	}
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.deadLetterKey(), data)
	r.writeStatus(ctx, pipe, msg, StateDead, cause)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("dead letter", logger.Error(err))
	}
}

func (r *RedisQueue) setStatus(msg Message, state State, cause error) {
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	r.writeStatus(ctx, pipe, msg, state, cause)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("job status write failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) writeStatus(ctx context.Context, pipe redis.Pipeliner, msg Message, state State, cause error) {
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}
	key := r.statusKey(msg.ID)
	pipe.HSet(ctx, key,
		"type", msg.Type,
		"state", string(state),
		"attempts", msg.Attempts,
		"error", errText,
		"updated_at", time.Now().UnixMilli(),
	)
	pipe.Expire(ctx, key, r.cfg.StatusTTL)
}

func (r *RedisQueue) promoteRetries() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.RetryPoll)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteDue()
		}
	}
}

// promoteDue moves retries whose time has come back onto the main list.
func (r *RedisQueue) promoteDue() {
	due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("fetch due retries", logger.Error(err))
		}
		return
	}

	for _, data := range due {
		pipe := r.client.TxPipeline()
		pipe.ZRem(r.ctx, r.retryKey(), data)
		pipe.LPush(r.ctx, r.queueKey(), data)
		if _, err := pipe.Exec(r.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.log.Error("promote retry", logger.Error(err))
		}
	}
}

func (r *RedisQueue) queueKey() string           { return r.prefix + ":messages" }
func (r *RedisQueue) retryKey() string           { return r.prefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string      { return r.prefix + ":dlq" }
func (r *RedisQueue) statusKey(id string) string { return r.prefix + ":status:" + id }

var _ Tracker = (*RedisQueue)(nil)
