package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/redisStore"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

type RedisJobStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

var _ jobModel.JobStore = (*RedisJobStore)(nil)

// GetRedisJobStore returns nil when redis cannot be reached.
func GetRedisJobStore(ctx context.Context, cfg config.RedisConfig) *RedisJobStore {
	s := redisStore.GetRedisStore(ctx, cfg, config.RedisJobStore)
	if s == nil {
		return nil
	}
	return &RedisJobStore{
		store:  s,
		ttl:    cfg.JobTTL,
		logger: logger_i.NewLogger("JobStore"),
	}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	log.Debug("saving job")
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	err = s.store.Set(ctx, job.Id, data, s.ttl)
	if err != nil {
		log.Error("Saving job to Redis failed", "error", err)
		return err
	}
	log.Debug("Saved job to Redis", "status", job.Status)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithTrace(ctx).With("jobId", jobId)
	log.Debug("getting job")
	val, err := s.store.Get(ctx, jobId)
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("Reading job from Redis failed", "error", err)
		return job, false
	}

	if err = json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("Stored job is not valid json", "error", err)
		return job, false
	}

	log.Debug("Job found in Redis")
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	log := s.logger.WithTrace(ctx).With("jobId", jobID)
	if err := s.store.Del(ctx, jobID); err != nil {
		log.Error("Error deleting job from Redis", "error", err)
		return
	}
	log.Debug("Job deleted from Redis")
}

// TestJobStore wraps an already connected store, used with miniredis.
func TestJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		ttl:    config.RedisJobStoreTTL,
		logger: logger_i.NewLogger("test redis"),
	}
}
