package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/data/redisStore"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/jobModel"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

var errInvalidChatId = errors.New("invalid chat id")

// RedisMessageStore keeps one redis list per chat, one json encoded exchange per element.
// The first element is the empty payload written by InitNewChat.
type RedisMessageStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

var _ jobModel.MessageStore = (*RedisMessageStore)(nil)

// GetRedisMessageStore returns nil when redis cannot be reached.
func GetRedisMessageStore(ctx context.Context, cfg config.RedisConfig) *RedisMessageStore {
	s := redisStore.GetRedisStore(ctx, cfg, config.RedisMessageStore)
	if s == nil {
		return nil
	}
	return &RedisMessageStore{
		store:  s,
		ttl:    cfg.MessageTTL,
		logger: logger_i.NewLogger("MessageStore"),
	}
}

func (s *RedisMessageStore) ValidateChatId(ctx context.Context, chatId string) bool {
	log := s.logger.WithTrace(ctx).With("chatId", chatId)
	log.Debug("validating chatId")
	isFound, err := s.store.Exists(ctx, chatId)
	if s.store.IsNil(err) {
		return false
	} else if err != nil {
		log.Error("Failed to check if chatId exists", "error", err)
		return false
	}
	return isFound
}

func (s *RedisMessageStore) TrySaveChat(ctx context.Context, id string, conversation jobModel.JobPayload) error {
	if !s.ValidateChatId(ctx, id) {
		s.logger.WithTrace(ctx).Error("Failed validation before saving", "chatId", id, "error", errInvalidChatId)
		return errInvalidChatId
	}
	return s.saveChatId(ctx, id, conversation)
}

func (s *RedisMessageStore) saveChatId(ctx context.Context, id string, conversation jobModel.JobPayload) error {
	log := s.logger.WithTrace(ctx).With("chatId", id)
	data, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	if err = s.store.ListPush(ctx, id, data); err != nil {
		log.Error("error saving chat", "error", err)
		return err
	}
	if err = s.store.Expire(ctx, id, s.ttl); err != nil {
		log.Warn("could not refresh chat ttl", "error", err)
	}
	log.Debug("Saved chat successfully")
	return nil
}

func (s *RedisMessageStore) InitNewChat(ctx context.Context, id string) error {
	log := s.logger.WithTrace(ctx).With("chatId", id)
	log.Debug("Initializing new chat")
	if err := s.store.Del(ctx, id); err != nil && !s.store.IsNil(err) {
		log.Error("Error clearing chat", "error", err)
		return err
	}
	return s.saveChatId(ctx, id, jobModel.JobPayload{})
}

// GetMessageHistory returns the last ChatHistoryTurns exchanges as chronological chat turns.
func (s *RedisMessageStore) GetMessageHistory(ctx context.Context, chatId string) ([]commonModels.ChatTurn, error) {
	log := s.logger.WithTrace(ctx).With("chatId", chatId)
	log.Debug("Getting message history")

	res, err := s.store.ListGetLast(ctx, chatId, config.ChatHistoryTurns)
	if err != nil {
		log.Error("Error getting history", "error", err)
		return nil, err
	}

	payloads := make([]jobModel.JobPayload, 0, len(res))
	for _, raw := range res {
		var p jobModel.JobPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn("skipping unreadable history entry", "error", err)
			continue
		}
		if p.Question == "" && p.Answer == "" {
			continue
		}
		payloads = append(payloads, p)
	}
	return jobModel.HistoryFromPayloads(payloads), nil
}

// TestMessageStore wraps an already connected store, used with miniredis.
func TestMessageStore(store *redisStore.Store) *RedisMessageStore {
	return &RedisMessageStore{
		store:  store,
		ttl:    config.RedisMessageStoreTTL,
		logger: logger_i.NewLogger("test redis"),
	}
}
