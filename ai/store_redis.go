package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultHistoryPrefix = "assistcore:history:"

// RedisStore 实现基于 Redis List 的持久化 HistoryStore。
// 每个会话对应一个 List，每个元素是一条 JSON 序列化的 Turn，
// 与文件存储的 JSONL 布局保持同构，便于离线检查与迁移。
//
// 原子性依赖 Redis 自身的单线程命令执行：一次 RPUSH 携带整个
// user/assistant 对，服务端要么全部追加、要么全部失败，读取方
// 不可能看到只有一半的对话对。
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisStoreOption 用于定制 RedisStore 行为。
type RedisStoreOption func(*RedisStore)

// WithHistoryPrefix 覆盖历史记录键的前缀。
func WithHistoryPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore 基于既有 Redis 客户端创建持久化历史存储。
func NewRedisStore(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: defaultHistoryPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// historyKey 返回指定会话的 Redis 键。
func (s *RedisStore) historyKey(sessionID string) string {
	return s.prefix + sessionID
}

// History 读取会话的全部历史。
// 不存在的键返回空切片；损坏的元素跳过以保证最大容错性。
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	entries, err := s.client.LRange(ctx, s.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", ErrStoreUnavailable, sessionID, err)
	}

	turns := make([]Turn, 0, len(entries))
	for _, entry := range entries {
		var turn Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			// 坏元素直接跳过，剩余历史仍然可用。
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Append 将若干 Turn 序列化后通过单条 RPUSH 追加到会话末尾。
// 多个元素在同一条命令内写入，Redis 保证其原子性与追加顺序。
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn: %w", err)
		}
		values = append(values, data)
	}

	if err := s.client.RPush(ctx, s.historyKey(sessionID), values...).Err(); err != nil {
		return fmt.Errorf("%w: rpush %s: %v", ErrStoreUnavailable, sessionID, err)
	}
	return nil
}

// Clear 删除会话对应的键。
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrStoreUnavailable, sessionID, err)
	}
	return nil
}
