package ai

import (
	"context"
	"sync"
	"time"
)

// memorySession 保存单个会话的历史及其访问状态。
type memorySession struct {
	mu         sync.Mutex // 串行化同一会话的读写，保证成对追加的原子性
	turns      []Turn
	lastAccess time.Time
}

// MemoryStore 实现基于进程内存的 HistoryStore。
// 生命周期与进程一致：启动时创建，只有重启才会清空；适用于单实例部署。
// 内部采用「全局读写锁 + 会话级互斥锁」两级结构：外层锁只保护映射本身，
// 单会话的追加在会话锁内完成，互不相关的会话之间不会相互阻塞。
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	ttl      time.Duration // 会话空闲超时时长，<=0 表示不过期
}

// MemoryStoreOption 用于定制 MemoryStore 行为。
type MemoryStoreOption func(*MemoryStore)

// WithSessionTTL 设置会话空闲超时时长，配合 Cleanup 使用。
func WithSessionTTL(ttl time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.ttl = ttl
	}
}

// NewMemoryStore 创建内存历史存储实例。
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	store := &MemoryStore{
		sessions: make(map[string]*memorySession),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// History 返回指定会话的全部历史副本。
// 未知会话返回空切片而非错误：已分配但尚未写入的会话同样有效。
func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	session := s.getSession(sessionID)
	if session == nil {
		return []Turn{}, nil
	}

	// 会话锁下复制切片，避免调用方与后续追加共享底层数组。
	session.mu.Lock()
	session.lastAccess = time.Now()
	out := make([]Turn, len(session.turns))
	copy(out, session.turns)
	session.mu.Unlock()

	return out, nil
}

// Append 将若干 Turn 作为一个整体追加到会话末尾。
// 同一会话的并发 Append 在会话锁上串行，成对的 user/assistant 不会交错。
func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	session := s.getOrCreateSession(sessionID)

	session.mu.Lock()
	session.turns = append(session.turns, turns...)
	session.lastAccess = time.Now()
	session.mu.Unlock()

	return nil
}

// Clear 删除会话历史，不存在时静默返回。
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Cleanup 清理超过空闲时长的会话，防止长时间运行时内存堆积。
// ttl 未设置时为空操作；由调用方（通常是 serve 进程）按周期触发。
func (s *MemoryStore) Cleanup() {
	if s.ttl <= 0 {
		return
	}

	now := time.Now()
	s.mu.Lock()
	for id, session := range s.sessions {
		session.mu.Lock()
		expired := now.Sub(session.lastAccess) > s.ttl
		session.mu.Unlock()
		if expired {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
}

// Len 返回当前存活的会话数量，主要用于测试与观测。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) getSession(sessionID string) *memorySession {
	if sessionID == "" {
		return nil
	}

	s.mu.RLock()
	session := s.sessions[sessionID]
	s.mu.RUnlock()

	return session
}

func (s *MemoryStore) getOrCreateSession(sessionID string) *memorySession {
	if session := s.getSession(sessionID); session != nil {
		return session
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session
	}
	session := &memorySession{lastAccess: time.Now()}
	s.sessions[sessionID] = session
	return session
}
