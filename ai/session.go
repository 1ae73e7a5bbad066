package ai

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCounterKey = "assistcore:session:counter"

// Allocator issues session identifiers on demand.
//
// Identifiers are opaque to callers but monotonically increasing per
// allocator, unique for its lifetime and never reused, even after the
// session they named is cleared.
type Allocator interface {
	Allocate(ctx context.Context) (string, error)
}

// CounterAllocator 基于 Redis 命名计数器分配会话 ID。
// 单条 INCR 即单次原子自增：并发调用互不重复，计数器落盘后
// 跨进程重启仍然保持单调递增，已分配的 ID 永不复用。
type CounterAllocator struct {
	client *redis.Client
	key    string
}

// CounterAllocatorOption 用于定制 CounterAllocator 行为。
type CounterAllocatorOption func(*CounterAllocator)

// WithCounterKey 覆盖计数器使用的键名。
func WithCounterKey(key string) CounterAllocatorOption {
	return func(a *CounterAllocator) {
		if key != "" {
			a.key = key
		}
	}
}

// NewCounterAllocator 基于既有 Redis 客户端创建分配器。
func NewCounterAllocator(client *redis.Client, opts ...CounterAllocatorOption) *CounterAllocator {
	alloc := &CounterAllocator{
		client: client,
		key:    defaultCounterKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(alloc)
		}
	}
	return alloc
}

// Allocate 对命名计数器执行一次原子自增并返回十进制 ID。
// 后端不可达时返回 ErrAllocationUnavailable，绝不在本地伪造 ID。
func (a *CounterAllocator) Allocate(ctx context.Context) (string, error) {
	next, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return "", fmt.Errorf("%w: incr %s: %v", ErrAllocationUnavailable, a.key, err)
	}
	return strconv.FormatInt(next, 10), nil
}

// MemoryAllocator 基于进程内原子计数器分配会话 ID。
// 基数取自随机源而非时钟，快速重启后与旧进程发生碰撞的概率可忽略；
// 仅适用于单实例、历史也不落盘的部署形态。
type MemoryAllocator struct {
	counter atomic.Int64
}

// NewMemoryAllocator 创建内存分配器，基数由 crypto/rand 播种。
func NewMemoryAllocator() *MemoryAllocator {
	alloc := &MemoryAllocator{}

	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// 随机源不可用时退化为纳秒时间戳基数，进程内唯一性仍由计数器保证。
		alloc.counter.Store(time.Now().UnixNano())
		return alloc
	}
	alloc.counter.Store(int64(binary.BigEndian.Uint32(seed[:])) << 16)
	return alloc
}

// Allocate 原子自增并返回十进制 ID，永不失败。
func (a *MemoryAllocator) Allocate(ctx context.Context) (string, error) {
	return strconv.FormatInt(a.counter.Add(1), 10), nil
}
