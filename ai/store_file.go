package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore 实现基于文件系统的 HistoryStore (JSONL 格式)。
// 每个会话的历史记录存储在单独的文件中，每行一个 JSON 序列化的 Turn。
// 适合不想运行 Redis 的单机部署：历史可跨重启保留，也便于直接查看。
type FileStore struct {
	baseDir string
	mu      sync.RWMutex // 全局锁，保护文件系统操作并发安全
}

// NewFileStore 创建一个新的 FileStore。
// baseDir: 存储历史记录的目录路径。
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{
		baseDir: baseDir,
	}, nil
}

// historyPath 返回指定会话的文件路径。
// 对会话 ID 进行简单的清理以防路径遍历。
func (s *FileStore) historyPath(sessionID string) string {
	safeID := filepath.Base(sessionID)
	return filepath.Join(s.baseDir, safeID+".jsonl")
}

// History 逐行读取文件获取历史记录。
// 文件不存在返回空切片；坏行跳过，保证最大容错性。
func (s *FileStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.historyPath(sessionID))
	if os.IsNotExist(err) {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open history: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	var turns []Turn
	scanner := bufio.NewScanner(f)

	// 增加 Buffer 大小以支持超长单行（默认 64KB 可能不够）
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 5*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var turn Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan history: %v", ErrStoreUnavailable, err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// Append 在同一次加锁内将整组 Turn 追加写入，读取方不会看到半截的对话对。
func (s *FileStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.historyPath(sessionID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: open history: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	// json.Encoder 默认会在末尾加 \n，符合 JSONL 规范
	encoder := json.NewEncoder(f)
	encoder.SetEscapeHTML(false) // 保持原始字符，不转义 <, >, &
	for _, turn := range turns {
		if err := encoder.Encode(turn); err != nil {
			return fmt.Errorf("%w: write history: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Clear 清空会话历史（删除文件）。
func (s *FileStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.historyPath(sessionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove history: %v", ErrStoreUnavailable, err)
	}
	return nil
}
