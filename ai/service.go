package ai

import (
	"context"
	"fmt"
)

// Service 是会话编排的主要入口点。
// 它串联会话引导、历史读取、提示词拼装、模型调用与历史落库。
type Service struct {
	store     HistoryStore
	allocator Allocator
	assembler *Assembler
	model     Invoker
}

// Reply 是一次 Chat 调用的结果。
// NewSession 为 true 时表示本次只完成了会话引导：
// 调用方拿到 SessionID 后需携带它重新提交消息。
type Reply struct {
	SessionID  string
	Text       string
	NewSession bool
}

// NewService 创建会话编排服务。
// model 允许为 nil：后端初始化失败时进程照常服务，
// 对话请求统一反馈 ErrBackendNotInitialized。
func NewService(store HistoryStore, allocator Allocator, assembler *Assembler, model Invoker) *Service {
	return &Service{
		store:     store,
		allocator: allocator,
		assembler: assembler,
		model:     model,
	}
}

// Chat 处理一次无状态请求，按固定的阶段推进：
//
//	[无会话ID?] --是--> [分配新ID并立即返回，消息丢弃]
//	     |
//	    否
//	     |
//	[消息为空?] --是--> [ErrEmptyMessage，不触碰存储与后端]
//	     |
//	     v
//	[读历史] -> [拼装提示词] -> [调用模型]
//	                               |
//	                           失败? --是--> [历史保持原样返回错误]
//	                               |
//	                               v
//	              [user/assistant 成对原子落库] -> [返回补全]
//
// 两阶段引导是有意为之的契约：客户端总是先通过一次空 ID 请求
// 换取会话 ID，第一条消息在第二次请求中才会被处理。
func (s *Service) Chat(ctx context.Context, sessionID, message string) (Reply, error) {
	// 第一步：无会话 ID 时只做引导。此分支绝不处理、也绝不持久化消息。
	if sessionID == "" {
		id, err := s.allocator.Allocate(ctx)
		if err != nil {
			return Reply{}, fmt.Errorf("allocate session: %w", err)
		}
		return Reply{SessionID: id, NewSession: true}, nil
	}

	// 第二步：校验消息正文。校验失败不产生任何存储或后端访问。
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	if s.model == nil {
		return Reply{}, ErrBackendNotInitialized
	}

	// 第三步：读取历史并拼装完整载荷。
	// 来路不明的会话 ID 同样视为（可能为空的）历史，从不拒绝。
	history, err := s.store.History(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("read history: %w", err)
	}
	messages := s.assembler.Render(history, message)

	// 第四步：调用模型。注意此处不持有任何存储锁，
	// 慢的模型调用不会阻塞同一会话的并发历史读取。
	completion, err := s.model.Invoke(ctx, messages)
	if err != nil {
		// 调用失败时这轮交互视同从未发生：不落库，不留下孤立的用户消息。
		return Reply{}, err
	}

	// 第五步：成功后将本轮交互作为一个原子整体落库。
	pair := []Turn{
		{Role: RoleUser, Content: message},
		{Role: RoleAssistant, Content: completion},
	}
	if err := s.store.Append(ctx, sessionID, pair...); err != nil {
		return Reply{}, fmt.Errorf("append history: %w", err)
	}

	return Reply{SessionID: sessionID, Text: completion}, nil
}

// Clear 清空指定会话的历史，委托给底层存储。
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}
