package ai

import "errors"

// 定义会话编排各阶段的通用错误，便于边界层统一映射响应。
var (
	// ErrEmptyMessage 表示请求携带了会话 ID 但消息正文为空。
	ErrEmptyMessage = errors.New("empty message")
	// ErrAllocationUnavailable 表示会话 ID 分配器的后端计数服务不可达。
	ErrAllocationUnavailable = errors.New("session allocation unavailable")
	// ErrStoreUnavailable 表示历史存储后端不可达或读写失败。
	ErrStoreUnavailable = errors.New("history store unavailable")
	// ErrModelInvocation 表示模型后端调用失败（网络、配额或服务端错误）。
	ErrModelInvocation = errors.New("model invocation failed")
	// ErrBackendNotInitialized 表示模型后端未配置或初始化失败。
	ErrBackendNotInitialized = errors.New("model backend not initialized")
)
