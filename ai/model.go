package ai

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Invoker 抽象模型后端边界：一次同步请求换一段补全文本。
// 不做流式、不做内部重试；重试策略如有需要由编排层协调，
// 以保证与历史追加语义对齐。
type Invoker interface {
	Invoke(ctx context.Context, messages []llms.MessageContent) (string, error)
}

// BackendClient 基于 langchaingo 封装单个模型后端。
type BackendClient struct {
	cfg ModelConfig
	llm llms.Model
}

// NewBackendClient 按配置初始化模型提供方客户端。
// resolveAPIKey 支持 "env:NAME" 形式的密钥间接引用。
//
// 逻辑流程:
// Resolve Key -> Init Provider (OpenAI/Google/Anthropic) -> Return
func NewBackendClient(ctx context.Context, cfg ModelConfig) (*BackendClient, error) {
	var llm llms.Model
	var err error

	apiKey := resolveAPIKey(cfg.APIKey)

	switch cfg.Provider {
	case "openai":
		llm, err = openai.New(
			openai.WithToken(apiKey),
			openai.WithModel(cfg.ModelName),
			openai.WithBaseURL(cfg.BaseURL),
		)
	case "google":
		llm, err = googleai.New(ctx,
			googleai.WithAPIKey(apiKey),
			googleai.WithDefaultModel(cfg.ModelName),
		)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(apiKey),
			anthropic.WithModel(cfg.ModelName),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("%w: unsupported provider: %s", ErrBackendNotInitialized, cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: create model provider: %v", ErrBackendNotInitialized, err)
	}

	return &BackendClient{cfg: cfg, llm: llm}, nil
}

// Invoke 向模型后端发起一次同步补全请求。
// 任何网络或后端错误统一折叠为 ErrModelInvocation，
// 原始传输层异常不会泄漏给调用方。
func (c *BackendClient) Invoke(ctx context.Context, messages []llms.MessageContent) (string, error) {
	var opts []llms.CallOption
	if c.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.cfg.Temperature))
	}
	if c.cfg.TopP > 0 {
		opts = append(opts, llms.WithTopP(c.cfg.TopP))
	}
	if c.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.cfg.MaxTokens))
	}

	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response from llm", ErrModelInvocation)
	}
	return resp.Choices[0].Content, nil
}

// resolveAPIKey 解析 API 密钥。
// 如果密钥以 "env:" 开头，则从环境变量中获取实际值。
func resolveAPIKey(key string) string {
	if strings.HasPrefix(key, "env:") {
		return os.Getenv(strings.TrimPrefix(key, "env:"))
	}
	return key
}
