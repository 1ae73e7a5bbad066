package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/AssistBotPlatform/AssistCore/ai"
)

// ChatService 抽象 Web 层依赖的会话编排能力。
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string) (ai.Reply, error)
}

// Server 承载对话后端的 HTTP 边界。
// Fields:
//   - Service: 会话编排服务，不能为空
//   - Logger: 结构化日志记录器，默认丢弃
//   - Origins: CORS 允许的来源列表，空表示不启用跨域头
type Server struct {
	Service ChatService
	Logger  zerolog.Logger
	Origins []string
}

// ServerOption 用于定制 Server 行为。
type ServerOption func(*Server)

// WithLogger 注入结构化日志记录器。
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithAllowedOrigins 设置 CORS 允许的来源，"*" 表示放行全部。
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.Origins = origins
	}
}

// NewServer 创建 HTTP 边界实例。
func NewServer(service ChatService, opts ...ServerOption) (*Server, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	server := &Server{
		Service: service,
		Logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}
	return server, nil
}

// Handler 返回挂载全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.withCORS(s.withLogging(mux))
}

// chatRequest 兼容两代客户端的请求字段（usuario / message）。
type chatRequest struct {
	Usuario   string `json:"usuario"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// text 返回请求的消息正文，usuario 字段优先。
func (r chatRequest) text() string {
	if r.Usuario != "" {
		return r.Usuario
	}
	return r.Message
}

// chatResponse 同时携带两代客户端的响应字段（resposta / response）。
type chatResponse struct {
	Resposta  string `json:"resposta,omitempty"`
	Response  string `json:"response,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// errorResponse 是统一的错误响应体。
type errorResponse struct {
	Error string `json:"error"`
}

// handleChat 处理 POST /chat。
// 流程图：
//
//	[解析JSON体] --失败--> [400 invalid request body]
//	     |
//	     v
//	[Service.Chat]
//	     |
//	[新会话?] --是--> [200 session_id + 引导提示]
//	     |
//	[错误?] --是--> [按错误类别映射状态码]
//	     |
//	     v
//	[200 resposta/response + session_id]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := s.Service.Chat(r.Context(), req.SessionID, req.text())
	if err != nil {
		status, message := mapError(err)
		s.Logger.Error().Err(err).Str("session_id", req.SessionID).Msg("chat failed")
		s.writeError(w, status, message)
		return
	}

	if reply.NewSession {
		// 两阶段引导：只返回会话 ID，消息需携带该 ID 重新提交。
		s.writeJSON(w, http.StatusOK, chatResponse{
			SessionID: reply.SessionID,
			Message:   "new session, resubmit",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Resposta:  reply.Text,
		Response:  reply.Text,
		SessionID: reply.SessionID,
	})
}

// handleHealth 是存活探针。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mapError 将服务层错误映射为对外的状态码与文案。
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ai.ErrEmptyMessage):
		return http.StatusBadRequest, "empty message"
	case errors.Is(err, ai.ErrBackendNotInitialized):
		return http.StatusInternalServerError, "model not initialized"
	default:
		// 分配失败、存储失败与模型调用失败对外统一为处理失败，
		// 细节只进日志，不泄漏给客户端。
		return http.StatusInternalServerError, "processing failure"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// statusRecorder 捕获响应状态码用于访问日志。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withLogging 为每个请求输出一条结构化访问日志。
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.Logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// withCORS 按配置的来源列表注入跨域响应头并处理预检请求。
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.Origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
