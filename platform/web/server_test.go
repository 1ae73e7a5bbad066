package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AssistBotPlatform/AssistCore/ai"
)

// stubService scripts the orchestration result for handler tests.
type stubService struct {
	reply ai.Reply
	err   error

	gotSessionID string
	gotMessage   string
}

func (s *stubService) Chat(ctx context.Context, sessionID, message string) (ai.Reply, error) {
	s.gotSessionID = sessionID
	s.gotMessage = message
	if s.err != nil {
		return ai.Reply{}, s.err
	}
	if sessionID == "" {
		return ai.Reply{SessionID: s.reply.SessionID, NewSession: true}, nil
	}
	return s.reply, nil
}

func newTestServer(t *testing.T, service ChatService, opts ...ServerOption) http.Handler {
	t.Helper()
	server, err := NewServer(service, opts...)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return server.Handler()
}

func postChat(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestChatMalformedBody(t *testing.T) {
	handler := newTestServer(t, &stubService{})

	rec := postChat(t, handler, "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid request body" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestChatBootstrapWithoutSessionID(t *testing.T) {
	service := &stubService{reply: ai.Reply{SessionID: "42"}}
	handler := newTestServer(t, service)

	rec := postChat(t, handler, `{"usuario":"primeira mensagem"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["session_id"] != "42" {
		t.Fatalf("expected allocated session id, got %v", body)
	}
	if body["message"] != "new session, resubmit" {
		t.Fatalf("expected resubmit hint, got %v", body)
	}
	if body["resposta"] != "" {
		t.Fatalf("bootstrap must not answer the message: %v", body)
	}
}

func TestChatEmptyMessage(t *testing.T) {
	service := &stubService{err: ai.ErrEmptyMessage}
	handler := newTestServer(t, service)

	rec := postChat(t, handler, `{"session_id":"7","message":""}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "empty message" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestChatBackendNotInitialized(t *testing.T) {
	service := &stubService{err: ai.ErrBackendNotInitialized}
	handler := newTestServer(t, service)

	rec := postChat(t, handler, `{"session_id":"7","usuario":"oi"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "model not initialized" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestChatModelFailure(t *testing.T) {
	service := &stubService{err: ai.ErrModelInvocation}
	handler := newTestServer(t, service)

	rec := postChat(t, handler, `{"session_id":"7","usuario":"oi"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "processing failure" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestChatSuccessSpeaksBothFieldDialects(t *testing.T) {
	service := &stubService{reply: ai.Reply{SessionID: "7", Text: "Duas reuniões agendadas."}}
	handler := newTestServer(t, service)

	rec := postChat(t, handler, `{"session_id":"7","usuario":"Quais compromissos tenho amanhã?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["resposta"] != "Duas reuniões agendadas." || body["response"] != "Duas reuniões agendadas." {
		t.Fatalf("unexpected completion fields: %v", body)
	}
	if body["session_id"] != "7" {
		t.Fatalf("session id missing: %v", body)
	}
	if service.gotMessage != "Quais compromissos tenho amanhã?" {
		t.Fatalf("usuario field not forwarded: %q", service.gotMessage)
	}
}

func TestChatMessageFieldFallback(t *testing.T) {
	service := &stubService{reply: ai.Reply{SessionID: "7", Text: "ok"}}
	handler := newTestServer(t, service)

	postChat(t, handler, `{"session_id":"7","message":"fallback field"}`)

	if service.gotMessage != "fallback field" {
		t.Fatalf("message field not forwarded: %q", service.gotMessage)
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	handler := newTestServer(t, &stubService{}, WithAllowedOrigins([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	service := &stubService{reply: ai.Reply{SessionID: "7", Text: "ok"}}
	handler := newTestServer(t, service, WithAllowedOrigins([]string{"https://app.example.com"}))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"7","usuario":"oi"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for unknown origin: %q", got)
	}
}

func TestNewServerRequiresService(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
