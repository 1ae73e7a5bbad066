package ai

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
default_model: gemini
models:
  - name: gemini
    provider: google
    api_key: env:GEMINI_API_KEY
    model_name: gemini-2.5-flash
    temperature: 0.7
    top_p: 0.95
store:
  backend: memory
  session_ttl: "30m"
persona: "Você é um assistente."
shots:
  - human: "pergunta"
    ai: "resposta"
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
	if time.Duration(cfg.Store.SessionTTL) != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", time.Duration(cfg.Store.SessionTTL))
	}
	if len(cfg.Shots) != 1 || cfg.Shots[0].Human != "pergunta" {
		t.Fatalf("shots not parsed: %+v", cfg.Shots)
	}
	model := cfg.FindModel("gemini")
	if model == nil || model.Provider != "google" || model.TopP != 0.95 {
		t.Fatalf("model not parsed: %+v", model)
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	cfg := `
default_model: m
models:
  - name: m
    provider: google
store:
  backend: cassandra
persona: "p"
`
	if _, err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatalf("expected error for unknown store backend")
	}
}

func TestLoadConfigRejectsMissingDefaultModel(t *testing.T) {
	cfg := `
default_model: nope
models:
  - name: m
    provider: google
persona: "p"
`
	if _, err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatalf("expected error for unresolvable default model")
	}
}

func TestLoadConfigRequiresPersona(t *testing.T) {
	cfg := `
default_model: m
models:
  - name: m
    provider: google
`
	if _, err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatalf("expected error for empty persona")
	}
}

func TestLoadConfigRequiresRedisAddr(t *testing.T) {
	cfg := `
default_model: m
models:
  - name: m
    provider: google
store:
  backend: redis
persona: "p"
`
	if _, err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatalf("expected error for missing redis addr")
	}
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	cfg := `
default_model: m
models:
  - name: m
    provider: google
store:
  backend: memory
  session_ttl: "soon"
persona: "p"
`
	if _, err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}
