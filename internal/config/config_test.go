package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Proxy.URL != "http://localhost:11434" {
		t.Fatalf("proxy.url = %q", cfg.Proxy.URL)
	}
	if cfg.Proxy.Timeout != 10*time.Minute {
		t.Fatalf("proxy.timeout = %v", cfg.Proxy.Timeout)
	}
	if cfg.Credentials.Default != "sk-1234" {
		t.Fatalf("credentials.default = %q", cfg.Credentials.Default)
	}
	if cfg.Chat.Model != "tinyllama" || cfg.Chat.Temperature != 0.7 || cfg.Chat.MaxTokens != 2048 {
		t.Fatalf("chat = %+v", cfg.Chat)
	}
	if cfg.Chat.SystemPrompt != "You are a helpful AI assistant." {
		t.Fatalf("chat.system_prompt = %q", cfg.Chat.SystemPrompt)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("PROXYCHAT_TEST_ANTHROPIC", "sk-ant-from-env")
	t.Setenv("PROXYCHAT_CHAT_MODEL", "gpt-4o")
	path := writeConfig(t, `
proxy:
  url: http://litellm:4000/
  timeout: 30s
credentials:
  default: master
  providers:
    anthropic: ${PROXYCHAT_TEST_ANTHROPIC}
    openai: $(echo sk-openai)
chat:
  model: phi3
  temperature: 0.2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Proxy.URL != "http://litellm:4000" {
		t.Fatalf("proxy.url = %q, want trailing slash trimmed", cfg.Proxy.URL)
	}
	if cfg.Proxy.Timeout != 30*time.Second {
		t.Fatalf("proxy.timeout = %v", cfg.Proxy.Timeout)
	}
	if cfg.Credentials.Providers["anthropic"] != "sk-ant-from-env" {
		t.Fatalf("anthropic key = %q", cfg.Credentials.Providers["anthropic"])
	}
	if cfg.Credentials.Providers["openai"] != "sk-openai" {
		t.Fatalf("openai key = %q", cfg.Credentials.Providers["openai"])
	}
	if cfg.Chat.Model != "gpt-4o" {
		t.Fatalf("chat.model = %q, want env override", cfg.Chat.Model)
	}
	if cfg.Chat.Temperature != 0.2 || cfg.Chat.MaxTokens != 2048 {
		t.Fatalf("chat = %+v", cfg.Chat)
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{Proxy: ProxyConfig{URL: "http://a"}, Chat: ChatConfig{Model: "m1"}}

	cfg.ApplyOverrides("http://b/", "")
	if cfg.Proxy.URL != "http://b" || cfg.Chat.Model != "m1" {
		t.Fatalf("after proxy override: %+v", cfg)
	}
	cfg.ApplyOverrides("", "m2")
	if cfg.Proxy.URL != "http://b" || cfg.Chat.Model != "m2" {
		t.Fatalf("after model override: %+v", cfg)
	}
}

func TestCatalogFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, []byte("- id: llama3\n  provider: ollama\n"), 0644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cfg := &Config{}
	cat, err := cfg.Catalog()
	if err != nil || len(cat.Models()) != 7 {
		t.Fatalf("default catalog: %v", err)
	}

	cfg.CatalogFile = path
	cat, err = cfg.Catalog()
	if err != nil {
		t.Fatalf("Catalog failed: %v", err)
	}
	if _, ok := cat.Lookup("llama3"); !ok || len(cat.Models()) != 1 {
		t.Fatalf("catalog = %+v", cat.Models())
	}
}

func TestResolveValue(t *testing.T) {
	t.Setenv("PROXYCHAT_RESOLVE", "value")
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"literal", "literal"},
		{"${PROXYCHAT_RESOLVE}", "value"},
		{"$PROXYCHAT_RESOLVE", "value"},
		{"prefix-${PROXYCHAT_RESOLVE}", "prefix-value"},
		{"$(printf ' cmd ')", "cmd"},
	}
	for _, tc := range tests {
		got, err := ResolveValue(tc.in)
		if err != nil {
			t.Fatalf("ResolveValue(%q) error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ResolveValue(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := ResolveValue("$(exit 3)"); err == nil {
		t.Fatalf("expected error from failing command")
	}
}
