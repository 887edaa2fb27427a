package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if got := len(c.Models()); got != 7 {
		t.Fatalf("len(Models) = %d, want 7", got)
	}
	m, ok := c.Lookup("gpt-4o")
	if !ok || m.Provider != ProviderOpenAI {
		t.Fatalf("Lookup(gpt-4o) = %+v, %v", m, ok)
	}
	if _, ok := c.Lookup("tinyllama"); ok {
		t.Fatalf("tinyllama should not be catalogued")
	}

	want := []Provider{ProviderAnthropic, ProviderHuggingFace, ProviderOllama, ProviderOpenAI, ProviderOpenRouter}
	got := c.Providers()
	if len(got) != len(want) {
		t.Fatalf("Providers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Providers = %v, want %v", got, want)
		}
	}
}

func TestNewRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name   string
		models []Model
	}{
		{"empty id", []Model{{ID: " "}}},
		{"duplicate", []Model{{ID: "a"}, {ID: "a"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.models); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()

	list := filepath.Join(dir, "list.yaml")
	if err := os.WriteFile(list, []byte("- id: llama3\n  provider: Ollama\n- id: gpt-4o-mini\n  name: Mini\n  provider: openai\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	c, err := Load(list)
	if err != nil {
		t.Fatalf("Load(list) failed: %v", err)
	}
	m, ok := c.Lookup("llama3")
	if !ok || m.Provider != ProviderOllama || m.Name != "llama3" {
		t.Fatalf("Lookup(llama3) = %+v, %v", m, ok)
	}

	doc := filepath.Join(dir, "doc.yaml")
	if err := os.WriteFile(doc, []byte("models:\n  - id: only\n    provider: openrouter\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	c, err = Load(doc)
	if err != nil {
		t.Fatalf("Load(doc) failed: %v", err)
	}
	if ids := c.Completions("on"); len(ids) != 1 || ids[0] != "only" {
		t.Fatalf("Completions = %v", ids)
	}

	dup := filepath.Join(dir, "dup.yaml")
	if err := os.WriteFile(dup, []byte("- id: x\n- id: x\n"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Load(dup); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
