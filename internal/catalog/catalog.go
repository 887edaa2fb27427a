package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider tags the backend family a model is served by. The proxy fans
// out by model id; the tag only drives credential selection and display.
type Provider string

const (
	ProviderOllama      Provider = "ollama"
	ProviderAnthropic   Provider = "anthropic"
	ProviderOpenAI      Provider = "openai"
	ProviderOpenRouter  Provider = "openrouter"
	ProviderHuggingFace Provider = "huggingface"
)

// Model is a read-only catalog entry.
type Model struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Provider    Provider `yaml:"provider" json:"provider"`
	Description string   `yaml:"description" json:"description"`
	Icon        string   `yaml:"icon" json:"icon"`
}

// Catalog is an ordered, immutable set of models keyed by id.
type Catalog struct {
	models []Model
	byID   map[string]int
}

var defaultModels = []Model{
	{ID: "ollama/phi3:mini", Name: "Phi-3 Mini (Local)", Provider: ProviderOllama, Description: "Microsoft Phi-3 running locally via Ollama", Icon: "🏠"},
	{ID: "ollama/phi3:medium", Name: "Phi-3 Medium (Local)", Provider: ProviderOllama, Description: "Larger Phi-3 model for better performance", Icon: "🏠"},
	{ID: "claude-3-5-sonnet-20240620", Name: "Claude 3.5 Sonnet", Provider: ProviderAnthropic, Description: "Anthropic's most intelligent model", Icon: "🧠"},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI, Description: "OpenAI's flagship multimodal model", Icon: "⚡"},
	{ID: "flan-t5-small", Name: "FLAN-T5 Small", Provider: ProviderHuggingFace, Description: "Free open-source text model", Icon: "🤗"},
	{ID: "mistralai/Mistral-7B-Instruct-v0.2", Name: "Mistral 7B Instruct", Provider: ProviderHuggingFace, Description: "Free open-source chat model", Icon: "🔥"},
	{ID: "openrouter/meta-llama/llama-3-8b-instruct", Name: "LLaMA 3 8B", Provider: ProviderOpenRouter, Description: "Free daily tier chat model", Icon: "🦙"},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultModels)
	if err != nil {
		panic(fmt.Sprintf("invalid built-in catalog: %v", err))
	}
	return c
}

// New builds a catalog, rejecting empty and duplicate ids.
func New(models []Model) (*Catalog, error) {
	c := &Catalog{
		models: make([]Model, 0, len(models)),
		byID:   make(map[string]int, len(models)),
	}
	for i, m := range models {
		m.ID = strings.TrimSpace(m.ID)
		if m.ID == "" {
			return nil, fmt.Errorf("model %d: id is required", i)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("model %q: duplicate id", m.ID)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		m.Provider = Provider(strings.ToLower(strings.TrimSpace(string(m.Provider))))
		c.byID[m.ID] = len(c.models)
		c.models = append(c.models, m)
	}
	return c, nil
}

// Load reads a YAML catalog file: either a list of models or a mapping with
// a top-level "models" list.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var models []Model
	if err := yaml.Unmarshal(data, &models); err != nil {
		var doc struct {
			Models []Model `yaml:"models"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		models = doc.Models
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("catalog %s has no models", path)
	}

	c, err := New(models)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Lookup returns the model with the given id.
func (c *Catalog) Lookup(id string) (Model, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Model{}, false
	}
	return c.models[i], true
}

// Models returns a copy of the catalog in its original order.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// Providers returns the distinct provider tags, sorted.
func (c *Catalog) Providers() []Provider {
	seen := make(map[Provider]bool)
	var out []Provider
	for _, m := range c.models {
		if m.Provider == "" || seen[m.Provider] {
			continue
		}
		seen[m.Provider] = true
		out = append(out, m.Provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Completions returns model ids starting with prefix, for shell completion.
func (c *Catalog) Completions(prefix string) []string {
	var out []string
	for _, m := range c.models {
		if strings.HasPrefix(m.ID, prefix) {
			out = append(out, m.ID)
		}
	}
	return out
}
