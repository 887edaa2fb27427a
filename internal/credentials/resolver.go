package credentials

import (
	"strings"

	"github.com/samsaffron/proxychat/internal/catalog"
)

// DefaultMasterKey is the proxy master key used when nothing is configured.
// It is a local-testing placeholder, not a secret.
const DefaultMasterKey = "sk-1234"

// Resolver maps a model id to the bearer credential sent to the proxy.
// The table is built once from the catalog's provider tags; lookups never
// inspect the model string itself.
type Resolver struct {
	byModel    map[string]string
	byProvider map[catalog.Provider]string
	fallback   string
}

// NewResolver builds a resolver. providerKeys maps provider tags to keys;
// empty keys are ignored. Models without a keyed provider use fallback.
func NewResolver(cat *catalog.Catalog, providerKeys map[string]string, fallback string) *Resolver {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultMasterKey
	}
	r := &Resolver{
		byModel:    make(map[string]string),
		byProvider: make(map[catalog.Provider]string),
		fallback:   fallback,
	}
	for tag, key := range providerKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		r.byProvider[catalog.Provider(strings.ToLower(strings.TrimSpace(tag)))] = key
	}
	if cat != nil {
		for _, m := range cat.Models() {
			if key, ok := r.byProvider[m.Provider]; ok {
				r.byModel[m.ID] = key
			}
		}
	}
	return r
}

// ForModel returns the credential for model.
func (r *Resolver) ForModel(model string) string {
	if key, ok := r.byModel[model]; ok {
		return key
	}
	return r.fallback
}

// ForProvider returns the key configured for a provider tag and whether one
// was set explicitly.
func (r *Resolver) ForProvider(tag catalog.Provider) (string, bool) {
	key, ok := r.byProvider[tag]
	return key, ok
}

// Fallback returns the default credential.
func (r *Resolver) Fallback() string {
	return r.fallback
}

// Masked renders a key for logs: "sk-1...cdef".
func Masked(key string) string {
	if key == "" {
		return "(none)"
	}
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}
