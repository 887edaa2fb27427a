package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/config"
	"github.com/samsaffron/proxychat/internal/credentials"
	"github.com/samsaffron/proxychat/internal/llm"
)

// proxyRuntime bundles what every command needs to talk to the proxy.
type proxyRuntime struct {
	catalog *catalog.Catalog
	creds   *credentials.Resolver
	client  *llm.Client
}

func newProxyRuntime(cfg *config.Config, log zerolog.Logger) (*proxyRuntime, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	creds := credentials.NewResolver(cat, cfg.Credentials.Providers, cfg.Credentials.Default)
	client := llm.NewClient(llm.ClientConfig{
		BaseURL:     cfg.Proxy.URL,
		Credentials: creds,
		Timeout:     cfg.Proxy.Timeout,
		Logger:      log,
	})

	if _, ok := cat.Lookup(cfg.Chat.Model); !ok {
		log.Debug().Str("model", cfg.Chat.Model).Msg("default model is not in the catalog")
	}
	for _, p := range cat.Providers() {
		if key, ok := creds.ForProvider(p); ok {
			log.Debug().Str("provider", string(p)).Str("credential", credentials.Masked(key)).Msg("provider credential")
		}
	}
	log.Debug().
		Str("proxy", client.BaseURL()).
		Str("credential", credentials.Masked(creds.Fallback())).
		Int("models", len(cat.Models())).
		Msg("proxy runtime ready")

	return &proxyRuntime{catalog: cat, creds: creds, client: client}, nil
}

func chatSettings(cfg *config.Config) chat.Settings {
	return chat.Settings{
		Model:        cfg.Chat.Model,
		Temperature:  cfg.Chat.Temperature,
		MaxTokens:    cfg.Chat.MaxTokens,
		SystemPrompt: cfg.Chat.SystemPrompt,
	}
}
