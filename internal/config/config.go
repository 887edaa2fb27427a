package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/spf13/viper"
)

const appName = "proxychat"

type Config struct {
	Proxy       ProxyConfig       `mapstructure:"proxy"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Chat        ChatConfig        `mapstructure:"chat"`
	CatalogFile string            `mapstructure:"catalog_file"`
	Serve       ServeConfig       `mapstructure:"serve"`
	Log         LogConfig         `mapstructure:"log"`
}

type ProxyConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CredentialsConfig holds the proxy credentials. Values may use op://,
// $(command) or ${VAR}; they are resolved once by Load.
type CredentialsConfig struct {
	Default   string            `mapstructure:"default"`
	Providers map[string]string `mapstructure:"providers"`
}

// ChatConfig holds the initial settings of every new conversation.
type ChatConfig struct {
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type ServeConfig struct {
	Addr  string `mapstructure:"addr"`
	Token string `mapstructure:"token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, or from the default locations when
// path is empty. A missing config file is not an error. Environment
// variables prefixed PROXYCHAT_ override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, appName))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(strings.ToUpper(appName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("proxy.url", "http://localhost:11434")
	v.SetDefault("proxy.timeout", "10m")
	v.SetDefault("credentials.default", "sk-1234")
	v.SetDefault("chat.model", "tinyllama")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 2048)
	v.SetDefault("chat.system_prompt", "You are a helpful AI assistant.")
	v.SetDefault("serve.addr", "127.0.0.1:8484")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
}

func (c *Config) resolve() error {
	url, err := ResolveValue(c.Proxy.URL)
	if err != nil {
		return fmt.Errorf("proxy.url: %w", err)
	}
	c.Proxy.URL = strings.TrimRight(url, "/")

	if c.Credentials.Default, err = ResolveValue(c.Credentials.Default); err != nil {
		return fmt.Errorf("credentials.default: %w", err)
	}
	for tag, raw := range c.Credentials.Providers {
		key, err := ResolveValue(raw)
		if err != nil {
			return fmt.Errorf("credentials.providers.%s: %w", tag, err)
		}
		c.Credentials.Providers[tag] = key
	}

	if c.Serve.Token, err = ResolveValue(c.Serve.Token); err != nil {
		return fmt.Errorf("serve.token: %w", err)
	}
	return nil
}

// ApplyOverrides applies command-line overrides; empty values are ignored.
func (c *Config) ApplyOverrides(proxyURL, model string) {
	if proxyURL != "" {
		c.Proxy.URL = strings.TrimRight(proxyURL, "/")
	}
	if model != "" {
		c.Chat.Model = model
	}
}

// Catalog returns the configured model catalog, falling back to the
// built-in one when no catalog file is set.
func (c *Config) Catalog() (*catalog.Catalog, error) {
	if strings.TrimSpace(c.CatalogFile) == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(expandHome(c.CatalogFile))
}

// GetConfigPath returns the path where the config file should be located.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, "config.yaml"), nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
