package cmd

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/rs/zerolog"
	"github.com/samsaffron/proxychat/internal/config"
	"github.com/samsaffron/proxychat/internal/exitcode"
	"github.com/samsaffron/proxychat/internal/logging"
	"github.com/samsaffron/proxychat/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/proxychat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (auto, json, console)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy-url", "", "Proxy base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	rootCmd.PersistentFlags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")
}

var rootCmd = &cobra.Command{
	Use:   "proxychat",
	Short: "Chat with language models through an OpenAI-compatible proxy",
	Long: `proxychat talks to a single OpenAI-compatible proxy (LiteLLM, Ollama, ...)
and streams chat completions from whichever backend the proxy routes to.

Examples:
  proxychat ask "What is the capital of France?"
  proxychat ask -m gpt-4o "Explain TCP vs UDP"
  proxychat chat                        # interactive conversation
  proxychat models --remote             # models the proxy serves
  proxychat serve --addr :8484          # WebSocket chat server`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadRuntimeConfig(); err != nil {
			return err
		}
		return startProfiling()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stopProfiling()
	},
}

var (
	configPath string
	logLevel   string
	logFormat  string
	proxyURL   string
	cpuProfile string
	memProfile string

	cpuProfileFile *os.File
)

// appCfg and logger are set before any command runs.
var (
	appCfg *config.Config
	logger = zerolog.Nop()
)

func loadRuntimeConfig() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(proxyURL, "")

	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	log, err := logging.New(level, format, os.Stderr)
	if err != nil {
		return fmt.Errorf("invalid log settings: %w", err)
	}

	appCfg, logger = cfg, log
	return nil
}

func startProfiling() error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return err
		}
		cpuProfileFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
	}
	return nil
}

func stopProfiling() error {
	if cpuProfileFile != nil {
		pprof.StopCPUProfile()
		cpuProfileFile.Close()
	}
	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return err
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return err
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(exitcode.For(err))
	}
}

// printError shows err in a banner on a terminal and as a plain line otherwise.
func printError(w io.Writer, err error) {
	if f, ok := w.(*os.File); ok && logging.IsTerminal(f) {
		fmt.Fprintln(w, ui.NewStyles(w).ErrorBanner(err.Error()))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
