package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/exitcode"
	"github.com/samsaffron/proxychat/internal/llm"
	"github.com/spf13/cobra"
)

var (
	askModel       string
	askTemperature float64
	askMaxTokens   int
	askSystem      string
	askNoStream    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Send a single question through the proxy and print the answer as it streams.

Examples:
  proxychat ask "What is the capital of France?"
  proxychat ask -m claude-3-5-sonnet-20240620 "Summarize RFC 9110 in three lines"
  proxychat ask --temperature 0 --max-tokens 64 "Name a prime"
  proxychat ask --no-stream "Hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model to use (default from config)")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", 0, "Sampling temperature (default from config)")
	askCmd.Flags().IntVar(&askMaxTokens, "max-tokens", 0, "Maximum tokens to generate (default from config)")
	askCmd.Flags().StringVar(&askSystem, "system", "", "System prompt (default from config)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the whole answer instead of streaming")
	if err := askCmd.RegisterFlagCompletionFunc("model", ModelFlagCompletion); err != nil {
		panic(fmt.Sprintf("failed to register model completion: %v", err))
	}
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newProxyRuntime(appCfg, logger)
	if err != nil {
		return err
	}

	settings := chatSettings(appCfg)
	flags := cmd.Flags()
	if flags.Changed("model") {
		settings.Model = askModel
	}
	if flags.Changed("temperature") {
		settings.Temperature = askTemperature
	}
	if flags.Changed("max-tokens") {
		settings.MaxTokens = askMaxTokens
	}
	if flags.Changed("system") {
		settings.SystemPrompt = askSystem
	}

	question := strings.Join(args, " ")
	if askNoStream {
		err = askOnce(ctx, rt.client, settings, question, cmd.OutOrStdout())
	} else {
		err = askStreaming(ctx, rt.client, settings, question, cmd.OutOrStdout())
	}
	return exitcode.Wrap(err)
}

// askStreaming runs one send through an orchestrator and prints the answer
// as it grows.
func askStreaming(ctx context.Context, transport llm.Transport, settings chat.Settings, question string, out io.Writer) error {
	store := chat.NewStore(settings)
	orch := chat.NewOrchestrator(store, transport, logger)

	printer := &suffixPrinter{w: out}
	unwatch := store.Watch(func(c chat.Change) {
		if c.Type == chat.ChangeUpdated && c.Error == "" {
			printer.update(c.Message.Content)
		}
	})
	defer unwatch()

	err := orch.Submit(ctx, question)
	if printer.shown != "" {
		fmt.Fprintln(out)
	}
	return err
}

// askOnce makes a single non-streaming request.
func askOnce(ctx context.Context, client *llm.Client, settings chat.Settings, question string, out io.Writer) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return chat.ErrEmptyMessage
	}
	text, err := client.Complete(ctx, llm.Request{
		Model:       settings.Model,
		Messages:    []llm.Message{llm.SystemText(settings.SystemPrompt), llm.UserText(question)},
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	return nil
}

// suffixPrinter turns cumulative text into incremental terminal output.
type suffixPrinter struct {
	w     io.Writer
	shown string
}

func (p *suffixPrinter) update(text string) {
	if !strings.HasPrefix(text, p.shown) {
		return
	}
	fmt.Fprint(p.w, text[len(p.shown):])
	p.shown = text
}
