package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/samsaffron/proxychat/internal/catalog"
	"github.com/samsaffron/proxychat/internal/chat"
	"github.com/samsaffron/proxychat/internal/exitcode"
	"github.com/samsaffron/proxychat/internal/ui"
	"github.com/spf13/cobra"
)

var chatModel string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a line-based conversation. Each line you enter is sent with the
whole conversation so far.

Examples:
  proxychat chat
  proxychat chat -m gpt-4o

Slash commands:
  /clear           - Clear conversation
  /model [id]      - Show or set the model
  /temp [value]    - Show or set the temperature
  /system [text]   - Show or set the system prompt
  /models          - List catalog models
  /help            - Show help
  /quit            - Exit chat

Ctrl+C cancels a streaming answer; when idle it exits.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model to start with (default from config)")
	if err := chatCmd.RegisterFlagCompletionFunc("model", ModelFlagCompletion); err != nil {
		panic(fmt.Sprintf("failed to register model completion: %v", err))
	}
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := newProxyRuntime(appCfg, logger)
	if err != nil {
		return err
	}

	settings := chatSettings(appCfg)
	if chatModel != "" {
		settings.Model = chatModel
	}
	orch := chat.NewOrchestrator(chat.NewStore(settings), rt.client, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == os.Interrupt && orch.Cancel() {
				continue
			}
			fmt.Fprintln(cmd.ErrOrStderr())
			os.Exit(exitcode.Cancelled)
		}
	}()

	out := cmd.OutOrStdout()
	r := newREPL(orch, rt.catalog, out, ui.NewStyles(out))
	return r.run(context.Background(), cmd.InOrStdin())
}

type repl struct {
	orch    *chat.Orchestrator
	catalog *catalog.Catalog
	out     io.Writer
	styles  *ui.Styles
	printer *suffixPrinter
}

func newREPL(orch *chat.Orchestrator, cat *catalog.Catalog, out io.Writer, styles *ui.Styles) *repl {
	r := &repl{orch: orch, catalog: cat, out: out, styles: styles}
	orch.Store().Watch(func(c chat.Change) {
		if c.Type == chat.ChangeUpdated && c.Error == "" && r.printer != nil {
			r.printer.update(c.Message.Content)
		}
	})
	return r
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	settings := r.orch.Store().Settings()
	fmt.Fprintln(r.out, r.styles.Muted.Render(fmt.Sprintf("Chatting with %s. Type /help for commands.", settings.Model)))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	r.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, "/"):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.send(ctx, line)
		}
		r.prompt()
	}
	return scanner.Err()
}

func (r *repl) prompt() {
	fmt.Fprint(r.out, r.styles.Prompt.Render("> "))
}

func (r *repl) send(ctx context.Context, text string) {
	r.printer = &suffixPrinter{w: r.out}
	err := r.orch.Submit(ctx, text)
	if r.printer.shown != "" {
		fmt.Fprintln(r.out)
	}
	r.printer = nil

	if err != nil {
		msg := r.orch.Store().LastError()
		if msg == "" {
			msg = err.Error()
		}
		fmt.Fprintln(r.out, r.styles.Error.Render(chat.ErrorPrefix+msg))
	}
}

// command handles a slash command and reports whether the REPL should exit.
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	settings := r.orch.Store().Settings()

	switch name {
	case "/quit", "/exit":
		return true
	case "/clear":
		r.orch.Clear()
		r.info("Conversation cleared.")
	case "/model":
		if arg == "" {
			r.info("Model: " + settings.Model)
			break
		}
		r.orch.SetSettings(chat.SettingsPatch{Model: &arg})
		if _, ok := r.catalog.Lookup(arg); !ok {
			r.info(fmt.Sprintf("Model set to %s (not in the catalog; the proxy decides if it exists).", arg))
			break
		}
		r.info("Model set to " + arg)
	case "/temp":
		if arg == "" {
			r.info(fmt.Sprintf("Temperature: %g", settings.Temperature))
			break
		}
		temp, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			r.fail(fmt.Errorf("invalid temperature %q", arg))
			break
		}
		r.orch.SetSettings(chat.SettingsPatch{Temperature: &temp})
		r.info(fmt.Sprintf("Temperature set to %g", temp))
	case "/system":
		if arg == "" {
			r.info("System prompt: " + settings.SystemPrompt)
			break
		}
		r.orch.SetSettings(chat.SettingsPatch{SystemPrompt: &arg})
		r.info("System prompt updated.")
	case "/models":
		printCatalog(r.out, r.styles, r.catalog, settings.Model)
	case "/help":
		fmt.Fprintln(r.out, "Commands: /clear, /model [id], /temp [value], /system [text], /models, /quit")
	default:
		r.fail(errors.New("unknown command " + name + " (try /help)"))
	}
	return false
}

func (r *repl) info(msg string) {
	fmt.Fprintln(r.out, r.styles.Muted.Render(msg))
}

func (r *repl) fail(err error) {
	fmt.Fprintln(r.out, r.styles.Error.Render(err.Error()))
}
