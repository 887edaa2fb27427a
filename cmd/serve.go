package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samsaffron/proxychat/internal/pprof"
	servechat "github.com/samsaffron/proxychat/internal/serve/chat"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveToken     string
	servePprofPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chat sessions over WebSocket",
	Long: `Run the chat session server used by browser front ends.

Routes:
  GET /chat/models             catalog as JSON
  GET /chat/sessions           live sessions
  GET /chat/sessions/new       WebSocket: start a session
  GET /chat/sessions/{id}      WebSocket: re-attach (?since=<seq> replays events)

Examples:
  proxychat serve
  proxychat serve --addr :8484 --token s3cret`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token required by clients (default from config)")
	serveCmd.Flags().IntVar(&servePprofPort, "pprof-port", -1, "Serve pprof on 127.0.0.1:<port> (0 picks a free port, -1 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newProxyRuntime(appCfg, logger)
	if err != nil {
		return err
	}

	addr, token := appCfg.Serve.Addr, appCfg.Serve.Token
	if serveAddr != "" {
		addr = serveAddr
	}
	if serveToken != "" {
		token = serveToken
	}

	manager := servechat.NewSessionManager(servechat.Config{
		Token:     token,
		Transport: rt.client,
		Catalog:   rt.catalog,
		Defaults:  chatSettings(appCfg),
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go manager.StartGC(ctx)

	if servePprofPort >= 0 {
		profiler := pprof.NewServer(logger)
		if _, err := profiler.Start(servePprofPort); err != nil {
			return fmt.Errorf("pprof: %w", err)
		}
		defer profiler.Stop(context.Background())
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           manager.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info().
		Str("addr", addr).
		Str("proxy", rt.client.BaseURL()).
		Bool("auth", token != "").
		Msg("chat server listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	manager.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
