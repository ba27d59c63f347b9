package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/intervai-dev/intervai/internal/demo"
)

var demoAddr string

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a local interview service for offline practice",
	Long: `Serve the interview API locally with canned questions and heuristic
grading. Point intervai at it with --base-url http://<addr>. Any key of the
form demo, test or sk-test... is accepted.`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoAddr, "addr", "", "Listen address (default from config)")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Demo.Addr
	if demoAddr != "" {
		addr = demoAddr
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Mount("/", demo.NewServer().Routes())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Demo service listening on %s\n", listenURL(addr))
	return runServer(ctx, srv)
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("demo service: %w", err)
	}
}

// listenURL turns a listen address into a URL clients can use.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
