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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/darioristic/opsdesk/internal/assistant/tools"
	"github.com/darioristic/opsdesk/internal/config"
	"github.com/darioristic/opsdesk/internal/conversation"
	"github.com/darioristic/opsdesk/internal/crm"
	"github.com/darioristic/opsdesk/internal/llm"
	"github.com/darioristic/opsdesk/internal/retention"
	"github.com/darioristic/opsdesk/internal/server"
	"github.com/darioristic/opsdesk/internal/tenant"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the opsdesk API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "HTTP server port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tenants, err := tenant.LoadManager(cfg.TenantsFile, os.Getenv("OPSDESK_API_KEY"))
	if err != nil {
		return fmt.Errorf("loading tenants: %w", err)
	}

	crmStore, err := crm.NewStore(cfg.CRMDBPath())
	if err != nil {
		return fmt.Errorf("opening CRM store: %w", err)
	}
	defer crmStore.Close()

	registry, err := tools.NewRegistry(crmStore)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	convStore, err := conversation.NewStore(cfg.ConversationDBPath(),
		time.Duration(cfg.RetentionDays)*24*time.Hour)
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer convStore.Close()

	var provider llm.Provider
	if p, err := llm.NewOpenAIProvider(cfg.OpenAIAPIKey); err == nil {
		provider = p
	} else if errors.Is(err, llm.ErrNotConfigured) {
		log.Warn().Err(err).Msg("chat_degraded_no_provider")
	} else {
		return fmt.Errorf("configuring llm provider: %w", err)
	}

	job, err := retention.NewJob(convStore, retention.DefaultSchedule)
	if err != nil {
		return fmt.Errorf("scheduling retention: %w", err)
	}
	job.Start()
	defer job.Stop()

	srv := server.NewServer(cfg, tenants, provider, registry,
		conversation.NewBestEffort(convStore))

	addr := fmt.Sprintf(":%d", servePort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // streams must outlive the chat pipeline deadline
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Bool("provider_configured", cfg.ProviderConfigured()).
		Bool("memory_enabled", cfg.MemoryEnabled).
		Int("retention_days", cfg.RetentionDays).
		Msg("opsdesk_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
