package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonathan/resume-analysis/internal/config"
	"github.com/jonathan/resume-analysis/internal/jobpoll"
	"github.com/jonathan/resume-analysis/internal/llamaparse"
	"github.com/jonathan/resume-analysis/internal/llm"
	"github.com/jonathan/resume-analysis/internal/server"
	"github.com/jonathan/resume-analysis/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the workflow API server",
	Long: `Start an HTTP server that accepts documents, starts workflows and reports their status.
Workflows left running by a previous process are resumed on startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if err := cfg.RequireServices(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := migrate(ctx, st); err != nil {
		return err
	}

	documents, err := llamaparse.NewClient(cfg.LlamaCloudAPIKey, &llamaparse.Options{BaseURL: cfg.LlamaCloudBaseURL})
	if err != nil {
		return err
	}

	provider, err := llm.ParseProvider(cfg.LLMProvider)
	if err != nil {
		return err
	}
	text, err := llm.NewClient(ctx, llm.DefaultConfigFor(provider), cfg.LLMAPIKey())
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = text.Close() }()

	poller := jobpoll.New(documents)
	poller.Interval = time.Duration(cfg.PollInterval)
	poller.Deadline = time.Duration(cfg.PollDeadline)
	poller.Verbose = cfg.Verbose

	engine, err := workflow.New(workflow.Options{
		Store:     st,
		Documents: documents,
		Text:      text,
		Poller:    poller,
		Policy: workflow.Policy{
			Timeout:    time.Duration(cfg.StepTimeout),
			MaxRetries: cfg.StepMaxRetries,
			RetryDelay: time.Duration(cfg.StepRetryDelay),
			FailoverTo: workflow.StepFailover,
		},
		SetupResumePath:          cfg.SetupResumePath,
		SetupApplicationFormPath: cfg.SetupApplicationFormPath,
		Verbose:                  cfg.Verbose,
	})
	if err != nil {
		return err
	}

	recovered, err := engine.Recover(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		log.Printf("[workflow] resumed %d running workflows", recovered)
	}

	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}
	if jwtCfg == nil {
		log.Println("[server] JWT_SECRET not set, API authentication is disabled")
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		JWT:            jwtCfg,
	}, engine)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		serverErr := srv.Shutdown(shutdownCtx)
		if err := engine.Shutdown(shutdownCtx); err != nil {
			log.Printf("[workflow] shutdown: %v", err)
		}
		return serverErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("[server] stopped")
	return nil
}
