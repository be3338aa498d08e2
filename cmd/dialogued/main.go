// ABOUTME: main wires the dialogue server together in dependency order (Store, ModelClient,
// ABOUTME: ToolRegistry, ToolInvoker, ProactiveScheduler, then the Orchestrator) and serves HTTP
// ABOUTME: until an interrupt or terminate signal triggers a graceful shutdown.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/2389-research/dialogued/boundary"
	"github.com/2389-research/dialogued/dialogue"
	"github.com/2389-research/dialogued/dialogueconfig"
	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/proactive"
	"github.com/2389-research/dialogued/store"
	"github.com/2389-research/dialogued/tools"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("component=cmd.dialogued action=run kind=fatal message=%q", err)
	}
}

func run() error {
	fs := flag.NewFlagSet("dialogued", flag.ExitOnError)
	envFile := fs.String("env-file", ".env", "path to a .env file to load before reading configuration")
	toolsDir := fs.String("tools-dir", "", "directory of *.tool.json definitions to scan at startup")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := dialogueconfig.LoadDotenv(*envFile); err != nil {
		log.Printf("component=cmd.dialogued action=load_dotenv kind=warning message=%q", err)
	}

	cfg, err := dialogueconfig.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// C1: Store
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	// C2: ModelClient. A genuinely nil interface (not a nil *Adapter) is kept
	// on failure so downstream nil checks work correctly.
	var model modelclient.Client
	if adapter, err := modelclient.FromEnv(); err != nil {
		log.Printf("component=cmd.dialogued action=model_client kind=degraded message=%q", err)
	} else {
		model = adapter
	}

	// C3: ToolRegistry
	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewCalculator(), "1.0.0", tools.Stable, true); err != nil {
		log.Printf("component=cmd.dialogued action=register_builtin_tool kind=warning message=%q", err)
	}

	toolFactories := map[string]func() tools.Tool{
		"calculator": func() tools.Tool { return tools.NewCalculator() },
	}
	dir := *toolsDir
	if dir == "" {
		dir = cfg.ToolsDir
	}
	if dir != "" {
		if err := registry.ScanDir(dir, toolFactories); err != nil {
			log.Printf("component=cmd.dialogued action=scan_tools kind=warning message=%q", err)
		}
	}

	// C4: ToolInvoker
	invoker := tools.NewInvoker(registry, modelclient.NewToolDecider(model))

	// C7: ProactiveScheduler
	scheduler := proactive.NewScheduler(st, model)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Run(ctx)
	defer scheduler.Stop()

	// C6: DialogueOrchestrator, depending on C1-C5 and C7.
	orchestrator := dialogue.New(st, model, registry, invoker, scheduler)

	// C8: Boundary
	server := boundary.NewServer(orchestrator, scheduler, registry, st,
		boundary.WithOverloadDepth(cfg.OverloadDepth),
		boundary.WithRequestTimeout(cfg.RequestTimeout),
	)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("component=cmd.dialogued action=listen kind=info addr=%s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case sig := <-sigCh:
		log.Printf("component=cmd.dialogued action=shutdown kind=signal signal=%s", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
