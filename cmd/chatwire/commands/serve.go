package commands

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/provider"
	"github.com/chatwire-ai/chatwire/internal/runner"
	"github.com/chatwire-ai/chatwire/internal/server"
	"github.com/chatwire-ai/chatwire/internal/tool"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
	serveScript   string
	serveModel    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatwire reference server",
	Long: `Start the chatwire reference server.

The server streams responses over the tagged line protocol. With a
provider key configured it answers from a real model; with --script it
replays scripted responses, which is useful for tests and demos.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
	serveCmd.Flags().StringVar(&serveScript, "script", "", "Serve scripted responses from a YAML file")
	serveCmd.Flags().StringVarP(&serveModel, "model", "m", "", "Model to use (provider/model format)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	log.Printf("Starting chatwire server v%s", Version)

	// Initialize paths
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	// Load configuration
	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if serveModel != "" {
		appConfig.Model = serveModel
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tool registry
	toolReg := tool.DefaultRegistry()
	if len(appConfig.Tools) > 0 {
		toolReg.Enable(appConfig.Tools)
	}

	// Pick the runner: scripted responses or a configured provider
	var (
		run         runner.Runner
		providerReg *provider.Registry
	)
	if serveScript != "" {
		scripted, err := runner.NewScriptRunnerFromFile(serveScript)
		if err != nil {
			return err
		}
		if err := scripted.Watch(ctx); err != nil {
			log.Printf("Warning: script reload disabled: %v", err)
		}
		run = scripted
		log.Printf("Serving scripted responses from %s", serveScript)
	} else {
		providerReg, err = provider.InitializeProviders(ctx, appConfig)
		if err != nil {
			log.Printf("Warning: failed to initialize some providers: %v", err)
		}
		model, err := providerReg.DefaultModel()
		if err != nil {
			return fmt.Errorf("%w (configure a provider key or pass --script)", err)
		}
		p, err := providerReg.Get(model.ProviderID)
		if err != nil {
			return err
		}
		run = runner.NewEinoRunner(p, model, toolReg)
		log.Printf("Serving %s/%s", model.ProviderID, model.ID)
	}

	// Configure server
	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort

	// Create server
	srv := server.New(serverConfig, appConfig, run, toolReg, providerReg)

	// Connect configured MCP servers
	if len(appConfig.MCP) > 0 {
		if err := srv.InitializeMCP(ctx); err != nil {
			log.Printf("Warning: MCP initialization failed: %v", err)
		}
		defer srv.CloseMCP()
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://%s:%d", serveHostname, servePort)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
