package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/vigil/internal/actionserver"
	"github.com/dyluth/vigil/internal/config"
	"github.com/dyluth/vigil/internal/tracing"
	"github.com/dyluth/vigil/internal/validator"
	"github.com/dyluth/vigil/pkg/console"
)

// Version information - set during build
var version = "dev"

func main() {
	// Exit with appropriate code
	os.Exit(run(os.Args[1:]))
}

// run contains the main logic and returns an exit code.
// This separation makes the logic testable and ensures deferred functions run.
func run(args []string) int {
	flags := flag.NewFlagSet("vigil-bridge", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to vigil.yml (optional)")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: vigil-bridge [-config vigil.yml] [console-host]\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("[ERROR] Configuration error: %v", err)
		return 1
	}

	// The console host may be given positionally, as the original launcher did
	if flags.NArg() > 0 {
		cfg.ConsoleHost = flags.Arg(0)
		if err := cfg.Validate(); err != nil {
			log.Printf("[ERROR] Configuration error: %v", err)
			return 1
		}
	}

	if cfg.Tracing.Enabled {
		if err := tracing.Init("vigil-bridge", version, cfg.Tracing.Output); err != nil {
			log.Printf("[ERROR] Failed to initialise tracing: %v", err)
			return 1
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				log.Printf("[WARN] Failed to flush traces: %v", err)
			}
		}()
	}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return 1
	}

	client, err := console.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		log.Printf("[ERROR] Failed to create console client: %v", err)
		return 1
	}
	defer func() {
		log.Printf("[DEBUG] Closing console client...")
		if err := client.Close(); err != nil {
			log.Printf("[ERROR] Error closing console client: %v", err)
		}
	}()

	// Verify Redis connection
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := client.Ping(pingCtx); err != nil {
		cancel()
		log.Printf("[ERROR] Failed to connect to console at %s: %v", cfg.RedisAddress(), err)
		return 1
	}
	cancel()

	bridge, err := validator.New(client, validator.Options{
		InstanceName:    cfg.Instance,
		DecisionTimeout: cfg.DecisionTimeout,
		Correlate:       cfg.Correlate,
		Tokens:          cfg.Tokens,
	})
	if err != nil {
		log.Printf("[ERROR] Configuration error: %v", err)
		return 1
	}

	bridgeCtx, bridgeCancel := context.WithCancel(context.Background())
	defer bridgeCancel()

	if err := bridge.Start(bridgeCtx); err != nil {
		log.Printf("[ERROR] %v", err)
		return 1
	}
	defer bridge.Stop()

	server := actionserver.New(bridge, client, cfg.ListenAddr)
	if err := server.Start(); err != nil {
		log.Printf("[ERROR] Failed to start action server: %v", err)
		return 1
	}

	log.Printf("[INFO] Sending alerts to %s channel %s", cfg.RedisAddress(), console.AlertsChannel(cfg.Instance))
	log.Printf("[INFO] Listening for decisions on channel %s", console.DecisionsChannel(cfg.Instance))
	log.Printf("[INFO] Action server listening on %s", server.Addr())
	if cfg.DecisionTimeout > 0 {
		log.Printf("[INFO] Decision timeout is %s", cfg.DecisionTimeout)
	}

	// Set up signal handling for SIGINT and SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Received signal: %v", sig)
	case <-bridge.Done():
		log.Printf("[ERROR] Decision listener exited: %v", bridge.Err())
		exitCode = 1
	}

	// Graceful shutdown sequence
	log.Printf("[INFO] Initiating graceful shutdown...")

	// 1. Refuse new goals (503) and preempt the one in flight so its HTTP
	// request can complete before the server drains
	bridge.Stop()

	// 2. Shutdown action server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Action server shutdown error: %v", err)
	}

	log.Printf("[INFO] Shutdown complete")
	return exitCode
}
