package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PizzaHomicide/kiri/internal/config"
	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/gateway"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/PizzaHomicide/kiri/internal/playback"
	"github.com/PizzaHomicide/kiri/internal/player"
	"github.com/PizzaHomicide/kiri/internal/service"
	"github.com/PizzaHomicide/kiri/internal/store"
	"github.com/PizzaHomicide/kiri/internal/ui/tui"
	"github.com/PizzaHomicide/kiri/internal/version"
)

const usage = `Usage: kiri [command]

Commands:
  tui       Browse and play from an Xtream-codes provider (default)
  relay     Serve the gateway relay for other Kiri clients
  env       List the supported environment variable overrides
  version   Print the version
`

func main() {
	command := "tui"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "env":
		fmt.Print(config.EnvHelp())
		return
	case "version":
		fmt.Println(version.GetVersionInfo())
		return
	case "tui", "relay":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// It is unrecoverable if we cannot produce an application config
		_, _ = fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.New(log.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	// Set the default global logger
	log.SetDefaultLogger(logger)

	log.Info("Starting up Kiri", "command", command, "version", version.GetVersion(), "build_time", version.GetBuildTime())

	if command == "relay" {
		err = runRelay(cfg)
	} else {
		err = runTUI(cfg)
	}
	if err != nil {
		log.Error("Kiri exited with an error", "command", command, "error", err)
		_, _ = fmt.Fprintf(os.Stderr, "kiri %s: %v\n", command, err)
		os.Exit(1)
	}

	log.Info("Kiri shutting down.  Goodbye!")
}

func newDirect(cfg *config.Config) *gateway.Direct {
	return gateway.NewDirect(gateway.Options{
		Timeout:           cfg.Gateway.Timeout,
		RequestsPerSecond: cfg.Gateway.RequestsPerSecond,
		UserAgent:         cfg.Gateway.UserAgent,
	})
}

func newGateway(cfg *config.Config) domain.Gateway {
	if cfg.Gateway.Mode == "relay" {
		log.Info("Sending provider requests through relay", "relay_url", cfg.Gateway.RelayURL)
		return gateway.NewRemote(cfg.Gateway.RelayURL, cfg.Gateway.Timeout, nil)
	}
	return newDirect(cfg)
}

func runTUI(cfg *config.Config) error {
	kv, err := store.New(context.Background(), cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Warn("Failed to close key-value store", "error", err)
		}
	}()

	sink, engines, err := player.New(cfg.Player)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}

	app := service.NewApp(newGateway(cfg), kv, playback.NewController(engines, sink))
	defer app.Shutdown()

	return tui.Run(app)
}

func runRelay(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := gateway.NewRelay(newDirect(cfg), gateway.RelayOptions{EnableMetrics: cfg.Relay.EnableMetrics})
	return relay.ListenAndServe(ctx, cfg.Relay.ListenAddr)
}
