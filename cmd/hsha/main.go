package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marmos91/hsha/internal/logger"
	"github.com/marmos91/hsha/pkg/config"
	"github.com/marmos91/hsha/pkg/metrics"
	"github.com/marmos91/hsha/pkg/server"
	"github.com/spf13/pflag"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const usage = `hsha - half-sync/half-async echo server

Usage:
  hsha [start] [flags]     Start the server (default command)
  hsha init [--force]      Write a sample configuration file
  hsha version             Print version information

Run 'hsha <command> --help' for the flags of a command.
`

func main() {
	args := os.Args[1:]

	command := "start"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "start":
		err = runStart(args)
	case "init":
		err = runInit(args)
	case "version":
		fmt.Printf("hsha %s (commit %s)\n", version, commit)
	case "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := pflag.NewFlagSet("init", pflag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	path := fs.String("config", "", "Where to write the file (default: "+config.GetDefaultConfigPath()+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path != "" {
		if err := config.InitConfigToPath(*path, *force); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *path)
		return nil
	}

	written, err := config.InitConfig(*force)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", written)
	return nil
}

func runStart(args []string) error {
	fs := pflag.NewFlagSet("start", pflag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	port := fs.Int("port", 0, "TCP port to listen on (0 = ephemeral)")
	poolSize := fs.Int("pool-size", 0, "Number of worker goroutines")
	framing := fs.String("framing", "", "Request framing: line or chunked")
	processorType := fs.String("processor", "", "Processing routine: echo, upper or reverse")
	logLevel := fs.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	// Flags take precedence over the file and environment. Only flags given
	// on the command line are applied so that --port 0 still means ephemeral.
	if fs.Changed("port") {
		cfg.Adapters.Echo.Port = *port
	}
	if fs.Changed("pool-size") {
		cfg.Adapters.Echo.PoolSize = *poolSize
	}
	if fs.Changed("framing") {
		cfg.Adapters.Echo.Framing = *framing
	}
	if fs.Changed("processor") {
		cfg.Processor.Type = strings.ToLower(*processorType)
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = strings.ToUpper(*logLevel)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure log output: %w", err)
	}

	return serve(cfg)
}

func serve(cfg *config.Config) error {
	logger.Info("hsha %s starting", version)

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		metrics.RegisterBuildInfo(version, commit)
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
	}

	proc, err := config.CreateProcessor(&cfg.Processor)
	if err != nil {
		return err
	}
	logger.Info("Processor: %s", proc.Name())

	adapters, err := config.CreateAdapters(cfg, metricsResult.ReactorMetrics, proc)
	if err != nil {
		return err
	}

	srv := server.New()
	srv.SetShutdownTimeout(cfg.Server.ShutdownTimeout)
	if metricsResult.Server != nil {
		srv.SetMetricsServer(metricsResult.Server)
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	e := cfg.Adapters.Echo
	logger.Info("Echo server configuration:")
	logger.Info("  Port: %d", e.Port)
	logger.Info("  Pool size: %d", e.PoolSize)
	logger.Info("  Framing: %s", e.Framing)
	if e.MaxConnections > 0 {
		logger.Info("  Max connections: %d", e.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Shutdown timeout: %v", e.ShutdownTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info("Received %v, initiating graceful shutdown...", sig)
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("shutdown error: %w", err)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("Server stopped")
	}

	return nil
}
