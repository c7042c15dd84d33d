package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pollbridge/pollbridge-go"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pollbridged",
		Short: "Request bridge for poll-only plugin runtimes",
		Long: `Pollbridged bridges an AI-assistant process to a sandboxed, HTTP-only
plugin runtime. Assistant-side tool calls are queued in memory; the plugin
pulls them over HTTP and posts responses back.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
	}

	var (
		listenAddr    string
		overall       time.Duration
		staleWindow   time.Duration
		sweepInterval time.Duration
		pollInterval  time.Duration
		idleThreshold time.Duration
		maxPending    int
		logLevel      string
		logJSON       bool
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge server",
		Long:  "Run the HTTP polling endpoints and the request bridge until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logLevel, logJSON)
			if err != nil {
				return err
			}

			svc, err := pollbridge.NewService(
				pollbridge.WithListenAddr(listenAddr),
				pollbridge.WithOverallTimeout(overall),
				pollbridge.WithStaleDispatchWindow(staleWindow),
				pollbridge.WithSweepInterval(sweepInterval),
				pollbridge.WithPollInterval(pollInterval),
				pollbridge.WithIdleThreshold(idleThreshold),
				pollbridge.WithMaxPending(maxPending),
				pollbridge.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := svc.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return svc.Shutdown(shutdownCtx)
		},
	}

	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", pollbridge.DefaultListenAddr, "HTTP listen address")
	serveCmd.Flags().DurationVar(&overall, "overall-timeout", 60*time.Second, "hard limit on a request's outstanding lifetime")
	serveCmd.Flags().DurationVar(&staleWindow, "stale-window", 45*time.Second, "silence after which a claimed request becomes claimable again")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 10*time.Second, "interval of the expiry sweep")
	serveCmd.Flags().DurationVar(&pollInterval, "poll-interval", time.Second, "poll cadence advertised to the plugin")
	serveCmd.Flags().DurationVar(&idleThreshold, "idle-threshold", 30*time.Second, "plugin silence treated as a disconnect")
	serveCmd.Flags().IntVar(&maxPending, "max-pending", 1000, "maximum outstanding requests")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&logJSON, "log-json", false, "log in JSON instead of text")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string, jsonFormat bool) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
