package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	// Embedded zone database for hosts without /usr/share/zoneinfo.
	_ "time/tzdata"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Felps0156/SDR-Agent/internal/app"
	"github.com/Felps0156/SDR-Agent/internal/booking"
	"github.com/Felps0156/SDR-Agent/internal/config"
	"github.com/Felps0156/SDR-Agent/internal/handler"
	"github.com/Felps0156/SDR-Agent/internal/logger"
	"github.com/Felps0156/SDR-Agent/internal/metrics"
	"github.com/Felps0156/SDR-Agent/internal/models"
	"github.com/Felps0156/SDR-Agent/internal/orchestrator"
	"github.com/Felps0156/SDR-Agent/internal/service"
)

const defaultConfigPath = "./data/config.toml"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type App struct {
	ctx        context.Context
	logger     *logger.Logger
	infraCfg   *config.Config
	featureCfg *service.FeatureConfig
	booking    *app.App

	// Confirmation streams for the "stdin" mode; nil keeps the process ones.
	stdin  io.Reader
	stderr io.Writer
}

func main() {
	a := &App{
		ctx:    context.Background(),
		logger: logger.New(),
	}

	if err := a.rootCmd().Execute(); err != nil {
		a.logger.Error("Application error", logger.Error(err))
		os.Exit(1)
	}
}

func (a *App) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sdr-agent",
		Short: "Appointment booking engine for the lead scheduling assistant",
		Long: `sdr-agent decides whether an appointment may be written to the shared
calendar. Every booking is normalized to the office time zone, checked
against business hours and nearby events, and confirmed by an operator.

It can run as:
  - An MCP server for the dialogue agent (serve)
  - A CLI for operators (book, list, search, get, update, delete)`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		a.serveCmd(),
		a.bookCmd(),
		a.listCmd(),
		a.searchCmd(),
		a.getCmd(),
		a.updateCmd(),
		a.deleteCmd(),
	)
	return root
}

func (a *App) initialize() error {
	envPath := getEnvOrDefault("ENV_FILE", ".env")
	infraCfg, err := config.LoadWithFile(envPath)
	if err != nil {
		a.logger.Error("Failed to load infrastructure config", logger.Error(err), logger.F("path", envPath))
		return err
	}
	a.infraCfg = infraCfg

	configPath := infraCfg.ConfigPath
	if configPath == "" {
		configPath = defaultConfigPath
	}
	featureCfg, err := a.loadFeatureConfig(configPath)
	if err != nil {
		a.logger.Error("Failed to load feature config", logger.Error(err), logger.F("path", configPath))
		return err
	}
	a.featureCfg = featureCfg

	a.booking = app.New(infraCfg, featureCfg, a.logger)
	if a.stdin != nil {
		a.booking.In = a.stdin
	}
	if a.stderr != nil {
		a.booking.Out = a.stderr
	}
	return a.booking.Initialize(a.ctx)
}

// loadFeatureConfig falls back to the built-in defaults when the file is absent.
func (a *App) loadFeatureConfig(path string) (*service.FeatureConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("Feature config not found, using defaults", logger.F("path", path))
		return service.DefaultFeatureConfig(), nil
	}
	return service.LoadFeatureConfig(path)
}

func (a *App) close() {
	if a.booking == nil {
		return
	}
	if err := a.booking.Close(a.ctx); err != nil {
		a.logger.Error("Failed to close booking service", logger.Error(err))
	}
}

func (a *App) serveCmd() *cobra.Command {
	var (
		transport   string
		httpAddr    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the booking tools.

Supports two transports:
  - stdio: Standard input/output (default); confirmations use the terminal
  - streamable-http: Streamable HTTP transport on /mcp

A calendar backend that fails to start does not stop the server: every
tool answers "service not initialized" instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(transport, httpAddr, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address. Can also use METRICS_ADDR env var. Defaults to :9090 for streamable-http, disabled for stdio.")

	return cmd
}

func (a *App) serve(transport, httpAddr, metricsAddr string) error {
	if transport != "stdio" && transport != "streamable-http" {
		return fmt.Errorf("unsupported transport %q", transport)
	}

	ctx, cancel := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	a.ctx = ctx

	if err := a.initialize(); err != nil {
		if a.booking == nil {
			return err
		}
		a.logger.Warn("Serving without a calendar backend", logger.Action("serve"), logger.Error(err))
	}
	defer a.close()

	mcpSrv := handler.NewMCPServer(a.booking.Handler(), version)

	if metricsAddr == "" {
		metricsAddr = a.infraCfg.MetricsAddr
	}
	if metricsAddr == "" && transport != "stdio" {
		metricsAddr = metrics.DefaultAddr
	}
	if metricsAddr != "" {
		metricsSrv := metrics.NewServer(metricsAddr, a.booking.Recorder(), a.logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				a.logger.Error("Metrics server failed", logger.Error(err))
			}
		}()
		defer shutdownWithTimeout(metricsSrv.Shutdown, a.logger, "metrics")
	}

	if transport == "stdio" {
		a.logger.Info("Serving MCP", logger.Action("serve"), logger.F("TRANSPORT", transport))
		return serveUntilDone(ctx, func() error { return mcpserver.ServeStdio(mcpSrv) })
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
	))
	// No write timeout: create_booking waits for the operator.
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	defer shutdownWithTimeout(httpSrv.Shutdown, a.logger, "mcp")

	a.logger.Info("Serving MCP", logger.Action("serve"), logger.F("TRANSPORT", transport), logger.F("ADDR", httpAddr))
	return serveUntilDone(ctx, func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
}

// serveUntilDone runs serve in the background and returns when it stops
// or ctx is cancelled.
func serveUntilDone(ctx context.Context, serve func() error) error {
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- serve()
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func shutdownWithTimeout(shutdown func(context.Context) error, log *logger.Logger, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.F("SERVER", name), logger.Error(err))
	}
}

// open initializes the booking service for a one-shot CLI command. On
// failure whatever was already opened is released.
func (a *App) open() (*orchestrator.Orchestrator, error) {
	if err := a.initialize(); err != nil {
		a.close()
		return nil, err
	}
	return a.booking.Orchestrator(), nil
}

// printDecision writes the formatted decision. Policy rejections are
// normal answers; invalid input and backend failures fail the command.
func (a *App) printDecision(cmd *cobra.Command, op booking.Operation, summary string, d booking.Decision) error {
	fmt.Fprintln(cmd.OutOrStdout(), a.booking.Formatter().Decision(op, summary, d))
	switch d.Outcome {
	case booking.InvalidFormat, booking.Failed, booking.NotInitialized:
		return fmt.Errorf("%s %s", op, d.Outcome)
	}
	return nil
}

func (a *App) bookCmd() *cobra.Command {
	var (
		req       models.BookingRequest
		attendees string
		notes     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		Example: `  sdr-agent book --summary "Ana Souza - Ap 2 quartos" --start 2025-03-10T14:00:00
  sdr-agent book --summary "Visita" --start 15:30 --attendees ana@example.com
  sdr-agent book --summary "Visita" --start 15:30 --note budget="R$ 450 mil" --note source=site`,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			req.Attendees = handler.EmailList(attendees)
			req.Extra = handler.NoteMap(notes)
			d := orch.Create(a.ctx, req)
			return a.printDecision(cmd, booking.OpCreate, req.Summary, d)
		},
	}

	cmd.Flags().StringVar(&req.Summary, "summary", "", "Event title")
	cmd.Flags().StringVar(&req.Start, "start", "", "Start as YYYY-MM-DDTHH:MM:SS or HH:MM")
	cmd.Flags().StringVar(&req.End, "end", "", "End in the same formats (default: one hour after start)")
	cmd.Flags().StringVar(&attendees, "attendees", "", "Comma-separated attendee emails")
	cmd.Flags().StringVar(&req.Location, "location", "", "Appointment location")
	cmd.Flags().StringVar(&req.Description, "description", "", "Notes about the lead")
	cmd.Flags().StringToStringVar(&notes, "note", nil, "Lead detail shown when confirming, as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("summary")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func (a *App) listCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List upcoming events",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			events, err := orch.ListUpcoming(a.ctx, maxResults)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.booking.Formatter().Events("Upcoming events", events))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", orchestrator.DefaultListMax, "Maximum number of events")
	return cmd
}

func (a *App) searchCmd() *cobra.Command {
	var maxResults int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search upcoming events by text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			events, err := orch.Search(a.ctx, args[0], maxResults)
			if err != nil {
				return err
			}
			heading := fmt.Sprintf("Events matching %q", args[0])
			fmt.Fprintln(cmd.OutOrStdout(), a.booking.Formatter().Events(heading, events))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", orchestrator.DefaultListMax, "Maximum number of events")
	return cmd
}

func (a *App) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <event-id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			ev, err := orch.Get(a.ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.booking.Formatter().Event(ev))
			return nil
		},
	}
}

func (a *App) updateCmd() *cobra.Command {
	var summary, start, end, attendees, location, description string

	cmd := &cobra.Command{
		Use:   "update <event-id>",
		Short: "Change fields of an event; omitted flags keep their values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch models.EventPatch
			for name, target := range map[string]struct {
				value string
				field **string
			}{
				"summary":     {summary, &patch.Summary},
				"start":       {start, &patch.Start},
				"end":         {end, &patch.End},
				"location":    {location, &patch.Location},
				"description": {description, &patch.Description},
			} {
				if flags.Changed(name) {
					*target.field = models.String(target.value)
				}
			}
			if flags.Changed("attendees") {
				patch.Attendees = models.Strings(handler.EmailList(attendees))
			}

			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			d := orch.Update(a.ctx, args[0], patch)
			return a.printDecision(cmd, booking.OpUpdate, summary, d)
		},
	}

	cmd.Flags().StringVar(&summary, "summary", "", "New title")
	cmd.Flags().StringVar(&start, "start", "", "New start; HH:MM keeps the current date")
	cmd.Flags().StringVar(&end, "end", "", "New end; HH:MM uses the start date")
	cmd.Flags().StringVar(&attendees, "attendees", "", "Comma-separated emails; replaces the list")
	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().StringVar(&description, "description", "", "New description")

	return cmd
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <event-id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.open()
			if err != nil {
				return err
			}
			defer a.close()

			d := orch.Delete(a.ctx, args[0])
			return a.printDecision(cmd, booking.OpDelete, "", d)
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
