// RECO check-in server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"reco-chatbot/internal/config"
	"reco-chatbot/internal/core"
	"reco-chatbot/internal/db"
	httpserver "reco-chatbot/internal/http"
	"reco-chatbot/internal/llm"
	"reco-chatbot/internal/report"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	path := os.Getenv("RECO_CONFIG")
	if path == "" {
		path = "reco.yml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		slog.Error("Failed to initialize database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	slog.Info("Database connected", "driver", cfg.Database.Driver)

	repo := db.NewRepository(conn, cfg.Database.Driver)

	// Postgres fans summary notifications out across instances; SQLite
	// deployments are single-process.
	var (
		sink     core.ReportSink
		listener httpserver.Listener
	)
	if cfg.Database.Driver == db.DriverPostgres {
		n := db.NewNotifier(conn, cfg.Database.DSN, cfg.Database.NotifyChannel, logger)
		defer n.Close()
		sink, listener = n, n
	} else {
		n := db.NewLocalNotifier()
		sink, listener = n, n
	}
	if cfg.Report.Dir != "" {
		html, err := report.NewHTMLSink(cfg.Report.Dir, logger)
		if err != nil {
			slog.Error("Failed to initialize reports", "error", err)
			os.Exit(1)
		}
		sink = report.Fanout{sink, html}
	}

	chat := llm.NewOpenAIClient("", cfg.LLM.ChatModel, cfg.LLM.ChatTemperature)
	detector := core.NewEndDetector(llm.NewOpenAIClient("", cfg.LLM.DetectorModel, 0), logger)
	summarizer := core.NewSummarizer(llm.NewOpenAIClient("", cfg.LLM.SummaryModel, 0), logger)

	checkins := core.NewCheckinService(repo, repo, chat, detector, summarizer,
		core.WithMessageCap(cfg.Session.MessageCap),
		core.WithReportSink(sink),
		core.WithCheckinLogger(logger),
	)

	handler := httpserver.NewServer(checkins,
		httpserver.WithListener(listener),
		httpserver.WithLogger(logger),
		httpserver.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)

	// SSE streams stay open until a summary arrives, so there is no
	// WriteTimeout.
	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr, "message_cap", cfg.Session.MessageCap)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
