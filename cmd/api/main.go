package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/genai"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dnovriandi/receipt-audit/internal/api/handlers"
	"github.com/dnovriandi/receipt-audit/internal/api/middleware"
	"github.com/dnovriandi/receipt-audit/internal/config"
	"github.com/dnovriandi/receipt-audit/internal/logger"
	"github.com/dnovriandi/receipt-audit/internal/pipeline"
	"github.com/dnovriandi/receipt-audit/internal/store"
)

func main() {
	cfg := config.Load()

	// Flags override the environment for local runs.
	var (
		port = flag.String("port", cfg.Port, "HTTP server port")
		dsn  = flag.String("dsn", cfg.DatabaseDSN, "Postgres DSN (or set DATABASE_DSN env)")
	)
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	db, err := gorm.Open(postgres.Open(*dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	st := store.New(db)
	if err := st.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate schema")
	}

	// Clients are constructed once here and passed down; nothing looks them
	// up via ambient state.
	var extractor pipeline.Extractor
	if cfg.GeminiAPIKey != "" {
		genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      cfg.GeminiAPIKey,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create genai client")
		}
		extractor = pipeline.NewGeminiExtractor(genaiClient, cfg.GeminiModel)
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - uploads will use default fields")
	}

	var pinner pipeline.Pinner
	if cfg.PinataJWT != "" {
		pinner = pipeline.NewPinataPinner(cfg.PinataBaseURL, cfg.PinataJWT)
	} else {
		log.Warn().Msg("No PINATA_JWT configured - uploads will record the pin sentinel")
	}

	ledger := pipeline.NewMockLedger(cfg.LedgerNetwork)
	pipe := pipeline.New(extractor, pinner, ledger, st, log)

	receiptsHandler := handlers.NewReceiptsHandler(st, pipe, cfg.GatewayBaseURL, cfg.ExplorerBaseURL, log)
	statsHandler := handlers.NewStatsHandler(st, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			receiptsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/receipts/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/receipts/")
		switch {
		case rest == "upload" && r.Method == http.MethodPost:
			receiptsHandler.Upload(w, r)
		case rest != "" && r.Method == http.MethodGet:
			receiptsHandler.Detail(w, r, rest)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.Stats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
