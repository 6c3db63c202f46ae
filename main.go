package main

import (
	"context"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jotbill/jotbill-server/src/config"
	"github.com/jotbill/jotbill-server/src/database"
	"github.com/jotbill/jotbill-server/src/handlers"
	"github.com/jotbill/jotbill-server/src/logger"
	"github.com/jotbill/jotbill-server/src/models"
	"github.com/jotbill/jotbill-server/src/parsers/bill"
	"github.com/jotbill/jotbill-server/src/services"
	"github.com/jotbill/jotbill-server/src/store"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// seedStorageConfigFromEnv writes the WebDAV target from environment
// variables on first run, so a container deployment can preconfigure
// sync without touching the API.
func seedStorageConfigFromEnv(ctx context.Context, st *store.Store) {
	if config.Cfg.SyncHost == "" || st.StorageConfig(ctx) != nil {
		return
	}
	cfg := models.StorageConfig{
		Type:     "NAS",
		Status:   "DISCONNECTED",
		Host:     config.Cfg.SyncHost,
		Path:     config.Cfg.SyncPath,
		Username: config.Cfg.SyncUsername,
		Password: config.Cfg.SyncPassword,
	}
	if err := st.SaveStorageConfig(ctx, cfg); err != nil {
		logger.L.Warn("Could not seed storage config from environment", "error", err)
	}
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("JotBill server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	if err := database.InitDB(config.Cfg.DatabasePath); err != nil {
		logger.L.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	st := store.NewLive()
	ctx := context.Background()
	if err := st.SeedIfNeeded(ctx); err != nil {
		logger.L.Error("Failed to seed default data", "error", err)
		os.Exit(1)
	}
	seedStorageConfigFromEnv(ctx, st)

	ratesService := services.NewRatesService(st, config.Cfg.RatesURL, config.Cfg.RatesBaseCurrency, config.Cfg.RatesTimeout)
	ledgerService := services.NewLedgerService(st, ratesService)
	backupService := services.NewBackupService(st)
	parser := services.NewParser(config.Cfg.AIProvider, config.Cfg.AIAPIKey, config.Cfg.AIModel, config.Cfg.AIBaseURL, config.Cfg.AITimeout)
	billParser := bill.NewParser()

	txHandler := handlers.NewTransactionHandler(ledgerService)
	accountHandler := handlers.NewAccountHandler(st, ledgerService)
	ledgerHandler := handlers.NewLedgerHandler(st)
	categoryHandler := handlers.NewCategoryHandler(st)
	settingsHandler := handlers.NewSettingsHandler(st)
	backupHandler := handlers.NewBackupHandler(backupService)
	syncHandler := handlers.NewSyncHandler(st, backupService)
	importHandler := handlers.NewImportHandler(billParser, ledgerService)
	aiHandler := handlers.NewAIHandler(parser, ledgerService)
	ratesHandler := handlers.NewRatesHandler(ratesService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "JotBill server is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/transactions", txHandler.HandleList)
		r.Post("/transactions", txHandler.HandleCreate)
		r.Put("/transactions/{id}", txHandler.HandleUpdate)
		r.Delete("/transactions/{id}", txHandler.HandleDelete)
		r.Post("/transactions/batch-delete", txHandler.HandleBatchDelete)
		r.Post("/transactions/{id}/early-repay", txHandler.HandleEarlyRepay)
		r.Post("/transactions/import-csv", importHandler.HandleImportCSV)

		r.Get("/accounts", accountHandler.HandleList)
		r.Post("/accounts", accountHandler.HandleCreate)
		r.Put("/accounts/{id}", accountHandler.HandleUpdate)
		r.Delete("/accounts/{id}", accountHandler.HandleDelete)
		r.Get("/summary/net-worth", accountHandler.HandleNetWorth)

		r.Get("/ledgers", ledgerHandler.HandleList)
		r.Post("/ledgers", ledgerHandler.HandleCreate)
		r.Put("/ledgers/{id}", ledgerHandler.HandleUpdate)
		r.Delete("/ledgers/{id}", ledgerHandler.HandleDelete)

		r.Get("/categories", categoryHandler.HandleList)
		r.Put("/categories", categoryHandler.HandleReplace)

		r.Get("/settings/profile", settingsHandler.HandleGetProfile)
		r.Put("/settings/profile", settingsHandler.HandleSaveProfile)
		r.Get("/settings/preferences", settingsHandler.HandleGetPreferences)
		r.Put("/settings/preferences", settingsHandler.HandleSavePreferences)
		r.Get("/settings/storage", settingsHandler.HandleGetStorageConfig)
		r.Put("/settings/storage", settingsHandler.HandleSaveStorageConfig)
		r.Post("/settings/reset", settingsHandler.HandleReset)

		r.Get("/backup/export", backupHandler.HandleExport)
		r.Post("/backup/import", backupHandler.HandleImport)

		r.Post("/sync/test", syncHandler.HandleTest)
		r.Post("/sync/upload", syncHandler.HandleUpload)
		r.Post("/sync/restore", syncHandler.HandleRestore)

		r.Post("/ai/parse", aiHandler.HandleParse)
		r.Post("/ai/confirm", aiHandler.HandleConfirm)

		r.Get("/rates", ratesHandler.HandleGet)
		r.Post("/rates/refresh", ratesHandler.HandleRefresh)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
