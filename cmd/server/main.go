package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mckayc/task-donegeon-sub005/internal/bot"
	"github.com/mckayc/task-donegeon-sub005/internal/config"
	"github.com/mckayc/task-donegeon-sub005/internal/core"
	"github.com/mckayc/task-donegeon-sub005/internal/i18n"
	"github.com/mckayc/task-donegeon-sub005/internal/store"
	"github.com/mckayc/task-donegeon-sub005/internal/web"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = "dev-secret-change-in-production"
		log.Println("Warning: Using default session secret. Set SESSION_SECRET in production!")
	}

	log.Println("Initializing database...")
	db, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// An explicit catalog file overrides the built-in ranks and trophies.
	var catalog *core.CatalogCache
	if cfg.CatalogPath != "" {
		catalog, err = core.NewCatalogCache(cfg.CatalogPath)
		if err != nil {
			log.Fatalf("Failed to load catalog %s: %v", cfg.CatalogPath, err)
		}
	}

	service, err := core.NewService(db, catalog, core.Policy{
		DisableSelfApproval: cfg.DisableSelfApproval,
		GlobalGracePeriod:   cfg.GlobalGracePeriod,
		HistoryCacheSize:    cfg.HistoryCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize service: %v", err)
	}

	translator, err := i18n.NewTranslator(cfg.LocalesDir, cfg.DefaultLocale)
	if err != nil {
		log.Printf("Warning: failed to load locales from %s: %v", cfg.LocalesDir, err)
		translator = i18n.NewFallback(cfg.DefaultLocale)
	}

	server := web.NewServer(service, cfg.SessionSecret, cfg.PublicURL)
	router := server.Router()

	// Background workers stop when this context is cancelled.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var notifier core.Notifier
	if cfg.TelegramBotToken != "" {
		telegramBot, err := bot.NewBot(cfg.TelegramBotToken, service, cfg.SessionSecret, cfg.PublicURL, translator)
		if err != nil {
			log.Printf("Warning: Failed to initialize Telegram bot: %v", err)
			log.Println("Continuing without Telegram bot...")
		} else {
			log.Println("Telegram bot initialized successfully")
			notifier = telegramBot
			service.SetNotifier(telegramBot)
			go telegramBot.Start()
			defer telegramBot.Stop()
		}
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, Telegram bot will not be started")
	}

	go service.StartRotationWorker(workerCtx, cfg.RotationInterval)
	go service.StartSetbackWorker(workerCtx, cfg.SetbackInterval, notifier)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}
	log.Println("Shutdown complete")
}
