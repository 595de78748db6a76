package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/account"
	"github.com/gmsas95/mediremind/internal/adherence"
	"github.com/gmsas95/mediremind/internal/api"
	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/cron"
	"github.com/gmsas95/mediremind/internal/medicine"
	"github.com/gmsas95/mediremind/internal/notify"
	"github.com/gmsas95/mediremind/internal/reminder"
	"github.com/gmsas95/mediremind/internal/schedule"
	"github.com/gmsas95/mediremind/internal/store"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	dataDir    = flag.String("data", "", "Path to data directory")
	version    = "dev"
)

func main() {
	flag.Parse()

	if len(flag.Args()) > 0 {
		switch flag.Args()[0] {
		case "version":
			fmt.Printf("MediRemind version %s\n", version)
			return
		case "help":
			flag.Usage()
			return
		}
	}

	// Initialize logger
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting MediRemind", zap.String("version", version))

	// Load configuration
	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Open storage
	db, err := store.Open(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	hub := store.NewHub()

	accounts, err := account.NewStore(db, hub)
	if err != nil {
		logger.Fatal("Failed to initialize account store", zap.Error(err))
	}

	medicines, err := medicine.NewStore(db, hub)
	if err != nil {
		logger.Fatal("Failed to initialize medicine store", zap.Error(err))
	}

	ledger, err := adherence.NewLedger(db, hub)
	if err != nil {
		logger.Fatal("Failed to initialize adherence ledger", zap.Error(err))
	}

	cooldowns, err := notify.NewCooldownStore(db, hub)
	if err != nil {
		logger.Fatal("Failed to initialize cooldown store", zap.Error(err))
	}

	// Build the delivery chain: SMS first, Telegram as fallback when enabled
	transports := []notify.Transport{notify.NewFast2SMS(cfg.Notify, logger)}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram, logger)
		if err != nil {
			logger.Error("Telegram transport unavailable", zap.Error(err))
		} else {
			transports = append(transports, tg)
		}
	}
	chain := notify.NewChain(logger, transports...)

	dispatcher := notify.NewDispatcher(chain, cooldowns, accounts, cfg, logger)

	clock := schedule.System()

	// Reminder engine
	engine := reminder.NewEngine(cfg, medicines, ledger, dispatcher, hub, clock, logger)
	if err := engine.Start(); err != nil {
		logger.Fatal("Failed to start reminder engine", zap.Error(err))
	}

	// Housekeeping
	janitor, err := cron.NewJanitor(cooldowns, logger)
	if err != nil {
		logger.Fatal("Failed to initialize janitor", zap.Error(err))
	}
	janitor.Start()

	// API server
	matcher := account.NewEuclideanMatcher(accounts, cfg.Security.FaceThreshold)
	server := api.New(cfg, accounts, medicines, ledger, engine, dispatcher, matcher, hub, clock, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("address", cfg.Server.Address),
		zap.Int("port", cfg.Server.Port),
		zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port)),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	engine.Stop()
	janitor.Stop()

	if err := server.Shutdown(); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
}
