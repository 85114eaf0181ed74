package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Akshayfx/trader-manager-sub000/internal/domain"
	"github.com/Akshayfx/trader-manager-sub000/internal/infrastructure/logger"
	"github.com/Akshayfx/trader-manager-sub000/internal/infrastructure/storage"
	"github.com/Akshayfx/trader-manager-sub000/internal/usecase"
	"github.com/Akshayfx/trader-manager-sub000/internal/web"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Liveness struct {
		TimeoutMs       int `yaml:"timeout_ms"`
		SweepIntervalMs int `yaml:"sweep_interval_ms"`
	} `yaml:"liveness"`
	Risk struct {
		DailyLossPercent float64 `yaml:"daily_loss_percent"`
		DailyLossLimit   float64 `yaml:"daily_loss_limit"`
		NewsLeadMinutes  int     `yaml:"news_lead_minutes"`
		PreventNewTrades *bool   `yaml:"prevent_new_trades"`
		CloseOpenTrades  *bool   `yaml:"close_open_trades"`
		MinRR            float64 `yaml:"min_rr"`
	} `yaml:"risk"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	cfg, err := loadConfig("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = "relay.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	registry := usecase.NewRegistry(log)
	router := usecase.NewRouter(registry, log)
	calc := usecase.NewRiskCalculator()
	automation := usecase.NewAutomationEngine(calc, log)
	compliance := usecase.NewComplianceMonitor(log)
	service := usecase.NewTradeService(registry, router, calc, automation, compliance, store, log)

	// Operator-level risk defaults apply to tenants with no stored
	// configuration; per-tenant settings loaded below take precedence.
	riskDefaults := domain.DefaultComplianceConfig(domain.DefaultTenantKey)
	if cfg.Risk.DailyLossPercent > 0 {
		riskDefaults.DailyLossPercent = cfg.Risk.DailyLossPercent
	}
	if cfg.Risk.DailyLossLimit > 0 {
		riskDefaults.DailyLossLimit = cfg.Risk.DailyLossLimit
	}
	if cfg.Risk.NewsLeadMinutes > 0 {
		riskDefaults.NewsLeadMinutes = float64(cfg.Risk.NewsLeadMinutes)
	}
	if cfg.Risk.PreventNewTrades != nil {
		riskDefaults.PreventNewTrades = *cfg.Risk.PreventNewTrades
	}
	if cfg.Risk.CloseOpenTrades != nil {
		riskDefaults.CloseOpenTrades = *cfg.Risk.CloseOpenTrades
	}
	compliance.SetDefaults(riskDefaults)

	if cfg.Risk.MinRR > 0 {
		autoDefaults := domain.DefaultAutomationSettings(domain.DefaultTenantKey)
		autoDefaults.TargetDefault.MinRR = cfg.Risk.MinRR
		service.SetAutomationDefaults(autoDefaults)
	}

	if err := service.LoadSettings(context.Background()); err != nil {
		log.Error("Failed to load persisted settings", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Closed once on shutdown, so every background loop sees it; the
	// signal itself is consumed by the final receive only.
	done := make(chan struct{})

	// Liveness sweep: connections silent past the timeout are treated as
	// disconnected.
	go func() {
		timeout := time.Duration(cfg.Liveness.TimeoutMs) * time.Millisecond
		if timeout == 0 {
			timeout = 90 * time.Second
		}
		interval := time.Duration(cfg.Liveness.SweepIntervalMs) * time.Millisecond
		if interval == 0 {
			interval = 15 * time.Second
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if evicted := registry.Sweep(timeout); len(evicted) > 0 {
					service.NotifyEvicted(evicted)
				}
			case <-done:
				return
			}
		}
	}()

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, registry, router, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-stop
	close(done)

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
