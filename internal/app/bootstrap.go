package app

import (
	"log/slog"
	"os"

	"ibtrade_go/internal/infra"
	"ibtrade_go/internal/infra/storage"
	"ibtrade_go/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.OrderStore
	Service *service.TradeService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB).
// configPath may be empty; defaults plus environment overrides apply.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewOrderStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("order store ready", slog.String("db_path", cfg.Storage.DBPath))

	// 4. Facade
	b.Service = service.NewTradeService(cfg, store)

	return nil
}

func loadConfig(configPath string) (*infra.Config, error) {
	if configPath != "" {
		return infra.LoadConfig(configPath)
	}

	// Optional default location; fall back to built-in defaults when
	// the file does not exist.
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return infra.LoadConfig("configs/config.yaml")
	}
	return infra.DefaultConfig(), nil
}
