// Command seed bulk-imports products from a JSON file into the catalog
// service through the storefront client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/storefront/pkg/auth"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/storeclient"
)

type config struct {
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	CatalogURL string `env:"CATALOG_URL" envDefault:"http://localhost:8001"`
	SeedFile   string `env:"SEED_FILE,required"`
	BatchSize  int    `env:"SEED_BATCH_SIZE" envDefault:"100"`

	// SeedToken is used as-is. Without it an admin token is minted from JWTSecret.
	SeedToken string `env:"SEED_TOKEN"`
	JWTSecret string `env:"JWT_SECRET"`
}

func (c *config) Validate() error {
	if c.CatalogURL == "" {
		return errors.New("CATALOG_URL is required")
	}
	if c.SeedToken == "" && c.JWTSecret == "" {
		return errors.New("SEED_TOKEN or JWT_SECRET is required")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("SEED_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	return nil
}

func main() {
	var cfg config
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("catalog-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := run(ctx, cfg, log)
	if err != nil {
		log.Error("seed failed", slog.Int("inserted", n), slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("seed complete", slog.Int("inserted", n))
}

// run inserts every product in cfg.SeedFile in batches and returns how many
// were inserted before the first failure.
func run(ctx context.Context, cfg config, log *slog.Logger) (int, error) {
	products, err := readProducts(cfg.SeedFile)
	if err != nil {
		return 0, err
	}

	token, err := adminToken(cfg)
	if err != nil {
		return 0, err
	}
	client := storeclient.New(storeclient.Config{
		CatalogURL: cfg.CatalogURL,
		Timeout:    30 * time.Second,
	}, storeclient.NewMemorySessionStore(storeclient.Session{Token: token}), log)

	inserted := 0
	for start := 0; start < len(products); start += cfg.BatchSize {
		end := min(start+cfg.BatchSize, len(products))
		res, err := client.BulkInsertProducts(ctx, products[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert products %d-%d: %w", start, end-1, err)
		}
		inserted += len(res.Data)
		log.Info(res.Message, slog.Int("batch_start", start))
	}
	return inserted, nil
}

func readProducts(path string) ([]storeclient.ProductInput, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var products []storeclient.ProductInput
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("seed file %s holds no products", path)
	}
	return products, nil
}

func adminToken(cfg config) (string, error) {
	if cfg.SeedToken != "" {
		return cfg.SeedToken, nil
	}
	m := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute, 0)
	token, err := m.GenerateAccessToken(auth.Identity{
		UserID:  "seed-admin",
		Name:    "Seed",
		IsAdmin: true,
	})
	if err != nil {
		return "", fmt.Errorf("mint admin token: %w", err)
	}
	return token, nil
}
