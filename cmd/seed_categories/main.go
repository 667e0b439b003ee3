package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"blogspot-api/internal/config"
	"blogspot-api/internal/db"
	"blogspot-api/internal/logger"
	"blogspot-api/internal/repository"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		zl.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		zl.Fatal("db migrate", zap.Error(err))
	}

	categories := buildCategories(time.Now())
	repo := repository.NewPgCategoryRepository(pool)
	if err := repo.ReplaceAll(ctx, categories); err != nil {
		zl.Fatal("seed categories", zap.Error(err))
	}
	zl.Info("categories seeded", zap.Int("count", len(categories)))
}
