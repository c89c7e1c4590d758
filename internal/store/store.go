// Package store provides the persistent key-value backends that hold remembered credentials and favorites.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/PizzaHomicide/kiri/internal/config"
	"github.com/PizzaHomicide/kiri/internal/domain"
	"github.com/PizzaHomicide/kiri/internal/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

// New builds the key-value store selected by the config
func New(ctx context.Context, cfg config.StoreConfig) (domain.KeyValueStore, error) {
	log.Info("Opening key-value store", "backend", cfg.Backend)

	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(afero.NewOsFs(), cfg.Path)
	case "sqlite":
		return OpenSQLite(ctx, filepath.Join(cfg.Path, "kiri.db"))
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return NewRedis(ctx, client, cfg.RedisPrefix)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
