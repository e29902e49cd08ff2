package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/opd-frontdesk/internal/clinic"
	"github.com/hackgods/opd-frontdesk/internal/config"
)

// Store is the opened record store plus how to release it.
type Store struct {
	clinic.Repository
	// JSON is set when the JSON files back the store; only they support file backups.
	JSON  *clinic.JSONRepository
	close func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore opens the record store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := ConnectPostgres(connectCtx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		repo := clinic.NewPgRepository(pool)
		if err := repo.EnsureSchema(connectCtx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return &Store{Repository: repo, close: pool.Close}, nil

	default:
		repo, err := clinic.OpenJSONRepository(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		log.Info().Str("dir", repo.Dir()).Msg("using json record store")
		return &Store{Repository: repo, JSON: repo}, nil
	}
}
