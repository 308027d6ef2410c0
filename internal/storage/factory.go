package storage

import (
	"fmt"

	"github.com/scrypster/sceneline/internal/config"
	"github.com/scrypster/sceneline/internal/resolve"
	"github.com/scrypster/sceneline/internal/storage/jsonfile"
	"github.com/scrypster/sceneline/internal/storage/postgres"
	"github.com/scrypster/sceneline/internal/storage/sqlite"
)

// OpenStateStore constructs the state store backend named by the
// configuration.
func OpenStateStore(cfg *config.Config) (StateStore, error) {
	switch cfg.Storage.Engine {
	case "", "jsonfile", "json":
		return jsonfile.NewStateStore(cfg.Storage.StatePath), nil
	case "sqlite":
		return sqlite.NewStateStore(cfg.Storage.SQLitePath)
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage: postgres engine requires SCENELINE_POSTGRES_DSN")
		}
		return postgres.NewStateStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("storage: unknown storage engine %q", cfg.Storage.Engine)
	}
}

// LoadProfiles loads the identity profile set from the configured identities
// file. Missing or corrupt identity data yields empty buckets.
func LoadProfiles(cfg *config.Config) *resolve.ProfileSet {
	return jsonfile.NewProfileLoader(cfg.Storage.IdentitiesPath).Load()
}
