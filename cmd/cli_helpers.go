package cmd

import (
	"fmt"
	"os"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
	"github.com/nextlevelbuilder/keyproxy/internal/store/pg"
	"github.com/nextlevelbuilder/keyproxy/internal/store/sqlite"
)

// loadConfig loads the config at the resolved path and installs logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

// isManagedMode returns true if the config specifies managed (Postgres) mode.
func isManagedMode(cfg *config.Config) bool {
	return cfg.StoreConfig().IsManaged()
}

// openStores opens the credential store for the configured mode.
func openStores(cfg *config.Config) (*store.Stores, error) {
	sc := cfg.StoreConfig()
	if sc.IsManaged() {
		return pg.NewStores(sc)
	}
	return sqlite.NewStores(sc)
}

// loadCipher resolves the master key and builds the vendor-key cipher.
func loadCipher(cfg *config.Config) (*crypto.Cipher, error) {
	mk, err := loadMasterKey(cfg)
	if err != nil {
		return nil, err
	}
	return crypto.NewCipher(mk)
}

// exitOnError prints err and exits non-zero. Used by Run handlers.
func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}
