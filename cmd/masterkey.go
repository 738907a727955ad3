package cmd

import (
	"errors"
	"fmt"
	"os"

	oskeyring "github.com/zalando/go-keyring"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
)

const (
	keyringService = "keyproxy"
	keyringUser    = "master-key"
)

var errNoMasterKey = errors.New("master key not configured")

// loadMasterKey reads the master key from the configured source. The gateway
// refuses to start when this fails.
func loadMasterKey(cfg *config.Config) (crypto.MasterKey, error) {
	var raw string
	switch cfg.Gateway.MasterKeySource {
	case config.MasterKeyFromKeyring:
		v, err := oskeyring.Get(keyringService, keyringUser)
		if errors.Is(err, oskeyring.ErrNotFound) {
			return crypto.MasterKey{}, fmt.Errorf("%w: no %s/%s entry in the OS keyring", errNoMasterKey, keyringService, keyringUser)
		}
		if err != nil {
			return crypto.MasterKey{}, fmt.Errorf("read OS keyring: %w", err)
		}
		raw = v
	default:
		raw = os.Getenv(cfg.Gateway.MasterKeyEnv)
		if raw == "" {
			return crypto.MasterKey{}, fmt.Errorf("%w: set %s", errNoMasterKey, cfg.Gateway.MasterKeyEnv)
		}
	}
	return crypto.ParseMasterKey(raw)
}

// saveMasterKeyToKeyring stores a hex master key in the OS keyring.
func saveMasterKeyToKeyring(hexKey string) error {
	return oskeyring.Set(keyringService, keyringUser, hexKey)
}
