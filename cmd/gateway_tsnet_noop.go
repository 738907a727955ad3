//go:build !tsnet

package cmd

import (
	"context"
	"net/http"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

// initTailscale without -tags tsnet: tailscale.* config is ignored.
func initTailscale(context.Context, *config.Config, http.Handler) func() {
	return nil
}
