//go:build !otel

package cmd

import (
	"context"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

// initOTelExporter without -tags otel: spans stay on the no-op provider.
func initOTelExporter(context.Context, *config.Config) func(context.Context) error {
	return nil
}
