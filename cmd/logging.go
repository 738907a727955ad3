package cmd

import (
	"log/slog"
	"os"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/logscrub"
)

// setupLogging installs the default slog logger from the log config.
// Records pass through logscrub so credentials never reach the sink.
func setupLogging(cfg *config.Config) {
	level, _ := config.ParseLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(logscrub.NewHandler(h)))
}
