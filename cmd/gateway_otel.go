//go:build otel

package cmd

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/tracing/otelexport"
)

// initOTelExporter exports proxy spans over OTLP when telemetry is enabled.
// Built only with -tags otel. Returns nil when export is off.
func initOTelExporter(ctx context.Context, cfg *config.Config) func(context.Context) error {
	tc := cfg.Telemetry
	if !tc.Enabled || tc.Endpoint == "" {
		slog.Debug("otel.disabled", "hint", "set telemetry.enabled and telemetry.endpoint")
		return nil
	}

	exp, err := otelexport.New(ctx, otelexport.Config{
		Endpoint:       tc.Endpoint,
		Protocol:       tc.Protocol,
		Insecure:       tc.Insecure,
		ServiceName:    tc.ServiceName,
		ServiceVersion: Version,
		Headers:        tc.Headers,
		SampleRatio:    tc.SampleRatio,
	})
	if err != nil {
		slog.Warn("otel.exporter_failed", "error", err)
		return nil
	}

	exp.Install()
	slog.Info("otel.exporter_enabled", "endpoint", tc.Endpoint, "protocol", tc.Protocol, "sample_ratio", tc.SampleRatio)
	return exp.Shutdown
}
