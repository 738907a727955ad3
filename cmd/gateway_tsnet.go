//go:build tsnet

package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"tailscale.com/tsnet"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

// initTailscale exposes the gateway on the tailnet next to the main listener,
// so bots on the tailnet can reach it without a public port.
// Only compiled with -tags tsnet. Returns a stop func, or nil when disabled.
func initTailscale(ctx context.Context, cfg *config.Config, handler http.Handler) func() {
	tc := cfg.Tailscale
	if tc.Hostname == "" {
		slog.Debug("tailscale.disabled", "hint", "set tailscale.hostname or KEYPROXY_TSNET_HOSTNAME")
		return nil
	}

	srv := &tsnet.Server{
		Hostname:  tc.Hostname,
		AuthKey:   tc.AuthKey,
		Ephemeral: tc.Ephemeral,
		Dir:       tc.StateDir,
	}

	upCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	status, err := srv.Up(upCtx)
	cancel()
	if err != nil {
		slog.Warn("tailscale.up_failed", "hostname", tc.Hostname, "error", err)
		srv.Close()
		return nil
	}

	var ln net.Listener
	addr := ":80"
	if tc.EnableTLS {
		addr = ":443"
		ln, err = srv.ListenTLS("tcp", addr)
	} else {
		ln, err = srv.Listen("tcp", addr)
	}
	if err != nil {
		slog.Warn("tailscale.listen_failed", "error", err)
		srv.Close()
		return nil
	}

	slog.Info("tailscale.listening",
		"hostname", tc.Hostname,
		"addr", addr,
		"tls", tc.EnableTLS,
		"ips", status.TailscaleIPs,
	)

	httpSrv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("tailscale.serve_error", "error", err)
		}
	}()

	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(sctx)
		srv.Close()
		slog.Info("tailscale.stopped")
	}
}
