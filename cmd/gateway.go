package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	kphttp "github.com/nextlevelbuilder/keyproxy/internal/http"
	"github.com/nextlevelbuilder/keyproxy/internal/keyring"
	"github.com/nextlevelbuilder/keyproxy/internal/upstream"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway (default when no command is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(cmd.Context())
		},
	}
}

func runGateway(ctx context.Context) error {
	cfgPath := resolveConfigPath()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cipher, err := loadCipher(cfg)
	if err != nil {
		return fmt.Errorf("refusing to start: %w", err)
	}

	stores, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer stores.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cursor, closeCursor := newCursor(ctx, cfg)
	defer closeCursor()

	vendors := upstream.NewRegistry(cfg.VendorTable())
	proxy := kphttp.NewProxyHandler(
		stores.Bots,
		keyring.New(stores.Keys, cipher, cursor),
		vendors,
		upstream.NewHTTPForwarder(nil, slog.Default()),
	)
	proxy.SetMaxBodyBytes(cfg.Gateway.MaxBodyBytes)
	mux := kphttp.NewMux(proxy)

	if shutdownOTel := initOTelExporter(ctx, cfg); shutdownOTel != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownOTel(sctx)
		}()
	}

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		w, err := config.NewWatcher(cfgPath)
		if err != nil {
			slog.Warn("config.watcher_unavailable", "error", err)
		} else {
			w.OnChange(func(c *config.Config) {
				vendors.Replace(c.VendorTable())
				slog.Info("gateway.vendors_reloaded", "vendors", vendors.Names())
			})
			if err := w.Start(); err != nil {
				slog.Warn("config.watcher_unavailable", "error", err)
			} else {
				defer w.Stop()
			}
		}
	}

	if stopTS := initTailscale(ctx, cfg, mux); stopTS != nil {
		defer stopTS()
	}

	srv := &http.Server{
		Addr:              cfg.Gateway.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("gateway.listening",
			"addr", cfg.Gateway.Listen,
			"mode", cfg.Database.Mode,
			"vendors", vendors.Names(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("gateway.shutting_down")
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

// newCursor returns the shared Redis rotation cursor when redis.addr is set,
// otherwise nil (the keyring then uses an in-process cursor). An unreachable
// Redis does not block startup; the cursor falls back per call.
func newCursor(ctx context.Context, cfg *config.Config) (keyring.Cursor, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		slog.Warn("redis.unreachable", "addr", cfg.Redis.Addr, "error", err)
	} else {
		slog.Info("redis.connected", "addr", cfg.Redis.Addr)
	}
	return keyring.NewRedisCursor(client), func() { client.Close() }
}
