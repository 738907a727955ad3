package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, master key, database and secrets root",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("keyproxy doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	if _, err := loadCipher(cfg); err != nil {
		fmt.Printf("  Master key: MISSING (%s)\n", err)
	} else {
		fmt.Printf("  Master key: OK (source: %s)\n", cfg.Gateway.MasterKeySource)
	}

	fmt.Println()
	fmt.Printf("  Database: %s\n", cfg.Database.Mode)
	checkKeyPool(cfg)

	fmt.Println()
	checkSecretsRoot(cfg.Secrets.Root)

	if cfg.Redis.Addr != "" {
		fmt.Println()
		checkRedis(cfg)
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkKeyPool(cfg *config.Config) {
	stores, err := openStores(cfg)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Connect:", err)
		return
	}
	defer stores.Close()
	fmt.Printf("    %-12s OK\n", "Connect:")

	ctx := context.Background()
	if bots, err := stores.Bots.ListBots(ctx); err == nil {
		fmt.Printf("    %-12s %d\n", "Bots:", len(bots))
	}

	keys, err := stores.Keys.ListKeys(ctx)
	if err != nil {
		fmt.Printf("    %-12s %s\n", "Keys:", err)
		return
	}
	counts := make(map[string]int)
	for _, k := range keys {
		counts[k.Vendor]++
	}

	fmt.Println("  Vendors:")
	table := cfg.VendorTable()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if n := counts[name]; n > 0 {
			fmt.Printf("    %-12s %d key(s)\n", name+":", n)
		} else {
			fmt.Printf("    %-12s no keys\n", name+":")
		}
	}
	for vendor, n := range counts {
		if _, ok := table[vendor]; !ok {
			fmt.Printf("    %-12s %d key(s) (vendor not routable)\n", vendor+":", n)
		}
	}
}

func checkSecretsRoot(root string) {
	fmt.Printf("  Secrets:  %s", root)
	info, err := os.Stat(root)
	switch {
	case err != nil:
		fmt.Println(" (NOT FOUND, created on first bot)")
	case !info.IsDir():
		fmt.Println(" (NOT A DIRECTORY)")
	case info.Mode().Perm()&0o077 != 0:
		fmt.Printf(" (WARNING: mode %o, expected 700)\n", info.Mode().Perm())
	default:
		fmt.Println(" (OK)")
	}
}

func checkRedis(cfg *config.Config) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Printf("  Redis:    %s (UNREACHABLE, rotation falls back to in-process: %s)\n", cfg.Redis.Addr, err)
		return
	}
	fmt.Printf("  Redis:    %s (OK)\n", cfg.Redis.Addr)
}
