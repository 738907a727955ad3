package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keyproxy",
	Short: "Shared LLM vendor-key gateway with per-bot secret stores",
	Long: `keyproxy lets many bots call LLM vendor APIs through one gateway without
holding real vendor keys. Bots authenticate with their own token; the gateway
injects a pooled vendor key and forwards the request unchanged.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGateway(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $KEYPROXY_CONFIG or ./config.json5)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(botCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(secretsCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath returns --config, then $KEYPROXY_CONFIG, then the default.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("KEYPROXY_CONFIG"); v != "" {
		return v
	}
	return config.DefaultPath
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("keyproxy", Version)
		},
	}
}
