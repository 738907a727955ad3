package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
	}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configPathCmd())
	cmd.AddCommand(configValidateCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration after env overrides (secrets masked)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %s\n", err)
				os.Exit(1)
			}

			redacted := redactConfig(cfg)
			if asYAML {
				out, err := yaml.Marshal(redacted)
				exitOnError(err)
				fmt.Print(string(out))
				return
			}
			out, _ := json.MarshalIndent(redacted, "", "  ")
			fmt.Println(string(out))
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")
	return cmd
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Run: func(cmd *cobra.Command, args []string) {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid config: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Config at %s is valid (%d vendors routable).\n", cfgPath, len(cfg.VendorTable()))
		},
	}
}

// redactConfig returns a JSON-safe copy with credential fields masked.
func redactConfig(cfg *config.Config) map[string]any {
	data, _ := json.Marshal(cfg)
	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	redactMap(raw)
	return raw
}

var secretConfigKeys = map[string]bool{
	"postgres_dsn": true,
	"password":     true,
	"auth_key":     true,
	"headers":      true,
}

func redactMap(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if secretConfigKeys[k] {
				m[k] = maskValue(val)
			}
		case map[string]any:
			if secretConfigKeys[k] {
				for hk, hv := range val {
					if s, ok := hv.(string); ok {
						val[hk] = maskValue(s)
					}
				}
				continue
			}
			redactMap(val)
		}
	}
}
