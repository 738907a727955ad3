package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/channelcheck"
	"github.com/nextlevelbuilder/keyproxy/internal/secrets"
)

func secretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage per-bot secrets (channel tokens and other credentials)",
	}
	cmd.AddCommand(secretsSetCmd())
	cmd.AddCommand(secretsGetCmd())
	cmd.AddCommand(secretsListCmd())
	cmd.AddCommand(secretsDeleteCmd())
	cmd.AddCommand(secretsVerifyCmd())
	return cmd
}

func openSecretStore() *secrets.Store {
	cfg, err := loadConfig()
	exitOnError(err)
	return secrets.New(cfg.Secrets.Root)
}

func secretsSetCmd() *cobra.Command {
	var fromFile string
	cmd := &cobra.Command{
		Use:   "set <bot-id> <name>",
		Short: "Write a secret (read from prompt, stdin or --from-file)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			botID, name := args[0], args[1]
			exitOnError(secrets.ValidateBotID(botID))
			exitOnError(secrets.ValidateName(name))

			sec := openSecretStore()
			buf, err := readSecretInput(fromFile, name)
			exitOnError(err)
			err = sec.Write(botID, name, buf.String())
			buf.Close()
			exitOnError(err)
			fmt.Printf("Wrote %s for bot %s\n", name, botID)
		},
	}
	cmd.Flags().StringVar(&fromFile, "from-file", "", "read the value from a file instead of stdin")
	return cmd
}

func secretsGetCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <bot-id> <name>",
		Short: "Read a secret (masked unless --reveal)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			v, found, err := openSecretStore().Read(args[0], args[1])
			exitOnError(err)
			if !found {
				fmt.Fprintf(os.Stderr, "%s is not set for bot %s\n", args[1], args[0])
				os.Exit(1)
			}
			if reveal {
				fmt.Println(v)
				return
			}
			fmt.Println(maskValue(v))
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print the plaintext value")
	return cmd
}

func secretsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <bot-id>",
		Short: "List secret names for a bot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			names, err := openSecretStore().List(args[0])
			exitOnError(err)
			if len(names) == 0 {
				fmt.Println("No secrets.")
				return
			}
			for _, n := range names {
				fmt.Println(n)
			}
		},
	}
}

func secretsDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <bot-id>",
		Short: "Remove every secret of a bot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			botID := args[0]
			exitOnError(secrets.ValidateBotID(botID))
			if !yes && stdinIsTerminal() {
				ok, err := promptConfirm(fmt.Sprintf("Delete all secrets of bot %s?", botID), false)
				exitOnError(err)
				if !ok {
					fmt.Println("Aborted.")
					return
				}
			}
			exitOnError(openSecretStore().Delete(botID))
			fmt.Printf("Deleted secrets of bot %s\n", botID)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func secretsVerifyCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "verify <bot-id> <channel>",
		Short: "Check a stored channel token against the channel API",
		Long: `Authenticate a bot's stored channel credential without sending messages.

Supported channels: telegram, slack, discord. The secret defaults to
<CHANNEL>_BOT_TOKEN (e.g. TELEGRAM_BOT_TOKEN); override with --name.`,
		Args: cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			checker := channelcheck.New(openSecretStore())
			res, err := checker.Verify(context.Background(), args[0], args[1], name)
			if errors.Is(err, channelcheck.ErrUnsupportedChannel) {
				exitOnError(fmt.Errorf("%w (supported: %v)", err, checker.Channels()))
			}
			exitOnError(err)
			fmt.Printf("%s credential %s OK (%s)\n", res.Channel, res.Secret, res.Account)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "secret name (default <CHANNEL>_BOT_TOKEN)")
	return cmd
}
