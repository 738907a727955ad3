package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/bots"
	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/secrets"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

func botCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Manage bots (gateway tenants)",
	}
	cmd.AddCommand(botAddCmd())
	cmd.AddCommand(botListCmd())
	cmd.AddCommand(botDeleteCmd())
	return cmd
}

// withBotService opens the stores and runs fn with a bot service.
func withBotService(fn func(ctx context.Context, cfg *config.Config, svc *bots.Service) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(context.Background(), cfg, bots.NewService(stores.Bots, secrets.New(cfg.Secrets.Root)))
}

func botAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a bot and print its token (shown once)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(withBotService(func(ctx context.Context, cfg *config.Config, svc *bots.Service) error {
				b, token, err := svc.Provision(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Created bot %s (%s)\n", b.Name, b.ID)
				fmt.Printf("Token: %s\n", token)
				fmt.Println("Store this token now; it cannot be shown again.")
				return nil
			}))
		},
	}
}

func botListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bots",
		Run: func(cmd *cobra.Command, args []string) {
			exitOnError(withBotService(func(ctx context.Context, _ *config.Config, svc *bots.Service) error {
				list, err := svc.List(ctx)
				if err != nil {
					return err
				}
				printBots(list, jsonOutput)
				return nil
			}))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func botDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bot and all of its secrets",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id := args[0]
			if !yes && stdinIsTerminal() {
				ok, err := promptConfirm(fmt.Sprintf("Delete bot %s and its secrets?", id), false)
				exitOnError(err)
				if !ok {
					fmt.Println("Aborted.")
					return
				}
			}
			exitOnError(withBotService(func(ctx context.Context, _ *config.Config, svc *bots.Service) error {
				err := svc.Delete(ctx, id)
				if errors.Is(err, store.ErrNotFound) {
					fmt.Printf("Bot %s not found; removed any leftover secrets.\n", id)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("Deleted bot %s\n", id)
				return nil
			}))
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func printBots(list []store.BotData, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(list) == 0 {
		fmt.Println("No bots.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tNAME\tCREATED\n")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.ID, b.Name, b.CreatedAt.Local().Format(time.DateTime))
	}
	tw.Flush()
}
