package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/keyproxy/internal/config"
	"github.com/nextlevelbuilder/keyproxy/internal/crypto"
	"github.com/nextlevelbuilder/keyproxy/internal/secret"
	"github.com/nextlevelbuilder/keyproxy/internal/store"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the shared vendor key pool",
	}
	cmd.AddCommand(keysAddCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	cmd.AddCommand(keysMasterKeyCmd())
	return cmd
}

func keysAddCmd() *cobra.Command {
	var (
		label    string
		fromFile string
	)
	cmd := &cobra.Command{
		Use:   "add <vendor>",
		Short: "Encrypt and add a vendor API key (read from prompt, stdin or --from-file)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			exitOnError(err)

			vendor := config.NormalizeVendorName(args[0])
			if _, ok := cfg.VendorTable()[vendor]; !ok {
				exitOnError(fmt.Errorf("unknown vendor %q (known: %s)", vendor, knownVendors(cfg)))
			}
			if label != "" {
				exitOnError(store.ValidateName("label", label))
			}

			cipher, err := loadCipher(cfg)
			exitOnError(err)

			buf, err := readSecretInput(fromFile, fmt.Sprintf("%s API key", vendor))
			exitOnError(err)
			ciphertext, err := cipher.Encrypt(buf.Bytes())
			buf.Close()
			exitOnError(err)

			stores, err := openStores(cfg)
			exitOnError(err)
			defer stores.Close()

			k := &store.APIKeyData{Vendor: vendor, Ciphertext: ciphertext, Label: label}
			exitOnError(stores.Keys.AddKey(context.Background(), k))
			fmt.Printf("Added %s key %s\n", vendor, k.ID)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "human-readable label")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "read the key from a file instead of stdin")
	return cmd
}

type keyListEntry struct {
	ID        uuid.UUID `json:"id"`
	Vendor    string    `json:"vendor"`
	Label     string    `json:"label,omitempty"`
	Masked    string    `json:"masked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func keysListCmd() *cobra.Command {
	var (
		jsonOutput bool
		showMasked bool
	)
	cmd := &cobra.Command{
		Use:   "list [vendor]",
		Short: "List vendor keys (never prints plaintext)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			exitOnError(err)

			stores, err := openStores(cfg)
			exitOnError(err)
			defer stores.Close()

			ctx := context.Background()
			var keys []store.APIKeyData
			if len(args) == 1 {
				keys, err = stores.Keys.ListKeysForVendor(ctx, config.NormalizeVendorName(args[0]))
			} else {
				keys, err = stores.Keys.ListKeys(ctx)
			}
			exitOnError(err)

			var cipher *crypto.Cipher
			if showMasked {
				cipher, err = loadCipher(cfg)
				exitOnError(err)
			}

			entries := make([]keyListEntry, 0, len(keys))
			for _, k := range keys {
				e := keyListEntry{ID: k.ID, Vendor: k.Vendor, Label: k.Label, CreatedAt: k.CreatedAt}
				if cipher != nil {
					e.Masked = maskCiphertext(cipher, k.Ciphertext)
				}
				entries = append(entries, e)
			}
			printKeys(entries, jsonOutput, showMasked)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&showMasked, "show-masked", false, "decrypt and show a masked preview (needs the master key)")
	return cmd
}

func maskCiphertext(cipher *crypto.Cipher, ciphertext string) string {
	plain, err := cipher.Decrypt(ciphertext)
	if err != nil {
		return "<undecryptable>"
	}
	masked := maskValue(string(plain))
	secret.Zero(plain)
	return masked
}

func printKeys(entries []keyListEntry, jsonOutput, showMasked bool) {
	if jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(entries) == 0 {
		fmt.Println("No keys.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if showMasked {
		fmt.Fprintf(tw, "ID\tVENDOR\tLABEL\tKEY\tCREATED\n")
	} else {
		fmt.Fprintf(tw, "ID\tVENDOR\tLABEL\tCREATED\n")
	}
	for _, e := range entries {
		created := e.CreatedAt.Local().Format(time.DateTime)
		if showMasked {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Vendor, e.Label, e.Masked, created)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Vendor, e.Label, created)
		}
	}
	tw.Flush()
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Remove a vendor key from the pool",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := uuid.Parse(args[0])
			if err != nil {
				exitOnError(fmt.Errorf("invalid key id %q", args[0]))
			}

			cfg, err := loadConfig()
			exitOnError(err)
			stores, err := openStores(cfg)
			exitOnError(err)
			defer stores.Close()

			err = stores.Keys.DeleteKey(context.Background(), id)
			if errors.Is(err, store.ErrNotFound) {
				exitOnError(fmt.Errorf("key %s not found", id))
			}
			exitOnError(err)
			fmt.Printf("Revoked key %s\n", id)
		},
	}
}

func keysMasterKeyCmd() *cobra.Command {
	var saveKeyring bool
	cmd := &cobra.Command{
		Use:   "master-key",
		Short: "Generate a new master key",
		Long: `Generate a random 32-byte master key, printed as hex.

Export it as KEYPROXY_MASTER_KEY, or pass --save-keyring to store it in the OS
keyring and set gateway.master_key_source to "keyring". Keys encrypted under
one master key cannot be decrypted under another.`,
		Run: func(cmd *cobra.Command, args []string) {
			hexKey, err := crypto.GenerateMasterKey()
			exitOnError(err)

			if saveKeyring {
				exitOnError(saveMasterKeyToKeyring(hexKey))
				fmt.Printf("Master key saved to the OS keyring (%s/%s).\n", keyringService, keyringUser)
				return
			}
			fmt.Println(hexKey)
		},
	}
	cmd.Flags().BoolVar(&saveKeyring, "save-keyring", false, "store the key in the OS keyring instead of printing it")
	return cmd
}

func knownVendors(cfg *config.Config) string {
	table := cfg.VendorTable()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}
