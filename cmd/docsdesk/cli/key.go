package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/model"
	"github.com/docsdesk/docsdesk/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "key",
		Aliases: []string{"apikey"},
		Short:   "Manage API keys",
		Long:    "Create, list, and revoke API keys used by scripts and the docsdesk client commands.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

// ---------- key create ----------

func newKeyCreateCmd() *cobra.Command {
	var (
		adminEmail string
		label      string
		expiresIn  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Generate a new API key owned by an operator. Requests made with the key act
as that operator. The raw key is shown once and cannot be retrieved again.`,
		Example: `  docsdesk key create --admin admin@example.com --label "review bot"
  docsdesk key create --admin admin@example.com --expires-in 720h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(adminEmail, label, expiresIn)
		},
	}

	cmd.Flags().StringVar(&adminEmail, "admin", "", "Email of the operator owning the key (required)")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the key")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "Key lifetime (default: no expiry)")
	cmd.MarkFlagRequired("admin")

	return cmd
}

func runKeyCreate(adminEmail, label string, expiresIn time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	admin, err := store.GetAdminByEmail(ctx, adminEmail)
	if errors.Is(err, config.ErrNotFound) {
		return fmt.Errorf("operator %q not found", adminEmail)
	}
	if err != nil {
		return fmt.Errorf("look up operator: %w", err)
	}

	var expiresAt *time.Time
	if expiresIn > 0 {
		t := time.Now().Add(expiresIn).UTC()
		expiresAt = &t
	}

	rawKey, apiKey, err := service.GenerateAPIKey(label, admin.ID, expiresAt)
	if err != nil {
		return err
	}
	if err := store.CreateAPIKey(ctx, apiKey); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	fmt.Println("API Key created:")
	fmt.Println()
	fmt.Printf("  Key:      %s\n", rawKey)
	fmt.Printf("  Operator: %s\n", admin.Email)
	if label != "" {
		fmt.Printf("  Label:    %s\n", label)
	}
	if expiresAt != nil {
		fmt.Printf("  Expires:  %s\n", expiresAt.Format(time.RFC3339))
	}
	fmt.Println()
	fmt.Println("  Save this key now - it cannot be retrieved again.")
	return nil
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runKeyList(jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	// Build an admin ID -> email map for display
	admins, err := store.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	emails := make(map[string]string, len(admins))
	for _, a := range admins {
		emails[a.ID] = a.Email
	}

	type keyRow struct {
		Prefix   string `json:"prefix"`
		Operator string `json:"operator"`
		Label    string `json:"label"`
		Active   bool   `json:"active"`
	}

	rows := make([]keyRow, len(keys))
	for i, k := range keys {
		op := emails[k.AdminID]
		if op == "" {
			op = "(none)"
		}
		rows[i] = keyRow{
			Prefix:   k.KeyPrefix,
			Operator: op,
			Label:    k.Label,
			Active:   k.IsActive,
		}
	}

	if jsonOutput {
		return printJSON(os.Stdout, rows)
	}

	if len(rows) == 0 {
		fmt.Println("No API keys configured. Use 'docsdesk key create' to create one.")
		return nil
	}

	fmt.Printf("%-16s %-30s %-24s %-8s\n", "PREFIX", "OPERATOR", "LABEL", "ACTIVE")
	fmt.Printf("%-16s %-30s %-24s %-8s\n", "------", "--------", "-----", "------")
	for _, k := range rows {
		active := "yes"
		if !k.Active {
			active = "no"
		}
		fmt.Printf("%-16s %-30s %-24s %-8s\n", k.Prefix, k.Operator, k.Label, active)
	}

	return nil
}

// ---------- key revoke ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <prefix>",
		Short: "Revoke an API key by its prefix",
		Long:  "Deactivate an API key, preventing any further authenticated requests using that key.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}

	return cmd
}

func runKeyRevoke(prefix string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("list api keys: %w", err)
	}

	var matchedKey *model.APIKey
	for i := range keys {
		if keys[i].IsActive && strings.HasPrefix(keys[i].KeyPrefix, prefix) {
			matchedKey = &keys[i]
			break
		}
	}
	if matchedKey == nil {
		return fmt.Errorf("no active API key found with prefix %q", prefix)
	}

	if err := store.RevokeAPIKey(ctx, matchedKey.ID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	fmt.Printf("Revoked API key with prefix %q\n", matchedKey.KeyPrefix)
	return nil
}
