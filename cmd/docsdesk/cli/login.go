package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain a session token from a running server",
		Long: `Log in to the server at client.base_url and print a session token. Export it
as DOCSDESK_CLIENT_TOKEN to authenticate the user and registration commands.`,
		Example: `  export DOCSDESK_CLIENT_TOKEN=$(docsdesk login --email admin@example.com --quiet)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			quiet, _ := cmd.Flags().GetBool("quiet")
			return runLogin(cmd.Context(), email, password, quiet)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Operator email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Operator password (prompted if omitted)")
	cmd.Flags().BoolP("quiet", "q", false, "Print only the token")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runLogin(ctx context.Context, email, password string, quiet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if password == "" {
		if password, err = readPassword("Password: "); err != nil {
			return err
		}
	}

	session, err := newAPIClient(cfg.Client).Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	if quiet {
		fmt.Println(session.Token)
		return nil
	}
	fmt.Printf("Logged in as %s (expires in %ds)\n\n", session.Email, session.ExpiresIn)
	fmt.Printf("  export DOCSDESK_CLIENT_TOKEN=%s\n", session.Token)
	return nil
}
