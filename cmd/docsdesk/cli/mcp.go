package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docsdesk/docsdesk/internal/config"
	dmcp "github.com/docsdesk/docsdesk/internal/mcp"
	"github.com/docsdesk/docsdesk/internal/service"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
		as        string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the registration
review workflow as tools for AI agents. Supports stdio (default) and HTTP
transports.

Decisions taken through the MCP server are recorded in the audit trail as
made by the operator given with --as.`,
		Example: `  docsdesk mcp --as admin@example.com
  docsdesk mcp --as admin@example.com --transport http --port 3001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port, as)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")
	cmd.Flags().StringVar(&as, "as", "", "Email of the operator the agent acts for (required)")
	cmd.MarkFlagRequired("as")

	return cmd
}

func runMCP(transport string, port int, as string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()

	operator, err := store.GetAdminByEmail(context.Background(), as)
	if errors.Is(err, config.ErrNotFound) {
		return fmt.Errorf("operator %q not found", as)
	}
	if err != nil {
		return fmt.Errorf("look up operator: %w", err)
	}
	if !operator.IsActive {
		return fmt.Errorf("operator %q is disabled", as)
	}

	mailer, err := service.NewMailer(cfg.Mail, logger)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}
	regSvc := service.NewRegistrationService(store, service.RegistrationOptions{
		Mailer:       mailer,
		Logger:       logger,
		DefaultQuota: cfg.Registration.DefaultQuota,
		SiteName:     cfg.Mail.SiteName,
	})

	mcpSrv := dmcp.NewMCPServer(store, regSvc, operator.ID, versionString(), logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		addr := fmt.Sprintf(":%d", port)
		logger.Info("starting MCP HTTP server", "addr", addr, "operator", operator.Email)
		return mcpSrv.ServeHTTP(addr)
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
