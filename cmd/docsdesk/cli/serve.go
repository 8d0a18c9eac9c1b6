package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docsdesk/docsdesk/internal/server"
	"github.com/docsdesk/docsdesk/internal/service"
)

const devJWTSecret = "docsdesk-dev-secret-change-me"

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docsdesk API server",
		Long:  "Start the HTTP server that exposes the registration and user administration REST API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	shutdownTimeout, err := parseDuration("server.shutdown_timeout", cfg.Server.ShutdownTimeout, 30*time.Second)
	if err != nil {
		return err
	}
	tokenTTL, err := parseDuration("auth.jwt_expiry", cfg.Auth.JWTExpiry, 24*time.Hour)
	if err != nil {
		return err
	}

	// 1. Store
	store, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	logger.Info("store initialized", "driver", store.Driver())

	// 2. Auth
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		logger.Warn("auth.jwt_secret is not set, using the development secret")
		jwtSecret = devJWTSecret
	}
	authSvc := service.NewAuthService(store, jwtSecret)

	// 3. Registration workflow and its notifications
	mailer, err := service.NewMailer(cfg.Mail, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("init mailer: %w", err)
	}
	regSvc := service.NewRegistrationService(store, service.RegistrationOptions{
		Mailer:       mailer,
		Logger:       logger,
		DefaultQuota: cfg.Registration.DefaultQuota,
		SiteName:     cfg.Mail.SiteName,
	})

	// 4. First run
	hasAdmin, err := store.HasAnyAdmin(ctx)
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: docsdesk admin create")
	}

	// 5. HTTP server
	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.Server.Host
	srvCfg.Port = cfg.Server.Port
	srvCfg.ShutdownTimeout = shutdownTimeout
	if len(cfg.Server.CORS.Origins) > 0 {
		srvCfg.CORSOrigins = cfg.Server.CORS.Origins
	}
	srvCfg.RegistrationRateLimit = cfg.Registration.RateLimitPerMinute
	srvCfg.TokenTTL = tokenTTL
	srvCfg.Version = versionString()

	srv := server.New(srvCfg, store, authSvc, regSvc, logger)

	fmt.Printf("→ docsdesk %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", srvCfg.Host, srvCfg.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
