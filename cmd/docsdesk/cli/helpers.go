package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/docsdesk/docsdesk/internal/client"
	"github.com/docsdesk/docsdesk/internal/config"
	"github.com/docsdesk/docsdesk/internal/i18n"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// DOCSDESK_DATA_DIR env var, or ~/.docsdesk as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("DOCSDESK_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return home + "/.docsdesk"
}

// loadConfig returns the effective configuration: defaults, then the config
// file viper found, then DOCSDESK_* environment overrides.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadYAMLConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrideString(&cfg.Server.Host, "server.host")
	overrideInt(&cfg.Server.Port, "server.port")
	overrideString(&cfg.Store.Driver, "store.driver")
	overrideString(&cfg.Store.DSN, "store.dsn")
	overrideString(&cfg.Auth.JWTSecret, "auth.jwt_secret")
	overrideString(&cfg.Auth.JWTExpiry, "auth.jwt_expiry")
	overrideString(&cfg.Mail.Host, "mail.host")
	overrideString(&cfg.Mail.Username, "mail.username")
	overrideString(&cfg.Mail.Password, "mail.password")
	overrideString(&cfg.Mail.From, "mail.from")
	overrideString(&cfg.Client.BaseURL, "client.base_url")
	overrideString(&cfg.Client.APIKey, "client.api_key")
	overrideString(&cfg.Client.Locale, "client.locale")
	overrideString(&cfg.Logging.Level, "logging.level")
	overrideString(&cfg.Logging.Format, "logging.format")
	return cfg, nil
}

func overrideString(dst *string, key string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := viper.GetInt(key); v != 0 {
		*dst = v
	}
}

// parseDuration parses a config duration, falling back to def when the
// value is empty.
func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

// newLogger builds the process logger. --dev forces debug level.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if devMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the configured store. The sqlite driver without a DSN
// uses the data directory.
func openStore(cfg config.StoreConfig) (*config.Store, error) {
	if (cfg.Driver == "" || cfg.Driver == config.DriverSQLite) && cfg.DSN == "" {
		return config.NewStore(resolveDataDir())
	}
	return config.Open(cfg.Driver, cfg.DSN)
}

// newAPIClient returns a client for the server in client.base_url,
// authenticated with client.api_key or a DOCSDESK_CLIENT_TOKEN session.
func newAPIClient(cfg config.ClientConfig) *client.Client {
	var opts []client.Option
	if cfg.APIKey != "" {
		opts = append(opts, client.WithAPIKey(cfg.APIKey))
	}
	if token := viper.GetString("client.token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}
	return client.New(cfg.BaseURL, opts...)
}

// newCatalog returns the message catalog for locale, or for client.locale
// when locale is empty.
func newCatalog(cfg config.ClientConfig, locale string) (*i18n.Catalog, error) {
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, err
	}
	if locale == "" {
		locale = cfg.Locale
	}
	return bundle.Catalog(locale), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
