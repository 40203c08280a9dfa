package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/spurbey/smart-whatsapping/internal/api"
	"github.com/spurbey/smart-whatsapping/internal/campaign"
	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/session"
	"github.com/spurbey/smart-whatsapping/internal/store"
	"github.com/spurbey/smart-whatsapping/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for service state data
	DefaultStateDir = "/var/lib/smart-whatsapping"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "smart-whatsapping.db"
	// DefaultCampaignInterval is how often the cart-abandonment scan runs.
	// It must stay below the campaign trigger window or carts are missed.
	DefaultCampaignInterval = 5 * time.Minute
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("smart-whatsapping failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("smart-whatsapping exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	StateDir         string
	RedisAddr        string
	APIAddr          string
	SessionTimeout   int
	CampaignInterval time.Duration
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
}

// Flags holds command line flag values
type Flags struct {
	stateDir         *string
	dbDSN            *string
	redisAddr        *string
	apiAddr          *string
	sessionTimeout   *int
	campaignInterval *time.Duration
	mockGateway      *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		StateDir:         os.Getenv("SMARTWA_STATE_DIR"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		APIAddr:          os.Getenv("API_ADDR"),
		SessionTimeout:   util.ParseIntEnv("SESSION_TIMEOUT_SECONDS", session.DefaultSessionTimeout),
		CampaignInterval: DefaultCampaignInterval,
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_WHATSAPP_NUMBER"),
	}

	if minutes := util.ParseIntEnv("CAMPAIGN_INTERVAL_MINUTES", 0); minutes > 0 {
		config.CampaignInterval = time.Duration(minutes) * time.Minute
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SMARTWA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SMARTWA_STATE_DIR", config.StateDir,
		"REDIS_ADDR", config.RedisAddr,
		"API_ADDR", config.APIAddr,
		"SESSION_TIMEOUT_SECONDS", config.SessionTimeout,
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:         flag.String("state-dir", config.StateDir, "state directory for service data (overrides $SMARTWA_STATE_DIR)"),
		dbDSN:            flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or Postgres URL (overrides $DATABASE_URL)"),
		redisAddr:        flag.String("redis-addr", config.RedisAddr, "Redis address for conversation sessions (overrides $REDIS_ADDR)"),
		apiAddr:          flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sessionTimeout:   flag.Int("session-timeout", config.SessionTimeout, "conversation session idle timeout in seconds (overrides $SESSION_TIMEOUT_SECONDS)"),
		campaignInterval: flag.Duration("campaign-interval", config.CampaignInterval, "cart abandonment scan interval (overrides $CAMPAIGN_INTERVAL_MINUTES)"),
		mockGateway:      flag.Bool("mock-gateway", util.ParseBoolEnv("MOCK_GATEWAY", false), "use the recording mock gateway instead of Twilio (overrides $MOCK_GATEWAY)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr", *flags.redisAddr,
		"apiAddr", *flags.apiAddr,
		"sessionTimeout", *flags.sessionTimeout,
		"campaignInterval", *flags.campaignInterval,
		"mockGateway", *flags.mockGateway)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory ready", "state_dir", stateDir)
	}
	return nil
}

// buildStore opens the relational store matching the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildKV connects the session key-value store, falling back to the in-memory
// implementation when Redis is unreachable. Sessions degrade gracefully but
// do not survive restarts in that mode.
func buildKV(flags Flags) kvstore.KeyValue {
	var opts []kvstore.Option
	if *flags.redisAddr != "" {
		opts = append(opts, kvstore.WithAddr(*flags.redisAddr))
	}
	kv, err := kvstore.NewRedisStore(opts...)
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory session store", "error", err)
		return kvstore.NewMemoryStore()
	}
	return kv
}

// buildGateway constructs the outbound message gateway.
func buildGateway(flags Flags) (messaging.Gateway, error) {
	if *flags.mockGateway {
		slog.Info("Using mock message gateway")
		return messaging.NewMockGateway(), nil
	}
	return messaging.NewTwilioGateway()
}

func run(flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	kv := buildKV(flags)
	sessions := session.NewManager(kv, *flags.sessionTimeout)

	gateway, err := buildGateway(flags)
	if err != nil {
		return err
	}

	campaigns := campaign.NewEngine(st, gateway)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := campaigns.SeedCartAbandonmentCampaigns(ctx); err != nil {
		slog.Error("Campaign seeding failed", "error", err)
	}

	// Periodic cart-abandonment scan.
	go func() {
		ticker := time.NewTicker(*flags.campaignInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := campaigns.Run(ctx); err != nil {
					slog.Error("Campaign run failed", "error", err)
				}
			}
		}
	}()

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, gateway, sessions, campaigns, apiOpts...)

	httpServer := &http.Server{
		Addr:    server.Addr(),
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("smart-whatsapping API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
