package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/corevida/leadflow/internal/api"
	"github.com/corevida/leadflow/internal/cache"
	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/gamification"
	"github.com/corevida/leadflow/internal/genai"
	"github.com/corevida/leadflow/internal/lockfile"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/messaging"
	"github.com/corevida/leadflow/internal/recovery"
	"github.com/corevida/leadflow/internal/retention"
	"github.com/corevida/leadflow/internal/scheduler"
	"github.com/corevida/leadflow/internal/store"
	"github.com/corevida/leadflow/internal/throttle"
	"github.com/corevida/leadflow/internal/twiliowhatsapp"
	"github.com/corevida/leadflow/internal/util"
	"github.com/corevida/leadflow/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadFlow state data
	DefaultStateDir = "/var/lib/leadflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "leadflow.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping LeadFlow with configured modules")
	if err := run(config, flags); err != nil {
		slog.Error("LeadFlow failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("LeadFlow exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL      string
	WhatsAppDSN      string
	StateDir         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	OpenAIKey        string
	OpenAIModel      string
	APIAddr          string
	Provider         string
	ConsultantID     string
	UTCOffsetHours   int
	ReorderAfterDays int
	RateLimitMax     int
	RateLimitWindow  time.Duration
}

// Flags holds command line flag values
type Flags struct {
	qrOutput     *string
	numeric      *bool
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	provider     *string
	consultantID *string
}

// initializeLogger sets up structured logging. LEADFLOW_DEBUG=1 enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("LEADFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
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
		WhatsAppDSN:      os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:         os.Getenv("LEADFLOW_STATE_DIR"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          util.ParseIntEnv("REDIS_DB", 0),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		APIAddr:          os.Getenv("API_ADDR"),
		Provider:         os.Getenv("MESSAGING_PROVIDER"),
		ConsultantID:     os.Getenv("DEFAULT_CONSULTANT_ID"),
		UTCOffsetHours:   util.ParseIntEnv("UTC_OFFSET_HOURS", -3),
		ReorderAfterDays: util.ParseIntEnv("REORDER_AFTER_DAYS", retention.DefaultReorderAfterDays),
		RateLimitMax:     util.ParseIntEnv("RATE_LIMIT_MAX", throttle.DefaultMaxPerWindow),
		RateLimitWindow:  util.ParseDurationEnv("RATE_LIMIT_WINDOW", throttle.DefaultWindow),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADFLOW_STATE_DIR set, using default", "state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}
	if config.Provider == "" {
		config.Provider = "whatsapp"
	}
	if config.ConsultantID == "" {
		config.ConsultantID = "default"
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"LEADFLOW_STATE_DIR", config.StateDir,
		"REDIS_ADDR", config.RedisAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_PROVIDER", config.Provider,
		"UTC_OFFSET_HOURS", config.UTCOffsetHours)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:     flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:      flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for LeadFlow data (overrides $LEADFLOW_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the durable store (overrides $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		provider:     flag.String("messaging-provider", config.Provider, "messaging provider: whatsapp or twilio (overrides $MESSAGING_PROVIDER)"),
		consultantID: flag.String("consultant-id", config.ConsultantID, "default consultant for auto-registered leads (overrides $DEFAULT_CONSULTANT_ID)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"provider", *flags.provider)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return os.MkdirAll(*flags.stateDir, 0755)
}

// buildStore opens the durable store backend matching the DSN.
func buildStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildCacheTier connects the Redis session tier when configured and falls
// back to the in-process tier otherwise.
func buildCacheTier(config Config) cache.Tier {
	if config.RedisAddr == "" {
		slog.Debug("No REDIS_ADDR set, using in-process session cache")
		return cache.NewMemoryTier()
	}
	tier, err := cache.NewRedisTier(
		cache.WithAddr(config.RedisAddr),
		cache.WithPassword(config.RedisPassword),
		cache.WithDB(config.RedisDB),
	)
	if err != nil {
		slog.Warn("Redis unavailable, falling back to in-process session cache", "error", err, "addr", config.RedisAddr)
		return cache.NewMemoryTier()
	}
	slog.Info("Redis session tier connected", "addr", config.RedisAddr)
	return tier
}

// buildMessagingService selects the channel adapter by provider name.
func buildMessagingService(flags Flags, whatsappDSN string) (messaging.Service, error) {
	if *flags.provider == "twilio" {
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(whatsappDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// run wires every module together and serves until SIGINT or SIGTERM.
func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	tier2 := buildCacheTier(config)
	sessions := memory.NewSessionStore(tier2)
	checkins := memory.NewCheckinStore(tier2)

	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if config.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.OpenAIModel))
	}
	llm, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	dialogue := flow.NewConversationFlow(sessions, st, llm)
	awarder := gamification.NewStoreAwarder(st)
	checkinFlow := flow.NewCheckinFlow(checkins, st, awarder)

	if restored, err := recovery.New(st, sessions).RecoverActiveConversations(ctx); err != nil {
		slog.Warn("Session warm-up failed, continuing with cold cache", "error", err)
	} else {
		slog.Info("Session warm-up complete", "restored", restored)
	}

	limiter := throttle.NewRateLimiter(config.RateLimitMax, config.RateLimitWindow)
	queue := throttle.NewSendQueue(limiter)

	svc, err := buildMessagingService(flags, config.WhatsAppDSN)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	respHandler := messaging.NewResponseHandler(svc, dialogue, checkinFlow, queue, st, *flags.consultantID)
	respHandler.Start(ctx)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	ret := retention.New(st, checkinFlow, sessions, queue, svc,
		retention.WithReorderAfterDays(config.ReorderAfterDays),
		retention.WithUTCOffsetHours(config.UTCOffsetHours),
	)
	if err := ret.RegisterJobs(sched); err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(st, sessions, dialogue, apiOpts...)
	if twilioSvc, ok := svc.(*messaging.TwilioService); ok {
		server.HandleFunc("POST /webhooks/twilio", twilioSvc.WebhookHandler)
	}

	err = server.Run(ctx)

	// Let queued replies drain before the process exits.
	if !queue.WaitIdle(30 * time.Second) {
		slog.Warn("Send queue did not drain before shutdown")
	}
	return err
}
