package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/bottlebook/internal/httpapi"
	"github.com/MarkoPoloResearchLab/bottlebook/internal/session"
	"github.com/MarkoPoloResearchLab/bottlebook/internal/store/localstore"
	"github.com/MarkoPoloResearchLab/bottlebook/internal/store/remotestore"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/bottlebook"
	"github.com/MarkoPoloResearchLab/bottlebook/pkg/cloudsync"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagLocalDB           = "local-db"
	flagRemoteDB          = "remote-db"
	flagListenAddr        = "listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagSessionSigningKey = "session-signing-key"
	flagSessionIssuer     = "session-issuer"
	flagTenantID          = "tenant-id"
	flagProbeInterval     = "probe-interval"
	flagResetOnMigration  = "reset-on-migration"
	envPrefix             = "BOTTLEBOOK"

	defaultLocalDB       = "bottlebook.db"
	defaultListenAddr    = ":8090"
	defaultProbeInterval = 30 * time.Second
)

type runtimeConfig struct {
	LocalDBPath       string
	RemoteDatabaseURL string
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	TenantID          string
	ProbeInterval     time.Duration
	ResetOnMigration  bool
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bottlebookd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "bottlebookd",
		Short:         "Offline-first returnable-bottle ledger daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, cfg)
		},
	}

	cmd.Flags().String(flagLocalDB, defaultLocalDB, "path to the device-local SQLite database")
	cmd.Flags().String(flagRemoteDB, "", "remote PostgreSQL connection string (empty: sync disabled)")
	cmd.Flags().String(flagListenAddr, defaultListenAddr, "HTTP listen address")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagSessionSigningKey, "", "JWT signing key for session tokens")
	cmd.Flags().String(flagSessionIssuer, "bottlebook", "expected JWT issuer")
	cmd.Flags().String(flagTenantID, "", "fixed tenant id (single-user mode, used when no signing key is set)")
	cmd.Flags().Duration(flagProbeInterval, defaultProbeInterval, "remote reachability probe interval")
	cmd.Flags().Bool(flagResetOnMigration, false, "clear local data when the stored schema version mismatches")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagLocalDB, flagRemoteDB, flagListenAddr, flagAllowedOrigins, flagSessionSigningKey, flagSessionIssuer, flagTenantID, flagProbeInterval, flagResetOnMigration} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.LocalDBPath = v.GetString(flagLocalDB)
	cfg.RemoteDatabaseURL = v.GetString(flagRemoteDB)
	cfg.ListenAddr = v.GetString(flagListenAddr)
	if origins := strings.TrimSpace(v.GetString(flagAllowedOrigins)); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.SessionSigningKey = v.GetString(flagSessionSigningKey)
	cfg.SessionIssuer = v.GetString(flagSessionIssuer)
	cfg.TenantID = v.GetString(flagTenantID)
	cfg.ProbeInterval = v.GetDuration(flagProbeInterval)
	cfg.ResetOnMigration = v.GetBool(flagResetOnMigration)

	if cfg.LocalDBPath == "" {
		return fmt.Errorf("local db path is required")
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.RemoteDatabaseURL != "" && cfg.SessionSigningKey == "" && cfg.TenantID == "" {
		return fmt.Errorf("remote sync requires either %s or %s", flagSessionSigningKey, flagTenantID)
	}
	return nil
}

func runDaemon(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	localDB, cleanup, err := openLocalDatabase(ctx, cfg.LocalDBPath)
	if err != nil {
		return fmt.Errorf("local database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	localStore := localstore.New(localDB)
	if err := localStore.Prepare(ctx); err != nil {
		if !errors.Is(err, bottlebook.ErrMigrationRequired) || !cfg.ResetOnMigration {
			return fmt.Errorf("local store prepare: %w", err)
		}
		logger.Warn("schema version mismatch, clearing local data", zap.String("path", cfg.LocalDBPath))
		if err := localStore.Reset(ctx); err != nil {
			return fmt.Errorf("local store reset: %w", err)
		}
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := bottlebook.NewService(localStore, clock,
		bottlebook.WithOperationLogger(&zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}

	var remote cloudsync.RemoteStore
	if cfg.RemoteDatabaseURL != "" {
		remoteDB, err := gorm.Open(postgres.Open(cfg.RemoteDatabaseURL), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("remote database open: %w", err)
		}
		remoteStore := remotestore.New(remoteDB)
		if err := remoteStore.Prepare(ctx); err != nil {
			logger.Warn("remote schema prepare failed, continuing offline", zap.Error(err))
		}
		remote = remoteStore
	}

	sessionProvider, err := buildSessionProvider(cfg)
	if err != nil {
		return err
	}

	monitor, err := cloudsync.NewMonitor(remote,
		cloudsync.WithProbeInterval(cfg.ProbeInterval),
		cloudsync.WithMonitorLogger(logger))
	if err != nil {
		return fmt.Errorf("monitor init: %w", err)
	}
	engine, err := cloudsync.NewEngine(localStore, remote, sessionProvider, monitor, clock,
		cloudsync.WithEngineLogger(logger))
	if err != nil {
		return fmt.Errorf("engine init: %w", err)
	}

	if remote != nil {
		monitor.ProbeNow(ctx)
		go monitor.Run(ctx)
	}

	return httpapi.Run(ctx, httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
	}, httpapi.Dependencies{
		Logger:  logger,
		Service: service,
		Store:   localStore,
		Engine:  engine,
		Monitor: monitor,
	})
}

func buildSessionProvider(cfg *runtimeConfig) (cloudsync.SessionProvider, error) {
	if cfg.SessionSigningKey != "" {
		provider, err := session.New(session.Config{
			SigningKey: []byte(cfg.SessionSigningKey),
			Issuer:     cfg.SessionIssuer,
		})
		if err != nil {
			return nil, fmt.Errorf("session provider: %w", err)
		}
		return provider, nil
	}
	if cfg.TenantID != "" {
		tenantID, err := bottlebook.NewTenantID(cfg.TenantID)
		if err != nil {
			return nil, fmt.Errorf("tenant id: %w", err)
		}
		return session.NewStaticProvider(tenantID), nil
	}
	// Sync disabled: any remote-facing call answers "not authenticated".
	return unauthenticatedProvider{}, nil
}

type unauthenticatedProvider struct{}

func (unauthenticatedProvider) TenantID(ctx context.Context) (bottlebook.TenantID, error) {
	return bottlebook.TenantID{}, cloudsync.ErrNotAuthenticated
}

type zapOperationLogger struct {
	logger *zap.Logger
}

func (operationLogger *zapOperationLogger) LogOperation(_ context.Context, entry bottlebook.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.String("customer_id", entry.CustomerID.String()),
	}
	if entry.TransactionID.String() != "" {
		fields = append(fields, zap.String("transaction_id", entry.TransactionID.String()))
		fields = append(fields, zap.Int("bottles", entry.Bottles.Int()))
		fields = append(fields, zap.Int64("deposit_cents", entry.Deposit.Int64()))
	}
	if entry.Error != nil {
		operationLogger.logger.Warn("ledger operation failed", append(fields, zap.Error(entry.Error))...)
		return
	}
	operationLogger.logger.Info("ledger operation", fields...)
}

func openLocalDatabase(ctx context.Context, path string) (*gorm.DB, func() error, error) {
	normalized, err := normalizeSQLitePath(path)
	if err != nil {
		return nil, nil, err
	}
	db, err := gorm.Open(sqlite.Open(normalized), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
