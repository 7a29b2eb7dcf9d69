package main

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/api"
	"github.com/meridianhq/meridian/pkg/audit"
	"github.com/meridianhq/meridian/pkg/auth"
	"github.com/meridianhq/meridian/pkg/config"
	"github.com/meridianhq/meridian/pkg/currencies"
	"github.com/meridianhq/meridian/pkg/identity"
	"github.com/meridianhq/meridian/pkg/migrations"
	"github.com/meridianhq/meridian/pkg/observability"
	"github.com/meridianhq/meridian/pkg/rbac"
)

func main() {
	startup := logrus.New()
	startup.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		startup.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	startup.SetLevel(level)

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.LogLevel), os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	db, err := openDatabase(cfg)
	if err != nil {
		startup.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	startup.Infof("Connected to database")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := migrations.Run(migrateCtx, db); err != nil {
		cancelMigrate()
		startup.Fatalf("Failed to run migrations: %v", err)
	}
	cancelMigrate()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			startup.Fatalf("Failed to parse redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		startup.Infof("Permission decision cache enabled")
	}

	policy, err := rbac.LoadConfig(cfg.RBAC.PolicyPath)
	if err != nil {
		startup.Fatalf("Failed to load authorization policy: %v", err)
	}
	resolver, err := rbac.NewResolver(policy)
	if err != nil {
		startup.Fatalf("Failed to build permission resolver: %v", err)
	}

	var checker rbac.Checker = rbac.Local{Resolver: resolver}
	if redisClient != nil {
		checker = rbac.NewCachedResolver(resolver, redisClient, cfg.Redis.DecisionTTL, metrics)
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		startup.Fatalf("Failed to initialize token manager: %v", err)
	}

	store := accounts.NewStore(db)
	service := accounts.NewService(store, auth.NewBcryptHasher(bcrypt.DefaultCost), cfg.Defaults.CurrencyCode, logger)
	roleProvider := accounts.NewDefaultRoleProvider(store, cfg.Defaults.RoleName)
	reconciler := identity.NewReconciler(store, roleProvider, cfg.Defaults.CurrencyCode, logger, metrics)

	var google *identity.GoogleProvider
	if cfg.GoogleEnabled() {
		google, err = identity.NewGoogleProvider(context.Background(), identity.GoogleConfig{
			IssuerURL:    cfg.Google.IssuerURL,
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes:       cfg.Google.Scopes,
		})
		if err != nil {
			startup.Fatalf("Failed to initialize Google SSO: %v", err)
		}
		startup.Infof("Google SSO enabled")
	}

	recorder := audit.NewSQLRecorder(db, logger)
	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	pruner := audit.NewPruner(recorder, retention, cfg.Audit.PruneSchedule, logger)
	if err := pruner.Start(); err != nil {
		startup.Fatalf("Failed to start audit retention job: %v", err)
	}
	defer pruner.Stop()

	server := api.NewServer(api.Deps{
		Logger:          logger,
		Metrics:         metrics,
		Accounts:        service,
		Tokens:          tokens,
		Reconciler:      reconciler,
		Google:          google,
		Resolver:        resolver,
		Checker:         checker,
		Currencies:      currencies.NewStore(db),
		Recorder:        recorder,
		AuditStore:      recorder,
		DefaultCurrency: cfg.Defaults.CurrencyCode,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthHandler(db, redisClient, metrics),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		startup.Infof("API server listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		startup.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		startup.Infof("Shutting down")
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			startup.Warnf("API server shutdown: %v", err)
		}
		return healthServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		startup.Fatalf("Server error: %v", err)
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func healthHandler(db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics) http.Handler {
	checker := observability.NewHealthChecker(db, redisClient)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", checker.Liveness)
	mux.HandleFunc("/readyz", checker.Readiness)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
