package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/interex/interex/internal/config"
	"github.com/interex/interex/internal/domain/auditevent"
	"github.com/interex/interex/internal/domain/securityevent"
	"github.com/interex/interex/internal/platform/auth"
	"github.com/interex/interex/internal/platform/db"
	"github.com/interex/interex/internal/platform/ledger"
	"github.com/interex/interex/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "interex-server",
		Short: "Interex back-office audit ledger server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the audit API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "tenant_default", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage customer organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating tenant schema: %s\n", db.SchemaFor(name))
			if err := db.CreateTenantSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func digestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Fold a window of security events into the digest chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			fromStr, _ := cmd.Flags().GetString("from")
			toStr, _ := cmd.Flags().GetString("to")

			var window *ledger.Window
			if fromStr != "" || toStr != "" {
				from, err := time.Parse(time.RFC3339, fromStr)
				if err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
				to, err := time.Parse(time.RFC3339, toStr)
				if err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				window = &ledger.Window{From: from, To: to}
			}

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.WithTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			store := ledger.NewStorePG(pool)
			writer := ledger.NewChainWriter(store, logger,
				ledger.WithPayloadBudgets(cfg.AuditMetadataMaxBytes, cfg.AuditDiffMaxBytes))
			job := ledger.NewDigestJob(store, writer, logger,
				ledger.WithMaxRows(cfg.DigestMaxRows))

			res, err := job.Run(ctx, window)
			if err != nil {
				return err
			}

			switch {
			case res.Skipped:
				fmt.Printf("Window [%s, %s) already digested, nothing to do.\n",
					res.From.Format(time.RFC3339), res.To.Format(time.RFC3339))
			case !res.Created:
				fmt.Println("Digest computed but the ledger entry was not written; see logs.")
			default:
				fmt.Printf("Digested %d event(s) in [%s, %s): %s\n",
					res.Count, res.From.Format(time.RFC3339), res.To.Format(time.RFC3339), res.Hash)
				if res.Truncated {
					fmt.Printf("Window truncated at %d rows; rerun with a higher DIGEST_MAX_ROWS to supersede.\n", cfg.DigestMaxRows)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("tenant", "default", "Tenant identifier")
	cmd.Flags().String("from", "", "Window start (RFC3339), defaults to previous UTC day")
	cmd.Flags().String("to", "", "Window end (RFC3339), exclusive")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute and check the hash chain for a chain key",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			chain, _ := cmd.Flags().GetString("chain")
			if chain == "" {
				return fmt.Errorf("--chain is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, release, err := db.WithTenant(ctx, pool, tenant)
			if err != nil {
				return err
			}
			defer release()

			res, err := ledger.VerifyChain(ctx, ledger.NewStorePG(pool), chain)
			if err != nil {
				return err
			}

			if res.OK {
				fmt.Printf("Chain %s verified: %d entries intact.\n", res.ChainKey, res.Entries)
				return nil
			}
			fmt.Printf("Chain %s BROKEN at seq %d: %s\n", res.ChainKey, res.BadSeq, res.Reason)
			os.Exit(2)
			return nil
		},
	}
	cmd.Flags().String("tenant", "default", "Tenant identifier")
	cmd.Flags().String("chain", "", "Chain key to verify")
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Ledger core
	store := ledger.NewStorePG(pool)
	writer := ledger.NewChainWriter(store, logger,
		ledger.WithPayloadBudgets(cfg.AuditMetadataMaxBytes, cfg.AuditDiffMaxBytes))
	audit := ledger.NewAuditLogger(writer)
	recorder := securityevent.NewRecorder(store, logger)

	digestOpts := []ledger.DigestOption{ledger.WithMaxRows(cfg.DigestMaxRows)}
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		client := redis.NewClient(redisOpts)
		digestOpts = append(digestOpts,
			ledger.WithGate(ledger.NewRedisGate(client, "", cfg.DigestMinInterval)))
		logger.Info().Msg("digest gate backed by redis")
	} else {
		digestOpts = append(digestOpts,
			ledger.WithGate(ledger.NewMemoryGate(cfg.DigestMinInterval)))
	}
	digestJob := ledger.NewDigestJob(store, writer, logger, digestOpts...)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevMiddleware())
	} else {
		e.Use(auth.Middleware([]byte(cfg.AuthSigningKey)))
	}

	e.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))

	e.Use(middleware.Audit(logger, middleware.AuditRecorderFunc(
		func(c echo.Context, entry middleware.AuditEntry) {
			status := ledger.StatusSuccess
			if entry.StatusCode >= 400 {
				status = ledger.StatusFailure
			}
			audit.Admin(c.Request().Context(), ledger.Fields{
				Action:       strings.ToUpper(strings.ReplaceAll(entry.Resource, "-", "_") + "_" + entry.Action),
				Status:       status,
				ActorID:      entry.UserID,
				ActorDisplay: entry.UserDisplay,
				EntityType:   entry.Resource,
				EntityID:     entry.ResourceID,
				Summary:      entry.Method + " " + entry.Path,
				Metadata: map[string]any{
					"remote_ip":   entry.IPAddress,
					"user_agent":  entry.UserAgent,
					"status_code": entry.StatusCode,
				},
			})
		})))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		OnLimited: func(c echo.Context) {
			recorder.RateLimited(c.Request().Context(), securityevent.Event{
				IPAddress: c.RealIP(),
				Reason:    c.Request().Method + " " + c.Path(),
			})
		},
	}))

	auditRepo := auditevent.NewRepoPG(pool)
	auditevent.NewHandler(auditevent.NewService(auditRepo, store)).RegisterRoutes(apiV1)
	securityevent.NewHandler(securityevent.NewRepoPG(pool), store).RegisterRoutes(apiV1)

	// Daily digest pass. The gate keeps concurrent replicas from racing and
	// the idempotency lookup makes reruns harmless.
	digestCtx, stopDigest := context.WithCancel(ctx)
	defer stopDigest()
	go runDigestLoop(digestCtx, digestJob, pool, cfg.DefaultTenant, logger)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runDigestLoop triggers one digest pass shortly after startup and then once
// an hour. Most passes are skips; only the first run after a UTC day rollover
// writes a new digest entry. Each pass is scoped to the default tenant's
// schema the same way a request would be.
func runDigestLoop(ctx context.Context, job *ledger.DigestJob, pool *pgxpool.Pool, tenant string, logger zerolog.Logger) {
	timer := time.NewTimer(time.Minute)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res, err := runDigestPass(ctx, job, pool, tenant)
		if err != nil {
			logger.Error().Err(err).Msg("digest pass failed")
		} else if res.Created {
			logger.Info().
				Time("from", res.From).
				Time("to", res.To).
				Int("count", res.Count).
				Str("hash", res.Hash).
				Msg("security event digest recorded")
		}

		timer.Reset(time.Hour)
	}
}

func runDigestPass(ctx context.Context, job *ledger.DigestJob, pool *pgxpool.Pool, tenant string) (*ledger.DigestResult, error) {
	ctx, release, err := db.WithTenant(ctx, pool, tenant)
	if err != nil {
		return nil, err
	}
	defer release()
	return job.Run(ctx, nil)
}
