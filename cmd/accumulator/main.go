package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maven/accumulator/internal/config"
	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/accumulation/filegen"
	"github.com/maven/accumulator/internal/domain/accumulation/reconcile"
	"github.com/maven/accumulator/internal/domain/costbreakdown"
	"github.com/maven/accumulator/internal/domain/healthplan"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/domain/procedure"
	"github.com/maven/accumulator/internal/domain/wallet"
	"github.com/maven/accumulator/internal/platform/auth"
	"github.com/maven/accumulator/internal/platform/blobstore"
	"github.com/maven/accumulator/internal/platform/db"
	"github.com/maven/accumulator/internal/platform/locker"
	"github.com/maven/accumulator/internal/platform/middleware"
	"github.com/maven/accumulator/internal/platform/queue"
	"github.com/maven/accumulator/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "accumulator",
		Short:        "Payer deductible accumulation service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(statusRequestCmd())
	rootCmd.AddCommand(consumeCmd())
	rootCmd.AddCommand(reconcile277Cmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func startupFailed(logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("startup failed")
	return err
}

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool

	payers     *payer.Directory
	sources    filegen.Sources
	service    *accumulation.Service
	reconciler *reconcile.Reconciler
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")

	payers := payer.NewDirectory(payer.NewRepoPG(pool))
	plans := healthplan.NewRepoPG(pool)
	wallets := wallet.NewRepoPG(pool)
	costs := costbreakdown.NewRepoPG(pool)
	mappings := accumulation.NewRepoPG(pool)

	resolver := payer.NewResolver(healthplan.NewTemporalPlanLookup(plans), payers, logger)
	svc := accumulation.NewService(mappings, wallets, costs, resolver, db.NewTxManager(pool), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		payers:  payers,
		service: svc,
		sources: filegen.Sources{
			Mappings:   mappings,
			Plans:      plans,
			Procedures: procedure.NewRepoPG(pool),
			Wallets:    wallets,
			Costs:      costs,
		},
		reconciler: reconcile.NewReconciler(svc, logger),
	}, nil
}

func (a *app) Close() { a.pool.Close() }

func (a *app) fileConfig() filegen.Config {
	return filegen.Config{
		SubmitterID:    a.cfg.SubmitterID,
		SubmitterName:  a.cfg.SubmitterName,
		ProviderNPI:    a.cfg.ProviderNPI,
		ProviderName:   a.cfg.ProviderName,
		UsageIndicator: a.cfg.X12UsageIndicator,
	}
}

// submitter wires the blob store and lock backend. Without MinIO or Redis
// configured, files stay in memory and locks are process-local.
func (a *app) submitter(ctx context.Context) (*filegen.Submitter, error) {
	var store blobstore.BlobStore = blobstore.NewInMemoryBlobStore()
	if a.cfg.MinioEndpoint != "" {
		s, err := blobstore.NewMinioBlobStore(ctx, blobstore.MinioConfig{
			Endpoint:  a.cfg.MinioEndpoint,
			AccessKey: a.cfg.MinioAccessKey,
			SecretKey: a.cfg.MinioSecretKey,
			UseSSL:    a.cfg.MinioUseSSL,
			Bucket:    a.cfg.AccumulationBucket,
		})
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		a.logger.Warn().Msg("MINIO_ENDPOINT not set; generated files are kept in memory")
	}

	var locks locker.Locker = locker.NewMemoryLocker()
	if a.cfg.RedisURL != "" {
		client, err := locker.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		locks = locker.NewRedisLocker(client, "accumulator:", a.logger)
	}

	return filegen.NewSubmitter(a.sources.Mappings, store, locks, db.NewTxManager(a.pool), a.cfg.GenerationLockTTL, a.logger), nil
}

func (a *app) lookupPayer(ctx context.Context, name string) (*payer.Payer, error) {
	p, err := a.payers.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !p.IsAccumulationEnabled() {
		return nil, fmt.Errorf("payer %s is not accumulation-report enabled", p.PayerName)
	}
	return p, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return startupFailed(newLogger(nil), err)
	}
	defer a.Close()
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool, func() *db.PoolStats { return db.GetPoolStats(a.pool) }))

	apiV1 := e.Group("/api/v1")
	if a.cfg.WebhookJWTSecret == "" {
		logger.Warn().Msg("running without bearer-token authentication")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		key, err := signingKey(a.cfg.WebhookJWTSecret)
		if err != nil {
			return err
		}
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{Issuer: a.cfg.WebhookJWTIssuer, SigningKey: key}))
	}

	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
	}))

	payer.NewHandler(a.payers).RegisterRoutes(apiV1)
	accumulation.NewHandler(a.service).RegisterRoutes(apiV1)
	reconcile.NewHandler(a.reconciler).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
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
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// signingKey accepts the webhook secret as hex or as raw text.
func signingKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is empty")
	}
	if b, err := hex.DecodeString(secret); err == nil && len(b) >= 16 {
		return b, nil
	}
	return []byte(secret), nil
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render and upload the accumulation file for a payer",
		RunE: func(cmd *cobra.Command, args []string) error {
			payerName, _ := cmd.Flags().GetString("payer")
			planCode, _ := cmd.Flags().GetString("health-plan-code")
			rawIDs, _ := cmd.Flags().GetString("employer-plan-ids")
			ids, err := parseIDs(rawIDs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.lookupPayer(ctx, payerName)
			if err != nil {
				return err
			}
			scope := filegen.Scope{HealthPlanCode: planCode, EmployerHealthPlanIDs: ids}
			gen, err := filegen.ForPayer(p, a.sources, scope, a.fileConfig(), time.Now(), a.logger)
			if err != nil {
				return err
			}
			return submit(ctx, cmd, a, gen)
		},
	}
	cmd.Flags().String("payer", "", "Payer name or code")
	cmd.Flags().String("health-plan-code", "", "Health plan code printed in the file")
	cmd.Flags().String("employer-plan-ids", "", "Comma separated employer health plan ids to include")
	_ = cmd.MarkFlagRequired("payer")
	return cmd
}

func statusRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status-request",
		Short: "Render and upload an X12 276 claim status request for submitted mappings",
		RunE: func(cmd *cobra.Command, args []string) error {
			payerName, _ := cmd.Flags().GetString("payer")

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.lookupPayer(ctx, payerName)
			if err != nil {
				return err
			}
			gen := filegen.NewClaimStatusGenerator(p, a.sources, filegen.Scope{}, a.fileConfig(), time.Now(), a.logger)
			return submit(ctx, cmd, a, gen)
		},
	}
	cmd.Flags().String("payer", "", "Payer name or code")
	_ = cmd.MarkFlagRequired("payer")
	return cmd
}

func submit(ctx context.Context, cmd *cobra.Command, a *app, gen filegen.Generator) error {
	sub, err := a.submitter(ctx)
	if err != nil {
		return err
	}
	res, err := sub.Submit(ctx, gen)
	if err != nil {
		return err
	}
	if !res.Uploaded {
		fmt.Fprintf(cmd.OutOrStdout(), "No rows to submit for %s (%d skipped).\n", res.PayerName, res.Skipped)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s: %d row(s), %d skipped, %d marked submitted, %d stale.\n",
		res.ObjectKey, res.Rows, res.Skipped, res.Submitted, res.Stale)
	return nil
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Apply payer responses from the response queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.RabbitMQURL == "" {
				return fmt.Errorf("RABBITMQ_URL is required")
			}

			conn, err := queue.Dial(a.cfg.RabbitMQURL)
			if err != nil {
				return err
			}
			defer conn.Close()

			consumer, err := queue.NewConsumer(conn, a.cfg.ResponseQueue, a.cfg.QueuePrefetch, a.logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			a.logger.Info().Str("queue", a.cfg.ResponseQueue).Msg("consuming payer responses")
			return consumer.Run(ctx, a.reconciler.QueueHandler())
		},
	}
}

func reconcile277Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-277 <file>",
		Short: "Apply the claim statuses of an X12 277 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.reconciler.Apply277(ctx, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d, unmatched %d, pending %d.\n", s.Applied, len(s.Unmatched), s.Ignored)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := migrationPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := migrationPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})
	return cmd
}

func migrationPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, db.PoolConfig{DatabaseURL: cfg.DatabaseURL, MaxConns: 2})
}

// parseIDs reads a comma separated list of positive ids.
func parseIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid employer plan id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
