package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/telemon/telemon/internal/config"
	"github.com/telemon/telemon/internal/domain/alert"
	"github.com/telemon/telemon/internal/domain/consultation"
	"github.com/telemon/telemon/internal/domain/dailylog"
	"github.com/telemon/telemon/internal/domain/identity"
	"github.com/telemon/telemon/internal/domain/prescription"
	"github.com/telemon/telemon/internal/platform/audit"
	"github.com/telemon/telemon/internal/platform/auth"
	"github.com/telemon/telemon/internal/platform/db"
	"github.com/telemon/telemon/internal/platform/lock"
	"github.com/telemon/telemon/internal/platform/middleware"
	"github.com/telemon/telemon/internal/platform/realtime"
	"github.com/telemon/telemon/internal/platform/redisclient"
	"github.com/telemon/telemon/internal/platform/sandbox"
	"github.com/telemon/telemon/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "telemon-server",
		Short: "Clinical tele-monitoring API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(prescriptionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// connect loads configuration and opens the database pool.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
	})

	return cmd
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo clinicians, patients and reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedCfg := defaults
			seedCfg.Clinicians, _ = cmd.Flags().GetInt("clinicians")
			seedCfg.PatientsPerClinician, _ = cmd.Flags().GetInt("patients")
			seedCfg.ReportDays, _ = cmd.Flags().GetInt("days")
			seedCfg.Seed, _ = cmd.Flags().GetUint64("seed")

			dryRun, _ := cmd.Flags().GetBool("dry-run")

			logger := newLogger()
			ctx := context.Background()
			rec := audit.NewLogSink(logger)

			var targets sandbox.Targets
			if dryRun {
				targets = sandbox.NewMemoryStores().Targets(rec, logger)
			} else {
				_, pool, err := connect(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()

				people := identity.NewRepoPG(pool)
				reports := dailylog.NewService(dailylog.NewRepoPG(pool), alert.NewRepoPG(pool), people,
					db.NewTransactor(pool), sandbox.Discard{}, rec, logger)
				targets = sandbox.Targets{
					People:        people,
					Medications:   prescription.NewRepoPG(pool),
					Reports:       reports,
					Consultations: consultation.NewService(consultation.NewRepoPG(pool), people, rec, logger),
				}
			}

			res, err := sandbox.NewSeeder(seedCfg, targets, logger).Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			if dryRun {
				fmt.Print("[dry run] ")
			}
			fmt.Printf("Seeded %d clinician(s), %d patient(s), %d daily report(s), %d alert(s), %d consultation(s).\n",
				res.Clinicians, res.Patients, res.DailyReports, res.Alerts, res.Consultations)
			return nil
		},
	}
	cmd.Flags().Int("clinicians", defaults.Clinicians, "Number of clinicians")
	cmd.Flags().Int("patients", defaults.PatientsPerClinician, "Patients per clinician")
	cmd.Flags().Int("days", defaults.ReportDays, "Days of daily reports per patient")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one)")
	cmd.Flags().Bool("dry-run", false, "Generate into in-memory stores without touching the database")
	return cmd
}

func prescriptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prescriptions",
		Short: "Prescription maintenance",
	}

	resync := &cobra.Command{
		Use:   "resync",
		Short: "Replay a prescription into the patient's active medication list",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("id")
			id, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", raw, err)
			}

			logger := newLogger()
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := prescription.NewRepoPG(pool)
			svc := prescription.NewService(store, store, consultation.NewRepoPG(pool), identity.NewRepoPG(pool),
				db.NewTransactor(pool), audit.NewLogSink(logger), logger)

			n, err := svc.ResyncActiveList(ctx, id)
			if err != nil {
				return fmt.Errorf("resync failed: %w", err)
			}
			fmt.Printf("Resynced %d active medication(s) from prescription %s.\n", n, id)
			return nil
		},
	}
	resync.Flags().String("id", "", "Formal prescription id")
	_ = resync.MarkFlagRequired("id")
	cmd.AddCommand(resync)

	return cmd
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

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Notification transport. With Redis every instance publishes to the
	// relay and delivers to its own connected clinicians.
	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisclient.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		relay := realtime.NewRedisRelay(rdb, hub, logger)
		if err := relay.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start event relay")
		}
		publisher = relay
		logger.Info().Msg("redis event relay enabled")
	}
	dispatcher := realtime.NewDispatcher(publisher, cfg.NotifyBuffer, logger)
	go dispatcher.Run(ctx)

	// Compliance audit.
	recorders := audit.Multi{audit.NewLogSink(logger)}
	if len(cfg.KafkaBrokers) > 0 {
		sink := audit.NewKafkaSink(audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.AuditTopic, logger), logger)
		defer sink.Close()
		recorders = append(recorders, sink)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.AuditTopic).Msg("kafka audit sink enabled")
	}

	// Domain wiring.
	tx := db.NewTransactor(pool)
	people := identity.NewRepoPG(pool)
	alertRepo := alert.NewRepoPG(pool)
	consultRepo := consultation.NewRepoPG(pool)
	rxStore := prescription.NewRepoPG(pool)

	alertSvc := alert.NewService(alertRepo, people, dispatcher, recorders, logger)
	alertSvc.SetSLAWindow(cfg.SLAWindow)

	reportSvc := dailylog.NewService(dailylog.NewRepoPG(pool), alertRepo, people, tx, dispatcher, recorders, logger)
	if cfg.RiskPatientLock {
		reportSvc.SetLocker(lock.NewRedisPatientLocker(rdb, cfg.LockTTL))
		logger.Info().Dur("ttl", cfg.LockTTL).Msg("per-patient risk evaluation lock enabled")
	}

	consultSvc := consultation.NewService(consultRepo, people, recorders, logger)
	rxSvc := prescription.NewService(rxStore, rxStore, consultRepo, people, tx, recorders, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	dailylog.NewHandler(reportSvc).RegisterRoutes(apiV1)
	alert.NewHandler(alertSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(rxSvc).RegisterRoutes(apiV1)
	realtime.NewStreamHandler(hub, cfg.CORSOrigins, logger).RegisterRoutes(apiV1)

	go func() {
		addr := ":" + cfg.Port
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	stop()
	if n := dispatcher.Dropped(); n > 0 {
		logger.Warn().Int64("dropped", n).Msg("notifications dropped since start")
	}
	logger.Info().Msg("server stopped")
	return nil
}
