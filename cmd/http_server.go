package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/frahmantamala/ward-census/internal"
	"github.com/frahmantamala/ward-census/internal/auditlog"
	auditpg "github.com/frahmantamala/ward-census/internal/auditlog/postgres"
	"github.com/frahmantamala/ward-census/internal/auth"
	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/dashboard"
	"github.com/frahmantamala/ward-census/internal/draft"
	draftpg "github.com/frahmantamala/ward-census/internal/draft/postgres"
	"github.com/frahmantamala/ward-census/internal/maintenance"
	"github.com/frahmantamala/ward-census/internal/notification"
	notificationpg "github.com/frahmantamala/ward-census/internal/notification/postgres"
	"github.com/frahmantamala/ward-census/internal/ratelimit"
	"github.com/frahmantamala/ward-census/internal/session"
	sessionpg "github.com/frahmantamala/ward-census/internal/session/postgres"
	"github.com/frahmantamala/ward-census/internal/transport"
	"github.com/frahmantamala/ward-census/internal/transport/rest"
	"github.com/frahmantamala/ward-census/internal/user"
	userpg "github.com/frahmantamala/ward-census/internal/user/postgres"
	"github.com/frahmantamala/ward-census/internal/ward"
	wardpg "github.com/frahmantamala/ward-census/internal/ward/postgres"
	"github.com/frahmantamala/ward-census/internal/wardform"
	wardformpg "github.com/frahmantamala/ward-census/internal/wardform/postgres"
	"github.com/frahmantamala/ward-census/pkg/logger"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server together with the in-process maintenance scheduler`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Gorm      *gorm.DB
	Redis     *redis.Client
	Router    *chi.Mux
	Logger    *slog.Logger
	Bus       *events.EventBus
	Scheduler *maintenance.Scheduler
	Pool      *maintenance.Pool
	closers   []func()
}

func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		deps.Scheduler.Run(ctx)
	}()

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			stop()
			<-schedulerDone
			deps.Pool.Shutdown()
			deps.Close()
			os.Exit(1)
		}
	}

	stop()
	<-schedulerDone
	deps.Pool.Shutdown()
	deps.Bus.Wait()

	deps.Logger.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logOpts := logger.Options{
		Env:    os.Getenv("APP_ENV"),
		Level:  config.Logging.Level,
		Format: config.Logging.Format,
	}
	// the recorder's own failures go to a logger that never persists
	plain := logger.Setup(logOpts)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps := &Dependencies{Config: config, DB: db}
	deps.closers = append(deps.closers, func() {
		if err := db.Close(); err != nil {
			plain.Error("Database close error", "error", err)
		}
	})

	gdb, err := initGorm(db)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	deps.Gorm = gdb

	logRepo := auditpg.NewLogRepository(db)
	recorder := auditlog.NewRecorder(logRepo, plain)
	log := plain
	if config.Logs.PersistErrors {
		logOpts.Sink = recorder
		log = logger.Setup(logOpts)
	}
	deps.Logger = log

	if config.Redis.Enabled {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err := deps.Redis.Ping(context.Background()).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.closers = append(deps.closers, func() { _ = deps.Redis.Close() })
	}

	var limiterStore ratelimit.Store
	if config.RateLimit.Backend == "redis" {
		limiterStore = ratelimit.NewRedisStore(deps.Redis, "ward-census:ratelimit")
	} else {
		mem := ratelimit.NewMemoryStore(time.Minute)
		deps.closers = append(deps.closers, mem.Close)
		limiterStore = mem
	}
	loginLimiter := ratelimit.NewLimiter(limiterStore,
		ratelimit.WithMaxAttempts(config.RateLimit.MaxAttempts),
		ratelimit.WithWindow(config.RateLimit.Window),
		ratelimit.WithBlockDuration(config.RateLimit.BlockDuration),
		ratelimit.WithLogger(log),
	)
	throttle := ratelimit.NewThrottle(config.RateLimit.APIRate, config.RateLimit.APIBurst)
	proxies, err := ratelimit.ParseTrustedProxies(config.Server.TrustedProxyList())
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to parse trusted proxies: %w", err)
	}

	sessions := session.NewManager(sessionpg.NewSessionRepository(gdb), config.Session.IdleTimeout, log)

	userRepo := userpg.NewUserRepository(gdb)
	userService := user.NewService(userRepo, sessions, config.Security.BCryptCost, log)

	authService := auth.NewService(
		userRepo,
		sessions,
		auth.NewJWTTokenIssuer(config.Security.TokenSecret, config.Security.TokenTTL),
		recorder,
		config.Security.ActiveCheckTTL,
		log,
	)

	wardService := ward.NewService(wardpg.NewWardRepository(gdb), log)
	draftService := draft.NewService(draftpg.NewDraftRepository(gdb), config.Draft.TTL, log)

	bus := events.NewEventBus(log)
	deps.Bus = bus

	formService := wardform.NewService(
		wardformpg.NewWardFormRepository(gdb),
		draftService,
		wardService,
		bus,
		config.Census.MaxPatientsPerRN,
		log,
	)

	notificationService := notification.NewService(notificationpg.NewNotificationRepository(gdb), log)
	notification.NewSubscriber(notificationService, userService, log).Register(bus)

	dashboardService := dashboard.NewService(wardService, formService, config.Census.MaxPatientsPerRN, log)
	logService := auditlog.NewService(logRepo, recorder, log)

	deps.Pool = maintenance.NewPool(maintenance.PoolConfig{
		MaxWorkers:   config.Worker.MaxWorkers,
		JobQueueSize: config.Worker.JobQueueSize,
	}, log)
	deps.Scheduler = maintenance.NewScheduler(deps.Pool, log,
		maintenance.SessionCleanupTask(sessions, config.Session.CleanupInterval),
		maintenance.DraftPurgeTask(draftService, config.Worker.DraftPurgeInterval),
		maintenance.LogRetentionTask(logService, config.Logs.Retention, config.Worker.LogPurgeInterval),
		maintenance.Task{
			Job: maintenance.Job{Name: "throttle_evict", Run: func(context.Context) (int64, error) {
				throttle.Evict()
				return 0, nil
			}},
			Interval: 10 * time.Minute,
		},
	)

	base := transport.NewBaseHandler(log)
	cookies := auth.NewCookies(config.Security.CookieSecure)
	cookies.MaxAge = config.Security.TokenTTL

	router := chi.NewRouter()
	routes := rest.Dependencies{
		DB:             db.DB,
		Base:           base,
		Logger:         log,
		AllowedOrigins: splitOrigins(config.Server.AllowedOrigins),
		TrustedProxies: proxies,
		LoginLimiter:   loginLimiter,
		Throttle:       throttle,
		Authn:          auth.NewMiddleware(base, authService, cookies),
		Auth:           auth.NewHandler(base, authService, cookies),
		Users:          user.NewHandler(base, userService),
		Wards:          ward.NewHandler(base, wardService),
		Forms:          wardform.NewHandler(base, formService),
		Notifications:  notification.NewHandler(base, notificationService),
		Dashboard:      dashboard.NewHandler(base, dashboardService),
		Logs:           auditlog.NewHandler(base, logService),
	}
	if deps.Redis != nil {
		routes.Redis = deps.Redis
	}
	rest.RegisterAllRoutes(router, routes)
	deps.Router = router

	return deps, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}
