package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/astro-bot/internal/bot"
	"github.com/Proton-105/astro-bot/internal/collaborator"
	"github.com/Proton-105/astro-bot/internal/database"
	"github.com/Proton-105/astro-bot/internal/domain"
	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/flow"
	"github.com/Proton-105/astro-bot/internal/geo"
	"github.com/Proton-105/astro-bot/internal/health"
	"github.com/Proton-105/astro-bot/internal/i18n"
	"github.com/Proton-105/astro-bot/internal/idempotency"
	"github.com/Proton-105/astro-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/astro-bot/internal/jobs/handlers"
	"github.com/Proton-105/astro-bot/internal/lifecycle"
	"github.com/Proton-105/astro-bot/internal/menu"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/internal/middleware"
	"github.com/Proton-105/astro-bot/internal/output"
	"github.com/Proton-105/astro-bot/internal/ratelimit"
	"github.com/Proton-105/astro-bot/internal/repository"
	"github.com/Proton-105/astro-bot/internal/session"
	"github.com/Proton-105/astro-bot/internal/transport/telegram"
	"github.com/Proton-105/astro-bot/internal/transport/webhook"
	"github.com/Proton-105/astro-bot/internal/user"
	"github.com/Proton-105/astro-bot/internal/validation"
	"github.com/Proton-105/astro-bot/pkg/config"
	"github.com/Proton-105/astro-bot/pkg/graceful"
	"github.com/Proton-105/astro-bot/pkg/logger"
	"github.com/Proton-105/astro-bot/pkg/metrics"
	redisclient "github.com/Proton-105/astro-bot/pkg/redis"

	_ "github.com/lib/pq"
)

const (
	sweepLimit          = 500
	collectorInterval   = 30 * time.Second
	limiterSweepEvery   = time.Minute
	limiterMaxWindow    = time.Hour
	defaultMigrationDir = "migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "init sentry: %v\n", err)
		}
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting astro bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.Bool("whatsapp", cfg.WhatsApp.Enabled),
		slog.Bool("telegram", cfg.Telegram.Enabled),
	)

	err = run(ctx, cfg, v, log)
	sentry.Flush(2 * time.Second)
	if err != nil {
		log.Error("astro bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("astro bot shut down")
}

// submitterFunc lets a channel be built before the bot it feeds.
type submitterFunc func(env *message.Envelope) error

func (f submitterFunc) Submit(env *message.Envelope) error { return f(env) }

func run(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger) error {
	checker := health.NewChecker(log)
	shutdown := lifecycle.NewShutdown(log)

	var rdb *goredis.Client
	if cfg.Redis.Addr != "" {
		client, err := redisclient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		rdb = client
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
		shutdown.Register("redis", lifecycle.PhaseRelease, func(context.Context) error { return rdb.Close() })
	} else {
		log.Warn("redis address not set, sessions and dedupe records are kept in memory")
	}

	repo, err := openRepository(ctx, cfg, rdb, checker, shutdown, log)
	if err != nil {
		return err
	}

	tr, err := i18n.Load(cfg.I18n.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	guards := menu.DefaultGuards()
	catalog, err := menu.LoadDefault(guards)
	if err != nil {
		return fmt.Errorf("load menu catalog: %w", err)
	}
	resolver := menu.NewResolver(catalog, guards, menu.Options{
		DisplayThreshold: cfg.Menu.DisplayThreshold,
		MaxFavorites:     cfg.Menu.MaxFavorites,
		MaxStackDepth:    cfg.Session.MaxStackDepth,
	})

	var store session.Store = session.NewMemoryStore()
	var locker session.DistributedLocker
	if rdb != nil {
		store = session.NewRedisStore(rdb, log, cfg.Session.TTL)
		if cfg.Session.DistributedLock {
			locker = session.NewRedisLocker(rdb, cfg.Session.LockWait)
		}
	}
	sessions := session.NewManager(store, session.Options{
		TTL:           cfg.Session.TTL,
		LockTTL:       cfg.Session.LockTTL,
		MaxStackDepth: cfg.Session.MaxStackDepth,
		KnownNode:     catalog.Has,
		Locker:        locker,
		Logger:        log,
	})

	users := user.NewService(repo, log, nil)
	users.UseLock(sessions.WithLock)

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)
	errHandler.OnHandled(func(kind apperrors.Kind, code string) {
		metrics.RecordError(string(kind), code)
	})

	guard := collaborator.GuardOptions{
		Timeout:  cfg.Collaborators.Timeout,
		Retry:    apperrors.DefaultRetryPolicy,
		Observer: metrics.ObserveCollaborator,
		Logger:   log,
	}

	var geocoder geo.Geocoder = geo.NewGazetteer()
	if cfg.Collaborators.Geocoder.Provider == "http" {
		geocoder = geo.NewHTTPGeocoder(cfg.Collaborators.Geocoder.BaseURL, cfg.Collaborators.Geocoder.UserAgent, cfg.Collaborators.Timeout, log)
	}

	content, err := collaborator.NewTemplateContent(time.Now)
	if err != nil {
		return fmt.Errorf("load content templates: %w", err)
	}

	engine := flow.New(flow.Deps{
		Sessions:   sessions,
		Users:      users,
		Resolver:   resolver,
		Validators: validation.NewPipeline(collaborator.NewGuardedGeocoder(geocoder, guard), time.Now),
		Content:    collaborator.NewGuardedContent(content, guard),
		Payments:   collaborator.NewGuardedPayment(collaborator.NewSandboxPayment(time.Now), guard),
		Plans: collaborator.PlanCatalog{
			Currency: cfg.Collaborators.Payment.Currency,
			Prices: map[domain.Tier]int64{
				domain.TierEssential: cfg.Collaborators.Payment.EssentialPrice,
				domain.TierPremium:   cfg.Collaborators.Payment.PremiumPrice,
			},
			Period: time.Duration(cfg.Collaborators.Payment.PeriodDays) * 24 * time.Hour,
		},
		I18n:   tr,
		Errors: errHandler,
		Logger: log,
	}, flow.Options{MaxRecent: cfg.Menu.MaxRecent})

	dedupeMemory := idempotency.NewMemoryStore()
	var dedupeStore idempotency.Store = dedupeMemory
	if rdb != nil {
		dedupeStore = idempotency.NewRedisStore(rdb, log)
	}

	rules := ratelimit.NewRules(cfg.RateLimit)
	memLimiter := ratelimit.NewMemoryLimiter(log, nil)
	var limiter ratelimit.Limiter = memLimiter
	if rdb != nil {
		adaptive := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memLimiter, log)
		adaptive.Observe(metrics.RecordRateLimit, metrics.RecordRateLimitBackendError)
		limiter = adaptive
	}

	config.Watch(v, func(next *config.Config) {
		rules.Reload(next.RateLimit)
		logger.SetLevel(next.Logger.Level)
		log.Info("configuration reloaded")
	}, func(err error) {
		log.Warn("ignoring invalid configuration change", slog.Any("error", err))
	})

	var (
		jobManager jobs.Manager
		redisOpt   asynq.RedisClientOpt
		queue      output.Enqueuer
	)
	if rdb != nil && cfg.Jobs.Enabled {
		redisOpt = redisclient.AsynqOpt(cfg.Redis)
		jobManager = jobs.NewManager(redisOpt, log)
		queue = jobs.NewDeliveryQueue(jobManager, log)
		shutdown.Register("jobs client", lifecycle.PhaseRelease, func(context.Context) error { return jobManager.Close() })
	}

	var b *bot.Bot
	senders := map[string]output.Sender{}
	if cfg.WhatsApp.Enabled {
		senders[output.ChannelWhatsApp] = output.NewWhatsAppSender(output.WhatsAppConfig{
			APIURL:        cfg.WhatsApp.APIURL,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
			Timeout:       cfg.WhatsApp.SendTimeout,
		}, log)
	}

	var tg *telegram.Channel
	if cfg.Telegram.Enabled {
		tg, err = telegram.New(cfg.Telegram, submitterFunc(func(env *message.Envelope) error {
			return b.Submit(env)
		}), log)
		if err != nil {
			return err
		}
		senders[telegram.ChannelName] = telegram.NewSender(tg.Telebot())
		checker.AddCheck("telegram", health.NewTelegramChecker(tg.Telebot()))
	}

	adapter := output.NewAdapter(senders, queue, output.Options{
		SendTimeout:    cfg.WhatsApp.SendTimeout,
		DefaultChannel: output.ChannelWhatsApp,
		Observer:       metrics.RecordDelivery,
	}, log)

	b = bot.New(bot.Deps{
		Engine:    engine,
		Output:    adapter,
		Dedupe:    idempotency.NewManager(dedupeStore, log),
		RateLimit: middleware.NewRateLimitMiddleware(limiter, rules, log),
		Errors:    errHandler,
		I18n:      tr,
		Logger:    log,
	}, bot.Options{
		DedupeTTL:   cfg.Idempotency.TTL,
		TurnTimeout: 3 * cfg.Collaborators.Timeout,
	})

	probes := lifecycle.NewProbes(checker.Ready, log)
	server := graceful.NewServer(cfg.Server, webhook.NewRouter(webhook.Config{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
	}, b, probes, log), log)

	shutdown.Register("readiness", lifecycle.PhaseIntake, probes.Drain)
	shutdown.Register("http", lifecycle.PhaseIntake, server.Shutdown)
	if tg != nil {
		shutdown.Register("telegram", lifecycle.PhaseIntake, func(context.Context) error {
			tg.Stop()
			return nil
		})
	}
	shutdown.Register("dispatcher", lifecycle.PhaseDrain, b.Stop)

	if jobManager != nil {
		worker := jobs.NewWorker(redisOpt, nil, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeDeliver, jobhandlers.NewDeliverHandler(adapter, jobManager, log))
		worker.RegisterHandler(jobs.TaskTypeExpireSubscriptions, jobhandlers.NewExpireSubscriptionsHandler(users, tr, log))
		if err := worker.Start(); err != nil {
			return fmt.Errorf("start jobs worker: %w", err)
		}

		scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.SweepCron, log)
		if err := scheduler.RegisterTasks(); err != nil {
			return fmt.Errorf("register periodic tasks: %w", err)
		}
		scheduler.Run()

		shutdown.Register("jobs worker", lifecycle.PhaseDrain, func(context.Context) error {
			worker.Shutdown()
			return nil
		})
		shutdown.Register("scheduler", lifecycle.PhaseDrain, func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	} else {
		log.Info("background jobs disabled, subscriptions expire on the user's next turn only")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return server.ListenAndServe(gctx) })
	if tg != nil {
		go tg.Start()
	}

	g.Go(func() error {
		metrics.NewSessionCollector(store, collectorInterval, log).Run(gctx)
		return nil
	})
	g.Go(func() error {
		session.NewCleaner(sessions, store, log, cfg.Session.TTL, cfg.Session.CleanupInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		idempotency.NewCleaner(rdb, dedupeMemory, log, cfg.Idempotency.CleanupInterval, cfg.Idempotency.TTL).Run(gctx)
		return nil
	})
	g.Go(func() error {
		memLimiter.Run(gctx, limiterSweepEvery, limiterMaxWindow)
		return nil
	})
	if rdb != nil {
		g.Go(func() error {
			ratelimit.NewCleaner(rdb, log, limiterSweepEvery, limiterMaxWindow).Run(gctx)
			return nil
		})
	}

	<-gctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := shutdown.Execute(shutdownCtx)
	if err := g.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

func openRepository(ctx context.Context, cfg *config.Config, rdb *goredis.Client, checker *health.Checker, shutdown *lifecycle.Shutdown, log *slog.Logger) (repository.UserRepository, error) {
	var repo repository.UserRepository

	if cfg.Database.Host == "" {
		log.Warn("database host not set, profiles are kept in memory")
		repo = repository.NewMemoryRepository()
	} else {
		db, err := sql.Open("postgres", cfg.GetDBConnectionString())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}

		dir := cfg.Database.MigrationsDir
		if dir == "" {
			dir = defaultMigrationDir
		}
		if err := database.NewMigrator(db, log).ApplyDir(ctx, dir); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("database migrations applied")

		checker.AddCheck("postgres", health.NewDBChecker(db))
		shutdown.Register("postgres", lifecycle.PhaseRelease, func(context.Context) error { return db.Close() })
		repo = repository.NewPostgresRepository(db, log)
	}

	if rdb != nil && cfg.Redis.ProfileTTL > 0 {
		repo = repository.NewCachedRepository(repo, rdb, cfg.Redis.ProfileTTL, log)
	}
	return repo, nil
}
