package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/xspensesai/billingkit/pkg/billing"
	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/config"
	"github.com/xspensesai/billingkit/pkg/email"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/environment"
	"github.com/xspensesai/billingkit/pkg/gate"
	"github.com/xspensesai/billingkit/pkg/httpserver"
	"github.com/xspensesai/billingkit/pkg/logger"
	"github.com/xspensesai/billingkit/pkg/notify"
	"github.com/xspensesai/billingkit/pkg/ops"
	"github.com/xspensesai/billingkit/pkg/payment"
	"github.com/xspensesai/billingkit/pkg/pg"
	"github.com/xspensesai/billingkit/pkg/redis"
	"github.com/xspensesai/billingkit/pkg/requestid"
	"github.com/xspensesai/billingkit/pkg/usage"
)

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	ctx := context.Background()

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "billingd exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	loc, err := time.LoadLocation(cfg.BillingLocation)
	if err != nil {
		return err
	}

	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	cat, err := catalog.New(ctx, catalog.NewFileSource(cfg.PlansPath))
	if err != nil {
		return err
	}

	// Webhook dedup uses Redis when available; the billing_events table
	// backs it otherwise.
	dedup := billing.NewPgDeduplicator(pool)
	readiness := []func(context.Context) error{pg.Healthcheck(pool)}
	if cfg.RedisURL != "" {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)
		rdb, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
		dedup = billing.NewRedisDeduplicator(rdb, 0)
		readiness = append(readiness, redis.Healthcheck(rdb))
	}

	accounts := entitlement.NewPgAccountStore(pool)
	addons := entitlement.NewPgAddonStore(pool)
	overrides := entitlement.NewPgLimitOverrideStore(pool)
	ledger := usage.NewLedger(usage.NewPgStore(pool), usage.WithLocation(loc))

	resolver := entitlement.NewResolver(accounts, addons, cat, ledger,
		entitlement.WithLimitOverrides(overrides),
		entitlement.WithLocation(loc),
	)

	var mailer email.EmailSender
	switch {
	case cfg.EmailDevDir != "":
		mailer = email.NewDevSender(cfg.EmailDevDir)
	case cfg.EmailEnabled:
		var emailCfg email.Config
		config.MustLoad(&emailCfg)
		mailer, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			return err
		}
	}
	notifyOpts := []notify.ManagerOption{notify.WithLogger(log)}
	if mailer != nil {
		notifyOpts = append(notifyOpts, notify.WithEmailSender(mailer))
	}
	notifier := notify.NewManager(notify.NewPgStorage(pool), notifyOpts...)

	stripeAPI := client.New(cfg.StripeSecretKey, nil)
	provider := payment.NewStripeProvider(stripeAPI, cfg.StripeWebhookSecret)
	prices := payment.PriceTable{
		Plans:   cfg.PlanPrices,
		Metered: cfg.meteredPrices(),
	}

	sync := billing.NewSynchronizer(accounts, provider, prices, cat, ledger,
		billing.NewPgOverageStore(pool),
		billing.WithNotifier(notifier),
		billing.WithLogger(log),
		billing.WithLocation(loc),
		billing.WithURLs(billing.URLs{
			CheckoutSuccess: cfg.CheckoutSuccessURL,
			CheckoutCancel:  cfg.CheckoutCancelURL,
			PortalReturn:    cfg.PortalReturnURL,
		}),
	)
	reconciler := billing.NewReconciler(accounts, addons,
		billing.NewPgSubscriptionStore(pool), dedup, prices,
		billing.WithReconcilerNotifier(notifier),
		billing.WithReconcilerLogger(log),
		billing.WithGracePeriod(cfg.GracePeriod),
	)

	facade := ops.NewFacade(sync, gate.New(resolver, ledger), resolver,
		ops.WithFacadeLogger(log))

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(environment.Middleware(environment.Environment(cfg.Env)))
	r.Use(ops.AccountHeaderMiddleware)
	r.Get("/health", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/ready", httpserver.HealthCheckHandler(ctx, log, readiness...))
	r.Mount("/", ops.Router(facade, provider, reconciler, log))

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("billingd listening", "addr", httpCfg.Addr)
		}),
	)
	return srv.Run(ctx, r)
}
