package main

import (
	"context"
	"database/sql"
	"errors"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/kylycht/ratebot/controller/bot"
	"github.com/kylycht/ratebot/controller/converter"
	_ "github.com/kylycht/ratebot/docs"
	"github.com/kylycht/ratebot/metrics"
	"github.com/kylycht/ratebot/model"
	"github.com/kylycht/ratebot/service"
	"github.com/kylycht/ratebot/service/coingecko"
	"github.com/kylycht/ratebot/service/forex"
	"github.com/kylycht/ratebot/service/resolver"
	"github.com/kylycht/ratebot/service/transport"
	"github.com/kylycht/ratebot/storage"
	"github.com/kylycht/ratebot/storage/cache"
	"github.com/kylycht/ratebot/storage/persistence"
	"github.com/kylycht/ratebot/storage/session"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type Application struct {
	cfg      Config               // application configuration
	fiberApp *fiber.App           // underlying fiber application
	db       storage.Storage      // catalog provider
	dbConn   *sql.DB              // underlying persistence connection, nil for builtin catalog
	catalog  *model.Catalog       // supported currencies
	cache    storage.Cache        // quote cache, nil when disabled
	closers  []io.Closer          // resources released on stop
	registry *prometheus.Registry // metrics registry
	metrics  *metrics.Metrics     // application metrics
	resolver *resolver.Resolver   // rate resolution
}

func New(ctx context.Context, cfg Config) (*Application, error) {
	a := &Application{cfg: cfg}

	if err := a.init(ctx); err != nil {
		a.stop()
		return nil, err
	}

	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	if err := a.initCatalog(ctx); err != nil {
		return err
	}

	if err := a.initCache(ctx); err != nil {
		return err
	}

	fiat, crypto, err := a.initProviders()
	if err != nil {
		return err
	}

	popular, err := toSymbols(a.cfg.Rates.Popular)
	if err != nil {
		return err
	}
	target, err := model.ParseSymbol(a.cfg.Rates.Target)
	if err != nil {
		return err
	}

	a.resolver, err = resolver.New(a.catalog, fiat, crypto,
		resolver.WithCache(a.cache, a.cfg.Cache.TTL),
		resolver.WithMetrics(a.metrics),
		resolver.WithPopular(popular, target),
		resolver.WithParallelism(a.cfg.Rates.Parallelism),
	)
	if err != nil {
		log.Error().Err(err).Msg("unable to create resolver")
		return err
	}

	return nil
}

func (a *Application) initCatalog(ctx context.Context) error {
	switch a.cfg.Catalog.Source {
	case "postgres":
		log.Debug().Str("host", a.cfg.Catalog.DB.Host).Str("db", a.cfg.Catalog.DB.Name).Msg("initialize db connection")

		dbConn, err := sql.Open("postgres", a.cfg.Catalog.DB.DSN())
		if err != nil {
			log.Error().Err(err).Msg("unable to connect to db")
			return err
		}

		a.dbConn = dbConn
		a.closers = append(a.closers, dbConn)
		a.db = persistence.New(dbConn)

	default:
		a.db = storage.Static(model.DefaultCurrencies)
	}

	catalog, err := storage.LoadCatalog(ctx, a.db)
	if err != nil {
		log.Error().Err(err).Str("source", a.cfg.Catalog.Source).Msg("unable to load currency catalog")
		return err
	}

	a.catalog = catalog
	log.Info().Int("currencies", len(catalog.Symbols())).Str("source", a.cfg.Catalog.Source).Msg("currency catalog loaded")

	return nil
}

func (a *Application) initCache(ctx context.Context) error {
	switch a.cfg.Cache.Backend {
	case "memory":
		mcache := cache.NewMemory()
		a.cache = mcache
		a.closers = append(a.closers, mcache)

	case "redis":
		rcache := cache.NewRedis(redis.NewClient(&redis.Options{
			Addr:     a.cfg.Cache.RedisAddr,
			Password: a.cfg.Cache.RedisPassword,
			DB:       a.cfg.Cache.RedisDB,
		}))
		a.closers = append(a.closers, rcache)

		if err := rcache.Ping(ctx); err != nil {
			log.Error().Err(err).Str("addr", a.cfg.Cache.RedisAddr).Msg("unable to reach redis")
			return err
		}
		a.cache = rcache
	}

	return nil
}

func (a *Application) initProviders() (service.FiatRates, service.CryptoRates, error) {
	common := []transport.Option{
		transport.WithMetrics(a.metrics),
		transport.WithBreaker(a.cfg.Breaker.Errors, a.cfg.Breaker.Successes, a.cfg.Breaker.Timeout),
	}

	fiatOpts := append([]transport.Option{transport.WithTimeout(a.cfg.Fiat.Timeout)}, common...)
	if a.cfg.Fiat.APIKey != "" {
		fiatOpts = append(fiatOpts, transport.WithQueryParam("api_key", a.cfg.Fiat.APIKey))
	}

	fiatAPI, err := transport.New(forex.Name, a.cfg.Fiat.BaseURL, fiatOpts...)
	if err != nil {
		log.Error().Err(err).Msg("unable to create fiat transport")
		return nil, nil, err
	}

	fiat, err := forex.New(fiatAPI)
	if err != nil {
		log.Error().Err(err).Msg("unable to create fiat client")
		return nil, nil, err
	}

	cryptoOpts := append([]transport.Option{transport.WithTimeout(a.cfg.Crypto.Timeout)}, common...)
	if a.cfg.Crypto.APIKey != "" {
		cryptoOpts = append(cryptoOpts, transport.WithHeader(coingecko.APIKeyHeader, a.cfg.Crypto.APIKey))
	}

	cryptoAPI, err := transport.New(coingecko.Name, a.cfg.Crypto.BaseURL, cryptoOpts...)
	if err != nil {
		log.Error().Err(err).Msg("unable to create crypto transport")
		return nil, nil, err
	}

	crypto, err := coingecko.New(cryptoAPI, a.catalog)
	if err != nil {
		log.Error().Err(err).Msg("unable to create crypto client")
		return nil, nil, err
	}

	return fiat, crypto, nil
}

func (a *Application) buildRoutes() {
	a.fiberApp = fiber.New(fiber.Config{DisableStartupMessage: true})
	a.fiberApp.Use(converter.Observe(a.metrics))
	a.fiberApp.Get("/swagger/*", swagger.HandlerDefault)
	a.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	converter.New(a.resolver).Register(a.fiberApp)
}

// serve runs HTTP API until ctx is done
func (a *Application) serve(ctx context.Context) error {
	a.buildRoutes()

	errC := make(chan error, 1)
	go func() {
		log.Info().Str("port", a.cfg.HTTPPort).Msg("preparing fiber http server")
		errC <- a.fiberApp.Listen(a.cfg.HTTPPort)
	}()

	select {
	case err := <-errC:
		log.Error().Err(err).Msg("unable to start http server")
		return err

	case <-ctx.Done():
		log.Info().Msg("shutting down http server")
		return a.fiberApp.Shutdown()
	}
}

// runBot polls Telegram until ctx is done
func (a *Application) runBot(ctx context.Context) error {
	if a.cfg.BotToken == "" {
		return errors.New("bot token is not set, provide BOT_TOKEN")
	}

	api, err := tgbotapi.NewBotAPI(a.cfg.BotToken)
	if err != nil {
		log.Error().Err(err).Msg("unable to create telegram client")
		return err
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")

	botCfg, err := a.cfg.Bot.toBot()
	if err != nil {
		return err
	}

	b, err := bot.New(botCfg, api, a.resolver, session.New(a.cfg.Bot.PendingTTL), a.metrics)
	if err != nil {
		log.Error().Err(err).Msg("unable to create bot")
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	err = b.Run(ctx, updates)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("bot stopped")
		return nil
	}

	return err
}

func (a *Application) stop() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Error().Err(err).Msg("unable to release resource")
		}
	}
	a.closers = nil
}
