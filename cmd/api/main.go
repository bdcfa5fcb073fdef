// Command api serves the Sui-Ichiba marketplace HTTP API.
//
//	@title			Sui-Ichiba Marketplace API
//	@version		1.0
//	@description	Peer-to-peer marketplace with NGN deposits, SUI escrow and live chat.
//	@BasePath		/
//	@securityDefinitions.apikey	BearerAuth
//	@in				header
//	@name			Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "github.com/suiichiba/marketplace/docs"
	"github.com/suiichiba/marketplace/internal/api"
	"github.com/suiichiba/marketplace/internal/api/handler"
	"github.com/suiichiba/marketplace/internal/core/ports"
	"github.com/suiichiba/marketplace/internal/core/service"
	"github.com/suiichiba/marketplace/internal/infrastructure/config"
	"github.com/suiichiba/marketplace/internal/infrastructure/db/mongo"
	"github.com/suiichiba/marketplace/internal/infrastructure/db/redis"
	"github.com/suiichiba/marketplace/internal/infrastructure/notify"
	"github.com/suiichiba/marketplace/internal/infrastructure/oauth"
	"github.com/suiichiba/marketplace/internal/infrastructure/paystack"
	"github.com/suiichiba/marketplace/internal/infrastructure/pricefeed"
	"github.com/suiichiba/marketplace/internal/infrastructure/queue"
	"github.com/suiichiba/marketplace/internal/infrastructure/sui"
	"github.com/suiichiba/marketplace/pkg/logger"
)

const (
	serviceName     = "sui-ichiba"
	upstreamTimeout = 15 * time.Second
	shutdownTimeout = 15 * time.Second

	// Per-IP budget for the unauthenticated auth endpoints.
	signInInterval = 6 * time.Second
	signInBurst    = 10
	limiterSweep   = 5 * time.Minute
)

var (
	buildVersion string
	buildCommit  string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.Production(),
		Service: serviceName,
		Env:     cfg.Env,
	})
	log.Info().
		Str("version", orNA(buildVersion)).
		Str("commit", orNA(buildCommit)).
		Msg("starting")

	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect")
		}
	}()

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	identities := mongo.NewIdentityRepository(db)
	usernames := mongo.NewUsernameRepository(db)
	products := mongo.NewProductRepository(db)
	profiles := mongo.NewProfileRepository(db)
	deposits := mongo.NewDepositRepository(db)
	escrows := mongo.NewEscrowRepository(db)
	messages := mongo.NewMessageRepository(db)
	notes := mongo.NewNotificationRepository(db)
	if err := mongo.EnsureIndexes(ctx, identities, products, profiles, deposits, escrows, messages, notes); err != nil {
		return err
	}
	files, err := mongo.NewObjectStore(db, cfg.PublicBaseURL)
	if err != nil {
		return err
	}

	notifier := redis.NewNotifier(rdb, logger.For("notifier"))

	// --- External adapters ---
	gateway := paystack.New(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey, cfg.Paystack.CallbackURL, upstreamTimeout)
	feed := pricefeed.New(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey, upstreamTimeout)
	chain, err := sui.New(cfg.Sui.RPCURL, cfg.Sui.PackageID, cfg.Sui.PrivateKey, cfg.Sui.GasObject, upstreamTimeout)
	if err != nil {
		return fmt.Errorf("sui signer: %w", err)
	}
	sms, mail := senders(cfg, logger.For("notify"))
	verifier := oauth.New(cfg.OAuth.GoogleUserInfoURL, cfg.OAuth.FacebookGraphURL, upstreamTimeout)

	// --- Services ---
	otpLimiter := service.NewKeyedLimiter(cfg.OTP.Interval, cfg.OTP.Burst)
	ipLimiter := service.NewKeyedLimiter(signInInterval, signInBurst)

	ids := service.NewIdentityService(identities, usernames, redis.NewTokenStore(rdb), sms, mail, verifier, otpLimiter,
		service.IdentityConfig{PublicBaseURL: cfg.PublicBaseURL, OTPLength: cfg.OTP.Length, OTPTTL: cfg.OTP.TTL},
		logger.For("identity"))
	sessions := service.NewSessionManager(redis.NewSessionRegistry(rdb), notifier, cfg.JWTSecret, cfg.TokenTTL, logger.For("session"))
	auth := service.NewAuthService(ids, ids, sessions, redis.NewFlowStore(rdb), profiles, logger.For("auth"))

	converter := service.NewRateConverter(feed, cfg.PriceFeed.CacheTTL, logger.For("converter"))
	balances := service.NewBalanceService(profiles, deposits, converter, redis.NewDedupChecker(rdb), notes, logger.For("balance"))
	payments := service.NewPaymentService(gateway, balances, profiles, chain, logger.For("payment"))

	dispatcher := queue.NewDispatcher(cfg.Workers, payments, balances, logger.For("dispatcher"))
	reconciler := service.NewReconciler(deposits, dispatcher, cfg.Reconcile.Interval, cfg.Reconcile.Grace, logger.For("reconciler"))

	e := api.NewRouter(api.Dependencies{
		Auth:          auth,
		Sessions:      sessions,
		Products:      service.NewProductService(products, profiles, converter, files, logger.For("product")),
		Messages:      service.NewMessageService(messages, products, notes, notifier, logger.For("message")),
		Escrows:       service.NewEscrowService(escrows, products, profiles, balances, converter, chain, notes, logger.For("escrow")),
		Payments:      payments,
		Balances:      balances,
		Converter:     converter,
		Profiles:      service.NewProfileService(profiles, files, logger.For("profile")),
		Dashboard:     service.NewDashboardService(profiles, products, escrows, notes, logger.For("dashboard")),
		Files:         files,
		Dispatcher:    dispatcher,
		Webhooks:      gateway,
		Reconciler:    reconciler,
		SignInLimiter: ipLimiter,
		HealthChecks: []handler.HealthCheck{
			{Name: "mongodb", Check: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }},
			{Name: "redis", Check: redisPing(rdb)},
		},
		Swagger: !cfg.Production(),
	}, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sweepLimiters(gctx, limiterSweep, otpLimiter, ipLimiter)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("wallet", chain.Address()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("stopped gracefully")
	return nil
}

// senders picks the SMS and mail providers, logging messages instead when a
// provider is not configured.
func senders(cfg *config.Config, log zerolog.Logger) (ports.SMSSender, ports.MailSender) {
	fallback := notify.NewLog(log)

	var sms ports.SMSSender = fallback
	if cfg.SMS.BaseURL != "" {
		sms = notify.NewSMS(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.SenderID, upstreamTimeout)
	} else {
		log.Warn().Msg("SMS_BASE_URL not set, one-time passwords are logged")
	}

	var mail ports.MailSender = fallback
	if cfg.Mail.BaseURL != "" {
		mail = notify.NewMail(cfg.Mail.BaseURL, cfg.Mail.APIKey, cfg.Mail.From, upstreamTimeout)
	} else {
		log.Warn().Msg("MAIL_BASE_URL not set, mails are logged")
	}
	return sms, mail
}

func redisPing(rdb *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

func sweepLimiters(ctx context.Context, every time.Duration, limiters ...*service.KeyedLimiter) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, l := range limiters {
				l.Sweep()
			}
		}
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
