package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"velora-storefront/internal/client"
	"velora-storefront/internal/config"
	"velora-storefront/internal/handler"
	"velora-storefront/internal/repository"
	"velora-storefront/internal/server"
	"velora-storefront/internal/service"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse config")
	}

	setupLogger(cfg.Log)

	db := client.InitMysqlClient(cfg.DatabaseURL)
	gateway := client.NewGatewayClient(&cfg.Gateway)

	cartRepo := repository.NewCartRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	sessionRepo := repository.NewPaymentSessionRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	pricer := service.NewPricer(cfg.Shipping.Fee, cfg.Shipping.FreeThreshold)

	cartService := service.NewCartService(cartRepo, variantRepo, productRepo, couponRepo, pricer)
	orderService := service.NewOrderService(db, cartRepo, variantRepo, productRepo, couponRepo, orderRepo, pricer)
	paymentService := service.NewPaymentService(db, gateway, orderRepo, sessionRepo, eventRepo)

	reconciler := service.NewReconciler(paymentService, cfg.Gateway.SessionTTL/3, cfg.Gateway.SessionTTL)
	reconciler.Start()

	srv := server.NewServer(
		cartService,
		orderService,
		paymentService,
		handler.NewProductHandler(variantRepo),
		cfg.JWTSecret,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info().Str("addr", serverAddr).Msg("starting HTTP server")
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info().Msg("signal received, starting graceful shutdown")

	reconciler.Stop()

	if err := srv.Shutdown(); err != nil {
		log.Fatal().Err(err).Msg("HTTP server shutdown error")
	}
}

func setupLogger(cfg config.Log) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
