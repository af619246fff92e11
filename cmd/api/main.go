package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"restaurant-order-engine/internal/cache"
	"restaurant-order-engine/internal/client"
	"restaurant-order-engine/internal/config"
	"restaurant-order-engine/internal/logger"
	"restaurant-order-engine/internal/notify"
	"restaurant-order-engine/internal/repository"
	"restaurant-order-engine/internal/server"
	"restaurant-order-engine/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	db, err := client.InitDBClient(cfg.Database)
	if err != nil {
		log.Error("init database", "error", err)
		os.Exit(1)
	}

	basketCache, err := cache.NewMemoryCache(cfg.Cache.Size, cfg.Cache.SlidingExpiration)
	if err != nil {
		log.Error("init basket cache", "error", err)
		os.Exit(1)
	}

	pricing, err := service.NewPricing(cfg.Pricing)
	if err != nil {
		log.Error("load pricing", "error", err)
		os.Exit(1)
	}

	gateway := client.NewPaymentGateway(&cfg.BrainTree)
	notifier := notify.NewLogNotifier(log)

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	basketRepo := repository.NewBasketRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	fidelityRepo := repository.NewFidelityRepository(db)
	pointRuleRepo := repository.NewPointRuleRepository(db)

	if cfg.SeedDemoData {
		if err := productRepo.Seed(context.Background()); err != nil {
			log.Error("seed demo data", "error", err)
			os.Exit(1)
		}
	}

	fidelityService := service.NewFidelityService(db, log, fidelityRepo, pointRuleRepo)
	pointRuleService := service.NewPointRuleService(db, log, pointRuleRepo)
	discountService := service.NewDiscountService(db, log, discountRepo, groupRepo)
	groupService := service.NewGroupService(db, log, groupRepo, cfg.Membership.SigningKey)
	orderService := service.NewOrderService(
		db, log, pricing, notifier, gateway,
		productRepo,
		orderRepo,
		discountRepo,
		groupRepo,
		fidelityRepo,
		fidelityService,
	)
	basketService := service.NewBasketService(
		db, log, basketCache, pricing,
		productRepo,
		basketRepo,
		discountService,
		orderService,
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(log, server.Services{
		Basket:    basketService,
		Order:     orderService,
		Fidelity:  fidelityService,
		PointRule: pointRuleService,
		Discount:  discountService,
		Group:     groupService,
	})

	log.Info("starting HTTP server", "address", serverAddr, "environment", cfg.Environment.Name)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		os.Exit(1)
	}
}
