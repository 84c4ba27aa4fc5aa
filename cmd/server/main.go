package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"meroku/internal/addressbook"
	addressbookhandler "meroku/internal/addressbook/handler"
	"meroku/internal/events"
	httpapi "meroku/internal/http"
	markethandler "meroku/internal/market/handler"
	marketservice "meroku/internal/market/service"
	marketstore "meroku/internal/market/store"
	"meroku/internal/payments"
	"meroku/internal/platform/config"
	"meroku/internal/platform/httpserver"
	"meroku/internal/platform/logger"
	platformredis "meroku/internal/platform/redis"
	registryhandler "meroku/internal/registry/handler"
	registrymetrics "meroku/internal/registry/metrics"
	"meroku/internal/registry/models"
	registryservice "meroku/internal/registry/service"
	registrystore "meroku/internal/registry/store"
	"meroku/internal/reserved"
	reservedhandler "meroku/internal/reserved/handler"
	"meroku/internal/wallettoken"
	"meroku/pkg/domain"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Without a postgres URL everything runs on in-memory stores,
	// which is the single-node development mode.
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresURL)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Reserved-name list, optionally cached in redis.
	var reservedStore reserved.Store
	var watermarks reserved.WatermarkStore
	if db != nil {
		pg := reserved.NewPostgres(db)
		reservedStore, watermarks = pg, pg
	} else {
		mem := reserved.NewInMemory()
		reservedStore, watermarks = mem, mem
	}
	if redisClient != nil {
		reservedStore = reserved.NewCachedStore(reservedStore, redisClient.Client, cfg.Redis.CacheTTL, log)
	}
	reservedService := reserved.New(reservedStore, log, reserved.WithWatermarks(watermarks))

	// Owner account. The address book keeps deployment identities stable
	// across restarts; the env value wins when both are set.
	book, err := addressbook.Load(cfg.AddressBook)
	if err != nil {
		log.Error("failed to load address book", "error", err)
		os.Exit(1)
	}
	owner := cfg.Owner
	if owner.IsZero() {
		if recorded, ok := book.Get("owner"); ok {
			owner = recorded
		}
	}
	if owner.IsZero() {
		log.Error("no owner address configured, set MEROKU_OWNER_ADDRESS")
		os.Exit(1)
	}
	if err := book.Set("owner", owner); err != nil {
		log.Error("failed to record owner address", "error", err)
		os.Exit(1)
	}

	pay := payments.NewInMemory()

	// Transfer events: with brokers configured they flow through a worker
	// into Kafka, otherwise they are only logged.
	var emitter events.Emitter = events.NewLogEmitter(log)
	group, groupCtx := errgroup.WithContext(ctx)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to create kafka sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()

		channel := events.NewChannelEmitter(1024, log)
		emitter = channel
		worker := events.NewWorker(channel.Events(), sink, log)
		group.Go(func() error { return worker.Run(groupCtx) })
	}

	marketListings := marketstore.NewInMemory()
	var listingStore marketservice.ListingStore = marketListings
	var listingCloser registryservice.ListingCloser = marketListings
	if db != nil {
		pg := marketstore.NewPostgres(db)
		listingStore, listingCloser = pg, pg
	}

	metrics := registrymetrics.New()
	ledgers := make([]*registryservice.Ledger, 0, len(cfg.Namespaces))
	for _, ns := range domain.Namespaces() {
		nsCfg := cfg.Namespaces[ns]
		var store registryservice.Store = registrystore.NewInMemory()
		if db != nil {
			store = registrystore.NewPostgres(db, ns)
		}
		ledgers = append(ledgers, registryservice.New(
			models.Params{
				Namespace: ns,
				TokenLife: nsCfg.TokenLife,
				RenewLife: nsCfg.RenewLife,
				MintFees:  domain.Amount(nsCfg.MintFees),
				RenewFees: domain.Amount(nsCfg.RenewFees),
			},
			owner,
			store,
			pay,
			registryservice.WithLogger(log),
			registryservice.WithMetrics(metrics),
			registryservice.WithReservedList(reservedService),
			registryservice.WithListingCloser(listingCloser),
			registryservice.WithEmitter(emitter),
		))
	}
	registry := registryservice.NewRegistry(ledgers...)
	market := marketservice.New(listingStore, registry, pay, marketservice.WithLogger(log))

	tokens := wallettoken.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer)
	router := httpapi.NewRouter(httpapi.Deps{
		Registry:    registryhandler.New(registry, log),
		Market:      markethandler.New(market, log),
		Reserved:    reservedhandler.New(reservedService, log),
		AddressBook: addressbookhandler.New(book, log),
		Tokens:      tokens,
		AdminToken:  cfg.Server.AdminToken,
		Logger:      log,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	group.Go(func() error {
		log.Info("starting meroku registry", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
