package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/inviteu/internal/catalog"
	"github.com/fjod/inviteu/internal/config"
	"github.com/fjod/inviteu/internal/domain"
	"github.com/fjod/inviteu/internal/events"
	storegrpc "github.com/fjod/inviteu/internal/grpc"
	h "github.com/fjod/inviteu/internal/http"
	"github.com/fjod/inviteu/internal/logger"
	"github.com/fjod/inviteu/internal/payment"
	"github.com/fjod/inviteu/internal/publisher"
	"github.com/fjod/inviteu/internal/store"
	"github.com/fjod/inviteu/internal/storefront"
	"go.uber.org/zap"
)

// storeCatalog is what the cart and the HTTP layer need from a catalog backend.
type storeCatalog interface {
	FindTemplate(ctx context.Context, id string) (domain.CatalogEntry, error)
	FindPackage(ctx context.Context, id string) (domain.CatalogEntry, error)
	List(ctx context.Context) ([]domain.CatalogEntry, error)
}

type eventPublisher interface {
	storefront.Publisher
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	log.Info("store ready", zap.String("backend", cfg.StoreBackend))

	cat, closeCatalog, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer closeCatalog()
	log.Info("catalog ready", zap.String("backend", cfg.CatalogBackend))

	var pub eventPublisher = publisher.Nop{}
	if cfg.KafkaEnabled() {
		pub = publisher.NewKafka(cfg.KafkaTopic, log, cfg.KafkaBrokers...)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer pub.Close()

	gateway := payment.NewBreaker(payment.NewSimulator(cfg.PaymentDelay), payment.DefaultBreakerSettings(), log)

	bus := events.NewBus()
	unsubscribe := bus.Subscribe(events.Funcs{
		CheckoutStateChanged: func(s domain.CheckoutState) {
			log.Debug("checkout state changed", zap.Stringer("state", s))
		},
	})
	defer unsubscribe()

	registry := storefront.NewRegistry(kv, cat, gateway, pub, bus, storefront.Config{
		TaxRate:            cfg.TaxRate,
		PaymentTimeout:     cfg.PaymentTimeout,
		SessionIdleTimeout: cfg.SessionIdleTimeout,
	}, log)

	handler := h.NewHandler(registry, cat, cfg.MaxRequestBodySize, log)
	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: h.NewRouter(handler, cfg.RequestTimeout),
		// payment settles inside the request, so writes wait for it
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer := storegrpc.NewServer(kv, log)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GRPCPort, err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go grpcServer.Watch(watchCtx, 15*time.Second)
	go registry.RunSweeper(watchCtx, cfg.SessionSweepInterval)

	errCh := make(chan error, 2)
	go func() {
		log.Info("grpc health listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	log.Info("shutting down storefront")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	stopWatch()
	grpcServer.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	bus.Wait()

	log.Info("storefront exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return store.NewRedisStore(client), nil

	case config.BackendMongo:
		db, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(db), nil

	case config.BackendSQLite, config.BackendPostgres:
		var (
			s   *store.SQLStore
			err error
		)
		if cfg.StoreBackend == config.BackendSQLite {
			s, err = store.NewSQLiteStore(cfg.SQLitePath)
		} else {
			s, err = store.NewPostgresStore(&cfg.Postgres)
		}
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to run store migrations: %w", err)
		}
		return s, nil

	default:
		return store.NewMemoryStore(), nil
	}
}

func openCatalog(cfg *config.Config) (storeCatalog, func(), error) {
	if cfg.CatalogBackend != config.CatalogSQLite {
		return catalog.Default(), func() {}, nil
	}

	repo, err := catalog.NewSQLRepository(cfg.CatalogDBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(); err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("failed to run catalog migrations: %w", err)
	}
	return repo, func() { _ = repo.Close() }, nil
}
