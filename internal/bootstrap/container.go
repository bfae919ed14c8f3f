package bootstrap

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"levitas/internal/adapters/chain"
	"levitas/internal/adapters/clickhouse"
	"levitas/internal/adapters/config"
	"levitas/internal/adapters/kafka"
	"levitas/internal/adapters/postgres"
	redisadapter "levitas/internal/adapters/redis"
	"levitas/internal/api"
	"levitas/internal/api/health"
	"levitas/internal/api/rest"
	"levitas/internal/domain/liquidation"
	"levitas/internal/domain/vault"
	"levitas/internal/events"
	chrepo "levitas/internal/repository/clickhouse"
	"levitas/internal/repository/memory"
	pgrepo "levitas/internal/repository/postgres"
	redisrepo "levitas/internal/repository/redis"
	"levitas/internal/services/eligibility"
	historysvc "levitas/internal/services/history"
	liquidationsvc "levitas/internal/services/liquidation"
	vaultsvc "levitas/internal/services/vault"
	"levitas/internal/workers"
	"levitas/pkg/errors"
	"levitas/pkg/logger"
)

// Container wires configuration, adapters, repositories, services and the
// HTTP server together. Optional backends (postgres, redis, clickhouse,
// kafka) fall back to in-memory or no-op implementations when unconfigured.
type Container struct {
	Config *config.Config

	Chain *chain.Client

	Ledger    liquidation.Ledger
	Transfers liquidation.TransferLedger
	History   liquidation.HistoryStore

	Eligibility *eligibility.Service
	Liquidation *liquidationsvc.Service
	Vaults      *vaultsvc.Service
	HistorySvc  *historysvc.Service

	Publisher events.Publisher
	Server    *api.Server
	Scanner   *workers.ScannerWorker

	log     *logger.Logger
	closers []func() error
}

// New builds the full dependency graph from configuration
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		Config: cfg,
		log:    logger.Get().With("component", "bootstrap"),
	}

	chainClient, err := chain.NewClient(cfg.Chain)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init chain client")
	}
	c.Chain = chainClient

	if cfg.App.Env == "development" {
		seedDemoState(chainClient)
		c.log.Info("Seeded demo vaults for development")
	}

	checkers := map[string]health.Checker{}

	// Ledger: postgres when configured, in-memory otherwise
	if cfg.Postgres.Enabled() {
		pg, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
		c.closers = append(c.closers, pg.Close)
		checkers["postgres"] = pg
		c.Ledger = pgrepo.NewLedger(pg.DB())
		c.log.Info("Using postgres liquidation ledger")
	} else {
		c.Ledger = memory.NewLedger()
		c.log.Info("Using in-memory liquidation ledger")
	}

	c.Transfers = memory.NewTransferLedger()

	// History store and liquidation locks: redis when configured
	var locker liquidationsvc.Locker
	if cfg.Redis.Enabled() {
		rd, err := redisadapter.NewClient(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to redis")
		}
		c.closers = append(c.closers, rd.Close)
		checkers["redis"] = rd
		c.History = redisrepo.NewHistoryStore(rd.Client())
		locker = rd
		c.log.Info("Using redis history store and liquidation locks")
	} else {
		c.History = memory.NewHistoryStore()
		c.log.Info("Using in-memory history store")
	}

	// Archive: clickhouse when configured, otherwise skipped
	var archive liquidation.Archive
	if cfg.ClickHouse.Enabled() {
		ch, err := clickhouse.NewClient(cfg.ClickHouse)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to clickhouse")
		}
		c.closers = append(c.closers, ch.Close)
		checkers["clickhouse"] = ch
		archive = chrepo.NewArchive(ch.Conn())
		c.log.Info("Using clickhouse liquidation archive")
	}

	// Event feed: kafka when configured, no-op otherwise
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		publisher := events.NewKafkaPublisher(producer)
		c.closers = append(c.closers, publisher.Close)
		c.Publisher = publisher
		c.log.Infow("Using kafka event feed", "brokers", cfg.Kafka.Brokers)
	} else {
		c.Publisher = events.NewNoopPublisher()
	}

	// Services
	c.Eligibility = eligibility.NewService(c.Ledger, chainClient, chainClient, cfg.Liquidation, cfg.Chain)
	c.HistorySvc = historysvc.NewService(c.Ledger, c.History)
	c.Vaults = vaultsvc.NewService(c.Ledger, c.Transfers, chainClient, chainClient)
	c.Liquidation = liquidationsvc.NewService(
		c.Ledger,
		c.Transfers,
		archive,
		c.Publisher,
		c.HistorySvc,
		c.Eligibility,
		chainClient,
		chainClient,
		chainClient,
		locker,
		cfg.Liquidation,
	)

	// HTTP surface
	handler := rest.NewHandler(c.Eligibility, c.Liquidation, c.Vaults, c.HistorySvc, c.Ledger, c.Transfers)
	router := rest.NewRouter(handler)
	healthHandler := health.New(logger.Get(), cfg.App.Name, cfg.App.Version, checkers)
	c.Server = api.NewServer(api.ServerConfig{
		Port:        cfg.HTTP.Port,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
	}, router, healthHandler, logger.Get())

	if cfg.Workers.ScannerEnabled {
		c.Scanner = workers.NewScannerWorker(c.Eligibility, c.Publisher, cfg.Workers.ScannerInterval)
	}

	return c, nil
}

// Close releases all adapter resources in reverse acquisition order
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.log.Warnw("Failed to close resource", "error", err)
		}
	}
}

// seedDemoState populates the simulated chain with vaults spanning the risk
// tiers so the API has data to serve out of the box
func seedDemoState(c *chain.Client) {
	dec := func(s string) decimal.Decimal {
		d, _ := decimal.NewFromString(s)
		return d
	}

	// Healthy vault, CR well above warning
	c.SeedVault(vault.TokenBVIX, "0xe18d3b075a241379d77fffe1ed70aa1933b3e88f", dec("1500"), dec("10"))
	// At-risk vault, CR between threshold and warning
	c.SeedVault(vault.TokenBVIX, "0x58503e5fbf6d2a497d0e310ce2ba19ab2dee5100", dec("515"), dec("10"))
	// Liquidatable vault
	c.SeedVault(vault.TokenEVIX, "0xf8cf83468b11a6ba69386c1a9b0e4a94b52a9b00", dec("430"), dec("10"))

	c.SeedWallet("0xe18d3b075a241379d77fffe1ed70aa1933b3e88f", dec("10000"))
	c.SeedTokens(vault.TokenEVIX, "0xe18d3b075a241379d77fffe1ed70aa1933b3e88f", dec("50"))
}

// Start launches the HTTP server and background workers. Blocks until the
// context is cancelled or the server fails.
func (c *Container) Start(ctx context.Context) error {
	if c.Scanner != nil {
		go func() {
			if err := c.Scanner.Run(ctx); err != nil && ctx.Err() == nil {
				c.log.Errorw("Scanner worker exited", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return c.Server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
