package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/phetrusrodrigues1997/predictionpot/internal/blob/s3"
	"github.com/phetrusrodrigues1997/predictionpot/internal/cache/redis"
	"github.com/phetrusrodrigues1997/predictionpot/internal/config"
	"github.com/phetrusrodrigues1997/predictionpot/internal/domain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/notify"
	"github.com/phetrusrodrigues1997/predictionpot/internal/platform/onchain"
	"github.com/phetrusrodrigues1997/predictionpot/internal/service"
	"github.com/phetrusrodrigues1997/predictionpot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency and service the
// application modes need to operate. It is constructed by Wire and torn down
// by the returned cleanup function.
type Dependencies struct {
	// Stores
	LedgerStore        domain.LedgerStore
	PredictionStore    domain.PredictionStore
	PenaltyStore       domain.PenaltyStore
	OutcomeStore       domain.OutcomeStore
	PotStore           domain.PotStore
	SettlementRunStore domain.SettlementRunStore
	AuditStore         domain.AuditStore

	// Caches
	LockManager      domain.LockManager
	SignalBus        domain.SignalBus
	ParticipantCache domain.ParticipantCache
	RateLimiter      domain.RateLimiter

	// Blob storage
	Archiver domain.SettlementArchiver

	// Chain access
	Participants domain.ParticipantSource

	// Services
	Registry    *service.Registry
	Grace       *service.GracePolicy
	Outcomes    *service.OutcomeService
	Settlements *service.SettlementService
	Winners     *service.WinnerService
	ReEntries   *service.ReEntryService
	Ledger      *service.LedgerService
	Admin       *service.AdminService

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.LedgerStore = postgres.NewLedgerStore(pool)
	deps.PredictionStore = postgres.NewPredictionStore(pool)
	deps.PenaltyStore = postgres.NewPenaltyStore(pool)
	deps.OutcomeStore = postgres.NewOutcomeStore(pool)
	deps.PotStore = postgres.NewPotStore(pool)
	deps.SettlementRunStore = postgres.NewSettlementRunStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.ParticipantCache = redis.NewParticipantCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- S3 snapshot archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewSnapshotArchiver(s3blob.NewWriter(s3Client), deps.AuditStore)
	}

	// --- Chain access ---
	chainClient, err := onchain.New(ctx, cfg.Chain.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain rpc: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Participants = onchain.NewCachedParticipantSource(chainClient, deps.ParticipantCache)

	// --- Market registry ---
	markets := make([]domain.Market, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		markets = append(markets, domain.Market{
			Type:         domain.NormalizeMarketType(m.Type),
			QuestionName: m.QuestionName,
			Contract:     m.Contract,
		})
	}
	deps.Registry = service.NewRegistry(markets)

	// --- Services ---
	deps.Grace = service.NewGracePolicy(deps.PotStore, deps.LedgerStore, cfg.Settlement.GraceWindow.Duration, logger)
	deps.Outcomes = service.NewOutcomeService(deps.Registry, deps.OutcomeStore, deps.SignalBus, cfg.Settlement.EvidenceWindow.Duration, logger)
	deps.Settlements = service.NewSettlementService(service.SettlementDeps{
		Registry:    deps.Registry,
		Outcomes:    deps.OutcomeStore,
		Runs:        deps.SettlementRunStore,
		Predictions: deps.PredictionStore,
		Penalties:   deps.PenaltyStore,
		Ledger:      deps.LedgerStore,
		Pots:        deps.PotStore,
		Grace:       deps.Grace,
		Archiver:    deps.Archiver,
		Locks:       deps.LockManager,
		Bus:         deps.SignalBus,
		Audit:       deps.AuditStore,
	}, logger)
	deps.Winners = service.NewWinnerService(
		deps.Registry, deps.PredictionStore, deps.PenaltyStore,
		deps.Participants, deps.PotStore, deps.SignalBus, deps.AuditStore, logger,
	)
	deps.ReEntries = service.NewReEntryService(
		deps.Registry, deps.PenaltyStore, deps.LedgerStore,
		deps.SignalBus, deps.AuditStore, logger,
	)
	deps.Ledger = service.NewLedgerService(deps.LedgerStore, deps.ParticipantCache, logger)
	deps.Admin = service.NewAdminService(
		deps.Registry, deps.PredictionStore, deps.PenaltyStore,
		deps.LedgerStore, deps.PotStore, deps.ParticipantCache, deps.AuditStore, logger,
	)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
