package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	proposalvoting "pentarchy/contexts/governance/proposal-voting"
	"pentarchy/contexts/governance/proposal-voting/adapters/memory"
	postgresadapter "pentarchy/contexts/governance/proposal-voting/adapters/postgres"
	"pentarchy/contexts/governance/proposal-voting/adapters/voters"
	"pentarchy/contexts/governance/proposal-voting/application/workers"
	"pentarchy/contexts/governance/proposal-voting/domain/entities"
	domainerrors "pentarchy/contexts/governance/proposal-voting/domain/errors"
	"pentarchy/contexts/governance/proposal-voting/domain/policy"
	"pentarchy/contexts/governance/proposal-voting/ports"
	"pentarchy/internal/platform/config"
	"pentarchy/internal/platform/db"
	"pentarchy/internal/platform/httpserver"
	"pentarchy/internal/platform/messaging"
	"pentarchy/internal/platform/metrics"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	shutdownTimeout = 10 * time.Second
	relayBatchSize  = 100
	sweepBatchSize  = 100
)

type APIApp struct {
	server     *httpserver.Server
	governance proposalvoting.Module
	postgres   *db.Postgres
	nats       *messaging.NATSPublisher
	bus        *messaging.Bus
	hub        *httpserver.Hub

	relay         workers.OutboxRelay
	runRelay      bool
	sweeper       workers.PendingSweeper
	pollInterval  time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

type WorkerApp struct {
	governance proposalvoting.Module
	postgres   *db.Postgres
	nats       *messaging.NATSPublisher

	relay         workers.OutboxRelay
	runRelay      bool
	sweeper       workers.PendingSweeper
	pollInterval  time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
}

type governanceRuntime struct {
	module   proposalvoting.Module
	postgres *db.Postgres
	nats     *messaging.NATSPublisher
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, "api")

	telemetry := metrics.NewGovernance()
	runtime, err := buildGovernance(ctx, cfg, telemetry, logger)
	if err != nil {
		return nil, err
	}

	bus := messaging.NewBus(logger)
	hub := httpserver.NewHub(logger)
	server := httpserver.New(runtime.module, httpserver.Options{
		Addr:      normalizeAddr(cfg.HTTPPort),
		RateLimit: httpserver.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger),
		Stream:    hub,
		Metrics:   telemetry.Handler(),
		Logger:    logger,
	})

	return &APIApp{
		server:        server,
		governance:    runtime.module,
		postgres:      runtime.postgres,
		nats:          runtime.nats,
		bus:           bus,
		hub:           hub,
		relay:         runtime.module.OutboxRelay(publishTargets(bus, runtime.nats), relayBatchSize),
		runRelay:      cfg.OutboxRelayInAPI,
		sweeper:       runtime.module.PendingSweeper(cfg.PendingSweepGrace, sweepBatchSize),
		pollInterval:  cfg.OutboxPollInterval,
		sweepInterval: cfg.PendingSweepInterval,
		logger:        logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, "worker")
	if cfg.PostgresDSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	runtime, err := buildGovernance(ctx, cfg, nil, logger)
	if err != nil {
		return nil, err
	}

	return &WorkerApp{
		governance:    runtime.module,
		postgres:      runtime.postgres,
		nats:          runtime.nats,
		relay:         runtime.module.OutboxRelay(publishTargets(nil, runtime.nats), relayBatchSize),
		runRelay:      !cfg.OutboxRelayInAPI,
		sweeper:       runtime.module.PendingSweeper(cfg.PendingSweepGrace, sweepBatchSize),
		pollInterval:  cfg.OutboxPollInterval,
		sweepInterval: cfg.PendingSweepInterval,
		logger:        logger,
	}, nil
}

// NewLogger builds the process logger: JSON on stdout at the configured level.
func NewLogger(cfg config.Config, process string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	return slog.New(handler).With("service", cfg.ServiceName, "process", process)
}

func buildGovernance(ctx context.Context, cfg config.Config, telemetry ports.Telemetry, logger *slog.Logger) (governanceRuntime, error) {
	thresholds, costOverride, err := LoadPolicy(cfg)
	if err != nil {
		return governanceRuntime{}, err
	}
	committee, err := buildCommittee(cfg)
	if err != nil {
		return governanceRuntime{}, err
	}

	var runtime governanceRuntime
	deps := proposalvoting.Dependencies{
		Voters:        committee,
		Thresholds:    thresholds,
		CostOverride:  costOverride,
		VotingTimeout: cfg.VotingTimeout,
		Telemetry:     telemetry,
		Logger:        logger,
	}
	var store *memory.Store
	if cfg.PostgresDSN != "" {
		pg, err := db.Connect(ctx, cfg.PostgresDSN, logger)
		if err != nil {
			return governanceRuntime{}, err
		}
		repo := postgresadapter.NewRepository(pg.DB, logger)
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return governanceRuntime{}, err
		}
		runtime.postgres = pg
		deps.Proposals, deps.Outbox, deps.Clock = repo, repo, repo
	} else {
		store = memory.NewStore(nil)
		deps.Proposals, deps.Outbox, deps.Clock = store, store, store
		logger.Warn("no database configured, using in-memory store",
			"event", "bootstrap_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	if cfg.NATSURL != "" {
		publisher, err := messaging.ConnectNATS(ctx, cfg.NATSURL, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			runtime.close()
			return governanceRuntime{}, err
		}
		runtime.nats = publisher
	}

	module, err := proposalvoting.NewModule(deps)
	if err != nil {
		runtime.close()
		return governanceRuntime{}, err
	}
	module.Store = store
	runtime.module = module
	return runtime, nil
}

// LoadPolicy merges the built-in thresholds and cost bands with the optional
// policy file, then with the cost environment overrides.
func LoadPolicy(cfg config.Config) (policy.ThresholdTable, policy.CostOverride, error) {
	entries := policy.DefaultThresholds()
	override := policy.DefaultCostOverride()

	if cfg.PolicyFile != "" {
		file, err := config.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return policy.ThresholdTable{}, policy.CostOverride{}, fmt.Errorf("%w: %w", domainerrors.ErrConfiguration, err)
		}
		for raw, entry := range file.Thresholds {
			level := entities.RiskLevel(strings.ToLower(strings.TrimSpace(raw)))
			merged := entries[level]
			if entry.Threshold != 0 {
				merged.Threshold = entry.Threshold
			}
			if entry.MaxScore != 0 {
				merged.MaxScore = entry.MaxScore
			}
			entries[level] = merged
		}
		if file.CostOverride != nil {
			if file.CostOverride.AutoApproveBelow != nil {
				override.AutoApproveBelow = *file.CostOverride.AutoApproveBelow
			}
			if file.CostOverride.AutoRejectAtOrAbove != nil {
				override.AutoRejectAtOrAbove = *file.CostOverride.AutoRejectAtOrAbove
			}
		}
	}
	if cfg.CostAutoApprove != nil {
		override.AutoApproveBelow = *cfg.CostAutoApprove
	}
	if cfg.CostAutoReject != nil {
		override.AutoRejectAtOrAbove = *cfg.CostAutoReject
	}

	table, err := policy.NewThresholdTable(entries)
	if err != nil {
		return policy.ThresholdTable{}, policy.CostOverride{}, err
	}
	if err := override.Validate(); err != nil {
		return policy.ThresholdTable{}, policy.CostOverride{}, err
	}
	return table, override, nil
}

func buildCommittee(cfg config.Config) ([]ports.Voter, error) {
	if !cfg.EnableRemoteVoters {
		return voters.HeuristicCommittee(), nil
	}
	endpoints := make(map[entities.VoterID]string, len(cfg.VoterURLs))
	for raw, endpoint := range cfg.VoterURLs {
		id, ok := entities.ParseVoterID(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %w %q", domainerrors.ErrConfiguration, domainerrors.ErrUnknownVoter, raw)
		}
		endpoints[id] = endpoint
	}
	return voters.Committee(endpoints, &http.Client{Timeout: cfg.RemoteVoterTimeout})
}

// publishTargets skips absent publishers; a nil *NATSPublisher inside the
// interface would not compare equal to nil.
func publishTargets(bus *messaging.Bus, nats *messaging.NATSPublisher) messaging.Fanout {
	var targets messaging.Fanout
	if bus != nil {
		targets = append(targets, bus)
	}
	if nats != nil {
		targets = append(targets, nats)
	}
	return targets
}

func (r governanceRuntime) close() error {
	r.module.Close()
	var errs []error
	if r.nats != nil {
		errs = append(errs, r.nats.Close())
	}
	if r.postgres != nil {
		errs = append(errs, r.postgres.Close())
	}
	return errors.Join(errs...)
}

func (a *APIApp) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.hub.Attach(ctx, a.bus); err != nil {
		return err
	}

	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"outbox_relay", a.runRelay,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.runRelay {
		group.Go(func() error {
			return runEvery(groupCtx, a.pollInterval, a.logger, "bootstrap_outbox_relay_failed", a.relay.RunOnce)
		})
	}
	group.Go(func() error {
		return runEvery(groupCtx, a.sweepInterval, a.logger, "bootstrap_pending_sweep_failed", a.sweep)
	})
	return group.Wait()
}

func (a *APIApp) sweep(ctx context.Context) error {
	_, err := a.sweeper.RunOnce(ctx)
	return err
}

func (a *APIApp) Close() error {
	a.hub.Close()
	return governanceRuntime{module: a.governance, postgres: a.postgres, nats: a.nats}.close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"sweep_interval", w.sweepInterval.String(),
		"outbox_relay", w.runRelay,
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if w.runRelay {
		group.Go(func() error {
			return runEvery(groupCtx, w.pollInterval, w.logger, "bootstrap_outbox_relay_failed", w.relay.RunOnce)
		})
	}
	group.Go(func() error {
		return runEvery(groupCtx, w.sweepInterval, w.logger, "bootstrap_pending_sweep_failed", func(ctx context.Context) error {
			_, err := w.sweeper.RunOnce(ctx)
			return err
		})
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return governanceRuntime{module: w.governance, postgres: w.postgres, nats: w.nats}.close()
}

// runEvery calls fn immediately and then on every tick until ctx is done.
// Failures are logged and retried on the next tick.
func runEvery(ctx context.Context, interval time.Duration, logger *slog.Logger, failureEvent string, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("background job failed",
				"event", failureEvent,
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
