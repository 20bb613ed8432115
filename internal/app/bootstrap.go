// Package app wires every pkg/* component into one running instance,
// the way the teacher's internal/app.Run bootstraps a graph, a swarm
// engine, and a set of scanners from a Config value. Commands never
// construct pkg types directly; they ask app.New for a built App.
package app

import (
	"context"
	"fmt"

	"github.com/threatveil/core/pkg/cache"
	"github.com/threatveil/core/pkg/config"
	"github.com/threatveil/core/pkg/connector"
	"github.com/threatveil/core/pkg/decision"
	"github.com/threatveil/core/pkg/llm"
	"github.com/threatveil/core/pkg/mailer"
	"github.com/threatveil/core/pkg/orchestrator"
	"github.com/threatveil/core/pkg/orgagg"
	"github.com/threatveil/core/pkg/probe"
	"github.com/threatveil/core/pkg/scheduler"
	"github.com/threatveil/core/pkg/store"
	"github.com/threatveil/core/pkg/store/memstore"
	"github.com/threatveil/core/pkg/store/pgstore"
	"github.com/threatveil/core/pkg/verification"
	"github.com/threatveil/core/pkg/webhook"
)

// Stores is the union of every pkg/store contract; both memstore.Store
// and pgstore.Store satisfy it, so App holds one value of this
// interface rather than branching on which backend is live.
type Stores interface {
	store.OrganizationStore
	store.AssetStore
	store.ScanStore
	store.DecisionStore
	store.ImpactStore
	store.VerificationStore
	store.ScheduleStore
	store.WebhookStore
	store.ConnectorStore
	store.AuditLogStore
	store.CacheStore
}

// App holds every wired component a command needs. Closer is non-nil
// only when the backing store must be closed on shutdown (pgstore).
type App struct {
	Config Config

	Stores Stores
	Closer func() error

	Orchestrator  *orchestrator.Orchestrator
	Decisions     *decision.Engine
	Lifecycle     *decision.Lifecycle
	Verification  *verification.Engine
	Scheduler     *scheduler.Scheduler
	Webhooks      *webhook.Dispatcher
	OrgAggregator *orgagg.Aggregator
	Connectors    *connector.Manager
	Mailer        mailer.Mailer
}

// Config is an alias of pkg/config.Config, named here so callers don't
// have to import pkg/config just to call New.
type Config = config.Config

// New builds every component from cfg. With DatabaseURL unset, it runs
// entirely in memory (memstore) — the default for a single scan or a
// short-lived schedule run; with it set, it opens and migrates
// Postgres (pgstore).
func New(ctx context.Context, cfg Config) (*App, error) {
	var stores Stores
	var closer func() error

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("app: open database: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("app: migrate database: %w", err)
		}
		stores = pg
		closer = pg.Close
	} else {
		stores = memstore.New()
	}

	signalCache := cache.BackedBy(stores)

	ct := probe.NewCTLogProbe()
	ct.Cache = signalCache
	vulnDB := probe.NewVulnDBProbe(cfg.VulnDBKey)
	vulnDB.Cache = signalCache
	codeSearch := probe.NewCodeSearchProbe(cfg.GitHubToken)
	codeSearch.Cache = signalCache

	probes := orchestrator.Probes{
		DNS:         probe.NewDNSProbe(),
		HTTP:        probe.NewHTTPProbe(),
		TLS:         probe.NewTLSProbe(),
		CT:          ct,
		ThreatIntel: probe.NewThreatIntelProbe(cfg.ThreatIntelKey),
		VulnDB:      vulnDB,
		CodeSearch:  codeSearch,
	}

	orch := orchestrator.New(probes, stores, stores, stores)
	orch.Summarizer = llm.NullSummarizer{}

	decisions, err := decision.NewEngine(stores)
	if err != nil {
		return nil, fmt.Errorf("app: build decision engine: %w", err)
	}
	lifecycle := decision.NewLifecycle(stores, stores, stores)

	verificationEngine := verification.NewEngine(verification.Probes{
		HTTP:       probes.HTTP,
		TLS:        probes.TLS,
		CodeSearch: probes.CodeSearch,
	}, stores, stores, stores, lifecycle)

	orch.AutoVerifier = verification.NewAutoVerifier(stores, stores, stores, lifecycle)

	sched := scheduler.New(stores, stores, stores, orch)

	return &App{
		Config:        cfg,
		Stores:        stores,
		Closer:        closer,
		Orchestrator:  orch,
		Decisions:     decisions,
		Lifecycle:     lifecycle,
		Verification:  verificationEngine,
		Scheduler:     sched,
		Webhooks:      webhook.NewDispatcher(stores),
		OrgAggregator: orgagg.New(stores, stores, stores),
		Connectors:    connector.NewManager(stores, cfg.EncryptionKey),
		Mailer:        mailer.NullMailer{},
	}, nil
}

// Close releases the backing store, if any.
func (a *App) Close() error {
	if a.Closer == nil {
		return nil
	}
	return a.Closer()
}
