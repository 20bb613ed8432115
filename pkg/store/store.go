// Package store defines the persistence contracts every core package
// depends on through an interface, never a concrete driver. pkg/store/memstore
// implements all of them in memory (tests, default single-node operation);
// pkg/store/pgstore implements the durable sqlx+lib/pq backend.
//
// Method names are disjoint across interfaces on purpose: a single
// concrete store type (memstore.Store, pgstore.Store) implements every
// interface below, and Go methods can't be overloaded by return type.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

// ErrNotFound is returned by any Get/Find method with no matching row.
var ErrNotFound = errors.New("store: not found")

type OrganizationStore interface {
	Get(ctx context.Context, id string) (posture.Organization, error)
	FindByDomain(ctx context.Context, domain string) (posture.Organization, error)
	Create(ctx context.Context, org posture.Organization) error
	Update(ctx context.Context, org posture.Organization) error
	IncrementScanCount(ctx context.Context, id string) error
}

type AssetStore interface {
	GetAsset(ctx context.Context, id string) (posture.Asset, error)
	ListByOrg(ctx context.Context, orgID string) ([]posture.Asset, error)
	ListDue(ctx context.Context, asOf time.Time) ([]posture.Asset, error)
	CreateAsset(ctx context.Context, asset posture.Asset) error
	UpdateAsset(ctx context.Context, asset posture.Asset) error
}

type ScanStore interface {
	GetScan(ctx context.Context, id string) (posture.Scan, error)
	CreateScan(ctx context.Context, scan posture.Scan) error
	LatestByDomain(ctx context.Context, domain string) (posture.Scan, error)
	LatestByDomainAfter(ctx context.Context, domain string, after time.Time) (posture.Scan, error)
	LatestByOrgAfter(ctx context.Context, orgID string, after time.Time) (posture.Scan, error)
	ListByOrgSinceScan(ctx context.Context, orgID string, since time.Time) ([]posture.Scan, error)
}

type DecisionStore interface {
	GetDecision(ctx context.Context, id string) (posture.SecurityDecision, error)
	ListByScan(ctx context.Context, scanID string) ([]posture.SecurityDecision, error)
	ListByAsset(ctx context.Context, assetID string) ([]posture.SecurityDecision, error)
	ListResolvedUnverified(ctx context.Context, assetID string) ([]posture.SecurityDecision, error)
	ListByOrgSince(ctx context.Context, orgID string, since time.Time) ([]posture.SecurityDecision, error)
	CreateDecision(ctx context.Context, d posture.SecurityDecision) error
	UpdateDecision(ctx context.Context, d posture.SecurityDecision) error
}

type ImpactStore interface {
	GetByDecision(ctx context.Context, decisionID string) (posture.DecisionImpact, error)
	Upsert(ctx context.Context, impact posture.DecisionImpact) error
	DeleteByDecision(ctx context.Context, decisionID string) error
}

type VerificationStore interface {
	CreateVerificationRun(ctx context.Context, run posture.DecisionVerificationRun) error
	ListByDecision(ctx context.Context, decisionID string) ([]posture.DecisionVerificationRun, error)
	CreateEvidence(ctx context.Context, ev posture.DecisionEvidence) error
}

type ScheduleStore interface {
	GetSchedule(ctx context.Context, assetID string) (posture.ScanSchedule, error)
	UpsertSchedule(ctx context.Context, sched posture.ScanSchedule) error
	ListDueSchedules(ctx context.Context, asOf time.Time) ([]posture.ScanSchedule, error)
}

type WebhookStore interface {
	ListByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]posture.Webhook, error)
	CreateWebhook(ctx context.Context, w posture.Webhook) error
	CreateDelivery(ctx context.Context, d posture.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, d posture.WebhookDelivery) error
}

type ConnectorStore interface {
	GetConnector(ctx context.Context, id string) (posture.Connector, error)
	ListByOrgConnectors(ctx context.Context, orgID string) ([]posture.Connector, error)
	CreateConnector(ctx context.Context, c posture.Connector) error
	UpdateConnector(ctx context.Context, c posture.Connector) error
}

type AuditLogStore interface {
	Append(ctx context.Context, entry posture.AuditLog) error
	ListByOrgAudit(ctx context.Context, orgID string, limit int) ([]posture.AuditLog, error)
}

// CacheStore has the same method set as pkg/cache.CacheStoreBackend, so
// memstore/pgstore satisfy both without pkg/store importing pkg/cache;
// pkg/cache.BackedBy adapts either one to pkg/cache.Store.
type CacheStore interface {
	CacheGet(ctx context.Context, key string) (value []byte, expiresAt time.Time, found bool, err error)
	CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error
}
