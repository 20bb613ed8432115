// Package memstore is the in-memory reference implementation of every
// pkg/store contract, used in tests and as the default single-node
// backend. All methods are guarded by one mutex; this package favors
// correctness and readability over throughput.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// Store bundles every store.* contract behind one shared lock, mirroring
// how a single Postgres connection pool backs every contract in pgstore.
type Store struct {
	mu sync.RWMutex

	orgs          map[string]posture.Organization
	orgsByDomain  map[string]string
	assets        map[string]posture.Asset
	scans         map[string]posture.Scan
	decisions     map[string]posture.SecurityDecision
	impacts       map[string]posture.DecisionImpact // keyed by decision id
	verifications map[string][]posture.DecisionVerificationRun
	evidence      []posture.DecisionEvidence
	schedules     map[string]posture.ScanSchedule // keyed by asset id
	webhooks      map[string]posture.Webhook
	deliveries    map[string]posture.WebhookDelivery
	connectors    map[string]posture.Connector
	auditLog      []posture.AuditLog

	cacheEntries map[string]cacheEntry
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func New() *Store {
	return &Store{
		orgs:          map[string]posture.Organization{},
		orgsByDomain:  map[string]string{},
		assets:        map[string]posture.Asset{},
		scans:         map[string]posture.Scan{},
		decisions:     map[string]posture.SecurityDecision{},
		impacts:       map[string]posture.DecisionImpact{},
		verifications: map[string][]posture.DecisionVerificationRun{},
		schedules:     map[string]posture.ScanSchedule{},
		webhooks:      map[string]posture.Webhook{},
		deliveries:    map[string]posture.WebhookDelivery{},
		connectors:    map[string]posture.Connector{},
		cacheEntries:  map[string]cacheEntry{},
	}
}

var (
	_ store.OrganizationStore = (*Store)(nil)
	_ store.AssetStore        = (*Store)(nil)
	_ store.ScanStore         = (*Store)(nil)
	_ store.DecisionStore     = (*Store)(nil)
	_ store.ImpactStore       = (*Store)(nil)
	_ store.VerificationStore = (*Store)(nil)
	_ store.ScheduleStore     = (*Store)(nil)
	_ store.WebhookStore      = (*Store)(nil)
	_ store.ConnectorStore    = (*Store)(nil)
	_ store.AuditLogStore     = (*Store)(nil)
	_ store.CacheStore        = (*Store)(nil)
)

func newID() string { return uuid.NewString() }

// --- OrganizationStore ---

func (s *Store) Get(ctx context.Context, id string) (posture.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return posture.Organization{}, store.ErrNotFound
	}
	return org, nil
}

func (s *Store) FindByDomain(ctx context.Context, domain string) (posture.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.orgsByDomain[domain]
	if !ok {
		return posture.Organization{}, store.ErrNotFound
	}
	return s.orgs[id], nil
}

func (s *Store) Create(ctx context.Context, org posture.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if org.ID == "" {
		org.ID = newID()
	}
	s.orgs[org.ID] = org
	s.orgsByDomain[org.PrimaryDomain] = org.ID
	return nil
}

func (s *Store) Update(ctx context.Context, org posture.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = org
	return nil
}

func (s *Store) IncrementScanCount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return store.ErrNotFound
	}
	org.ScansThisMonth++
	s.orgs[id] = org
	return nil
}

// --- AssetStore ---

func (s *Store) GetAsset(ctx context.Context, id string) (posture.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	if !ok {
		return posture.Asset{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListByOrg(ctx context.Context, orgID string) ([]posture.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.Asset
	for _, a := range s.assets {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListDue(ctx context.Context, asOf time.Time) ([]posture.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.Asset
	for _, a := range s.assets {
		if a.Status != posture.AssetActive || a.Frequency == posture.FrequencyManual {
			continue
		}
		if a.NextScanAt != nil && !a.NextScanAt.After(asOf) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateAsset(ctx context.Context, a posture.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = newID()
	}
	s.assets[a.ID] = a
	return nil
}

func (s *Store) UpdateAsset(ctx context.Context, a posture.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	return nil
}

// --- ScanStore ---

func (s *Store) GetScan(ctx context.Context, id string) (posture.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scans[id]
	if !ok {
		return posture.Scan{}, store.ErrNotFound
	}
	return sc, nil
}

func (s *Store) CreateScan(ctx context.Context, sc posture.Scan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc.ID == "" {
		sc.ID = newID()
	}
	s.scans[sc.ID] = sc
	return nil
}

func (s *Store) LatestByDomain(ctx context.Context, domain string) (posture.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestMatching(s.scans, func(sc posture.Scan) bool { return sc.Domain == domain }, time.Time{})
}

func (s *Store) LatestByDomainAfter(ctx context.Context, domain string, after time.Time) (posture.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestMatching(s.scans, func(sc posture.Scan) bool { return sc.Domain == domain }, after)
}

func (s *Store) LatestByOrgAfter(ctx context.Context, orgID string, after time.Time) (posture.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return latestMatching(s.scans, func(sc posture.Scan) bool { return sc.OrgID == orgID }, after)
}

func (s *Store) ListByOrgSinceScan(ctx context.Context, orgID string, since time.Time) ([]posture.Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.Scan
	for _, sc := range s.scans {
		if sc.OrgID == orgID && !sc.CreatedAt.Before(since) {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func latestMatching(scans map[string]posture.Scan, match func(posture.Scan) bool, strictlyAfter time.Time) (posture.Scan, error) {
	var best posture.Scan
	found := false
	for _, sc := range scans {
		if !match(sc) {
			continue
		}
		if !strictlyAfter.IsZero() && !sc.CreatedAt.After(strictlyAfter) {
			continue
		}
		if !found || sc.CreatedAt.After(best.CreatedAt) {
			best = sc
			found = true
		}
	}
	if !found {
		return posture.Scan{}, store.ErrNotFound
	}
	return best, nil
}

// --- DecisionStore ---

func (s *Store) GetDecision(ctx context.Context, id string) (posture.SecurityDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[id]
	if !ok {
		return posture.SecurityDecision{}, store.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListByScan(ctx context.Context, scanID string) ([]posture.SecurityDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.SecurityDecision
	for _, d := range s.decisions {
		if d.ScanID == scanID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *Store) ListByAsset(ctx context.Context, assetID string) ([]posture.SecurityDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.SecurityDecision
	for _, d := range s.decisions {
		if d.AssetID == assetID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListResolvedUnverified(ctx context.Context, assetID string) ([]posture.SecurityDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.SecurityDecision
	for _, d := range s.decisions {
		if d.AssetID == assetID && d.Status == posture.DecisionResolved && d.VerifiedAt == nil {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListByOrgSince(ctx context.Context, orgID string, since time.Time) ([]posture.SecurityDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.SecurityDecision
	for _, d := range s.decisions {
		if d.OrgID == orgID && !d.CreatedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) CreateDecision(ctx context.Context, d posture.SecurityDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	s.decisions[d.ID] = d
	return nil
}

func (s *Store) UpdateDecision(ctx context.Context, d posture.SecurityDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[d.ID] = d
	return nil
}

// --- ImpactStore ---

func (s *Store) GetByDecision(ctx context.Context, decisionID string) (posture.DecisionImpact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	im, ok := s.impacts[decisionID]
	if !ok {
		return posture.DecisionImpact{}, store.ErrNotFound
	}
	return im, nil
}

func (s *Store) Upsert(ctx context.Context, impact posture.DecisionImpact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if impact.ID == "" {
		if existing, ok := s.impacts[impact.DecisionID]; ok {
			impact.ID = existing.ID
		} else {
			impact.ID = newID()
		}
	}
	s.impacts[impact.DecisionID] = impact
	return nil
}

// DeleteByDecision removes a DecisionImpact row, used when a lifecycle
// transition reverses out of {resolved, verified}.
func (s *Store) DeleteByDecision(ctx context.Context, decisionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.impacts, decisionID)
	return nil
}

// --- VerificationStore ---

func (s *Store) CreateVerificationRun(ctx context.Context, run posture.DecisionVerificationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = newID()
	}
	s.verifications[run.DecisionID] = append(s.verifications[run.DecisionID], run)
	return nil
}

func (s *Store) ListByDecision(ctx context.Context, decisionID string) ([]posture.DecisionVerificationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]posture.DecisionVerificationRun(nil), s.verifications[decisionID]...), nil
}

func (s *Store) CreateEvidence(ctx context.Context, ev posture.DecisionEvidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = newID()
	}
	s.evidence = append(s.evidence, ev)
	return nil
}

// --- ScheduleStore ---

func (s *Store) GetSchedule(ctx context.Context, assetID string) (posture.ScanSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[assetID]
	if !ok {
		return posture.ScanSchedule{}, store.ErrNotFound
	}
	return sch, nil
}

func (s *Store) UpsertSchedule(ctx context.Context, sched posture.ScanSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sched.ID == "" {
		if existing, ok := s.schedules[sched.AssetID]; ok {
			sched.ID = existing.ID
		} else {
			sched.ID = newID()
		}
	}
	s.schedules[sched.AssetID] = sched
	return nil
}

func (s *Store) ListDueSchedules(ctx context.Context, asOf time.Time) ([]posture.ScanSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.ScanSchedule
	for _, sch := range s.schedules {
		if sch.Status == posture.ScheduleActive && !sch.NextRunAt.After(asOf) {
			out = append(out, sch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}

// --- WebhookStore ---

func (s *Store) ListByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]posture.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.Webhook
	for _, w := range s.webhooks {
		if w.OrgID != orgID || !w.Enabled {
			continue
		}
		for _, ev := range w.SubscribedTo {
			if ev == eventType {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) CreateWebhook(ctx context.Context, w posture.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = newID()
	}
	s.webhooks[w.ID] = w
	return nil
}

func (s *Store) CreateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = newID()
	}
	s.deliveries[d.ID] = d
	return nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries[d.ID] = d
	return nil
}

// --- ConnectorStore ---

func (s *Store) GetConnector(ctx context.Context, id string) (posture.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connectors[id]
	if !ok {
		return posture.Connector{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListByOrgConnectors(ctx context.Context, orgID string) ([]posture.Connector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.Connector
	for _, c := range s.connectors {
		if c.OrgID == orgID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateConnector(ctx context.Context, c posture.Connector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = newID()
	}
	s.connectors[c.ID] = c
	return nil
}

func (s *Store) UpdateConnector(ctx context.Context, c posture.Connector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectors[c.ID] = c
	return nil
}

// --- AuditLogStore ---

func (s *Store) Append(ctx context.Context, entry posture.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == "" {
		entry.ID = newID()
	}
	s.auditLog = append(s.auditLog, entry)
	return nil
}

func (s *Store) ListByOrgAudit(ctx context.Context, orgID string, limit int) ([]posture.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []posture.AuditLog
	for i := len(s.auditLog) - 1; i >= 0 && len(out) < limit; i-- {
		if s.auditLog[i].OrgID == orgID {
			out = append(out, s.auditLog[i])
		}
	}
	return out, nil
}

// --- cache.Store ---

// CacheGet/CachePut implement store.CacheStore (and so
// pkg/cache.CacheStoreBackend), letting memstore double as
// the cache backend in tests and single-node deployments without a second
// in-memory map living elsewhere.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cacheEntries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return e.value, e.expiresAt, true, nil
}

func (s *Store) CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheEntries[key] = cacheEntry{value: value, expiresAt: expiresAt}
	return nil
}

// CacheAdapter adapts *Store to pkg/cache.Store's Get/Put method names.
type CacheAdapter struct {
	*Store
}

func (a CacheAdapter) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	return a.Store.CacheGet(ctx, key)
}

func (a CacheAdapter) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	return a.Store.CachePut(ctx, key, value, expiresAt)
}
