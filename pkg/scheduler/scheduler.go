// Package scheduler implements the Continuous-Monitoring Scheduler
// (spec.md §4.9): a single periodic tick that dispatches due Assets into
// the Orchestrator through the AIMD-managed worker pool.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/internal/swarm"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// Orchestrator is the subset of pkg/orchestrator.Orchestrator the
// scheduler needs, kept as an interface so scheduler tests never have to
// construct a real probe fan-out.
type Orchestrator interface {
	Scan(ctx context.Context, clientKey, domain, codeOrg string) (*posture.Scan, error)
}

// JobStatus is one entry of the scheduler's status snapshot.
type JobStatus struct {
	JobID       string
	Name        string
	NextRunTime time.Time
}

// Status is the scheduler's externally-observable state.
type Status struct {
	Running bool
	Jobs    []JobStatus
}

// Scheduler runs one periodic tick (default 5m). Start/Stop are
// idempotent; Stop waits for in-flight work to drain.
type Scheduler struct {
	Assets       store.AssetStore
	Schedules    store.ScheduleStore
	AuditLog     store.AuditLogStore
	Orchestrator Orchestrator
	Engine       *swarm.Engine
	Period       time.Duration
	now          func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(assets store.AssetStore, schedules store.ScheduleStore, auditLog store.AuditLogStore, orch Orchestrator) *Scheduler {
	return &Scheduler{
		Assets:       assets,
		Schedules:    schedules,
		AuditLog:     auditLog,
		Orchestrator: orch,
		Engine:       swarm.NewEngine(),
		Period:       5 * time.Minute,
		now:          time.Now,
	}
}

// Start registers the tick job. A second Start before Stop is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.Engine.Start(runCtx)
	go s.loop(runCtx)
}

// Stop halts the tick job and waits for in-flight work to drain. A
// second Stop before Start is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.Engine.Stop()
}

// Status reports whether the scheduler is running and the single
// registered tick job's next run time.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return Status{
		Running: running,
		Jobs:    []JobStatus{{JobID: "scan-tick", Name: "due-asset scan dispatch", NextRunTime: s.now().Add(s.Period)}},
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick selects due Assets and dispatches each into the Orchestrator via
// the worker pool; a failure on one Asset never halts the others
// (spec.md §4.9 step 3).
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.Assets.ListDue(ctx, s.now())
	if err != nil {
		slog.Error("scheduler: list due assets failed", "error", err)
		return
	}
	for _, asset := range due {
		asset := asset
		s.Engine.Submit(func(ctx context.Context) error {
			s.runAsset(ctx, asset)
			return nil
		})
	}
}

func (s *Scheduler) runAsset(ctx context.Context, asset posture.Asset) {
	sched, err := s.Schedules.GetSchedule(ctx, asset.ID)
	if err != nil {
		sched = posture.ScanSchedule{
			ID: uuid.NewString(), AssetID: asset.ID, Frequency: asset.Frequency, Status: posture.ScheduleActive,
		}
	}

	codeOrg := s.siblingCodeOrg(ctx, asset)
	scan, err := s.Orchestrator.Scan(ctx, asset.Identifier, asset.Identifier, codeOrg)
	if err != nil {
		sched.ErrorCount++
		sched.LastError = err.Error()
		if uerr := s.Schedules.UpsertSchedule(ctx, sched); uerr != nil {
			slog.Error("scheduler: persist schedule after failed scan failed", "asset_id", asset.ID, "error", uerr)
		}
		return
	}

	now := s.now()
	nextRun := nextRunAt(now, asset.Frequency)
	scanID := scan.ID
	sched.RunCount++
	sched.LastRunAt = &now
	sched.LastScanID = &scanID
	sched.LastError = ""
	sched.NextRunAt = nextRun
	if err := s.Schedules.UpsertSchedule(ctx, sched); err != nil {
		slog.Error("scheduler: persist schedule after scan failed", "asset_id", asset.ID, "error", err)
	}

	riskScore := scan.RiskScore
	asset.LastScanAt = &now
	asset.NextScanAt = &nextRun
	asset.LastRiskScore = &riskScore
	if err := s.Assets.UpdateAsset(ctx, asset); err != nil {
		slog.Error("scheduler: update asset after scan failed", "asset_id", asset.ID, "error", err)
	}

	if err := s.AuditLog.Append(ctx, posture.AuditLog{
		ID:           uuid.NewString(),
		OrgID:        scan.OrgID,
		Action:       "scheduled_scan",
		ResourceType: "asset",
		ResourceID:   asset.ID,
		Details:      map[string]interface{}{"scan_id": scan.ID, "risk_score": scan.RiskScore},
		CreatedAt:    now,
	}); err != nil {
		slog.Error("scheduler: append audit log failed", "asset_id", asset.ID, "error", err)
	}
}

// siblingCodeOrg looks up the code_org Asset belonging to the same
// Organization, if any, so a scheduled domain scan also re-runs the
// code-search probe the way the initial manual scan did.
func (s *Scheduler) siblingCodeOrg(ctx context.Context, asset posture.Asset) string {
	siblings, err := s.Assets.ListByOrg(ctx, asset.OrgID)
	if err != nil {
		return ""
	}
	for _, sib := range siblings {
		if sib.Type == posture.AssetCodeOrg {
			return sib.Identifier
		}
	}
	return ""
}

func nextRunAt(from time.Time, freq posture.ScanFrequency) time.Time {
	switch freq {
	case posture.FrequencyDaily:
		return from.Add(24 * time.Hour)
	case posture.FrequencyMonthly:
		return from.Add(30 * 24 * time.Hour)
	default:
		return from.Add(7 * 24 * time.Hour)
	}
}
