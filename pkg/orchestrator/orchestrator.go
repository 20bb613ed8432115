// Package orchestrator implements the Scan Orchestrator: the fan-out,
// merge, score, persist, and post-process pipeline that turns a bare
// domain name into a posture.Scan.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/threatveil/core/pkg/apierr"
	"github.com/threatveil/core/pkg/llm"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/probe"
	"github.com/threatveil/core/pkg/scoring"
	"github.com/threatveil/core/pkg/signal"
	"github.com/threatveil/core/pkg/store"
)

var tracer = otel.Tracer("threatveil/orchestrator")

// AutoVerifier advances an asset's resolved-but-unverified Decisions by
// comparing their originating Scan's Signals with a freshly completed Scan
// (spec.md §4.3 step 9, §4.8); it does not re-probe. It is injected as an
// interface, so pkg/orchestrator does not import pkg/verification and the
// pass is optional.
type AutoVerifier interface {
	AutoVerify(ctx context.Context, assetID string, scan posture.Scan) error
}

// Probes groups every adapter the orchestrator fans out to.
type Probes struct {
	DNS         *probe.DNSProbe
	HTTP        *probe.HTTPProbe
	TLS         *probe.TLSProbe
	CT          *probe.CTLogProbe
	ThreatIntel *probe.ThreatIntelProbe
	VulnDB      *probe.VulnDBProbe
	CodeSearch  *probe.CodeSearchProbe
}

// Orchestrator wires together probes, scoring, persistence, and the
// optional AI summarizer / auto-verification pass.
type Orchestrator struct {
	Probes        Probes
	ScoringConfig scoring.Config
	Summarizer    llm.Summarizer
	Orgs          store.OrganizationStore
	Assets        store.AssetStore
	Scans         store.ScanStore
	RateLimiter   *RateLimiter
	AutoVerifier  AutoVerifier

	now func() time.Time
}

func New(probes Probes, orgs store.OrganizationStore, assets store.AssetStore, scans store.ScanStore) *Orchestrator {
	return &Orchestrator{
		Probes:        probes,
		ScoringConfig: scoring.DefaultConfig(),
		Summarizer:    llm.NullSummarizer{},
		Orgs:          orgs,
		Assets:        assets,
		Scans:         scans,
		RateLimiter:   NewRateLimiter(60, time.Minute),
		now:           time.Now,
	}
}

// Scan implements spec.md §4.3's ten-step pipeline. clientKey scopes the
// sliding-window rate limit (a caller IP at the excluded HTTP boundary, or
// the domain itself for direct core callers).
func (o *Orchestrator) Scan(ctx context.Context, clientKey, domain, codeOrg string) (*posture.Scan, error) {
	start := o.now()

	if err := validateDomain(domain); err != nil {
		return nil, err
	}
	if o.RateLimiter != nil && !o.RateLimiter.Allow(clientKey) {
		return nil, apierr.RateLimited("too many scans requested, try again shortly")
	}

	ctx, span := tracer.Start(ctx, "orchestrator.Scan")
	defer span.End()
	span.SetAttributes(attribute.String("domain", domain))

	org, asset, err := o.findOrCreateOrgAndAsset(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: find or create organization: %w", err)
	}
	if !org.CanEnqueueScan() {
		return nil, apierr.UsageLimitExceeded(fmt.Sprintf("organization %s has reached its monthly scan limit of %d", org.ID, org.ScansLimit))
	}

	signals, rawPayload := o.runStages(ctx, domain, codeOrg)

	partialFailures := 0
	for _, s := range signals {
		if signal.IsServiceError(s) {
			partialFailures++
		}
	}
	if len(signals) == 0 {
		signals = append(signals, signal.New(signal.Params{
			ID:       "scan_completed_no_findings",
			Type:     "info",
			Title:    "Scan Completed With No Findings",
			Detail:   "No signals were produced by any probe for " + domain,
			Severity: signal.SeverityLow,
			Category: signal.CategoryInfrastructure,
			Source:   "orchestrator",
		}))
	}

	aggregate, categories := scoring.Score(signals, o.ScoringConfig)
	likelihoods := scoring.EstimateLikelihoods(signals)

	summary := o.summarize(ctx, domain, signals, likelihoods)

	scan := posture.Scan{
		ID:                  uuid.NewString(),
		OrgID:               org.ID,
		Domain:              domain,
		GitHubOrg:           codeOrg,
		RiskScore:           aggregate,
		CategoryScores:      stringKeyed(categories),
		Signals:             signals,
		Summary:             summary,
		BreachLikelihood30d: likelihoods.Likelihood30d,
		BreachLikelihood90d: likelihoods.Likelihood90d,
		RawPayload:          rawPayload,
		PartialFailures:     partialFailures,
		CreatedAt:           o.now(),
	}

	codeSearchMatches, _ := rawPayload["codesearch"].(map[string]interface{})
	aiResult := computeAIScore(codeSearchMatches)
	scan.AIScore = aiResult.Score

	if err := o.Scans.CreateScan(ctx, scan); err != nil {
		return nil, fmt.Errorf("orchestrator: persist scan: %w", err)
	}
	_ = o.Orgs.IncrementScanCount(ctx, org.ID)

	o.postProcess(ctx, asset, scan)

	duration := o.now().Sub(start)
	level := slog.LevelInfo
	if partialFailures > 0 {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "scan completed",
		"domain", domain,
		"risk_score", aggregate,
		"duration_ms", duration.Milliseconds(),
		"signal_count", len(signals),
		"partial_failures", partialFailures,
		"scan_id", scan.ID,
	)

	return &scan, nil
}

// runStages fans Stage A out in parallel, extracts tech-fingerprint
// tokens from the HTTP result, then fans Stage B out over those tokens
// and the code org. Every probe error is already shielded into a
// service-error Signal (pkg/probe), so errgroup's own error is only used
// to wait for completion, never to abort the group.
func (o *Orchestrator) runStages(ctx context.Context, domain, codeOrg string) ([]signal.Signal, map[string]interface{}) {
	var (
		dnsResult  probe.Result
		httpResult probe.HTTPResult
		tlsResult  probe.Result
		ctResult   probe.Result
		tiResult   probe.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { dnsResult = o.Probes.DNS.Probe(gctx, domain); return nil })
	g.Go(func() error { httpResult = o.Probes.HTTP.Probe(gctx, domain); return nil })
	g.Go(func() error { tlsResult = o.Probes.TLS.Probe(gctx, domain); return nil })
	g.Go(func() error { ctResult = o.Probes.CT.Probe(gctx, domain); return nil })
	g.Go(func() error { tiResult = o.Probes.ThreatIntel.Probe(gctx, domain); return nil })
	_ = g.Wait()

	var (
		vulnResult probe.Result
		codeResult probe.Result
	)
	g2, gctx2 := errgroup.WithContext(ctx)
	if len(httpResult.TechTokens) > 0 {
		g2.Go(func() error { vulnResult = o.Probes.VulnDB.Probe(gctx2, httpResult.TechTokens); return nil })
	}
	if codeOrg != "" {
		g2.Go(func() error { codeResult = o.Probes.CodeSearch.Probe(gctx2, codeOrg); return nil })
	}
	_ = g2.Wait()

	var signals []signal.Signal
	rawPayload := map[string]interface{}{}
	for name, result := range map[string]probe.Result{
		"dns":         dnsResult,
		"http":        httpResult.Result,
		"tls":         tlsResult,
		"ct":          ctResult,
		"threatintel": tiResult,
		"vulndb":      vulnResult,
		"codesearch":  codeResult,
	} {
		signals = append(signals, result.Signals...)
		rawPayload[name] = map[string]interface{}(result.Metadata)
	}

	return signals, rawPayload
}

func (o *Orchestrator) summarize(ctx context.Context, domain string, signals []signal.Signal, likelihoods scoring.Likelihoods) string {
	prompt := summaryPrompt(domain, signals, likelihoods)
	if o.Summarizer != nil {
		if out, err := o.Summarizer.Summarize(ctx, prompt); err == nil && out != "" {
			return llm.Clamp(out, 120)
		}
	}
	return fallbackSummary(domain, signals, likelihoods)
}

func (o *Orchestrator) findOrCreateOrgAndAsset(ctx context.Context, domain string) (posture.Organization, posture.Asset, error) {
	org, err := o.Orgs.FindByDomain(ctx, domain)
	if err != nil {
		org = posture.Organization{
			PrimaryDomain: domain,
			Plan:          posture.PlanFree,
			ScansLimit:    10,
			CreatedAt:     o.now(),
		}
		if err := o.Orgs.Create(ctx, org); err != nil {
			return posture.Organization{}, posture.Asset{}, err
		}
		org, err = o.Orgs.FindByDomain(ctx, domain)
		if err != nil {
			return posture.Organization{}, posture.Asset{}, err
		}
	}

	assets, err := o.Assets.ListByOrg(ctx, org.ID)
	if err == nil {
		for _, a := range assets {
			if a.Type == posture.AssetDomain && a.Identifier == domain {
				return org, a, nil
			}
		}
	}

	asset := posture.Asset{
		OrgID:      org.ID,
		Type:       posture.AssetDomain,
		Identifier: domain,
		RiskWeight: 1.0,
		Frequency:  posture.FrequencyWeekly,
		Status:     posture.AssetActive,
		CreatedAt:  o.now(),
	}
	if err := o.Assets.CreateAsset(ctx, asset); err != nil {
		return org, posture.Asset{}, err
	}
	return org, asset, nil
}

// postProcess runs the auto-verification pass (the AI score is computed
// in Scan before the scan is persisted). It is explicitly forbidden from
// failing the enclosing scan: errors are logged and panics recovered.
func (o *Orchestrator) postProcess(ctx context.Context, asset posture.Asset, scan posture.Scan) {
	span := trace.SpanFromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			span.RecordError(fmt.Errorf("%v", r), trace.WithStackTrace(true))
			slog.Error("orchestrator: post-processing panicked", "scan_id", scan.ID, "panic", r)
		}
	}()

	if o.AutoVerifier != nil && asset.ID != "" {
		if err := o.AutoVerifier.AutoVerify(ctx, asset.ID, scan); err != nil {
			slog.Warn("orchestrator: auto-verification pass failed", "scan_id", scan.ID, "error", err)
		}
	}
}

func stringKeyed(categories map[signal.Category]posture.CategoryScore) map[string]posture.CategoryScore {
	out := make(map[string]posture.CategoryScore, len(categories))
	for k, v := range categories {
		out[string(k)] = v
	}
	return out
}
