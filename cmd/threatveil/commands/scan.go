package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threatveil/core/internal/app"
	"github.com/threatveil/core/internal/swarm"
	"github.com/threatveil/core/internal/tui"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/webhook"
)

var (
	scanCodeOrg string
	scanNoTUI   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <domain>",
	Short: "Run the scan pipeline against a domain and print its risk posture",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanCodeOrg, "code-org", "", "GitHub organization to run the code-search probe against")
	scanCmd.Flags().BoolVar(&scanNoTUI, "no-tui", false, "Print plain text instead of the live progress dashboard")
}

func runScan(cmd *cobra.Command, args []string) error {
	domain := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer a.Close()

	scanFn := func(ctx context.Context) (*posture.Scan, error) {
		return a.Orchestrator.Scan(ctx, domain, domain, scanCodeOrg)
	}

	var scan *posture.Scan
	if scanNoTUI {
		scan, err = scanFn(ctx)
	} else {
		engine := swarm.NewEngine()
		engine.Start(ctx)
		defer engine.Stop()
		scan, err = tui.Run(ctx, engine, domain, submitScan(engine, scanFn))
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if err := createDecisionsAndNotify(ctx, a, *scan); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: post-scan processing failed: %v\n", err)
	}

	if scanNoTUI {
		fmt.Fprintf(cmd.OutOrStdout(), "risk score: %d\n%s\n", scan.RiskScore, scan.Summary)
	}
	return nil
}

// submitScan routes a scan through the swarm worker pool rather than
// calling it inline, so the TUI's progress bar (driven by the same
// engine's stats) reflects a real in-flight task instead of a
// synthetic one.
func submitScan(engine *swarm.Engine, fn func(ctx context.Context) (*posture.Scan, error)) tui.ScanFunc {
	return func(ctx context.Context) (*posture.Scan, error) {
		type result struct {
			scan *posture.Scan
			err  error
		}
		done := make(chan result, 1)
		engine.Submit(func(ctx context.Context) error {
			s, err := fn(ctx)
			done <- result{scan: s, err: err}
			return nil
		})
		select {
		case r := <-done:
			return r.scan, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// createDecisionsAndNotify runs the decision engine over the
// just-completed scan and emits the two webhook events a completed
// scan always produces: the score itself, plus one event per newly
// created decision.
func createDecisionsAndNotify(ctx context.Context, a *app.App, scan posture.Scan) error {
	assetID, err := findAssetID(ctx, a, scan)
	if err != nil {
		return err
	}

	decisions, err := a.Decisions.CreateDecisions(ctx, scan, assetID)
	if err != nil {
		return fmt.Errorf("create decisions: %w", err)
	}

	_ = a.Webhooks.EmitEvent(ctx, scan.OrgID, webhook.EventRiskScoreChanged, map[string]interface{}{
		"scan_id": scan.ID, "domain": scan.Domain, "risk_score": scan.RiskScore,
	})
	for _, d := range decisions {
		_ = a.Webhooks.EmitEvent(ctx, scan.OrgID, webhook.EventDecisionCreated, map[string]interface{}{
			"decision_id": d.ID, "action_id": d.ActionID, "title": d.Title, "priority": d.Priority,
		})
	}
	return nil
}

func findAssetID(ctx context.Context, a *app.App, scan posture.Scan) (string, error) {
	assets, err := a.Stores.ListByOrg(ctx, scan.OrgID)
	if err != nil {
		return "", fmt.Errorf("list assets: %w", err)
	}
	for _, asset := range assets {
		if asset.Type == posture.AssetDomain && asset.Identifier == scan.Domain {
			return asset.ID, nil
		}
	}
	return "", fmt.Errorf("no asset found for domain %q in org %q", scan.Domain, scan.OrgID)
}
