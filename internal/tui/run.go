package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/threatveil/core/internal/swarm"
	"github.com/threatveil/core/pkg/posture"
)

// ScanFunc performs the actual scan; Run drives the dashboard while it
// runs in the background.
type ScanFunc func(ctx context.Context) (*posture.Scan, error)

// Run starts the dashboard, kicks off scan in a goroutine, and blocks
// until the program exits, returning the scan's own result/error.
func Run(ctx context.Context, engine *swarm.Engine, domain string, scan ScanFunc) (*posture.Scan, error) {
	m := NewModel(engine, domain)
	p := tea.NewProgram(m)

	go func() {
		result, err := scan(ctx)
		p.Send(scanResultMsg{scan: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("tui: run program: %w", err)
	}

	fm, ok := final.(Model)
	if !ok {
		return nil, fmt.Errorf("tui: unexpected final model type %T", final)
	}
	if fm.err != nil {
		return nil, fm.err
	}
	return fm.result, nil
}
