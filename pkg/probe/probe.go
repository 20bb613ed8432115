// Package probe holds one adapter per external source the Scan
// Orchestrator fans out to. Every adapter is a pure-output component:
// Probe(ctx, input) -> (metadata, []signal.Signal), and never returns an
// error — on failure it returns a single service-error Signal instead,
// so partial failure becomes first-class, visible data rather than a
// propagated exception.
package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/threatveil/core/pkg/signal"
)

// Metadata is the raw, adapter-specific payload persisted under a Scan's
// raw_payload map, keyed by probe name, for audit.
type Metadata map[string]interface{}

// Result is the uniform shape every adapter returns.
type Result struct {
	Metadata Metadata
	Signals  []signal.Signal
}

// newHTTPClient builds a plain net/http client with the given timeout; each
// adapter that speaks to a public API or the target (CT, threat-intel,
// vuln-DB, code-search, HTTP) gets its own instance: the teacher never
// reaches for an HTTP client library beyond net/http, so neither do we.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// shield turns a probe's error return into the spec's service-error
// Signal contract so individual adapters stay simple to read: they return
// a normal (Metadata, []signal.Signal, error) and the caller wraps it.
func shield(probeName string, category signal.Category, run func(ctx context.Context) (Metadata, []signal.Signal, error)) func(ctx context.Context) Result {
	return func(ctx context.Context) Result {
		metadata, signals, err := run(ctx)
		if err != nil {
			return Result{Metadata: Metadata{"error": err.Error()}, Signals: []signal.Signal{signal.NewServiceError(probeName, err, category)}}
		}
		return Result{Metadata: metadata, Signals: signals}
	}
}
