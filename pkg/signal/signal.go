// Package signal defines the normalized Signal schema every probe adapter
// emits and the evidence envelope that accompanies it.
package signal

import (
	"fmt"
	"strings"
	"time"
)

// Severity is a closed enumeration; do not model as an open string at the
// core boundary.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category is a closed enumeration.
type Category string

const (
	CategoryInfrastructure Category = "infrastructure"
	CategorySoftware       Category = "software"
	CategoryData           Category = "data"
	CategoryDataExposure   Category = "data_exposure"
	CategoryIdentity       Category = "identity"
	CategoryAI             Category = "ai"
	CategoryAIIntegration  Category = "ai_integration"
	CategoryNetwork        Category = "network"
)

// DetectionMethod tags how a Signal's evidence was produced.
type DetectionMethod string

const (
	DetectionRule   DetectionMethod = "rule"
	DetectionML     DetectionMethod = "ml"
	DetectionError  DetectionMethod = "error"
	DetectionManual DetectionMethod = "manual"
)

// Evidence is the mandatory envelope carried by every Signal. It is the
// contract for downstream reasoning and AI grounding — treat it as a
// tagged sum on DetectionMethod, not as free-form JSON.
type Evidence struct {
	SourceService   string                 `json:"source"`
	ObservedAt      time.Time              `json:"observed_at"`
	URL             string                 `json:"url,omitempty"`
	Raw             map[string]interface{} `json:"raw"`
	ExternalRefs    []string               `json:"external_refs,omitempty"`
	DetectionMethod DetectionMethod        `json:"detection_method"`
	Confidence      float64                `json:"confidence"`
	NotesForAI      string                 `json:"notes_for_ai,omitempty"`
}

// Signal is a normalized finding produced by a probe adapter. Its JSON shape
// is bit-stable (spec'd in the external interface contract): do not add or
// reorder fields in Evidence or Signal without a compatibility review.
type Signal struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Title    string   `json:"title,omitempty"`
	Evidence Evidence `json:"evidence"`
}

// Params groups the fields New needs beyond evidence, kept small on purpose
// since most adapters only vary id/type/detail/severity/category.
type Params struct {
	ID       string
	Type     string
	Title    string
	Detail   string
	Severity Severity
	Category Category
	Source   string
	URL      string
	Raw      map[string]interface{}
	Method   DetectionMethod
}

// New builds a canonical Signal, stamping ObservedAt with the current time
// and defaulting DetectionMethod to rule-based when unset.
func New(p Params) Signal {
	method := p.Method
	if method == "" {
		method = DetectionRule
	}
	raw := p.Raw
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return Signal{
		ID:       p.ID,
		Type:     p.Type,
		Title:    p.Title,
		Detail:   p.Detail,
		Severity: p.Severity,
		Category: p.Category,
		Evidence: Evidence{
			SourceService:   p.Source,
			ObservedAt:      time.Now().UTC(),
			URL:             p.URL,
			Raw:             raw,
			DetectionMethod: method,
			Confidence:      1.0,
		},
	}
}

// friendlyMessages restores the original per-probe-name copy instead of one
// generic template — it's what an operator actually sees in a dashboard.
var friendlyMessages = map[string]string{
	"DNS":         "DNS lookup failed, results may be incomplete.",
	"HTTP":        "HTTP security check failed, results may be incomplete.",
	"TLS":         "TLS certificate check failed, results may be incomplete.",
	"CT":          "Certificate transparency log check failed, results may be incomplete.",
	"ThreatIntel": "Threat intelligence enrichment unavailable, results may be incomplete.",
	"VulnDB":      "Vulnerability database check failed, results may be incomplete.",
	"CodeSearch":  "Code search unavailable, results may be incomplete.",
}

// NewServiceError builds the service-error Signal a probe adapter returns
// instead of propagating an error: low severity, detection_method=error,
// id of the shape "service_<probe>_failure".
func NewServiceError(probeName string, err error, category Category) Signal {
	detail, ok := friendlyMessages[probeName]
	if !ok {
		detail = probeName + " service failed, results may be incomplete."
	}
	return Signal{
		ID:       "service_" + lower(probeName) + "_failure",
		Type:     "service_error",
		Title:    probeName + " Unavailable — results may be incomplete",
		Detail:   detail,
		Severity: SeverityLow,
		Category: category,
		Evidence: Evidence{
			SourceService:   lower(probeName),
			ObservedAt:      time.Now().UTC(),
			Raw: map[string]interface{}{
				"error":      err.Error(),
				"error_type": errorType(err),
				"service":    probeName,
			},
			DetectionMethod: DetectionError,
			Confidence:      1.0,
		},
	}
}

// IsServiceError reports whether a Signal is the synthetic error-shield
// Signal a probe emits on failure, per the "service_*_failure" id contract.
func IsServiceError(s Signal) bool {
	return strings.HasPrefix(s.ID, "service_") && strings.HasSuffix(s.ID, "_failure")
}

// AgentKeywords is the fixed set of AI tool/library name substrings that
// mark a detected AI tool as agent/orchestration-framework usage (spec.md
// review-agents rule and ai_score's agent bonus).
var AgentKeywords = []string{"langchain", "crewai", "autogen", "langgraph", "agent"}

// MatchesAgentKeyword reports whether text (a tool name, or a Signal's
// Title/Detail) contains any AgentKeywords entry, case-insensitive.
func MatchesAgentKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range AgentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsAgentTool reports whether an AI-category Signal's name/detail
// identifies an agent/orchestration-framework tool rather than a plain AI
// library, by matching against AgentKeywords — not a separately invented
// detection pattern.
func IsAgentTool(s Signal) bool {
	if s.Category != CategoryAI && s.Category != CategoryAIIntegration {
		return false
	}
	return MatchesAgentKeyword(s.Title) || MatchesAgentKeyword(s.Detail)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func errorType(err error) string {
	return fmt.Sprintf("%T", err)
}
