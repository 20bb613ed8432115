// Package posture holds the shared entity types that flow through the
// scanner's core: Organization, Asset, Scan, and everything the Decision
// Engine and Verification Engine mutate. These are plain value types — no
// ORM tags; persistence is behind pkg/store.
package posture

import (
	"time"

	"github.com/threatveil/core/pkg/signal"
)

// PlanTier bounds an Organization's monthly scan allowance.
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// Organization is the tenant root, identified by a unique primary domain.
type Organization struct {
	ID             string
	PrimaryDomain  string
	Plan           PlanTier
	ScansThisMonth int
	ScansLimit     int
	CreatedAt      time.Time
}

// CanEnqueueScan enforces the invariant scans_this_month <= scans_limit
// before enqueue on the free plan.
func (o Organization) CanEnqueueScan() bool {
	if o.Plan != PlanFree {
		return true
	}
	return o.ScansThisMonth < o.ScansLimit
}

// AssetType is a closed enumeration.
type AssetType string

const (
	AssetDomain       AssetType = "domain"
	AssetCodeOrg      AssetType = "code_org"
	AssetCloudAccount AssetType = "cloud_account"
	AssetSaaSVendor   AssetType = "saas_vendor"
)

// ScanFrequency is a closed enumeration.
type ScanFrequency string

const (
	FrequencyDaily   ScanFrequency = "daily"
	FrequencyWeekly  ScanFrequency = "weekly"
	FrequencyMonthly ScanFrequency = "monthly"
	FrequencyManual  ScanFrequency = "manual"
)

// AssetStatus is a closed enumeration.
type AssetStatus string

const (
	AssetActive  AssetStatus = "active"
	AssetPaused  AssetStatus = "paused"
	AssetDeleted AssetStatus = "deleted"
)

// Asset is a scannable or tracked entity belonging to one Organization.
// Only domain and code-org assets are probed; others carry metadata only.
type Asset struct {
	ID             string
	OrgID          string
	Type           AssetType
	Identifier     string // domain name, github org, account id, vendor name
	RiskWeight     float64 // 0.1 - 2.0, used in org-level aggregation
	Priority       int
	Frequency      ScanFrequency
	Status         AssetStatus
	LastScanAt     *time.Time
	NextScanAt     *time.Time
	LastRiskScore  *int
	CreatedAt      time.Time
}

// Probed reports whether this Asset type is subject to active probing.
func (a Asset) Probed() bool {
	return a.Type == AssetDomain || a.Type == AssetCodeOrg
}

// Scan is one execution over one asset at one moment, immutable once
// written.
type Scan struct {
	ID                 string
	OrgID              string
	Domain             string
	GitHubOrg          string
	RiskScore          int
	CategoryScores      map[string]CategoryScore
	Signals             []signal.Signal
	Summary             string
	BreachLikelihood30d float64
	BreachLikelihood90d float64
	RawPayload          map[string]interface{} // keyed by probe name
	PartialFailures     int
	AIScore             int
	CreatedAt           time.Time
}

// CategoryScore is the per-category accumulator output of Scoring.
type CategoryScore struct {
	Points   int
	Severity signal.Severity
}

// DecisionStatus is the Decision Engine lifecycle's closed enumeration.
type DecisionStatus string

const (
	DecisionPending    DecisionStatus = "pending"
	DecisionAccepted   DecisionStatus = "accepted"
	DecisionInProgress DecisionStatus = "in_progress"
	DecisionResolved   DecisionStatus = "resolved"
	DecisionVerified   DecisionStatus = "verified"
)

// SecurityDecision is a deterministically derived remediation item.
// Mutated only through the lifecycle state machine; never destroyed
// except via org deletion.
type SecurityDecision struct {
	ID                  string
	ScanID              string
	OrgID               string
	AssetID             string
	Domain              string
	ActionID            string
	Title               string
	RecommendedFix      string
	Effort              string
	EstimatedReduction  int // percent
	Priority            int // 1 = highest
	Status              DecisionStatus
	BeforeScore         int
	AfterScore          *int
	ResolvedAt          *time.Time
	AcceptedAt          *time.Time
	VerifiedAt          *time.Time
	VerificationScanID  *string
	ConfidenceScore     float64
	ConfidenceReason    string
	BusinessImpact      string
	CreatedAt           time.Time
}

// ConfidenceTier is one of exactly four values, derived from scan recency
// and whether the triggering signal disappeared.
type ConfidenceTier float64

const (
	ConfidenceCertain      ConfidenceTier = 1.0
	ConfidenceLikely       ConfidenceTier = 0.7
	ConfidenceStale        ConfidenceTier = 0.4
	ConfidenceUnverifiable ConfidenceTier = 0.2
)

// DecisionImpact is one-to-one with a resolved Decision.
type DecisionImpact struct {
	ID          string
	DecisionID  string
	RiskBefore  int
	RiskAfter   *int
	Delta       *int
	Confidence  ConfidenceTier
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VerificationResult is a closed enumeration.
type VerificationResult string

const (
	VerificationPass    VerificationResult = "pass"
	VerificationFail    VerificationResult = "fail"
	VerificationUnknown VerificationResult = "unknown"
)

// DecisionVerificationRun is one per verification attempt on a Decision.
type DecisionVerificationRun struct {
	ID         string
	DecisionID string
	Result     VerificationResult
	Confidence ConfidenceTier
	Notes      string
	CreatedAt  time.Time
}

// EvidenceStage tags a DecisionEvidence snapshot.
type EvidenceStage string

const (
	EvidenceBefore EvidenceStage = "before"
	EvidenceAfter  EvidenceStage = "after"
	EvidenceDiff   EvidenceStage = "diff"
)

// DecisionEvidence is a before/after snapshot record captured during
// verification.
type DecisionEvidence struct {
	ID         string
	DecisionID string
	Stage      EvidenceStage
	Payload    map[string]interface{}
	CreatedAt  time.Time
}

// ScheduleStatus is a closed enumeration.
type ScheduleStatus string

const (
	ScheduleActive ScheduleStatus = "active"
	SchedulePaused ScheduleStatus = "paused"
)

// ScanSchedule is a per-asset scheduling record.
type ScanSchedule struct {
	ID          string
	AssetID     string
	Frequency   ScanFrequency
	NextRunAt   time.Time
	LastRunAt   *time.Time
	LastScanID  *string
	Status      ScheduleStatus
	RunCount    int
	ErrorCount  int
	LastError   string
}

// DeliveryStatus is a closed enumeration.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Webhook is a subscriber URL + HMAC secret + subscribed event set.
type Webhook struct {
	ID             string
	OrgID          string
	URL            string
	Secret         string
	SubscribedTo   []string
	CustomHeaders  map[string]string
	Enabled        bool
	CreatedAt      time.Time
}

// WebhookDelivery is one per delivery attempt.
type WebhookDelivery struct {
	ID           string
	WebhookID    string
	EventType    string
	Payload      map[string]interface{}
	Status       DeliveryStatus
	Attempts     int
	MaxAttempts  int
	ResponseCode *int
	ResponseBody string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConnectorStatus is a closed enumeration.
type ConnectorStatus string

const (
	ConnectorActive ConnectorStatus = "active"
	ConnectorError  ConnectorStatus = "error"
)

// Connector is an external integration with encrypted credentials.
type Connector struct {
	ID                 string
	OrgID               string
	Provider            string
	EncryptedCredentials []byte
	Config              map[string]interface{}
	LastSyncAt          *time.Time
	LastError           string
	Status              ConnectorStatus
	CreatedAt           time.Time
}

// AuditLog records a side-effecting action for later review, e.g. the
// scheduler's "scheduled_scan" entries.
type AuditLog struct {
	ID           string
	OrgID        string
	Action       string
	ResourceType string
	ResourceID   string
	Details      map[string]interface{}
	CreatedAt    time.Time
}
