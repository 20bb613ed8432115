// Package webhook implements the Webhook Dispatcher (spec.md §4.10):
// event delivery to subscriber URLs with HMAC-SHA256 signing and
// exponential-backoff retries, grounded on the teacher's
// pkg/engine/notifier.SlackClient POST+JSON+timeout shape generalized
// from one fixed payload to arbitrary subscriber URLs.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// Event types emitted across the system (spec.md §4.10).
const (
	EventWeeklyBriefGenerated = "weekly_brief.generated"
	EventDecisionCreated      = "decision.created"
	EventDecisionVerified     = "decision.verified"
	EventRiskScoreChanged     = "risk.score_changed"
	EventTest                 = "test"
)

const maxResponseBodyBytes = 1000

// Dispatcher emits events to every enabled Webhook subscribed to them.
type Dispatcher struct {
	Client      *http.Client
	Webhooks    store.WebhookStore
	BackoffBase time.Duration
	now         func() time.Time
}

func NewDispatcher(webhooks store.WebhookStore) *Dispatcher {
	return &Dispatcher{
		Client:      &http.Client{Timeout: 10 * time.Second},
		Webhooks:    webhooks,
		BackoffBase: time.Second,
		now:         time.Now,
	}
}

// EmitEvent finds every enabled Webhook subscribed to eventType and
// dispatches delivery to each independently in its own goroutine — no
// cross-webhook ordering, and EmitEvent returns as soon as delivery is
// launched rather than once it completes, so a slow or unreachable
// webhook's retry backoffs never block the caller. deliveryCtx is
// detached from ctx's cancellation (values are preserved) so a delivery
// in its retry backoff keeps running after the triggering request or CLI
// command that called EmitEvent has already returned.
func (d *Dispatcher) EmitEvent(ctx context.Context, orgID, eventType string, payload map[string]interface{}) error {
	webhooks, err := d.Webhooks.ListByOrgAndEvent(ctx, orgID, eventType)
	if err != nil {
		return fmt.Errorf("webhook: list subscribers: %w", err)
	}

	deliveryCtx := context.WithoutCancel(ctx)
	for _, wh := range webhooks {
		if !wh.Enabled {
			continue
		}
		go d.deliver(deliveryCtx, wh, eventType, payload)
	}
	return nil
}

// deliver drives one delivery through its full retry schedule,
// persisting a WebhookDelivery row throughout.
func (d *Dispatcher) deliver(ctx context.Context, wh posture.Webhook, eventType string, data map[string]interface{}) {
	body, err := canonicalBody(eventType, d.now(), data)
	if err != nil {
		return
	}

	delivery := posture.WebhookDelivery{
		ID: uuid.NewString(), WebhookID: wh.ID, EventType: eventType,
		Payload: data, Status: posture.DeliveryPending, MaxAttempts: 3, CreatedAt: d.now(),
	}
	if err := d.Webhooks.CreateDelivery(ctx, delivery); err != nil {
		return
	}

	signature := sign(body, wh.Secret)

	for attempt := 1; attempt <= delivery.MaxAttempts; attempt++ {
		delivery.Attempts = attempt
		code, respBody, err := d.post(ctx, wh, delivery.ID, eventType, signature, body)
		delivery.UpdatedAt = d.now()

		if err == nil && code >= 200 && code < 300 {
			delivery.Status = posture.DeliverySuccess
			delivery.ResponseCode = &code
			delivery.ResponseBody = truncate(respBody, maxResponseBodyBytes)
			delivery.Error = ""
			_ = d.Webhooks.UpdateDelivery(ctx, delivery)
			return
		}

		if err != nil {
			delivery.Error = err.Error()
		} else {
			delivery.ResponseCode = &code
			delivery.ResponseBody = truncate(respBody, maxResponseBodyBytes)
			delivery.Error = fmt.Sprintf("non-2xx response: %d", code)
		}

		if attempt == delivery.MaxAttempts {
			delivery.Status = posture.DeliveryFailed
			_ = d.Webhooks.UpdateDelivery(ctx, delivery)
			return
		}

		_ = d.Webhooks.UpdateDelivery(ctx, delivery)
		backoff := time.Duration(1<<uint(attempt)) * d.BackoffBase
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (d *Dispatcher) post(ctx context.Context, wh posture.Webhook, deliveryID, eventType, signature string, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-ThreatVeil-Event", eventType)
	req.Header.Set("X-ThreatVeil-Delivery", deliveryID)
	req.Header.Set("X-ThreatVeil-Signature", signature)
	req.Header.Set("User-Agent", "ThreatVeil-Webhook/1.0")
	for k, v := range wh.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	return resp.StatusCode, string(respBody), nil
}

func canonicalBody(eventType string, ts time.Time, data map[string]interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"event":     eventType,
		"timestamp": ts.UTC().Format(time.RFC3339),
		"data":      data,
	})
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
