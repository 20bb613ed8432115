package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/threatveil/core/pkg/posture"
)

type webhookRow struct {
	ID            string         `db:"id"`
	OrgID         string         `db:"org_id"`
	URL           string         `db:"url"`
	Secret        string         `db:"secret"`
	SubscribedTo  pq.StringArray `db:"subscribed_to"`
	CustomHeaders []byte         `db:"custom_headers"`
	Enabled       bool           `db:"enabled"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r webhookRow) toPosture() (posture.Webhook, error) {
	w := posture.Webhook{
		ID: r.ID, OrgID: r.OrgID, URL: r.URL, Secret: r.Secret,
		SubscribedTo: []string(r.SubscribedTo), Enabled: r.Enabled, CreatedAt: r.CreatedAt,
	}
	if err := fromJSON(r.CustomHeaders, &w.CustomHeaders); err != nil {
		return posture.Webhook{}, err
	}
	return w, nil
}

func (s *Store) ListByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]posture.Webhook, error) {
	var rows []webhookRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, url, secret, subscribed_to, custom_headers, enabled, created_at
		FROM webhooks WHERE org_id = $1 AND enabled = true AND subscribed_to @> $2
	`, orgID, pq.StringArray{eventType})
	if err != nil {
		return nil, fmt.Errorf("pgstore: list webhooks by org and event: %w", err)
	}
	out := make([]posture.Webhook, 0, len(rows))
	for _, r := range rows {
		w, err := r.toPosture()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) CreateWebhook(ctx context.Context, w posture.Webhook) error {
	headers, err := toJSON(w.CustomHeaders)
	if err != nil {
		return fmt.Errorf("pgstore: marshal custom headers: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhooks (id, org_id, url, secret, subscribed_to, custom_headers, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, w.ID, w.OrgID, w.URL, w.Secret, pq.StringArray(w.SubscribedTo), headers, w.Enabled, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create webhook: %w", err)
	}
	return nil
}

func (s *Store) CreateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	payload, err := toJSON(d.Payload)
	if err != nil {
		return fmt.Errorf("pgstore: marshal delivery payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, status, attempts, max_attempts,
			response_code, response_body, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, d.ID, d.WebhookID, d.EventType, payload, d.Status, d.Attempts, d.MaxAttempts, d.ResponseCode,
		d.ResponseBody, d.Error, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create delivery: %w", err)
	}
	return nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d posture.WebhookDelivery) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_deliveries SET status = $1, attempts = $2, response_code = $3, response_body = $4,
			error = $5, updated_at = $6
		WHERE id = $7
	`, d.Status, d.Attempts, d.ResponseCode, d.ResponseBody, d.Error, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("pgstore: update delivery: %w", err)
	}
	return nil
}
