package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

type connectorRow struct {
	ID                   string       `db:"id"`
	OrgID                string       `db:"org_id"`
	Provider             string       `db:"provider"`
	EncryptedCredentials []byte       `db:"encrypted_credentials"`
	Config               []byte       `db:"config"`
	LastSyncAt           sql.NullTime `db:"last_sync_at"`
	LastError            string       `db:"last_error"`
	Status               string       `db:"status"`
	CreatedAt            time.Time    `db:"created_at"`
}

func (r connectorRow) toPosture() (posture.Connector, error) {
	c := posture.Connector{
		ID: r.ID, OrgID: r.OrgID, Provider: r.Provider, EncryptedCredentials: r.EncryptedCredentials,
		LastError: r.LastError, Status: posture.ConnectorStatus(r.Status), CreatedAt: r.CreatedAt,
	}
	if err := fromJSON(r.Config, &c.Config); err != nil {
		return posture.Connector{}, err
	}
	if r.LastSyncAt.Valid {
		c.LastSyncAt = &r.LastSyncAt.Time
	}
	return c, nil
}

const connectorColumns = `id, org_id, provider, encrypted_credentials, config, last_sync_at, last_error, status, created_at`

func (s *Store) GetConnector(ctx context.Context, id string) (posture.Connector, error) {
	var row connectorRow
	err := s.db.GetContext(ctx, &row, `SELECT `+connectorColumns+` FROM connectors WHERE id = $1`, id)
	if err != nil {
		return posture.Connector{}, wrapNotFound(err)
	}
	return row.toPosture()
}

func (s *Store) ListByOrgConnectors(ctx context.Context, orgID string) ([]posture.Connector, error) {
	var rows []connectorRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+connectorColumns+` FROM connectors WHERE org_id = $1 ORDER BY created_at`, orgID); err != nil {
		return nil, fmt.Errorf("pgstore: list connectors: %w", err)
	}
	out := make([]posture.Connector, 0, len(rows))
	for _, r := range rows {
		c, err := r.toPosture()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) CreateConnector(ctx context.Context, c posture.Connector) error {
	config, err := toJSON(c.Config)
	if err != nil {
		return fmt.Errorf("pgstore: marshal connector config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connectors (id, org_id, provider, encrypted_credentials, config, last_sync_at, last_error, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.OrgID, c.Provider, c.EncryptedCredentials, config, c.LastSyncAt, c.LastError, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create connector: %w", err)
	}
	return nil
}

func (s *Store) UpdateConnector(ctx context.Context, c posture.Connector) error {
	config, err := toJSON(c.Config)
	if err != nil {
		return fmt.Errorf("pgstore: marshal connector config: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE connectors SET encrypted_credentials = $1, config = $2, last_sync_at = $3, last_error = $4, status = $5
		WHERE id = $6
	`, c.EncryptedCredentials, config, c.LastSyncAt, c.LastError, c.Status, c.ID)
	if err != nil {
		return fmt.Errorf("pgstore: update connector: %w", err)
	}
	return nil
}

type auditLogRow struct {
	ID           string    `db:"id"`
	OrgID        string    `db:"org_id"`
	Action       string    `db:"action"`
	ResourceType string    `db:"resource_type"`
	ResourceID   string    `db:"resource_id"`
	Details      []byte    `db:"details"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *Store) Append(ctx context.Context, entry posture.AuditLog) error {
	details, err := toJSON(entry.Details)
	if err != nil {
		return fmt.Errorf("pgstore: marshal audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, org_id, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.OrgID, entry.Action, entry.ResourceType, entry.ResourceID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: append audit log: %w", err)
	}
	return nil
}

func (s *Store) ListByOrgAudit(ctx context.Context, orgID string, limit int) ([]posture.AuditLog, error) {
	var rows []auditLogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, org_id, action, resource_type, resource_id, details, created_at
		FROM audit_log WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list audit log: %w", err)
	}
	out := make([]posture.AuditLog, 0, len(rows))
	for _, r := range rows {
		var details map[string]interface{}
		if err := fromJSON(r.Details, &details); err != nil {
			return nil, err
		}
		out = append(out, posture.AuditLog{
			ID: r.ID, OrgID: r.OrgID, Action: r.Action, ResourceType: r.ResourceType,
			ResourceID: r.ResourceID, Details: details, CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// CacheGet/CachePut satisfy pkg/store.CacheStore so the content-
// addressed cache can be backed by Postgres instead of memstore's
// in-process map when operators run pgstore.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	var value []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT value, expires_at FROM cache_entries WHERE key = $1`, key).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("pgstore: cache get: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, time.Time{}, false, nil
	}
	return value, expiresAt, true, nil
}

func (s *Store) CachePut(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("pgstore: cache put: %w", err)
	}
	return nil
}
