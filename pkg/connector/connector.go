// Package connector manages external integrations (cloud accounts,
// ticketing systems) whose credentials must be encrypted at rest and
// validated before they're trusted. Mirrors the teacher's internal/aws
// session bootstrap, generalized to a credential store keyed by a
// per-deployment encryption key instead of one ambient AWS profile.
package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// Supported provider identifiers.
const (
	ProviderAWS = "aws"
)

type Manager struct {
	Store         store.ConnectorStore
	EncryptionKey string
	now           func() time.Time
}

func NewManager(s store.ConnectorStore, encryptionKey string) *Manager {
	return &Manager{Store: s, EncryptionKey: encryptionKey, now: time.Now}
}

// Create validates the given credentials against the provider, encrypts
// them, and persists a new Connector in ConnectorError/ConnectorActive
// status depending on whether validation succeeded.
func (m *Manager) Create(ctx context.Context, orgID, provider string, credentials interface{}, config map[string]interface{}) (posture.Connector, error) {
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return posture.Connector{}, fmt.Errorf("connector: marshal credentials: %w", err)
	}
	encrypted, err := encrypt(plaintext, m.EncryptionKey)
	if err != nil {
		return posture.Connector{}, err
	}

	conn := posture.Connector{
		ID: uuid.NewString(), OrgID: orgID, Provider: provider,
		EncryptedCredentials: encrypted, Config: config, CreatedAt: m.now(),
	}

	if _, err := m.validate(ctx, conn, plaintext); err != nil {
		conn.Status = posture.ConnectorError
		conn.LastError = err.Error()
	} else {
		conn.Status = posture.ConnectorActive
		now := m.now()
		conn.LastSyncAt = &now
	}

	if err := m.Store.CreateConnector(ctx, conn); err != nil {
		return posture.Connector{}, fmt.Errorf("connector: create: %w", err)
	}
	return conn, nil
}

// Revalidate re-checks a connector's stored credentials against its
// provider and updates its status accordingly.
func (m *Manager) Revalidate(ctx context.Context, id string) (posture.Connector, error) {
	conn, err := m.Store.GetConnector(ctx, id)
	if err != nil {
		return posture.Connector{}, fmt.Errorf("connector: get: %w", err)
	}

	plaintext, err := decrypt(conn.EncryptedCredentials, m.EncryptionKey)
	if err != nil {
		return posture.Connector{}, err
	}

	if _, err := m.validate(ctx, conn, plaintext); err != nil {
		conn.Status = posture.ConnectorError
		conn.LastError = err.Error()
	} else {
		conn.Status = posture.ConnectorActive
		conn.LastError = ""
		now := m.now()
		conn.LastSyncAt = &now
	}

	if err := m.Store.UpdateConnector(ctx, conn); err != nil {
		return posture.Connector{}, fmt.Errorf("connector: update: %w", err)
	}
	return conn, nil
}

// Credentials decrypts and returns a connector's stored credentials
// into dst, which must be a pointer of the shape the provider expects
// (e.g. *AWSCredentials for ProviderAWS).
func (m *Manager) Credentials(ctx context.Context, id string, dst interface{}) error {
	conn, err := m.Store.GetConnector(ctx, id)
	if err != nil {
		return fmt.Errorf("connector: get: %w", err)
	}
	plaintext, err := decrypt(conn.EncryptedCredentials, m.EncryptionKey)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, dst)
}

func (m *Manager) List(ctx context.Context, orgID string) ([]posture.Connector, error) {
	return m.Store.ListByOrgConnectors(ctx, orgID)
}

func (m *Manager) validate(ctx context.Context, conn posture.Connector, plaintext []byte) (string, error) {
	switch conn.Provider {
	case ProviderAWS:
		var creds AWSCredentials
		if err := json.Unmarshal(plaintext, &creds); err != nil {
			return "", fmt.Errorf("connector: malformed aws credentials: %w", err)
		}
		return ValidateAWSCredentials(ctx, creds)
	default:
		return "", fmt.Errorf("connector: unsupported provider %q", conn.Provider)
	}
}
