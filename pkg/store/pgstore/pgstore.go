// Package pgstore implements every pkg/store contract against
// PostgreSQL, for operators who want persistence beyond process
// lifetime. One Store value satisfies every interface, same as
// memstore, following r3e-network-service_layer's single-struct,
// many-interfaces PostgresStore shape (applications/storage/postgres,
// packages/com.r3e.services.secrets/store_postgres.go): explicit
// $N-placeholder SQL, session-per-call, no ORM.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/threatveil/core/pkg/store"
)

// Store is a thin wrapper over *sqlx.DB; every store interface in
// pkg/store is implemented as a method on this single type.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres and verifies the connection with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open sqlx.DB, e.g. one built with
// sqlx.NewDb(sqlmock.New()) in tests.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

var (
	_ store.OrganizationStore = (*Store)(nil)
	_ store.AssetStore        = (*Store)(nil)
	_ store.ScanStore         = (*Store)(nil)
	_ store.DecisionStore     = (*Store)(nil)
	_ store.ImpactStore       = (*Store)(nil)
	_ store.VerificationStore = (*Store)(nil)
	_ store.ScheduleStore     = (*Store)(nil)
	_ store.WebhookStore      = (*Store)(nil)
	_ store.ConnectorStore    = (*Store)(nil)
	_ store.AuditLogStore     = (*Store)(nil)
	_ store.CacheStore        = (*Store)(nil)
)

// Migrate applies the schema in order. Intentionally plain
// CREATE TABLE IF NOT EXISTS statements rather than a migration
// framework: the teacher's pack carries no migration library
// (r3e's system/platform/migrations hand-rolls the same pattern).
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pgstore: migrate: %w", err)
		}
	}
	return nil
}

func toJSON(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func fromJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// wrapNotFound maps database/sql's sentinel to the store package's,
// so callers never need to know which driver backs the Store.
func wrapNotFound(err error) error {
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	return err
}
