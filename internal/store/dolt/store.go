// Package dolt implements the persistence contracts in internal/store
// using Dolt's MySQL wire protocol, giving teams branch/merge semantics on
// work-item history for free. Dolt is reached over its sql-server mode
// (pure Go, no CGO) via github.com/go-sql-driver/mysql; embedding a Dolt
// engine in-process is left to operators who want that, matching the
// teacher's own split between server mode and its CGO-only embedded mode.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/store/schema"
	"github.com/workgraph/workctl/internal/store/sqlcommon"
	"github.com/workgraph/workctl/internal/store/storetypes"
)

// Config holds the connection parameters for a Dolt sql-server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      bool
}

func (c Config) dsn() string {
	tlsParam := "false"
	if c.TLS {
		tlsParam = "true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, tlsParam)
}

// Store implements store.Store against a running Dolt sql-server.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

const retryMaxElapsed = 30 * time.Second

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError mirrors the teacher's dolt store's transient-error
// classification: stale pool connections and brief server hiccups are
// retried, anything else is returned immediately.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, sub := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"database is read only",
		"lost connection",
		"gone away",
		"i/o timeout",
		"unknown database",
	} {
		if strings.Contains(errStr, sub) {
			return true
		}
	}
	return false
}

var tracer = otel.Tracer("github.com/workgraph/workctl/store/dolt")

var metrics struct {
	retryCount metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/workgraph/workctl/store/dolt")
	metrics.retryCount, _ = m.Int64Counter("workctl.db.retry_count",
		metric.WithDescription("SQL operations retried due to transient dolt server errors"),
		metric.WithUnit("{retry}"),
	)
}

// withRetry executes op, retrying transient connection errors with
// exponential backoff bounded by retryMaxElapsed.
func (s *Store) withRetry(ctx context.Context, spanName string, op func() error) error {
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attribute.String("db.system", "dolt")))
	defer span.End()

	attempts := 0
	bo := newRetryBackoff()
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err != nil && isRetryableError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if attempts > 1 {
		metrics.retryCount.Add(ctx, int64(attempts-1))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Open connects to the Dolt sql-server described by cfg and applies the
// core schema if it is missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open dolt connection: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	err = s.withRetry(ctx, "dolt.ping", func() error { return db.PingContext(ctx) })
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping dolt server: %w", err)
	}

	ddlErr := s.withRetry(ctx, "dolt.schema", func() error {
		if _, err := db.ExecContext(ctx, schema.CoreTables); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, schema.CoreIndexes)
		return err
	})
	if ddlErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply core schema: %w", ddlErr)
	}
	return s, nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := s.withRetry(ctx, "dolt.exec", func() error {
		var innerErr error
		res, innerErr = s.db.ExecContext(ctx, query, args...)
		return innerErr
	})
	return res, err
}

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := s.withRetry(ctx, "dolt.query", func() error {
		var innerErr error
		rows, innerErr = s.db.QueryContext(ctx, query, args...)
		return innerErr
	})
	return rows, err
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *Store) CreateItem(ctx context.Context, q storetypes.Querier, item *domain.WorkItem) error {
	return sqlcommon.CreateItem(ctx, q, item)
}

func (s *Store) GetItem(ctx context.Context, q storetypes.Querier, id string) (*domain.WorkItem, error) {
	return sqlcommon.GetItem(ctx, q, id)
}

func (s *Store) UpdateItem(ctx context.Context, q storetypes.Querier, item *domain.WorkItem) error {
	return sqlcommon.UpdateItem(ctx, q, item)
}

func (s *Store) DeleteItems(ctx context.Context, q storetypes.Querier, ids []string) error {
	return sqlcommon.DeleteItems(ctx, q, ids)
}

func (s *Store) ListChildren(ctx context.Context, q storetypes.Querier, parentID string) ([]*domain.WorkItem, error) {
	return sqlcommon.ListChildren(ctx, q, parentID)
}

func (s *Store) ListDescendants(ctx context.Context, q storetypes.Querier, rootID string) ([]*domain.WorkItem, error) {
	return sqlcommon.ListDescendants(ctx, q, rootID)
}

func (s *Store) ListItems(ctx context.Context, q storetypes.Querier, filter storetypes.ItemFilter) ([]*domain.WorkItem, error) {
	return sqlcommon.ListItems(ctx, q, filter)
}

func (s *Store) CreateDependency(ctx context.Context, q storetypes.Querier, dep *domain.Dependency) error {
	return sqlcommon.CreateDependency(ctx, q, dep)
}

func (s *Store) DeleteDependency(ctx context.Context, q storetypes.Querier, id string) error {
	return sqlcommon.DeleteDependency(ctx, q, id)
}

func (s *Store) DependencyExists(ctx context.Context, q storetypes.Querier, fromID, toID string, typ domain.DependencyType) (bool, error) {
	return sqlcommon.DependencyExists(ctx, q, fromID, toID, typ)
}

func (s *Store) GetOutgoingDependencies(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Dependency, error) {
	return sqlcommon.GetOutgoingDependencies(ctx, q, itemID)
}

func (s *Store) GetIncomingDependencies(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Dependency, error) {
	return sqlcommon.GetIncomingDependencies(ctx, q, itemID)
}

func (s *Store) BlockingReachable(ctx context.Context, q storetypes.Querier, fromID, toID string) (bool, error) {
	return sqlcommon.BlockingReachable(ctx, q, fromID, toID)
}

func (s *Store) ListBlockingEdgesAmong(ctx context.Context, q storetypes.Querier, ids []string) ([]storetypes.BlockingEdge, error) {
	return sqlcommon.ListBlockingEdgesAmong(ctx, q, ids)
}

func (s *Store) UpsertNote(ctx context.Context, q storetypes.Querier, note *domain.Note) error {
	return sqlcommon.UpsertNote(ctx, q, note)
}

func (s *Store) DeleteNote(ctx context.Context, q storetypes.Querier, itemID, key string) error {
	return sqlcommon.DeleteNote(ctx, q, itemID, key)
}

func (s *Store) GetNote(ctx context.Context, q storetypes.Querier, itemID, key string) (*domain.Note, error) {
	return sqlcommon.GetNote(ctx, q, itemID, key)
}

func (s *Store) ListNotesForItem(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.Note, error) {
	return sqlcommon.ListNotesForItem(ctx, q, itemID)
}

func (s *Store) InsertRoleTransition(ctx context.Context, q storetypes.Querier, rt *domain.RoleTransition) error {
	return sqlcommon.InsertRoleTransition(ctx, q, rt)
}

func (s *Store) ListRoleTransitionsForItem(ctx context.Context, q storetypes.Querier, itemID string) ([]*domain.RoleTransition, error) {
	return sqlcommon.ListRoleTransitionsForItem(ctx, q, itemID)
}

func (s *Store) ListRoleTransitionsSince(ctx context.Context, q storetypes.Querier, since time.Time) ([]*domain.RoleTransition, error) {
	return sqlcommon.ListRoleTransitionsSince(ctx, q, since)
}
