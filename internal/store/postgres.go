package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/watchtower/pkg/cost"
	"github.com/kiranshivaraju/watchtower/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// --- Tenants & Plans ---

func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, ai_base_prompt, ai_negative_prompt, created_at, updated_at
		 FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.AIBasePrompt, &t.AINegativePrompt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// GetActivePlan returns the plan id of the tenant's newest active subscription.
func (s *PostgresStore) GetActivePlan(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var planID string
	err := s.pool.QueryRow(ctx,
		`SELECT plan_id FROM subscriptions
		 WHERE tenant_id = $1 AND status = 'active'
		   AND (current_period_end IS NULL OR current_period_end > NOW())
		 ORDER BY created_at DESC LIMIT 1`, tenantID,
	).Scan(&planID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get active plan: %w", err)
	}
	return planID, nil
}

// --- Monitoring Configs ---

func (s *PostgresStore) ListActiveConfigs(ctx context.Context, filter ConfigFilter) ([]*models.MonitoringConfig, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	query := `SELECT mc.id, mc.tenant_id, mc.keywords, mc.urls_to_track, mc.frequency, mc.is_active,
		        mc.last_run_at, mc.created_at, mc.updated_at
		 FROM monitoring_configs mc
		 WHERE mc.is_active
		   AND EXISTS (
		     SELECT 1 FROM subscriptions sub
		     WHERE sub.tenant_id = mc.tenant_id AND sub.status = 'active'
		       AND (sub.current_period_end IS NULL OR sub.current_period_end > $1))`
	args := []any{now}

	if filter.TenantID != nil {
		query += " AND mc.tenant_id = $2"
		args = append(args, *filter.TenantID)
	}
	query += " ORDER BY mc.last_run_at NULLS FIRST, mc.tenant_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list active configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.MonitoringConfig
	for rows.Next() {
		var c models.MonitoringConfig
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Keywords, &c.URLs, &c.Frequency, &c.IsActive,
			&c.LastRunAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan monitoring config: %w", err)
		}
		configs = append(configs, &c)
	}
	return configs, rows.Err()
}

func (s *PostgresStore) MarkConfigRun(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitoring_configs SET last_run_at = $2, updated_at = NOW() WHERE tenant_id = $1`,
		tenantID, at)
	if err != nil {
		return fmt.Errorf("mark config run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analyzed Items ---

func (s *PostgresStore) CreateAnalyzedItem(ctx context.Context, item *models.AnalyzedItem) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analyzed_items (id, tenant_id, source_url, content, summary, keywords, sentiment, impact, snapshot_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.TenantID, item.SourceURL, item.Content, item.Summary, nonNil(item.Keywords),
		item.Sentiment, item.Impact, item.SnapshotKey, item.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create analyzed item: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalyzedItems(ctx context.Context, filter ItemFilter) ([]*models.AnalyzedItem, int, error) {
	filter.Normalize()

	conditions := []string{"tenant_id = $1"}
	args := []any{filter.TenantID}
	argIdx := 2

	if !filter.Since.IsZero() {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, filter.Since)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM analyzed_items WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count analyzed items: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	dataQuery := fmt.Sprintf(
		`SELECT id, tenant_id, source_url, content, summary, keywords, sentiment, impact, snapshot_key, created_at
		 FROM analyzed_items WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list analyzed items: %w", err)
	}
	defer rows.Close()

	items := []*models.AnalyzedItem{}
	for rows.Next() {
		var it models.AnalyzedItem
		if err := rows.Scan(&it.ID, &it.TenantID, &it.SourceURL, &it.Content, &it.Summary, &it.Keywords,
			&it.Sentiment, &it.Impact, &it.SnapshotKey, &it.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan analyzed item: %w", err)
		}
		items = append(items, &it)
	}
	return items, total, rows.Err()
}

// --- Audit Ledger ---

// CreateAuditRecord appends a ledger row. Cost is stored at the ledger scale.
func (s *PostgresStore) CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_records (id, tenant_id, endpoint, tokens_in, tokens_out, cost_usd, status, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)`,
		rec.ID, rec.TenantID, rec.Endpoint, rec.TokensIn, rec.TokensOut, cost.Format(rec.CostUSD),
		rec.Status, rec.Detail, rec.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumAuditUsage(ctx context.Context, tenantID uuid.UUID, since time.Time) (*models.UsageSummary, error) {
	sum := &models.UsageSummary{TenantID: tenantID, Since: since}
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'FAILED'),
		        COALESCE(SUM(tokens_in), 0),
		        COALESCE(SUM(tokens_out), 0),
		        COALESCE(SUM(cost_usd), 0)::float8
		 FROM audit_records WHERE tenant_id = $1 AND created_at >= $2`, tenantID, since,
	).Scan(&sum.Calls, &sum.Failed, &sum.TokensIn, &sum.TokensOut, &sum.CostUSD)
	if err != nil {
		return nil, fmt.Errorf("sum audit usage: %w", err)
	}
	return sum, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
