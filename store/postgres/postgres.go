// Package postgres implements the cost record store on PostgreSQL
// using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"costpilot/core/types"
	"costpilot/internal/errors"
	"costpilot/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_cost_resources (
    user_id UUID NOT NULL,
    subscription_id TEXT NOT NULL,
    date DATE NOT NULL,
    resource_id VARCHAR(1024) NOT NULL,
    cost NUMERIC(18,4) NOT NULL,
    currency VARCHAR(8) NOT NULL DEFAULT 'USD',
    PRIMARY KEY (user_id, subscription_id, date, resource_id)
);

CREATE INDEX IF NOT EXISTS idx_daily_cost_user_date
    ON daily_cost_resources (user_id, date);

CREATE TABLE IF NOT EXISTS cost_summaries (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    date DATE NOT NULL,
    total_yesterday NUMERIC(18,4) NOT NULL,
    total_today NUMERIC(18,4) NOT NULL,
    difference NUMERIC(18,4) NOT NULL,
    baseline NUMERIC(18,4) NOT NULL,
    spike_flag BOOLEAN NOT NULL,
    confidence VARCHAR(16) NOT NULL,
    top_cause JSONB,
    suggestion_text TEXT NOT NULL,
    created_at_utc TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, date)
);

CREATE TABLE IF NOT EXISTS waste_findings (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    subscription_id TEXT NOT NULL,
    finding_type VARCHAR(64) NOT NULL,
    resource_id VARCHAR(1024) NOT NULL,
    resource_name TEXT NOT NULL,
    estimated_monthly_cost NUMERIC(18,2),
    classification VARCHAR(64),
    inactive_duration_days NUMERIC(8,2),
    waste_confidence_level VARCHAR(16),
    last_seen_active_utc TIMESTAMPTZ,
    status VARCHAR(64) NOT NULL,
    detected_at_utc TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_waste_findings_user
    ON waste_findings (user_id);
`

// Store is the PostgreSQL implementation of store.Store
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, dsn string, maxOpenConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Storage("opening database", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Storage("connecting to database", err)
	}
	return &Store{db: db}, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Storage("creating schema", err)
	}
	return nil
}

// QueryDailyCosts returns a user's cost rows inside the range
func (s *Store) QueryDailyCosts(ctx context.Context, userID uuid.UUID, subscriptionID string, r store.DateRange) ([]types.DailyCostRecord, error) {
	query := `
		SELECT user_id, subscription_id, date, resource_id, cost, currency
		FROM daily_cost_resources
		WHERE user_id = $1`
	args := []interface{}{userID}
	if subscriptionID != "" {
		args = append(args, subscriptionID)
		query += " AND subscription_id = $" + strconv.Itoa(len(args))
	}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY date, resource_id"

	sqlRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage("querying cost rows", err)
	}
	defer sqlRows.Close()

	var rows []types.DailyCostRecord
	for sqlRows.Next() {
		var row types.DailyCostRecord
		var date time.Time
		if err := sqlRows.Scan(&row.UserID, &row.SubscriptionID, &date, &row.ResourceID, &row.Cost, &row.Currency); err != nil {
			return nil, errors.Storage("scanning cost row", err)
		}
		row.Date = types.DateOf(date)
		rows = append(rows, row)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, errors.Storage("iterating cost rows", err)
	}
	return rows, nil
}

// UpsertDailyCosts inserts rows, replacing any with the same natural
// key.
func (s *Store) UpsertDailyCosts(ctx context.Context, rows []types.DailyCostRecord) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_cost_resources (user_id, subscription_id, date, resource_id, cost, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, subscription_id, date, resource_id)
		DO UPDATE SET cost = EXCLUDED.cost, currency = EXCLUDED.currency`)
	if err != nil {
		return errors.Storage("preparing upsert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.UserID, row.SubscriptionID, row.Date.Time(),
			types.TruncateResourceID(row.ResourceID), row.Cost, row.Currency,
		); err != nil {
			return errors.Storage("upserting cost row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Storage("committing cost rows", err)
	}
	return nil
}

// ReplaceDailyCosts swaps the (user, subscription, range) window for
// the given rows in one transaction.
func (s *Store) ReplaceDailyCosts(ctx context.Context, userID uuid.UUID, subscriptionID string, r store.DateRange, rows []types.DailyCostRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	query := "DELETE FROM daily_cost_resources WHERE user_id = $1"
	args := []interface{}{userID}
	if subscriptionID != "" {
		args = append(args, subscriptionID)
		query += " AND subscription_id = $" + strconv.Itoa(len(args))
	}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Storage("clearing cost window", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_cost_resources (user_id, subscription_id, date, resource_id, cost, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, subscription_id, date, resource_id)
		DO UPDATE SET cost = EXCLUDED.cost, currency = EXCLUDED.currency`)
	if err != nil {
		return errors.Storage("preparing insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.UserID, row.SubscriptionID, row.Date.Time(),
			types.TruncateResourceID(row.ResourceID), row.Cost, row.Currency,
		); err != nil {
			return errors.Storage("inserting cost row", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Storage("committing cost window", err)
	}
	return nil
}

// DeleteDailyCosts removes a user's rows inside the range
func (s *Store) DeleteDailyCosts(ctx context.Context, userID uuid.UUID, r store.DateRange) error {
	query := "DELETE FROM daily_cost_resources WHERE user_id = $1"
	args := []interface{}{userID}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Storage("deleting cost rows", err)
	}
	return nil
}

// ReplaceCostSummary swaps the summary for (user, date)
func (s *Store) ReplaceCostSummary(ctx context.Context, summary types.CostSummary) error {
	var topCause []byte
	if summary.TopCause != nil {
		encoded, err := json.Marshal(summary.TopCause)
		if err != nil {
			return errors.Storage("encoding top cause", err)
		}
		topCause = encoded
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_summaries
			(id, user_id, date, total_yesterday, total_today, difference,
			 baseline, spike_flag, confidence, top_cause, suggestion_text, created_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, date) DO UPDATE SET
			id = EXCLUDED.id,
			total_yesterday = EXCLUDED.total_yesterday,
			total_today = EXCLUDED.total_today,
			difference = EXCLUDED.difference,
			baseline = EXCLUDED.baseline,
			spike_flag = EXCLUDED.spike_flag,
			confidence = EXCLUDED.confidence,
			top_cause = EXCLUDED.top_cause,
			suggestion_text = EXCLUDED.suggestion_text,
			created_at_utc = EXCLUDED.created_at_utc`,
		summary.ID, summary.UserID, summary.Date.Time(),
		summary.TotalYesterday, summary.TotalToday, summary.Difference,
		summary.Baseline, summary.SpikeFlag, string(summary.Confidence),
		topCause, summary.SuggestionText, summary.CreatedAtUtc,
	)
	if err != nil {
		return errors.Storage("replacing cost summary", err)
	}
	return nil
}

// GetCostSummary returns the summary for (user, date), nil if none
func (s *Store) GetCostSummary(ctx context.Context, userID uuid.UUID, date types.Date) (*types.CostSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, date, total_yesterday, total_today, difference,
		       baseline, spike_flag, confidence, top_cause, suggestion_text, created_at_utc
		FROM cost_summaries
		WHERE user_id = $1 AND date = $2`,
		userID, date.Time())

	summary, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Storage("reading cost summary", err)
	}
	return summary, nil
}

// QueryCostSummariesByDate returns all summaries for one date
func (s *Store) QueryCostSummariesByDate(ctx context.Context, date types.Date) ([]types.CostSummary, error) {
	sqlRows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, total_yesterday, total_today, difference,
		       baseline, spike_flag, confidence, top_cause, suggestion_text, created_at_utc
		FROM cost_summaries
		WHERE date = $1`,
		date.Time())
	if err != nil {
		return nil, errors.Storage("querying cost summaries", err)
	}
	defer sqlRows.Close()

	var summaries []types.CostSummary
	for sqlRows.Next() {
		summary, err := scanSummary(sqlRows)
		if err != nil {
			return nil, errors.Storage("scanning cost summary", err)
		}
		summaries = append(summaries, *summary)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, errors.Storage("iterating cost summaries", err)
	}
	return summaries, nil
}

// DeleteCostSummaries removes a user's summaries inside the range
func (s *Store) DeleteCostSummaries(ctx context.Context, userID uuid.UUID, r store.DateRange) error {
	query := "DELETE FROM cost_summaries WHERE user_id = $1"
	args := []interface{}{userID}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Storage("deleting cost summaries", err)
	}
	return nil
}

// ReplaceWasteFindings swaps the tracked findings of the given users
// for the fresh scan result set in one transaction.
func (s *Store) ReplaceWasteFindings(ctx context.Context, userIDs []uuid.UUID, findingTypes []types.FindingType, rows []types.WasteFinding) error {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	users := make([]string, len(userIDs))
	for i, userID := range userIDs {
		users[i] = userID.String()
	}
	tracked := make([]string, len(findingTypes))
	for i, findingType := range findingTypes {
		tracked[i] = string(findingType)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM waste_findings
		WHERE user_id = ANY($1::uuid[]) AND finding_type = ANY($2)`,
		pq.Array(users), pq.Array(tracked),
	); err != nil {
		return errors.Storage("clearing waste findings", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO waste_findings
			(id, user_id, subscription_id, finding_type, resource_id, resource_name,
			 estimated_monthly_cost, classification, inactive_duration_days,
			 waste_confidence_level, last_seen_active_utc, status, detected_at_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return errors.Storage("preparing finding insert", err)
	}
	defer stmt.Close()

	for _, finding := range rows {
		if _, err := stmt.ExecContext(ctx,
			finding.ID, finding.UserID, finding.SubscriptionID,
			string(finding.FindingType), types.TruncateResourceID(finding.ResourceID),
			finding.ResourceName, nullDecimal(finding.EstimatedMonthlyCost),
			nullString(finding.Classification), nullDecimal(finding.InactiveDurationDays),
			nullString(string(finding.WasteConfidenceLevel)), finding.LastSeenActiveUtc,
			finding.Status, finding.DetectedAtUtc,
		); err != nil {
			return errors.Storage("inserting waste finding", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Storage("committing waste findings", err)
	}
	return nil
}

// QueryWasteFindings returns a user's findings sorted by estimated
// monthly cost descending, then detection time descending. A limit of
// 0 means no limit.
func (s *Store) QueryWasteFindings(ctx context.Context, userID uuid.UUID, limit int) ([]types.WasteFinding, error) {
	query := `
		SELECT id, user_id, subscription_id, finding_type, resource_id, resource_name,
		       estimated_monthly_cost, classification, inactive_duration_days,
		       waste_confidence_level, last_seen_active_utc, status, detected_at_utc
		FROM waste_findings
		WHERE user_id = $1
		ORDER BY estimated_monthly_cost DESC NULLS LAST, detected_at_utc DESC`
	args := []interface{}{userID}
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $2"
	}

	sqlRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage("querying waste findings", err)
	}
	defer sqlRows.Close()

	var findings []types.WasteFinding
	for sqlRows.Next() {
		var finding types.WasteFinding
		var findingType string
		var estimate, inactiveDays decimal.NullDecimal
		var classification, confidence sql.NullString
		var lastSeenActive sql.NullTime
		if err := sqlRows.Scan(
			&finding.ID, &finding.UserID, &finding.SubscriptionID,
			&findingType, &finding.ResourceID, &finding.ResourceName,
			&estimate, &classification, &inactiveDays,
			&confidence, &lastSeenActive, &finding.Status, &finding.DetectedAtUtc,
		); err != nil {
			return nil, errors.Storage("scanning waste finding", err)
		}
		finding.FindingType = types.FindingType(findingType)
		if estimate.Valid {
			finding.EstimatedMonthlyCost = &estimate.Decimal
		}
		if classification.Valid {
			finding.Classification = classification.String
		}
		if inactiveDays.Valid {
			finding.InactiveDurationDays = &inactiveDays.Decimal
		}
		if confidence.Valid {
			finding.WasteConfidenceLevel = types.Confidence(confidence.String)
		}
		if lastSeenActive.Valid {
			utc := lastSeenActive.Time.UTC()
			finding.LastSeenActiveUtc = &utc
		}
		findings = append(findings, finding)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, errors.Storage("iterating waste findings", err)
	}
	return findings, nil
}

// DistinctUsers returns users with cost rows inside the range
func (s *Store) DistinctUsers(ctx context.Context, r store.DateRange) ([]uuid.UUID, error) {
	query := "SELECT DISTINCT user_id FROM daily_cost_resources WHERE TRUE"
	var args []interface{}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}

	sqlRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage("querying users", err)
	}
	defer sqlRows.Close()

	var users []uuid.UUID
	for sqlRows.Next() {
		var userID uuid.UUID
		if err := sqlRows.Scan(&userID); err != nil {
			return nil, errors.Storage("scanning user", err)
		}
		users = append(users, userID)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, errors.Storage("iterating users", err)
	}
	return users, nil
}

// DistinctTargets returns (user, subscription) pairs with cost rows
// inside the range.
func (s *Store) DistinctTargets(ctx context.Context, r store.DateRange) ([]store.Target, error) {
	query := "SELECT DISTINCT user_id, subscription_id FROM daily_cost_resources WHERE TRUE"
	var args []interface{}
	if !r.From.IsZero() {
		args = append(args, r.From.Time())
		query += " AND date >= $" + strconv.Itoa(len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To.Time())
		query += " AND date <= $" + strconv.Itoa(len(args))
	}

	sqlRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Storage("querying targets", err)
	}
	defer sqlRows.Close()

	var targets []store.Target
	for sqlRows.Next() {
		var target store.Target
		if err := sqlRows.Scan(&target.UserID, &target.SubscriptionID); err != nil {
			return nil, errors.Storage("scanning target", err)
		}
		targets = append(targets, target)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, errors.Storage("iterating targets", err)
	}
	return targets, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSummary(row scannable) (*types.CostSummary, error) {
	var summary types.CostSummary
	var date time.Time
	var confidence string
	var topCause []byte
	if err := row.Scan(
		&summary.ID, &summary.UserID, &date,
		&summary.TotalYesterday, &summary.TotalToday, &summary.Difference,
		&summary.Baseline, &summary.SpikeFlag, &confidence,
		&topCause, &summary.SuggestionText, &summary.CreatedAtUtc,
	); err != nil {
		return nil, err
	}
	summary.Date = types.DateOf(date)
	summary.Confidence = types.Confidence(confidence)
	if len(topCause) > 0 {
		var cause types.CauseAttribution
		if err := json.Unmarshal(topCause, &cause); err != nil {
			return nil, err
		}
		summary.TopCause = &cause
	}
	return &summary, nil
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
