package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/planforge/api/internal/config"
	"github.com/planforge/api/internal/model"
)

const pgUniqueViolation = "23505"

// PostgresStore implements ReportStore and ProfileStore on Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(cfg *config.DatabaseConfig) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CreateReport inserts a new report row with status queued.
func (s *PostgresStore) CreateReport(ctx context.Context, r *model.Report) error {
	const q = `
		INSERT INTO reports (report_id, user_id, status, form_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, q, r.ReportID, r.UserID, r.Status, r.FormData, r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetReport fetches a report row by ID.
func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (*model.Report, error) {
	const q = `
		SELECT report_id, user_id, status, form_data, preview_path, full_path,
		       error_message, created_at, completed_at
		FROM reports WHERE report_id = $1`

	var r model.Report
	if err := s.db.GetContext(ctx, &r, q, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}
	return &r, nil
}

// ListReports returns a user's reports, newest first.
func (s *PostgresStore) ListReports(ctx context.Context, userID string) ([]*model.Report, error) {
	const q = `
		SELECT report_id, user_id, status, form_data, preview_path, full_path,
		       error_message, created_at, completed_at
		FROM reports WHERE user_id = $1 ORDER BY created_at DESC`

	var reports []*model.Report
	if err := s.db.SelectContext(ctx, &reports, q, userID); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

// MarkProcessing moves a queued report to processing. A report already
// processing is left as is; terminal reports reject the transition.
func (s *PostgresStore) MarkProcessing(ctx context.Context, reportID string) error {
	const q = `
		UPDATE reports SET status = $2
		WHERE report_id = $1 AND status = $3`

	res, err := s.db.ExecContext(ctx, q, reportID, model.ReportStatusProcessing, model.ReportStatusQueued)
	if err != nil {
		return fmt.Errorf("failed to mark processing: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return s.classifyMiss(ctx, reportID, false)
}

// CompleteReport moves a non-terminal report to completed and records the
// artifact paths.
func (s *PostgresStore) CompleteReport(ctx context.Context, reportID string, previewPath, fullPath *string, completedAt time.Time) error {
	const q = `
		UPDATE reports
		SET status = $2, preview_path = COALESCE($3, preview_path),
		    full_path = COALESCE($4, full_path), completed_at = $5
		WHERE report_id = $1 AND status IN ($6, $7)`

	res, err := s.db.ExecContext(ctx, q, reportID, model.ReportStatusCompleted,
		previewPath, fullPath, completedAt,
		model.ReportStatusQueued, model.ReportStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return s.classifyMiss(ctx, reportID, true)
}

// FailReport moves a non-terminal report to failed with the given message.
func (s *PostgresStore) FailReport(ctx context.Context, reportID, errorMessage string, completedAt time.Time) error {
	const q = `
		UPDATE reports SET status = $2, error_message = $3, completed_at = $4
		WHERE report_id = $1 AND status IN ($5, $6)`

	res, err := s.db.ExecContext(ctx, q, reportID, model.ReportStatusFailed,
		errorMessage, completedAt,
		model.ReportStatusQueued, model.ReportStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return s.classifyMiss(ctx, reportID, true)
}

// SetPreviewPath records a lazily derived preview artifact. Only valid on a
// completed report; regeneration overwrites the same key so the write is
// idempotent.
func (s *PostgresStore) SetPreviewPath(ctx context.Context, reportID, previewPath string) error {
	const q = `
		UPDATE reports SET preview_path = $2
		WHERE report_id = $1 AND status = $3`

	res, err := s.db.ExecContext(ctx, q, reportID, previewPath, model.ReportStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to set preview path: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// classifyMiss distinguishes a missing row from a terminal-state rejection
// after a conditional update matched nothing.
func (s *PostgresStore) classifyMiss(ctx context.Context, reportID string, terminalRejected bool) error {
	r, err := s.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if terminalRejected && r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	if !terminalRejected && r.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	// Row exists in an unexpected but non-terminal state; treat as no-op.
	return nil
}

// GetProfile fetches a subscription profile.
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	const q = `
		SELECT user_id, plan, plan_expiry, role, updated_at
		FROM profiles WHERE user_id = $1`

	var p model.Profile
	if err := s.db.GetContext(ctx, &p, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &p, nil
}

// UpsertPlan writes the plan tier, expiry and role for a user.
func (s *PostgresStore) UpsertPlan(ctx context.Context, userID string, plan model.PlanTier, expiry *time.Time, role model.Role) error {
	const q = `
		INSERT INTO profiles (user_id, plan, plan_expiry, role, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET plan = $2, plan_expiry = $3, role = $4, updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, q, userID, plan, expiry, role); err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

// RecordPayment inserts a payment record.
func (s *PostgresStore) RecordPayment(ctx context.Context, p *model.Payment) error {
	const q = `
		INSERT INTO payments (order_id, payment_id, user_id, amount, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id, payment_id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, q, p.OrderID, p.PaymentID, p.UserID, p.Amount, p.Verified, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}
