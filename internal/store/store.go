package store

import (
	"context"
	"errors"
	"time"

	"github.com/planforge/api/internal/model"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a report ID is reused.
	ErrDuplicate = errors.New("duplicate report id")
	// ErrAlreadyTerminal is returned when a transition targets a report
	// that already reached completed or failed. Terminal states are
	// absorbing, which is what makes duplicate callbacks harmless.
	ErrAlreadyTerminal = errors.New("report already in terminal state")
)

// ReportStore persists report job records. All transitions are conditional
// on the current status so that writes racing a callback stay monotonic:
// queued → processing → {completed | failed}.
type ReportStore interface {
	CreateReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, reportID string) (*model.Report, error)
	ListReports(ctx context.Context, userID string) ([]*model.Report, error)
	MarkProcessing(ctx context.Context, reportID string) error
	CompleteReport(ctx context.Context, reportID string, previewPath, fullPath *string, completedAt time.Time) error
	FailReport(ctx context.Context, reportID, errorMessage string, completedAt time.Time) error
	SetPreviewPath(ctx context.Context, reportID, previewPath string) error
}

// ProfileStore persists subscription profiles and payment records.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	UpsertPlan(ctx context.Context, userID string, plan model.PlanTier, expiry *time.Time, role model.Role) error
	RecordPayment(ctx context.Context, p *model.Payment) error
}
