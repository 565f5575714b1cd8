package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/store"
	ws "github.com/planforge/api/internal/websocket"
)

const (
	// TaskTypeDispatch is the asynq task that carries the post-response
	// continuation: invoking the generation workflow.
	TaskTypeDispatch = "report:dispatch"
)

// Service-level sentinel errors, mapped to HTTP codes by the handlers.
var (
	ErrReportNotFound = errors.New("report not found")
	ErrForbidden      = errors.New("report belongs to another user")
	ErrNotReady       = errors.New("report not completed")
)

// TaskEnqueuer is the slice of asynq.Client the service needs; tests swap
// in a capture.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReportService owns the report job lifecycle: creation, status reads and
// callback reconciliation.
type ReportService struct {
	store    store.ReportStore
	enqueuer TaskEnqueuer
	hub      *ws.Hub
}

func NewReportService(st store.ReportStore, enqueuer TaskEnqueuer, hub *ws.Hub) *ReportService {
	return &ReportService{
		store:    st,
		enqueuer: enqueuer,
		hub:      hub,
	}
}

// FullArtifactKey is the storage key of the full report PDF.
func FullArtifactKey(userID, reportID string) string {
	return fmt.Sprintf("private/%s/%s.pdf", userID, reportID)
}

// PreviewArtifactKey is the storage key of the two-page preview PDF.
func PreviewArtifactKey(reportID string) string {
	return fmt.Sprintf("previews/%s-preview2.pdf", reportID)
}

// CreateReport persists a queued report row and then enqueues the dispatch
// task. The row insert always happens before the workflow is touched, so a
// callback racing the response can never miss its target row.
func (s *ReportService) CreateReport(ctx context.Context, userID string, req *model.CreateReportRequest) (*model.CreateReportResponse, error) {
	reportID := req.ReportID
	if reportID == "" {
		reportID = uuid.New().String()
	}
	now := time.Now()

	formBytes, err := json.Marshal(req.Form)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intake form: %w", err)
	}

	report := &model.Report{
		ReportID:  reportID,
		UserID:    userID,
		Status:    model.ReportStatusQueued,
		FormData:  formBytes,
		CreatedAt: now,
	}

	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	task, err := newDispatchTask(reportID, userID, formBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatch task: %w", err)
	}

	// The row exists; from here on failures are recorded on it instead of
	// being lost.
	if _, err := s.enqueuer.Enqueue(task,
		asynq.Queue("dispatch"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	); err != nil {
		s.failWithLog(ctx, reportID, fmt.Sprintf("Failed to queue generation: %v", err))
		return nil, fmt.Errorf("failed to enqueue dispatch: %w", err)
	}

	return &model.CreateReportResponse{
		ReportID:  reportID,
		Status:    model.ReportStatusQueued,
		CreatedAt: now,
	}, nil
}

// GetReport returns the raw record after an ownership check.
func (s *ReportService) GetReport(ctx context.Context, userID, reportID string) (*model.Report, error) {
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if report.UserID != userID {
		return nil, ErrForbidden
	}
	return report, nil
}

// GetStatus is the polling read.
func (s *ReportService) GetStatus(ctx context.Context, userID, reportID string) (*model.ReportStatusResponse, error) {
	report, err := s.GetReport(ctx, userID, reportID)
	if err != nil {
		return nil, err
	}

	return &model.ReportStatusResponse{
		ReportID:     report.ReportID,
		Status:       report.Status,
		PreviewReady: report.PreviewPath != nil,
		FullReady:    report.FullPath != nil,
		ErrorMessage: report.ErrorMessage,
		CreatedAt:    report.CreatedAt,
		CompletedAt:  report.CompletedAt,
	}, nil
}

// HandleCallback reconciles the workflow's outcome onto the report row.
// Terminal rows absorb duplicates: a second callback is a no-op, never a
// corruption.
func (s *ReportService) HandleCallback(ctx context.Context, cb *model.GenerationCallback) error {
	now := time.Now()

	if cb.Error != "" {
		return s.fail(ctx, cb.ReportID, cb.Error, now)
	}

	var previewPath, fullPath *string
	if cb.PreviewPDFURL != "" {
		p := cb.PreviewPDFURL
		previewPath = &p
	}
	// pdfUrl is the oldest callback spelling and always refers to the
	// full document.
	if cb.FullPDFURL != "" {
		f := cb.FullPDFURL
		fullPath = &f
	} else if cb.PDFURL != "" {
		f := cb.PDFURL
		fullPath = &f
	}

	if previewPath == nil && fullPath == nil {
		// Malformed callback: fail loudly rather than leaving the row
		// stuck in processing.
		return s.fail(ctx, cb.ReportID, "Workflow callback carried no artifact or error", now)
	}

	err := s.store.CompleteReport(ctx, cb.ReportID, previewPath, fullPath, now)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			log.Printf("Duplicate callback for report %s ignored", cb.ReportID)
			return nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrReportNotFound
		}
		return err
	}

	if s.hub != nil {
		s.hub.BroadcastComplete(cb.ReportID, previewPath != nil, fullPath != nil)
	}
	return nil
}

// MarkProcessing is called by the dispatch worker once the workflow call
// is underway.
func (s *ReportService) MarkProcessing(ctx context.Context, reportID string) error {
	if err := s.store.MarkProcessing(ctx, reportID); err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			return nil
		}
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastStatus(reportID, model.ReportStatusProcessing)
	}
	return nil
}

// FailReport records a failure on the row. Used by the dispatch worker,
// which has no caller left to report to.
func (s *ReportService) FailReport(ctx context.Context, reportID, errMsg string) error {
	return s.fail(ctx, reportID, errMsg, time.Now())
}

func (s *ReportService) fail(ctx context.Context, reportID, errMsg string, at time.Time) error {
	err := s.store.FailReport(ctx, reportID, errMsg, at)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyTerminal) {
			log.Printf("Late failure for terminal report %s ignored", reportID)
			return nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return ErrReportNotFound
		}
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastError(reportID, "GENERATION_FAILED", errMsg)
	}
	return nil
}

func (s *ReportService) failWithLog(ctx context.Context, reportID, errMsg string) {
	if err := s.fail(ctx, reportID, errMsg, time.Now()); err != nil {
		log.Printf("Failed to mark report %s as failed: %v", reportID, err)
	}
}

func newDispatchTask(reportID, userID string, formData []byte) (*asynq.Task, error) {
	taskPayload := map[string]interface{}{
		"reportId": reportID,
		"userId":   userID,
		"formData": json.RawMessage(formData),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDispatch, data), nil
}
