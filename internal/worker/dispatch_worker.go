package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/planforge/api/internal/client"
	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/service"
)

// DispatchWorker carries the post-response continuation of report
// creation: invoking the external generation workflow. The HTTP caller is
// long gone by the time this runs, so every failure is written back to the
// report row instead of being returned.
type DispatchWorker struct {
	reportService *service.ReportService
	workflow      client.WorkflowDispatcher
}

// NewDispatchWorker creates a new dispatch worker
func NewDispatchWorker(reportService *service.ReportService, workflow client.WorkflowDispatcher) *DispatchWorker {
	return &DispatchWorker{
		reportService: reportService,
		workflow:      workflow,
	}
}

// ProcessTask handles one dispatch task.
func (w *DispatchWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		ReportID string          `json:"reportId"`
		UserID   string          `json:"userId"`
		FormData json.RawMessage `json:"formData"`
	}

	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	reportID := taskPayload.ReportID
	log.Printf("Dispatching report generation: %s", reportID)

	if w.workflow == nil || !w.workflow.IsConfigured() {
		w.failReport(ctx, reportID, "Generation workflow is not configured")
		return fmt.Errorf("workflow client not configured")
	}

	if err := w.reportService.MarkProcessing(ctx, reportID); err != nil {
		w.failReport(ctx, reportID, "Failed to update report status")
		return err
	}

	payload := &model.DispatchPayload{
		ReportID:   reportID,
		UserID:     taskPayload.UserID,
		FormData:   taskPayload.FormData,
		FullKey:    service.FullArtifactKey(taskPayload.UserID, reportID),
		PreviewKey: service.PreviewArtifactKey(reportID),
	}

	if err := w.workflow.Dispatch(ctx, payload); err != nil {
		w.failReport(ctx, reportID, fmt.Sprintf("Generation request failed: %v", err))
		return err
	}

	// The workflow now owns the job; its callback finishes the row.
	log.Printf("Report %s dispatched, awaiting callback", reportID)
	return nil
}

func (w *DispatchWorker) failReport(ctx context.Context, reportID, errMsg string) {
	if err := w.reportService.FailReport(ctx, reportID, errMsg); err != nil {
		log.Printf("Failed to mark report %s as failed: %v", reportID, err)
	}
}
