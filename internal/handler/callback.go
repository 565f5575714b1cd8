package handler

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/service"
	"github.com/planforge/api/pkg/response"
)

// CallbackHandler receives the generation workflow's completion webhook.
type CallbackHandler struct {
	reports *service.ReportService
}

func NewCallbackHandler(reports *service.ReportService) *CallbackHandler {
	return &CallbackHandler{reports: reports}
}

// Generation handles POST /callbacks/generation
// @Summary      Workflow completion callback
// @Description  Called by the external generation workflow with artifact URLs or an error
// @Tags         Callbacks
// @Accept       json
// @Produce      json
// @Param        request body model.GenerationCallback true "Callback body"
// @Success      200 {object} map[string]bool
// @Failure      400 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Router       /callbacks/generation [post]
func (h *CallbackHandler) Generation(c *fiber.Ctx) error {
	var cb model.GenerationCallback
	if err := c.BodyParser(&cb); err != nil {
		return response.ValidationError(c, "Invalid callback body", nil)
	}

	if cb.ReportID == "" {
		return response.ValidationError(c, "reportId is required", nil)
	}

	if err := h.reports.HandleCallback(c.Context(), &cb); err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return response.NotFound(c, "Report not found")
		}
		log.Printf("Callback handling failed for %s: %v", cb.ReportID, err)
		return response.ServiceError(c, "Failed to process callback")
	}

	return response.OK(c, fiber.Map{"accepted": true})
}
