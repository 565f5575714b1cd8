package handler

import (
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/planforge/api/internal/middleware"
	"github.com/planforge/api/internal/model"
	"github.com/planforge/api/internal/service"
	"github.com/planforge/api/pkg/response"
)

type ReportHandler struct {
	reports   *service.ReportService
	access    *service.AccessService
	validator *validator.Validate
}

func NewReportHandler(reports *service.ReportService, access *service.AccessService, v *validator.Validate) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		access:    access,
		validator: v,
	}
}

// Create handles POST /api/reports
// @Summary      Submit business plan intake
// @Description  Create a report job and dispatch it to the generation workflow
// @Tags         Reports
// @Accept       json
// @Produce      json
// @Param        request body model.CreateReportRequest true "Intake submission"
// @Success      202 {object} model.CreateReportResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reports [post]
func (h *ReportHandler) Create(c *fiber.Ctx) error {
	var req model.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	userID := middleware.GetUserID(c)
	result, err := h.reports.CreateReport(c.Context(), userID, &req)
	if err != nil {
		log.Printf("Report creation failed for user %s: %v", userID, err)
		return response.ServiceError(c, "Failed to create report")
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/reports/:reportId/status
// @Summary      Poll report status
// @Description  Read the current state of a report job
// @Tags         Reports
// @Produce      json
// @Param        reportId path string true "Report ID"
// @Success      200 {object} model.ReportStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reports/{reportId}/status [get]
func (h *ReportHandler) Status(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return response.ValidationError(c, "Report ID is required", nil)
	}

	result, err := h.reports.GetStatus(c.Context(), middleware.GetUserID(c), reportID)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return response.NotFound(c, "Report not found")
		}
		if errors.Is(err, service.ErrForbidden) {
			return response.Forbidden(c, "Report belongs to another user")
		}
		return response.ServiceError(c, "Failed to read report status")
	}

	return response.OK(c, result)
}

// Access handles GET /api/reports/:reportId/access
// @Summary      Get report artifact URL
// @Description  Return a time-limited signed URL to the preview or full PDF depending on the caller's plan
// @Tags         Reports
// @Produce      json
// @Param        reportId path string true "Report ID"
// @Param        exp query int false "URL lifetime in seconds (clamped to 300-600)"
// @Success      200 {object} model.ReportAccessResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/reports/{reportId}/access [get]
func (h *ReportHandler) Access(c *fiber.Ctx) error {
	reportID := c.Params("reportId")
	if reportID == "" {
		return response.ValidationError(c, "Report ID is required", nil)
	}

	ttl := time.Duration(c.QueryInt("exp", 300)) * time.Second

	result, err := h.access.GetReportAccess(c.Context(), middleware.GetUserID(c), reportID, ttl)
	if err != nil {
		if errors.Is(err, service.ErrReportNotFound) {
			return response.NotFound(c, "Report not found")
		}
		if errors.Is(err, service.ErrForbidden) {
			return response.Forbidden(c, "Report belongs to another user")
		}
		if errors.Is(err, service.ErrNotReady) {
			return response.Conflict(c, "Report is not ready yet")
		}
		log.Printf("Report access failed for %s: %v", reportID, err)
		return response.ServiceError(c, "Failed to sign report URL")
	}

	return response.OK(c, result)
}
