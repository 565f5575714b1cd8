package model

import (
	"encoding/json"
	"time"
)

// Report is the persisted job record for one generated business plan.
// The row is created before the generation workflow is invoked, so a
// callback can never arrive for a report that does not exist yet.
type Report struct {
	ReportID     string       `json:"reportId" db:"report_id"`
	UserID       string       `json:"userId" db:"user_id"`
	Status       ReportStatus `json:"status" db:"status"`
	FormData     []byte       `json:"-" db:"form_data"` // verbatim intake snapshot
	PreviewPath  *string      `json:"previewPath,omitempty" db:"preview_path"`
	FullPath     *string      `json:"fullPath,omitempty" db:"full_path"`
	ErrorMessage *string      `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty" db:"completed_at"`
}

// IntakeForm is the validated business-plan intake submission.
type IntakeForm struct {
	BusinessName   string         `json:"businessName" validate:"required,min=2,max=120"`
	Description    string         `json:"description" validate:"required,min=10,max=4000"`
	Industry       string         `json:"industry,omitempty" validate:"omitempty,max=120"`
	EmployeeCount  EmployeeBand   `json:"employeeCount" validate:"required,oneof=1 2-9 10-49 50-249 250+"`
	Location       string         `json:"location,omitempty" validate:"omitempty,max=160"`
	CustomerGroups []string       `json:"customerGroups" validate:"required,min=1,dive,required,max=200"`
	Offerings      []Offering     `json:"offerings" validate:"required,min=1,dive"`
	FundingNeeds   string         `json:"fundingNeeds,omitempty" validate:"omitempty,max=2000"`
}

// Offering is a single product or service in the intake form.
type Offering struct {
	Name           string         `json:"name" validate:"required,max=200"`
	Type           OfferingType   `json:"type" validate:"required,oneof=product service"`
	DeliveryMethod DeliveryMethod `json:"deliveryMethod" validate:"required,oneof=online physical hybrid"`
	Description    string         `json:"description,omitempty" validate:"omitempty,max=2000"`
	PriceRange     string         `json:"priceRange,omitempty" validate:"omitempty,max=100"`
}

// CreateReportRequest wraps the intake form. The reportId is optional: the
// web client pre-generates one so it can start watching before the response
// lands; when absent the server assigns it.
type CreateReportRequest struct {
	ReportID string     `json:"reportId,omitempty" validate:"omitempty,uuid4"`
	Form     IntakeForm `json:"form" validate:"required"`
}

// CreateReportResponse is returned immediately; generation continues in the
// background.
type CreateReportResponse struct {
	ReportID  string       `json:"reportId"`
	Status    ReportStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ReportStatusResponse is the polling read of a report record.
type ReportStatusResponse struct {
	ReportID     string       `json:"reportId"`
	Status       ReportStatus `json:"status"`
	PreviewReady bool         `json:"previewReady"`
	FullReady    bool         `json:"fullReady"`
	ErrorMessage *string      `json:"errorMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty"`
}

// ReportAccessResponse carries time-limited artifact URLs for the caller's
// tier. DownloadURL forces an attachment disposition with a canonical
// filename.
type ReportAccessResponse struct {
	Type        AccessType `json:"type"`
	URL         string     `json:"url"`
	DownloadURL string     `json:"downloadUrl"`
	ExpiresIn   int        `json:"expiresIn"` // seconds
}

// GenerationCallback is the body the external workflow posts when a job
// finishes. Exactly one of the artifact fields or Error is expected; the
// three artifact spellings come from different workflow revisions and are
// normalized by the receiver.
type GenerationCallback struct {
	ReportID      string `json:"reportId"`
	PDFURL        string `json:"pdfUrl,omitempty"`
	PreviewPDFURL string `json:"previewPdfUrl,omitempty"`
	FullPDFURL    string `json:"fullPdfUrl,omitempty"`
	Error         string `json:"error,omitempty"`
}

// DispatchPayload is what we send to the generation workflow. FullKey and
// PreviewKey tell the workflow where to put the artifacts so the callback
// and the signer agree on storage layout.
type DispatchPayload struct {
	ReportID    string          `json:"reportId"`
	UserID      string          `json:"userId"`
	FormData    json.RawMessage `json:"formData"`
	FullKey     string          `json:"fullKey"`
	PreviewKey  string          `json:"previewKey"`
	CallbackURL string          `json:"callbackUrl,omitempty"`
}

// Profile is the subscription record consumed read-only by the signer and
// written by payment verification.
type Profile struct {
	UserID     string     `json:"userId" db:"user_id"`
	Plan       PlanTier   `json:"plan" db:"plan"`
	PlanExpiry *time.Time `json:"planExpiry,omitempty" db:"plan_expiry"`
	Role       Role       `json:"role" db:"role"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// Tier resolves the effective tier at time now: anything other than an
// unexpired pro plan is free.
func (p *Profile) Tier(now time.Time) PlanTier {
	if p == nil || p.Plan != PlanPro {
		return PlanFree
	}
	if p.PlanExpiry != nil && p.PlanExpiry.Before(now) {
		return PlanFree
	}
	return PlanPro
}
