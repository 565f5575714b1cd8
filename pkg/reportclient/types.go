package reportclient

import "time"

// ReportStatus is the lifecycle state of a report job.
type ReportStatus string

const (
	StatusQueued     ReportStatus = "queued"
	StatusProcessing ReportStatus = "processing"
	StatusCompleted  ReportStatus = "completed"
	StatusFailed     ReportStatus = "failed"
)

// IntakeForm is the business-plan intake submission.
type IntakeForm struct {
	BusinessName   string     `json:"businessName"`
	Description    string     `json:"description"`
	Industry       string     `json:"industry,omitempty"`
	EmployeeCount  string     `json:"employeeCount"` // "1", "2-9", "10-49", "50-249", "250+"
	Location       string     `json:"location,omitempty"`
	CustomerGroups []string   `json:"customerGroups"`
	Offerings      []Offering `json:"offerings"`
	FundingNeeds   string     `json:"fundingNeeds,omitempty"`
}

// Offering is a single product or service in the intake form.
type Offering struct {
	Name           string `json:"name"`
	Type           string `json:"type"`           // "product" or "service"
	DeliveryMethod string `json:"deliveryMethod"` // "online", "physical" or "hybrid"
	Description    string `json:"description,omitempty"`
	PriceRange     string `json:"priceRange,omitempty"`
}

// CreateReportRequest wraps the intake form. ReportID is optional: supply
// a UUID to start watching the report before the response lands, or leave
// it empty and let the server assign one.
type CreateReportRequest struct {
	ReportID string     `json:"reportId,omitempty"`
	Form     IntakeForm `json:"form"`
}

// CreateReportResponse is returned immediately; generation continues in
// the background.
type CreateReportResponse struct {
	ReportID  string       `json:"reportId"`
	Status    ReportStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ReportStatusResponse is one polling read of a report record.
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
// tier. Type is "full" or "preview".
type ReportAccessResponse struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"` // seconds
}
