package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage represents a report status transition
type WSStatusMessage struct {
	Type     string       `json:"type"`
	ReportID string       `json:"reportId"`
	Status   ReportStatus `json:"status"`
}

// WSCompleteMessage represents report completion
type WSCompleteMessage struct {
	Type         string       `json:"type"`
	ReportID     string       `json:"reportId"`
	Status       ReportStatus `json:"status"`
	PreviewReady bool         `json:"previewReady"`
	FullReady    bool         `json:"fullReady"`
}

// WSErrorMessage represents a failed report
type WSErrorMessage struct {
	Type     string  `json:"type"`
	ReportID string  `json:"reportId"`
	Error    WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
