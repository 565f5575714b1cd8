package model

// Report status — the single canonical set. Every reader and writer goes
// through this type; the legacy terminal spellings ("completed"/"done")
// collapse into ReportStatusCompleted.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "queued"
	ReportStatusProcessing ReportStatus = "processing"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

var ValidReportStatuses = []ReportStatus{
	ReportStatusQueued, ReportStatusProcessing,
	ReportStatusCompleted, ReportStatusFailed,
}

// IsTerminal reports whether the status admits no further transitions.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// Plan tiers
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// Offering types
type OfferingType string

const (
	OfferingProduct OfferingType = "product"
	OfferingService OfferingType = "service"
)

var ValidOfferingTypes = []OfferingType{OfferingProduct, OfferingService}

// Delivery methods
type DeliveryMethod string

const (
	DeliveryOnline   DeliveryMethod = "online"
	DeliveryPhysical DeliveryMethod = "physical"
	DeliveryHybrid   DeliveryMethod = "hybrid"
)

var ValidDeliveryMethods = []DeliveryMethod{
	DeliveryOnline, DeliveryPhysical, DeliveryHybrid,
}

// Employee count bands offered by the intake form
type EmployeeBand string

const (
	EmployeesSolo   EmployeeBand = "1"
	EmployeesMicro  EmployeeBand = "2-9"
	EmployeesSmall  EmployeeBand = "10-49"
	EmployeesMedium EmployeeBand = "50-249"
	EmployeesLarge  EmployeeBand = "250+"
)

// User roles
type Role string

const (
	RoleUser   Role = "user"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Report access variants returned by the access endpoint
type AccessType string

const (
	AccessFull    AccessType = "full"
	AccessPreview AccessType = "preview"
)
