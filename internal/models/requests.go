package models

// AuditWriteRequest is the body of POST /api/v1/audit.
type AuditWriteRequest struct {
	Action     string                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Severity   string                 `json:"severity,omitempty"`
	Category   string                 `json:"category,omitempty"`
}

// AuditWriteResponse reports the persisted entry and any alerts the write triggered.
type AuditWriteResponse struct {
	Success        bool     `json:"success"`
	LogID          string   `json:"logId"`
	SecurityAlerts []string `json:"securityAlerts"`
	RiskLevel      string   `json:"riskLevel"`
}

// Pagination describes the window of a list response.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// AuditListResponse is the body of GET /api/v1/audit.
type AuditListResponse struct {
	Success    bool         `json:"success"`
	Logs       []AuditEntry `json:"logs"`
	Pagination Pagination   `json:"pagination"`
}

// ApplicationRequest is the body of POST /api/v1/applications.
type ApplicationRequest struct {
	ScholarshipID   string           `json:"scholarship_id"`
	Essay           string           `json:"essay,omitempty"`
	AcademicRecords []AcademicRecord `json:"academic_records,omitempty"`
	Documents       []DocumentMeta   `json:"documents,omitempty"`
}

// VerificationCreateRequest is the body of POST /api/v1/verifications.
type VerificationCreateRequest struct {
	Type   string                 `json:"type"`
	Source string                 `json:"source"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// VerificationResolveRequest marks a pending verification as verified or failed.
type VerificationResolveRequest struct {
	Status string `json:"status"`
}
