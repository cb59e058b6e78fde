package models

import "time"

// Action is the closed set of security-relevant actions the platform audits.
type Action string

const (
	ActionCreate            Action = "create"
	ActionRead              Action = "read"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionLogin             Action = "login"
	ActionLogout            Action = "logout"
	ActionFailedLogin       Action = "failed_login"
	ActionPermissionDenied  Action = "permission_denied"
	ActionRateLimitExceeded Action = "rate_limit_exceeded"
	ActionValidationFailed  Action = "validation_failed"
	ActionFileUpload        Action = "file_upload"
	ActionFileDownload      Action = "file_download"
	ActionPasswordChange    Action = "password_change"
	ActionEmailChange       Action = "email_change"
	ActionRoleChange        Action = "role_change"
)

var validActions = map[Action]bool{
	ActionCreate: true, ActionRead: true, ActionUpdate: true, ActionDelete: true,
	ActionLogin: true, ActionLogout: true, ActionFailedLogin: true,
	ActionPermissionDenied: true, ActionRateLimitExceeded: true,
	ActionValidationFailed: true, ActionFileUpload: true, ActionFileDownload: true,
	ActionPasswordChange: true, ActionEmailChange: true, ActionRoleChange: true,
}

// Valid reports whether a is one of the known audit actions.
func (a Action) Valid() bool { return validActions[a] }

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Category string

const (
	CategoryAuthentication   Category = "authentication"
	CategoryAuthorization    Category = "authorization"
	CategoryDataAccess       Category = "data_access"
	CategoryDataModification Category = "data_modification"
	CategorySystemAccess     Category = "system_access"
	CategorySecurityEvent    Category = "security_event"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryAuthentication, CategoryAuthorization, CategoryDataAccess,
		CategoryDataModification, CategorySystemAccess, CategorySecurityEvent:
		return true
	}
	return false
}

// AuditEntry is an immutable, append-only record of a security-relevant
// action. The caller supplies action/resource/details; the pipeline stamps
// actor, origin, timestamp, and the HMAC signature.
type AuditEntry struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	ActorID    *string                `json:"actor_id,omitempty"` // nil for anonymous/pre-auth events
	Action     Action                 `json:"action"`
	Resource   string                 `json:"resource"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Severity   Severity               `json:"severity"`
	Category   Category               `json:"category"`
	IPAddress  string                 `json:"ip_address"`
	UserAgent  string                 `json:"user_agent,omitempty"`
	Signature  string                 `json:"signature"` // HMAC over immutable fields, tamper evidence
}

// AuditQuery filters a paginated audit log listing.
type AuditQuery struct {
	ActorID   string
	Action    Action
	Resource  string
	Severity  Severity
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// SecurityAlert is derived from recent audit history when a threshold
// condition is met. Consumed by an external notification/review surface.
type SecurityAlert struct {
	ID        string    `json:"id"`
	ActorID   *string   `json:"actor_id,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	RiskLevel Severity  `json:"risk_level"`
	Alerts    []string  `json:"alerts"`
	Timestamp time.Time `json:"timestamp"`
}
