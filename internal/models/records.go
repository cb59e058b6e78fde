package models

import "time"

// VerificationStatus tracks the lifecycle of a credential verification request.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// VerificationRequest records a user-submitted claim awaiting verification
// against an external source (registrar, certifying body).
type VerificationRequest struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`   // e.g. "degree", "certification"
	Source      string                 `json:"source"` // issuing institution
	Data        map[string]interface{} `json:"data"`
	Status      VerificationStatus     `json:"status"`
	SubmittedBy *string                `json:"submitted_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// VerifiedCredential is the durable artifact created only after a
// verification request transitions to verified.
type VerifiedCredential struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"request_id"`
	HolderID  string                 `json:"holder_id"`
	Type      string                 `json:"type"`
	Issuer    string                 `json:"issuer"`
	Details   map[string]interface{} `json:"details,omitempty"`
	IssuedAt  time.Time              `json:"issued_at"`
}

// AcademicRecord is a nested element of a scholarship application.
type AcademicRecord struct {
	Institution string  `json:"institution"`
	Degree      string  `json:"degree"`
	GPA         float64 `json:"gpa,omitempty"`
	Year        int     `json:"year,omitempty"`
}

// DocumentMeta describes an uploaded supporting document.
type DocumentMeta struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// ScholarshipApplication anchors the admission pipeline to a realistic
// mutating flow. Duplicate submissions for the same (scholarship, student)
// pair conflict.
type ScholarshipApplication struct {
	ID              string           `json:"id"`
	ScholarshipID   string           `json:"scholarship_id"`
	StudentID       string           `json:"student_id"`
	Essay           string           `json:"essay,omitempty"`
	AcademicRecords []AcademicRecord `json:"academic_records,omitempty"`
	Documents       []DocumentMeta   `json:"documents,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}
