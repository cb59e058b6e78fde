// Package validate implements declarative payload validation: each field
// class parses, coerces, and rejects untrusted input, returning field-level
// errors instead of panicking. Rich text fails closed because it is rendered
// back to other users.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/pathlight-platform/gatekeeper/internal/models"
)

const (
	// MaxFileSize caps uploaded file metadata at 50 MiB.
	MaxFileSize = 50 * 1024 * 1024

	// Nested array caps bound payload-driven resource exhaustion.
	MaxAcademicRecords = 10
	MaxDocuments       = 5

	maxEssayLength = 10000
)

var (
	emailRe    = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)
	phoneRe    = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)
	filenameRe = regexp.MustCompile(`^[A-Za-z0-9._\-]+$`)
	nonDigitRe = regexp.MustCompile(`[^\d]`)
	spaceRe    = regexp.MustCompile(`\s+`)

	// Rich text is rejected outright on any of these; sanitizing would still
	// leave the field untrustworthy for re-rendering.
	dangerousRichText = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<\s*script`),
		regexp.MustCompile(`(?i)javascript\s*:`),
		regexp.MustCompile(`(?i)\bon\w+\s*=`),
		regexp.MustCompile(`(?i)<\s*(iframe|object|embed)\b`),
	}

	allowedMimeTypes = map[string]bool{
		"application/pdf":    true,
		"image/jpeg":         true,
		"image/png":          true,
		"text/plain":         true,
		"application/msword": true,
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	}
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors accumulates field errors across a payload.
type Errors struct {
	fields []FieldError
}

func (e *Errors) add(field, message string) {
	e.fields = append(e.fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed validation.
func (e *Errors) HasErrors() bool { return len(e.fields) > 0 }

// Fields returns the accumulated field errors.
func (e *Errors) Fields() []FieldError { return e.fields }

// Messages renders the errors as human-readable strings.
func (e *Errors) Messages() []string {
	msgs := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		msgs = append(msgs, f.Error())
	}
	return msgs
}

// UUID validates v4 textual format and returns the canonical form.
func (e *Errors) UUID(field, raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id.Version() != 4 {
		e.add(field, "must be a valid UUID")
		return ""
	}
	return id.String()
}

// BoundedText trims, strips control/markup characters, collapses internal
// whitespace, and enforces [min,max] on the cleaned value.
func (e *Errors) BoundedText(field, raw string, min, max int) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '{', '}':
			return -1
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(spaceRe.ReplaceAllString(cleaned, " "))

	if len(cleaned) < min {
		e.add(field, fmt.Sprintf("must be at least %d characters", min))
		return ""
	}
	if len(cleaned) > max {
		e.add(field, fmt.Sprintf("must be at most %d characters", max))
		return ""
	}
	return cleaned
}

// RichText enforces a length cap and rejects outright on dangerous markup.
func (e *Errors) RichText(field, raw string, max int) string {
	if len(raw) > max {
		e.add(field, fmt.Sprintf("must be at most %d characters", max))
		return ""
	}
	for _, re := range dangerousRichText {
		if re.MatchString(raw) {
			e.add(field, "contains disallowed content")
			return ""
		}
	}
	return strings.TrimSpace(raw)
}

// Email lower-cases, trims, and checks RFC shape.
func (e *Errors) Email(field, raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if len(cleaned) > 254 || !emailRe.MatchString(cleaned) {
		e.add(field, "must be a valid email address")
		return ""
	}
	return cleaned
}

// Phone normalizes to digits only and checks E.164 shape.
func (e *Errors) Phone(field, raw string) string {
	trimmed := strings.TrimSpace(raw)
	hasPlus := strings.HasPrefix(trimmed, "+")
	digits := nonDigitRe.ReplaceAllString(trimmed, "")
	candidate := digits
	if hasPlus {
		candidate = "+" + digits
	}
	if !phoneRe.MatchString(candidate) {
		e.add(field, "must be a valid phone number")
		return ""
	}
	return digits
}

// File validates uploaded file metadata: restricted filename charset, size
// cap, and MIME allow-list.
func (e *Errors) File(field string, meta models.DocumentMeta) models.DocumentMeta {
	ok := true
	if meta.Filename == "" || len(meta.Filename) > 255 || !filenameRe.MatchString(meta.Filename) {
		e.add(field+".filename", "contains disallowed characters")
		ok = false
	}
	if meta.Size <= 0 || meta.Size > MaxFileSize {
		e.add(field+".size", fmt.Sprintf("must be between 1 and %d bytes", MaxFileSize))
		ok = false
	}
	if !allowedMimeTypes[meta.MimeType] {
		e.add(field+".mime_type", "is not an allowed file type")
		ok = false
	}
	if !ok {
		return models.DocumentMeta{}
	}
	return meta
}

// Application validates a scholarship application payload, coercing every
// field and capping nested arrays. Returns the coerced application or the
// accumulated errors; the two are mutually exclusive.
func Application(req *models.ApplicationRequest, studentID string) (*models.ScholarshipApplication, *Errors) {
	errs := &Errors{}

	app := &models.ScholarshipApplication{
		ScholarshipID: errs.UUID("scholarship_id", req.ScholarshipID),
		StudentID:     studentID,
	}

	if req.Essay != "" {
		app.Essay = errs.RichText("essay", req.Essay, maxEssayLength)
	}

	if len(req.AcademicRecords) > MaxAcademicRecords {
		errs.add("academic_records", fmt.Sprintf("must contain at most %d entries", MaxAcademicRecords))
	} else {
		for i, rec := range req.AcademicRecords {
			prefix := fmt.Sprintf("academic_records[%d]", i)
			coerced := models.AcademicRecord{
				Institution: errs.BoundedText(prefix+".institution", rec.Institution, 2, 200),
				Degree:      errs.BoundedText(prefix+".degree", rec.Degree, 2, 100),
				GPA:         rec.GPA,
				Year:        rec.Year,
			}
			if rec.GPA < 0 || rec.GPA > 5.0 {
				errs.add(prefix+".gpa", "must be between 0 and 5.0")
			}
			app.AcademicRecords = append(app.AcademicRecords, coerced)
		}
	}

	if len(req.Documents) > MaxDocuments {
		errs.add("documents", fmt.Sprintf("must contain at most %d entries", MaxDocuments))
	} else {
		for i, doc := range req.Documents {
			app.Documents = append(app.Documents, errs.File(fmt.Sprintf("documents[%d]", i), doc))
		}
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return app, nil
}

// AuditRequest validates and coerces an audit write payload. Severity and
// category default to low/system_access when omitted.
func AuditRequest(req *models.AuditWriteRequest) (models.Action, string, string, models.Severity, models.Category, *Errors) {
	errs := &Errors{}

	action := models.Action(strings.TrimSpace(req.Action))
	if !action.Valid() {
		errs.add("action", "must be a known audit action")
	}

	resource := errs.BoundedText("resource", req.Resource, 1, 100)

	resourceID := ""
	if req.ResourceID != "" {
		resourceID = errs.BoundedText("resource_id", req.ResourceID, 1, 100)
	}

	severity := models.SeverityLow
	if req.Severity != "" {
		severity = models.Severity(req.Severity)
		if !severity.Valid() {
			errs.add("severity", "must be one of low, medium, high, critical")
		}
	}

	category := models.CategorySystemAccess
	if req.Category != "" {
		category = models.Category(req.Category)
		if !category.Valid() {
			errs.add("category", "must be a known audit category")
		}
	}

	if errs.HasErrors() {
		return "", "", "", "", "", errs
	}
	return action, resource, resourceID, severity, category, nil
}

// Verification validates a credential verification request payload.
func Verification(req *models.VerificationCreateRequest) (string, string, *Errors) {
	errs := &Errors{}
	vtype := errs.BoundedText("type", req.Type, 2, 50)
	source := errs.BoundedText("source", req.Source, 2, 200)
	if errs.HasErrors() {
		return "", "", errs
	}
	return vtype, source, nil
}
