package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldActorID  = "actor_id"
	FieldAction   = "action"
	FieldResource = "resource"
	FieldIP       = "ip"
	FieldMethod   = "method"
	FieldPath     = "path"
	FieldStatus   = "status"
	FieldError    = "error"
	FieldAlertID  = "alert_id"
	FieldEntryID  = "entry_id"
	FieldClass    = "limit_class"
)

// ActorID returns a slog attribute for the acting user ID.
func ActorID(id string) slog.Attr {
	return slog.String(FieldActorID, id)
}

// Action returns a slog attribute for the audited action.
func Action(action string) slog.Attr {
	return slog.String(FieldAction, action)
}

// Resource returns a slog attribute for the affected resource.
func Resource(resource string) slog.Attr {
	return slog.String(FieldResource, resource)
}

// IP returns a slog attribute for the client IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// AlertID returns a slog attribute for a security alert ID.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// EntryID returns a slog attribute for an audit entry ID.
func EntryID(id string) slog.Attr {
	return slog.String(FieldEntryID, id)
}

// LimitClass returns a slog attribute for a rate-limit class.
func LimitClass(class string) slog.Attr {
	return slog.String(FieldClass, class)
}
