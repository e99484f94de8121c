package audit

import "time"

// EventType categorizes a security-relevant event
type EventType string

const (
	EventTypeLogin              EventType = "auth.login"
	EventTypeLoginFailed        EventType = "auth.login_failed"
	EventTypeGoogleLogin        EventType = "auth.google_login"
	EventTypeGoogleLoginFailed  EventType = "auth.google_login_failed"
	EventTypeAccessDenied       EventType = "authz.access_denied"
	EventTypeAccountProvisioned EventType = "account.provisioned"
	EventTypeAccountCreated     EventType = "account.created"
	EventTypeAccountStatus      EventType = "account.status_change"
	EventTypeAccountDeleted     EventType = "account.deleted"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit trail entry. ActorEmail is the account the
// event concerns; for failed logins it is the identifier the caller
// presented, which may not exist.
type Event struct {
	ID         string      `json:"id"`
	EventType  EventType   `json:"eventType"`
	Status     EventStatus `json:"status"`
	ActorEmail string      `json:"actorEmail,omitempty"`
	ClientIP   string      `json:"clientIp,omitempty"`
	Detail     string      `json:"detail,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}
