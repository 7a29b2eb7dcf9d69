package audit

import "time"

// Action identifies what happened
type Action string

const (
	ActionLogin            Action = "auth.login"
	ActionSSOLogin         Action = "auth.sso_login"
	ActionAccountCreated   Action = "account.created"
	ActionAccountUpdated   Action = "account.updated"
	ActionAccountDeleted   Action = "account.deleted"
	ActionRoleCreated      Action = "role.created"
	ActionRoleUpdated      Action = "role.updated"
	ActionRoleDeleted      Action = "role.deleted"
	ActionPermissionDenied Action = "authz.permission_denied"
	ActionReconciliation   Action = "identity.reconciliation"
)

// Outcome classifies how it ended
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Event is one audit trail entry. AccountID is nil when the actor is
// unknown, such as a failed login for a nonexistent email.
type Event struct {
	ID        int64     `json:"id"`
	AccountID *int64    `json:"account_id,omitempty"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
