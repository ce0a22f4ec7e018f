package model

import "strings"

type AuditAction string

const (
	ActionStoreCreated    AuditAction = "STORE_CREATED"
	ActionStoreReady      AuditAction = "STORE_READY"
	ActionStoreDeleted    AuditAction = "STORE_DELETED"
	ActionStoreFailed     AuditAction = "STORE_FAILED"
	ActionProvisionReady  AuditAction = "PROVISION_READY"
	ActionProvisionFailed AuditAction = "PROVISION_FAILED"
)

// Known reports whether this client has a rendering for the action. Unknown
// actions are still displayed verbatim.
func (a AuditAction) Known() bool {
	switch a {
	case ActionStoreCreated, ActionStoreReady, ActionStoreDeleted, ActionStoreFailed,
		ActionProvisionReady, ActionProvisionFailed:
		return true
	}
	return false
}

// Short drops the STORE_ prefix, e.g. STORE_CREATED -> CREATED.
func (a AuditAction) Short() string {
	return strings.TrimPrefix(string(a), "STORE_")
}

// AuditEvent is an append-only activity record. StoreId and StoreName are
// empty for system-level events.
type AuditEvent struct {
	Id        string      `json:"id" yaml:"id"`
	StoreId   string      `json:"store_id,omitempty" yaml:"store_id,omitempty"`
	StoreName string      `json:"store_name,omitempty" yaml:"store_name,omitempty"`
	Action    AuditAction `json:"action" yaml:"action"`
	Message   string      `json:"message,omitempty" yaml:"message,omitempty"`
	CreatedAt Timestamp   `json:"created_at" yaml:"created_at"`
}

func (e AuditEvent) Subject() string {
	if e.StoreName == "" {
		return "System"
	}
	return e.StoreName
}
