package core

import (
	"log"
)

// An AuditSink records an immutable event for every state-changing action.
// It is fire-and-forget: a failing sink is logged and never blocks the
// operation that triggered it.
type AuditSink interface {
	LogEvent(tenantID, userID int, action, resource string, resourceID int, details string) error
}

func (c *CoreDB) audit(actor Actor, action, resource string, resourceID int, details string) {
	if c.Audit == nil {
		return
	}
	if err := c.Audit.LogEvent(actor.TenantID, actor.UserID, action, resource, resourceID, details); err != nil {
		log.Printf("audit %s %s/%d: %v", action, resource, resourceID, err)
	}
}
