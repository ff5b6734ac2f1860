package service

import (
	"context"
	"log"

	"stockmaster/console/internal/domain"
	"stockmaster/console/internal/session"
	"stockmaster/console/internal/xid"
)

// logAudit records an operator action. Failures are logged and never fail
// the action itself.
func (c *Console) logAudit(ctx context.Context, sess session.Session, action string, entityType string, entityID string, detail string) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Record(ctx, domain.AuditEntry{
		ID:         xid.New("audit"),
		ActorID:    sess.Identity.ID,
		ActorName:  sess.Identity.Name,
		ActorRole:  sess.Identity.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  c.now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
