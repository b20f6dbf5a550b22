package audit

import (
	"time"
)

// Action tags every audit entry with a dotted event name. The log is the
// compliance record of the system: entries are written once, after the
// mutation they describe commits, and are never updated or deleted.
type Action string

const (
	ActionProductCreated       Action = "product.created"
	ActionProductUpdated       Action = "product.updated"
	ActionProductDeleted       Action = "product.deleted"
	ActionProductArchived      Action = "product.archived"
	ActionPassportSubmitted    Action = "passport.submitted"
	ActionPassportApproved     Action = "passport.approved"
	ActionPassportRejected     Action = "passport.rejected"
	ActionProductAnchored      Action = "product.anchored"
	ActionAnchoringFailed      Action = "product.anchoring.failed"
	ActionComplianceResolved   Action = "compliance.resolved"
	ActionVerificationOverride Action = "product.verification.overridden"
	ActionCustodyUpdated       Action = "product.custody.updated"
	ActionOwnershipTransferred Action = "product.ownership.transferred"
	ActionZKPGenerated         Action = "product.zkp.generated"
	ActionZKPVerified          Action = "product.zkp.verified"
	ActionCustomsInspected     Action = "customs.inspected"
	ActionProductRecycled      Action = "product.recycled"
	ActionCreditsMinted        Action = "credits.minted"
	ActionProductServiced      Action = "product.serviced"

	ActionBulkDeleted   Action = "products.bulk_deleted"
	ActionBulkSubmitted Action = "products.bulk_submitted"
	ActionBulkArchived  Action = "products.bulk_archived"
	ActionBulkCreated   Action = "products.bulk_created"
	ActionBulkAnchored  Action = "products.bulk_anchor_requested"

	ActionWebhookDeliverySuccess Action = "webhook.delivery.success"
	ActionWebhookDeliveryFailure Action = "webhook.delivery.failure"
)

// Entry is one immutable audit record. IDs are ULIDs so lexicographic order
// is creation order, which makes reverse-chronological listing an index walk.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Action    Action    `json:"action" gorm:"index;not null"`
	EntityID  string    `json:"entity_id" gorm:"column:entity_id;index"`
	Details   string    `json:"details"`
	UserID    string    `json:"user_id" gorm:"column:user_id;index"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;index"`
}

func (Entry) TableName() string {
	return "audit_log"
}
