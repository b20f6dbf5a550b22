package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePassportSubmitted = "passport.submitted"
	EventTypePassportApproved  = "passport.approved"
	EventTypePassportRejected  = "passport.rejected"
	EventTypePassportAnchored  = "passport.anchored"
	EventTypeAnchoringFailed   = "passport.anchoring_failed"
	EventTypeProductRecycled   = "product.recycled"
)

// PassportEvent covers every passport lifecycle transition; the Type field
// distinguishes them. Webhook dispatch subscribes to these.
type PassportEvent struct {
	BaseEvent
	ProductID   string `json:"product_id"`
	CompanyID   string `json:"company_id"`
	ProductName string `json:"product_name"`
	ActorID     string `json:"actor_id"`
	Reason      string `json:"reason,omitempty"`
}

func NewPassportEvent(eventType, productID, companyID, productName, actorID, reason string) *PassportEvent {
	return &PassportEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"product_id":   productID,
				"company_id":   companyID,
				"product_name": productName,
				"actor_id":     actorID,
				"reason":       reason,
			},
		},
		ProductID:   productID,
		CompanyID:   companyID,
		ProductName: productName,
		ActorID:     actorID,
		Reason:      reason,
	}
}
