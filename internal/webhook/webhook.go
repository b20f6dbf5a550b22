package webhook

import (
	"net/url"
	"strings"
	"time"

	"github.com/norruva/dpp-service/internal"
	"github.com/norruva/dpp-service/internal/core/events"
)

// Webhook is one registered endpoint for a tenant. Signing is controlled by
// the tenant's API settings, not per endpoint.
type Webhook struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CompanyID string    `json:"company_id" gorm:"column:company_id;index;not null"`
	URL       string    `json:"url" gorm:"not null"`
	Events    []string  `json:"events" gorm:"type:jsonb;serializer:json"`
	IsActive  bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// SubscribesTo reports whether the endpoint wants the event type. An empty
// event list means all events.
func (w *Webhook) SubscribesTo(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

var knownEventTypes = map[string]bool{
	events.EventTypePassportSubmitted: true,
	events.EventTypePassportApproved:  true,
	events.EventTypePassportRejected:  true,
	events.EventTypePassportAnchored:  true,
	events.EventTypeAnchoringFailed:   true,
	events.EventTypeProductRecycled:   true,
}

type WebhookDTO struct {
	CompanyID string   `json:"company_id"`
	URL       string   `json:"url"`
	Events    []string `json:"events,omitempty"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

func (d *WebhookDTO) Validate() error {
	if d.CompanyID == "" {
		return internal.NewValidationError("company_id is required", internal.ErrCodeValidationFailed)
	}

	parsed, err := url.Parse(d.URL)
	if err != nil || parsed.Host == "" || !strings.HasPrefix(parsed.Scheme, "http") {
		return internal.NewValidationError("url must be a valid http(s) endpoint", internal.ErrCodeValidationFailed)
	}

	for _, e := range d.Events {
		if !knownEventTypes[e] {
			return internal.NewValidationError("unknown event type: "+e, internal.ErrCodeValidationFailed)
		}
	}
	return nil
}
