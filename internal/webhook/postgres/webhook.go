package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/norruva/dpp-service/internal/webhook"
)

// WebhookRepository implements webhook.Repository using GORM. Event matching
// happens in Go because the subscription list is a JSONB array; the active
// flag narrows the candidate set in SQL.
type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) webhook.Repository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(w *webhook.Webhook) error {
	return r.db.Create(w).Error
}

func (r *WebhookRepository) GetByID(id string) (*webhook.Webhook, error) {
	var w webhook.Webhook
	err := r.db.Where("id = ?", id).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, webhook.ErrWebhookNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *WebhookRepository) GetByCompany(companyID string) ([]*webhook.Webhook, error) {
	var hooks []*webhook.Webhook
	err := r.db.Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&hooks).Error
	return hooks, err
}

func (r *WebhookRepository) GetActiveByEvent(eventType string) ([]*webhook.Webhook, error) {
	var hooks []*webhook.Webhook
	if err := r.db.Where("is_active = ?", true).Find(&hooks).Error; err != nil {
		return nil, err
	}

	matched := hooks[:0]
	for _, h := range hooks {
		if h.SubscribesTo(eventType) {
			matched = append(matched, h)
		}
	}
	return matched, nil
}

func (r *WebhookRepository) Update(w *webhook.Webhook) error {
	return r.db.Save(w).Error
}

func (r *WebhookRepository) Delete(id string) error {
	result := r.db.Where("id = ?", id).Delete(&webhook.Webhook{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return webhook.ErrWebhookNotFound
	}
	return nil
}
