package webhook

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/norruva/dpp-service/internal"
)

var ErrWebhookNotFound = errors.New("webhook not found")

type Repository interface {
	Create(w *Webhook) error
	GetByID(id string) (*Webhook, error)
	GetByCompany(companyID string) ([]*Webhook, error)
	GetActiveByEvent(eventType string) ([]*Webhook, error)
	Update(w *Webhook) error
	Delete(id string) error
}

// Service manages webhook registrations. Route-level RBAC restricts all of
// this to admins.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Register(dto WebhookDTO) (*Webhook, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	w := &Webhook{
		ID:        uuid.New().String(),
		CompanyID: dto.CompanyID,
		URL:       dto.URL,
		Events:    dto.Events,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(w); err != nil {
		return nil, internal.NewInternalError("failed to register webhook", err)
	}

	s.logger.Info("webhook registered", "webhook_id", w.ID, "company_id", w.CompanyID, "url", w.URL)
	return w, nil
}

func (s *Service) GetByID(id string) (*Webhook, error) {
	w, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, ErrWebhookNotFound) {
			return nil, internal.NewNotFoundError("webhook not found", internal.ErrCodeWebhookNotFound)
		}
		return nil, internal.NewInternalError("failed to load webhook", err)
	}
	return w, nil
}

func (s *Service) ListForCompany(companyID string) ([]*Webhook, error) {
	hooks, err := s.repo.GetByCompany(companyID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list webhooks", err)
	}
	return hooks, nil
}

func (s *Service) Update(id string, dto WebhookDTO) (*Webhook, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	w, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	w.URL = dto.URL
	w.Events = dto.Events
	if dto.IsActive != nil {
		w.IsActive = *dto.IsActive
	}
	w.UpdatedAt = time.Now()

	if err := s.repo.Update(w); err != nil {
		return nil, internal.NewInternalError("failed to update webhook", err)
	}
	return w, nil
}

func (s *Service) Delete(id string) error {
	if _, err := s.GetByID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return internal.NewInternalError("failed to delete webhook", err)
	}
	s.logger.Info("webhook deleted", "webhook_id", id)
	return nil
}
