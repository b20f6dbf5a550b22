package company

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/norruva/dpp-service/internal"
)

type Repository interface {
	Create(company *Company) error
	GetByID(id string) (*Company, error)
	GetAll() ([]*Company, error)
	Update(company *Company) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) CreateCompany(dto CreateCompanyDTO) (*Company, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Error("company validation failed", "error", err)
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	now := time.Now()
	c := &Company{
		ID:        uuid.New().String(),
		Name:      dto.Name,
		Settings:  dto.Settings,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(c); err != nil {
		s.logger.Error("failed to create company", "error", err, "name", dto.Name)
		return nil, err
	}

	s.logger.Info("company created", "company_id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) GetCompany(id string) (*Company, error) {
	c, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewNotFoundError("company not found", internal.ErrCodeCompanyNotFound)
	}
	return c, nil
}

// UpdateSettings replaces tenant settings wholesale; partial merges are the
// caller's concern.
func (s *Service) UpdateSettings(id string, settings Settings) (*Company, error) {
	c, err := s.repo.GetByID(id)
	if err != nil {
		return nil, internal.NewNotFoundError("company not found", internal.ErrCodeCompanyNotFound)
	}

	c.Settings = settings
	c.UpdatedAt = time.Now()
	if err := s.repo.Update(c); err != nil {
		s.logger.Error("failed to update company settings", "error", err, "company_id", id)
		return nil, err
	}

	s.logger.Info("company settings updated", "company_id", id)
	return c, nil
}
