package company

import (
	"errors"
	"time"
)

// Company is the tenant aggregate. Every product and user belongs to exactly
// one company.
type Company struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"uniqueIndex;not null"`
	Settings  Settings  `json:"settings" gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (Company) TableName() string {
	return "companies"
}

// Settings are tenant-level feature flags and API configuration.
type Settings struct {
	AIEnabled             bool                    `json:"ai_enabled"`
	WebhookSigningEnabled bool                    `json:"webhook_signing_enabled"`
	WebhookSigningSecret  string                  `json:"webhook_signing_secret,omitempty"`
	CustomFields          []CustomFieldDefinition `json:"custom_fields,omitempty"`
}

type CustomFieldDefinition struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// CompanyResponse is the API view of a tenant. The webhook signing secret is
// write-only: clients set it through Settings but it is never serialized back.
type CompanyResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Settings  SettingsResponse `json:"settings"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type SettingsResponse struct {
	AIEnabled             bool                    `json:"ai_enabled"`
	WebhookSigningEnabled bool                    `json:"webhook_signing_enabled"`
	CustomFields          []CustomFieldDefinition `json:"custom_fields,omitempty"`
}

func (c *Company) Response() CompanyResponse {
	return CompanyResponse{
		ID:   c.ID,
		Name: c.Name,
		Settings: SettingsResponse{
			AIEnabled:             c.Settings.AIEnabled,
			WebhookSigningEnabled: c.Settings.WebhookSigningEnabled,
			CustomFields:          c.Settings.CustomFields,
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// Domain errors
var (
	ErrCompanyNotFound = errors.New("company not found")
)

type CreateCompanyDTO struct {
	Name     string   `json:"name"`
	Settings Settings `json:"settings"`
}

func (dto CreateCompanyDTO) Validate() error {
	if dto.Name == "" {
		return errors.New("company name is required")
	}
	if len(dto.Name) > 128 {
		return errors.New("company name must be 128 characters or less")
	}
	return nil
}
