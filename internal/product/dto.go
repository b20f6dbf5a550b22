package product

import (
	"regexp"
	"strings"

	"github.com/norruva/dpp-service/internal"
)

var gtinPattern = regexp.MustCompile(`^(\d{8}|\d{12,14})$`)

// ProductDTO is the create/update payload. CompanyID is only honored for
// admins; everyone else gets their own company stamped on.
type ProductDTO struct {
	Name           string                          `json:"name"`
	Description    string                          `json:"description,omitempty"`
	Category       string                          `json:"category,omitempty"`
	GTIN           string                          `json:"gtin,omitempty"`
	CompanyID      string                          `json:"company_id,omitempty"`
	SupplierName   string                          `json:"supplier_name,omitempty"`
	Images         []string                        `json:"images,omitempty"`
	Materials      []Material                      `json:"materials,omitempty"`
	Certifications []Certification                 `json:"certifications,omitempty"`
	Manufacturing  *Manufacturing                  `json:"manufacturing,omitempty"`
	Packaging      *Packaging                      `json:"packaging,omitempty"`
	Lifecycle      *Lifecycle                      `json:"lifecycle,omitempty"`
	Battery        *Battery                        `json:"battery,omitempty"`
	Compliance     map[string]RegulationCompliance `json:"compliance,omitempty"`
}

func (d *ProductDTO) Validate() error {
	var fieldErrors []internal.ValidationError

	name := strings.TrimSpace(d.Name)
	if name == "" {
		fieldErrors = append(fieldErrors, internal.ValidationError{
			Field:   "name",
			Message: "name is required",
			Code:    string(internal.ErrCodeInvalidName),
		})
	} else if len(name) < 2 {
		fieldErrors = append(fieldErrors, internal.ValidationError{
			Field:   "name",
			Message: "name must be at least 2 characters",
			Code:    string(internal.ErrCodeInvalidName),
		})
	}

	if d.GTIN != "" && !gtinPattern.MatchString(d.GTIN) {
		fieldErrors = append(fieldErrors, internal.ValidationError{
			Field:   "gtin",
			Message: "gtin must be 8, 12, 13 or 14 digits",
			Code:    string(internal.ErrCodeInvalidGTIN),
		})
	}

	for _, m := range d.Materials {
		if strings.TrimSpace(m.Name) == "" {
			fieldErrors = append(fieldErrors, internal.ValidationError{
				Field:   "materials",
				Message: "material name is required",
				Code:    string(internal.ErrCodeValidationFailed),
			})
			break
		}
		if m.Percentage < 0 || m.Percentage > 100 {
			fieldErrors = append(fieldErrors, internal.ValidationError{
				Field:   "materials",
				Message: "material percentage must be between 0 and 100",
				Code:    string(internal.ErrCodeValidationFailed),
			})
			break
		}
	}

	if len(fieldErrors) > 0 {
		return internal.NewFieldValidationError(fieldErrors)
	}
	return nil
}

type RejectDTO struct {
	Reason string          `json:"reason"`
	Gaps   []ComplianceGap `json:"gaps,omitempty"`
}

func (d *RejectDTO) Validate() error {
	if strings.TrimSpace(d.Reason) == "" {
		return internal.NewValidationError("rejection reason is required", internal.ErrCodeMissingReason)
	}
	return nil
}

type OverrideDTO struct {
	Reason string `json:"reason"`
}

func (d *OverrideDTO) Validate() error {
	if strings.TrimSpace(d.Reason) == "" {
		return internal.NewValidationError("override reason is required", internal.ErrCodeMissingReason)
	}
	return nil
}

type CustodyStepDTO struct {
	Holder   string `json:"holder"`
	Location string `json:"location,omitempty"`
	Note     string `json:"note,omitempty"`
}

func (d *CustodyStepDTO) Validate() error {
	if strings.TrimSpace(d.Holder) == "" {
		return internal.NewValidationError("custody holder is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type TransferOwnershipDTO struct {
	NewOwnerAddress string `json:"new_owner_address"`
}

func (d *TransferOwnershipDTO) Validate() error {
	if strings.TrimSpace(d.NewOwnerAddress) == "" {
		return internal.NewValidationError("new owner address is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type CustomsInspectionDTO struct {
	Status   string `json:"status"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

var validCustomsStatuses = map[string]bool{
	"cleared":  true,
	"detained": true,
	"rejected": true,
}

func (d *CustomsInspectionDTO) Validate() error {
	if !validCustomsStatuses[strings.ToLower(d.Status)] {
		return internal.NewValidationError("status must be one of: cleared, detained, rejected", internal.ErrCodeInvalidStatus)
	}
	return nil
}

type ServiceRecordDTO struct {
	Notes string `json:"notes"`
}

func (d *ServiceRecordDTO) Validate() error {
	if strings.TrimSpace(d.Notes) == "" {
		return internal.NewValidationError("service notes are required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type BulkIDsDTO struct {
	IDs []string `json:"ids"`
}

func (d *BulkIDsDTO) Validate() error {
	if len(d.IDs) == 0 {
		return internal.NewValidationError("at least one product id is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

type BulkCreateDTO struct {
	Products []ProductDTO `json:"products"`
}

func (d *BulkCreateDTO) Validate() error {
	if len(d.Products) == 0 {
		return internal.NewValidationError("at least one product is required", internal.ErrCodeValidationFailed)
	}
	return nil
}

// Filters narrows listings. VisibleToCompany is set by the service from the
// caller's identity, not from client input.
type Filters struct {
	Query              string
	Category           string
	Status             Status
	VerificationStatus VerificationStatus
	VisibleToCompany   string
	PublishedOnly      bool
	Limit              int
	Offset             int
}
