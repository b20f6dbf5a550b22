package auth

import (
	"time"
)

// Role is a closed set of user roles. A user holds one or more.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleSupplier          Role = "supplier"
	RoleAuditor           Role = "auditor"
	RoleComplianceManager Role = "compliance_manager"
	RoleRetailer          Role = "retailer"
	RoleRecycler          Role = "recycler"
	RoleServiceProvider   Role = "service_provider"
	RoleCustomsOfficer    Role = "customs_officer"
)

// globalRoles see every passport regardless of owning company.
var globalRoles = []Role{RoleAdmin, RoleAuditor, RoleComplianceManager, RoleRetailer}

type User struct {
	ID                 string    `json:"id" gorm:"primaryKey"`
	Email              string    `json:"email" gorm:"uniqueIndex;not null"`
	Name               string    `json:"name"`
	PasswordHash       string    `json:"-" gorm:"column:password_hash;not null"`
	CompanyID          string    `json:"company_id" gorm:"column:company_id;index;not null"`
	Roles              []Role    `json:"roles" gorm:"type:jsonb;serializer:json"`
	CircularityCredits int       `json:"circularity_credits" gorm:"column:circularity_credits;default:0"`
	IsActive           bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt          time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles ...Role) bool {
	for _, r := range u.Roles {
		for _, required := range roles {
			if r == required {
				return true
			}
		}
	}
	return false
}

// HasGlobalRole reports whether the user may see passports outside their own
// company.
func (u *User) HasGlobalRole() bool {
	return u.HasAnyRole(globalRoles...)
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
