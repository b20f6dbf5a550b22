package auth

import (
	"fmt"

	"github.com/norruva/dpp-service/internal"
)

// Action is the closed set of permission-gated operations. Dispatch goes
// through the total rule table below; an action missing from the table is
// denied, never silently allowed.
type Action string

const (
	ActionProductCreate         Action = "product:create"
	ActionProductEdit           Action = "product:edit"
	ActionProductDelete         Action = "product:delete"
	ActionProductSubmit         Action = "product:submit"
	ActionProductApprove        Action = "product:approve"
	ActionProductReject         Action = "product:reject"
	ActionProductResolve        Action = "product:resolve"
	ActionProductOverride       Action = "product:override_verification"
	ActionProductCustomsInspect Action = "product:customs_inspect"
	ActionProductRecycle        Action = "product:recycle"
	ActionProductServiceRecord  Action = "product:add_service_record"
	ActionProductGenerateZKP    Action = "product:generate_zkp"
	ActionTicketManage          Action = "ticket:manage"
	ActionCompanyManage         Action = "company:manage"
	ActionWebhookManage         Action = "webhook:manage"
	ActionAuditView             Action = "audit:view"
)

// Resource is the minimal view of the entity an action targets. A nil
// resource means the action is not scoped to an existing entity (create).
type Resource interface {
	OwnerCompanyID() string
}

type rule func(u *User, res Resource) bool

func sameCompany(u *User, res Resource) bool {
	return res != nil && res.OwnerCompanyID() != "" && res.OwnerCompanyID() == u.CompanyID
}

// rules is the total mapping from action to predicate. Approve, reject and
// override require an auditing or compliance role; the owning supplier alone
// can never pass a verification verdict on their own passport.
var rules = map[Action]rule{
	ActionProductCreate: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleSupplier)
	},
	ActionProductEdit: func(u *User, res Resource) bool {
		if u.IsAdmin() {
			return true
		}
		return sameCompany(u, res) && u.HasAnyRole(RoleSupplier, RoleComplianceManager)
	},
	ActionProductDelete: func(u *User, res Resource) bool {
		if u.IsAdmin() {
			return true
		}
		return sameCompany(u, res) && u.HasRole(RoleSupplier)
	},
	ActionProductSubmit: func(u *User, res Resource) bool {
		if u.IsAdmin() {
			return true
		}
		return sameCompany(u, res) && u.HasRole(RoleSupplier)
	},
	ActionProductApprove: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleAuditor, RoleComplianceManager)
	},
	ActionProductReject: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleAuditor, RoleComplianceManager)
	},
	ActionProductResolve: func(u *User, res Resource) bool {
		if u.HasAnyRole(RoleAdmin, RoleComplianceManager) {
			return true
		}
		return sameCompany(u, res) && u.HasRole(RoleSupplier)
	},
	ActionProductOverride: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleAuditor, RoleComplianceManager)
	},
	ActionProductCustomsInspect: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleCustomsOfficer)
	},
	ActionProductRecycle: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleRecycler)
	},
	ActionProductServiceRecord: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleServiceProvider)
	},
	ActionProductGenerateZKP: func(u *User, res Resource) bool {
		if u.HasAnyRole(RoleAdmin, RoleComplianceManager) {
			return true
		}
		return sameCompany(u, res) && u.HasRole(RoleSupplier)
	},
	ActionTicketManage: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleComplianceManager)
	},
	ActionCompanyManage: func(u *User, _ Resource) bool {
		return u.IsAdmin()
	},
	ActionWebhookManage: func(u *User, _ Resource) bool {
		return u.IsAdmin()
	},
	ActionAuditView: func(u *User, _ Resource) bool {
		return u.HasAnyRole(RoleAdmin, RoleAuditor)
	},
}

// Can is the non-throwing variant used to pre-check and hide UI affordances.
// Pure function of its inputs, no side effects.
func Can(u *User, action Action, res Resource) bool {
	if u == nil || !u.IsActive {
		return false
	}
	predicate, ok := rules[action]
	if !ok {
		return false
	}
	return predicate(u, res)
}

// CheckPermission returns a forbidden AppError carrying the denied action, or
// nil when the action is allowed. Callers propagate the error before any
// mutation so a denial never leaves partial writes.
func CheckPermission(u *User, action Action, res Resource) error {
	if Can(u, action, res) {
		return nil
	}
	return internal.NewForbiddenError(
		fmt.Sprintf("permission denied: %s", action),
		internal.ErrCodePermissionDenied,
	).WithDetails(map[string]string{"action": string(action)})
}
