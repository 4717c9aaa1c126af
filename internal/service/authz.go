package service

import (
	"strings"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
)

// Actor is the authenticated caller, as asserted by the auth collaborator.
type Actor struct {
	ID   int64
	Role models.Role
}

// IDRef returns a pointer to the actor id for audit columns.
func (a Actor) IDRef() *int64 {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

// Permission is "resource:action", e.g. "product:delete".
type Permission string

const (
	PermStockRecord      Permission = "stock:record"
	PermProductView      Permission = "product:view"
	PermProductCreate    Permission = "product:create"
	PermProductUpdate    Permission = "product:update"
	PermProductThreshold Permission = "product:threshold"
	PermProductDelete    Permission = "product:delete"
	PermProductRestore   Permission = "product:restore"
	PermProductPurge     Permission = "product:purge"
	PermAlertView        Permission = "alert:view"
	PermAlertResolve     Permission = "alert:resolve"
	PermReportView       Permission = "report:view"
	PermUserView         Permission = "user:view"
	PermUserCreate       Permission = "user:create"
	PermUserDelete       Permission = "user:delete"
	PermUserRestore      Permission = "user:restore"
	PermUserPurge        Permission = "user:purge"
	PermRecycleSweep     Permission = "recycle:sweep"

	permAll Permission = "*:*"
)

// capabilities is the single role → permission table of the core.
var capabilities = map[models.Role][]Permission{
	models.RoleMasterAdmin: {permAll},
	models.RoleAdmin: {
		"stock:*",
		"product:*",
		"alert:*",
		"report:*",
		"user:*",
		PermRecycleSweep,
	},
	models.RoleEmployee: {
		PermStockRecord,
		PermProductView,
		PermProductThreshold,
		PermAlertView,
		PermReportView,
	},
}

func (p Permission) parse() (resource, action string) {
	parts := strings.SplitN(string(p), ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

// matches supports "*:*" and "resource:*".
func (p Permission) matches(requested Permission) bool {
	if p == permAll || p == requested {
		return true
	}
	res, act := p.parse()
	reqRes, _ := requested.parse()
	return act == "*" && res == reqRes
}

// Can reports whether role holds permission p.
func Can(role models.Role, p Permission) bool {
	for _, granted := range capabilities[role] {
		if granted.matches(p) {
			return true
		}
	}
	return false
}

// Authorize fails with Forbidden when the actor lacks p.
func Authorize(actor Actor, p Permission) error {
	if _, ok := capabilities[actor.Role]; !ok {
		return apperr.New(apperr.KindUnauthorized, "unknown role %q", actor.Role)
	}
	if !Can(actor.Role, p) {
		return apperr.Forbidden("role %s may not perform %s", actor.Role, p)
	}
	return nil
}

// authorizeUserTarget limits which accounts an actor may manage: ADMIN may
// only manage EMPLOYEE accounts.
func authorizeUserTarget(actor Actor, target models.Role) error {
	if actor.Role == models.RoleMasterAdmin {
		return nil
	}
	if actor.Role == models.RoleAdmin && target == models.RoleEmployee {
		return nil
	}
	return apperr.Forbidden("role %s may not manage %s accounts", actor.Role, target)
}
