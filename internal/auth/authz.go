package auth

import (
	"errors"
	"slices"

	"evidencevault/internal/models"
)

var ErrForbidden = errors.New("forbidden")

// Action names an operation subject to authorization.
type Action string

const (
	ActEvidenceList     Action = "evidence.list"
	ActEvidenceRead     Action = "evidence.read"
	ActEvidenceDownload Action = "evidence.download"
	ActEvidenceUpload   Action = "evidence.upload"
	ActEvidenceEncrypt  Action = "evidence.encrypt"
	ActEvidenceDecrypt  Action = "evidence.decrypt"
	ActEvidenceDelete   Action = "evidence.delete"
	ActUserManage       Action = "user.manage"
	ActAuditRead        Action = "audit.read"
	ActStatsRead        Action = "stats.read"
)

// Rule is the role gate for an action, plus whether the ownership gate also
// applies when the action targets a specific record.
type Rule struct {
	Roles     []models.Role
	OwnerGate bool
}

var (
	anyRole   = []models.Role{models.RoleAdmin, models.RoleOfficer}
	adminOnly = []models.Role{models.RoleAdmin}
)

// Policy is the declarative permission table.
var Policy = map[Action]Rule{
	ActEvidenceList:     {Roles: anyRole},
	ActEvidenceRead:     {Roles: anyRole, OwnerGate: true},
	ActEvidenceDownload: {Roles: anyRole, OwnerGate: true},
	ActEvidenceUpload:   {Roles: anyRole},
	ActEvidenceEncrypt:  {Roles: anyRole, OwnerGate: true},
	ActEvidenceDecrypt:  {Roles: adminOnly},
	ActEvidenceDelete:   {Roles: adminOnly},
	ActUserManage:       {Roles: adminOnly},
	ActAuditRead:        {Roles: adminOnly},
	ActStatsRead:        {Roles: adminOnly},
}

// RequireRole is the role gate.
func RequireRole(id models.Identity, roles ...models.Role) error {
	if id.UserID == "" || !slices.Contains(roles, id.Role) {
		return ErrForbidden
	}
	return nil
}

// RequireOwnerOrAdmin is the ownership gate.
func RequireOwnerOrAdmin(id models.Identity, ownerID string) error {
	if id.IsAdmin() {
		return nil
	}
	if id.UserID == "" || id.UserID != ownerID {
		return ErrForbidden
	}
	return nil
}

// Authorize applies the role gate declared for action. Unknown actions are
// denied.
func Authorize(id models.Identity, action Action) error {
	rule, ok := Policy[action]
	if !ok {
		return ErrForbidden
	}
	return RequireRole(id, rule.Roles...)
}

// AuthorizeResource applies the role gate and, where declared, the ownership
// gate against the record owner.
func AuthorizeResource(id models.Identity, action Action, ownerID string) error {
	if err := Authorize(id, action); err != nil {
		return err
	}
	if Policy[action].OwnerGate {
		return RequireOwnerOrAdmin(id, ownerID)
	}
	return nil
}
