package usersync

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"saascore/internal/models"
)

var roleCodePattern = regexp.MustCompile(`^ROLE_[A-Z_]+$`)

// LocalRoles is the slice of the role store the registry needs.
type LocalRoles interface {
	Create(ctx context.Context, r *models.Role) error
	ByID(ctx context.Context, id string) (*models.Role, error)
	ByCode(ctx context.Context, code string) (*models.Role, error)
	ListActive(ctx context.Context) ([]models.Role, error)
	ListByTenant(ctx context.Context, tenantID string) ([]models.Role, error)
	Save(ctx context.Context, r *models.Role) error
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	CodeTaken(ctx context.Context, code, excludeID string) (bool, error)
}

// RoleMirror is the slice of the identity store adapter the registry needs.
type RoleMirror interface {
	EnsureRole(ctx context.Context, roleName, description string) (string, error)
	DeleteRole(ctx context.Context, roleName string) error
}

// Registry runs the role-side version of the two-phase pattern. Policy:
// a role that fails to mirror still goes active locally — it is usable for
// platform authorization immediately, and the missing mirror is repairable
// by re-running the update path. The discrepancy is logged, never hidden.
type Registry struct {
	roles LocalRoles
	idp   RoleMirror
	lg    *zap.SugaredLogger
}

func NewRegistry(roles LocalRoles, idp RoleMirror, lg *zap.SugaredLogger) *Registry {
	return &Registry{roles: roles, idp: idp, lg: lg}
}

// RoleInput carries role fields for create and update.
type RoleInput struct {
	RoleName    string
	RoleCode    string
	Description string
	Category    string
	TenantID    *string
}

// CreateRole persists the role in draft, mirrors it, and activates it
// regardless of the mirror outcome. The external id is stored only when
// the mirror succeeded. The code pattern is checked before any store is
// touched.
func (g *Registry) CreateRole(ctx context.Context, in RoleInput) (*models.Role, error) {
	if !roleCodePattern.MatchString(in.RoleCode) {
		return nil, ErrInvalidRoleCode
	}
	if taken, err := g.roles.NameTaken(ctx, in.RoleName, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrRoleAlreadyExists
	}
	if taken, err := g.roles.CodeTaken(ctx, in.RoleCode, ""); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrRoleAlreadyExists
	}

	category := in.Category
	if category == "" {
		category = models.RoleCategoryCustom
	}
	role := &models.Role{
		RoleName:    in.RoleName,
		RoleCode:    in.RoleCode,
		Description: in.Description,
		Category:    category,
		TenantID:    in.TenantID,
		Status:      models.RoleStatusDraft,
	}
	if err := g.roles.Create(ctx, role); err != nil {
		return nil, err
	}

	externalID, err := g.idp.EnsureRole(ctx, role.RoleCode, role.Description)
	if err != nil {
		g.lg.Warnw("role mirror failed, activating locally anyway",
			"role_code", role.RoleCode, "error", err)
	} else {
		role.ExternalRoleID = &externalID
	}
	role.Status = models.RoleStatusActive
	if err := g.roles.Save(ctx, role); err != nil {
		return nil, err
	}
	g.lg.Infow("role created", "role_code", role.RoleCode, "mirrored", role.ExternalRoleID != nil)
	return role, nil
}

func (g *Registry) GetRole(ctx context.Context, id string) (*models.Role, error) {
	role, err := g.roles.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil || role.Status == models.RoleStatusDeleted {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (g *Registry) GetRoleByCode(ctx context.Context, code string) (*models.Role, error) {
	role, err := g.roles.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (g *Registry) ListRoles(ctx context.Context) ([]models.Role, error) {
	return g.roles.ListActive(ctx)
}

func (g *Registry) ListRolesByTenant(ctx context.Context, tenantID string) ([]models.Role, error) {
	return g.roles.ListByTenant(ctx, tenantID)
}

// UpdateRole applies the fields and re-runs the mirror. A successful mirror
// keeps the role active; a failed one demotes it to draft until the next
// update repairs it.
func (g *Registry) UpdateRole(ctx context.Context, id string, in RoleInput) (*models.Role, error) {
	if !roleCodePattern.MatchString(in.RoleCode) {
		return nil, ErrInvalidRoleCode
	}
	role, err := g.roles.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil || role.Status == models.RoleStatusDeleted {
		return nil, ErrRoleNotFound
	}
	if in.RoleName != role.RoleName {
		if taken, err := g.roles.NameTaken(ctx, in.RoleName, id); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrRoleAlreadyExists
		}
	}
	if in.RoleCode != role.RoleCode {
		if taken, err := g.roles.CodeTaken(ctx, in.RoleCode, id); err != nil {
			return nil, err
		} else if taken {
			return nil, ErrRoleAlreadyExists
		}
	}

	role.RoleName = in.RoleName
	role.RoleCode = in.RoleCode
	role.Description = in.Description
	if in.Category != "" {
		role.Category = in.Category
	}
	role.TenantID = in.TenantID

	externalID, err := g.idp.EnsureRole(ctx, role.RoleCode, role.Description)
	if err != nil {
		g.lg.Warnw("role mirror failed on update, demoting to draft",
			"role_code", role.RoleCode, "error", err)
		role.Status = models.RoleStatusDraft
	} else {
		role.ExternalRoleID = &externalID
		role.Status = models.RoleStatusActive
	}
	if err := g.roles.Save(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes the mirror first, then soft-deletes locally. A failed
// provider delete never blocks the soft delete.
func (g *Registry) DeleteRole(ctx context.Context, id string) error {
	role, err := g.roles.ByID(ctx, id)
	if err != nil {
		return err
	}
	if role == nil || role.Status == models.RoleStatusDeleted {
		return ErrRoleNotFound
	}
	if err := g.idp.DeleteRole(ctx, role.RoleCode); err != nil {
		g.lg.Warnw("provider role delete failed, soft-deleting locally anyway",
			"role_code", role.RoleCode, "error", err)
	}
	role.Status = models.RoleStatusDeleted
	return g.roles.Save(ctx, role)
}
