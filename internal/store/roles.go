package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"saascore/internal/models"
)

// Roles is the local record store for registry roles. Rows are never hard
// deleted: soft-deleted roles keep their row, so the unique code and name
// stay reserved at the schema level.
type Roles struct {
	db *gorm.DB
}

func NewRoles(db *gorm.DB) *Roles {
	return &Roles{db: db}
}

func (s *Roles) Create(ctx context.Context, r *models.Role) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *Roles) ByID(ctx context.Context, id string) (*models.Role, error) {
	var r models.Role
	err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ByCode resolves a role by its code, ignoring soft-deleted rows.
func (s *Roles) ByCode(ctx context.Context, code string) (*models.Role, error) {
	var r models.Role
	err := s.db.WithContext(ctx).
		First(&r, "role_code = ? AND status <> ?", code, models.RoleStatusDeleted).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Roles) ListActive(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RoleStatusActive).
		Order("created_at desc").Find(&roles).Error
	return roles, err
}

func (s *Roles) ListByTenant(ctx context.Context, tenantID string) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, models.RoleStatusActive).
		Order("created_at desc").Find(&roles).Error
	return roles, err
}

func (s *Roles) Save(ctx context.Context, r *models.Role) error {
	r.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(r).Error
}

// NameTaken reports whether another non-deleted role already uses the name.
func (s *Roles) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	return s.taken(ctx, "role_name = ?", name, excludeID)
}

// CodeTaken reports whether another non-deleted role already uses the code.
func (s *Roles) CodeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	return s.taken(ctx, "role_code = ?", code, excludeID)
}

func (s *Roles) taken(ctx context.Context, cond, value, excludeID string) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Role{}).
		Where(cond, value).
		Where("status <> ?", models.RoleStatusDeleted)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
