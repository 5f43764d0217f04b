package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"saascore/internal/models"
)

var ErrDuplicateDomain = errors.New("tenant domain already registered")

type Tenants struct {
	db *gorm.DB
}

func NewTenants(db *gorm.DB) *Tenants {
	return &Tenants{db: db}
}

func (s *Tenants) Create(ctx context.Context, t *models.Tenant) error {
	t.Domain = strings.TrimSpace(strings.ToLower(t.Domain))
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("domain = ?", t.Domain).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateDomain
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateDomain
		}
		return err
	}
	return nil
}

func (s *Tenants) ByID(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Tenants) List(ctx context.Context) ([]models.Tenant, error) {
	var ts []models.Tenant
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&ts).Error
	return ts, err
}

func (s *Tenants) Save(ctx context.Context, t *models.Tenant) error {
	t.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(t).Error
}
