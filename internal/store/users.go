package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"saascore/internal/auth"
	"saascore/internal/models"
)

// ErrDuplicateEmail is returned when a create collides with an existing
// email. The unique index arbitrates concurrent creates; the pre-check only
// gives a friendlier fast path.
var ErrDuplicateEmail = errors.New("email already registered")

// Users is the local record store for user rows.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts the user, generating the id when absent. Email is
// normalized to lowercase before the uniqueness check.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	existing, err := s.ByEmail(ctx, u.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateEmail
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// ByEmail returns (nil, nil) when no row matches, so callers can branch
// without error juggling.
func (s *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "email = ?", strings.ToLower(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ByID returns (nil, nil) when no row matches.
func (s *Users) ByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Users) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(u).Error
}

// SetExternalID records the identity provider's id for a mirrored user.
func (s *Users) SetExternalID(ctx context.Context, id, externalID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"external_identity_id": externalID, "updated_at": time.Now()}).Error
}

// TouchLastLogin stamps a successful login.
func (s *Users) TouchLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_login": now, "updated_at": now}).Error
}

// ValidateCredentials compares the stored bcrypt hash with the candidate
// password. Accounts without a local credential never validate locally.
func (s *Users) ValidateCredentials(u *models.User, password string) bool {
	if u == nil || u.PasswordHash == nil || *u.PasswordHash == "" {
		return false
	}
	return auth.CheckPassword(*u.PasswordHash, password) == nil
}

// Delete removes the row. Deleting an absent user is a no-op success.
func (s *Users) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}
