package models

import "time"

// User statuses.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusSuspended = "suspended"
	UserStatusDeleted   = "deleted"
	UserStatusPending   = "pending"
)

// Role lifecycle statuses.
const (
	RoleStatusDraft    = "draft"
	RoleStatusActive   = "active"
	RoleStatusInactive = "inactive"
	RoleStatusDeleted  = "deleted"
)

// Built-in role codes. The registry can define more; these two are seeded
// at boot because signup and admin routing depend on them.
const (
	RolePlatformAdmin = "ROLE_PLATFORM_ADMIN"
	RoleUser          = "ROLE_USER"
)

// Role categories.
const (
	RoleCategoryPlatform = "platform"
	RoleCategoryTenant   = "tenant"
	RoleCategoryModule   = "module"
	RoleCategoryCustom   = "custom"
)

// Tenant plans.
const (
	TenantPlanFree       = "free"
	TenantPlanPro        = "pro"
	TenantPlanEnterprise = "enterprise"
)

// Tenant statuses.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// User is the local side of a dual-written account. ExternalIdentityID is
// set only after the record has been mirrored to the identity provider;
// a nil value means the user exists locally but is not (yet) synced.
type User struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       *string    `json:"-"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	DateOfBirth        string     `json:"date_of_birth,omitempty"`
	Country            string     `json:"country,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	Role               string     `gorm:"not null" json:"role"`
	TenantID           *string    `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	Status             string     `gorm:"not null;default:pending" json:"status"`
	ExternalIdentityID *string    `gorm:"index" json:"external_identity_id,omitempty"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Synced reports whether the record has been mirrored to the identity
// provider.
func (u *User) Synced() bool {
	return u.ExternalIdentityID != nil && *u.ExternalIdentityID != ""
}

// Role is a registry entry. Roles are soft-deleted only; a deleted role
// keeps its row with status "deleted" so the unique code stays reserved.
type Role struct {
	ID             string    `gorm:"type:uuid;primaryKey" json:"id"`
	RoleName       string    `gorm:"uniqueIndex;not null" json:"role_name"`
	RoleCode       string    `gorm:"uniqueIndex;not null" json:"role_code"`
	Description    string    `json:"description,omitempty"`
	Category       string    `gorm:"not null;default:custom" json:"category"`
	Status         string    `gorm:"not null;default:draft" json:"status"`
	ExternalRoleID *string   `json:"external_role_id,omitempty"`
	TenantID       *string   `gorm:"type:uuid;index" json:"tenant_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Tenant is an independent aggregate; users reference it by ID only.
type Tenant struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Domain    string    `gorm:"uniqueIndex;not null" json:"domain"`
	Plan      string    `gorm:"not null;default:free" json:"plan"`
	Status    string    `gorm:"not null;default:active" json:"status"`
	Settings  JSONB     `gorm:"type:jsonb;default:'{}'" json:"settings"`
	Branding  JSONB     `gorm:"type:jsonb;default:'{}'" json:"branding"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session backs a JWT by its jti so logout can revoke tokens early.
type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    string     `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *string   `gorm:"type:uuid" json:"user_id,omitempty"`
	Action    string    `gorm:"not null" json:"action"`
	Metadata  JSONB     `gorm:"type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
