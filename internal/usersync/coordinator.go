package usersync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"saascore/internal/auth"
	"saascore/internal/identity"
	"saascore/internal/models"
)

// LocalUsers is the slice of the local record store the coordinator needs.
// Lookups return (nil, nil) when no record exists.
type LocalUsers interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	SetExternalID(ctx context.Context, id, externalID string) error
	TouchLastLogin(ctx context.Context, id string) error
	ValidateCredentials(u *models.User, password string) bool
	Delete(ctx context.Context, id string) error
}

// IdentityProvider is the slice of the identity store adapter the
// coordinator needs. FindUserByEmail returns "" when no account exists.
type IdentityProvider interface {
	CreateUser(ctx context.Context, rec identity.UserRecord, password string) (string, error)
	FindUserByEmail(ctx context.Context, email string) (string, error)
	UpdateUser(ctx context.Context, externalID string, rec identity.UserRecord) error
	DeleteUser(ctx context.Context, externalID string) error
	Authenticate(ctx context.Context, email, password string) (bool, error)
	SetAttribute(ctx context.Context, externalID, key, value string) error
}

// Coordinator orchestrates create/update/delete across the local store and
// the identity provider. It owns no storage; every mutation of one store is
// paired with either a mirror write or a compensating action on the other.
type Coordinator struct {
	local LocalUsers
	idp   IdentityProvider
	lg    *zap.SugaredLogger
}

func NewCoordinator(local LocalUsers, idp IdentityProvider, lg *zap.SugaredLogger) *Coordinator {
	return &Coordinator{local: local, idp: idp, lg: lg}
}

// SignupInput carries the fields common to both signup directions.
type SignupInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	DateOfBirth string
	Country     string
	Phone       string
	Role        string
	TenantID    *string
}

func record(u *models.User) identity.UserRecord {
	rec := identity.UserRecord{
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: u.DateOfBirth,
		Country:     u.Country,
		Phone:       u.Phone,
		Role:        u.Role,
		AppUserID:   u.ID,
	}
	if u.TenantID != nil {
		rec.TenantID = *u.TenantID
	}
	return rec
}

// ApplicationSignup creates the user locally first, then mirrors to the
// identity provider, then writes the external id back. A provider failure
// compensates by deleting the just-created local row. There is no
// durability between the steps: a crash mid-way leaves a local-only row
// that SyncUser repairs.
func (c *Coordinator) ApplicationSignup(ctx context.Context, in SignupInput) (*models.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Email:        in.Email,
		PasswordHash: &hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		DateOfBirth:  in.DateOfBirth,
		Country:      in.Country,
		Phone:        in.Phone,
		Role:         in.Role,
		TenantID:     in.TenantID,
		Status:       models.UserStatusActive,
	}
	if err := c.local.Create(ctx, u); err != nil {
		return nil, err
	}

	externalID, err := c.idp.CreateUser(ctx, record(u), in.Password)
	if err != nil {
		if derr := c.local.Delete(ctx, u.ID); derr != nil {
			c.lg.Errorw("compensating delete failed, local record orphaned",
				"email", u.Email, "user_id", u.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: mirror to identity provider: %v", ErrUserCreationFailed, err)
	}

	if err := c.local.SetExternalID(ctx, u.ID, externalID); err != nil {
		// Both records exist; only the back-reference is missing. SyncUser
		// repairs this, so don't tear anything down.
		c.lg.Warnw("failed to store external id", "user_id", u.ID, "error", err)
	}
	u.ExternalIdentityID = &externalID

	c.lg.Infow("application signup complete", "email", u.Email, "user_id", u.ID, "external_id", externalID)
	return u, nil
}

// SocialSignup is the mirror image: identity provider first, local second,
// compensating by deleting the provider account when the local write fails.
func (c *Coordinator) SocialSignup(ctx context.Context, in SignupInput) (*models.User, error) {
	u := &models.User{
		Email:       in.Email,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		DateOfBirth: in.DateOfBirth,
		Country:     in.Country,
		Phone:       in.Phone,
		Role:        in.Role,
		TenantID:    in.TenantID,
		Status:      models.UserStatusActive,
	}
	externalID, err := c.idp.CreateUser(ctx, record(u), in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: create in identity provider: %v", ErrUserCreationFailed, err)
	}
	u.ExternalIdentityID = &externalID

	if err := c.local.Create(ctx, u); err != nil {
		if derr := c.idp.DeleteUser(ctx, externalID); derr != nil {
			c.lg.Errorw("compensating provider delete failed, remote record orphaned",
				"email", u.Email, "external_id", externalID, "error", derr)
		}
		return nil, fmt.Errorf("%w: local write: %v", ErrUserCreationFailed, err)
	}

	// Cross-reference our id on the provider side. Failure is repairable
	// and must not undo a completed signup.
	if err := c.idp.SetAttribute(ctx, externalID, "app_user_id", u.ID); err != nil {
		c.lg.Warnw("failed to set app user id attribute", "external_id", externalID, "error", err)
	}

	c.lg.Infow("social signup complete", "email", u.Email, "user_id", u.ID, "external_id", externalID)
	return u, nil
}

// Login validates locally first and falls back to authenticating against
// the identity provider. First success wins.
func (c *Coordinator) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := c.local.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil && c.local.ValidateCredentials(u, password) {
		if err := c.local.TouchLastLogin(ctx, u.ID); err != nil {
			c.lg.Warnw("failed to stamp last login", "user_id", u.ID, "error", err)
		}
		return u, nil
	}

	externalID, err := c.idp.FindUserByEmail(ctx, email)
	if err != nil {
		c.lg.Warnw("provider lookup failed during login fallback", "email", email, "error", err)
	}
	if externalID != "" {
		ok, aerr := c.idp.Authenticate(ctx, email, password)
		if aerr != nil {
			c.lg.Warnw("provider authentication failed during login fallback", "email", email, "error", aerr)
		}
		if ok {
			if u != nil {
				// Local password was stale but the provider accepted; the
				// local record is still the view we serve.
				if err := c.local.TouchLastLogin(ctx, u.ID); err != nil {
					c.lg.Warnw("failed to stamp last login", "user_id", u.ID, "error", err)
				}
				return u, nil
			}
			// Provider-only account: return a transient view keyed by the
			// external id. SyncUser(email) materializes a local record.
			now := time.Now()
			return &models.User{
				ID:                 externalID,
				Email:              email,
				Status:             models.UserStatusActive,
				ExternalIdentityID: &externalID,
				LastLogin:          &now,
			}, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// DeleteUser removes the user from both stores, best effort. The operation
// succeeds if either side's record is removed; it fails only when both
// deletions fail, or nothing existed to delete.
func (c *Coordinator) DeleteUser(ctx context.Context, id string) error {
	u, err := c.local.ByID(ctx, id)
	if err != nil {
		return err
	}
	var externalID string
	if u != nil {
		if u.Synced() {
			externalID = *u.ExternalIdentityID
		} else if extID, ferr := c.idp.FindUserByEmail(ctx, u.Email); ferr == nil {
			externalID = extID
		} else {
			c.lg.Warnw("provider lookup failed during delete", "email", u.Email, "error", ferr)
		}
	}
	return c.deleteBoth(ctx, u, externalID)
}

// DeleteUserByEmail is DeleteUser with an email entry point; it also covers
// provider-only accounts that have no local row at all.
func (c *Coordinator) DeleteUserByEmail(ctx context.Context, email string) error {
	u, err := c.local.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	var externalID string
	if u != nil && u.Synced() {
		externalID = *u.ExternalIdentityID
	} else if extID, ferr := c.idp.FindUserByEmail(ctx, email); ferr == nil {
		externalID = extID
	} else {
		c.lg.Warnw("provider lookup failed during delete", "email", email, "error", ferr)
	}
	return c.deleteBoth(ctx, u, externalID)
}

func (c *Coordinator) deleteBoth(ctx context.Context, u *models.User, externalID string) error {
	if u == nil && externalID == "" {
		return ErrUserNotFound
	}

	localDeleted := false
	if u != nil {
		if err := c.local.Delete(ctx, u.ID); err != nil {
			c.lg.Warnw("local delete failed", "user_id", u.ID, "error", err)
		} else {
			localDeleted = true
			c.lg.Infow("deleted user locally", "user_id", u.ID)
		}
	}

	remoteDeleted := false
	if externalID != "" {
		if err := c.idp.DeleteUser(ctx, externalID); err != nil {
			c.lg.Warnw("provider delete failed", "external_id", externalID, "error", err)
		} else {
			remoteDeleted = true
			c.lg.Infow("deleted user in identity provider", "external_id", externalID)
		}
	}

	// Deletion degrades to best effort; stale data on one side beats
	// blocking the caller.
	if !localDeleted && !remoteDeleted {
		return ErrUserDeletionFailed
	}
	return nil
}

// UpdateInput holds the mutable profile fields; nil means leave unchanged.
type UpdateInput struct {
	FirstName   *string
	LastName    *string
	DateOfBirth *string
	Country     *string
	Phone       *string
	Status      *string
}

// UpdateUser writes locally first, then mirrors to the provider when the
// record is synced. A provider failure surfaces after the local write; the
// caller can retry or reconcile.
func (c *Coordinator) UpdateUser(ctx context.Context, id string, in UpdateInput) (*models.User, error) {
	u, err := c.local.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&u.FirstName, in.FirstName)
	apply(&u.LastName, in.LastName)
	apply(&u.DateOfBirth, in.DateOfBirth)
	apply(&u.Country, in.Country)
	apply(&u.Phone, in.Phone)
	apply(&u.Status, in.Status)

	if err := c.local.Update(ctx, u); err != nil {
		return nil, err
	}
	if u.Synced() {
		if err := c.idp.UpdateUser(ctx, *u.ExternalIdentityID, record(u)); err != nil {
			return nil, fmt.Errorf("local update applied, provider mirror failed: %w", err)
		}
	}
	return u, nil
}

// SyncUser reconciles one user across the two stores by email:
// local-only records are mirrored out, provider-only records are
// materialized locally, and records present in both are merged with the
// local record winning every field conflict.
func (c *Coordinator) SyncUser(ctx context.Context, email string) (*models.User, error) {
	u, err := c.local.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	externalID, err := c.idp.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	switch {
	case u != nil && externalID == "":
		return c.mirrorOut(ctx, u)
	case u == nil && externalID != "":
		return c.materializeLocal(ctx, email, externalID)
	case u != nil && externalID != "":
		return c.merge(ctx, u, externalID)
	default:
		return nil, ErrUserNotFound
	}
}

// mirrorOut pushes a local-only record to the provider. Unlike signup,
// the local record pre-existed, so there is no compensating delete: a
// failed mirror leaves the record exactly as found.
func (c *Coordinator) mirrorOut(ctx context.Context, u *models.User) (*models.User, error) {
	externalID, err := c.idp.CreateUser(ctx, record(u), "")
	if err != nil {
		return nil, fmt.Errorf("%w: mirror to identity provider: %v", ErrUserCreationFailed, err)
	}
	if err := c.local.SetExternalID(ctx, u.ID, externalID); err != nil {
		c.lg.Warnw("failed to store external id after mirror", "user_id", u.ID, "error", err)
	}
	u.ExternalIdentityID = &externalID
	c.lg.Infow("mirrored local-only user to identity provider", "email", u.Email, "external_id", externalID)
	return u, nil
}

// materializeLocal creates a local row for a provider-only account. The
// provider holds the credential, so the local row has no password hash.
func (c *Coordinator) materializeLocal(ctx context.Context, email, externalID string) (*models.User, error) {
	u := &models.User{
		Email:              email,
		Role:               models.RoleUser,
		Status:             models.UserStatusActive,
		ExternalIdentityID: &externalID,
	}
	if err := c.local.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("%w: local write: %v", ErrUserCreationFailed, err)
	}
	if err := c.idp.SetAttribute(ctx, externalID, "app_user_id", u.ID); err != nil {
		c.lg.Warnw("failed to set app user id attribute", "external_id", externalID, "error", err)
	}
	c.lg.Infow("materialized provider-only user locally", "email", email, "user_id", u.ID)
	return u, nil
}

// merge resolves a record present in both stores. Policy: local wins on
// every field conflict, no timestamp comparison; the only repair taken from
// the provider side is a missing or stale external id.
func (c *Coordinator) merge(ctx context.Context, u *models.User, externalID string) (*models.User, error) {
	if !u.Synced() || *u.ExternalIdentityID != externalID {
		if err := c.local.SetExternalID(ctx, u.ID, externalID); err != nil {
			return nil, err
		}
		u.ExternalIdentityID = &externalID
	} else if err := c.local.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// UserExists reports presence in either store.
func (c *Coordinator) UserExists(ctx context.Context, email string) (bool, error) {
	u, err := c.local.ByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if u != nil {
		return true, nil
	}
	externalID, err := c.idp.FindUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return externalID != "", nil
}
