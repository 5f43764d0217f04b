package usersync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"saascore/internal/identity"
	"saascore/internal/models"
	"saascore/internal/store"
)

type MockLocalUsers struct {
	mock.Mock
}

func (m *MockLocalUsers) Create(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockLocalUsers) ByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLocalUsers) ByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockLocalUsers) Update(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockLocalUsers) SetExternalID(ctx context.Context, id, externalID string) error {
	args := m.Called(ctx, id, externalID)
	return args.Error(0)
}

func (m *MockLocalUsers) TouchLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockLocalUsers) ValidateCredentials(u *models.User, password string) bool {
	args := m.Called(u, password)
	return args.Bool(0)
}

func (m *MockLocalUsers) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, rec identity.UserRecord, password string) (string, error) {
	args := m.Called(ctx, rec, password)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) FindUserByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockIdentityProvider) UpdateUser(ctx context.Context, externalID string, rec identity.UserRecord) error {
	args := m.Called(ctx, externalID, rec)
	return args.Error(0)
}

func (m *MockIdentityProvider) DeleteUser(ctx context.Context, externalID string) error {
	args := m.Called(ctx, externalID)
	return args.Error(0)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, email, password string) (bool, error) {
	args := m.Called(ctx, email, password)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdentityProvider) SetAttribute(ctx context.Context, externalID, key, value string) error {
	args := m.Called(ctx, externalID, key, value)
	return args.Error(0)
}

func newCoordinator(t *testing.T) (*Coordinator, *MockLocalUsers, *MockIdentityProvider) {
	t.Helper()
	local := new(MockLocalUsers)
	idp := new(MockIdentityProvider)
	return NewCoordinator(local, idp, zap.NewNop().Sugar()), local, idp
}

func TestApplicationSignupSuccess(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "local-1"
		}).Return(nil)
	idp.On("CreateUser", ctx, mock.AnythingOfType("identity.UserRecord"), "secret123").
		Return("ext-1", nil)
	local.On("SetExternalID", ctx, "local-1", "ext-1").Return(nil)

	u, err := co.ApplicationSignup(ctx, SignupInput{
		Email: "a@x.com", Password: "secret123", Role: models.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, u.Status)
	require.NotNil(t, u.ExternalIdentityID)
	assert.Equal(t, "ext-1", *u.ExternalIdentityID)
	local.AssertExpectations(t)
	idp.AssertExpectations(t)
	local.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestApplicationSignupCompensatesOnProviderFailure(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "local-1"
		}).Return(nil)
	idp.On("CreateUser", ctx, mock.Anything, mock.Anything).
		Return("", identity.ErrUnavailable)
	local.On("Delete", ctx, "local-1").Return(nil)

	_, err := co.ApplicationSignup(ctx, SignupInput{Email: "a@x.com", Password: "secret123"})
	require.ErrorIs(t, err, ErrUserCreationFailed)
	local.AssertCalled(t, "Delete", ctx, "local-1")
	local.AssertNotCalled(t, "SetExternalID", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplicationSignupDuplicateEmailStopsBeforeProvider(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("Create", ctx, mock.Anything).Return(store.ErrDuplicateEmail)

	_, err := co.ApplicationSignup(ctx, SignupInput{Email: "a@x.com", Password: "secret123"})
	require.ErrorIs(t, err, store.ErrDuplicateEmail)
	idp.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestSocialSignupCompensatesOnLocalFailure(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	idp.On("CreateUser", ctx, mock.Anything, mock.Anything).Return("ext-9", nil)
	local.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))
	idp.On("DeleteUser", ctx, "ext-9").Return(nil)

	_, err := co.SocialSignup(ctx, SignupInput{Email: "s@x.com"})
	require.ErrorIs(t, err, ErrUserCreationFailed)
	idp.AssertCalled(t, "DeleteUser", ctx, "ext-9")
}

func TestLoginLocalSuccess(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	u := &models.User{ID: "u1", Email: "a@x.com"}

	local.On("ByEmail", ctx, "a@x.com").Return(u, nil)
	local.On("ValidateCredentials", u, "pw").Return(true)
	local.On("TouchLastLogin", ctx, "u1").Return(nil)

	got, err := co.Login(ctx, "a@x.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	idp.AssertNotCalled(t, "Authenticate", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginFallsBackToProvider(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "only@idp.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "only@idp.com").Return("ext-7", nil)
	idp.On("Authenticate", ctx, "only@idp.com", "pw").Return(true, nil)

	got, err := co.Login(ctx, "only@idp.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ext-7", got.ID)
	require.NotNil(t, got.ExternalIdentityID)
	assert.Equal(t, "ext-7", *got.ExternalIdentityID)
}

func TestLoginBothFail(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "a@x.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "a@x.com").Return("", nil)

	_, err := co.Login(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestDeleteUserLocalOnlySucceeds(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	u := &models.User{ID: "u1", Email: "a@x.com"} // never mirrored

	local.On("ByID", ctx, "u1").Return(u, nil)
	idp.On("FindUserByEmail", ctx, "a@x.com").Return("", nil)
	local.On("Delete", ctx, "u1").Return(nil)

	require.NoError(t, co.DeleteUser(ctx, "u1"))
	idp.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}

func TestDeleteUserBothSidesFail(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	ext := "ext-1"
	u := &models.User{ID: "u1", Email: "a@x.com", ExternalIdentityID: &ext}

	local.On("ByID", ctx, "u1").Return(u, nil)
	local.On("Delete", ctx, "u1").Return(errors.New("db down"))
	idp.On("DeleteUser", ctx, "ext-1").Return(identity.ErrUnavailable)

	require.ErrorIs(t, co.DeleteUser(ctx, "u1"), ErrUserDeletionFailed)
}

func TestDeleteUserPartialFailureStillSucceeds(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	ext := "ext-1"
	u := &models.User{ID: "u1", Email: "a@x.com", ExternalIdentityID: &ext}

	local.On("ByID", ctx, "u1").Return(u, nil)
	local.On("Delete", ctx, "u1").Return(nil)
	idp.On("DeleteUser", ctx, "ext-1").Return(identity.ErrUnavailable)

	require.NoError(t, co.DeleteUser(ctx, "u1"))
}

func TestDeleteUserByEmailNotFoundAnywhere(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "ghost@x.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "ghost@x.com").Return("", nil)

	require.ErrorIs(t, co.DeleteUserByEmail(ctx, "ghost@x.com"), ErrUserNotFound)
}

func TestSyncUserMirrorsLocalOnly(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	u := &models.User{ID: "u1", Email: "a@x.com", Role: models.RoleUser}

	local.On("ByEmail", ctx, "a@x.com").Return(u, nil)
	idp.On("FindUserByEmail", ctx, "a@x.com").Return("", nil)
	idp.On("CreateUser", ctx, mock.Anything, "").Return("ext-2", nil)
	local.On("SetExternalID", ctx, "u1", "ext-2").Return(nil)

	got, err := co.SyncUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got.ExternalIdentityID)
	assert.Equal(t, "ext-2", *got.ExternalIdentityID)
	// A pre-existing local record must never be torn down by reconciliation.
	local.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestSyncUserMaterializesProviderOnly(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "only@idp.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "only@idp.com").Return("ext-3", nil)
	local.On("Create", ctx, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = "local-3"
		}).Return(nil)
	idp.On("SetAttribute", ctx, "ext-3", "app_user_id", "local-3").Return(nil)

	got, err := co.SyncUser(ctx, "only@idp.com")
	require.NoError(t, err)
	assert.Equal(t, "local-3", got.ID)
	assert.Nil(t, got.PasswordHash)
}

func TestSyncUserIdempotentWhenPresentInBoth(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	ext := "ext-1"
	u := &models.User{ID: "u1", Email: "a@x.com", ExternalIdentityID: &ext}

	local.On("ByEmail", ctx, "a@x.com").Return(u, nil)
	idp.On("FindUserByEmail", ctx, "a@x.com").Return("ext-1", nil)
	local.On("Update", ctx, u).Return(nil)

	first, err := co.SyncUser(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := co.SyncUser(ctx, "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.ExternalIdentityID, *second.ExternalIdentityID)
	local.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	idp.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncUserRepairsMissingExternalID(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	u := &models.User{ID: "u1", Email: "a@x.com"} // row exists remotely too, link lost

	local.On("ByEmail", ctx, "a@x.com").Return(u, nil)
	idp.On("FindUserByEmail", ctx, "a@x.com").Return("ext-5", nil)
	local.On("SetExternalID", ctx, "u1", "ext-5").Return(nil)

	got, err := co.SyncUser(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, got.ExternalIdentityID)
	assert.Equal(t, "ext-5", *got.ExternalIdentityID)
}

func TestSyncUserNotFoundAnywhere(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "ghost@x.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "ghost@x.com").Return("", nil)

	_, err := co.SyncUser(ctx, "ghost@x.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUserMirrorsWhenSynced(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()
	ext := "ext-1"
	u := &models.User{ID: "u1", Email: "a@x.com", ExternalIdentityID: &ext}
	name := "Ada"

	local.On("ByID", ctx, "u1").Return(u, nil)
	local.On("Update", ctx, u).Return(nil)
	idp.On("UpdateUser", ctx, "ext-1", mock.Anything).Return(nil)

	got, err := co.UpdateUser(ctx, "u1", UpdateInput{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.FirstName)
	idp.AssertCalled(t, "UpdateUser", ctx, "ext-1", mock.Anything)
}

func TestUserExistsChecksBothStores(t *testing.T) {
	co, local, idp := newCoordinator(t)
	ctx := context.Background()

	local.On("ByEmail", ctx, "only@idp.com").Return(nil, nil)
	idp.On("FindUserByEmail", ctx, "only@idp.com").Return("ext-1", nil)

	ok, err := co.UserExists(ctx, "only@idp.com")
	require.NoError(t, err)
	assert.True(t, ok)
}
