package usersync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"saascore/internal/identity"
	"saascore/internal/models"
)

type MockLocalRoles struct {
	mock.Mock
}

func (m *MockLocalRoles) Create(ctx context.Context, r *models.Role) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockLocalRoles) ByID(ctx context.Context, id string) (*models.Role, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockLocalRoles) ByCode(ctx context.Context, code string) (*models.Role, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Role), args.Error(1)
}

func (m *MockLocalRoles) ListActive(ctx context.Context) ([]models.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Role), args.Error(1)
}

func (m *MockLocalRoles) ListByTenant(ctx context.Context, tenantID string) ([]models.Role, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]models.Role), args.Error(1)
}

func (m *MockLocalRoles) Save(ctx context.Context, r *models.Role) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockLocalRoles) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	args := m.Called(ctx, name, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocalRoles) CodeTaken(ctx context.Context, code, excludeID string) (bool, error) {
	args := m.Called(ctx, code, excludeID)
	return args.Bool(0), args.Error(1)
}

type MockRoleMirror struct {
	mock.Mock
}

func (m *MockRoleMirror) EnsureRole(ctx context.Context, roleName, description string) (string, error) {
	args := m.Called(ctx, roleName, description)
	return args.String(0), args.Error(1)
}

func (m *MockRoleMirror) DeleteRole(ctx context.Context, roleName string) error {
	args := m.Called(ctx, roleName)
	return args.Error(0)
}

func newRegistry(t *testing.T) (*Registry, *MockLocalRoles, *MockRoleMirror) {
	t.Helper()
	roles := new(MockLocalRoles)
	idp := new(MockRoleMirror)
	return NewRegistry(roles, idp, zap.NewNop().Sugar()), roles, idp
}

func TestCreateRoleRejectsBadCodeBeforeAnyStore(t *testing.T) {
	reg, roles, idp := newRegistry(t)

	for _, code := range []string{"role_foo", "ROLE_foo", "FOO", "ROLE-FOO", ""} {
		_, err := reg.CreateRole(context.Background(), RoleInput{RoleName: "Foo", RoleCode: code})
		require.ErrorIs(t, err, ErrInvalidRoleCode, "code %q", code)
	}
	roles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	idp.AssertNotCalled(t, "EnsureRole", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRoleMirrorSuccess(t *testing.T) {
	reg, roles, idp := newRegistry(t)
	ctx := context.Background()

	roles.On("NameTaken", ctx, "Foo", "").Return(false, nil)
	roles.On("CodeTaken", ctx, "ROLE_FOO", "").Return(false, nil)
	roles.On("Create", ctx, mock.AnythingOfType("*models.Role")).Return(nil)
	idp.On("EnsureRole", ctx, "ROLE_FOO", "").Return("ext-role-1", nil)
	roles.On("Save", ctx, mock.AnythingOfType("*models.Role")).Return(nil)

	role, err := reg.CreateRole(ctx, RoleInput{RoleName: "Foo", RoleCode: "ROLE_FOO"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusActive, role.Status)
	require.NotNil(t, role.ExternalRoleID)
	assert.Equal(t, "ext-role-1", *role.ExternalRoleID)
}

func TestCreateRoleTolerantOnMirrorFailure(t *testing.T) {
	reg, roles, idp := newRegistry(t)
	ctx := context.Background()

	roles.On("NameTaken", ctx, "Foo", "").Return(false, nil)
	roles.On("CodeTaken", ctx, "ROLE_FOO", "").Return(false, nil)
	roles.On("Create", ctx, mock.Anything).Return(nil)
	idp.On("EnsureRole", ctx, "ROLE_FOO", "").Return("", identity.ErrUnavailable)
	roles.On("Save", ctx, mock.Anything).Return(nil)

	role, err := reg.CreateRole(ctx, RoleInput{RoleName: "Foo", RoleCode: "ROLE_FOO"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusActive, role.Status)
	assert.Nil(t, role.ExternalRoleID)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	reg, roles, _ := newRegistry(t)
	ctx := context.Background()

	roles.On("NameTaken", ctx, "Foo", "").Return(true, nil)

	_, err := reg.CreateRole(ctx, RoleInput{RoleName: "Foo", RoleCode: "ROLE_FOO"})
	require.ErrorIs(t, err, ErrRoleAlreadyExists)
	roles.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateRoleDemotesToDraftOnMirrorFailure(t *testing.T) {
	reg, roles, idp := newRegistry(t)
	ctx := context.Background()
	existing := &models.Role{ID: "r1", RoleName: "Foo", RoleCode: "ROLE_FOO", Status: models.RoleStatusActive}

	roles.On("ByID", ctx, "r1").Return(existing, nil)
	idp.On("EnsureRole", ctx, "ROLE_FOO", "updated").Return("", identity.ErrUnavailable)
	roles.On("Save", ctx, mock.Anything).Return(nil)

	role, err := reg.UpdateRole(ctx, "r1", RoleInput{
		RoleName: "Foo", RoleCode: "ROLE_FOO", Description: "updated",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStatusDraft, role.Status)
}

func TestDeleteRoleSoftDeletesDespiteMirrorFailure(t *testing.T) {
	reg, roles, idp := newRegistry(t)
	ctx := context.Background()
	existing := &models.Role{ID: "r1", RoleCode: "ROLE_FOO", Status: models.RoleStatusActive}

	roles.On("ByID", ctx, "r1").Return(existing, nil)
	idp.On("DeleteRole", ctx, "ROLE_FOO").Return(identity.ErrUnavailable)
	roles.On("Save", ctx, mock.MatchedBy(func(r *models.Role) bool {
		return r.Status == models.RoleStatusDeleted
	})).Return(nil)

	require.NoError(t, reg.DeleteRole(ctx, "r1"))
}

func TestDeleteRoleNotFound(t *testing.T) {
	reg, roles, _ := newRegistry(t)
	ctx := context.Background()

	roles.On("ByID", ctx, "missing").Return(nil, nil)

	require.ErrorIs(t, reg.DeleteRole(ctx, "missing"), ErrRoleNotFound)
}

func TestGetRoleHidesDeleted(t *testing.T) {
	reg, roles, _ := newRegistry(t)
	ctx := context.Background()
	deleted := &models.Role{ID: "r1", RoleCode: "ROLE_FOO", Status: models.RoleStatusDeleted}

	roles.On("ByID", ctx, "r1").Return(deleted, nil)

	_, err := reg.GetRole(ctx, "r1")
	require.ErrorIs(t, err, ErrRoleNotFound)
}
