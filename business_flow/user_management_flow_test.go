package businessflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	testhelpers "github.com/amirphl/backoffice/testing"
	"github.com/amirphl/backoffice/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	kind, email, detail string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) record(kind, email, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, email: email, detail: detail})
	return n.err
}

func (n *recordingNotifier) SendEmail(_ context.Context, email, subject, _ string) error {
	return n.record("email", email, subject)
}

func (n *recordingNotifier) SendApprovalEmail(_ context.Context, email, _, roleName string) error {
	return n.record("approval", email, roleName)
}

func (n *recordingNotifier) SendRejectionEmail(_ context.Context, email, _, reason string) error {
	return n.record("rejection", email, reason)
}

type userManagementEnv struct {
	fixtures    *testhelpers.TestFixtures
	profiles    repository.UserProfileRepository
	roles       repository.UserRoleRepository
	notifier    *recordingNotifier
	permissions services.PermissionService
	flow        UserManagementFlow

	superAdmin *models.UserRole
	finance    *models.UserRole
	viewer     *models.UserRole
	admin      *models.UserProfile
	manager    *models.UserProfile
}

func newUserManagementEnv(t *testing.T) *userManagementEnv {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	fixtures := testhelpers.NewTestFixtures(t, db)

	env := &userManagementEnv{
		fixtures: fixtures,
		profiles: repository.NewUserProfileRepository(db.DB),
		roles:    repository.NewUserRoleRepository(db.DB),
		notifier: &recordingNotifier{},
	}
	env.superAdmin = fixtures.CreateRole("super_admin", 1, models.Permission{Resource: "*", Actions: []string{"*"}})
	env.finance = fixtures.CreateRole("finance_manager", 20, models.Permission{Resource: "invoices", Actions: []string{"read", "update"}})
	env.viewer = fixtures.CreateRole("viewer", 90, models.Permission{Resource: "invoices", Actions: []string{"read"}})
	_, env.admin = fixtures.CreateUser(env.superAdmin, models.UserStatusActive)
	_, env.manager = fixtures.CreateUser(env.finance, models.UserStatusActive)

	permissions, err := services.NewPermissionService(context.Background(), env.roles)
	require.NoError(t, err)
	env.permissions = permissions

	env.flow = NewUserManagementFlow(env.profiles, env.roles, env.notifier, permissions, nil, db.DB)
	return env
}

func as(profile *models.UserProfile) context.Context {
	return utils.WithUser(context.Background(), profile.ID, profile.Email)
}

func TestUserManagementFlow_ApproveUser(t *testing.T) {
	env := newUserManagementEnv(t)
	_, pending := env.fixtures.CreateUser(nil, models.UserStatusPendingApproval)

	listed, err := env.flow.ListPendingUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, pending.ID, listed[0].ID)

	_, err = env.flow.ApproveUser(as(env.admin), pending.ID, &dto.ApproveUserRequest{RoleID: env.viewer.ID})
	require.NoError(t, err)

	stored, err := env.profiles.ByIDWithRole(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, stored.Status)
	require.NotNil(t, stored.RoleID)
	assert.Equal(t, env.viewer.ID, *stored.RoleID)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, env.admin.ID, *stored.ApprovedBy)
	assert.NotNil(t, stored.ApprovedAt)

	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, sentMail{kind: "approval", email: pending.Email, detail: env.viewer.DisplayName}, env.notifier.sent[0])

	_, err = env.flow.ApproveUser(as(env.admin), pending.ID, &dto.ApproveUserRequest{RoleID: env.viewer.ID})
	assert.ErrorIs(t, err, ErrUserNotPending)
	assert.True(t, IsConflict(err))
}

func TestUserManagementFlow_ApproveSurvivesMailFailure(t *testing.T) {
	env := newUserManagementEnv(t)
	env.notifier.err = errors.New("smtp down")
	_, pending := env.fixtures.CreateUser(nil, models.UserStatusPendingApproval)

	_, err := env.flow.ApproveUser(as(env.admin), pending.ID, &dto.ApproveUserRequest{RoleID: env.viewer.ID})
	require.NoError(t, err)
}

func TestUserManagementFlow_ApproveRespectsRoleLevel(t *testing.T) {
	env := newUserManagementEnv(t)
	_, pending := env.fixtures.CreateUser(nil, models.UserStatusPendingApproval)

	_, err := env.flow.ApproveUser(as(env.manager), pending.ID, &dto.ApproveUserRequest{RoleID: env.superAdmin.ID})
	assert.ErrorIs(t, err, ErrInsufficientRoleLevel)
	assert.True(t, IsForbidden(err))

	inactive := env.fixtures.CreateRole("retired", 95)
	require.NoError(t, env.roles.UpdateColumns(context.Background(), inactive.ID, map[string]any{"is_active": false}))
	_, err = env.flow.ApproveUser(as(env.admin), pending.ID, &dto.ApproveUserRequest{RoleID: inactive.ID})
	assert.ErrorIs(t, err, ErrRoleInactive)

	_, err = env.flow.ApproveUser(as(env.admin), pending.ID, &dto.ApproveUserRequest{RoleID: 9999})
	assert.True(t, IsRoleNotFound(err))
}

func TestUserManagementFlow_RejectUser(t *testing.T) {
	env := newUserManagementEnv(t)
	_, pending := env.fixtures.CreateUser(nil, models.UserStatusPendingApproval)

	_, err := env.flow.RejectUser(as(env.admin), pending.ID, &dto.RejectUserRequest{Reason: "   "})
	assert.ErrorIs(t, err, ErrRejectionReasonRequired)

	_, err = env.flow.RejectUser(as(env.admin), pending.ID, &dto.RejectUserRequest{Reason: "Unknown department"})
	require.NoError(t, err)

	stored, err := env.profiles.ByID(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "Unknown department", *stored.RejectionReason)
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "rejection", env.notifier.sent[0].kind)
}

func TestUserManagementFlow_UpdateUserRoleAndStatus(t *testing.T) {
	env := newUserManagementEnv(t)
	_, member := env.fixtures.CreateUser(env.viewer, models.UserStatusActive)

	_, err := env.flow.UpdateUserRole(as(env.admin), member.ID, &dto.UpdateUserRoleRequest{RoleID: env.finance.ID})
	require.NoError(t, err)
	stored, err := env.profiles.ByID(context.Background(), member.ID)
	require.NoError(t, err)
	assert.Equal(t, env.finance.ID, *stored.RoleID)

	_, err = env.flow.UpdateUserRole(as(env.admin), env.admin.ID, &dto.UpdateUserRoleRequest{RoleID: env.viewer.ID})
	assert.ErrorIs(t, err, ErrCannotModifySelf)

	_, err = env.flow.UpdateUserStatus(as(env.admin), member.ID, &dto.UpdateUserStatusRequest{Status: "suspended"})
	require.NoError(t, err)
	_, err = env.flow.UpdateUserStatus(as(env.admin), member.ID, &dto.UpdateUserStatusRequest{Status: "inactive"})
	assert.True(t, IsInvalidStatusTransition(err))
	_, err = env.flow.UpdateUserStatus(as(env.admin), member.ID, &dto.UpdateUserStatusRequest{Status: "active"})
	require.NoError(t, err)

	_, err = env.flow.UpdateUserStatus(as(env.manager), env.manager.ID, &dto.UpdateUserStatusRequest{Status: "inactive"})
	assert.ErrorIs(t, err, ErrCannotModifySelf)
}

func TestUserManagementFlow_UpdateRolePermissions(t *testing.T) {
	env := newUserManagementEnv(t)

	allowed, err := env.permissions.Enforce(env.viewer.Name, "refunds", "read")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = env.flow.UpdateRolePermissions(as(env.admin), env.viewer.ID, &dto.UpdateRolePermissionsRequest{
		Permissions: []dto.PermissionDTO{
			{Resource: "invoices", Actions: []string{"read"}},
			{Resource: "refunds", Actions: []string{"read"}},
		},
	})
	require.NoError(t, err)

	allowed, err = env.permissions.Enforce(env.viewer.Name, "refunds", "read")
	require.NoError(t, err)
	assert.True(t, allowed)

	roles, err := env.flow.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "super_admin", roles[0].Name)

	_, err = env.flow.UpdateRolePermissions(as(env.admin), env.viewer.ID, &dto.UpdateRolePermissionsRequest{
		Permissions: []dto.PermissionDTO{{Resource: " ", Actions: []string{"read"}}},
	})
	assert.ErrorIs(t, err, ErrInvalidPermission)

	_, err = env.flow.UpdateRolePermissions(as(env.admin), 9999, &dto.UpdateRolePermissionsRequest{})
	assert.True(t, IsRoleNotFound(err))
}

func TestUserManagementFlow_ListUsersByRole(t *testing.T) {
	env := newUserManagementEnv(t)
	env.fixtures.CreateUser(env.viewer, models.UserStatusActive)

	users, err := env.flow.ListUsers(context.Background(), dto.UserProfileFilterRequest{RoleID: &env.viewer.ID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "viewer", users[0].RoleName)
	require.NotNil(t, users[0].RoleLevel)
	assert.Equal(t, 90, *users[0].RoleLevel)
}
