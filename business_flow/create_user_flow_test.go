package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	testhelpers "github.com/amirphl/backoffice/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingProfileRepo struct {
	repository.UserProfileRepository
}

func (failingProfileRepo) Save(context.Context, *models.UserProfile) error {
	return errors.New("insert into user_profiles: connection reset")
}

func createUserRequest(roleID uint) *dto.CreateUserRequest {
	return &dto.CreateUserRequest{
		Email:     "Ops.Lead@Example.com",
		Password:  "SecurePass123",
		FirstName: "Ops",
		LastName:  "Lead",
		RoleID:    roleID,
		Status:    "active",
	}
}

func TestCreateUserFlow_CreateUser(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	fixtures := testhelpers.NewTestFixtures(t, db)
	identities := repository.NewAuthIdentityRepository(db.DB)
	profiles := repository.NewUserProfileRepository(db.DB)
	flow := NewCreateUserFlow(identities, profiles, repository.NewUserRoleRepository(db.DB), nil, bcrypt.MinCost)
	ctx := context.Background()
	role := fixtures.CreateRole("support", 50)

	res, err := flow.CreateUser(ctx, createUserRequest(role.ID))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ops.lead@example.com", res.User.Email)

	profile, err := profiles.ByIDWithRole(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, profile.Status)
	require.NotNil(t, profile.Role)
	assert.Equal(t, "support", profile.Role.Name)
	assert.NotNil(t, profile.ApprovedAt)

	identity, err := identities.ByEmail(ctx, "ops.lead@example.com")
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte("SecurePass123")))

	_, err = flow.CreateUser(ctx, createUserRequest(role.ID))
	assert.True(t, IsEmailAlreadyExists(err))

	req := createUserRequest(role.ID)
	req.Email = "someone.else@example.com"
	req.Status = "suspended"
	_, err = flow.CreateUser(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	req.Status = "pending_approval"
	req.RoleID = 9999
	_, err = flow.CreateUser(ctx, req)
	assert.True(t, IsRoleNotFound(err))
}

func TestCreateUserFlow_DeletesIdentityWhenProfileFails(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	fixtures := testhelpers.NewTestFixtures(t, db)
	identities := repository.NewAuthIdentityRepository(db.DB)
	profiles := failingProfileRepo{UserProfileRepository: repository.NewUserProfileRepository(db.DB)}
	flow := NewCreateUserFlow(identities, profiles, repository.NewUserRoleRepository(db.DB), nil, bcrypt.MinCost)
	role := fixtures.CreateRole("support", 50)

	_, err := flow.CreateUser(context.Background(), createUserRequest(role.ID))
	require.Error(t, err)
	assert.Equal(t, "CREATE_USER_FAILED", ErrorCode(err))
	assert.False(t, IsValidationError(err))

	identity, err := identities.ByEmail(context.Background(), "ops.lead@example.com")
	require.NoError(t, err)
	assert.Nil(t, identity)
}
