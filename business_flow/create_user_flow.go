package businessflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUserFlow provisions a staff account directly, bypassing approval
type CreateUserFlow interface {
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error)
}

// CreateUserFlowImpl implements the user creation business flow.
// The identity and the profile are written separately; a failed profile
// insert deletes the identity again.
type CreateUserFlowImpl struct {
	identityRepo repository.AuthIdentityRepository
	profileRepo  repository.UserProfileRepository
	roleRepo     repository.UserRoleRepository
	accessLogger *services.AccessLogger
	bcryptCost   int
}

// NewCreateUserFlow creates a new user creation flow instance
func NewCreateUserFlow(
	identityRepo repository.AuthIdentityRepository,
	profileRepo repository.UserProfileRepository,
	roleRepo repository.UserRoleRepository,
	accessLogger *services.AccessLogger,
	bcryptCost int,
) CreateUserFlow {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &CreateUserFlowImpl{
		identityRepo: identityRepo,
		profileRepo:  profileRepo,
		roleRepo:     roleRepo,
		accessLogger: accessLogger,
		bcryptCost:   bcryptCost,
	}
}

// CreateUser checks for a duplicate email, creates the identity and then the profile
func (f *CreateUserFlowImpl) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (result *dto.CreateUserResponse, err error) {
	email := utils.NormalizeEmail(req.Email)
	status := models.UserStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			f.accessLogger.LogCreate(ctx, "user", services.IDString(result.User.ID), email, map[string]any{
				"role_id": req.RoleID,
				"status":  status,
			})
		})
		if err != nil {
			err = NewBusinessError("CREATE_USER_FAILED", "Failed to create user", err)
		}
	}()

	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusPendingApproval:
	default:
		return nil, ErrInvalidStatus
	}

	role, err := f.roleRepo.ByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, notFound(ErrRoleNotFound, req.RoleID)
	}
	if !role.IsActive {
		return nil, ErrRoleInactive
	}

	existing, err := f.identityRepo.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}
	if profile, err := f.profileRepo.ByEmail(ctx, email); err != nil {
		return nil, err
	} else if profile != nil {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.bcryptCost)
	if err != nil {
		return nil, err
	}

	identity := &models.AuthIdentity{Email: email, PasswordHash: string(hash), EmailConfirmed: true}
	if err = f.identityRepo.Save(ctx, identity); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	profile := &models.UserProfile{
		AuthIdentityID: identity.ID,
		Email:          email,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          req.Phone,
		Department:     req.Department,
		JobTitle:       req.JobTitle,
		AvatarURL:      req.AvatarURL,
		RoleID:         &role.ID,
		Status:         status,
	}
	if status == models.UserStatusActive {
		now := utils.UTCNow()
		profile.ApprovedAt = &now
		profile.ApprovedBy = actorID(ctx)
	}
	if err = f.profileRepo.Save(ctx, profile); err != nil {
		if derr := f.identityRepo.Delete(ctx, identity.ID); derr != nil {
			slog.ErrorContext(ctx, "failed to delete orphaned identity", "identity_id", identity.ID, "error", derr)
		}
		return nil, err
	}

	return &dto.CreateUserResponse{
		Success: true,
		User:    dto.CreatedUser{ID: profile.ID, Email: email},
	}, nil
}
