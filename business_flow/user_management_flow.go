package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/backoffice/app/dto"
	"github.com/amirphl/backoffice/app/services"
	"github.com/amirphl/backoffice/models"
	"github.com/amirphl/backoffice/repository"
	"github.com/amirphl/backoffice/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserManagementFlow handles staff approval, roles and permissions
type UserManagementFlow interface {
	ListUsers(ctx context.Context, filter dto.UserProfileFilterRequest) ([]dto.UserProfileDTO, error)
	ListPendingUsers(ctx context.Context) ([]dto.UserProfileDTO, error)
	ListRoles(ctx context.Context) ([]dto.RoleDTO, error)
	ApproveUser(ctx context.Context, id uint, req *dto.ApproveUserRequest) (*dto.MutationResponse, error)
	RejectUser(ctx context.Context, id uint, req *dto.RejectUserRequest) (*dto.MutationResponse, error)
	UpdateUserRole(ctx context.Context, id uint, req *dto.UpdateUserRoleRequest) (*dto.MutationResponse, error)
	UpdateUserStatus(ctx context.Context, id uint, req *dto.UpdateUserStatusRequest) (*dto.MutationResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID uint, req *dto.UpdateRolePermissionsRequest) (*dto.MutationResponse, error)
}

// UserManagementFlowImpl implements the user management business flow
type UserManagementFlowImpl struct {
	profileRepo  repository.UserProfileRepository
	roleRepo     repository.UserRoleRepository
	notifier     services.NotificationService
	permissions  services.PermissionService
	accessLogger *services.AccessLogger
	db           *gorm.DB
	now          func() time.Time
}

// NewUserManagementFlow creates a new user management flow instance
func NewUserManagementFlow(
	profileRepo repository.UserProfileRepository,
	roleRepo repository.UserRoleRepository,
	notifier services.NotificationService,
	permissions services.PermissionService,
	accessLogger *services.AccessLogger,
	db *gorm.DB,
) UserManagementFlow {
	return &UserManagementFlowImpl{
		profileRepo:  profileRepo,
		roleRepo:     roleRepo,
		notifier:     notifier,
		permissions:  permissions,
		accessLogger: accessLogger,
		db:           db,
		now:          utils.UTCNow,
	}
}

// ListUsers lists staff profiles with role name and level flattened
func (f *UserManagementFlowImpl) ListUsers(ctx context.Context, req dto.UserProfileFilterRequest) (result []dto.UserProfileDTO, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_USERS_FAILED", "Failed to list users", err)
		}
	}()

	filter := models.UserProfileFilter{RoleID: req.RoleID}
	if req.Status != nil {
		status := models.UserStatus(*req.Status)
		if !status.Valid() {
			return nil, ErrInvalidStatus
		}
		filter.Status = &status
	}
	profiles, err := f.profileRepo.ListWithRole(ctx, filter)
	if err != nil {
		return nil, err
	}
	return mapSlice(profiles, ToUserProfileDTO), nil
}

// ListPendingUsers lists profiles waiting for approval
func (f *UserManagementFlowImpl) ListPendingUsers(ctx context.Context) ([]dto.UserProfileDTO, error) {
	pending := string(models.UserStatusPendingApproval)
	return f.ListUsers(ctx, dto.UserProfileFilterRequest{Status: &pending})
}

// ListRoles lists every role, most privileged first
func (f *UserManagementFlowImpl) ListRoles(ctx context.Context) ([]dto.RoleDTO, error) {
	roles, err := f.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("LIST_ROLES_FAILED", "Failed to list roles", err)
	}
	return mapSlice(roles, ToRoleDTO), nil
}

func (f *UserManagementFlowImpl) loadProfile(ctx context.Context, id uint) (*models.UserProfile, error) {
	profile, err := f.profileRepo.ByIDWithRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, notFound(ErrUserNotFound, id)
	}
	return profile, nil
}

// assignableRole loads an active role the actor on ctx may grant
func (f *UserManagementFlowImpl) assignableRole(ctx context.Context, roleID uint) (*models.UserRole, error) {
	role, err := f.roleRepo.ByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, notFound(ErrRoleNotFound, roleID)
	}
	if !role.IsActive {
		return nil, ErrRoleInactive
	}

	if id := actorID(ctx); id != nil {
		actor, err := f.profileRepo.ByIDWithRole(ctx, *id)
		if err != nil {
			return nil, err
		}
		if actor != nil && actor.Role != nil && !actor.Role.OutranksOrEqual(role) {
			return nil, ErrInsufficientRoleLevel
		}
	}
	return role, nil
}

func rejectSelf(ctx context.Context, id uint) error {
	if actor := actorID(ctx); actor != nil && *actor == id {
		return ErrCannotModifySelf
	}
	return nil
}

// ApproveUser activates a pending profile with a role and notifies the user
func (f *UserManagementFlowImpl) ApproveUser(ctx context.Context, id uint, req *dto.ApproveUserRequest) (result *dto.MutationResponse, err error) {
	var profile *models.UserProfile
	var role *models.UserRole
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			f.accessLogger.LogApprove(ctx, "user", services.IDString(id), profile.Email, map[string]any{"role": role.Name})
		})
		if err != nil {
			err = NewBusinessError("APPROVE_USER_FAILED", "Failed to approve user", err)
		}
	}()

	if profile, err = f.loadProfile(ctx, id); err != nil {
		return nil, err
	}
	if profile.Status != models.UserStatusPendingApproval {
		return nil, ErrUserNotPending
	}
	if role, err = f.assignableRole(ctx, req.RoleID); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":           models.UserStatusActive,
		"role_id":          role.ID,
		"approved_at":      f.now(),
		"rejection_reason": nil,
	}
	if by := actorID(ctx); by != nil {
		updates["approved_by"] = *by
	}
	if err = f.profileRepo.UpdateColumns(ctx, id, updates); err != nil {
		return nil, err
	}

	if f.notifier != nil {
		if nerr := f.notifier.SendApprovalEmail(ctx, profile.Email, profile.FullName(), role.DisplayName); nerr != nil {
			slog.WarnContext(ctx, "failed to send approval email", "user_id", id, "error", nerr)
		}
	}

	return &dto.MutationResponse{ID: id, Message: "User approved"}, nil
}

// RejectUser rejects a pending profile with a reason and notifies the user
func (f *UserManagementFlowImpl) RejectUser(ctx context.Context, id uint, req *dto.RejectUserRequest) (result *dto.MutationResponse, err error) {
	var profile *models.UserProfile
	reason := strings.TrimSpace(req.Reason)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			f.accessLogger.LogReject(ctx, "user", services.IDString(id), profile.Email, reason)
		})
		if err != nil {
			err = NewBusinessError("REJECT_USER_FAILED", "Failed to reject user", err)
		}
	}()

	if reason == "" {
		return nil, ErrRejectionReasonRequired
	}
	if profile, err = f.loadProfile(ctx, id); err != nil {
		return nil, err
	}
	if profile.Status != models.UserStatusPendingApproval {
		return nil, ErrUserNotPending
	}

	if err = f.profileRepo.UpdateColumns(ctx, id, map[string]any{
		"status":           models.UserStatusRejected,
		"rejection_reason": reason,
	}); err != nil {
		return nil, err
	}

	if f.notifier != nil {
		if nerr := f.notifier.SendRejectionEmail(ctx, profile.Email, profile.FullName(), reason); nerr != nil {
			slog.WarnContext(ctx, "failed to send rejection email", "user_id", id, "error", nerr)
		}
	}

	return &dto.MutationResponse{ID: id, Message: "User rejected"}, nil
}

// UpdateUserRole assigns another role to a user
func (f *UserManagementFlowImpl) UpdateUserRole(ctx context.Context, id uint, req *dto.UpdateUserRoleRequest) (result *dto.MutationResponse, err error) {
	var profile *models.UserProfile
	var role *models.UserRole
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			from := ""
			if profile.Role != nil {
				from = profile.Role.Name
			}
			f.accessLogger.LogUpdate(ctx, "user", services.IDString(id), profile.Email, map[string]any{
				"role": map[string]any{"from": from, "to": role.Name},
			})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_USER_ROLE_FAILED", "Failed to update user role", err)
		}
	}()

	if err = rejectSelf(ctx, id); err != nil {
		return nil, err
	}
	if profile, err = f.loadProfile(ctx, id); err != nil {
		return nil, err
	}
	if role, err = f.assignableRole(ctx, req.RoleID); err != nil {
		return nil, err
	}
	if err = f.profileRepo.UpdateColumns(ctx, id, map[string]any{"role_id": role.ID}); err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "Role updated"}, nil
}

// UpdateUserStatus moves a user along the profile state machine
func (f *UserManagementFlowImpl) UpdateUserStatus(ctx context.Context, id uint, req *dto.UpdateUserStatusRequest) (result *dto.MutationResponse, err error) {
	var profile *models.UserProfile
	next := models.UserStatus(req.Status)
	defer func() {
		auditResult(ctx, f.accessLogger, err, "user", func() {
			f.accessLogger.LogUpdate(ctx, "user", services.IDString(id), profile.Email, map[string]any{
				"status": map[string]any{"from": profile.Status, "to": next},
			})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_USER_STATUS_FAILED", "Failed to update user status", err)
		}
	}()

	if !next.Valid() {
		return nil, ErrInvalidStatus
	}
	if err = rejectSelf(ctx, id); err != nil {
		return nil, err
	}
	if profile, err = f.loadProfile(ctx, id); err != nil {
		return nil, err
	}
	if !profile.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: user %s -> %s", ErrInvalidStatusTransition, profile.Status, next)
	}
	if err = f.profileRepo.UpdateColumns(ctx, id, map[string]any{"status": next}); err != nil {
		return nil, err
	}

	return &dto.MutationResponse{ID: id, Message: "User marked " + string(next)}, nil
}

// UpdateRolePermissions replaces a role's permissions and reloads the enforcer
func (f *UserManagementFlowImpl) UpdateRolePermissions(ctx context.Context, roleID uint, req *dto.UpdateRolePermissionsRequest) (result *dto.MutationResponse, err error) {
	var role *models.UserRole
	perms := make([]models.Permission, 0, len(req.Permissions))
	defer func() {
		auditResult(ctx, f.accessLogger, err, "role", func() {
			f.accessLogger.LogUpdate(ctx, "role", services.IDString(roleID), role.Name, map[string]any{"permissions": perms})
		})
		if err != nil {
			err = NewBusinessError("UPDATE_ROLE_PERMISSIONS_FAILED", "Failed to update role permissions", err)
		}
	}()

	for _, p := range req.Permissions {
		resource := strings.TrimSpace(p.Resource)
		if resource == "" || len(p.Actions) == 0 {
			return nil, ErrInvalidPermission
		}
		perms = append(perms, models.Permission{Resource: resource, Actions: p.Actions})
	}

	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		var err error
		role, err = f.roleRepo.ByID(txCtx, roleID)
		if err != nil {
			return err
		}
		if role == nil {
			return notFound(ErrRoleNotFound, roleID)
		}
		return f.roleRepo.UpdateColumns(txCtx, roleID, map[string]any{"permissions": datatypes.NewJSONType(perms)})
	})
	if err != nil {
		return nil, err
	}

	if f.permissions != nil {
		if rerr := f.permissions.Reload(ctx); rerr != nil {
			slog.ErrorContext(ctx, "failed to reload permissions", "role_id", roleID, "error", rerr)
		}
	}

	return &dto.MutationResponse{ID: roleID, Message: "Permissions updated"}, nil
}
