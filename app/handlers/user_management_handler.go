package handlers

import (
	"github.com/amirphl/backoffice/app/dto"
	businessflow "github.com/amirphl/backoffice/business_flow"
	"github.com/gofiber/fiber/v3"
)

// UserManagementHandlerInterface defines the contract for staff and role administration
type UserManagementHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	ListPendingUsers(c fiber.Ctx) error
	ListRoles(c fiber.Ctx) error
	ApproveUser(c fiber.Ctx) error
	RejectUser(c fiber.Ctx) error
	UpdateUserRole(c fiber.Ctx) error
	UpdateUserStatus(c fiber.Ctx) error
	UpdateRolePermissions(c fiber.Ctx) error
}

// UserManagementHandler handles staff approval, roles and permissions
type UserManagementHandler struct {
	baseHandler
	flow businessflow.UserManagementFlow
}

// NewUserManagementHandler creates a new user management handler
func NewUserManagementHandler(flow businessflow.UserManagementFlow) UserManagementHandlerInterface {
	return &UserManagementHandler{baseHandler: newBaseHandler(), flow: flow}
}

// ListUsers lists staff profiles
// @Summary List Users
// @Tags Users
// @Produce json
// @Param status query string false "pending_approval|active|inactive|suspended|rejected"
// @Param role_id query int false "Role ID"
// @Success 200 {object} dto.APIResponse{data=[]dto.UserProfileDTO}
// @Router /api/v1/users [get]
func (h *UserManagementHandler) ListUsers(c fiber.Ctx) error {
	var filter dto.UserProfileFilterRequest
	var err error
	filter.Status = queryString(c, "status")
	if filter.RoleID, err = queryUint(c, "role_id"); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "VALIDATION_ERROR", nil)
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	users, err := h.flow.ListUsers(ctx, filter)
	if err != nil {
		return h.FlowError(c, err, "LIST_USERS_FAILED", "Failed to retrieve users")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved successfully", users)
}

// ListPendingUsers lists signups waiting for approval
// @Summary List Pending Users
// @Tags Users
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.UserProfileDTO}
// @Router /api/v1/users/pending [get]
func (h *UserManagementHandler) ListPendingUsers(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	users, err := h.flow.ListPendingUsers(ctx)
	if err != nil {
		return h.FlowError(c, err, "LIST_PENDING_USERS_FAILED", "Failed to retrieve pending users")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pending users retrieved successfully", users)
}

// ListRoles lists roles with their permissions, most privileged first
// @Summary List Roles
// @Tags Users
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.RoleDTO}
// @Router /api/v1/roles [get]
func (h *UserManagementHandler) ListRoles(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	roles, err := h.flow.ListRoles(ctx)
	if err != nil {
		return h.FlowError(c, err, "LIST_ROLES_FAILED", "Failed to retrieve roles")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Roles retrieved successfully", roles)
}

// ApproveUser activates a pending user with a role
// @Summary Approve User
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body dto.ApproveUserRequest true "Role to grant"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 403 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse "User is not pending"
// @Router /api/v1/users/{id}/approve [post]
func (h *UserManagementHandler) ApproveUser(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "VALIDATION_ERROR", nil)
	}
	var req dto.ApproveUserRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.ApproveUser(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "APPROVE_USER_FAILED", "Failed to approve user")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// RejectUser rejects a pending user with a reason
// @Summary Reject User
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body dto.RejectUserRequest true "Reason"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/users/{id}/reject [post]
func (h *UserManagementHandler) RejectUser(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "VALIDATION_ERROR", nil)
	}
	var req dto.RejectUserRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.RejectUser(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "REJECT_USER_FAILED", "Failed to reject user")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// UpdateUserRole assigns a role to a user
// @Summary Update User Role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserRoleRequest true "Role"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/users/{id}/role [put]
func (h *UserManagementHandler) UpdateUserRole(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdateUserRoleRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdateUserRole(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_USER_ROLE_FAILED", "Failed to update user role")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// UpdateUserStatus activates, deactivates or suspends a user
// @Summary Update User Status
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body dto.UpdateUserStatusRequest true "Status"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/users/{id}/status [put]
func (h *UserManagementHandler) UpdateUserStatus(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid user id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdateUserStatusRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdateUserStatus(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_USER_STATUS_FAILED", "Failed to update user status")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}

// UpdateRolePermissions replaces the permissions of a role
// @Summary Update Role Permissions
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "Role ID"
// @Param request body dto.UpdateRolePermissionsRequest true "Permissions"
// @Success 200 {object} dto.APIResponse{data=dto.MutationResponse}
// @Router /api/v1/roles/{id}/permissions [put]
func (h *UserManagementHandler) UpdateRolePermissions(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid role id", "VALIDATION_ERROR", nil)
	}
	var req dto.UpdateRolePermissionsRequest
	if ok, err := h.bind(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c)
	defer cancel()

	res, err := h.flow.UpdateRolePermissions(ctx, id, &req)
	if err != nil {
		return h.FlowError(c, err, "UPDATE_ROLE_PERMISSIONS_FAILED", "Failed to update role permissions")
	}
	return h.SuccessResponse(c, fiber.StatusOK, res.Message, res)
}
