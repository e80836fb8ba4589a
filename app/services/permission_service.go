package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/amirphl/backoffice/repository"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Role subjects match exactly; "*" in a policy object or action matches anything.
const permissionModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// PermissionService answers "may role X do action Y on resource Z" from the
// permissions stored on user_roles. Inactive roles grant nothing.
type PermissionService interface {
	Enforce(role, resource, action string) (bool, error)
	Reload(ctx context.Context) error
}

type permissionServiceImpl struct {
	roles    repository.UserRoleRepository
	enforcer atomic.Pointer[casbin.Enforcer]
}

// NewPermissionService builds the enforcer and loads the current role policies
func NewPermissionService(ctx context.Context, roles repository.UserRoleRepository) (PermissionService, error) {
	s := &permissionServiceImpl{roles: roles}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the policy set from the roles table. Readers keep using the
// previous enforcer until the new one is complete.
func (s *permissionServiceImpl) Reload(ctx context.Context) error {
	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return fmt.Errorf("failed to parse casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	roles, err := s.roles.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roles: %w", err)
	}

	count := 0
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		for _, p := range role.Permissions.Data() {
			for _, action := range p.Actions {
				added, err := e.AddPolicy(role.Name, p.Resource, action)
				if err != nil {
					return fmt.Errorf("failed to add policy for role %s: %w", role.Name, err)
				}
				if added {
					count++
				}
			}
		}
	}

	s.enforcer.Store(e)
	slog.Info("Permission policies loaded", "roles", len(roles), "policies", count)
	return nil
}

func (s *permissionServiceImpl) Enforce(role, resource, action string) (bool, error) {
	e := s.enforcer.Load()
	if e == nil || role == "" {
		return false, nil
	}
	return e.Enforce(role, resource, action)
}
