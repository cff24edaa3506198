// Package users implements the admin user directory: CRUD, batched
// mutations, the import pipeline and multi-format export.
package users

import (
	"context"
	"fmt"
	"strings"

	"afk-admin/config"
	"afk-admin/core/auth"
	"afk-admin/core/rbac"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

type Service struct {
	users  store.UsersStore
	roles  store.RolesStore
	policy *rbac.Policy
	audits store.AuditStore
	cfg    *config.AppConfig
	logger *utils.Logger
}

func NewService(users store.UsersStore, roles store.RolesStore, policy *rbac.Policy,
	audits store.AuditStore, cfg *config.AppConfig, logger *utils.Logger) *Service {
	return &Service{
		users:  users,
		roles:  roles,
		policy: policy,
		audits: audits,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Service) authorize(actor auth.Actor, action string) error {
	if actor.ID == 0 {
		return NewError(CodeUnauthorized, "authentication required")
	}
	if !s.policy.Can(actor.Roles, "user", action) {
		return NewError(CodeInsufficientPermissions, "missing user.%s permission", action)
	}
	return nil
}

func (s *Service) audit(ctx context.Context, actor auth.Actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, actor.Email, action, details); err != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}

// roleMap indexes every role by lower-cased name for import/bulk role
// resolution.
func (s *Service) roleMap(ctx context.Context) (map[string]store.Role, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	m := make(map[string]store.Role, len(roles))
	for _, r := range roles {
		m[strings.ToLower(r.Name)] = r
	}
	return m, nil
}

// ListRequest mirrors the directory listing query string.
type ListRequest struct {
	Filter   store.UserFilter
	Page     int
	PageSize int
}

type ListResult struct {
	Users    []UserView `json:"users"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// UserView is the API shape of a user: no credential material, role
// flattened, activity precomputed.
type UserView struct {
	ID             int64   `json:"id"`
	Email          string  `json:"email"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	FullName       string  `json:"full_name"`
	IsActive       bool    `json:"is_active"`
	Status         string  `json:"status"`
	RoleID         *int64  `json:"role_id"`
	RoleName       string  `json:"role_name"`
	Sex            *string `json:"sex"`
	Age            *int    `json:"age"`
	Birthday       *string `json:"birthday"`
	Address        string  `json:"address"`
	Locale         string  `json:"locale"`
	GroupID        *int64  `json:"group_id"`
	Coin           string  `json:"coin"`
	HasAvatar      bool    `json:"has_avatar"`
	ActivityStatus string  `json:"activity_status"`
	LastLogin      *string `json:"last_login"`
	LastLogout     *string `json:"last_logout"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func (s *Service) List(ctx context.Context, actor auth.Actor, req ListRequest) (*ListResult, error) {
	if err := s.authorize(actor, "read"); err != nil {
		return nil, err
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}
	req.Filter.Now = utils.NowUTC()
	req.Filter.OnlineWindow = s.cfg.EffectiveOnlineWindow()

	total, err := s.users.CountFiltered(ctx, req.Filter)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "count users: %v", err)
	}
	rows, err := s.users.ListFiltered(ctx, req.Filter, req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "list users: %v", err)
	}
	views := make([]UserView, 0, len(rows))
	for _, row := range rows {
		views = append(views, s.view(row))
	}
	return &ListResult{Users: views, Total: total, Page: req.Page, PageSize: req.PageSize}, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*UserView, error) {
	if err := s.authorize(actor, "read"); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "get user: %v", err)
	}
	if u == nil {
		return nil, NewError(CodeUserNotFound, "user %d not found", id)
	}
	row := store.UserWithRole{User: *u}
	if u.RoleID != nil {
		role, err := s.roles.FindByID(ctx, *u.RoleID)
		if err == nil && role != nil {
			row.RoleName = role.Name
			row.RoleDescription = role.Description
		}
	}
	v := s.view(row)
	return &v, nil
}

func (s *Service) view(row store.UserWithRole) UserView {
	now := utils.NowUTC()
	return flattenUser(row, now, s.cfg.EffectiveOnlineWindow())
}

// EmailAvailable reports whether email is free, optionally excluding one
// user id (for edit forms).
func (s *Service) EmailAvailable(ctx context.Context, actor auth.Actor, email string, excludeID int64) (bool, error) {
	if err := s.authorize(actor, "read"); err != nil {
		return false, err
	}
	if err := utils.ValidateEmail(email); err != nil {
		return false, NewError(CodeValidationError, "%v", err)
	}
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, NewError(CodeDatabaseError, "check email: %v", err)
	}
	if existing == nil || existing.ID == excludeID {
		return true, nil
	}
	return false, nil
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in NewUser) (*UserView, error) {
	if err := s.authorize(actor, "create"); err != nil {
		return nil, err
	}
	u, err := s.buildUser(ctx, in)
	if err != nil {
		return nil, err
	}
	existing, err := s.users.FindByEmail(ctx, u.Email)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "check email: %v", err)
	}
	if existing != nil {
		return nil, NewError(CodeEmailExists, "email %s is already registered", u.Email)
	}
	if _, err := s.users.Create(ctx, u); err != nil {
		return nil, NewError(CodeDatabaseError, "create user: %v", err)
	}
	s.audit(ctx, actor, "users.create", fmt.Sprintf("created %s (id %d)", u.Email, u.ID))
	return s.Get(ctx, actor, u.ID)
}

func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, in UpdateUser) (*UserView, error) {
	if err := s.authorize(actor, "update"); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, NewError(CodeDatabaseError, "get user: %v", err)
	}
	if u == nil {
		return nil, NewError(CodeUserNotFound, "user %d not found", id)
	}
	if err := s.applyUpdate(ctx, u, in); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, NewError(CodeDatabaseError, "update user: %v", err)
	}
	s.audit(ctx, actor, "users.update", fmt.Sprintf("updated %s (id %d)", u.Email, u.ID))
	return s.Get(ctx, actor, u.ID)
}

func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	if err := s.authorize(actor, "delete"); err != nil {
		return err
	}
	if id == actor.ID {
		return NewError(CodeCannotDeleteSelf, "cannot delete your own account")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return NewError(CodeUserNotFound, "user %d not found", id)
		}
		return NewError(CodeDatabaseError, "delete user: %v", err)
	}
	s.audit(ctx, actor, "users.delete", fmt.Sprintf("deleted user id %d", id))
	return nil
}
