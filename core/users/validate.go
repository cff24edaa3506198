package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"afk-admin/core/auth"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

// NewUser is the payload for direct user creation.
type NewUser struct {
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Password  string  `json:"password"`
	IsActive  *bool   `json:"is_active"`
	RoleID    *int64  `json:"role_id"`
	Role      string  `json:"role"`
	Sex       *bool   `json:"sex"`
	Birthday  string  `json:"birthday"`
	Address   string  `json:"address"`
	Locale    string  `json:"locale"`
	GroupID   *int64  `json:"group_id"`
	Coin      *int64  `json:"coin"`
	Avatar    *string `json:"avatar"`
}

// UpdateUser carries only the fields present in the request body.
type UpdateUser struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
	IsActive  *bool   `json:"is_active"`
	RoleID    *int64  `json:"role_id"`
	Sex       *bool   `json:"sex"`
	Birthday  *string `json:"birthday"`
	Address   *string `json:"address"`
	Locale    *string `json:"locale"`
	GroupID   *int64  `json:"group_id"`
	Coin      *int64  `json:"coin"`
	Avatar    *string `json:"avatar"`
}

func (s *Service) buildUser(ctx context.Context, in NewUser) (*store.User, error) {
	if err := utils.ValidateEmail(in.Email); err != nil {
		return nil, NewError(CodeValidationError, "%v", err)
	}
	if err := utils.ValidateName("first_name", in.FirstName); err != nil {
		return nil, NewError(CodeValidationError, "%v", err)
	}
	if err := utils.ValidateName("last_name", in.LastName); err != nil {
		return nil, NewError(CodeValidationError, "%v", err)
	}
	if err := utils.ValidatePassword(in.Password); err != nil {
		return nil, NewError(CodeValidationError, "%v", err)
	}
	if err := utils.ValidateAddress(in.Address); err != nil {
		return nil, NewError(CodeValidationError, "%v", err)
	}

	u := &store.User{
		Email:     utils.NormalizeEmail(in.Email),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		IsActive:  true,
		Sex:       in.Sex,
		Address:   strings.TrimSpace(in.Address),
		Locale:    strings.TrimSpace(in.Locale),
		GroupID:   in.GroupID,
		Avatar:    in.Avatar,
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Coin != nil {
		u.Coin = *in.Coin
	}
	if in.Birthday != "" {
		bday, err := utils.ParseDate(in.Birthday)
		if err != nil {
			return nil, NewError(CodeValidationError, "%v", err)
		}
		if err := utils.ValidateBirthday(bday, utils.NowUTC()); err != nil {
			return nil, NewError(CodeValidationError, "%v", err)
		}
		u.Birthday = &bday
	}

	roleID, err := s.resolveRole(ctx, in.RoleID, in.Role)
	if err != nil {
		return nil, err
	}
	u.RoleID = roleID

	ph, err := auth.HashPassword(in.Password, s.cfg.Pepper)
	if err != nil {
		return nil, NewError(CodeInternal, "hash password: %v", err)
	}
	u.PasswordHash = ph.Hash
	u.Salt = ph.Salt
	return u, nil
}

func (s *Service) applyUpdate(ctx context.Context, u *store.User, in UpdateUser) error {
	if in.Email != nil {
		if err := utils.ValidateEmail(*in.Email); err != nil {
			return NewError(CodeValidationError, "%v", err)
		}
		next := utils.NormalizeEmail(*in.Email)
		if next != u.Email {
			existing, err := s.users.FindByEmail(ctx, next)
			if err != nil {
				return NewError(CodeDatabaseError, "check email: %v", err)
			}
			if existing != nil && existing.ID != u.ID {
				return NewError(CodeEmailExists, "email %s is already registered", next)
			}
			u.Email = next
		}
	}
	if in.FirstName != nil {
		if err := utils.ValidateName("first_name", *in.FirstName); err != nil {
			return NewError(CodeValidationError, "%v", err)
		}
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if err := utils.ValidateName("last_name", *in.LastName); err != nil {
			return NewError(CodeValidationError, "%v", err)
		}
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Password != nil {
		if err := utils.ValidatePassword(*in.Password); err != nil {
			return NewError(CodeValidationError, "%v", err)
		}
		ph, err := auth.HashPassword(*in.Password, s.cfg.Pepper)
		if err != nil {
			return NewError(CodeInternal, "hash password: %v", err)
		}
		u.PasswordHash = ph.Hash
		u.Salt = ph.Salt
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.RoleID != nil {
		roleID, err := s.resolveRole(ctx, in.RoleID, "")
		if err != nil {
			return err
		}
		u.RoleID = roleID
	}
	if in.Sex != nil {
		u.Sex = in.Sex
	}
	if in.Birthday != nil {
		if *in.Birthday == "" {
			u.Birthday = nil
		} else {
			bday, err := utils.ParseDate(*in.Birthday)
			if err != nil {
				return NewError(CodeValidationError, "%v", err)
			}
			if err := utils.ValidateBirthday(bday, utils.NowUTC()); err != nil {
				return NewError(CodeValidationError, "%v", err)
			}
			u.Birthday = &bday
		}
	}
	if in.Address != nil {
		if err := utils.ValidateAddress(*in.Address); err != nil {
			return NewError(CodeValidationError, "%v", err)
		}
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.Locale != nil {
		u.Locale = strings.TrimSpace(*in.Locale)
	}
	if in.GroupID != nil {
		u.GroupID = in.GroupID
	}
	if in.Coin != nil {
		u.Coin = *in.Coin
	}
	if in.Avatar != nil {
		u.Avatar = in.Avatar
	}
	return nil
}

// resolveRole turns a role id or name into a verified role id. Unknown
// roles fail with INVALID_ROLE before any row is touched.
func (s *Service) resolveRole(ctx context.Context, roleID *int64, roleName string) (*int64, error) {
	if roleID != nil {
		role, err := s.roles.FindByID(ctx, *roleID)
		if err != nil {
			return nil, NewError(CodeDatabaseError, "resolve role: %v", err)
		}
		if role == nil {
			return nil, NewError(CodeInvalidRole, "role %d does not exist", *roleID)
		}
		return &role.ID, nil
	}
	if roleName = strings.TrimSpace(roleName); roleName != "" {
		role, err := s.roles.FindByName(ctx, roleName)
		if err != nil {
			return nil, NewError(CodeDatabaseError, "resolve role: %v", err)
		}
		if role == nil {
			return nil, NewError(CodeInvalidRole, "role %q does not exist", roleName)
		}
		return &role.ID, nil
	}
	return nil, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func parseBoolCell(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y", "active":
		return true, nil
	case "false", "0", "no", "n", "inactive":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

func parseSexCell(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "male", "m":
		return true, nil
	case "female", "f":
		return false, nil
	}
	return parseBoolCell(value)
}

func parseIntCell(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}

func ageFrom(birthday time.Time, now time.Time) int {
	age := now.Year() - birthday.Year()
	anniversary := time.Date(now.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	if now.Before(anniversary) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}
