package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"afk-admin/core/auth"
)

// Operation is the sealed set of batched mutations. The unexported
// method keeps callers from inventing new ones.
type Operation interface {
	name() string
}

type (
	Ban    struct{}
	Unban  struct{}
	Delete struct{}
	// AssignRole replaces the role of every selected user. It never
	// touches is_active, so assigning a role to a banned account does
	// not reactivate it.
	AssignRole struct {
		RoleID int64
	}
)

func (Ban) name() string        { return "ban" }
func (Unban) name() string      { return "unban" }
func (Delete) name() string     { return "delete" }
func (AssignRole) name() string { return "assign_role" }

// ParseOperation maps the wire operation string onto the sealed type.
func ParseOperation(op string, roleID int64) (Operation, error) {
	switch op {
	case "ban":
		return Ban{}, nil
	case "unban":
		return Unban{}, nil
	case "delete":
		return Delete{}, nil
	case "assign_role":
		if roleID <= 0 {
			return nil, NewError(CodeValidationError, "assign_role requires role_id")
		}
		return AssignRole{RoleID: roleID}, nil
	default:
		return nil, NewError(CodeValidationError, "unknown operation %q", op)
	}
}

type BulkRequest struct {
	Op        Operation
	TargetIDs []int64
}

type BulkFailure struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// BulkResult aggregates a batched mutation. Partial marks outcomes
// where some targets failed while others succeeded; handlers map it to
// 207 Multi-Status.
type BulkResult struct {
	Operation    string        `json:"operation"`
	SuccessCount int           `json:"success_count"`
	FailedCount  int           `json:"failed_count"`
	Failures     []BulkFailure `json:"failures,omitempty"`
	Partial      bool          `json:"-"`
}

// Bulk validates the whole selection up front, then executes. Ban,
// unban and assign_role run as one batched UPDATE; delete walks the ids
// in request order, each delete standing on its own, and reports per-id
// failures.
func (s *Service) Bulk(ctx context.Context, actor auth.Actor, req BulkRequest) (*BulkResult, error) {
	if req.Op == nil {
		return nil, NewError(CodeValidationError, "operation is required")
	}
	if err := s.authorize(actor, bulkAction(req.Op)); err != nil {
		return nil, err
	}

	ids := dedupeIDs(req.TargetIDs)
	if len(ids) == 0 {
		return nil, NewError(CodeValidationError, "no users selected")
	}
	if max := s.cfg.EffectiveBulkMaxSelection(); len(ids) > max {
		return nil, NewError(CodeTooManySelected, "selection of %d exceeds the limit of %d", len(ids), max)
	}
	for _, id := range ids {
		if id != actor.ID {
			continue
		}
		switch req.Op.(type) {
		case Ban:
			return nil, NewError(CodeCannotBanSelf, "cannot ban your own account")
		case Delete:
			return nil, NewError(CodeCannotDeleteSelf, "cannot delete your own account")
		}
	}

	result := &BulkResult{Operation: req.Op.name()}
	switch op := req.Op.(type) {
	case Ban:
		if err := s.bulkSetActive(ctx, ids, false, result); err != nil {
			return nil, err
		}
	case Unban:
		if err := s.bulkSetActive(ctx, ids, true, result); err != nil {
			return nil, err
		}
	case AssignRole:
		role, err := s.roles.FindByID(ctx, op.RoleID)
		if err != nil {
			return nil, NewError(CodeDatabaseError, "resolve role: %v", err)
		}
		if role == nil {
			return nil, NewError(CodeInvalidRole, "role %d does not exist", op.RoleID)
		}
		n, err := s.users.AssignRoleBatch(ctx, ids, role.ID)
		if err != nil {
			return nil, NewError(CodeDatabaseError, "assign role: %v", err)
		}
		result.SuccessCount = int(n)
		result.FailedCount = len(ids) - int(n)
	case Delete:
		outcomes, err := s.users.DeleteEach(ctx, ids)
		if err != nil {
			return nil, NewError(CodeDatabaseError, "delete users: %v", err)
		}
		for _, o := range outcomes {
			if o.Err == nil {
				result.SuccessCount++
				continue
			}
			result.FailedCount++
			msg := o.Err.Error()
			if errors.Is(o.Err, sql.ErrNoRows) {
				msg = "user not found"
			}
			result.Failures = append(result.Failures, BulkFailure{UserID: o.ID, Message: msg})
		}
	default:
		return nil, NewError(CodeValidationError, "unknown operation")
	}

	result.Partial = result.FailedCount > 0 && result.SuccessCount > 0
	s.audit(ctx, actor, "users.bulk."+req.Op.name(),
		fmt.Sprintf("%d selected, %d succeeded, %d failed", len(ids), result.SuccessCount, result.FailedCount))
	return result, nil
}

func (s *Service) bulkSetActive(ctx context.Context, ids []int64, active bool, result *BulkResult) error {
	n, err := s.users.SetActiveBatch(ctx, ids, active)
	if err != nil {
		return NewError(CodeDatabaseError, "update users: %v", err)
	}
	result.SuccessCount = int(n)
	result.FailedCount = len(ids) - int(n)
	return nil
}

func bulkAction(op Operation) string {
	if _, ok := op.(Delete); ok {
		return "delete"
	}
	return "update"
}

// dedupeIDs drops repeats and non-positive ids while keeping the first
// occurrence order, which delete relies on for stable reporting.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
