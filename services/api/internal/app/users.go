package app

import (
	"context"
	"fmt"
	"strings"

	"ivisionary/internal/util"
	"ivisionary/pkg/auth"
	"ivisionary/pkg/domain"
)

// Audit actions for account administration.
const (
	ActionUserCreated = "User Created"
	ActionUserUpdated = "User Updated"
	ActionUserDeleted = "User Deleted"
)

// ListUsers returns all registered accounts (admin use only).
func (a *App) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := a.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// NewUserInput is an account created from the console. Such accounts are verified.
type NewUserInput struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

func (a *App) CreateUser(ctx context.Context, actor domain.Session, in NewUserInput) (domain.User, error) {
	reg := RegisterInput{
		Username: auth.SanitizeText(in.Username),
		Email:    normalizeEmail(in.Email),
		Password: in.Password,
	}
	if err := validateRegistration(reg); err != nil {
		return domain.User{}, err
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !in.Role.Valid() {
		verr := &ValidationError{}
		verr.add("role", "Role must be user or admin")
		return domain.User{}, verr
	}
	if err := a.ensureAvailable(ctx, reg.Email, reg.Username); err != nil {
		return domain.User{}, err
	}
	passwordHash, err := auth.HashPassword(reg.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewUUID(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: passwordHash,
		Role:         in.Role,
		Status:       domain.StatusActive,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	a.audit.Add(ctx, ActionUserCreated, map[string]any{"by": actor.Email, "userId": user.ID, "email": user.Email, "role": user.Role})
	return user, nil
}

// UserUpdate changes role and/or status. Nil fields are unchanged.
type UserUpdate struct {
	Role   *domain.UserRole   `json:"role"`
	Status *domain.UserStatus `json:"status"`
}

func (a *App) UpdateUser(ctx context.Context, actor domain.Session, id string, update UserUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	verr := &ValidationError{}
	if update.Role != nil && !update.Role.Valid() {
		verr.add("role", "Role must be user or admin")
	}
	if update.Status != nil && *update.Status != domain.StatusActive && *update.Status != domain.StatusLocked {
		verr.add("status", "Status must be active or locked")
	}
	if err := verr.err(); err != nil {
		return domain.User{}, err
	}
	if user.ID == actor.ID {
		if update.Role != nil && *update.Role != user.Role {
			return domain.User{}, ErrForbidden
		}
		if update.Status != nil && *update.Status == domain.StatusLocked {
			return domain.User{}, ErrForbidden
		}
	}
	if update.Role != nil {
		user.Role = *update.Role
	}
	if update.Status != nil {
		user.Status = *update.Status
	}
	user.UpdatedAt = a.now()
	if err := a.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	a.audit.Add(ctx, ActionUserUpdated, map[string]any{"by": actor.Email, "userId": user.ID, "role": user.Role, "status": user.Status})
	return user, nil
}

func (a *App) DeleteUser(ctx context.Context, actor domain.Session, id string) error {
	id = strings.TrimSpace(id)
	if id == actor.ID {
		return ErrForbidden
	}
	ok, err := a.store.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	a.audit.Add(ctx, ActionUserDeleted, map[string]any{"by": actor.Email, "userId": id})
	return nil
}
