package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"evidencevault/internal/auth"
	"evidencevault/internal/models"
	"evidencevault/internal/store"
)

type CreateUserInput struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Role        string  `json:"role"`
	BadgeNumber *string `json:"badge_number"`
}

// UpdateUserInput is a partial update. Nil fields are left alone; an empty
// badge number clears it.
type UpdateUserInput struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Role        *string `json:"role"`
	BadgeNumber *string `json:"badge_number"`
	Status      *string `json:"status"`
}

func normalizeEmail(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", invalid("email is required")
	}
	addr, err := netmail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return "", invalid("email is not valid")
	}
	return v, nil
}

func parseRole(v string) (models.Role, error) {
	r := models.Role(strings.ToLower(strings.TrimSpace(v)))
	if !r.Valid() {
		return "", invalid("role must be one of: admin, officer")
	}
	return r, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// ListUsers returns active accounts. status "all" lists every account.
func (s *Service) ListUsers(ctx context.Context, id models.Identity, status string) ([]models.User, error) {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return nil, err
	}
	var filter models.UserStatus
	switch st := models.UserStatus(strings.ToLower(strings.TrimSpace(status))); {
	case st == "":
		filter = models.UserActive
	case st == "all":
	case st.Valid():
		filter = st
	default:
		return nil, invalid("status must be one of: active, inactive, all")
	}
	return s.st.ListUsers(ctx, filter)
}

func (s *Service) GetUser(ctx context.Context, id models.Identity, userID string) (models.User, error) {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return models.User{}, err
	}
	return s.getUser(ctx, userID)
}

func (s *Service) getUser(ctx context.Context, userID string) (models.User, error) {
	u, err := s.st.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, id models.Identity, ip string, in CreateUserInput) (models.User, error) {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return models.User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.User{}, invalid("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return models.User{}, err
	}
	badge := trimmedOrNil(in.BadgeNumber)
	if role == models.RoleOfficer && badge == nil {
		return models.User{}, invalid("badge_number is required for officers")
	}
	if err := s.ValidatePassword(in.Password); err != nil {
		return models.User{}, err
	}
	taken, err := s.st.EmailTaken(ctx, email, "")
	if err != nil {
		return models.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return models.User{}, ErrEmailTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.st.CreateUser(ctx, models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		BadgeNumber:  badge,
		Status:       models.UserActive,
	})
	if errors.Is(err, store.ErrConflict) {
		return models.User{}, ErrEmailTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.recordUser(ctx, id, u, ip, models.ActionUserCreated, fmt.Sprintf("Created user %s with role %s", u.Email, u.Role))
	return u, nil
}

// UpdateUser applies in and records a readable diff of what changed. An
// update that changes nothing is not audited.
func (s *Service) UpdateUser(ctx context.Context, id models.Identity, ip, userID string, in UpdateUserInput) (models.User, error) {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return models.User{}, err
	}
	cur, err := s.getUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	next := cur
	if in.Name != nil {
		next.Name = strings.TrimSpace(*in.Name)
		if next.Name == "" {
			return models.User{}, invalid("name cannot be empty")
		}
	}
	if in.Email != nil {
		if next.Email, err = normalizeEmail(*in.Email); err != nil {
			return models.User{}, err
		}
	}
	if in.Role != nil {
		if next.Role, err = parseRole(*in.Role); err != nil {
			return models.User{}, err
		}
	}
	if in.BadgeNumber != nil {
		next.BadgeNumber = trimmedOrNil(in.BadgeNumber)
	}
	if in.Status != nil {
		next.Status = models.UserStatus(strings.ToLower(strings.TrimSpace(*in.Status)))
		if !next.Status.Valid() {
			return models.User{}, invalid("status must be one of: active, inactive")
		}
	}
	if next.Role == models.RoleOfficer && next.BadgeNumber == nil {
		return models.User{}, invalid("badge_number is required for officers")
	}

	changes := diffUser(cur, next)
	if len(changes) == 0 {
		return cur, nil
	}
	if next.Email != cur.Email {
		taken, err := s.st.EmailTaken(ctx, next.Email, cur.ID)
		if err != nil {
			return models.User{}, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return models.User{}, ErrEmailTaken
		}
	}
	updated, err := s.st.UpdateUser(ctx, next)
	switch {
	case errors.Is(err, store.ErrConflict):
		return models.User{}, ErrEmailTaken
	case errors.Is(err, store.ErrNotFound):
		return models.User{}, ErrNotFound
	case err != nil:
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	s.recordUser(ctx, id, updated, ip, models.ActionUserUpdated, strings.Join(changes, "; "))
	return updated, nil
}

func diffUser(a, b models.User) []string {
	var out []string
	field := func(name, from, to string) {
		if from != to {
			out = append(out, fmt.Sprintf("%s changed from %q to %q", name, from, to))
		}
	}
	field("name", a.Name, b.Name)
	field("email", a.Email, b.Email)
	field("role", string(a.Role), string(b.Role))
	field("badge_number", deref(a.BadgeNumber), deref(b.BadgeNumber))
	field("status", string(a.Status), string(b.Status))
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ResetPassword sets another account's password.
func (s *Service) ResetPassword(ctx context.Context, id models.Identity, ip, userID, newPassword string) error {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return err
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, u.ID, newPassword); err != nil {
		return err
	}
	s.recordUser(ctx, id, u, ip, models.ActionPasswordReset, "Password reset by "+id.Email)
	return nil
}

// ChangeOwnPassword is open to every authenticated account but requires the
// current password.
func (s *Service) ChangeOwnPassword(ctx context.Context, id models.Identity, ip, current, next string) error {
	u, err := s.Me(ctx, id)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, u.ID, next); err != nil {
		return err
	}
	s.recordUser(ctx, id, u, ip, models.ActionPasswordChanged, "Password changed by account owner")
	return nil
}

func (s *Service) setPassword(ctx context.Context, userID, pw string) error {
	if err := s.ValidatePassword(pw); err != nil {
		return err
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	err = s.st.UpdateUserPasswordHash(ctx, userID, hash)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// DeleteUser removes an account that owns no evidence. The audit trail keeps
// its snapshot.
func (s *Service) DeleteUser(ctx context.Context, id models.Identity, ip, userID string) error {
	if err := auth.Authorize(id, auth.ActUserManage); err != nil {
		return err
	}
	if userID == id.UserID {
		return ErrCannotDeleteSelf
	}
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	switch err := s.st.DeleteUser(ctx, u.ID); {
	case errors.Is(err, store.ErrInUse):
		return ErrUserOwnsEvidence
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("delete user: %w", err)
	}
	s.recordUser(ctx, id, u, ip, models.ActionUserDeleted, fmt.Sprintf("Deleted user %s (%s)", u.Email, u.Role))
	return nil
}
