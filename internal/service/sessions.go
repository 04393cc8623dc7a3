package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evidencevault/internal/auth"
	"evidencevault/internal/models"
	"evidencevault/internal/store"
)

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login checks account status before the password, so an inactive account
// is reported as such even with a wrong password. Unknown emails and wrong
// passwords are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.st.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		auth.BurnVerify(password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if u.Status != models.UserActive {
		return Session{}, ErrAccountInactive
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Verify resolves a bearer token to the current state of its user. The role
// returned is the stored one, not the one baked into the token.
func (s *Service) Verify(ctx context.Context, raw string) (models.Identity, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return models.Identity{}, ErrTokenInvalid
	}
	u, err := s.st.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Identity{}, ErrUserNotFound
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if u.Status != models.UserActive {
		return models.Identity{}, ErrAccountInactive
	}
	return models.IdentityOf(u), nil
}

// Refresh issues a new token for an already verified caller.
func (s *Service) Refresh(ctx context.Context, id models.Identity) (Session, error) {
	u, err := s.Me(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if u.Status != models.UserActive {
		return Session{}, ErrAccountInactive
	}
	return s.issue(u)
}

func (s *Service) Me(ctx context.Context, id models.Identity) (models.User, error) {
	u, err := s.st.GetUserByID(ctx, id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return u, err
}

func (s *Service) issue(u models.User) (Session, error) {
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}
