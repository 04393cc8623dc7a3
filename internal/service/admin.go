package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evidencevault/internal/auth"
	"evidencevault/internal/models"
)

const recentWindow = 7 * 24 * time.Hour

func (s *Service) ListAudit(ctx context.Context, id models.Identity, q models.AuditQuery) ([]models.AuditEntry, int, error) {
	if err := auth.Authorize(id, auth.ActAuditRead); err != nil {
		return nil, 0, err
	}
	switch q.Scope {
	case "", models.ScopeUser, models.ScopeEvidence:
	default:
		return nil, 0, invalid("scope must be one of: user, evidence")
	}
	q.Action = strings.ToUpper(strings.TrimSpace(q.Action))
	return s.st.ListAudit(ctx, q)
}

// Stats counts evidence uploaded within the last seven days as recent.
func (s *Service) Stats(ctx context.Context, id models.Identity) (models.Stats, error) {
	if err := auth.Authorize(id, auth.ActStatsRead); err != nil {
		return models.Stats{}, err
	}
	return s.st.Stats(ctx, s.now().UTC().Add(-recentWindow))
}

// BootstrapAdmin creates the configured admin account when no account exists
// yet. It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context) (bool, error) {
	email := strings.TrimSpace(s.cfg.BootstrapAdminEmail)
	if email == "" || s.cfg.BootstrapAdminPassword == "" {
		n, err := s.st.CountUsers(ctx)
		if err != nil {
			return false, err
		}
		if n == 0 {
			s.log.Warn(ctx, "no accounts exist and BOOTSTRAP_ADMIN_EMAIL/BOOTSTRAP_ADMIN_PASSWORD are unset; use evidencectl create-admin")
		}
		return false, nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return false, fmt.Errorf("BOOTSTRAP_ADMIN_EMAIL: %w", err)
	}
	if err := s.ValidatePassword(s.cfg.BootstrapAdminPassword); err != nil {
		return false, fmt.Errorf("BOOTSTRAP_ADMIN_PASSWORD: %w", err)
	}
	hash, err := auth.HashPassword(s.cfg.BootstrapAdminPassword)
	if err != nil {
		return false, err
	}
	name := strings.TrimSpace(s.cfg.BootstrapAdminName)
	if name == "" {
		name = "System Administrator"
	}
	created, err := s.st.CreateFirstAdmin(ctx, name, email, hash)
	if err != nil || !created {
		return false, err
	}
	if u, err := s.st.GetUserByEmail(ctx, email); err == nil {
		s.recordUser(ctx, systemActor, u, "", models.ActionUserCreated, "Bootstrap admin account created")
	}
	s.log.Info(ctx, "bootstrap admin created", "email", email)
	return true, nil
}

// EnsureAdmin creates an admin account or, when the email exists, promotes it
// to an active admin with the given password.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (models.User, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return models.User{}, false, err
	}
	if strings.TrimSpace(name) == "" {
		name = "System Administrator"
	}
	if err := s.ValidatePassword(password); err != nil {
		return models.User{}, false, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, false, err
	}
	u, created, err := s.st.EnsureAdmin(ctx, strings.TrimSpace(name), email, hash)
	if err != nil {
		return models.User{}, false, err
	}
	action, details := models.ActionPasswordReset, "Admin access restored from the command line"
	if created {
		action, details = models.ActionUserCreated, "Admin account created from the command line"
	}
	s.recordUser(ctx, systemActor, u, "", action, details)
	return u, created, nil
}

// IsValidation reports whether err is a caller-facing input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
