package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evidencevault/internal/auth"
	"evidencevault/internal/blob"
	"evidencevault/internal/config"
	"evidencevault/internal/logging"
	"evidencevault/internal/models"
	"evidencevault/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrTokenInvalid       = auth.ErrTokenInvalid
	ErrForbidden          = auth.ErrForbidden
	ErrNotFound           = errors.New("not found")
	ErrAlreadyEncrypted   = errors.New("evidence is already encrypted")
	ErrNotEncrypted       = errors.New("evidence is not encrypted")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")
	ErrUserOwnsEvidence   = errors.New("user still owns evidence records")
)

// ValidationError carries a message that is safe to show the caller.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuditAppender persists audit entries. *store.Store satisfies it.
type AuditAppender interface {
	AppendUserLog(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error)
	AppendEvidenceLog(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error)
}

type Options struct {
	// Audit overrides where audit entries go. Defaults to the store.
	Audit AuditAppender
	Now   func() time.Time
}

type Service struct {
	cfg    config.Config
	st     *store.Store
	blobs  blob.Store
	tokens *auth.TokenIssuer
	log    logging.Logger
	audit  AuditAppender
	now    func() time.Time
}

func New(cfg config.Config, st *store.Store, blobs blob.Store, tokens *auth.TokenIssuer, logger logging.Logger, opt Options) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{cfg: cfg, st: st, blobs: blobs, tokens: tokens, log: logger, audit: opt.Audit, now: opt.Now}
	if s.audit == nil {
		s.audit = st
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Ready reports whether the database answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.st.Ping(ctx)
}

// systemActor is recorded for changes made outside a request, such as the
// first-run bootstrap and the admin CLI.
var systemActor = models.Identity{UserID: "system", Name: "system"}

// recordUser appends a user-trail entry describing subject. A failed append
// is logged and swallowed: the mutation it describes has already committed.
func (s *Service) recordUser(ctx context.Context, actor models.Identity, subject models.User, ip, action, details string) {
	_, err := s.audit.AppendUserLog(ctx, models.AuditEntry{
		ActorID:   actor.UserID,
		UserID:    subject.ID,
		UserName:  subject.Name,
		UserEmail: subject.Email,
		UserRole:  subject.Role,
		Action:    action,
		Details:   details,
		IPAddress: ip,
	})
	if err != nil {
		s.log.Warn(ctx, "audit append failed", "scope", models.ScopeUser, "action", action, "actor", actor.UserID, "subject", subject.ID, "err", err)
	}
}

// recordEvidence appends to the action history of one evidence record, with
// the actor snapshot as the entry's user.
func (s *Service) recordEvidence(ctx context.Context, actor models.Identity, evidenceID, ip, action, details string) {
	_, err := s.audit.AppendEvidenceLog(ctx, models.AuditEntry{
		ActorID:    actor.UserID,
		UserName:   actor.Name,
		UserEmail:  actor.Email,
		UserRole:   actor.Role,
		EvidenceID: &evidenceID,
		Action:     action,
		Details:    details,
		IPAddress:  ip,
	})
	if err != nil {
		s.log.Warn(ctx, "audit append failed", "scope", models.ScopeEvidence, "action", action, "actor", actor.UserID, "evidence", evidenceID, "err", err)
	}
}

func (s *Service) ValidatePassword(pw string) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return invalid("password is required")
	}
	if len(pw) < s.cfg.PasswordMinLength {
		return invalid("password must be at least %d characters", s.cfg.PasswordMinLength)
	}
	if len(pw) > s.cfg.PasswordMaxLength {
		return invalid("password must be at most %d characters", s.cfg.PasswordMaxLength)
	}
	classes := 0
	if strings.IndexFunc(pw, func(r rune) bool { return r >= 'a' && r <= 'z' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool { return r >= 'A' && r <= 'Z' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0 {
		classes++
	}
	if strings.IndexFunc(pw, func(r rune) bool {
		return (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126)
	}) >= 0 {
		classes++
	}
	if classes < 3 {
		return invalid("password must include at least 3 character classes (lower/upper/number/symbol)")
	}
	return nil
}
