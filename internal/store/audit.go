package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"evidencevault/internal/models"
)

// The audit tables are append-only. Nothing in this package updates or
// deletes their rows.

func (s *Store) AppendUserLog(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error) {
	e.ID = uuid.NewString()
	e.Scope = models.ScopeUser
	e.EvidenceID = nil
	e.CreatedAt = time.Now().UTC()
	_, err := s.conn.ExecContext(ctx, s.q(
		`INSERT INTO user_logs(id,actor_id,user_id,user_name,user_email,user_role,action,details,ip_address,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		e.ID, e.ActorID, e.UserID, e.UserName, e.UserEmail, e.UserRole, e.Action, e.Details, e.IPAddress, e.CreatedAt,
	)
	if err != nil {
		return models.AuditEntry{}, err
	}
	return e, nil
}

func (s *Store) AppendEvidenceLog(ctx context.Context, e models.AuditEntry) (models.AuditEntry, error) {
	if e.EvidenceID == nil || *e.EvidenceID == "" {
		return models.AuditEntry{}, fmt.Errorf("evidence log requires an evidence id")
	}
	e.ID = uuid.NewString()
	e.Scope = models.ScopeEvidence
	e.UserID = e.ActorID
	e.CreatedAt = time.Now().UTC()
	_, err := s.conn.ExecContext(ctx, s.q(
		`INSERT INTO evidence_logs(id,evidence_id,user_id,user_name,user_email,user_role,action,details,ip_address,created_at) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		e.ID, *e.EvidenceID, e.ActorID, e.UserName, e.UserEmail, e.UserRole, e.Action, e.Details, e.IPAddress, e.CreatedAt,
	)
	if err != nil {
		return models.AuditEntry{}, err
	}
	return e, nil
}

// ListEvidenceLogs returns the action history of one record, newest first.
func (s *Store) ListEvidenceLogs(ctx context.Context, evidenceID string) ([]models.AuditEntry, error) {
	rows, err := s.conn.QueryContext(ctx, s.q(
		`SELECT id,user_id,user_name,user_email,user_role,evidence_id,action,details,ip_address,created_at
FROM evidence_logs WHERE evidence_id=? ORDER BY created_at DESC`), evidenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		e := models.AuditEntry{Scope: models.ScopeEvidence}
		var evID string
		if err := rows.Scan(&e.ID, &e.UserID, &e.UserName, &e.UserEmail, &e.UserRole, &evID, &e.Action, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorID = e.UserID
		e.EvidenceID = &evID
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAudit merges the user and evidence trails into one listing, newest
// first, and returns the total number of matching rows.
func (s *Store) ListAudit(ctx context.Context, query models.AuditQuery) ([]models.AuditEntry, int, error) {
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	type branch struct {
		sel   string
		count string
		where []string
		args  []any
	}
	var branches []branch
	if query.Scope == "" || query.Scope == models.ScopeUser {
		branches = append(branches, branch{
			sel:   `SELECT id, 'user' AS scope, actor_id, user_id, user_name, user_email, user_role, NULL AS evidence_id, action, details, ip_address, created_at FROM user_logs`,
			count: `SELECT COUNT(1) FROM user_logs`,
		})
	}
	if query.Scope == "" || query.Scope == models.ScopeEvidence {
		branches = append(branches, branch{
			sel:   `SELECT id, 'evidence' AS scope, user_id, user_id, user_name, user_email, user_role, evidence_id, action, details, ip_address, created_at FROM evidence_logs`,
			count: `SELECT COUNT(1) FROM evidence_logs`,
		})
	}
	if len(branches) == 0 {
		return []models.AuditEntry{}, 0, nil
	}

	total := 0
	parts := make([]string, 0, len(branches))
	var args []any
	for _, b := range branches {
		if query.Action != "" {
			b.where = append(b.where, "action=?")
			b.args = append(b.args, query.Action)
		}
		if query.UserID != "" {
			b.where = append(b.where, "user_id=?")
			b.args = append(b.args, query.UserID)
		}
		cond := ""
		if len(b.where) > 0 {
			cond = " WHERE " + strings.Join(b.where, " AND ")
		}
		var n int
		if err := s.conn.QueryRowContext(ctx, s.q(b.count+cond), b.args...).Scan(&n); err != nil {
			return nil, 0, err
		}
		total += n
		parts = append(parts, b.sel+cond)
		args = append(args, b.args...)
	}

	full := strings.Join(parts, " UNION ALL ") + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, query.Limit, query.Offset)
	rows, err := s.conn.QueryContext(ctx, s.q(full), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0, query.Limit)
	for rows.Next() {
		var e models.AuditEntry
		var evID sql.NullString
		var created any
		if err := rows.Scan(&e.ID, &e.Scope, &e.ActorID, &e.UserID, &e.UserName, &e.UserEmail, &e.UserRole, &evID, &e.Action, &e.Details, &e.IPAddress, &created); err != nil {
			return nil, 0, err
		}
		e.EvidenceID = nullStringPtr(evID)
		t, err := timeValue(created)
		if err != nil {
			return nil, 0, err
		}
		e.CreatedAt = t
		out = append(out, e)
	}
	return out, total, rows.Err()
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// timeValue converts a timestamp read from an expression column. SQLite loses
// the declared column type across UNION and hands back text.
func timeValue(v any) (time.Time, error) {
	switch tv := v.(type) {
	case time.Time:
		return tv.UTC(), nil
	case []byte:
		return parseTimeText(string(tv))
	case string:
		return parseTimeText(tv)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp value %T", v)
	}
}

func parseTimeText(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Stats gathers the admin dashboard counters. Evidence created at or after
// since counts as recent.
func (s *Store) Stats(ctx context.Context, since time.Time) (models.Stats, error) {
	var st models.Stats
	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&st.Users.Active, `SELECT COUNT(1) FROM users WHERE status=?`, []any{models.UserActive}},
		{&st.Evidence.Total, `SELECT COUNT(1) FROM evidence WHERE status<>?`, []any{models.EvidenceDeleted}},
		{&st.Evidence.Encrypted, `SELECT COUNT(1) FROM evidence WHERE status<>? AND encrypted=?`, []any{models.EvidenceDeleted, true}},
		{&st.Evidence.Recent, `SELECT COUNT(1) FROM evidence WHERE status<>? AND created_at>=?`, []any{models.EvidenceDeleted, since.UTC()}},
		{&st.Logs.User, `SELECT COUNT(1) FROM user_logs`, nil},
		{&st.Logs.Evidence, `SELECT COUNT(1) FROM evidence_logs`, nil},
	}
	for _, c := range counters {
		if err := s.conn.QueryRowContext(ctx, s.q(c.query), c.args...).Scan(c.dst); err != nil {
			return models.Stats{}, err
		}
	}
	st.Logs.Total = st.Logs.User + st.Logs.Evidence
	return st, nil
}
