package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"evidencevault/internal/models"
)

const evidenceSelect = `SELECT e.id,e.case_number,e.file_name,e.original_file_name,e.file_path,e.file_size,e.file_type,e.description,e.encrypted,e.officer_id,u.name,u.badge_number,e.status,e.created_at,e.updated_at
FROM evidence e LEFT JOIN users u ON u.id = e.officer_id`

func scanEvidence(row rowScanner) (models.Evidence, error) {
	var e models.Evidence
	var desc, officerName, badge sql.NullString
	err := row.Scan(&e.ID, &e.CaseNumber, &e.FileName, &e.OriginalFileName, &e.FilePath, &e.FileSize, &e.FileType,
		&desc, &e.Encrypted, &e.OfficerID, &officerName, &badge, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return models.Evidence{}, err
	}
	e.Description = nullStringPtr(desc)
	e.OfficerName = officerName.String
	e.OfficerBadge = nullStringPtr(badge)
	return e, nil
}

func (s *Store) CreateEvidence(ctx context.Context, e models.Evidence) (models.Evidence, error) {
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.Encrypted = false
	e.Status = models.EvidenceActive
	e.CreatedAt, e.UpdatedAt = now, now
	_, err := s.conn.ExecContext(ctx, s.q(
		`INSERT INTO evidence(id,case_number,file_name,original_file_name,file_path,file_size,file_type,description,encrypted,officer_id,status,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		e.ID, e.CaseNumber, e.FileName, e.OriginalFileName, e.FilePath, e.FileSize, e.FileType, e.Description,
		e.Encrypted, e.OfficerID, e.Status, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return models.Evidence{}, err
	}
	return e, nil
}

// GetEvidence returns the record in any status, deleted included.
func (s *Store) GetEvidence(ctx context.Context, id string) (models.Evidence, error) {
	e, err := scanEvidence(s.conn.QueryRowContext(ctx, s.q(evidenceSelect+` WHERE e.id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Evidence{}, ErrNotFound
	}
	return e, err
}

// ListEvidence returns non-deleted records newest first.
func (s *Store) ListEvidence(ctx context.Context, query models.EvidenceQuery) ([]models.Evidence, error) {
	q := evidenceSelect + ` WHERE e.status<>?`
	args := []any{models.EvidenceDeleted}
	if query.CaseNumber != "" {
		q += ` AND e.case_number=?`
		args = append(args, query.CaseNumber)
	}
	if query.OfficerID != "" {
		q += ` AND e.officer_id=?`
		args = append(args, query.OfficerID)
	}
	q += ` ORDER BY e.created_at DESC`
	rows, err := s.conn.QueryContext(ctx, s.q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Evidence{}
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEvidenceEncrypted flips the flag from !encrypted to encrypted on a live
// record. ErrNotFound means the record is absent or deleted; ErrConflict means
// the flag already had the requested value.
func (s *Store) SetEvidenceEncrypted(ctx context.Context, id string, encrypted bool) error {
	res, err := s.conn.ExecContext(ctx, s.q(
		`UPDATE evidence SET encrypted=?, updated_at=? WHERE id=? AND status<>? AND encrypted=?`),
		encrypted, time.Now().UTC(), id, models.EvidenceDeleted, !encrypted,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	e, err := s.GetEvidence(ctx, id)
	if err != nil {
		return err
	}
	if e.Status == models.EvidenceDeleted {
		return ErrNotFound
	}
	return ErrConflict
}

// SoftDeleteEvidence marks a live record deleted. The row is retained.
func (s *Store) SoftDeleteEvidence(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, s.q(
		`UPDATE evidence SET status=?, updated_at=? WHERE id=? AND status<>?`),
		models.EvidenceDeleted, time.Now().UTC(), id, models.EvidenceDeleted,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
