package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"evidencevault/internal/db"
	"evidencevault/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrInUse is returned when a row cannot be removed because other rows
	// still reference it.
	ErrInUse = errors.New("in use")
)

type Store struct {
	conn    *sql.DB
	dialect db.Dialect
}

func New(conn *sql.DB, dialect db.Dialect) *Store {
	if dialect == "" {
		dialect = db.DialectSQLite
	}
	return &Store{conn: conn, dialect: dialect}
}

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

const userColumns = `id,name,email,password_hash,role,badge_number,status,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var badge sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &badge, &u.Status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return models.User{}, err
	}
	u.BadgeNumber = nullStringPtr(badge)
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Status == "" {
		u.Status = models.UserActive
	}
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.conn.ExecContext(ctx, s.q(
		`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?)`),
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.BadgeNumber, u.Status, u.CreatedAt, u.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return models.User{}, ErrConflict
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// CreateFirstAdmin inserts an admin only when the users table is empty. It
// reports whether a row was written.
func (s *Store) CreateFirstAdmin(ctx context.Context, name, email, passwordHash string) (bool, error) {
	created := false
	err := db.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		now := time.Now().UTC()
		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?)`),
			uuid.NewString(), name, strings.ToLower(strings.TrimSpace(email)), passwordHash, models.RoleAdmin, nil, models.UserActive, now, now,
		)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// EnsureAdmin creates the account if the email is unknown, otherwise promotes
// it to an active admin with the given password hash.
func (s *Store) EnsureAdmin(ctx context.Context, name, email, passwordHash string) (models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return models.User{}, false, fmt.Errorf("admin email and password are required")
	}
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		created, err := s.CreateUser(ctx, models.User{
			Name:         name,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         models.RoleAdmin,
			Status:       models.UserActive,
		})
		return created, true, err
	}
	if err != nil {
		return models.User{}, false, err
	}
	now := time.Now().UTC()
	_, err = s.conn.ExecContext(ctx, s.q(
		`UPDATE users SET role=?, status=?, password_hash=?, updated_at=? WHERE id=?`),
		models.RoleAdmin, models.UserActive, passwordHash, now, u.ID,
	)
	if err != nil {
		return models.User{}, false, err
	}
	u.Role, u.Status, u.PasswordHash, u.UpdatedAt = models.RoleAdmin, models.UserActive, passwordHash, now
	return u, false, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx, s.q(
		`SELECT `+userColumns+` FROM users WHERE email=?`),
		strings.ToLower(strings.TrimSpace(email)),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// EmailTaken reports whether another account already uses email.
func (s *Store) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, s.q(
		`SELECT COUNT(1) FROM users WHERE email=? AND id<>?`),
		strings.ToLower(strings.TrimSpace(email)), exceptID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns accounts newest first. An empty status lists all.
func (s *Store) ListUsers(ctx context.Context, status models.UserStatus) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.conn.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateUser writes the mutable profile fields of u.
func (s *Store) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	u.UpdatedAt = time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	res, err := s.conn.ExecContext(ctx, s.q(
		`UPDATE users SET name=?, email=?, role=?, badge_number=?, status=?, updated_at=? WHERE id=?`),
		u.Name, u.Email, u.Role, u.BadgeNumber, u.Status, u.UpdatedAt, u.ID,
	)
	if db.IsUniqueViolation(err) {
		return models.User{}, ErrConflict
	}
	if err != nil {
		return models.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateUserPasswordHash(ctx context.Context, userID, passwordHash string) error {
	res, err := s.conn.ExecContext(ctx, s.q(
		`UPDATE users SET password_hash=?, updated_at=? WHERE id=?`),
		passwordHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the account row. Accounts that still own evidence are
// kept and ErrInUse is returned.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return db.WithTx(ctx, s.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		var owned int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM evidence WHERE officer_id=?`), userID).Scan(&owned); err != nil {
			return err
		}
		if owned > 0 {
			return ErrInUse
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM users WHERE id=?`), userID)
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
