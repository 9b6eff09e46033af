package auth

import (
	"context"
	"database/sql"
	"errors"
)

type User struct {
	UserULID      string
	StudentNumber *string // 学生のみ。teacher/admin は NULL
	Username      string
	FullName      string
	Email         string
	PasswordHash  string
	Role          string
	FaceScanned   bool
	CreatedAt     string
}

type UserStore interface {
	// GetByLoginKey: username / student_number / email のいずれか一致で引く
	GetByLoginKey(ctx context.Context, key string) (*User, error)
	// GetByUsername: username のみで引く（重複チェック用。email 等は見ない）
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByULID(ctx context.Context, id string) (*User, error)
	GetByStudentNumber(ctx context.Context, studentNumber string) (*User, error)
	Create(ctx context.Context, u *User) error
	// SetCredentials: 名簿取込済みの行に username / password_hash を付ける（自己登録）
	SetCredentials(ctx context.Context, id, username, passwordHash string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
	List(ctx context.Context, role string, limit, offset int) ([]User, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) UserStore {
	return &Store{db: db}
}

const userCols = `user_ulid, student_number, username, full_name, email, password_hash, role, face_scanned, created_at`

func scanUser(scan func(dest ...any) error) (*User, error) {
	var u User
	var faceScanned int
	err := scan(
		&u.UserULID, &u.StudentNumber, &u.Username, &u.FullName,
		&u.Email, &u.PasswordHash, &u.Role, &faceScanned, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.FaceScanned = faceScanned != 0
	return &u, nil
}

func (s *Store) GetByLoginKey(ctx context.Context, key string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+userCols+`
FROM users
WHERE username = ? OR student_number = ? OR email = ?
LIMIT 1`, key, key, key)
	return scanUser(row.Scan)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+userCols+`
FROM users
WHERE username = ?
LIMIT 1`, username)
	return scanUser(row.Scan)
}

func (s *Store) GetByULID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+userCols+`
FROM users
WHERE user_ulid = ?
LIMIT 1`, id)
	return scanUser(row.Scan)
}

func (s *Store) GetByStudentNumber(ctx context.Context, studentNumber string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+userCols+`
FROM users
WHERE student_number = ?
LIMIT 1`, studentNumber)
	return scanUser(row.Scan)
}

func (s *Store) Create(ctx context.Context, u *User) error {
	const q = `
INSERT INTO users (user_ulid, student_number, username, full_name, email, password_hash, role, face_scanned, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, NOW(6))
`
	_, err := s.db.ExecContext(ctx, q,
		u.UserULID, u.StudentNumber, u.Username, u.FullName, u.Email, u.PasswordHash, u.Role)
	return err
}

func (s *Store) SetCredentials(ctx context.Context, id, username, passwordHash string) (int64, error) {
	const q = `UPDATE users SET username = ?, password_hash = ? WHERE user_ulid = ?`
	res, err := s.db.ExecContext(ctx, q, username, passwordHash, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	const q = `DELETE FROM users WHERE user_ulid = ?`
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) List(ctx context.Context, role string, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := `SELECT ` + userCols + ` FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE role = ?`
		args = append(args, role)
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
