package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAuthFailed     = errors.New("authentication failed")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNotFound       = errors.New("not found")
	ErrRosterMismatch = errors.New("roster mismatch")
)

type Service struct {
	store  UserStore
	secret []byte
	ttl    time.Duration
}

func NewService(db *sql.DB, secret []byte, ttl time.Duration) *Service {
	return &Service{store: NewStore(db), secret: secret, ttl: ttl}
}

func NewServiceWith(store UserStore, secret []byte, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl}
}

func (s *Service) Secret() []byte { return s.secret }

// 学籍番号の区切りハイフンを除去（xx-xxxxxx-xxxx-x → 数字列）
func stripDashes(v string) string {
	return strings.ReplaceAll(strings.TrimSpace(v), "-", "")
}

// Login: username / 学籍番号 / email のどれでも引けるが、
// 役割ごとに使ってよいキーを制限する（旧システムの規約を踏襲）。
//   - student: 学籍番号（ハイフン無し）
//   - teacher: email
//   - admin:   username または学籍番号
func (s *Service) Login(ctx context.Context, key, password string) (string, *User, error) {
	key = strings.TrimSpace(key)
	user, err := s.store.GetByLoginKey(ctx, key)
	if err != nil {
		return "", nil, err
	}
	if user == nil {
		return "", nil, ErrAuthFailed
	}

	switch user.Role {
	case RoleStudent:
		if user.StudentNumber == nil || stripDashes(*user.StudentNumber) != stripDashes(key) {
			return "", nil, ErrAuthFailed
		}
	case RoleTeacher:
		if user.Email != key {
			return "", nil, ErrAuthFailed
		}
	case RoleAdmin:
		if user.Username != key && (user.StudentNumber == nil || stripDashes(*user.StudentNumber) != stripDashes(key)) {
			return "", nil, ErrAuthFailed
		}
	}

	if user.PasswordHash == "" {
		return "", nil, ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthFailed
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.UserULID,
		"role": user.Role,
		"exp":  time.Now().Add(s.ttl).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, user, nil
}

// Activate: 名簿取込で作られた学生行に credentials を付ける自己登録。
// 学籍番号と氏名の両方が既存行に一致しないと通さない。
// 初期パスワードはハイフン無し学籍番号（旧システムの運用のまま）。
func (s *Service) Activate(ctx context.Context, studentNumber, fullName string) (username, password string, err error) {
	user, err := s.store.GetByStudentNumber(ctx, strings.TrimSpace(studentNumber))
	if err != nil {
		return "", "", err
	}
	if user == nil {
		return "", "", ErrNotFound
	}
	if user.FullName != strings.TrimSpace(fullName) {
		return "", "", ErrRosterMismatch
	}

	stripped := stripDashes(studentNumber)
	hash, err := bcrypt.GenerateFromPassword([]byte(stripped), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	n, err := s.store.SetCredentials(ctx, user.UserULID, stripped, string(hash))
	if err != nil {
		return "", "", err
	}
	if n == 0 {
		return "", "", ErrNotFound
	}
	return stripped, stripped, nil
}

// CreateUser: admin 用。teacher/admin アカウントや名簿外の学生追加に使う。
// 重複チェックは username 単独（uq_users_username に対応）。login キーで引くと
// 他人の email と同名なだけで弾いてしまう。
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	exists, err := s.store.GetByUsername(ctx, u.Username)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if u.UserULID == "" {
		u.UserULID = ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
	}
	return s.store.Create(ctx, u)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.store.GetByULID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]User, error) {
	return s.store.List(ctx, role, limit, offset)
}
