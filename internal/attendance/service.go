package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"facescan-backend/internal/checkin"
	"facescan-backend/internal/face"
	"facescan-backend/internal/facematch"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// session 窓の検証。checkin.Service が実装。
type SessionGate interface {
	RequireOpen(ctx context.Context, sessionULID string) (*checkin.Session, error)
}

// 顔照合。face.Service が実装。
type FaceVerifier interface {
	VerifyUser(ctx context.Context, userULID string, vec facematch.Descriptor, sessionULID *string) (facematch.Decision, error)
}

// 在籍確認。class.Service が実装。
type Enrollment interface {
	IsEnrolled(ctx context.Context, classULID, userULID string) (bool, error)
}

// ===== Service本体 =====

type Service struct {
	store    AttendanceStore
	sessions SessionGate
	faces    FaceVerifier
	roster   Enrollment
	clock    Clock
}

func NewService(conn *sql.DB, sessions SessionGate, faces FaceVerifier, roster Enrollment) *Service {
	return &Service{
		store:    NewStore(conn),
		sessions: sessions,
		faces:    faces,
		roster:   roster,
		clock:    realClock{},
	}
}

// テスト用（store/clock を差し替える）
func NewServiceWith(store AttendanceStore, sessions SessionGate, faces FaceVerifier, roster Enrollment, clock Clock) *Service {
	return &Service{store: store, sessions: sessions, faces: faces, roster: roster, clock: clock}
}

// POST /attendances/checkin
// 順序が重要: session 窓 → 在籍 → 顔照合。どれか一つでも落ちたら
// attendance 行は書かない（Match のみが書き込みを許す）。
func (s *Service) CheckIn(ctx context.Context, userULID string, req CheckinRequest) (*CheckinResponse, error) {
	if req.SessionULID == "" {
		return nil, ErrInvalid("session_id is required")
	}
	if len(req.FaceVector) == 0 {
		return nil, ErrInvalid("face_vector is required")
	}

	sess, err := s.sessions.RequireOpen(ctx, req.SessionULID)
	if err != nil {
		return nil, translateCheckinErr(err)
	}

	ok, err := s.roster.IsEnrolled(ctx, sess.ClassULID, userULID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden("not enrolled in this class")
	}

	sid := sess.SessionULID
	d, err := s.faces.VerifyUser(ctx, userULID, facematch.Descriptor(req.FaceVector), &sid)
	if err != nil {
		return nil, translateFaceErr(err)
	}
	if !d.Match {
		return nil, ErrFaceMismatch("face did not match enrolled references")
	}

	rec := Attendance{
		SessionULID: sess.SessionULID,
		ClassULID:   sess.ClassULID,
		UserULID:    userULID,
		ClockedAt:   s.clock.Now(),
		Distance:    d.Distance,
		BestRef:     d.BestRef,
	}
	stored, created, err := s.store.Upsert(ctx, &rec)
	if err != nil {
		return nil, err
	}
	return &CheckinResponse{Attendance: stored.toDTO(), Created: created}, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]AttendanceResponse, int64, error) {
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AttendanceResponse, 0, len(items))
	for _, a := range items {
		out = append(out, a.toDTO())
	}
	return out, total, nil
}

func (s *Service) StatsByClass(ctx context.Context, classULID string, limit int) ([]StatsRow, error) {
	if classULID == "" {
		return nil, ErrInvalid("class_id is required")
	}
	return s.store.StatsByClass(ctx, classULID, limit)
}

func (s *Service) ExportByClass(ctx context.Context, classULID string) ([]ExportRow, error) {
	if classULID == "" {
		return nil, ErrInvalid("class_id is required")
	}
	return s.store.ExportByClass(ctx, classULID)
}

// ===== 下流エラーの翻訳 =====
// code 文字列は下流と同一なので、そのまま載せ替える。

func translateCheckinErr(err error) error {
	var api *checkin.APIError
	if errors.As(err, &api) {
		return &APIError{Code: Code(api.Code), Message: api.Message}
	}
	return err
}

func translateFaceErr(err error) error {
	var api *face.APIError
	if errors.As(err, &api) {
		return &APIError{Code: Code(api.Code), Message: api.Message}
	}
	return err
}
