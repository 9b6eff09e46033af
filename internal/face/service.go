package face

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"facescan-backend/internal/facematch"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// TeacherResolver: classId → 担当教員。class パッケージが実装する。
type TeacherResolver interface {
	TeacherOf(ctx context.Context, classULID string) (string, error)
}

type Config struct {
	Threshold float64 // 一致とみなす最大距離（既定 0.4）
}

// ===== Service本体 =====

type Service struct {
	store   FaceStore
	encoder Encoder
	classes TeacherResolver
	cfg     Config
	clock   Clock
	id      IDGen
}

func NewService(conn *sql.DB, encoder Encoder, classes TeacherResolver, cfg Config) *Service {
	return &Service{
		store:   NewStore(conn),
		encoder: encoder,
		classes: classes,
		cfg:     cfg,
		clock:   realClock{},
		id:      ulidGen{},
	}
}

// テスト用
func NewServiceWith(store FaceStore, encoder Encoder, classes TeacherResolver, cfg Config, clock Clock, id IDGen) *Service {
	return &Service{store: store, encoder: encoder, classes: classes, cfg: cfg, clock: clock, id: id}
}

// decide: facematch のエラーを API エラーに写す共通処理
func (s *Service) decide(refs []facematch.RefVector, cand facematch.Descriptor) (facematch.Decision, error) {
	d, err := facematch.Decide(refs, cand, s.cfg.Threshold)
	switch {
	case errors.Is(err, facematch.ErrInvalidDescriptor):
		// 形が悪いのは「撮り直し」であって「不一致」ではない
		return facematch.Decision{}, ErrInvalid("face vector must be 128 finite numbers")
	case errors.Is(err, facematch.ErrNoReference):
		return facematch.Decision{}, ErrNoReference("no reference vectors for this user")
	case err != nil:
		return facematch.Decision{}, err
	}
	return d, nil
}

// VerifyStudentVector: 学籍番号で対象を引き、全参照と突き合わせる。
func (s *Service) VerifyStudentVector(ctx context.Context, req VerifyVectorRequest) (*VerifyResponse, error) {
	studentNumber := strings.TrimSpace(req.StudentNumber)
	if studentNumber == "" {
		return nil, ErrInvalid("student_id is required")
	}

	userULID, err := s.store.ResolveStudent(ctx, studentNumber)
	if err != nil {
		return nil, err
	}
	if userULID == "" {
		return nil, ErrNotFound("user not found")
	}

	d, err := s.verifyUser(ctx, userULID, facematch.Descriptor(req.FaceVector), req.SessionULID)
	if err != nil {
		return nil, err
	}

	return &VerifyResponse{
		OK:            true,
		Match:         d.Match,
		Distance:      d.Distance,
		Threshold:     d.Threshold,
		BestRef:       d.BestRef,
		AllDistances:  d.AllDistances,
		UserULID:      userULID,
		StudentNumber: studentNumber,
	}, nil
}

// VerifyByImage: 旧経路の互換。画像を外部エンコーダに投げ、返ってきた
// ベクトルを同じ照合ロジックに流す（別の判定方式ではない）。
func (s *Service) VerifyByImage(ctx context.Context, studentNumber, filename string, image []byte, sessionULID *string) (*VerifyResponse, error) {
	if len(image) == 0 {
		return nil, ErrInvalid("image is required")
	}
	vec, err := s.encoder.Encode(ctx, filename, image)
	if err != nil {
		return nil, err
	}
	return s.VerifyStudentVector(ctx, VerifyVectorRequest{
		StudentNumber: studentNumber,
		FaceVector:    vec,
		SessionULID:   sessionULID,
	})
}

// VerifyUser: user_ulid 直指定の照合。attendance の check-in gate が使う。
func (s *Service) VerifyUser(ctx context.Context, userULID string, vec facematch.Descriptor, sessionULID *string) (facematch.Decision, error) {
	return s.verifyUser(ctx, userULID, vec, sessionULID)
}

func (s *Service) verifyUser(ctx context.Context, userULID string, vec facematch.Descriptor, sessionULID *string) (facematch.Decision, error) {
	refs, err := s.store.RefsByUserULID(ctx, userULID)
	if err != nil {
		return facematch.Decision{}, err
	}

	d, err := s.decide(refs.Collect(), vec)
	if err != nil {
		return facematch.Decision{}, err
	}

	s.writeScanLog(ctx, userULID, sessionULID, d)
	return d, nil
}

// VerifyTeacherFace: session の with_teacher_face ゲート用。
// クラスの担当教員の参照と突き合わせる。
func (s *Service) VerifyTeacherFace(ctx context.Context, req TeacherVerifyRequest) (*VerifyResponse, error) {
	teacherULID, err := s.classes.TeacherOf(ctx, req.ClassULID)
	if err != nil {
		return nil, err
	}
	if teacherULID == "" {
		return nil, ErrNotFound("no teacher for this class")
	}

	d, err := s.verifyUser(ctx, teacherULID, facematch.Descriptor(req.FaceVector), nil)
	if err != nil {
		return nil, err
	}

	return &VerifyResponse{
		OK:           true,
		Match:        d.Match,
		Distance:     d.Distance,
		Threshold:    d.Threshold,
		BestRef:      d.BestRef,
		AllDistances: d.AllDistances,
		UserULID:     teacherULID,
	}, nil
}

// Enroll: 参照ベクトルの登録（丸ごと差し替え）。
// ラベルは centroid かポーズ名のみ。全ベクトル 128 次元で有限値であること。
func (s *Service) Enroll(ctx context.Context, userULID string, req EnrollRequest) error {
	if len(req.Refs) == 0 {
		return ErrInvalid("refs must not be empty")
	}

	allowed := map[string]struct{}{"centroid": {}}
	for _, l := range facematch.PoseLabels {
		allowed[l] = struct{}{}
	}

	refs := make(map[string]facematch.Descriptor, len(req.Refs))
	for label, vec := range req.Refs {
		if _, ok := allowed[label]; !ok {
			return ErrInvalid("unknown ref label: " + label)
		}
		d := facematch.Descriptor(vec)
		if !facematch.IsWellFormed(d) {
			return ErrInvalid("ref " + label + " must be 128 finite numbers")
		}
		refs[label] = d
	}
	return s.store.ReplaceRefs(ctx, userULID, refs)
}

func (s *Service) ScanLogs(ctx context.Context, limit, offset int) ([]ScanLog, error) {
	return s.store.ListScanLogs(ctx, limit, offset)
}

// 監査ログは照合結果を変えない。書けなくても照合自体は成立させる。
func (s *Service) writeScanLog(ctx context.Context, userULID string, sessionULID *string, d facematch.Decision) {
	idStr, err := s.id.New()
	if err != nil {
		log.Printf("[WARN] scan log id generation failed: %v", err)
		return
	}
	l := &ScanLog{
		LogULID:     idStr,
		UserULID:    userULID,
		SessionULID: sessionULID,
		Matched:     d.Match,
		Distance:    d.Distance,
		BestRef:     d.BestRef,
		Threshold:   d.Threshold,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.InsertScanLog(ctx, l); err != nil {
		log.Printf("[WARN] scan log insert failed: %v", err)
	}
}
