package checkin

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
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

// ===== 設定 =====

// グローバルを読まず、main から明示的に渡す（テストで固定値を入れるため）
type Config struct {
	DefaultRadiusMeters float64       // location 省略時の半径（既定 50m）
	WindowTolerance     time.Duration // 窓判定の前後猶予（既定 5s）
}

// ===== Service本体 =====

type Service struct {
	store SessionStore
	cfg   Config
	clock Clock
	id    IDGen
}

func NewService(conn *sql.DB, cfg Config) *Service {
	return &Service{
		store: NewStore(conn),
		cfg:   cfg,
		clock: realClock{},
		id:    ulidGen{},
	}
}

// テスト用（store/clock/id を差し替える）
func NewServiceWith(store SessionStore, cfg Config, clock Clock, id IDGen) *Service {
	return &Service{store: store, cfg: cfg, clock: clock, id: id}
}

// POST /checkin-sessions/open
// open_at < close_at を必須とする（旧版はこの検証を欠いたまま動いていた）。
// 同一クラスの active と窓が重なるなら作らない。
func (s *Service) Open(ctx context.Context, req OpenSessionRequest) (*SessionResponse, error) {
	if req.ClassULID == "" {
		return nil, ErrInvalid("class_id is required")
	}
	openAt, err := time.Parse(time.RFC3339, req.OpenAt)
	if err != nil {
		return nil, ErrInvalid("open_at must be RFC3339")
	}
	closeAt, err := time.Parse(time.RFC3339, req.CloseAt)
	if err != nil {
		return nil, ErrInvalid("close_at must be RFC3339")
	}
	openAt, closeAt = openAt.UTC(), closeAt.UTC()
	if !openAt.Before(closeAt) {
		return nil, ErrInvalid("open_at must be before close_at")
	}

	idStr, err := s.id.New()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		SessionULID:     idStr,
		ClassULID:       req.ClassULID,
		OpenAt:          openAt,
		CloseAt:         closeAt,
		Status:          StatusActive,
		WithTeacherFace: req.WithTeacherFace,
		WithMapPreview:  req.WithMapPreview,
		Location:        s.buildLocation(req.Location),
		CreatedAt:       s.clock.Now(),
	}

	if err := s.store.Create(ctx, sess); err != nil {
		if errors.Is(err, ErrWindowOverlap) {
			return nil, ErrConflict("an active session already overlaps this window")
		}
		return nil, err
	}

	dto := sess.toDTO()
	return &dto, nil
}

// PUT /checkin-sessions/cancel/:id
// 既に cancelled/expired のものは冪等に成功扱い（上書きはしない）。
func (s *Service) Cancel(ctx context.Context, id string) (*SessionResponse, error) {
	if id == "" {
		return nil, ErrInvalid("session id is required")
	}
	sess, err := s.store.GetByULID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound("session not found")
	}
	if sess.Status != StatusActive {
		dto := sess.toDTO()
		return &dto, nil
	}

	if _, err := s.store.Cancel(ctx, id); err != nil {
		return nil, err
	}
	sess.Status = StatusCancelled
	dto := sess.toDTO()
	return &dto, nil
}

// 掃除係と遅延判定の共通入口。status=active かつ close_at < now を expired にする。
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	return s.store.ExpireDue(ctx, now)
}

// GET /checkin-sessions/class/:class_id
// 窓を過ぎた active を見つけたらその場で expire してから「無し」を返す。
// 定期掃除の隙間で古い session を掴まされないための遅延判定。
func (s *Service) ActiveForClass(ctx context.Context, classULID string) (*SessionResponse, error) {
	if classULID == "" {
		return nil, ErrInvalid("class_id is required")
	}
	sess, err := s.store.ActiveByClass(ctx, classULID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	now := s.clock.Now()
	tol := s.cfg.WindowTolerance

	if now.After(sess.CloseAt.Add(tol)) {
		if _, err := s.store.ExpireByULID(ctx, sess.SessionULID, now); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if !sess.windowContains(now, tol) {
		// 窓がまだ開いていない
		return nil, nil
	}

	dto := sess.toDTO()
	return &dto, nil
}

// GET /checkin-sessions/current（副作用なしの純読み取り）
func (s *Service) ListActive(ctx context.Context) ([]SessionResponse, error) {
	now := s.clock.Now()
	tol := s.cfg.WindowTolerance
	sessions, err := s.store.ListActive(ctx, now.Add(tol), now.Add(-tol))
	if err != nil {
		return nil, err
	}
	out := make([]SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.toDTO())
	}
	return out, nil
}

// check-in 処理（attendance パッケージ）から使う窓検証。
// active かつ窓内の session のみ返し、過ぎていれば expire してから CONFLICT。
func (s *Service) RequireOpen(ctx context.Context, sessionULID string) (*Session, error) {
	sess, err := s.store.GetByULID(ctx, sessionULID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound("session not found")
	}

	now := s.clock.Now()
	tol := s.cfg.WindowTolerance

	if sess.Status == StatusActive && now.After(sess.CloseAt.Add(tol)) {
		if _, err := s.store.ExpireByULID(ctx, sess.SessionULID, now); err != nil {
			return nil, err
		}
		return nil, ErrConflict("session has expired")
	}
	if sess.Status != StatusActive {
		return nil, ErrConflict("session is " + string(sess.Status))
	}
	if !sess.windowContains(now, tol) {
		return nil, ErrConflict("session window is not open")
	}
	return sess, nil
}

func (s *Service) buildLocation(in *LocationDTO) Location {
	loc := Location{RadiusInMeters: s.cfg.DefaultRadiusMeters}
	if in == nil {
		return loc
	}
	loc.Latitude = in.Latitude
	loc.Longitude = in.Longitude
	loc.Name = in.Name
	if in.RadiusInMeters > 0 {
		loc.RadiusInMeters = in.RadiusInMeters
	}
	return loc
}
