package checkin

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"facescan-backend/internal/platform/db"
)

// 重複判定専用の番兵。Service 側で CONFLICT に変換する。
var ErrWindowOverlap = errors.New("overlapping active session window")

// SessionStore: Service から見た永続層。テストでは in-memory 実装に差し替える。
type SessionStore interface {
	// Create は同一クラスの active session との窓重複判定と INSERT を
	// 1 トランザクションで行う。重複時は ErrWindowOverlap。
	Create(ctx context.Context, s *Session) error
	GetByULID(ctx context.Context, id string) (*Session, error)
	// Cancel: active の行だけを cancelled にする条件付き更新。戻り値は更新行数。
	Cancel(ctx context.Context, id string) (int64, error)
	// ExpireDue: status=active かつ close_at < now を一括で expired にする。
	// 掃除係と遅延判定の両方がこの 1 操作を呼ぶ（冪等）。
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	// ExpireByULID: 単一 session 版の expire-if-due 条件付き更新。
	ExpireByULID(ctx context.Context, id string, now time.Time) (bool, error)
	ActiveByClass(ctx context.Context, classULID string) (*Session, error)
	// ListActive: open_at <= openBefore かつ close_at >= closeAfter の active を返す
	ListActive(ctx context.Context, openBefore, closeAfter time.Time) ([]Session, error)
}

type Store struct{ sql *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{sql: conn} }

const sessionCols = `session_ulid, class_ulid, open_at, close_at, status,
	with_teacher_face, with_map_preview, latitude, longitude, radius_in_meters, location_name, created_at`

func scanSession(scan func(dest ...any) error) (Session, error) {
	var r sessionRow
	err := scan(
		&r.SessionULID, &r.ClassULID, &r.OpenAt, &r.CloseAt, &r.Status,
		&r.WithTeacherFace, &r.WithMapPreview,
		&r.Latitude, &r.Longitude, &r.RadiusInMeters, &r.LocationName, &r.CreatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	return r.toModel(), nil
}

// Create: 重複チェック → INSERT を行ロック付き Tx で直列化する。
// チェックと書き込みの間に別リクエストが滑り込む競合をここで塞ぐ。
func (s *Store) Create(ctx context.Context, sess *Session) error {
	return db.Serialized(ctx, s.sql, func(ctx context.Context, tx db.DBTX) error {
		// 半開区間 [open, close) の標準的な重複判定
		row := tx.QueryRowContext(ctx, `
	SELECT session_ulid FROM checkin_sessions
	WHERE class_ulid = ? AND status = 'active'
	AND open_at < ? AND close_at > ?
	LIMIT 1
	FOR UPDATE`,
			sess.ClassULID, sess.CloseAt, sess.OpenAt,
		)
		var existing string
		err := row.Scan(&existing)
		if err == nil {
			return ErrWindowOverlap
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		_, err = tx.ExecContext(ctx, `
	INSERT INTO checkin_sessions
	(session_ulid, class_ulid, open_at, close_at, status,
	 with_teacher_face, with_map_preview, latitude, longitude, radius_in_meters, location_name, created_at)
	VALUES (?, ?, ?, ?, 'active', ?, ?, ?, ?, ?, ?, ?)`,
			sess.SessionULID, sess.ClassULID, sess.OpenAt, sess.CloseAt,
			boolToInt(sess.WithTeacherFace), boolToInt(sess.WithMapPreview),
			sess.Location.Latitude, sess.Location.Longitude,
			sess.Location.RadiusInMeters, sess.Location.Name,
			sess.CreatedAt,
		)
		return err
	})
}

func (s *Store) GetByULID(ctx context.Context, id string) (*Session, error) {
	row := s.sql.QueryRowContext(ctx, `
	SELECT `+sessionCols+`
	FROM checkin_sessions
	WHERE session_ulid = ?
	LIMIT 1`, id)

	sess, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) Cancel(ctx context.Context, id string) (int64, error) {
	res, err := s.sql.ExecContext(ctx, `
	UPDATE checkin_sessions
	SET status = 'cancelled'
	WHERE session_ulid = ? AND status = 'active'`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.sql.ExecContext(ctx, `
	UPDATE checkin_sessions
	SET status = 'expired'
	WHERE status = 'active' AND close_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ExpireByULID(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := s.sql.ExecContext(ctx, `
	UPDATE checkin_sessions
	SET status = 'expired'
	WHERE session_ulid = ? AND status = 'active' AND close_at < ?`, id, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ActiveByClass(ctx context.Context, classULID string) (*Session, error) {
	row := s.sql.QueryRowContext(ctx, `
	SELECT `+sessionCols+`
	FROM checkin_sessions
	WHERE class_ulid = ? AND status = 'active'
	ORDER BY open_at ASC
	LIMIT 1`, classULID)

	sess, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) ListActive(ctx context.Context, openBefore, closeAfter time.Time) ([]Session, error) {
	rows, err := s.sql.QueryContext(ctx, `
	SELECT `+sessionCols+`
	FROM checkin_sessions
	WHERE status = 'active' AND open_at <= ? AND close_at >= ?
	ORDER BY open_at ASC, session_ulid ASC`, openBefore.UTC(), closeAfter.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
