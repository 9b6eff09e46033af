package attendance

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type AttendanceStore interface {
	// Upsert: UNIQUE(session_ulid, user_ulid)。既存行があれば触らず返す
	// （最初の打刻が正）。created は新規挿入されたかどうか。
	Upsert(ctx context.Context, a *Attendance) (Attendance, bool, error)
	List(ctx context.Context, q ListQuery) ([]Attendance, int64, error)
	StatsByClass(ctx context.Context, classULID string, limit int) ([]StatsRow, error)
	ExportByClass(ctx context.Context, classULID string) ([]ExportRow, error)
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Upsert(ctx context.Context, a *Attendance) (Attendance, bool, error) {
	// INSERT IGNORE:
	// - 新規: RowsAffected = 1
	// - 既存: RowsAffected = 0（上書きしない）
	res, err := s.db.ExecContext(ctx, `
	INSERT IGNORE INTO attendances (session_ulid, class_ulid, user_ulid, clocked_at, distance, best_ref)
	VALUES (?, ?, ?, ?, ?, ?)`,
		a.SessionULID, a.ClassULID, a.UserULID, a.ClockedAt.UTC(), a.Distance, a.BestRef)
	if err != nil {
		return Attendance{}, false, err
	}
	aff, _ := res.RowsAffected()
	created := aff == 1

	// 確定行を UNIQUE キーで取り直す
	row := s.db.QueryRowContext(ctx, `
	SELECT attendance_id, session_ulid, class_ulid, user_ulid, clocked_at, distance, best_ref
	FROM attendances
	WHERE session_ulid = ? AND user_ulid = ?`,
		a.SessionULID, a.UserULID)

	var r attendanceRow
	if err := row.Scan(&r.AttendanceID, &r.SessionULID, &r.ClassULID, &r.UserULID,
		&r.ClockedAt, &r.Distance, &r.BestRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attendance{}, created, ErrInternal("inserted but not found")
		}
		return Attendance{}, created, err
	}
	return r.toModel(), created, nil
}

// List: 条件に応じて動的WHERE + LIMIT/OFFSET（attendance の歴史的形のまま）
func (s *Store) List(ctx context.Context, q ListQuery) ([]Attendance, int64, error) {
	var (
		buf    bytes.Buffer
		args   []any
		wheres []string
	)

	buf.WriteString(`
	SELECT attendance_id, session_ulid, class_ulid, user_ulid, clocked_at, distance, best_ref
	FROM attendances
	`)
	if q.SessionULID != nil && *q.SessionULID != "" {
		wheres = append(wheres, "session_ulid = ?")
		args = append(args, *q.SessionULID)
	}
	if q.ClassULID != nil && *q.ClassULID != "" {
		wheres = append(wheres, "class_ulid = ?")
		args = append(args, *q.ClassULID)
	}
	if q.UserULID != nil && *q.UserULID != "" {
		wheres = append(wheres, "user_ulid = ?")
		args = append(args, *q.UserULID)
	}
	if len(wheres) > 0 {
		buf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	buf.WriteString(" ORDER BY clocked_at DESC, attendance_id DESC")

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	buf.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, q.Offset))

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Attendance
	for rows.Next() {
		var r attendanceRow
		if err := rows.Scan(&r.AttendanceID, &r.SessionULID, &r.ClassULID, &r.UserULID,
			&r.ClockedAt, &r.Distance, &r.BestRef); err != nil {
			return nil, 0, err
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// COUNT（WHERE までを再構築）
	var cntBuf bytes.Buffer
	cntBuf.WriteString("SELECT COUNT(*) FROM attendances")
	if len(wheres) > 0 {
		cntBuf.WriteString(" WHERE " + strings.Join(wheres, " AND "))
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, cntBuf.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StatsByClass: クラス内の出席回数をユーザ別合計（TOP N）
func (s *Store) StatsByClass(ctx context.Context, classULID string, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT user_ulid, COUNT(*) AS cnt
	FROM attendances
	WHERE class_ulid = ?
	GROUP BY user_ulid
	ORDER BY cnt DESC, user_ulid ASC
	LIMIT ?`, classULID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var row StatsRow
		if err := rows.Scan(&row.UserULID, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) ExportByClass(ctx context.Context, classULID string) ([]ExportRow, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT COALESCE(u.student_number, ''), u.full_name, a.session_ulid, cs.open_at, a.clocked_at, a.distance
	FROM attendances a
	JOIN users u ON u.user_ulid = a.user_ulid
	JOIN checkin_sessions cs ON cs.session_ulid = a.session_ulid
	WHERE a.class_ulid = ?
	ORDER BY cs.open_at ASC, u.student_number ASC`, classULID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExportRow
	for rows.Next() {
		var r ExportRow
		var openAt, clockedAt time.Time
		if err := rows.Scan(&r.StudentNumber, &r.FullName, &r.SessionULID, &openAt, &clockedAt, &r.Distance); err != nil {
			return nil, err
		}
		r.OpenAt = openAt.UTC()
		r.ClockedAt = clockedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
