package face

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"facescan-backend/internal/facematch"
	"facescan-backend/internal/platform/db"
)

type FaceStore interface {
	// RefsByUserULID: ユーザの参照ベクトル一式。行が無ければ空の RefSet。
	RefsByUserULID(ctx context.Context, userULID string) (RefSet, error)
	// ResolveStudent: 学籍番号 → user_ulid。見つからなければ ""。
	ResolveStudent(ctx context.Context, studentNumber string) (string, error)
	// ReplaceRefs: ユーザの参照を丸ごと差し替え、users.face_scanned を立てる。
	ReplaceRefs(ctx context.Context, userULID string, refs map[string]facematch.Descriptor) error
	InsertScanLog(ctx context.Context, l *ScanLog) error
	ListScanLogs(ctx context.Context, limit, offset int) ([]ScanLog, error)
}

type Store struct{ sql *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{sql: conn} }

func (s *Store) RefsByUserULID(ctx context.Context, userULID string) (RefSet, error) {
	rows, err := s.sql.QueryContext(ctx, `
	SELECT user_ulid, label, vector
	FROM face_profiles
	WHERE user_ulid = ?
	ORDER BY profile_id ASC`, userULID)
	if err != nil {
		return RefSet{}, err
	}
	defer rows.Close()

	var prs []profileRow
	for rows.Next() {
		var r profileRow
		if err := rows.Scan(&r.UserULID, &r.Label, &r.Vector); err != nil {
			return RefSet{}, err
		}
		prs = append(prs, r)
	}
	if err := rows.Err(); err != nil {
		return RefSet{}, err
	}
	return buildRefSet(prs), nil
}

func (s *Store) ResolveStudent(ctx context.Context, studentNumber string) (string, error) {
	var id string
	err := s.sql.QueryRowContext(ctx, `
	SELECT user_ulid FROM users WHERE student_number = ? LIMIT 1`, studentNumber).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReplaceRefs: 差し替えは DELETE → INSERT → face_scanned 更新を 1 Tx で行う
func (s *Store) ReplaceRefs(ctx context.Context, userULID string, refs map[string]facematch.Descriptor) error {
	return db.RunInTx(ctx, s.sql, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM face_profiles WHERE user_ulid = ?`, userULID); err != nil {
			return err
		}
		for label, vec := range refs {
			raw, err := json.Marshal(vec)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
	INSERT INTO face_profiles (user_ulid, label, vector, created_at)
	VALUES (?, ?, ?, UTC_TIMESTAMP(6))`, userULID, label, raw); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE users SET face_scanned = 1 WHERE user_ulid = ?`, userULID)
		return err
	})
}

func (s *Store) InsertScanLog(ctx context.Context, l *ScanLog) error {
	_, err := s.sql.ExecContext(ctx, `
	INSERT INTO face_scan_logs (log_ulid, user_ulid, session_ulid, matched, distance, best_ref, threshold, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.LogULID, l.UserULID, l.SessionULID, boolToInt(l.Matched),
		l.Distance, l.BestRef, l.Threshold, l.CreatedAt.UTC())
	return err
}

func (s *Store) ListScanLogs(ctx context.Context, limit, offset int) ([]ScanLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.sql.QueryContext(ctx, `
	SELECT log_ulid, user_ulid, session_ulid, matched, distance, best_ref, threshold, created_at
	FROM face_scan_logs
	ORDER BY created_at DESC, log_ulid DESC
	LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScanLog
	for rows.Next() {
		var l ScanLog
		var matched int
		var createdAt time.Time
		if err := rows.Scan(&l.LogULID, &l.UserULID, &l.SessionULID, &matched,
			&l.Distance, &l.BestRef, &l.Threshold, &createdAt); err != nil {
			return nil, err
		}
		l.Matched = matched != 0
		l.CreatedAt = createdAt.UTC()
		out = append(out, l)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
