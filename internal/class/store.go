package class

import (
	"context"
	"database/sql"
	"errors"

	"facescan-backend/internal/platform/db"
)

type ClassStore interface {
	Create(ctx context.Context, c *Class, students []string) error
	GetByULID(ctx context.Context, id string) (*Class, error)
	List(ctx context.Context, limit, offset int) ([]Class, error)
	TeacherOf(ctx context.Context, classULID string) (string, error)
	AddStudents(ctx context.Context, classULID string, students []string) error
	RemoveStudent(ctx context.Context, classULID, userULID string) (int64, error)
	Roster(ctx context.Context, classULID string) ([]RosterEntry, error)
	IsEnrolled(ctx context.Context, classULID, userULID string) (bool, error)
	// Delete: クラス削除。session はクラス削除のカスケードでのみ消える。
	Delete(ctx context.Context, classULID string) (int64, error)
}

type Store struct{ sql *sql.DB }

func NewStore(conn *sql.DB) *Store { return &Store{sql: conn} }

func (s *Store) Create(ctx context.Context, c *Class, students []string) error {
	return db.RunInTx(ctx, s.sql, nil, func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `
	INSERT INTO classes (class_ulid, course_code, course_name, section, teacher_ulid, created_at)
	VALUES (?, ?, ?, ?, ?, UTC_TIMESTAMP(6))`,
			c.ClassULID, c.CourseCode, c.CourseName, c.Section, c.TeacherULID)
		if err != nil {
			return err
		}
		return insertStudentsTx(ctx, tx, c.ClassULID, students)
	})
}

func insertStudentsTx(ctx context.Context, tx db.DBTX, classULID string, students []string) error {
	for _, uid := range students {
		// 再取込時の重複は黙って無視する
		if _, err := tx.ExecContext(ctx, `
	INSERT IGNORE INTO class_students (class_ulid, user_ulid)
	VALUES (?, ?)`, classULID, uid); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetByULID(ctx context.Context, id string) (*Class, error) {
	row := s.sql.QueryRowContext(ctx, `
	SELECT class_ulid, course_code, course_name, section, teacher_ulid, created_at
	FROM classes
	WHERE class_ulid = ?
	LIMIT 1`, id)

	var c Class
	err := row.Scan(&c.ClassULID, &c.CourseCode, &c.CourseName, &c.Section, &c.TeacherULID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]Class, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.sql.QueryContext(ctx, `
	SELECT class_ulid, course_code, course_name, section, teacher_ulid, created_at
	FROM classes
	ORDER BY course_code ASC, section ASC
	LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Class
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ClassULID, &c.CourseCode, &c.CourseName, &c.Section, &c.TeacherULID, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) TeacherOf(ctx context.Context, classULID string) (string, error) {
	var id string
	err := s.sql.QueryRowContext(ctx, `
	SELECT teacher_ulid FROM classes WHERE class_ulid = ? LIMIT 1`, classULID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) AddStudents(ctx context.Context, classULID string, students []string) error {
	return db.RunInTx(ctx, s.sql, nil, func(ctx context.Context, tx db.DBTX) error {
		return insertStudentsTx(ctx, tx, classULID, students)
	})
}

func (s *Store) RemoveStudent(ctx context.Context, classULID, userULID string) (int64, error) {
	res, err := s.sql.ExecContext(ctx, `
	DELETE FROM class_students WHERE class_ulid = ? AND user_ulid = ?`, classULID, userULID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Roster(ctx context.Context, classULID string) ([]RosterEntry, error) {
	rows, err := s.sql.QueryContext(ctx, `
	SELECT u.user_ulid, u.student_number, u.full_name
	FROM class_students cs
	JOIN users u ON u.user_ulid = cs.user_ulid
	WHERE cs.class_ulid = ?
	ORDER BY u.student_number ASC`, classULID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.UserULID, &e.StudentNumber, &e.FullName); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) IsEnrolled(ctx context.Context, classULID, userULID string) (bool, error) {
	var one int
	err := s.sql.QueryRowContext(ctx, `
	SELECT 1 FROM class_students WHERE class_ulid = ? AND user_ulid = ? LIMIT 1`,
		classULID, userULID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete: 名簿・session・出席をまとめて消す。session を単独で消す口は無い。
func (s *Store) Delete(ctx context.Context, classULID string) (int64, error) {
	var affected int64
	err := db.RunInTx(ctx, s.sql, nil, func(ctx context.Context, tx db.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
	DELETE a FROM attendances a
	JOIN checkin_sessions s ON s.session_ulid = a.session_ulid
	WHERE s.class_ulid = ?`, classULID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM checkin_sessions WHERE class_ulid = ?`, classULID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_students WHERE class_ulid = ?`, classULID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM classes WHERE class_ulid = ?`, classULID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
