package attendance

import "time"

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// 学生の check-in リクエスト。face_vector は端末側でエンコード済み。
type CheckinRequest struct {
	SessionULID string    `json:"session_id" binding:"required"`
	FaceVector  []float64 `json:"face_vector" binding:"required"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
}

type AttendanceResponse struct {
	AttendanceID uint64    `json:"attendance_id"`
	SessionULID  string    `json:"session_id"`
	ClassULID    string    `json:"class_id"`
	UserULID     string    `json:"user_id"`
	ClockedAt    time.Time `json:"clocked_at"`
	Distance     float64   `json:"distance"`
	BestRef      string    `json:"best_ref"`
}

type CheckinResponse struct {
	Attendance AttendanceResponse `json:"attendance"`
	Created    bool               `json:"created"` // false なら既に記録済み（最初の打刻を保持）
}

type ListQuery struct {
	SessionULID *string
	ClassULID   *string
	UserULID    *string
	Limit       int
	Offset      int
}

type StatsRow struct {
	UserULID string `json:"user_id"`
	Count    int64  `json:"count"`
}

// CSV export の 1 行（users/classes を JOIN した帳票向け）
type ExportRow struct {
	StudentNumber string
	FullName      string
	SessionULID   string
	OpenAt        time.Time
	ClockedAt     time.Time
	Distance      float64
}
