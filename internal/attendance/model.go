package attendance

import "time"

// DB行に対応（スキャン用）
type attendanceRow struct {
	AttendanceID uint64
	SessionULID  string
	ClassULID    string
	UserULID     string
	ClockedAt    time.Time
	Distance     float64
	BestRef      string
}

// Service ↔ Store で使うモデル。顔照合の根拠（距離・最良参照）を行に残す。
type Attendance struct {
	AttendanceID uint64
	SessionULID  string
	ClassULID    string
	UserULID     string
	ClockedAt    time.Time
	Distance     float64
	BestRef      string
}

func (r attendanceRow) toModel() Attendance {
	return Attendance{
		AttendanceID: r.AttendanceID,
		SessionULID:  r.SessionULID,
		ClassULID:    r.ClassULID,
		UserULID:     r.UserULID,
		ClockedAt:    r.ClockedAt.UTC(),
		Distance:     r.Distance,
		BestRef:      r.BestRef,
	}
}

func (a Attendance) toDTO() AttendanceResponse {
	return AttendanceResponse{
		AttendanceID: a.AttendanceID,
		SessionULID:  a.SessionULID,
		ClassULID:    a.ClassULID,
		UserULID:     a.UserULID,
		ClockedAt:    a.ClockedAt,
		Distance:     a.Distance,
		BestRef:      a.BestRef,
	}
}
