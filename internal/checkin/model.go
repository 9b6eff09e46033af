package checkin

import (
	"database/sql"
	"time"
)

type Status string

// 状態機械: active → cancelled / active → expired のみ。終端からは戻らない。
const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// 出席確認の位置情報（ジオフェンスは下流で使う。ここでは保存するだけ）
type Location struct {
	Latitude       *float64
	Longitude      *float64
	RadiusInMeters float64
	Name           *string
}

// Service ↔ Store で使うモデル
type Session struct {
	SessionULID     string
	ClassULID       string
	OpenAt          time.Time
	CloseAt         time.Time
	Status          Status
	WithTeacherFace bool
	WithMapPreview  bool
	Location        Location
	CreatedAt       time.Time
}

// DB行に対応（スキャン用）
type sessionRow struct {
	SessionULID     string
	ClassULID       string
	OpenAt          time.Time
	CloseAt         time.Time
	Status          string
	WithTeacherFace int
	WithMapPreview  int
	Latitude        sql.NullFloat64
	Longitude       sql.NullFloat64
	RadiusInMeters  float64
	LocationName    sql.NullString
	CreatedAt       time.Time
}

func (r sessionRow) toModel() Session {
	s := Session{
		SessionULID:     r.SessionULID,
		ClassULID:       r.ClassULID,
		OpenAt:          r.OpenAt.UTC(),
		CloseAt:         r.CloseAt.UTC(),
		Status:          Status(r.Status),
		WithTeacherFace: r.WithTeacherFace != 0,
		WithMapPreview:  r.WithMapPreview != 0,
		CreatedAt:       r.CreatedAt.UTC(),
	}
	s.Location.RadiusInMeters = r.RadiusInMeters
	if r.Latitude.Valid {
		v := r.Latitude.Float64
		s.Location.Latitude = &v
	}
	if r.Longitude.Valid {
		v := r.Longitude.Float64
		s.Location.Longitude = &v
	}
	if r.LocationName.Valid {
		v := r.LocationName.String
		s.Location.Name = &v
	}
	return s
}

func (s Session) toDTO() SessionResponse {
	return SessionResponse{
		SessionULID:     s.SessionULID,
		ClassULID:       s.ClassULID,
		OpenAt:          s.OpenAt,
		CloseAt:         s.CloseAt,
		Status:          string(s.Status),
		WithTeacherFace: s.WithTeacherFace,
		WithMapPreview:  s.WithMapPreview,
		Location: LocationDTO{
			Latitude:       s.Location.Latitude,
			Longitude:      s.Location.Longitude,
			RadiusInMeters: s.Location.RadiusInMeters,
			Name:           s.Location.Name,
		},
		CreatedAt: s.CreatedAt,
	}
}

// 窓が now を含むか（前後に tol の猶予を持たせて端末との時計ズレを吸収する）
func (s Session) windowContains(now time.Time, tol time.Duration) bool {
	return !now.Before(s.OpenAt.Add(-tol)) && !now.After(s.CloseAt.Add(tol))
}
