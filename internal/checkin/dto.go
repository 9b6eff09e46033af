package checkin

import "time"

type LocationDTO struct {
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	RadiusInMeters float64  `json:"radius_in_meters"`
	Name           *string  `json:"name"`
}

// session 開始リクエスト（open_at/close_at は RFC3339 文字列）
type OpenSessionRequest struct {
	ClassULID       string       `json:"class_id" binding:"required"`
	OpenAt          string       `json:"open_at" binding:"required"`
	CloseAt         string       `json:"close_at" binding:"required"`
	WithTeacherFace bool         `json:"with_teacher_face"`
	WithMapPreview  bool         `json:"with_map_preview"`
	Location        *LocationDTO `json:"location,omitempty"`
}

type SessionResponse struct {
	SessionULID     string      `json:"session_id"`
	ClassULID       string      `json:"class_id"`
	OpenAt          time.Time   `json:"open_at"`
	CloseAt         time.Time   `json:"close_at"`
	Status          string      `json:"status"`
	WithTeacherFace bool        `json:"with_teacher_face"`
	WithMapPreview  bool        `json:"with_map_preview"`
	Location        LocationDTO `json:"location"`
	CreatedAt       time.Time   `json:"created_at"`
}

type ExpireResult struct {
	Expired int64 `json:"expired"`
}
