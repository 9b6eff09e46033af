package face

import "facescan-backend/internal/facematch"

// 内部 service（エンコーダ）からの照合リクエスト
type VerifyVectorRequest struct {
	StudentNumber string    `json:"student_id" binding:"required"`
	FaceVector    []float64 `json:"face_vector" binding:"required"`
	SessionULID   *string   `json:"session_id,omitempty"`
}

type TeacherVerifyRequest struct {
	ClassULID  string    `json:"class_id" binding:"required"`
	FaceVector []float64 `json:"face_vector" binding:"required"`
}

// 参照ベクトルの登録。キーは centroid / front / left / right / up / down。
type EnrollRequest struct {
	Refs map[string][]float64 `json:"refs" binding:"required"`
}

type VerifyResponse struct {
	OK            bool                    `json:"ok"`
	Match         bool                    `json:"match"`
	Distance      float64                 `json:"distance"`
	Threshold     float64                 `json:"threshold"`
	BestRef       string                  `json:"best_ref"`
	AllDistances  []facematch.RefDistance `json:"all_distances"`
	UserULID      string                  `json:"user_id"`
	StudentNumber string                  `json:"student_id,omitempty"`
}
