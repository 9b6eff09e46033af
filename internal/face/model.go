package face

import (
	"encoding/json"
	"time"

	"facescan-backend/internal/facematch"
)

// DB行に対応。vector 列は JSON 文字列（128 要素の数値配列）。
type profileRow struct {
	UserULID string
	Label    string
	Vector   []byte // raw JSON
}

// RefSet: あるユーザの参照ベクトル一式。旧スキーマ（単一）・ポーズ別・
// 添字列の 3 形態が混在しうるので、行ラベルから形態別に振り分けて持つ。
// Seq は保存時のラベルごと持つ（照合結果のラベルと face_profiles.label を
// 食い違わせない）。
type RefSet struct {
	Legacy facematch.Descriptor
	Poses  map[string]facematch.Descriptor
	Seq    []facematch.RefVector
}

// Collect: 3 形態をまとめて facematch の参照リストに落とす。
// 不正な形の行はここで黙って落ちる。
func (rs RefSet) Collect() []facematch.RefVector {
	return facematch.CollectRefs(rs.Legacy, rs.Poses, rs.Seq)
}

// decodeVector: JSON 配列 → Descriptor。壊れた行は nil（= 収集時に無視）
func decodeVector(raw []byte) facematch.Descriptor {
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return facematch.Descriptor(v)
}

var poseLabelSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(facematch.PoseLabels))
	for _, l := range facematch.PoseLabels {
		m[l] = struct{}{}
	}
	return m
}()

// buildRefSet: ラベル付き行の集まりから RefSet を組み立てる。
//   - "centroid"            → 旧スキーマの単一ベクトル
//   - front/left/right/...  → ポーズ別
//   - それ以外（enc[i] 等） → 添字列（行順を保つ）
func buildRefSet(rows []profileRow) RefSet {
	rs := RefSet{Poses: map[string]facematch.Descriptor{}}
	for _, r := range rows {
		v := decodeVector(r.Vector)
		switch {
		case r.Label == "centroid":
			rs.Legacy = v
		default:
			if _, ok := poseLabelSet[r.Label]; ok {
				rs.Poses[r.Label] = v
			} else {
				rs.Seq = append(rs.Seq, facematch.RefVector{Label: r.Label, Vec: v})
			}
		}
	}
	return rs
}

// ScanLog: 照合 1 回ごとの監査行。際どい判定を後から追うために全部残す。
type ScanLog struct {
	LogULID     string    `json:"log_id"`
	UserULID    string    `json:"user_id"`
	SessionULID *string   `json:"session_id,omitempty"`
	Matched     bool      `json:"matched"`
	Distance    float64   `json:"distance"`
	BestRef     string    `json:"best_ref"`
	Threshold   float64   `json:"threshold"`
	CreatedAt   time.Time `json:"created_at"`
}
