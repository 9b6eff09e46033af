package facematch

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// 参照ベクトルが 1 本も登録されていない（顔未登録）
	ErrNoReference = errors.New("no reference vectors")
	// 照合対象のベクトル自体が不正（撮り直し要求であって「不一致」ではない）
	ErrInvalidDescriptor = errors.New("invalid candidate descriptor")
)

// ポーズ別参照のキー。この順で収集する。
var PoseLabels = []string{"front", "left", "right", "up", "down"}

// RefVector: ラベル付きの参照ベクトル
type RefVector struct {
	Label string
	Vec   Descriptor
}

// RefDistance: 参照ごとの距離（監査ログ・デバッグ用に全件返す）
type RefDistance struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Decision: 照合結果。Match の真偽だけでなく根拠（どの参照に最も近かったか、
// 全参照との距離）を必ず持たせる。際どい判定を後から追えるようにするため。
type Decision struct {
	Match        bool          `json:"match"`
	Distance     float64       `json:"distance"`
	BestRef      string        `json:"best_ref"`
	Threshold    float64       `json:"threshold"`
	AllDistances []RefDistance `json:"all_distances"`
}

// CollectRefs: ユーザが持ちうる 3 形態の参照をまとめて収集する。
//   - legacy: 旧スキーマの単一ベクトル（ラベル "centroid"）
//   - poses:  front/left/right/up/down のポーズ別ベクトル
//   - seq:    添字列。保存時のラベルを保持する（監査出力と行ラベルを
//     一致させるため）。ラベル無しは位置から "enc[i]" を振る
//
// 不正な形のものは黙って読み飛ばす（致命にしない）。
func CollectRefs(legacy Descriptor, poses map[string]Descriptor, seq []RefVector) []RefVector {
	var refs []RefVector
	if IsWellFormed(legacy) {
		refs = append(refs, RefVector{Label: "centroid", Vec: legacy})
	}
	for _, k := range PoseLabels {
		if v, ok := poses[k]; ok && IsWellFormed(v) {
			refs = append(refs, RefVector{Label: k, Vec: v})
		}
	}
	for i, r := range seq {
		if !IsWellFormed(r.Vec) {
			continue
		}
		label := r.Label
		if label == "" {
			label = fmt.Sprintf("enc[%d]", i)
		}
		refs = append(refs, RefVector{Label: label, Vec: r.Vec})
	}
	return refs
}

// Decide: 候補ベクトルを全参照と突き合わせ、最小距離が閾値以下なら一致。
// 閾値ちょうどは一致扱い（境界は含む）。
func Decide(refs []RefVector, candidate Descriptor, threshold float64) (Decision, error) {
	if !IsWellFormed(candidate) {
		return Decision{}, ErrInvalidDescriptor
	}
	if len(refs) == 0 {
		return Decision{}, ErrNoReference
	}

	dists := make([]RefDistance, 0, len(refs))
	for _, r := range refs {
		dists = append(dists, RefDistance{Label: r.Label, Distance: Euclidean(r.Vec, candidate)})
	}
	sort.SliceStable(dists, func(i, j int) bool { return dists[i].Distance < dists[j].Distance })

	best := dists[0]
	return Decision{
		Match:        best.Distance <= threshold,
		Distance:     best.Distance,
		BestRef:      best.Label,
		Threshold:    threshold,
		AllDistances: dists,
	}, nil
}
