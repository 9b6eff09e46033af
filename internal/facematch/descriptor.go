package facematch

import "math"

// 顔ベクトルの次元数（face-api.js / dlib 系エンコーダの 128 次元埋め込み）
const DescriptorLength = 128

// Descriptor は 1 枚の顔を表す固定長ベクトル
type Descriptor []float64

// IsWellFormed: 参照として採用できる形かどうか。
// 長さ 128 ちょうど・全要素が有限値、のみ許す。
func IsWellFormed(v Descriptor) bool {
	if len(v) != DescriptorLength {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Euclidean: ユークリッド距離。長さ不一致は比較不能として +Inf を返す
// （呼び出し側で「一致しない」扱いになる）。
func Euclidean(a, b Descriptor) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
