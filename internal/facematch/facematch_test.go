package facematch

import (
	"errors"
	"math"
	"testing"
)

// 先頭だけ指定して残り 0 埋めの 128 次元ベクトルを作る
func vec(prefix ...float64) Descriptor {
	v := make(Descriptor, DescriptorLength)
	copy(v, prefix)
	return v
}

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
		want float64
	}{
		{"identical", Descriptor{1, 2, 3}, Descriptor{1, 2, 3}, 0},
		{"3-4-5", Descriptor{0, 0}, Descriptor{0.3, 0.4}, 0.5},
		{"just over threshold", Descriptor{0, 0}, Descriptor{0.31, 0.41}, math.Sqrt(0.31*0.31 + 0.41*0.41)},
		{"single axis", Descriptor{0}, Descriptor{2}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Euclidean(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Euclidean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanSymmetric(t *testing.T) {
	a := vec(0.1, -0.4, 2.5)
	b := vec(1.9, 0.3, -0.7)
	if Euclidean(a, b) != Euclidean(b, a) {
		t.Error("Euclidean() is not symmetric")
	}
}

func TestEuclideanZeroIffEqual(t *testing.T) {
	a := vec(0.5, 0.25)
	if d := Euclidean(a, a); d != 0 {
		t.Errorf("Euclidean(a, a) = %v, want 0", d)
	}
	b := vec(0.5, 0.25)
	b[127] = 1e-9
	if d := Euclidean(a, b); d == 0 {
		t.Error("Euclidean() = 0 for unequal vectors")
	}
}

func TestEuclideanLengthMismatch(t *testing.T) {
	if d := Euclidean(Descriptor{1, 2}, Descriptor{1, 2, 3}); !math.IsInf(d, 1) {
		t.Errorf("Euclidean() with mismatched lengths = %v, want +Inf", d)
	}
}

func TestIsWellFormed(t *testing.T) {
	tests := []struct {
		name string
		v    Descriptor
		want bool
	}{
		{"valid 128", vec(), true},
		{"nil", nil, false},
		{"too short", make(Descriptor, 127), false},
		{"too long", make(Descriptor, 129), false},
		{"contains NaN", func() Descriptor { v := vec(); v[5] = math.NaN(); return v }(), false},
		{"contains Inf", func() Descriptor { v := vec(); v[64] = math.Inf(-1); return v }(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWellFormed(tt.v); got != tt.want {
				t.Errorf("IsWellFormed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecideBoundaryInclusive(t *testing.T) {
	refs := []RefVector{{Label: "centroid", Vec: vec()}}

	// 距離ちょうど 0.5 → 一致
	d, err := Decide(refs, vec(0.3, 0.4), 0.5)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !d.Match {
		t.Errorf("Decide() match = false at distance %v, threshold 0.5", d.Distance)
	}

	// 距離 ≈ 0.512 → 不一致
	d, err = Decide(refs, vec(0.31, 0.41), 0.5)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if d.Match {
		t.Errorf("Decide() match = true at distance %v, threshold 0.5", d.Distance)
	}
}

func TestDecideBestRef(t *testing.T) {
	refs := []RefVector{
		{Label: "front", Vec: vec(0.9)}, // 距離 0.9
		{Label: "left", Vec: vec(0.2)},  // 距離 0.2
	}
	d, err := Decide(refs, vec(), 0.5)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !d.Match {
		t.Error("Decide() match = false, want true")
	}
	if d.BestRef != "left" {
		t.Errorf("Decide() bestRef = %q, want %q", d.BestRef, "left")
	}
	if len(d.AllDistances) != 2 {
		t.Fatalf("Decide() allDistances length = %d, want 2", len(d.AllDistances))
	}
	// 昇順ソートされていること
	if d.AllDistances[0].Distance > d.AllDistances[1].Distance {
		t.Error("Decide() allDistances not sorted ascending")
	}
}

// 閾値を上げても一致→不一致には決して転ばない
func TestDecideMonotonicInThreshold(t *testing.T) {
	refs := []RefVector{{Label: "centroid", Vec: vec()}}
	cand := vec(0.3, 0.4) // 距離 0.5

	prev := false
	for _, th := range []float64{0.1, 0.3, 0.49999, 0.5, 0.7, 1.0} {
		d, err := Decide(refs, cand, th)
		if err != nil {
			t.Fatalf("Decide(threshold=%v) error = %v", th, err)
		}
		if prev && !d.Match {
			t.Fatalf("match flipped true→false when threshold raised to %v", th)
		}
		prev = d.Match
	}
}

func TestDecideNoReference(t *testing.T) {
	_, err := Decide(nil, vec(), 0.5)
	if !errors.Is(err, ErrNoReference) {
		t.Errorf("Decide() error = %v, want ErrNoReference", err)
	}
}

func TestDecideInvalidCandidate(t *testing.T) {
	refs := []RefVector{{Label: "centroid", Vec: vec()}}
	tests := []struct {
		name string
		cand Descriptor
	}{
		{"nil", nil},
		{"short", make(Descriptor, 64)},
		{"nan", func() Descriptor { v := vec(); v[0] = math.NaN(); return v }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decide(refs, tt.cand, 0.5)
			if !errors.Is(err, ErrInvalidDescriptor) {
				t.Errorf("Decide() error = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestCollectRefs(t *testing.T) {
	legacy := vec(1)
	poses := map[string]Descriptor{
		"front":   vec(2),
		"left":    vec(3),
		"unknown": vec(4),              // 未知キーは無視
		"up":      make(Descriptor, 5), // 不正形は読み飛ばし
	}
	seq := []RefVector{{Vec: vec(5)}, {}, {Vec: vec(6)}}

	refs := CollectRefs(legacy, poses, seq)

	wantLabels := []string{"centroid", "front", "left", "enc[0]", "enc[2]"}
	if len(refs) != len(wantLabels) {
		t.Fatalf("CollectRefs() returned %d refs, want %d", len(refs), len(wantLabels))
	}
	for i, w := range wantLabels {
		if refs[i].Label != w {
			t.Errorf("refs[%d].Label = %q, want %q", i, refs[i].Label, w)
		}
	}
}

// 添字列の保存ラベルはそのまま残る（位置での振り直しはラベル無しのみ）
func TestCollectRefsKeepsStoredSeqLabels(t *testing.T) {
	seq := []RefVector{
		{Label: "enc[7]", Vec: vec(1)},
		{Label: "misc", Vec: vec(2)},
		{Vec: vec(3)},
	}
	refs := CollectRefs(nil, nil, seq)

	wantLabels := []string{"enc[7]", "misc", "enc[2]"}
	if len(refs) != len(wantLabels) {
		t.Fatalf("CollectRefs() returned %d refs, want %d", len(refs), len(wantLabels))
	}
	for i, w := range wantLabels {
		if refs[i].Label != w {
			t.Errorf("refs[%d].Label = %q, want %q", i, refs[i].Label, w)
		}
	}
}

func TestCollectRefsAllMalformed(t *testing.T) {
	refs := CollectRefs(nil, map[string]Descriptor{"front": {1, 2}}, []RefVector{{Label: "enc[0]", Vec: Descriptor{3}}})
	if len(refs) != 0 {
		t.Errorf("CollectRefs() = %d refs, want 0", len(refs))
	}
}
