package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"facescan-backend/internal/checkin"
	"facescan-backend/internal/face"
	"facescan-backend/internal/facematch"
)

// ===== テスト用フェイク =====

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

type fakeGate struct {
	sess *checkin.Session
	err  error
}

func (g *fakeGate) RequireOpen(_ context.Context, id string) (*checkin.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.sess == nil || g.sess.SessionULID != id {
		return nil, checkin.ErrNotFound("session not found")
	}
	cp := *g.sess
	return &cp, nil
}

type fakeVerifier struct {
	decision facematch.Decision
	err      error
	calls    int
}

func (v *fakeVerifier) VerifyUser(_ context.Context, _ string, _ facematch.Descriptor, _ *string) (facematch.Decision, error) {
	v.calls++
	if v.err != nil {
		return facematch.Decision{}, v.err
	}
	return v.decision, nil
}

type fakeRoster struct {
	enrolled map[string]bool // key: classULID + "/" + userULID
}

func (r *fakeRoster) IsEnrolled(_ context.Context, classULID, userULID string) (bool, error) {
	return r.enrolled[classULID+"/"+userULID], nil
}

// SQL 実装と同じ UNIQUE(session, user) + 最初の打刻保持の意味論
type fakeAttStore struct {
	rows   []Attendance
	nextID uint64
}

func (f *fakeAttStore) find(sessionULID, userULID string) *Attendance {
	for i := range f.rows {
		if f.rows[i].SessionULID == sessionULID && f.rows[i].UserULID == userULID {
			return &f.rows[i]
		}
	}
	return nil
}

func (f *fakeAttStore) Upsert(_ context.Context, a *Attendance) (Attendance, bool, error) {
	if ex := f.find(a.SessionULID, a.UserULID); ex != nil {
		return *ex, false, nil
	}
	f.nextID++
	cp := *a
	cp.AttendanceID = f.nextID
	f.rows = append(f.rows, cp)
	return cp, true, nil
}

func (f *fakeAttStore) List(_ context.Context, q ListQuery) ([]Attendance, int64, error) {
	var out []Attendance
	for _, a := range f.rows {
		if q.SessionULID != nil && a.SessionULID != *q.SessionULID {
			continue
		}
		if q.ClassULID != nil && a.ClassULID != *q.ClassULID {
			continue
		}
		if q.UserULID != nil && a.UserULID != *q.UserULID {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

func (f *fakeAttStore) StatsByClass(_ context.Context, classULID string, _ int) ([]StatsRow, error) {
	counts := map[string]int64{}
	for _, a := range f.rows {
		if a.ClassULID == classULID {
			counts[a.UserULID]++
		}
	}
	var out []StatsRow
	for u, n := range counts {
		out = append(out, StatsRow{UserULID: u, Count: n})
	}
	return out, nil
}

func (f *fakeAttStore) ExportByClass(_ context.Context, _ string) ([]ExportRow, error) {
	return nil, nil
}

// ===== ヘルパ =====

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func openSession(id, classID string) *checkin.Session {
	return &checkin.Session{
		SessionULID: id,
		ClassULID:   classID,
		OpenAt:      testNow.Add(-10 * time.Minute),
		CloseAt:     testNow.Add(10 * time.Minute),
		Status:      checkin.StatusActive,
	}
}

func newTestService(gate *fakeGate, verifier *fakeVerifier, roster *fakeRoster, store *fakeAttStore) *Service {
	return NewServiceWith(store, gate, verifier, roster, &fakeClock{t: testNow})
}

func matchDecision() facematch.Decision {
	return facematch.Decision{Match: true, Distance: 0.31, BestRef: "left", Threshold: 0.4}
}

func apiCode(t *testing.T, err error) Code {
	t.Helper()
	var api *APIError
	if !errors.As(err, &api) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	return api.Code
}

// ===== CheckIn =====

func TestCheckInMatchWritesRow(t *testing.T) {
	store := &fakeAttStore{}
	gate := &fakeGate{sess: openSession("SESS0001", "CLS01")}
	verifier := &fakeVerifier{decision: matchDecision()}
	roster := &fakeRoster{enrolled: map[string]bool{"CLS01/U001": true}}
	svc := newTestService(gate, verifier, roster, store)

	res, err := svc.CheckIn(context.Background(), "U001", CheckinRequest{
		SessionULID: "SESS0001",
		FaceVector:  []float64{0.1, 0.2},
	})
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !res.Created {
		t.Error("expected Created = true on first check-in")
	}
	if got := res.Attendance; got.Distance != 0.31 || got.BestRef != "left" {
		t.Errorf("evidence not carried: distance=%v best_ref=%q", got.Distance, got.BestRef)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(store.rows))
	}
	if store.rows[0].ClassULID != "CLS01" || store.rows[0].UserULID != "U001" {
		t.Errorf("row = %+v", store.rows[0])
	}
	if !store.rows[0].ClockedAt.Equal(testNow) {
		t.Errorf("clocked_at = %v, want %v", store.rows[0].ClockedAt, testNow)
	}
}

func TestCheckInDuplicateKeepsFirst(t *testing.T) {
	store := &fakeAttStore{}
	gate := &fakeGate{sess: openSession("SESS0001", "CLS01")}
	verifier := &fakeVerifier{decision: matchDecision()}
	roster := &fakeRoster{enrolled: map[string]bool{"CLS01/U001": true}}

	clock := &fakeClock{t: testNow}
	svc := NewServiceWith(store, gate, verifier, roster, clock)

	first, err := svc.CheckIn(context.Background(), "U001", CheckinRequest{
		SessionULID: "SESS0001", FaceVector: []float64{0.1},
	})
	if err != nil {
		t.Fatalf("first CheckIn: %v", err)
	}

	clock.t = testNow.Add(3 * time.Minute)
	second, err := svc.CheckIn(context.Background(), "U001", CheckinRequest{
		SessionULID: "SESS0001", FaceVector: []float64{0.1},
	})
	if err != nil {
		t.Fatalf("second CheckIn: %v", err)
	}
	if second.Created {
		t.Error("expected Created = false on duplicate check-in")
	}
	if !second.Attendance.ClockedAt.Equal(first.Attendance.ClockedAt) {
		t.Errorf("earliest clock-in not preserved: %v vs %v",
			second.Attendance.ClockedAt, first.Attendance.ClockedAt)
	}
	if len(store.rows) != 1 {
		t.Errorf("expected 1 row, got %d", len(store.rows))
	}
}

func TestCheckInMismatchWritesNothing(t *testing.T) {
	store := &fakeAttStore{}
	gate := &fakeGate{sess: openSession("SESS0001", "CLS01")}
	verifier := &fakeVerifier{decision: facematch.Decision{Match: false, Distance: 0.55, BestRef: "front", Threshold: 0.4}}
	roster := &fakeRoster{enrolled: map[string]bool{"CLS01/U001": true}}
	svc := newTestService(gate, verifier, roster, store)

	_, err := svc.CheckIn(context.Background(), "U001", CheckinRequest{
		SessionULID: "SESS0001", FaceVector: []float64{0.9},
	})
	if got := apiCode(t, err); got != CodeFaceMismatch {
		t.Errorf("code = %s, want %s", got, CodeFaceMismatch)
	}
	if len(store.rows) != 0 {
		t.Errorf("mismatch must not write rows, got %d", len(store.rows))
	}
}

func TestCheckInDownstreamErrors(t *testing.T) {
	tests := []struct {
		name     string
		gateErr  error
		faceErr  error
		enrolled bool
		want     Code
	}{
		{
			name:     "closed session",
			gateErr:  checkin.ErrConflict("session is cancelled"),
			enrolled: true,
			want:     CodeConflict,
		},
		{
			name:     "unknown session",
			gateErr:  checkin.ErrNotFound("session not found"),
			enrolled: true,
			want:     CodeNotFound,
		},
		{
			name:     "not enrolled",
			enrolled: false,
			want:     CodeForbidden,
		},
		{
			name:     "no reference",
			faceErr:  face.ErrNoReference("no face references enrolled"),
			enrolled: true,
			want:     CodeNoReference,
		},
		{
			name:     "encoder failure",
			faceErr:  face.ErrUpstream("encoder: 500 internal error"),
			enrolled: true,
			want:     CodeUpstream,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeAttStore{}
			gate := &fakeGate{sess: openSession("SESS0001", "CLS01"), err: tt.gateErr}
			verifier := &fakeVerifier{decision: matchDecision(), err: tt.faceErr}
			roster := &fakeRoster{enrolled: map[string]bool{}}
			if tt.enrolled {
				roster.enrolled["CLS01/U001"] = true
			}
			svc := newTestService(gate, verifier, roster, store)

			_, err := svc.CheckIn(context.Background(), "U001", CheckinRequest{
				SessionULID: "SESS0001", FaceVector: []float64{0.1},
			})
			if got := apiCode(t, err); got != tt.want {
				t.Errorf("code = %s, want %s", got, tt.want)
			}
			if len(store.rows) != 0 {
				t.Errorf("failed check-in must not write rows, got %d", len(store.rows))
			}
		})
	}
}

func TestCheckInGateOrderSkipsFaceOnClosedSession(t *testing.T) {
	verifier := &fakeVerifier{decision: matchDecision()}
	gate := &fakeGate{err: checkin.ErrConflict("session has expired")}
	roster := &fakeRoster{enrolled: map[string]bool{"CLS01/U001": true}}
	svc := newTestService(gate, verifier, roster, &fakeAttStore{})

	_, _ = svc.CheckIn(context.Background(), "U001", CheckinRequest{
		SessionULID: "SESS0001", FaceVector: []float64{0.1},
	})
	if verifier.calls != 0 {
		t.Errorf("face verify called %d times on closed session, want 0", verifier.calls)
	}
}

func TestCheckInValidation(t *testing.T) {
	svc := newTestService(&fakeGate{}, &fakeVerifier{}, &fakeRoster{}, &fakeAttStore{})

	tests := []struct {
		name string
		req  CheckinRequest
	}{
		{"missing session_id", CheckinRequest{FaceVector: []float64{0.1}}},
		{"missing face_vector", CheckinRequest{SessionULID: "SESS0001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CheckIn(context.Background(), "U001", tt.req)
			if got := apiCode(t, err); got != CodeInvalidArgument {
				t.Errorf("code = %s, want %s", got, CodeInvalidArgument)
			}
		})
	}
}

// ===== List / Stats =====

func TestListFilters(t *testing.T) {
	store := &fakeAttStore{rows: []Attendance{
		{AttendanceID: 1, SessionULID: "S1", ClassULID: "C1", UserULID: "U1"},
		{AttendanceID: 2, SessionULID: "S1", ClassULID: "C1", UserULID: "U2"},
		{AttendanceID: 3, SessionULID: "S2", ClassULID: "C2", UserULID: "U1"},
	}}
	svc := newTestService(&fakeGate{}, &fakeVerifier{}, &fakeRoster{}, store)

	sid := "S1"
	items, total, err := svc.List(context.Background(), ListQuery{SessionULID: &sid})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("total=%d len=%d, want 2/2", total, len(items))
	}

	uid := "U1"
	items, total, err = svc.List(context.Background(), ListQuery{UserULID: &uid})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("total=%d len=%d, want 2/2", total, len(items))
	}
}

func TestStatsRequiresClass(t *testing.T) {
	svc := newTestService(&fakeGate{}, &fakeVerifier{}, &fakeRoster{}, &fakeAttStore{})
	if _, err := svc.StatsByClass(context.Background(), "", 0); err == nil {
		t.Error("expected error for empty class_id")
	}
}
