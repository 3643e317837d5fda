package liveness

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/landmarks"
	"github.com/kozaktomas/attendance-kiosk/internal/landmarks/landmarkstest"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var (
	openNeutral = landmarkstest.Face(0.30, 0.30)
	blinking    = landmarkstest.Face(0.10, 0.30)
	smiling     = landmarkstest.Face(0.30, 0.50)
)

func newTestTracker() *Tracker {
	return NewTracker(Config{
		Layout:      landmarks.DefaultLayout(),
		BlinkEAR:    0.22,
		Smile:       landmarks.SmileThresholds{WidthRatio: 0.38, LiftMargin: 0.03},
		IdleTimeout: 15 * time.Second,
	})
}

func advance(t *testing.T, tr *Tracker, key string, set landmarks.Set, now time.Time) Outcome {
	t.Helper()
	out, err := tr.Advance(key, set, now)
	if err != nil {
		t.Fatalf("Advance: unexpected error: %v", err)
	}
	return out
}

func TestAdvance_OpenEyesNeverLeaveWaitingBlink(t *testing.T) {
	tr := newTestTracker()
	for i, ear := range []float64{0.23, 0.25, 0.30, 0.35, 0.50} {
		out := advance(t, tr, "kiosk", landmarkstest.Face(ear, 0.5), t0.Add(time.Duration(i)*time.Second))
		if out.Stage != WaitingBlink {
			t.Errorf("EAR %v: expected WaitingBlink, got %v", ear, out.Stage)
		}
		if out.Message != MsgPleaseBlink {
			t.Errorf("EAR %v: expected %q, got %q", ear, MsgPleaseBlink, out.Message)
		}
	}
}

func TestAdvance_BlinkThenSmile(t *testing.T) {
	tr := newTestTracker()

	out := advance(t, tr, "kiosk", blinking, t0)
	if out.Stage != BlinkConfirmed || out.Message != MsgBlinkDetected {
		t.Fatalf("after blink: got %v %q", out.Stage, out.Message)
	}

	out = advance(t, tr, "kiosk", openNeutral, t0.Add(time.Second))
	if out.Stage != BlinkConfirmed || out.Message != MsgBlinkConfirmed {
		t.Fatalf("neutral after blink: got %v %q", out.Stage, out.Message)
	}

	out = advance(t, tr, "kiosk", smiling, t0.Add(2*time.Second))
	if out.Stage != Verified || !out.Live() {
		t.Fatalf("after smile: got %v", out.Stage)
	}

	// Verified holds until reset.
	out = advance(t, tr, "kiosk", openNeutral, t0.Add(3*time.Second))
	if out.Stage != Verified || out.Message != MsgVerified {
		t.Errorf("expected Verified to persist, got %v", out.Stage)
	}
}

func TestAdvance_LiftedCornersCountAsSmile(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "kiosk", blinking, t0)
	out := advance(t, tr, "kiosk", landmarkstest.LiftCorners(openNeutral), t0.Add(time.Second))
	if out.Stage != Verified {
		t.Errorf("expected Verified, got %v", out.Stage)
	}
}

func TestAdvance_IdleResetMatchesNewSession(t *testing.T) {
	for _, prior := range []Stage{WaitingBlink, BlinkConfirmed, Verified} {
		t.Run(prior.String(), func(t *testing.T) {
			tr := newTestTracker()
			switch prior {
			case BlinkConfirmed:
				advance(t, tr, "kiosk", blinking, t0)
			case Verified:
				advance(t, tr, "kiosk", blinking, t0)
				advance(t, tr, "kiosk", smiling, t0)
			default:
				advance(t, tr, "kiosk", openNeutral, t0)
			}

			later := t0.Add(16 * time.Second)
			fresh := newTestTracker()
			for _, frame := range []landmarks.Set{smiling, blinking} {
				got := advance(t, tr, "kiosk", frame, later)
				want := advance(t, fresh, "new", frame, later)
				if got != want {
					t.Errorf("idle session gave %+v, new session gave %+v", got, want)
				}
			}
		})
	}
}

func TestAdvance_WithinTimeoutKeepsStage(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "kiosk", blinking, t0)
	out := advance(t, tr, "kiosk", openNeutral, t0.Add(15*time.Second))
	if out.Stage != BlinkConfirmed {
		t.Errorf("expected BlinkConfirmed at exactly the timeout, got %v", out.Stage)
	}
}

func TestAdvance_GeometryErrorLeavesSession(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "kiosk", blinking, t0)

	_, err := tr.Advance("kiosk", make(landmarks.Set, 10), t0.Add(time.Second))
	if !errors.Is(err, landmarks.ErrLandmarkOutOfRange) {
		t.Fatalf("expected ErrLandmarkOutOfRange, got %v", err)
	}
	if stage, _ := tr.Stage("kiosk"); stage != BlinkConfirmed {
		t.Errorf("expected BlinkConfirmed after failed frame, got %v", stage)
	}

	_, err = tr.Advance("other", nil, t0)
	if err == nil {
		t.Fatal("expected error for empty mesh")
	}
	if _, ok := tr.Stage("other"); ok {
		t.Error("failed first frame must not create a session")
	}
}

func TestReset(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "kiosk", blinking, t0)
	advance(t, tr, "kiosk", smiling, t0.Add(time.Second))

	tr.Reset("kiosk")
	if stage, ok := tr.Stage("kiosk"); !ok || stage != WaitingBlink {
		t.Errorf("expected WaitingBlink after reset, got %v (exists=%v)", stage, ok)
	}

	tr.Reset("missing")
	if tr.Len() != 1 {
		t.Errorf("reset of unknown key must not create a session, len=%d", tr.Len())
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "a", blinking, t0)
	out := advance(t, tr, "b", smiling, t0)
	if out.Stage != WaitingBlink {
		t.Errorf("session b should start fresh, got %v", out.Stage)
	}
}

func TestSweep(t *testing.T) {
	tr := newTestTracker()
	advance(t, tr, "old", openNeutral, t0)
	advance(t, tr, "recent", openNeutral, t0.Add(50*time.Second))

	removed := tr.Sweep(t0.Add(61*time.Second), time.Minute)
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := tr.Stage("old"); ok {
		t.Error("expected old session to be evicted")
	}
	if tr.Len() != 1 {
		t.Errorf("expected 1 session left, got %d", tr.Len())
	}
}

func TestAdvance_Concurrent(t *testing.T) {
	tr := newTestTracker()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("client-%d", i%8)
			for j := range 50 {
				frame := openNeutral
				if j%3 == 0 {
					frame = blinking
				}
				if _, err := tr.Advance(key, frame, t0.Add(time.Duration(j)*time.Millisecond)); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
	if tr.Len() != 8 {
		t.Errorf("expected 8 sessions, got %d", tr.Len())
	}
}
