// Package liveness runs the blink-then-smile challenge for each kiosk session.
//
// A session moves WaitingBlink -> BlinkConfirmed -> Verified and stays at
// Verified until the caller resets it. A session idle for longer than the
// configured timeout restarts at WaitingBlink on its next frame.
package liveness

import (
	"sync"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/config"
	"github.com/kozaktomas/attendance-kiosk/internal/landmarks"
)

// Stage is the challenge progress of one session.
type Stage int

const (
	WaitingBlink Stage = iota
	BlinkConfirmed
	Verified
)

func (s Stage) String() string {
	switch s {
	case WaitingBlink:
		return "waiting_blink"
	case BlinkConfirmed:
		return "blink_confirmed"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// User-facing prompts.
const (
	MsgPleaseBlink    = "please blink"
	MsgBlinkDetected  = "blink detected, now smile"
	MsgBlinkConfirmed = "blink confirmed, now smile"
	MsgVerified       = "verified"
)

// Config holds the challenge thresholds.
type Config struct {
	Layout      landmarks.Layout
	BlinkEAR    float64
	Smile       landmarks.SmileThresholds
	IdleTimeout time.Duration
}

// ConfigFrom builds a tracker Config from the application settings.
func ConfigFrom(cfg *config.Config) (Config, error) {
	layout, err := landmarks.LayoutFromConfig(cfg.Landmarks)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Layout:   layout,
		BlinkEAR: cfg.Liveness.BlinkEAR,
		Smile: landmarks.SmileThresholds{
			WidthRatio: cfg.Liveness.SmileWidthRatio,
			LiftMargin: cfg.Liveness.SmirkLiftMargin,
		},
		IdleTimeout: cfg.Liveness.IdleTimeout,
	}, nil
}

// Outcome is the result of evaluating one frame.
type Outcome struct {
	Stage   Stage
	Message string
}

// Live reports whether the session has passed the challenge.
func (o Outcome) Live() bool {
	return o.Stage == Verified
}

type session struct {
	stage      Stage
	lastUpdate time.Time
}

// Tracker owns the session table. It is safe for concurrent use.
type Tracker struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*session
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// Advance evaluates one frame with a detected face for the session key.
// A geometry error leaves the session untouched.
func (t *Tracker) Advance(key string, set landmarks.Set, now time.Time) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	stage := WaitingBlink
	if s, ok := t.sessions[key]; ok && now.Sub(s.lastUpdate) <= t.cfg.IdleTimeout {
		stage = s.stage
	}

	var out Outcome
	switch stage {
	case WaitingBlink:
		ear, err := landmarks.AverageEAR(set, t.cfg.Layout)
		if err != nil {
			return Outcome{}, err
		}
		if ear < t.cfg.BlinkEAR {
			out = Outcome{Stage: BlinkConfirmed, Message: MsgBlinkDetected}
		} else {
			out = Outcome{Stage: WaitingBlink, Message: MsgPleaseBlink}
		}
	case BlinkConfirmed:
		smiling, err := landmarks.SmirkSignal(set, t.cfg.Layout, t.cfg.Smile)
		if err != nil {
			return Outcome{}, err
		}
		if smiling {
			out = Outcome{Stage: Verified, Message: MsgVerified}
		} else {
			out = Outcome{Stage: BlinkConfirmed, Message: MsgBlinkConfirmed}
		}
	default:
		out = Outcome{Stage: Verified, Message: MsgVerified}
	}

	t.sessions[key] = &session{stage: out.Stage, lastUpdate: now}
	return out, nil
}

// Reset returns a session to WaitingBlink. Unknown keys are ignored.
func (t *Tracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[key]; ok {
		s.stage = WaitingBlink
	}
}

// Stage returns the stored stage of a session, without applying the idle timeout.
func (t *Tracker) Stage(key string) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[key]
	if !ok {
		return WaitingBlink, false
	}
	return s.stage, true
}

// Sweep deletes sessions not updated within maxAge and returns how many were removed.
func (t *Tracker) Sweep(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, s := range t.sessions {
		if now.Sub(s.lastUpdate) > maxAge {
			delete(t.sessions, key)
			removed++
		}
	}
	return removed
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
