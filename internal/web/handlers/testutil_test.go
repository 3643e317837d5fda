package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kozaktomas/attendance-kiosk/internal/attendance"
	"github.com/kozaktomas/attendance-kiosk/internal/verify"
)

// fakeVerifier records calls and returns canned results
type fakeVerifier struct {
	mu sync.Mutex

	frames  []verify.Frame
	enrolls []enrollCall
	uids    []int64

	result     verify.Result
	frameErr   error
	message    string
	enrollErr  error
	summary    attendance.Summary
	summaryErr error
	health     verify.Health
}

type enrollCall struct {
	name  string
	uid   int64
	image string
}

func (f *fakeVerifier) ProcessFrame(ctx context.Context, frame verify.Frame) (verify.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return f.result, f.frameErr
}

func (f *fakeVerifier) EnrollUser(ctx context.Context, name string, uid int64, img []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrolls = append(f.enrolls, enrollCall{name: name, uid: uid, image: string(img)})
	return f.message, f.enrollErr
}

func (f *fakeVerifier) AttendanceSummary(ctx context.Context, uid int64) (attendance.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uids = append(f.uids, uid)
	return f.summary, f.summaryErr
}

func (f *fakeVerifier) Health() verify.Health {
	return f.health
}

// jsonRequest creates a POST request with body as JSON
func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
