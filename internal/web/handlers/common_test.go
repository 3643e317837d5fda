package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]any{"message": "hello", "count": 42})

	if recorder.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
	}
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["message"] != "hello" || result["count"] != float64(42) {
		t.Errorf("unexpected body %v", result)
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("Alice\r\nINFO forged"); got != "AliceINFO forged" {
		t.Errorf("unexpected %q", got)
	}
}

func TestParseUID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		missing bool
		wantErr bool
	}{
		{"number", `7`, 7, false, false},
		{"string", `"12"`, 12, false, false},
		{"padded string", `" 12 "`, 12, false, false},
		{"absent", ``, 0, true, true},
		{"null", `null`, 0, true, true},
		{"empty string", `""`, 0, true, true},
		{"zero", `0`, 0, false, true},
		{"negative", `"-3"`, 0, false, true},
		{"float", `1.5`, 0, false, true},
		{"word", `"abc"`, 0, false, true},
		{"object", `{}`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseUID(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUID(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if errors.Is(err, errMissingID) != tt.missing {
				t.Errorf("parseUID(%s) missing = %v, want %v", tt.raw, errors.Is(err, errMissingID), tt.missing)
			}
			if got != tt.want {
				t.Errorf("parseUID(%s) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
