package testutil

import (
	"encoding/json"
	"net/http/httptest"
)

// ReadJSONResponse decodes the recorded body into v, failing unless the status matches.
func ReadJSONResponse(t interface {
	Errorf(format string, args ...any)
	FailNow()
}, w *httptest.ResponseRecorder, wantStatus int, v any) {
	if w.Code != wantStatus {
		t.Errorf("expected status %d, got %d: %s", wantStatus, w.Code, w.Body.String())
		t.FailNow()
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Errorf("failed to decode JSON response: %v", err)
		t.FailNow()
	}
}
