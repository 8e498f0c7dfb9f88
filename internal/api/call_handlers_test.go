package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
)

// completeCall drives the recording webhooks so the call ends up completed,
// optionally with a transcript attached.
func (e *testEnv) completeCall(t *testing.T, callSid, recSid, transcript string) {
	t.Helper()
	rr := e.postForm("/recording-status",
		recordingForm(callSid, recSid, "https://media.example.com/"+recSid+".mp3", "25", "completed"))
	if rr.Code != http.StatusOK {
		t.Fatalf("recording-status for %s: got %d", callSid, rr.Code)
	}
	if transcript != "" {
		form := url.Values{}
		form.Set("RecordingSid", recSid)
		form.Set("TranscriptionText", transcript)
		rr = e.postForm("/transcription-webhook", form)
		if rr.Code != http.StatusOK {
			t.Fatalf("transcription-webhook for %s: got %d", recSid, rr.Code)
		}
	}
}

func TestListCallsFiltersByKind(t *testing.T) {
	env := newTestEnv(t)
	phone := env.seedPhone(t, "usr_1", "+15551234567")
	env.seedCall(t, "usr_1", phone.ID, "CA1", "+15550000001")
	env.seedCall(t, "usr_1", phone.ID, "CA2", "+15550000002")
	env.completeCall(t, "CA1", "RE1", "Call me back please.")
	env.completeCall(t, "CA2", "RE2", "")

	var page struct {
		Data struct {
			Items []struct {
				CallerNumber string `json:"caller_number"`
				Kind         string `json:"kind"`
				HasRecording bool   `json:"has_recording"`
				Recording    *struct {
					MediaURL   string  `json:"media_url"`
					Transcript *string `json:"transcript"`
				} `json:"recording"`
			} `json:"items"`
			Total int `json:"total"`
		} `json:"data"`
	}

	list := func(query string) {
		t.Helper()
		rr := env.request(http.MethodGet, "/api/v1/calls"+query, bearer(t, "usr_1"), "")
		if rr.Code != http.StatusOK {
			t.Fatalf("GET /api/v1/calls%s: got %d: %s", query, rr.Code, rr.Body.String())
		}
		page.Data.Items = nil
		if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
			t.Fatalf("decoding page: %v", err)
		}
	}

	list("")
	if page.Data.Total != 2 || len(page.Data.Items) != 2 {
		t.Fatalf("expected 2 calls, got total=%d items=%d", page.Data.Total, len(page.Data.Items))
	}

	list("?kind=voicemail")
	if page.Data.Total != 1 {
		t.Fatalf("expected 1 voicemail, got %d", page.Data.Total)
	}
	vm := page.Data.Items[0]
	if vm.CallerNumber != "+15550000001" || vm.Kind != "voicemail" {
		t.Errorf("unexpected voicemail item: %+v", vm)
	}
	if vm.Recording == nil || vm.Recording.Transcript == nil {
		t.Fatal("expected recording with transcript on voicemail item")
	}

	list("?kind=callback")
	if page.Data.Total != 1 || page.Data.Items[0].Kind != "callback" {
		t.Fatalf("expected 1 callback, got total=%d", page.Data.Total)
	}
}

func TestListCallsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.seedPhone(t, "usr_1", "+15551234567")
	p2 := env.seedPhone(t, "usr_2", "+15557654321")
	env.seedCall(t, "usr_1", p1.ID, "CA1", "+15550000001")
	env.seedCall(t, "usr_2", p2.ID, "CA2", "+15550000002")

	rr := env.request(http.MethodGet, "/api/v1/calls", bearer(t, "usr_2"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var page struct {
		Data struct {
			Items []struct {
				CallerNumber string `json:"caller_number"`
			} `json:"items"`
			Total int `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &page); err != nil {
		t.Fatalf("decoding page: %v", err)
	}
	if page.Data.Total != 1 || page.Data.Items[0].CallerNumber != "+15550000002" {
		t.Fatalf("expected only usr_2's call, got %+v", page.Data)
	}
}

func TestListCallsRejectsBadParams(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(http.MethodGet, "/api/v1/calls?kind=missed", bearer(t, "usr_1"), "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad kind, got %d", rr.Code)
	}

	rr = env.request(http.MethodGet, "/api/v1/calls?limit=zero", bearer(t, "usr_1"), "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rr.Code)
	}
}

func TestGetPhoneNumber(t *testing.T) {
	env := newTestEnv(t)
	env.seedPhone(t, "usr_1", "+15551234567")

	rr := env.request(http.MethodGet, "/api/v1/phone-number", bearer(t, "usr_1"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeEnvelope(t, rr)
	if resp.Data.(map[string]any)["number"] != "+15551234567" {
		t.Errorf("unexpected payload %v", resp.Data)
	}

	rr = env.request(http.MethodGet, "/api/v1/phone-number", bearer(t, "usr_2"), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for user without a number, got %d", rr.Code)
	}
	if resp := decodeEnvelope(t, rr); resp.Error != "no phone number provisioned" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}
