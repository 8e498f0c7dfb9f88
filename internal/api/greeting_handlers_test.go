package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

type greetingPayload struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	MediaURL    string `json:"media_url"`
	IsDefault   bool   `json:"is_default"`
	NotifyEmail string `json:"notify_email"`
}

func decodeGreeting(t *testing.T, body []byte) greetingPayload {
	t.Helper()
	var resp struct {
		Data greetingPayload `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding greeting: %v\nbody: %s", err, body)
	}
	return resp.Data
}

func TestGreetingCRUD(t *testing.T) {
	env := newTestEnv(t)
	auth := bearer(t, "usr_1")

	rr := env.request(http.MethodPost, "/api/v1/greetings", auth,
		`{"display_name":"Election night","media_url":"https://cdn.example.com/en.mp3","is_default":true,"notify_email":"staff@example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeGreeting(t, rr.Body.Bytes())
	if created.ID == 0 || !created.IsDefault || created.NotifyEmail != "staff@example.com" {
		t.Fatalf("unexpected created greeting: %+v", created)
	}

	rr = env.request(http.MethodGet, fmt.Sprintf("/api/v1/greetings/%d", created.ID), auth, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	if got := decodeGreeting(t, rr.Body.Bytes()); got.DisplayName != "Election night" {
		t.Errorf("get: unexpected greeting %+v", got)
	}

	rr = env.request(http.MethodPut, fmt.Sprintf("/api/v1/greetings/%d", created.ID), auth,
		`{"display_name":"Election night v2","media_url":"https://cdn.example.com/en2.mp3","notify_email":"staff@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	updated := decodeGreeting(t, rr.Body.Bytes())
	if updated.DisplayName != "Election night v2" || updated.MediaURL != "https://cdn.example.com/en2.mp3" {
		t.Errorf("update: unexpected greeting %+v", updated)
	}
	// The default flag is only changed through the set-default endpoint.
	if !updated.IsDefault {
		t.Error("update: expected default flag preserved")
	}

	rr = env.request(http.MethodGet, "/api/v1/greetings", auth, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var list struct {
		Data []greetingPayload `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("list: decoding: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("list: expected 1 greeting, got %d", len(list.Data))
	}

	rr = env.request(http.MethodDelete, fmt.Sprintf("/api/v1/greetings/%d", created.ID), auth, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	rr = env.request(http.MethodGet, fmt.Sprintf("/api/v1/greetings/%d", created.ID), auth, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rr.Code)
	}
}

func TestCreateGreetingSecondDefaultRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedGreeting(t, "usr_1", "First", "https://cdn.example.com/1.mp3", true, "")

	rr := env.request(http.MethodPost, "/api/v1/greetings", bearer(t, "usr_1"),
		`{"display_name":"Second","media_url":"https://cdn.example.com/2.mp3","is_default":true}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if resp := decodeEnvelope(t, rr); resp.Error != "a default greeting already exists" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestSetDefaultGreetingSwaps(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedGreeting(t, "usr_1", "First", "https://cdn.example.com/1.mp3", true, "")
	second := env.seedGreeting(t, "usr_1", "Second", "https://cdn.example.com/2.mp3", false, "")
	auth := bearer(t, "usr_1")

	rr := env.request(http.MethodPut, fmt.Sprintf("/api/v1/greetings/%d/default", second.ID), auth, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.request(http.MethodGet, fmt.Sprintf("/api/v1/greetings/%d", first.ID), auth, "")
	if g := decodeGreeting(t, rr.Body.Bytes()); g.IsDefault {
		t.Error("expected previous default to be cleared")
	}
	rr = env.request(http.MethodGet, fmt.Sprintf("/api/v1/greetings/%d", second.ID), auth, "")
	if g := decodeGreeting(t, rr.Body.Bytes()); !g.IsDefault {
		t.Error("expected new default to be set")
	}
}

func TestSetDefaultGreetingUnknownID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.request(http.MethodPut, "/api/v1/greetings/9999/default", bearer(t, "usr_1"), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestGreetingOwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	g := env.seedGreeting(t, "usr_1", "Private", "https://cdn.example.com/p.mp3", false, "")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rr := env.request(method, fmt.Sprintf("/api/v1/greetings/%d", g.ID), bearer(t, "usr_2"), "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s as non-owner: expected 404, got %d", method, rr.Code)
		}
	}

	rr := env.request(http.MethodPut, fmt.Sprintf("/api/v1/greetings/%d", g.ID), bearer(t, "usr_2"),
		`{"display_name":"Hijacked","media_url":"https://cdn.example.com/h.mp3"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("PUT as non-owner: expected 404, got %d", rr.Code)
	}
}

func TestGreetingValidation(t *testing.T) {
	env := newTestEnv(t)
	auth := bearer(t, "usr_1")

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"media_url":"https://cdn.example.com/x.mp3"}`},
		{"control chars in name", "{\"display_name\":\"bad\\u0000name\",\"media_url\":\"https://cdn.example.com/x.mp3\"}"},
		{"bad email", `{"display_name":"X","media_url":"https://cdn.example.com/x.mp3","notify_email":"not-an-email"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.request(http.MethodPost, "/api/v1/greetings", auth, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}
