package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/studyhall/internal/auth"
	"github.com/dukerupert/studyhall/internal/database"
)

// stubCloner approves every ownership check and hands back deterministic
// clone ids, standing in for the external content service.
type stubCloner struct{}

func (stubCloner) OwnsContent(context.Context, int64, string) (bool, error) { return true, nil }

func (stubCloner) Clone(_ context.Context, src string) (string, error) {
	return "clone-of-" + src, nil
}

func (stubCloner) EnrichClone(context.Context, string, string) error { return nil }

type testServer struct {
	*httptest.Server
	verifier *auth.Verifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	verifier := auth.NewVerifier([]byte("test-secret"), "studyhall", "studyhall-api")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, stubCloner{}, verifier, "https://study.example.com", logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, verifier: verifier}
}

// do issues a request as the given user and decodes the JSON response.
func (ts *testServer) do(t *testing.T, userID int64, name, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != 0 {
		cred, err := ts.verifier.Issue(auth.Identity{UserID: userID, DisplayName: name}, time.Hour)
		if err != nil {
			t.Fatalf("issue credential: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+cred)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	// Some endpoints return arrays; callers that care decode those themselves.
	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	out, _ := raw.(map[string]any)
	return resp.StatusCode, out
}

func (ts *testServer) createSession(t *testing.T, ownerID int64, name string) (int64, string) {
	t.Helper()
	status, body := ts.do(t, ownerID, name, "POST", "/api/sessions", map[string]any{
		"content_id":  "doc-1",
		"max_members": 4,
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %v", status, body)
	}
	return int64(body["session_id"].(float64)), body["token"].(string)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, 0, "", "GET", "/health", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("status = %d, body %v", status, body)
	}
}

func TestAPIRequiresCredential(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.do(t, 0, "", "POST", "/api/sessions", map[string]any{"content_id": "doc-1"})
	if status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", status)
	}
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, 1, "Alice", "POST", "/api/sessions", map[string]any{
		"content_id":  "doc-1",
		"max_members": 4,
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if code := body["code"].(string); len(code) != 6 {
		t.Errorf("code = %q, want 6 chars", code)
	}
	if body["invite_link"] == "" || body["token"] == "" {
		t.Error("response should carry an invite link and token")
	}
	if body["max_members"] != float64(4) {
		t.Errorf("max_members = %v, want 4", body["max_members"])
	}
}

func TestCreateSessionValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing content id", map[string]any{"max_members": 4}},
		{"max members too small", map[string]any{"content_id": "doc-1", "max_members": 1}},
		{"max members too large", map[string]any{"content_id": "doc-1", "max_members": 51}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.do(t, 1, "Alice", "POST", "/api/sessions", tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
		})
	}
}

func TestJoinFlow(t *testing.T) {
	ts := newTestServer(t)
	sessionID, token := ts.createSession(t, 1, "Alice")

	status, body := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": token})
	if status != http.StatusOK {
		t.Fatalf("join status = %d, body %v", status, body)
	}
	if body["role"] != "member" {
		t.Errorf("role = %v, want member", body["role"])
	}
	if members := body["members"].([]any); len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}

	status, body = ts.do(t, 2, "Bob", "GET", fmt.Sprintf("/api/sessions/%d/members", sessionID), nil)
	if status != http.StatusOK {
		t.Fatalf("members status = %d, body %v", status, body)
	}

	status, _ = ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": "bogus"})
	if status != http.StatusBadRequest {
		t.Errorf("bogus token status = %d, want 400", status)
	}
}

func TestSessionDetail(t *testing.T) {
	ts := newTestServer(t)
	sessionID, _ := ts.createSession(t, 1, "Alice")

	status, body := ts.do(t, 1, "Alice", "GET", fmt.Sprintf("/api/sessions/%d", sessionID), nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if body["caller_role"] != "owner" {
		t.Errorf("caller_role = %v, want owner", body["caller_role"])
	}

	// Non-members get forbidden, unknown sessions not found.
	if status, _ := ts.do(t, 9, "Eve", "GET", fmt.Sprintf("/api/sessions/%d", sessionID), nil); status != http.StatusForbidden {
		t.Errorf("stranger status = %d, want 403", status)
	}
	if status, _ := ts.do(t, 1, "Alice", "GET", "/api/sessions/9999", nil); status != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", status)
	}
}

func TestLeaveAndRemove(t *testing.T) {
	ts := newTestServer(t)
	sessionID, token := ts.createSession(t, 1, "Alice")

	if status, _ := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": token}); status != http.StatusOK {
		t.Fatal("join failed")
	}
	if status, _ := ts.do(t, 3, "Carol", "POST", "/api/sessions/join", map[string]any{"token": token}); status != http.StatusOK {
		t.Fatal("join failed")
	}

	status, body := ts.do(t, 2, "Bob", "POST", fmt.Sprintf("/api/sessions/%d/leave", sessionID), nil)
	if status != http.StatusOK || body["left"] != true {
		t.Errorf("leave status = %d, body %v", status, body)
	}

	// Member cannot remove; owner can; self-removal redirected to leave.
	if status, _ := ts.do(t, 3, "Carol", "DELETE", fmt.Sprintf("/api/sessions/%d/members/1", sessionID), nil); status != http.StatusForbidden {
		t.Errorf("member remove status = %d, want 403", status)
	}
	if status, _ := ts.do(t, 1, "Alice", "DELETE", fmt.Sprintf("/api/sessions/%d/members/1", sessionID), nil); status != http.StatusBadRequest {
		t.Errorf("self remove status = %d, want 400", status)
	}
	status, body = ts.do(t, 1, "Alice", "DELETE", fmt.Sprintf("/api/sessions/%d/members/3", sessionID), nil)
	if status != http.StatusOK || body["removed"] != true {
		t.Errorf("remove status = %d, body %v", status, body)
	}
}

func TestEndSession(t *testing.T) {
	ts := newTestServer(t)
	sessionID, token := ts.createSession(t, 1, "Alice")

	if status, _ := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": token}); status != http.StatusOK {
		t.Fatal("join failed")
	}

	if status, _ := ts.do(t, 2, "Bob", "POST", fmt.Sprintf("/api/sessions/%d/end", sessionID), nil); status != http.StatusForbidden {
		t.Errorf("member end status = %d, want 403", status)
	}

	status, body := ts.do(t, 1, "Alice", "POST", fmt.Sprintf("/api/sessions/%d/end", sessionID), nil)
	if status != http.StatusOK || body["ended"] != true {
		t.Errorf("end status = %d, body %v", status, body)
	}

	// The invite died with the session.
	if status, _ := ts.do(t, 3, "Carol", "POST", "/api/sessions/join", map[string]any{"token": token}); status != http.StatusBadRequest {
		t.Errorf("join after end status = %d, want 400", status)
	}
}

func TestInviteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	sessionID, seedToken := ts.createSession(t, 1, "Alice")

	status, body := ts.do(t, 1, "Alice", "POST", fmt.Sprintf("/api/sessions/%d/invites", sessionID), map[string]any{
		"max_uses":         1,
		"expires_in_hours": 1,
	})
	if status != http.StatusCreated {
		t.Fatalf("create invite status = %d, body %v", status, body)
	}
	limited := body["token"].(string)

	status, _ = ts.do(t, 1, "Alice", "GET", fmt.Sprintf("/api/sessions/%d/invites", sessionID), nil)
	if status != http.StatusOK {
		t.Errorf("list status = %d, want 200", status)
	}

	status, _ = ts.do(t, 1, "Alice", "DELETE", "/api/invites/"+limited, nil)
	if status != http.StatusOK {
		t.Errorf("revoke status = %d, want 200", status)
	}
	if status, _ := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": limited}); status != http.StatusBadRequest {
		t.Errorf("revoked join status = %d, want 400", status)
	}

	// Reset rotates every link.
	status, body = ts.do(t, 1, "Alice", "POST", fmt.Sprintf("/api/sessions/%d/invites/reset", sessionID), nil)
	if status != http.StatusOK {
		t.Fatalf("reset status = %d, body %v", status, body)
	}
	fresh := body["token"].(string)
	if status, _ := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": seedToken}); status != http.StatusBadRequest {
		t.Errorf("old token join status = %d, want 400", status)
	}
	if status, _ := ts.do(t, 2, "Bob", "POST", "/api/sessions/join", map[string]any{"token": fresh}); status != http.StatusOK {
		t.Errorf("fresh token join status = %d, want 200", status)
	}
}
