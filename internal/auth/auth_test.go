package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager("secret", time.Hour)

	token, err := m.Issue("user-1")
	if err != nil {
		t.Fatal(err)
	}
	userID, err := m.Verify(token)
	if err != nil {
		t.Fatal(err)
	}
	if userID != "user-1" {
		t.Fatalf("user id=%s want=user-1", userID)
	}
}

func TestVerifyRejects(t *testing.T) {
	m := NewManager("secret", time.Hour)
	other := NewManager("other-secret", time.Hour)
	expired := NewManager("secret", -time.Minute)

	good, _ := m.Issue("user-1")
	foreign, _ := other.Issue("user-1")
	stale, _ := expired.Issue("user-1")

	for name, token := range map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": foreign,
		"expired":      stale,
		"empty":        "",
	} {
		if _, err := m.Verify(token); err == nil {
			t.Fatalf("%s: verify should fail", name)
		}
	}

	if _, err := m.Verify(good); err != nil {
		t.Fatalf("good token rejected: %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	m := NewManager("secret", time.Hour)
	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
	}))

	// No header.
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d want=401", rr.Code)
	}

	// Malformed scheme.
	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("code=%d want=401", rr.Code)
	}

	// Valid token reaches the handler with the user id on the context.
	token, _ := m.Issue("user-9")
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d want=200", rr.Code)
	}
	if seen != "user-9" {
		t.Fatalf("context user id=%q want=user-9", seen)
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "hunter22" {
		t.Fatal("hash should not equal the plain password")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
}
