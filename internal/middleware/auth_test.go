package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestAuthMiddleware_WithValidToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	userID := uuid.New()

	token, err := m.IssueToken(userID, true)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetUserIDFromContext(r.Context())
		if !ok {
			t.Fatalf("user id not in context")
		}
		if id != userID {
			t.Fatalf("user id from context = %s, want %s", id, userID)
		}
		if !IsAdminFromContext(r.Context()) {
			t.Fatalf("admin flag not in context")
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	handler := m.Middleware(next)
	handler.ServeHTTP(w, r)

	res := w.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{name: "wrong scheme", header: "Basic abc"},
		{name: "no token", header: "Bearer"},
		{name: "garbage token", header: "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			r.Header.Set("Authorization", tt.header)

			m.Middleware(next).ServeHTTP(w, r)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	issuer := NewAuthMiddleware("secret-a")
	verifier := NewAuthMiddleware("secret-b")

	token, err := issuer.IssueToken(uuid.New(), false)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})).ServeHTTP(w, r)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRequireAdmin(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	tests := []struct {
		name       string
		isAdmin    bool
		wantStatus int
	}{
		{name: "admin passes", isAdmin: true, wantStatus: http.StatusOK},
		{name: "student forbidden", isAdmin: false, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := m.IssueToken(uuid.New(), tt.isAdmin)
			if err != nil {
				t.Fatalf("issue token: %v", err)
			}

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/admin", nil)
			r.Header.Set("Authorization", "Bearer "+token)

			handler := m.Middleware(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))
			handler.ServeHTTP(w, r)

			if w.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}
