package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		id, ok := GetReferrerIDFromContext(r.Context())
		if !ok {
			t.Fatalf("referrer id not in context")
		}
		if id != 42 {
			t.Fatalf("referrer id from context = %d, want 42", id)
		}
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/protected", nil)

	m.SetAuthCookie(w, 42)
	res := w.Result()
	resCookies := res.Cookies()
	if len(resCookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}

	r.AddCookie(resCookies[0])

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithoutCookie(t *testing.T) {
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

func TestAuthMiddleware_TamperedSignature(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, 42)
	cookie := w.Result().Cookies()[0]

	// Подменяем идентификатор, сохраняя чужую подпись.
	parts := strings.SplitN(cookie.Value, ".", 2)
	cookie.Value = "43." + parts[1]

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(cookie)

	rec := httptest.NewRecorder()
	handler := m.Middleware(next)
	handler.ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := AdminKey("secret-key")(next)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status without header = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}

	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("X-Admin-Key", "wrong")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status with wrong key = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}

	r = httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("X-Admin-Key", "secret-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status with valid key = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestAdminKey_EmptyKeyDisablesAccess(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	handler := AdminKey("")(next)

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.Header.Set("X-Admin-Key", "")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}
