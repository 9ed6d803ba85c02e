package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/rbac"
)

func decodeToken(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body.AccessToken == "" {
		t.Fatalf("no token in response: %v", err)
	}
	return body.AccessToken
}

func TestGuestLogin_ReusesCookie(t *testing.T) {
	a := authmw.NewAuthService("test-secret", time.Hour)
	h := GuestLoginHandler(a, true, false)

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	first, err := a.Parse(decodeToken(t, rr))
	if err != nil || first.Role != rbac.RoleGuest || !strings.HasPrefix(first.Sub, "guest|") {
		t.Fatalf("unexpected claims %+v %v", first, err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected guest cookie")
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h(rr, req)
	second, _ := a.Parse(decodeToken(t, rr))
	if second.Sub != first.Sub {
		t.Fatalf("returning guest should keep its id: %s vs %s", second.Sub, first.Sub)
	}

	forged := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	forged.AddCookie(&http.Cookie{Name: guestCookie, Value: "admin"})
	rr = httptest.NewRecorder()
	h(rr, forged)
	third, _ := a.Parse(decodeToken(t, rr))
	if third.Sub == "admin" {
		t.Fatalf("malformed cookie must not be trusted")
	}
}

func TestGuestLogin_Disabled(t *testing.T) {
	rr := httptest.NewRecorder()
	GuestLoginHandler(authmw.NewAuthService("s", 0), false, false)(rr, httptest.NewRequest(http.MethodPost, "/auth/guest", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a := authmw.NewAuthService("s", time.Hour)
	h := authmw.LoginHandler(a, "admin", string(hash))

	cases := []struct {
		body string
		want int
	}{
		{`{"username":"admin","password":"hunter2"}`, http.StatusOK},
		{`{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{`{"username":"root","password":"hunter2"}`, http.StatusUnauthorized},
		{`{`, http.StatusBadRequest},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(c.body)))
		if rr.Code != c.want {
			t.Errorf("%s: got %d want %d", c.body, rr.Code, c.want)
		}
	}

	disabled := authmw.LoginHandler(a, "admin", "")
	rr := httptest.NewRecorder()
	disabled(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":""}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("empty hash must disable admin login, got %d", rr.Code)
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := authmw.NewAuthService("s", time.Hour)
	var sub, role string
	h := authmw.JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub = authmw.SubjectFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	}))

	tok, _ := a.IssueJWT("guest|x", rbac.RoleGuest)
	req := httptest.NewRequest(http.MethodGet, "/sessions/1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || sub != "guest|x" || role != rbac.RoleGuest {
		t.Fatalf("unexpected %d %q %q", rr.Code, sub, role)
	}

	other, _ := authmw.NewAuthService("other", time.Hour).IssueJWT("guest|x", rbac.RoleAdmin)
	for _, hdr := range []string{"", "Bearer garbage", "Bearer " + other} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", hdr, rr.Code)
		}
	}
}
