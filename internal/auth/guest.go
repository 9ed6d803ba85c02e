package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/rbac"
)

const guestCookie = "quiz_guest_id"

// GuestLoginHandler issues a guest token. The guest id is kept in a cookie so
// a returning browser keeps its sessions.
func GuestLoginHandler(a *authmw.AuthService, enabled, secureCookie bool) http.HandlerFunc {
	type out struct {
		AccessToken string `json:"access_token"`
		Username    string `json:"username"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !enabled {
			http.Error(w, "guest auth disabled", http.StatusForbidden)
			return
		}

		userID := ""
		if c, err := r.Cookie(guestCookie); err == nil && strings.HasPrefix(c.Value, "guest|") {
			if _, err := uuid.Parse(strings.TrimPrefix(c.Value, "guest|")); err == nil {
				userID = c.Value
			}
		}
		if userID == "" {
			userID = "guest|" + uuid.NewString()
		}

		tok, err := a.IssueJWT(userID, rbac.RoleGuest)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     guestCookie,
			Value:    userID,
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(30 * 24 * time.Hour),
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out{AccessToken: tok, Username: "guest-" + userID[len(userID)-6:]})
	}
}
