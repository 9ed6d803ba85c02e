package rbac

import "net/http"

var defaultChecker = NewChecker(nil)

// Require enforces a single permission for the role placed in the request
// context by the JWT middleware.
func Require(perm string) func(http.Handler) http.Handler {
	return RequireAny(perm)
}

func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Any(role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
