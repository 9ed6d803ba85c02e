package rbac

import (
	"context"
	"strings"
)

const (
	RoleGuest = "guest"
	RoleAdmin = "admin"
)

const (
	PermQuizPlay      = "quiz:play"
	PermScoresViewOwn = "scores:view-own"
	PermProgressClear = "progress:clear"
	PermStorageUsage  = "storage:usage"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleGuest: {
		PermQuizPlay,
		PermScoresViewOwn,
	},
	RoleAdmin: {
		"*",
	},
}

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	for _, p := range c.RolePermissions[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// matchPerm supports "*" and trailing-wildcard patterns such as "quiz:*".
func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(perm, prefix)
	}
	return false
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
