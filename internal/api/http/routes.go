package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/quizpractice/internal/auth"
	authmw "github.com/mind-engage/quizpractice/internal/auth/middleware"
	"github.com/mind-engage/quizpractice/internal/bank"
	"github.com/mind-engage/quizpractice/internal/progress"
	"github.com/mind-engage/quizpractice/internal/rbac"
)

type Deps struct {
	Catalog  *bank.Bank
	Sessions *Registry
	Progress *ProgressPool
	Usage    *progress.Store
	Auth     *authmw.AuthService

	GuestAuth     bool
	SecureCookie  bool
	AdminUser     string
	AdminPassHash string

	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Mount registers every quiz route on r.
func Mount(r chi.Router, d Deps) {
	r.Post("/auth/guest", auth.GuestLoginHandler(d.Auth, d.GuestAuth, d.SecureCookie))
	r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.AdminUser, d.AdminPassHash))

	r.Get("/exam-types", ListExamTypesHandler(d.Catalog))
	r.Get("/exam-types/{type}/questions", QuestionsHandler(d.Catalog))

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermScoresViewOwn)).
			Get("/exam-types/{type}/statistics", StatisticsHandler(d.Catalog, d.Progress))
		pr.With(rbac.Require(rbac.PermScoresViewOwn)).
			Get("/scores", ScoresHandler(d.Catalog, d.Progress))

		pr.Route("/sessions", func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermQuizPlay))
			sr.Post("/", CreateSessionHandler(d.Sessions))
			sr.Get("/{id}", GetSessionHandler(d.Sessions))
			sr.Delete("/{id}", DeleteSessionHandler(d.Sessions))
			sr.Get("/{id}/result", ResultHandler(d.Sessions, d.Catalog))
			sr.Post("/{id}/{action}", SessionActionHandler(d.Sessions))
		})

		pr.With(rbac.Require(rbac.PermProgressClear)).
			Delete("/admin/progress", ClearProgressHandler(d.Catalog, d.Progress))
		pr.With(rbac.Require(rbac.PermStorageUsage)).
			Get("/admin/usage", UsageHandler(d.Usage))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
