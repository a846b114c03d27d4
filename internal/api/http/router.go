package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/rbac"
	"github.com/mind-engage/quizdesk/internal/users"
)

type Deps struct {
	Auth   *auth.AuthService
	Users  *users.Store
	Quiz   quiz.Store
	Events EventRecorder
	Logger *zap.Logger

	// Ready reports whether backing services are reachable; nil means always ready.
	Ready          func(ctx context.Context) error
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", RegisterHandler(d.Users, d.Auth, log))
	r.Post("/auth/login", LoginHandler(d.Users, d.Auth, log))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.Users != nil {
			pr.Use(auth.AttachRoleFromStore(d.Users))
		}

		pr.With(rbac.Require("question_set:view")).Get("/dashboard", DashboardHandler(d.Quiz))

		pr.Route("/question-sets", func(qr chi.Router) {
			qr.With(rbac.Require("question_set:view")).Get("/", ListQuestionSetsHandler(d.Quiz))
			qr.With(rbac.Require("question_set:create")).Post("/", CreateQuestionSetHandler(d.Quiz, d.Events, log))
			qr.With(rbac.Require("question_set:view")).Get("/search", SearchQuestionSetHandler(d.Quiz))

			qr.Route("/{id}", func(ir chi.Router) {
				ir.With(rbac.Require("question_set:view")).Get("/", GetQuestionSetHandler(d.Quiz))
				ir.With(rbac.Require("question_set:update_own")).Get("/text", QuestionSetTextHandler(d.Quiz))
				ir.With(rbac.Require("question_set:update_own")).Put("/", UpdateQuestionSetHandler(d.Quiz, d.Events, log))
				ir.With(rbac.Require("question_set:delete_own")).Delete("/", DeleteQuestionSetHandler(d.Quiz, d.Events, log))
				ir.With(rbac.Require("score:view-own", "score:view-all")).Get("/scores", QuestionSetScoresHandler(d.Quiz))
			})
		})

		pr.With(rbac.Require("score:create")).Post("/scores", CreateScoreHandler(d.Quiz, d.Events, log))
		pr.With(rbac.Require("score:view-own")).Get("/scores", ListScoresHandler(d.Quiz))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				log.Warn("not ready", zap.Error(err))
				writeMessage(w, http.StatusServiceUnavailable, "not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}
