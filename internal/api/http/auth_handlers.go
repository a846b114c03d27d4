package http

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mind-engage/quizdesk/internal/auth"
	"github.com/mind-engage/quizdesk/internal/quiz"
	"github.com/mind-engage/quizdesk/internal/users"
)

type tokenResponse struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        users.User `json:"user"`
}

func RegisterHandler(us *users.Store, a *auth.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name                 string `json:"name"`
			Email                string `json:"email"`
			Password             string `json:"password"`
			PasswordConfirmation string `json:"password_confirmation"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad json")
			return
		}
		errs := quiz.ValidationErrors{}
		if strings.TrimSpace(req.Name) == "" {
			errs.Add("name", "The name field is required.")
		}
		if e := strings.TrimSpace(req.Email); e == "" {
			errs.Add("email", "The email field is required.")
		} else if !strings.Contains(e, "@") {
			errs.Add("email", "The email field must be a valid email address.")
		}
		if len(req.Password) < 8 {
			errs.Add("password", "The password field must be at least 8 characters.")
		} else if req.PasswordConfirmation != "" && req.PasswordConfirmation != req.Password {
			errs.Add("password", "The password field confirmation does not match.")
		}
		if len(errs) > 0 {
			writeValidation(w, errs)
			return
		}

		u, err := us.Create(r.Context(), req.Name, req.Email, req.Password, users.RoleUser)
		if errors.Is(err, users.ErrEmailTaken) {
			errs.Add("email", "The email has already been taken.")
			writeValidation(w, errs)
			return
		}
		if err != nil {
			log.Error("register user", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Server error")
			return
		}
		issueToken(w, a, u, http.StatusCreated, log)
	}
}

func LoginHandler(us *users.Store, a *auth.AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "bad json")
			return
		}
		u, err := us.Authenticate(r.Context(), req.Email, req.Password)
		if errors.Is(err, users.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "These credentials do not match our records.")
			return
		}
		if err != nil {
			log.Error("login", zap.Error(err))
			writeMessage(w, http.StatusInternalServerError, "Server error")
			return
		}
		issueToken(w, a, u, http.StatusOK, log)
	}
}

func issueToken(w http.ResponseWriter, a *auth.AuthService, u users.User, status int, log *zap.Logger) {
	tok, err := a.IssueJWT(u.ID, u.Name, u.Role)
	if err != nil {
		log.Error("issue token", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, status, tokenResponse{AccessToken: tok, TokenType: "Bearer", User: u})
}
