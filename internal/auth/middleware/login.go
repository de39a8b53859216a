package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-placement/internal/directory"
	"github.com/mind-engage/mindengage-placement/internal/rbac"
)

// Admin holds the single administrator account from configuration.
type Admin struct {
	Username     string
	PasswordHash string // bcrypt
}

func (a Admin) check(username, password string) bool {
	if a.Username == "" || a.PasswordHash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(a.Username), []byte(username)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

type StudentAuthenticator interface {
	Authenticate(ctx context.Context, id, password string) (directory.Student, error)
}

// POST /auth/login  { "username": "...", "password": "..." }
//
// The admin account is tried first; everyone else is looked up as a student
// and must be verified.
func LoginHandler(a *AuthService, admin Admin, students StudentAuthenticator, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		sub, role := "", ""
		if admin.check(req.Username, req.Password) {
			sub, role = req.Username, rbac.RoleAdmin
		} else {
			s, err := students.Authenticate(r.Context(), req.Username, req.Password)
			switch {
			case errors.Is(err, directory.ErrInvalidCredentials):
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			case errors.Is(err, directory.ErrNotVerified):
				http.Error(w, "account not verified", http.StatusForbidden)
				return
			case err != nil:
				log.WithError(err).Error("student login lookup failed")
				http.Error(w, "login failed", http.StatusInternalServerError)
				return
			}
			sub, role = s.ID, rbac.RoleStudent
		}

		tok, err := a.IssueJWT(sub, role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}
