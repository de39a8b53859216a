package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-placement/internal/directory"
	"github.com/mind-engage/mindengage-placement/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT("s1", rbac.RoleStudent)
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "s1", c.Sub)
	assert.Equal(t, rbac.RoleStudent, c.Role)

	_, err = NewAuthService("other", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestParseExpired(t *testing.T) {
	a := NewAuthService("secret", time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	tok, err := a.IssueJWT("s1", rbac.RoleStudent)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := a.IssueJWT("admin", rbac.RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", gotSub)
	assert.Equal(t, rbac.RoleAdmin, gotRole)
}

type fakeStudents struct {
	pass     map[string]string
	verified map[string]bool
	err      error
}

func (f fakeStudents) Authenticate(_ context.Context, id, password string) (directory.Student, error) {
	if f.err != nil {
		return directory.Student{}, f.err
	}
	p, ok := f.pass[id]
	if !ok || p != password {
		return directory.Student{}, directory.ErrInvalidCredentials
	}
	if !f.verified[id] {
		return directory.Student{}, directory.ErrNotVerified
	}
	return directory.Student{ID: id}, nil
}

func (f fakeStudents) IsVerified(_ context.Context, id string) (bool, error) {
	return f.verified[id], f.err
}

func TestLoginHandler(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	admin := Admin{Username: "admin", PasswordHash: string(hash)}
	students := fakeStudents{
		pass:     map[string]string{"s1": "pw1", "s2": "pw2"},
		verified: map[string]bool{"s1": true},
	}
	a := NewAuthService("secret", time.Hour)
	log, _ := logtest.NewNullLogger()
	h := LoginHandler(a, admin, students, log)

	cases := []struct {
		name     string
		body     string
		want     int
		wantRole string
	}{
		{"admin", `{"username":"admin","password":"hunter2"}`, http.StatusOK, rbac.RoleAdmin},
		{"student", `{"username":"s1","password":"pw1"}`, http.StatusOK, rbac.RoleStudent},
		{"unverified", `{"username":"s2","password":"pw2"}`, http.StatusForbidden, ""},
		{"bad password", `{"username":"s1","password":"nope"}`, http.StatusUnauthorized, ""},
		{"admin bad password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized, ""},
		{"empty", `{}`, http.StatusUnauthorized, ""},
		{"bad json", `{`, http.StatusBadRequest, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tc.body)))
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			if tc.want != http.StatusOK {
				return
			}
			var out map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
			assert.Equal(t, tc.wantRole, out["role"])
			c, err := a.Parse(out["access_token"])
			require.NoError(t, err)
			assert.Equal(t, tc.wantRole, c.Role)
		})
	}

	rec := httptest.NewRecorder()
	LoginHandler(a, Admin{}, fakeStudents{err: errors.New("db down")}, log).
		ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"s1","password":"pw1"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireVerifiedStudent(t *testing.T) {
	dir := fakeStudents{verified: map[string]bool{"s1": true}}
	h := RequireVerifiedStudent(dir)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		sub, role string
		want      int
	}{
		{"s1", rbac.RoleStudent, http.StatusNoContent},
		{"s2", rbac.RoleStudent, http.StatusForbidden},
		{"admin", rbac.RoleAdmin, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := WithPrincipal(req.Context(), Principal{Subject: tc.sub, Role: tc.role})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, tc.want, rec.Code, tc.sub)
	}
}
