package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"testing"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/handler/dto"
	"github.com/recipebook/recipebook/internal/service"
)

func TestRegister(t *testing.T) {
	e := newAPIEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/users", "", map[string]string{
		"email":    "Cook@EXAMPLE.com",
		"password": "testpass123",
		"name":     "Test Name",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("response leaks password: %s", rec.Body.String())
	}

	resp := decodeBody[dto.UserResponse](t, rec)
	if resp.Email != "Cook@example.com" || resp.Name != "Test Name" {
		t.Errorf("unexpected user %+v", resp)
	}

	stored, err := e.store.GetUserByEmail(context.Background(), "Cook@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if stored.PasswordHash == "testpass123" {
		t.Error("password stored in plaintext")
	}
	if ok, _ := auth.VerifyPassword("testpass123", stored.PasswordHash); !ok {
		t.Error("stored hash does not verify")
	}
}

func TestRegister_Rejections(t *testing.T) {
	e := newAPIEnv(t)
	if _, err := e.users.CreateUser(context.Background(), "taken@example.com", "testpass123", service.UserExtras{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		body      map[string]string
		wantCode  string
		wantField string
	}{
		{"duplicate email", map[string]string{"email": "taken@EXAMPLE.COM", "password": "testpass123"}, "EMAIL_EXISTS", ""},
		{"short password", map[string]string{"email": "new@example.com", "password": "pw"}, "VALIDATION_ERROR", "password"},
		{"missing email", map[string]string{"password": "testpass123"}, "VALIDATION_ERROR", "email"},
		{"empty local part", map[string]string{"email": "@example.com", "password": "testpass123"}, "VALIDATION_ERROR", ""},
		{"no at sign", map[string]string{"email": "example.com", "password": "testpass123"}, "VALIDATION_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/v1/users", "", tt.body)
			resp := expectError(t, rec, http.StatusBadRequest, tt.wantCode)
			if tt.wantField != "" {
				if _, ok := resp.Fields[tt.wantField]; !ok {
					t.Errorf("fields = %v, want an entry for %q", resp.Fields, tt.wantField)
				}
			}
		})
	}

	users, _ := e.store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("rejected registrations created users: %d", len(users))
	}
}

func TestIssueToken(t *testing.T) {
	e := newAPIEnv(t)
	if _, err := e.users.CreateUser(context.Background(), "cook@example.com", "testpass123", service.UserExtras{}); err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodPost, "/api/v1/users/token", "", map[string]string{
		"email":    "cook@example.com",
		"password": "testpass123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	token := decodeBody[dto.TokenResponse](t, rec).Token
	if _, err := auth.ParseToken(token); err != nil {
		t.Fatalf("malformed token %q: %v", token, err)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("token not accepted: %d", rec.Code)
	}
	if me := decodeBody[dto.UserResponse](t, rec); me.Email != "cook@example.com" {
		t.Errorf("me = %+v", me)
	}
}

func TestIssueToken_BadCredentials(t *testing.T) {
	e := newAPIEnv(t)
	if _, err := e.users.CreateUser(context.Background(), "cook@example.com", "goodpass", service.UserExtras{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		body     map[string]string
		wantCode string
	}{
		{"wrong password", map[string]string{"email": "cook@example.com", "password": "badpass"}, "INVALID_CREDENTIALS"},
		{"unknown email", map[string]string{"email": "nobody@example.com", "password": "goodpass"}, "INVALID_CREDENTIALS"},
		{"blank password", map[string]string{"email": "cook@example.com", "password": ""}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/v1/users/token", "", tt.body)
			expectError(t, rec, http.StatusBadRequest, tt.wantCode)
		})
	}
}

func TestMe_RequiresAuth(t *testing.T) {
	e := newAPIEnv(t)

	for _, header := range []string{"", "rb_00000000_0000000000000000000000000000000000000000"} {
		rec := e.do(t, http.MethodGet, "/api/v1/users/me", header, nil)
		expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
		if rec.Header().Get("WWW-Authenticate") != "Token" {
			t.Errorf("WWW-Authenticate = %q", rec.Header().Get("WWW-Authenticate"))
		}
	}
}

func TestUpdateMe(t *testing.T) {
	e := newAPIEnv(t)
	token, user := e.login(t, "cook@example.com")

	rec := e.do(t, http.MethodPatch, "/api/v1/users/me", token, map[string]string{
		"name":     "Updated name",
		"password": "newpassword123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[dto.UserResponse](t, rec); resp.Name != "Updated name" {
		t.Errorf("name = %q", resp.Name)
	}

	if _, err := e.users.IssueToken(context.Background(), user.Email, "newpassword123"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// Name-only patch keeps the password.
	rec = e.do(t, http.MethodPatch, "/api/v1/users/me", token, map[string]string{"name": "Again"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, err := e.users.IssueToken(context.Background(), user.Email, "newpassword123"); err != nil {
		t.Errorf("password changed by name-only patch: %v", err)
	}
}

func TestReplaceMe(t *testing.T) {
	e := newAPIEnv(t)
	token, _ := e.login(t, "cook@example.com")

	rec := e.do(t, http.MethodPut, "/api/v1/users/me", token, map[string]string{"name": "No password"})
	resp := expectError(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	if _, ok := resp.Fields["password"]; !ok {
		t.Errorf("fields = %v", resp.Fields)
	}

	rec = e.do(t, http.MethodPut, "/api/v1/users/me", token, map[string]string{"password": "replaced123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[dto.UserResponse](t, rec); got.Name != "" {
		t.Errorf("absent name should clear it, got %q", got.Name)
	}
}

func TestRevokeToken(t *testing.T) {
	e := newAPIEnv(t)
	token, _ := e.login(t, "cook@example.com")

	rec := e.do(t, http.MethodDelete, "/api/v1/users/token", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if !slices.Contains(e.evicted.Keys(), auth.QuickHash(token)) {
		t.Error("auth cache entry was not evicted")
	}

	rec = e.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAdminListUsers(t *testing.T) {
	e := newAPIEnv(t)
	ctx := context.Background()

	regularToken, _ := e.login(t, "cook@example.com")

	if _, err := e.users.CreateSuperuser(ctx, "admin@example.com", "adminpass", service.UserExtras{}); err != nil {
		t.Fatal(err)
	}
	issued, err := e.users.IssueToken(ctx, "admin@example.com", "adminpass")
	if err != nil {
		t.Fatal(err)
	}

	rec := e.do(t, http.MethodGet, "/api/v1/admin/users", regularToken, nil)
	expectError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = e.do(t, http.MethodGet, "/api/v1/admin/users", issued.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	list := decodeBody[dto.AdminUserListResponse](t, rec)
	if list.Total != 2 || len(list.Users) != 2 {
		t.Fatalf("listed %d users, want 2", list.Total)
	}
	for _, u := range list.Users {
		if u.Email == "admin@example.com" && (!u.IsStaff || !u.IsSuperuser) {
			t.Errorf("superuser flags not set: %+v", u)
		}
	}
}
