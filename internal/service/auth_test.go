package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/auth"
)

func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour, auth.NewMemoryRevoker())
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	ps := auth.NewPasswordServiceWithCost(4)

	return NewAuthService(repo, ts, ps, testValidator, testLogger()), ts
}

func TestRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc, ts := newTestAuthService(t, repo)

	res, err := svc.Register(context.Background(), RegisterInput{
		Username: " alice ",
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if res.User.Username != "alice" {
		t.Errorf("Username = %q, want trimmed %q", res.User.Username, "alice")
	}
	if res.User.PasswordHash == "" || res.User.PasswordHash == "correct-horse" {
		t.Errorf("PasswordHash = %q, want a bcrypt hash", res.User.PasswordHash)
	}

	userID, err := ts.Validate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("issued token is invalid: %v", err)
	}
	if userID != res.User.ID {
		t.Errorf("token subject = %q, want %q", userID, res.User.ID)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())

	cases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"short username", RegisterInput{Username: "ab", Email: "a@b.co", Password: "longenough"}, "username"},
		{"bad email", RegisterInput{Username: "alice", Email: "nope", Password: "longenough"}, "email"},
		{"short password", RegisterInput{Username: "alice", Email: "a@b.co", Password: "short"}, "password"},
		{"symbols in username", RegisterInput{Username: "al ice!", Email: "a@b.co", Password: "longenough"}, "username"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.in)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Register() error = %v, want validation error", err)
			}
			if appErr.Field != tc.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tc.field)
			}
		})
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	in := RegisterInput{Username: "alice", Email: "a@b.co", Password: "longenough"}

	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(context.Background(), in)
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("second Register() error = %v, want ErrValidation", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@b.co", Password: "longenough"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	res, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "longenough"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token == "" {
		t.Error("Login() returned no token")
	}

	for _, in := range []LoginInput{
		{Username: "alice", Password: "wrong-password"},
		{Username: "nobody", Password: "longenough"},
	} {
		if _, err := svc.Login(ctx, in); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Login(%s) error = %v, want ErrUnauthorized", in.Username, err)
		}
	}
}

func TestLogin_GitHubOnlyAccount(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "octocat"}); err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	_, err := svc.Login(ctx, LoginInput{Username: "octocat", Password: "anything"})
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogout_RevokesToken(t *testing.T) {
	svc, ts := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@b.co", Password: "longenough"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := ts.Validate(ctx, res.Token); !errors.Is(err, auth.ErrTokenRevoked) {
		t.Errorf("Validate() after logout error = %v, want ErrTokenRevoked", err)
	}

	if err := svc.Logout(ctx, "garbage"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Logout(garbage) error = %v, want ErrUnauthorized", err)
	}
}

func TestLoginOrRegisterGitHub(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octocat", Email: "old@x.io"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "octocat", Email: "new@x.io"})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if first.User.ID != second.User.ID {
		t.Errorf("user ID changed between logins: %s -> %s", first.User.ID, second.User.ID)
	}
	if second.User.Email != "new@x.io" {
		t.Errorf("Email = %q, want refreshed", second.User.Email)
	}
	if len(repo.users) != 1 {
		t.Errorf("repo holds %d users, want 1", len(repo.users))
	}
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Error("LoginOrRegisterGitHub(nil) should fail")
	}

	dbErr := errors.New("disk full")
	repo.upsertErr = dbErr
	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "x"})
	if !errors.Is(err, dbErr) {
		t.Errorf("error = %v, want wrapped %v", err, dbErr)
	}
}

func TestGetUserByID(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	res, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@b.co", Password: "longenough"})

	u, err := svc.GetUserByID(ctx, res.User.ID)
	if err != nil || u.Username != "alice" {
		t.Fatalf("GetUserByID() = %+v, %v", u, err)
	}
	if _, err := svc.GetUserByID(ctx, ""); err == nil {
		t.Error("GetUserByID(\"\") should fail")
	}
	if _, err := svc.GetUserByID(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID(missing) error = %v, want ErrNotFound", err)
	}
}
