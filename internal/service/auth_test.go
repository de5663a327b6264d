package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskboard/internal/apperr"
	"taskboard/internal/service"
	"taskboard/pkg/util"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	u, token, err := f.auth.Register(f.ctx, " Dana ", "  Dana@Example.COM ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Email != "dana@example.com" || u.Name != "Dana" {
		t.Errorf("unexpected user %+v", u)
	}
	if u.PasswordHash == "secret1" {
		t.Error("password stored in clear")
	}
	if token == "" {
		t.Fatal("expected token")
	}

	id, err := f.auth.Authenticate(f.ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id != u.ID {
		t.Errorf("token resolves to %s, want %s", id, u.ID)
	}

	logged, token2, err := f.auth.Login(f.ctx, "dana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != u.ID || token2 == "" {
		t.Errorf("unexpected login result %+v", logged)
	}

	me, err := f.auth.Me(f.ctx, u.ID)
	if err != nil || me.ID != u.ID {
		t.Errorf("Me = %+v, %v", me, err)
	}
}

func TestRegisterRejects(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.auth.Register(f.ctx, "", "alice@example.com", "secret1")
	wantKind(t, err, apperr.KindConflict)

	_, _, err = f.auth.Register(f.ctx, "", "new@example.com", "12345")
	wantKind(t, err, apperr.KindValidation)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.auth.Register(f.ctx, "Dana", "dana@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, _, unknown := f.auth.Login(f.ctx, "nobody@example.com", "secret1")
	_, _, wrong := f.auth.Login(f.ctx, "dana@example.com", "secret2")
	wantKind(t, unknown, apperr.KindUnauthorized)
	wantKind(t, wrong, apperr.KindUnauthorized)
	if unknown.Error() != wrong.Error() {
		t.Errorf("login failures differ: %q vs %q", unknown, wrong)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"garbage": "not-a-token",
		"empty":   "",
	}
	other, _ := util.GenerateJWT(f.alice.ID.String(), "other-secret", time.Hour)
	cases["wrong secret"] = other
	ghost, _ := util.GenerateJWT(uuid.NewString(), "test-secret", time.Hour)
	cases["unknown user"] = ghost
	notUUID, _ := util.GenerateJWT("42", "test-secret", time.Hour)
	cases["non uuid subject"] = notUUID

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Authenticate(f.ctx, token)
			wantKind(t, err, apperr.KindUnauthorized)
		})
	}
}

func TestAuthenticateExpired(t *testing.T) {
	f := newFixture(t)
	auth := service.NewAuthService(f.store.Users, "test-secret", -time.Minute, zap.NewNop())
	_, token, err := auth.Register(f.ctx, "Dana", "dana@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = auth.Authenticate(f.ctx, token)
	wantKind(t, err, apperr.KindUnauthorized)
}
